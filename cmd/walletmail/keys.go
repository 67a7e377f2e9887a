package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	walletmail "github.com/walletmail/client-go"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run key setup and print the key fingerprint",
	RunE:  runKeysStatus,
}

var keysExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the private key, password-protected",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysExport,
}

var keysImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a password-protected private key export",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysImport,
}

var keysQRCmd = &cobra.Command{
	Use:   "qr",
	Short: "Print the key transfer payload for QR display",
	Long: `Print the key transfer payload rendered into a QR code on the sending
device. The payload contains the raw private key; do not log or store it.`,
	RunE: runKeysQR,
}

var keysRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Generate a new keypair, abandoning existing mail",
	Long: `Generate a fresh keypair and replace the escrowed one.

All mail encrypted under the old key becomes PERMANENTLY unreadable.
Requires --confirm with the exact phrase:
  ` + walletmail.RotationConfirmPhrase,
	RunE: runKeysRotate,
}

var (
	keysPassword      string
	keysRotateConfirm string
)

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysStatusCmd)
	keysCmd.AddCommand(keysExportCmd)
	keysCmd.AddCommand(keysImportCmd)
	keysCmd.AddCommand(keysQRCmd)
	keysCmd.AddCommand(keysRotateCmd)

	keysExportCmd.Flags().StringVarP(&keysPassword, "password", "p", "", "export password")
	keysExportCmd.MarkFlagRequired("password")
	keysImportCmd.Flags().StringVarP(&keysPassword, "password", "p", "", "export password")
	keysImportCmd.MarkFlagRequired("password")
	keysRotateCmd.Flags().StringVar(&keysRotateConfirm, "confirm", "", "confirmation phrase")
}

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// ready builds a client and runs key setup.
func ready(ctx context.Context) (*walletmail.Client, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	if err := client.EnsureKeys(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func runKeysStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	unsub := client.OnKeyEvent(func(e walletmail.KeyEvent) {
		fmt.Printf("key event: %s (%s)\n", e.Kind, e.Fingerprint)
	})
	defer unsub()

	if err := client.EnsureKeys(ctx); err != nil {
		return err
	}

	fp, err := client.KeyFingerprint()
	if err != nil {
		return err
	}
	fmt.Println("state:      ", client.KeyState())
	fmt.Println("fingerprint:", fp)
	return nil
}

func runKeysExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	client, err := ready(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.ExportPrivateKeyToFile(args[0], keysPassword); err != nil {
		return err
	}
	fmt.Println("key exported to", args[0])
	return nil
}

func runKeysImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.ImportPrivateKeyFromFile(ctx, args[0], keysPassword); err != nil {
		return err
	}
	fmt.Println("key imported")
	return nil
}

func runKeysQR(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	client, err := ready(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	payload, err := client.EncodeKeyQR()
	if err != nil {
		return err
	}
	fmt.Println(payload)
	return nil
}

func runKeysRotate(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	client, err := ready(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.RotateKeys(ctx, keysRotateConfirm); err != nil {
		return err
	}

	fp, err := client.KeyFingerprint()
	if err != nil {
		return err
	}
	fmt.Println("keys rotated; new fingerprint:", fp)
	return nil
}
