package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	walletmail "github.com/walletmail/client-go"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage the local wallet identity",
}

var walletInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a new wallet",
	Long: `Generate a new Ed25519 wallet and store its seed locally.

The wallet's base58 public key is your mail address. The seed file is the
only copy; back it up.`,
	RunE: runWalletInit,
}

var walletAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the wallet address",
	RunE:  runWalletAddress,
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletInitCmd)
	walletCmd.AddCommand(walletAddressCmd)
}

func seedPath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "wallet.seed"), nil
}

// loadWallet opens the stored wallet.
func loadWallet() (*walletmail.LocalWallet, error) {
	path, err := seedPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no wallet found; run 'walletmail wallet init' first")
		}
		return nil, fmt.Errorf("read wallet seed: %w", err)
	}
	seed, err := base58.Decode(string(data))
	if err != nil {
		return nil, fmt.Errorf("decode wallet seed: %w", err)
	}
	return walletmail.LocalWalletFromSeed(seed)
}

// newClient builds a client around the stored wallet.
func newClient() (*walletmail.Client, error) {
	wallet, err := loadWallet()
	if err != nil {
		return nil, err
	}

	opts := []walletmail.Option{}
	if url := relayURL(); url != "" {
		opts = append(opts, walletmail.WithBaseURL(url))
	}
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	opts = append(opts, walletmail.WithKeyDir(filepath.Join(dir, "keys")))

	return walletmail.New(wallet, opts...)
}

func runWalletInit(cmd *cobra.Command, args []string) error {
	path, err := seedPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("wallet already exists at %s", path)
	}

	wallet, err := walletmail.NewLocalWallet()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(base58.Encode(wallet.Seed())), 0600); err != nil {
		return fmt.Errorf("write wallet seed: %w", err)
	}

	fmt.Println("wallet created")
	fmt.Println("address:", wallet.Address())
	return nil
}

func runWalletAddress(cmd *cobra.Command, args []string) error {
	wallet, err := loadWallet()
	if err != nil {
		return err
	}
	fmt.Println(wallet.Address())
	return nil
}
