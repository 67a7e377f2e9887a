package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "walletmail",
	Short: "WalletMail - wallet-authenticated end-to-end encrypted mail",
	Long: `walletmail is the command-line client for WalletMail.

Your wallet keypair is your identity: the base58 public key is your mail
address, and every request to the relay is signed with it. Mail content is
encrypted on this machine before upload; the relay stores ciphertext it
cannot open.

Examples:
  walletmail wallet init
  walletmail keys status
  walletmail send <address> -s "hello" -b "first encrypted mail"
  walletmail inbox`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.walletmail/config.yaml)")
	rootCmd.PersistentFlags().String("relay", "",
		"relay base URL")
	rootCmd.PersistentFlags().String("data-dir", "",
		"data directory (default is $HOME/.walletmail)")

	viper.BindPFlag("relay", rootCmd.PersistentFlags().Lookup("relay"))
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".walletmail"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	viper.SetEnvPrefix("WALLETMAIL")
	viper.AutomaticEnv()

	// Missing config file is fine; flags and env still apply.
	_ = viper.ReadInConfig()
}

// dataDir resolves the directory holding the wallet seed and key cache.
func dataDir() (string, error) {
	if dir := viper.GetString("data_dir"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".walletmail"), nil
}

// relayURL resolves the relay base URL from flag, env, or config.
func relayURL() string {
	return viper.GetString("relay")
}
