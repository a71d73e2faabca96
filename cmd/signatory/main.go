// Package main provides the client CLI for the TEE signing service.
package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/virtengine/tee-signer/pkg/provider"
)

const (
	flagAddr     = "addr"
	flagKeyFile  = "key-file"
	flagKey      = "key"
	flagKeyType  = "key-type"
	flagData     = "data"
	flagHex      = "hex"
	flagLogLevel = "log-level"
)

var rootCmd = &cobra.Command{
	Use:   "signatory",
	Short: "Client for the TEE Ed25519 signing service",
	Long: `signatory keeps an encrypted (sealed) Ed25519 seed on disk and asks the
signing server's enclave to use it. The seed itself is never readable
outside the enclave that sealed it.`,
	SilenceUsage: true,
}

func newSigner(cmd *cobra.Command) (*provider.SgxSigner, error) {
	addr, err := cmd.Flags().GetString(flagAddr)
	if err != nil {
		return nil, err
	}
	keyFile, err := cmd.Flags().GetString(flagKeyFile)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	return provider.NewSgxSigner(addr, keyFile, logger), nil
}

func newLogger(cmd *cobra.Command) (log.Logger, error) {
	levelStr, err := cmd.Flags().GetString(flagLogLevel)
	if err != nil {
		return nil, err
	}
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	return log.NewLogger(os.Stderr, log.LevelOption(level)), nil
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Create a new sealed secret key and print its public key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		signer, err := newSigner(cmd)
		if err != nil {
			return err
		}

		kp, err := signer.Keygen()
		if err != nil {
			return err
		}
		pubkey, err := signer.StoreKey(kp)
		if err != nil {
			return err
		}

		keyFile, _ := cmd.Flags().GetString(flagKeyFile)
		fmt.Printf("stored secret key in file: %s\npublic key: %s\n", keyFile, pubkey)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a secret seed into the enclave",
	RunE: func(cmd *cobra.Command, _ []string) error {
		signer, err := newSigner(cmd)
		if err != nil {
			return err
		}

		key, err := cmd.Flags().GetString(flagKey)
		if err != nil {
			return err
		}
		keyType, err := cmd.Flags().GetString(flagKeyType)
		if err != nil {
			return err
		}

		kp, err := signer.Import(provider.KeyType(keyType), key)
		if err != nil {
			return err
		}
		pubkey, err := signer.StoreKey(kp)
		if err != nil {
			return err
		}

		fmt.Printf("import success\npublic key: %s\n", pubkey)
		return nil
	},
}

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the public key of the stored sealed key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		signer, err := newSigner(cmd)
		if err != nil {
			return err
		}

		pubkey, err := signer.PublicKey()
		if err != nil {
			return err
		}

		useHex, _ := cmd.Flags().GetBool(flagHex)
		if useHex {
			fmt.Printf("public key: %s\n", hex.EncodeToString(pubkey))
			return nil
		}
		fmt.Printf("public key: %s\n", base64.StdEncoding.EncodeToString(pubkey))
		return nil
	},
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign data with the stored sealed key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		signer, err := newSigner(cmd)
		if err != nil {
			return err
		}

		data, err := cmd.Flags().GetString(flagData)
		if err != nil {
			return err
		}

		sig, err := signer.TrySign([]byte(data))
		if err != nil {
			return err
		}

		fmt.Printf("signature: %s\n", hex.EncodeToString(sig))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String(flagAddr, "127.0.0.1:8888", "server address")
	rootCmd.PersistentFlags().String(flagKeyFile, "secret_key", "sealed secret key file path")
	rootCmd.PersistentFlags().String(flagLogLevel, "info", "log level (debug, info, warn, error)")

	importCmd.Flags().String(flagKey, "", "the secret seed, textually encoded")
	importCmd.Flags().String(flagKeyType, "base64", "encoding of the secret seed (base64)")
	_ = importCmd.MarkFlagRequired(flagKey)

	pubkeyCmd.Flags().Bool(flagHex, false, "print the public key in hex instead of base64")

	signCmd.Flags().String(flagData, "hello world", "data to sign")

	rootCmd.AddCommand(keygenCmd, importCmd, pubkeyCmd, signCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
