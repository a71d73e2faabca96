// Package main provides the host daemon for the TEE signing service. It
// loads the enclave image, bridges its stream onto host channels, and
// dispatches framed client requests over TCP.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/virtengine/tee-signer/pkg/server"
)

const (
	flagAddr        = "addr"
	flagEnclave     = "enclave"
	flagRootKey     = "root-key"
	flagTimeout     = "timeout"
	flagMetricsAddr = "metrics-addr"
	flagLogLevel    = "log-level"

	envPrefix = "SIGNATORY"
)

var rootCmd = &cobra.Command{
	Use:          "signatory-server",
	Short:        "TEE Ed25519 signing server",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signing server",
	Long: `Start the host bridge: load the enclave image, run the enclave worker,
and serve one signing request per client connection.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	level, err := zerolog.ParseLevel(viper.GetString(flagLogLevel))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logger := log.NewLogger(os.Stdout, log.LevelOption(level))

	srv, err := server.New(server.Config{
		ListenAddr:  viper.GetString(flagAddr),
		EnclavePath: viper.GetString(flagEnclave),
		RootKeyPath: viper.GetString(flagRootKey),
		Timeout:     viper.GetDuration(flagTimeout),
	}, logger)
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	if metricsAddr := viper.GetString(flagMetricsAddr); metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("serving metrics", "addr", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("metrics listener failed", "err", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("signal received, shutting down", "signal", sig.String())

	srv.Shutdown()
	return nil
}

func init() {
	serveCmd.Flags().String(flagAddr, "127.0.0.1:8888", "address the server listens on")
	serveCmd.Flags().String(flagEnclave, "", "path to the enclave image")
	serveCmd.Flags().String(flagRootKey, "sealing_root.key", "path to the machine sealing root key")
	serveCmd.Flags().Duration(flagTimeout, server.DefaultTimeout, "per-operation stream timeout")
	serveCmd.Flags().String(flagMetricsAddr, "", "address for the Prometheus /metrics endpoint (disabled when empty)")
	serveCmd.Flags().String(flagLogLevel, "info", "log level (debug, info, warn, error)")
	_ = serveCmd.MarkFlagRequired(flagEnclave)

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(serveCmd.Flags())

	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
