// Package cli defines the Cobra commands for the companion binary.
// This file holds the root command and the shared config loading.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-companion/internal/config"
)

var (
	logLevel string
	envDir   string
	version  = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "companion",
	Short: "Realtime voice and screen assistant",
	Long: `Companion listens to your microphone, talks back through a realtime
model, and answers questions about what is on your screen.

Run "companion serve" for the backend that holds the API key, then
"companion run" for the client.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&envDir, "env-dir", ".", "Directory searched for env and .env files")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(agentsCmd)
}

// loadConfig reads dotenv files, then the environment, then applies
// persistent flag overrides.
func loadConfig() (*config.Config, error) {
	config.LoadDotenv(envDir)
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}
