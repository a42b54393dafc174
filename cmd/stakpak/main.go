// Command stakpak is the autopilot CLI: mTLS agent transport bring-up
// and cron-scheduled watch management, wired with cobra/viper following
// cmd/main/main.go's command-tree and init-hook conventions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stakpak/agent-core/internal/config"
	"github.com/stakpak/agent-core/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stakpak",
	Short: "Stakpak agent-core: autonomous agent runtime and autopilot scheduler",
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.stakpak/config.yaml)")

	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(watchCmd)

	mcpCmd.AddCommand(mcpServerCmd)

	watchCmd.AddCommand(watchRunCmd)
	watchCmd.AddCommand(watchListCmd)
	watchCmd.AddCommand(watchPauseCmd)
	watchCmd.AddCommand(watchResumeCmd)
	watchCmd.AddCommand(watchCancelCmd)
}

func initConfig() {
	if err := config.InitViper(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize config: %v\n", err)
	}
}

func initLogging() {
	cfg, err := config.Load()
	if err != nil {
		logging.Initialize(false)
		return
	}
	logging.Initialize(cfg.Debug)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
