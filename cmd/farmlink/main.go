// Farmlink is the host-side bridge to the farm robot's serial console.
//
// It decodes the robot's mixed output stream (diagnostic lines, position
// reports and chunked FT file transfers), saves received files, keeps a
// history of transfers and positions, and fans events out over a WebSocket
// feed and an optional terminal monitor.
//
// Usage:
//
//	farmlink [command] [flags]
//
// See 'farmlink --help' for available commands.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/muurk/farmlink/internal/config"
	"github.com/muurk/farmlink/internal/logging"
	"github.com/muurk/farmlink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

// cfg is loaded before every command runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "farmlink",
	Short: "Farm robot serial bridge",
	Long: `A host-side bridge for the farm robot's serial console.

farmlink reads the robot's output stream, reassembles FT file transfers
(farm, mission, moisture and watering data), tracks the gantry position,
and forwards robot commands typed by the operator or sent by dashboards
connected to the event feed.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config and FARMLINK_LOG_LEVEL")

	rootCmd.AddCommand(versionCmd)
}

// setup loads the config file and starts logging. The monitor owns the
// terminal, so listen --tui logs to a file instead.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		// config init --force must be able to replace a broken file
		if !isConfigInit(cmd) {
			return err
		}
		cfg = config.Default()
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	if cmd.Name() == "listen" && listenTUI {
		dir, err := config.GetConfigDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		return logging.InitializeToFile(level, filepath.Join(dir, "farmlink.log"))
	}
	return logging.Initialize(level)
}

func isConfigInit(cmd *cobra.Command) bool {
	return cmd.Name() == "init" && cmd.HasParent() && cmd.Parent().Name() == "config"
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Printf("farmlink %s\n", version.Full())
		fmt.Printf("  go:       %s\n", info.GoVersion)
		fmt.Printf("  platform: %s\n", info.Platform)
	},
}
