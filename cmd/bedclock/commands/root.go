package commands

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chaz8081/bedclock/internal/config"
	"github.com/chaz8081/bedclock/internal/kv"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bedclock",
	Short: "Bedside alarm clock",
	Long: `bedclock runs a bedside alarm clock: a terminal clock face, a GPIO
snooze button, alarm sounds and a BLE service for setting the time and
alarms from a phone.

Configuration is read from ~/.config/bedclock/config.yaml when present.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClock(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/bedclock/config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(alarmsCmd)
	rootCmd.AddCommand(soundsCmd)
	rootCmd.AddCommand(displayCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the config from --config, or falls back to the default
// config path, or uses built-in defaults. It also installs the logger.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	path := cfgFile
	if path == "" {
		if _, statErr := os.Stat(config.DefaultConfigPath()); statErr == nil {
			path = config.DefaultConfigPath()
		}
	}
	if path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	} else {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))
	if path != "" {
		slog.Debug("[APP] config loaded", "path", path)
	}
	return cfg, nil
}

// openDB opens the clock's settings database.
func openDB(cfg *config.Config) (*kv.Badger, error) {
	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	db, err := kv.OpenBadger(kv.BadgerOptions{Dir: cfg.DBDir()})
	if err != nil {
		return nil, fmt.Errorf("%w (is the clock running?)", err)
	}
	return db, nil
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}
