package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360/swarmpulse/config"
)

// cliOptions holds the persistent flags.
type cliOptions struct {
	configPath      string
	logLevel        string
	logFormat       string
	shutdownTimeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Control-plane ingestion pipeline",
		Long:          "swarmpulse subscribes to the control-plane broker, validates every frame against the envelope schema and keeps a wire log and live state snapshots.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", os.Getenv("SWARMPULSE_CONFIG"),
		"Path to YAML configuration file (env: SWARMPULSE_CONFIG)")
	flags.StringVar(&opts.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides log.level)")
	flags.StringVar(&opts.logFormat, "log-format", "",
		"Log format: json, text (overrides log.format)")
	flags.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 30*time.Second,
		"Graceful shutdown timeout")

	root.AddCommand(newRunCmd(opts), newValidateCmd(opts), newVersionCmd())
	return root
}

// loadConfig loads defaults, the optional file layer and env overrides,
// then applies the logging flags.
func loadConfig(opts *cliOptions) (*config.Config, error) {
	loader := config.NewLoader()
	if opts.configPath != "" {
		loader.AddLayer(opts.configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build %s)\n", appName, Version, BuildTime)
		},
	}
}
