package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360/swarmpulse/config"
)

func newValidateCmd(opts *cliOptions) *cobra.Command {
	var (
		show   bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if show {
				data, err := yaml.Marshal(redact(cfg))
				if err != nil {
					return fmt.Errorf("render config: %w", err)
				}
				_, _ = out.Write(data)
			}
			if output != "" {
				if err := redact(cfg).SaveToFile(output); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				_, _ = fmt.Fprintf(out, "Effective configuration written to %s\n", output)
			}
			_, _ = fmt.Fprintln(out, "Configuration is valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "Print the effective configuration")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the effective configuration to a YAML file")
	return cmd
}

// redact masks secrets in a copy of cfg.
func redact(cfg *config.Config) *config.Config {
	cp := cfg.Clone()
	if cp.Stomp.Passcode != "" {
		cp.Stomp.Passcode = "********"
	}
	return cp
}
