// Package cmd implements CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/hfinger/internal/config"
	"firestige.xyz/hfinger/internal/tables"
	"firestige.xyz/hfinger/pkg/plugin"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without analysing anything.

The file is loaded with environment overrides applied, the report mode is
resolved, the encoding tables are loaded and every reporter name is checked
against the registered plugins.

Examples:
  hfinger validate hfinger.yml
  hfinger validate -c hfinger.yml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no config file given")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}
	if _, err := tables.LoadDir(cfg.Tables.Dir); err != nil {
		return fmt.Errorf("INVALID: tables: %w", err)
	}
	for _, r := range cfg.Reporters {
		if _, err := plugin.GetReporterFactory(r.Name); err != nil {
			return fmt.Errorf("INVALID: reporter %q: %w", r.Name, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "VALID: mode %d, source %s, %d reporter(s)\n",
		cfg.Analyzer.Mode,
		cfg.Analyzer.Source,
		len(cfg.Reporters),
	)
	return nil
}
