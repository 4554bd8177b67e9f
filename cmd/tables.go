// Package cmd implements CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/hfinger/internal/tables"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Dump or verify the encoding tables",
	Long: `Dump the effective encoding tables as YAML: the embedded tables, overlaid
with the files of --dir (or tables.dir in the config file).

With --verify only the tables are loaded and checked.`,
	RunE: runTables,
}

var (
	tablesDir    string
	tablesVerify bool
)

func init() {
	tablesCmd.Flags().StringVar(&tablesDir, "dir", "", "table override directory")
	tablesCmd.Flags().BoolVar(&tablesVerify, "verify", false, "only verify the tables")
}

func runTables(cmd *cobra.Command, args []string) error {
	dir := tablesDir
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir = cfg.Tables.Dir
	}

	tbl, err := tables.LoadDir(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if tablesVerify {
		d := tbl.Dump()
		fmt.Fprintf(out, "OK: %d headers, %d value tables, %d content types, %d accept values, %d extensions, %d methods\n",
			len(d.Headers), len(d.Values), len(d.ContentType), len(d.Accept), len(d.Extensions), len(d.Methods))
		return nil
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(tbl.Dump()); err != nil {
		return err
	}
	return enc.Close()
}
