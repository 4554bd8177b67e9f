// Package cmd implements CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List the fingerprint report modes",
	Long: `List the report modes: the built-in presets plus any defined under
analyzer.modes in the config file. Each mode is a mask of field:cast pairs,
where the cast is s (string), i (integer) or f (float).`,
	RunE: runModes,
}

var modesFormat string

func init() {
	modesCmd.Flags().StringVar(&modesFormat, "format", "text", "output format: text or json")
}

type modeView struct {
	ID          int      `json:"id"`
	Mask        string   `json:"mask"`
	Fields      []string `json:"fields"`
	Description string   `json:"description"`
}

func runModes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	modes := cfg.Analyzer.ModeSet()

	views := make([]modeView, 0, len(modes))
	for _, id := range modes.IDs() {
		m := modes[id]
		fields := make([]string, len(m.Mask))
		for i, e := range m.Mask {
			fields[i] = e.Field.String()
		}
		views = append(views, modeView{ID: id, Mask: m.Mask.String(), Fields: fields, Description: m.Description})
	}

	out := cmd.OutOrStdout()
	switch modesFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "text":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MODE\tMASK\tDESCRIPTION")
		for _, v := range views {
			marker := ""
			if v.ID == cfg.Analyzer.Mode {
				marker = " *"
			}
			fmt.Fprintf(tw, "%d%s\t%s\t%s\n", v.ID, marker, v.Mask, v.Description)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("invalid format %q, must be json or text", modesFormat)
	}
}
