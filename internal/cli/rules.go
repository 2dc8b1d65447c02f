package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"log-sentinel/internal/rules"
	"log-sentinel/internal/utils"

	"github.com/spf13/cobra"
)

func newRulesCommand(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the active detection rules",
		Long: `Print the detection rule catalog the service would load: the configured
rules file, the inline rules of the config file, or the builtin catalog.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, _, err := utils.LoadConfigOrDefault(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config %s: %w", opts.configPath, err)
			}
			defs, from, err := utils.LoadRuleCatalog(config)
			if err != nil {
				return err
			}
			if err := rules.Validate(defs); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(defs)
			}

			fmt.Fprintf(out, "%d rules (%s)\n\n", len(defs), from)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSEVERITY\tTHRESHOLD\tMITRE\tNAME")
			for _, def := range defs {
				threshold := "-"
				if def.Threshold > 0 {
					threshold = fmt.Sprintf("%d/%ds", def.Threshold, def.WindowSeconds)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", def.ID, def.Severity, threshold, def.MitreAttack, def.Name)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")
	return cmd
}
