package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/plantsearch/internal/preflight"
)

func newCheckCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "check",
		Aliases: []string{"doctor"},
		Short:   "Check that a refresh can run",
		Long: `Run the refresh preflight checks: the plant database opens and has
its tables, the index directory is writable with enough free space, the
file descriptor limit is sufficient and no other refresh holds the lock.

Exits non-zero when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			checker := preflight.New(
				preflight.WithOutput(cmd.OutOrStdout()),
				preflight.WithVerbose(verbose),
			)
			results := checker.RunAll(cmd.Context(), cfg)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"status": checker.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return fmt.Errorf("preflight failed: %s", checker.SummaryStatus(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
