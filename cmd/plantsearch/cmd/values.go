package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/plantsearch/internal/store"
)

func newValuesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "values <property>",
		Short: "List the distinct values of a property",
		Long: `List every distinct value a property takes across all plants and
locales, sorted. Useful for building filters and checking the vocabulary's
keywords against the data.`,
		Example: `  plantsearch values gebruik
  plantsearch values flower --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cleanup := startLogging(cfg)
			defer cleanup()

			plants, err := store.OpenPlantStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer func() { _ = plants.Close() }()

			values, err := plants.PropertyValues(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			slog.Debug("property_values", slog.String("property", args[0]), slog.Int("count", len(values)))

			if jsonOutput {
				if values == nil {
					values = []string{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(values)
			}
			for _, v := range values {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
