package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/GenivalfSilva/Sistema-Compras/internal/seeder"
	"github.com/GenivalfSilva/Sistema-Compras/pkg/output"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the backend with demo solicitations",
	Long: `Create realistic solicitations, and optionally quotations, through the
API using the current session.

Examples:
  compras seed --count 50
  compras seed --count 20 --quotations 3 --seed 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var sc seeder.Config
		sc.Count, _ = cmd.Flags().GetInt("count")
		sc.Quotations, _ = cmd.Flags().GetInt("quotations")
		sc.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		sc.Seed, _ = cmd.Flags().GetInt64("seed")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		logger.InfoContext(cmd.Context(), "seeding",
			"count", sc.Count, "quotations", sc.Quotations, "concurrency", sc.Concurrency)

		res, err := seeder.NewRunner(a.client, sc, logger).Run(cmd.Context())
		if err != nil {
			return err
		}
		if done, err := output.Structured(outputFormat, res); done || err != nil {
			return err
		}
		output.Success("Created %d solicitations and %d quotations in %s", len(res.Created), res.Quotations, res.Duration.Round(time.Millisecond))
		if res.Failed > 0 {
			output.Warn("%d requests failed; run with --log-level warn for details", res.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().Int("count", 10, "Solicitations to create")
	seedCmd.Flags().Int("quotations", 0, "Quotations per solicitation")
	seedCmd.Flags().Int("concurrency", 4, "Requests in flight")
	seedCmd.Flags().Int64("seed", 0, "Random seed for reproducible data (0 is random)")
}
