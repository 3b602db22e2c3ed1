package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ceejiggy/shinycounter/internal/domain/model"
	"github.com/ceejiggy/shinycounter/internal/domain/probability"
)

func newOddsCmd() *cobra.Command {
	var trials, numerator, denominator int
	cmd := &cobra.Command{
		Use:   "odds",
		Short: "Print the chance of at least one shiny after N encounters",
		Example: `  shinycounter odds --trials 1000
  shinycounter odds --trials 300 --numerator 1 --denominator 1365`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := probability.Cumulative(trials, numerator, denominator)
			_, err := fmt.Fprintln(cmd.OutOrStdout(), probability.FormatPercent(p))
			return err
		},
	}
	cmd.Flags().IntVarP(&trials, "trials", "n", 0, "number of encounters")
	cmd.Flags().IntVar(&numerator, "numerator", model.DefaultNumerator, "odds numerator")
	cmd.Flags().IntVar(&denominator, "denominator", model.DefaultDenominator, "odds denominator")
	return cmd
}
