package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ceejiggy/shinycounter/internal/adapters/repository"
	"github.com/ceejiggy/shinycounter/internal/config"
	"github.com/ceejiggy/shinycounter/internal/domain/counter"
	"github.com/ceejiggy/shinycounter/internal/domain/probability"
	"github.com/ceejiggy/shinycounter/pkg/logger"
)

var errNoStorage = errors.New("no storage configured; pass --storage or set storage.path")

// openPersistence opens the SQLite file at path, falling back to the
// configured storage path. The file must already exist.
func openPersistence(ctx context.Context, c *cli, path string) (*counter.Persistence, io.Closer, error) {
	if path == "" {
		path = c.cfg.Storage.Path
	}
	if path == "" {
		return nil, nil, errNoStorage
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("storage %s: %w", path, err)
	}
	db, err := repository.OpenSQLite(ctx, path, repository.WithBusyTimeout(config.Millis(c.cfg.Storage.BusyTimeoutMS)))
	if err != nil {
		return nil, nil, err
	}
	p := counter.NewPersistence(db, counter.WithPersistenceLogger(logger.Named("persistence")))
	return p, db, nil
}

type counterRow struct {
	Index       int     `json:"index"`
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Count       int     `json:"count"`
	Numerator   int     `json:"numerator"`
	Denominator int     `json:"denominator"`
	Probability float64 `json:"probability"`
	Home        bool    `json:"home"`
	Selected    bool    `json:"selected"`
}

func newCountersCmd(c *cli) *cobra.Command {
	var (
		storage string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "counters",
		Short: "List persisted counters with their odds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, closer, err := openPersistence(ctx, c, storage)
			if err != nil {
				return err
			}
			defer closer.Close()

			r := p.Read(ctx)
			for _, issue := range r.Issues {
				logger.Get().Warn(ctx, "stored value ignored", logger.Error(issue))
			}

			rows := make([]counterRow, 0, len(r.Counters))
			for i, ct := range r.Counters {
				rows = append(rows, counterRow{
					Index:       i,
					ID:          string(ct.ID),
					Name:        ct.DisplayName(i),
					Count:       ct.Count,
					Numerator:   ct.ProbabilityNumerator,
					Denominator: ct.ProbabilityDenominator,
					Probability: probability.Cumulative(ct.Count, ct.ProbabilityNumerator, ct.ProbabilityDenominator),
					Home:        slices.Contains(r.Home, ct.ID),
					Selected:    i == r.Selected,
				})
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			return printCounters(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&storage, "storage", "", "SQLite file (default: storage.path)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func printCounters(w io.Writer, rows []counterRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no counters")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\t#\tNAME\tCOUNT\tODDS\tCHANCE\tHOME")
	for _, r := range rows {
		cursor, home := "", ""
		if r.Selected {
			cursor = "*"
		}
		if r.Home {
			home = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d/%d\t%s\t%s\n",
			cursor, r.Index+1, r.Name, r.Count, r.Numerator, r.Denominator,
			probability.FormatPercent(r.Probability), home)
	}
	return tw.Flush()
}
