package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd(c *cli) *cobra.Command {
	var (
		storage string
		yes     bool
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all persisted counters, home ids and settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			p, closer, err := openPersistence(cmd.Context(), c, storage)
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := p.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "state cleared")
			return err
		},
	}
	cmd.Flags().StringVar(&storage, "storage", "", "SQLite file (default: storage.path)")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
