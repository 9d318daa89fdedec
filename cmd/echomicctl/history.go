package main

import (
	"time"

	"github.com/spf13/cobra"

	"echomic/internal/history"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent dictation sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(c.cfg.Paths.History)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("no sessions recorded")
				return nil
			}
			for _, r := range records {
				cmd.Printf("%s  %-8s %6s  %s\n",
					c.paint(dimStyle, r.StartedAt.Local().Format(time.DateTime)),
					r.Outcome,
					r.Duration.Round(100*time.Millisecond),
					r.Transcript,
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions to show")
	return cmd
}
