package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pomobridge/internal/config"
	"pomobridge/internal/storage"
	logx "pomobridge/pkg/logx"
)

func historyCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently recorded state transitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			d, err := cfg.Durations()
			if err != nil {
				return err
			}
			store, err := storage.Open(storage.Config{
				Driver:      cfg.Storage.Driver,
				Path:        config.ExpandPath(cfg.Storage.Path),
				BusyTimeout: d.BusyTimeout,
			}, logx.Nop())
			if err != nil {
				return err
			}
			if store == nil {
				return storage.ErrDisabled
			}
			defer store.Close()

			recs, err := store.RecentTransitions(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transitions recorded")
				return nil
			}
			for _, r := range recs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s -> %-8s  %4dm  %d/%d\n",
					r.At.Local().Format(time.DateTime), r.From, r.To, r.Minutes, r.Count, r.Total)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of transitions to show")
	return cmd
}
