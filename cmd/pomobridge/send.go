package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pomobridge/internal/config"
	"pomobridge/internal/server"
	"pomobridge/internal/status"
)

func sendCmd(opts *rootOptions) *cobra.Command {
	var (
		state     string
		remaining time.Duration
		count     uint8
		total     uint8
		socket    string
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Publish one status message to the bridge socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := status.ParseState(state)
			if err != nil {
				return err
			}
			if socket == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				socket = cfg.Socket.Path
			}
			snap := status.Snapshot{State: st, Remaining: remaining, Count: count, Total: total}
			raw, err := status.Encode(snap)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := server.Send(ctx, config.ExpandPath(socket), raw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent", snap)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&state, "state", "running", "timer state: running, breaking, complete, paused, unknown")
	f.DurationVar(&remaining, "remaining", 25*time.Minute, "time until the target; negative means past it")
	f.Uint8Var(&count, "count", 0, "completed pomodoros")
	f.Uint8Var(&total, "total", 4, "pomodoros in the session")
	f.StringVar(&socket, "socket", "", "socket path (default: socket.path from config)")
	return cmd
}
