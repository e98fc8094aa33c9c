package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pomobridge/internal/status"
)

func decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [payload]",
		Short: "Decode a raw status message (argument or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			if len(args) == 1 {
				raw = []byte(args[0])
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = bytes.TrimSpace(b)
			}

			snap, err := status.Decode(raw)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state:     %s\n", snap.State)
			fmt.Fprintf(out, "remaining: %s (%s, %dm)\n", snap.Remaining, snap.Format(), snap.RemainingMinutes())
			fmt.Fprintf(out, "progress:  %d/%d\n", snap.Count, snap.Total)
			if d := snap.Describe(); d != "" {
				fmt.Fprintf(out, "describe:  %s\n", d)
			}
			return nil
		},
	}
}
