package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkt.systems/shellpilot/internal/cleanview"
	"pkt.systems/shellpilot/internal/tokens"
)

func newCleanCmd() *cobra.Command {
	var countOnly bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Reconstruct the visual view of raw terminal output from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			cleaned := cleanview.Clean(string(data))
			if !countOnly {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), cleaned); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "tokens: %d\n", tokens.Count(cleaned))
			return err
		},
	}
	cmd.Flags().BoolVar(&countOnly, "count-only", false, "print only the token count")
	return cmd
}
