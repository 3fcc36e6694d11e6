package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/shellpilot/internal/danger"
)

func newCheckCommandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-command <command>",
		Short: "Print the danger verdict for a shell command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.Join(args, " ")
			if reason, dangerous := danger.Match(command); dangerous {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "dangerous: %s\n", reason)
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "safe")
			return err
		},
	}
}
