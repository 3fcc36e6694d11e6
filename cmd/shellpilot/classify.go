package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkt.systems/shellpilot/internal/cleanview"
	"pkt.systems/shellpilot/internal/termstate"
)

func newClassifyCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify terminal output read from stdin",
		Long: "Reads terminal output on stdin, reconstructs the visual view, and " +
			"prints the interrupt-safety verdict plus any detected full-screen program.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			text := string(data)
			if !raw {
				text = cleanview.Clean(text)
			}
			state := termstate.Classify(text)
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "state: %s\n", state); err != nil {
				return err
			}
			if program := termstate.DetectProgram(text); program != "" {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "program: %s\n", program); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "skip escape-sequence reconstruction")
	return cmd
}
