package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/gotify-dunst/internal/proc"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Print the D-Bus session used for notifications",
	Long: `Ensure a D-Bus session bus exists and print its address and pid in
KEY=VALUE form, suitable for eval in a shell:

  eval "$(gotify-dunst session)"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, err := ensureSession(cmd.Context(), proc.ExecRunner{})
		if err != nil {
			return err
		}
		for _, kv := range handle.Environ() {
			fmt.Fprintln(cmd.OutOrStdout(), kv)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}
