package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newInspectCmd(a *app) *cobra.Command {
	var route string
	cmd := &cobra.Command{
		Use:   "inspect <identity>",
		Short: "Print the current usage of an identity without counting a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.limiter()
			if err != nil {
				return err
			}

			resp, err := usageOf(cmd.Context(), l, args[0], route)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVarP(&route, "route", "r", "", "route whose policy applies (default policy when empty)")
	return cmd
}
