package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd(a *app) *cobra.Command {
	var route string
	cmd := &cobra.Command{
		Use:   "reset <identity>",
		Short: "Restore a full quota for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.limiter()
			if err != nil {
				return err
			}

			identity := args[0]
			policy := l.PolicyFor(route)
			if err := l.Reset(cmd.Context(), identity, policy); err != nil {
				return fmt.Errorf("reset %s: %w", identity, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s (%s %d/%s)\n",
				identity, policy.Algorithm, policy.Rate, policy.Interval)
			return nil
		},
	}
	cmd.Flags().StringVarP(&route, "route", "r", "", "route whose policy applies (default policy when empty)")
	return cmd
}
