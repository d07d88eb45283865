package main

import (
	"encoding/json"
	"fmt"

	"github.com/KOMKZ/go-yogan-ratelimit/flagx"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/cobra"
)

// checkRequest flags of the check command
type checkRequest struct {
	Identity string `flag:"identity,i" usage:"ip:<addr>, apikey:<key> or user:<id>" required:"true"`
	Route    string `flag:"route,r" usage:"route used for policy lookup" default:"/"`
	Count    int    `flag:"count,n" usage:"number of checks to run" default:"1"`
}

// Validate implements the flagx validation hook
func (r *checkRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Identity, validation.Required),
		validation.Field(&r.Count, validation.Required, validation.Min(1)),
	)
}

// checkResult one line of check output
type checkResult struct {
	Allowed           bool   `json:"allowed"`
	Identity          string `json:"identity"`
	Limit             int64  `json:"limit"`
	Remaining         int64  `json:"remaining"`
	ResetSeconds      int64  `json:"reset_seconds"`
	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"`
}

func newCheckCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Count requests for an identity and print each decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req checkRequest
			if err := flagx.ParseFlags(cmd, &req); err != nil {
				return err
			}

			l, err := a.limiter()
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for i := 0; i < req.Count; i++ {
				d, err := l.Check(cmd.Context(), descriptorFor(req.Identity, req.Route))
				if err != nil {
					return fmt.Errorf("check %s: %w", req.Identity, err)
				}
				if err := enc.Encode(checkResult{
					Allowed:           d.Allowed,
					Identity:          d.Identity,
					Limit:             d.Limit,
					Remaining:         d.Remaining,
					ResetSeconds:      d.ResetSeconds,
					RetryAfterSeconds: d.RetryAfterSeconds,
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	if err := flagx.BindFlags(cmd, &checkRequest{}); err != nil {
		panic(err)
	}
	return cmd
}
