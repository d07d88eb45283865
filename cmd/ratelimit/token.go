package main

import (
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/flagx"
	"github.com/KOMKZ/go-yogan-ratelimit/jwt"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/cobra"
)

// tokenRequest flags of the token command
type tokenRequest struct {
	Subject string        `flag:"subject,s" usage:"token subject, the user id the limiter sees" required:"true"`
	TTL     time.Duration `flag:"ttl" usage:"lifetime (default jwt.ttl)"`
	Roles   []string      `flag:"roles" usage:"roles claim"`
}

// Validate implements the flagx validation hook
func (r *tokenRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Subject, validation.Required),
	)
}

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token accepted by serve when jwt is enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req tokenRequest
			if err := flagx.ParseFlags(cmd, &req); err != nil {
				return err
			}

			var cfg jwt.Config
			if err := a.loader.UnmarshalKey("jwt", &cfg); err != nil {
				return fmt.Errorf("read jwt config: %w", err)
			}
			if req.TTL > 0 {
				cfg.TTL = req.TTL
			}

			// signing only needs the secret; jwt.enabled is the serve-side switch
			tm, err := jwt.NewTokenManager(cfg, logger.GetLogger("jwt"))
			if err != nil {
				return err
			}

			var claims map[string]interface{}
			if len(req.Roles) > 0 {
				claims = map[string]interface{}{"roles": req.Roles}
			}
			token, err := tm.GenerateAccessToken(cmd.Context(), req.Subject, claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	if err := flagx.BindFlags(cmd, &tokenRequest{}); err != nil {
		panic(err)
	}
	return cmd
}
