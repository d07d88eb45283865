package main

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/flagx"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
)

// benchRequest flags of the bench command
type benchRequest struct {
	Requests    int    `flag:"requests,n" usage:"total checks" default:"1000"`
	Concurrency int    `flag:"concurrency,w" usage:"worker goroutines" default:"50"`
	Identities  int    `flag:"identities" usage:"distinct ip identities the checks are spread over" default:"1"`
	Route       string `flag:"route,r" usage:"route used for policy lookup" default:"/bench"`
}

// Validate implements the flagx validation hook
func (r *benchRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Requests, validation.Required, validation.Min(1)),
		validation.Field(&r.Concurrency, validation.Required, validation.Min(1)),
		validation.Field(&r.Identities, validation.Required, validation.Min(1)),
	)
}

// benchReport bench command output
type benchReport struct {
	Requests  int64   `json:"requests"`
	Allowed   int64   `json:"allowed"`
	Denied    int64   `json:"denied"`
	Errors    int64   `json:"errors"`
	ElapsedMs int64   `json:"elapsed_ms"`
	PerSecond float64 `json:"per_second"`
}

func newBenchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Fire concurrent checks and report allowed and denied counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req benchRequest
			if err := flagx.ParseFlags(cmd, &req); err != nil {
				return err
			}

			l, err := a.limiter()
			if err != nil {
				return err
			}

			pool, err := ants.NewPool(req.Concurrency)
			if err != nil {
				return fmt.Errorf("create worker pool: %w", err)
			}
			defer pool.Release()

			var (
				allowed, denied, failed atomic.Int64
				wg                      sync.WaitGroup
			)
			ctx := cmd.Context()
			start := time.Now()
			for i := 0; i < req.Requests; i++ {
				identity := fmt.Sprintf("ip:10.0.%d.%d", (i%req.Identities)/256, (i%req.Identities)%256)
				wg.Add(1)
				err := pool.Submit(func() {
					defer wg.Done()
					d, err := l.Check(ctx, descriptorFor(identity, req.Route))
					switch {
					case err != nil:
						failed.Add(1)
					case d.Allowed:
						allowed.Add(1)
					default:
						denied.Add(1)
					}
				})
				if err != nil {
					wg.Done()
					failed.Add(1)
				}
			}
			wg.Wait()
			elapsed := time.Since(start)

			report := benchReport{
				Requests:  int64(req.Requests),
				Allowed:   allowed.Load(),
				Denied:    denied.Load(),
				Errors:    failed.Load(),
				ElapsedMs: elapsed.Milliseconds(),
			}
			if elapsed > 0 {
				report.PerSecond = float64(req.Requests) / elapsed.Seconds()
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
		},
	}
	if err := flagx.BindFlags(cmd, &benchRequest{}); err != nil {
		panic(err)
	}
	return cmd
}
