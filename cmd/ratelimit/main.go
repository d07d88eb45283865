// Command ratelimit runs and operates the rate limiter: a demo HTTP server
// plus check, reset, inspect, bench and token utilities.
package main

import (
	"context"
	"os"
)

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, &app{}); err != nil {
		os.Exit(1)
	}
}
