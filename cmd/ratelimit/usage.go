package main

import (
	"context"
	"math"
	"strings"

	"github.com/KOMKZ/go-yogan-ratelimit/limiter"
)

// usageOf shared by the admin endpoint and the inspect command
func usageOf(ctx context.Context, l *limiter.Limiter, identity, route string) (*UsageResponse, error) {
	policy := l.PolicyFor(route)
	used, err := l.Usage(ctx, identity, policy)
	if err != nil {
		return nil, err
	}

	remaining := policy.Rate - int64(math.Ceil(used))
	if remaining < 0 {
		remaining = 0
	}
	return &UsageResponse{
		Identity:  identity,
		Route:     route,
		Policy:    policy,
		Usage:     used,
		Remaining: remaining,
	}, nil
}

// descriptorFor turns "ip:<addr>", "apikey:<key>" or "user:<id>" into the
// request fields that resolve back to it; anything else is taken as an address.
func descriptorFor(identity, route string) limiter.RequestDescriptor {
	req := limiter.RequestDescriptor{Route: route}
	kind, value, ok := strings.Cut(identity, ":")
	switch {
	case ok && kind == "apikey":
		req.APIKey = value
	case ok && kind == "user":
		req.UserID = value
	case ok && kind == "ip":
		req.RemoteAddr = value
	default:
		req.RemoteAddr = identity
	}
	return req
}
