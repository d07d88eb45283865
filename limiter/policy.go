package limiter

import (
	"fmt"
	"net"
	"strings"
)

// Interval named quota period
type Interval string

const (
	IntervalSecond Interval = "second"
	IntervalMinute Interval = "minute"
	IntervalHour   Interval = "hour"
	IntervalDay    Interval = "day"
	IntervalWeek   Interval = "week"
	IntervalMonth  Interval = "month"
)

const defaultIntervalSeconds = 60

var intervalSeconds = map[Interval]int64{
	IntervalSecond: 1,
	IntervalMinute: 60,
	IntervalHour:   3600,
	IntervalDay:    86400,
	IntervalWeek:   604800,
	IntervalMonth:  2592000,
}

// Seconds length of the interval. Unknown names fall back to one minute.
func (i Interval) Seconds() int64 {
	if s, ok := intervalSeconds[Interval(strings.ToLower(strings.TrimSpace(string(i))))]; ok {
		return s
	}
	return defaultIntervalSeconds
}

// Policy rate, interval and algorithm applied to one identity/route
type Policy struct {
	Rate      int64         `mapstructure:"rate" json:"rate"`
	Interval  Interval      `mapstructure:"interval" json:"interval"`
	Algorithm AlgorithmType `mapstructure:"algorithm" json:"algorithm,omitempty"`
}

// Validate rejects policies that cannot be evaluated
func (p Policy) Validate() error {
	if p.Rate <= 0 {
		return fmt.Errorf("%w: rate must be positive, got %d", ErrInvalidPolicy, p.Rate)
	}
	switch p.Algorithm {
	case AlgorithmTokenBucket, AlgorithmSlidingWindow:
		return nil
	default:
		return fmt.Errorf("%w: unknown algorithm %q", ErrInvalidPolicy, p.Algorithm)
	}
}

// Decision result of one check
type Decision struct {
	Allowed           bool   `json:"allowed"`
	Limit             int64  `json:"limit"`
	Remaining         int64  `json:"remaining"`
	ResetSeconds      int64  `json:"reset_seconds"`
	RetryAfterSeconds int64  `json:"retry_after_seconds"`
	Identity          string `json:"identity"`
	Policy            Policy `json:"policy"`
}

// ClientIdentifier how clients are told apart
type ClientIdentifier string

const (
	IdentifyByIP     ClientIdentifier = "ip"
	IdentifyByUserID ClientIdentifier = "user_id"
)

// RequestDescriptor the request attributes a check needs. Adapters fill it in.
type RequestDescriptor struct {
	RemoteAddr   string // peer address, host or host:port
	ForwardedFor string // raw X-Forwarded-For chain
	APIKey       string
	UserID       string // authenticated user, if any
	Route        string
}

const unknownIdentity = "ip:unknown"

// ResolveIdentity picks user id, then API key, then client IP
func ResolveIdentity(req RequestDescriptor, by ClientIdentifier) string {
	if by == IdentifyByUserID && req.UserID != "" {
		return "user:" + req.UserID
	}
	if req.APIKey != "" {
		return "apikey:" + req.APIKey
	}
	if ip := clientIP(req); ip != "" {
		return "ip:" + ip
	}
	return unknownIdentity
}

func clientIP(req RequestDescriptor) string {
	if req.ForwardedFor != "" {
		first, _, _ := strings.Cut(req.ForwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	addr := strings.TrimSpace(req.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// ResolvePolicy exact route match replaces the default wholesale
func ResolvePolicy(route string, def Policy, overrides map[string]Policy) Policy {
	if p, ok := overrides[route]; ok {
		return p
	}
	return def
}
