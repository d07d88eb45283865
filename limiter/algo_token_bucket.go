package limiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// tokenBucketScript refill, consume and persist in one round trip.
// KEYS: tokens, last refill ms. ARGV: rate, interval seconds, now ms.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local tokens = tonumber(redis.call('GET', KEYS[1]))
if tokens == nil then
  tokens = rate
end
local last = tonumber(redis.call('GET', KEYS[2]))
if last == nil then
  last = now
end

local elapsed = (now - last) / 1000
if elapsed < 0 then
  elapsed = 0
end
tokens = tokens + elapsed * (rate / interval)
if tokens > rate then
  tokens = rate
end
if tokens < 0 then
  tokens = 0
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('SET', KEYS[1], tostring(tokens), 'EX', interval)
redis.call('SET', KEYS[2], tostring(now), 'EX', interval)
return {allowed, tostring(tokens)}
`

// TokenBucket refills continuously at rate/interval tokens per second
type TokenBucket struct {
	store Store
	now   Clock
	locks keyLocks
	scripted
}

// NewTokenBucket creates the algorithm on store
func NewTokenBucket(store Store, clock Clock) *TokenBucket {
	if clock == nil {
		clock = time.Now
	}
	return &TokenBucket{store: store, now: clock}
}

// Type algorithm name
func (tb *TokenBucket) Type() AlgorithmType {
	return AlgorithmTokenBucket
}

func tokenKeys(identity string) (string, string) {
	key := "tb:" + identity
	return key, key + ":last"
}

// Check consumes one token if at least one is available
func (tb *TokenBucket) Check(ctx context.Context, identity string, policy Policy) (Decision, error) {
	if policy.Rate <= 0 {
		return Decision{}, fmt.Errorf("%w: rate must be positive, got %d", ErrInvalidPolicy, policy.Rate)
	}
	interval := policy.Interval.Seconds()
	nowMs := tb.now().UnixMilli()
	tokensKey, lastKey := tokenKeys(identity)

	res, ran, err := tb.tryEval(ctx, tb.store, tokenBucketScript,
		[]string{tokensKey, lastKey}, policy.Rate, interval, nowMs)
	if err != nil {
		return Decision{}, err
	}
	if ran {
		allowed, tokens, err := parseTokenBucketReply(res)
		if err != nil {
			return Decision{}, err
		}
		return tokenBucketDecision(policy, interval, allowed, tokens), nil
	}

	unlock := tb.locks.lock(identity)
	defer unlock()

	tokens, err := tb.available(ctx, identity, policy, interval, nowMs)
	if err != nil {
		return Decision{}, err
	}
	allowed := tokens >= 1
	if allowed {
		tokens--
	}

	ttl := ttlSeconds(interval)
	if err := tb.store.Set(ctx, tokensKey, formatTokens(tokens), ttl); err != nil {
		return Decision{}, err
	}
	if err := tb.store.Set(ctx, lastKey, strconv.FormatInt(nowMs, 10), ttl); err != nil {
		return Decision{}, err
	}
	return tokenBucketDecision(policy, interval, allowed, tokens), nil
}

// Reset fills the bucket and restarts the refill clock
func (tb *TokenBucket) Reset(ctx context.Context, identity string, policy Policy) error {
	interval := policy.Interval.Seconds()
	tokensKey, lastKey := tokenKeys(identity)
	ttl := ttlSeconds(interval)

	if err := tb.store.Set(ctx, tokensKey, strconv.FormatInt(policy.Rate, 10), ttl); err != nil {
		return err
	}
	return tb.store.Set(ctx, lastKey, strconv.FormatInt(tb.now().UnixMilli(), 10), ttl)
}

// Usage tokens consumed and not yet refilled
func (tb *TokenBucket) Usage(ctx context.Context, identity string, policy Policy) (float64, error) {
	tokens, err := tb.available(ctx, identity, policy, policy.Interval.Seconds(), tb.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return float64(policy.Rate) - tokens, nil
}

// available stored tokens plus refill up to nowMs
func (tb *TokenBucket) available(ctx context.Context, identity string, policy Policy, interval, nowMs int64) (float64, error) {
	tokensKey, lastKey := tokenKeys(identity)
	rate := float64(policy.Rate)

	tokens, err := tb.readFloat(ctx, tokensKey, rate)
	if err != nil {
		return 0, err
	}
	last, err := tb.readFloat(ctx, lastKey, float64(nowMs))
	if err != nil {
		return 0, err
	}

	elapsed := math.Max(0, float64(nowMs)-last) / 1000
	tokens += elapsed * rate / float64(interval)
	return math.Min(rate, math.Max(0, tokens)), nil
}

// readFloat treats absent and malformed values as def
func (tb *TokenBucket) readFloat(ctx context.Context, key string, def float64) (float64, error) {
	raw, err := tb.store.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def, nil
	}
	return v, nil
}

func tokenBucketDecision(policy Policy, interval int64, allowed bool, tokens float64) Decision {
	rate := float64(policy.Rate)
	refillPerSecond := rate / float64(interval)

	d := Decision{
		Allowed:   allowed,
		Limit:     policy.Rate,
		Remaining: int64(math.Min(rate, math.Max(0, math.Floor(tokens)))),
		Policy:    policy,
	}
	if allowed {
		d.ResetSeconds = int64(math.Ceil((rate - tokens) / refillPerSecond))
	} else {
		d.ResetSeconds = int64(math.Ceil((1 - tokens) / refillPerSecond))
		d.RetryAfterSeconds = d.ResetSeconds
	}
	if d.ResetSeconds < 0 {
		d.ResetSeconds = 0
	}
	return d
}

func parseTokenBucketReply(res interface{}) (bool, float64, error) {
	parts, ok := res.([]interface{})
	if !ok || len(parts) != 2 {
		return false, 0, fmt.Errorf("token bucket: unexpected script reply %T", res)
	}
	raw, _ := parts[1].(string)
	tokens, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false, 0, fmt.Errorf("token bucket: bad token count %q", raw)
	}
	return toInt64(parts[0]) == 1, tokens, nil
}

func formatTokens(tokens float64) string {
	return strconv.FormatFloat(tokens, 'f', -1, 64)
}
