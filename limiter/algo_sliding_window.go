package limiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// slidingWindowScript reads both windows, decides and increments atomically.
// KEYS: current window, previous window. ARGV: rate, interval seconds, now seconds.
// Returns {allowed, current count before increment, previous count}.
const slidingWindowScript = `
local rate = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local raw = redis.call('GET', KEYS[1])
local current = tonumber(raw)
if current == nil or current % 1 ~= 0 or current < 0 then
  current = 0
  if raw then
    redis.call('DEL', KEYS[1])
  end
end
local previous = tonumber(redis.call('GET', KEYS[2]))
if previous == nil or previous % 1 ~= 0 or previous < 0 then
  previous = 0
end

local position = (now % interval) / interval
local weighted = current + previous * (1 - position)

local allowed = 0
if weighted < rate then
  allowed = 1
  redis.call('INCR', KEYS[1])
  redis.call('EXPIRE', KEYS[1], interval * 2)
end
return {allowed, current, previous}
`

// SlidingWindow interpolates the previous window's count into the current one
type SlidingWindow struct {
	store Store
	now   Clock
	locks keyLocks
	scripted
}

// NewSlidingWindow creates the algorithm on store
func NewSlidingWindow(store Store, clock Clock) *SlidingWindow {
	if clock == nil {
		clock = time.Now
	}
	return &SlidingWindow{store: store, now: clock}
}

// Type algorithm name
func (sw *SlidingWindow) Type() AlgorithmType {
	return AlgorithmSlidingWindow
}

// windowState position of now relative to its window
type windowState struct {
	now        int64
	interval   int64
	currentKey string
	prevKey    string
}

func (sw *SlidingWindow) window(identity string, policy Policy) windowState {
	interval := policy.Interval.Seconds()
	now := sw.now().Unix()
	start := now - now%interval
	return windowState{
		now:        now,
		interval:   interval,
		currentKey: windowKey(identity, start),
		prevKey:    windowKey(identity, start-interval),
	}
}

func windowKey(identity string, start int64) string {
	return "sw:" + identity + ":" + strconv.FormatInt(start, 10)
}

// weighted current + previous * (1 - fraction of the window elapsed)
func (w windowState) weighted(current, previous int64) float64 {
	position := float64(w.now%w.interval) / float64(w.interval)
	return float64(current) + float64(previous)*(1-position)
}

// Check admits the request while the weighted count is below rate
func (sw *SlidingWindow) Check(ctx context.Context, identity string, policy Policy) (Decision, error) {
	if policy.Rate <= 0 {
		return Decision{}, fmt.Errorf("%w: rate must be positive, got %d", ErrInvalidPolicy, policy.Rate)
	}
	w := sw.window(identity, policy)

	res, ran, err := sw.tryEval(ctx, sw.store, slidingWindowScript,
		[]string{w.currentKey, w.prevKey}, policy.Rate, w.interval, w.now)
	if err != nil {
		return Decision{}, err
	}
	if ran {
		parts, ok := res.([]interface{})
		if !ok || len(parts) != 3 {
			return Decision{}, fmt.Errorf("sliding window: unexpected script reply %T", res)
		}
		allowed := toInt64(parts[0]) == 1
		return slidingWindowDecision(policy, w, allowed, w.weighted(toInt64(parts[1]), toInt64(parts[2]))), nil
	}

	unlock := sw.locks.lock(identity)
	defer unlock()

	current, previous, err := sw.counts(ctx, w)
	if err != nil {
		return Decision{}, err
	}
	weighted := w.weighted(current, previous)
	allowed := weighted < float64(policy.Rate)
	if allowed {
		if err := sw.record(ctx, w, current); err != nil {
			return Decision{}, err
		}
	}
	return slidingWindowDecision(policy, w, allowed, weighted), nil
}

// record counts one request. A counter that read as zero is rewritten rather
// than incremented, so absent, malformed and negative values all restart at 1.
func (sw *SlidingWindow) record(ctx context.Context, w windowState, current int64) error {
	ttl := ttlSeconds(2 * w.interval)
	if current == 0 {
		return sw.store.Set(ctx, w.currentKey, "1", ttl)
	}
	if _, err := sw.store.Incr(ctx, w.currentKey); err != nil {
		return err
	}
	_, err := sw.store.Expire(ctx, w.currentKey, ttl)
	return err
}

// Reset zeroes the current and previous windows
func (sw *SlidingWindow) Reset(ctx context.Context, identity string, policy Policy) error {
	w := sw.window(identity, policy)
	ttl := ttlSeconds(2 * w.interval)
	if err := sw.store.Set(ctx, w.currentKey, "0", ttl); err != nil {
		return err
	}
	return sw.store.Set(ctx, w.prevKey, "0", ttl)
}

// CurrentCount weighted count without recording a request
func (sw *SlidingWindow) CurrentCount(ctx context.Context, identity string, policy Policy) (float64, error) {
	w := sw.window(identity, policy)
	current, previous, err := sw.counts(ctx, w)
	if err != nil {
		return 0, err
	}
	return w.weighted(current, previous), nil
}

// Usage same as CurrentCount
func (sw *SlidingWindow) Usage(ctx context.Context, identity string, policy Policy) (float64, error) {
	return sw.CurrentCount(ctx, identity, policy)
}

func (sw *SlidingWindow) counts(ctx context.Context, w windowState) (int64, int64, error) {
	current, err := sw.readCount(ctx, w.currentKey)
	if err != nil {
		return 0, 0, err
	}
	previous, err := sw.readCount(ctx, w.prevKey)
	if err != nil {
		return 0, 0, err
	}
	return current, previous, nil
}

// readCount absent, malformed or negative counters read as zero
func (sw *SlidingWindow) readCount(ctx context.Context, key string) (int64, error) {
	raw, err := sw.store.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

func slidingWindowDecision(policy Policy, w windowState, allowed bool, weighted float64) Decision {
	rate := float64(policy.Rate)
	used := weighted
	if allowed {
		used++
	}

	d := Decision{
		Allowed:      allowed,
		Limit:        policy.Rate,
		Remaining:    int64(math.Min(rate, math.Max(0, math.Floor(rate-used)))),
		ResetSeconds: w.interval - w.now%w.interval,
		Policy:       policy,
	}
	if !allowed {
		d.RetryAfterSeconds = d.ResetSeconds
	}
	return d
}
