package limiter

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const defaultSweepInterval = time.Second

// MemoryStore in-process storage with a periodic sweeper
type MemoryStore struct {
	mu        sync.Mutex
	data      map[string]*memoryValue
	closed    bool
	now       Clock
	interval  time.Duration
	scheduler gocron.Scheduler
}

type memoryValue struct {
	data     string
	expireAt time.Time
}

func (v *memoryValue) expired(now time.Time) bool {
	return !v.expireAt.IsZero() && !now.Before(v.expireAt)
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithSweepInterval sets how often expired keys are reclaimed
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithMemoryClock replaces the time source
func WithMemoryClock(clock Clock) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewMemoryStore creates a memory store and starts its sweep job
func NewMemoryStore(opts ...MemoryOption) (*MemoryStore, error) {
	s := &MemoryStore{
		data:     make(map[string]*memoryValue),
		now:      time.Now,
		interval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create sweep scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("register sweep job: %w", err)
	}
	scheduler.Start()
	s.scheduler = scheduler

	return s, nil
}

// Get returns the live value for key
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrStoreClosed
	}
	val, ok := s.lookup(key)
	if !ok {
		return "", ErrKeyNotFound
	}
	return val.data, nil
}

// Set overwrites key. ttl <= 0 stores it without expiry.
func (s *MemoryStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	v := &memoryValue{data: value}
	if ttl > 0 {
		v.expireAt = s.now().Add(ttl)
	}
	s.data[key] = v
	return nil
}

// Incr increments under the store lock so concurrent callers never lose updates
func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	val, ok := s.lookup(key)
	if !ok {
		s.data[key] = &memoryValue{data: "1"}
		return 1, nil
	}

	// corrupt counters restart from zero
	n, err := strconv.ParseInt(val.data, 10, 64)
	if err != nil {
		n = 0
	}
	n++
	val.data = strconv.FormatInt(n, 10)
	return n, nil
}

// Expire refreshes the TTL of a live key
func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrStoreClosed
	}
	val, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	if ttl <= 0 {
		delete(s.data, key)
		return true, nil
	}
	val.expireAt = s.now().Add(ttl)
	return true, nil
}

// Del removes keys
func (s *MemoryStore) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	var removed int64
	for _, key := range keys {
		if _, ok := s.lookup(key); ok {
			removed++
		}
		delete(s.data, key)
	}
	return removed, nil
}

// Eval is not available in memory
func (s *MemoryStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return nil, ErrUnsupportedOperation
}

// Len number of stored entries, expired ones included until swept
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Close stops the sweeper and drops all data
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.data = make(map[string]*memoryValue)
	s.mu.Unlock()

	return s.scheduler.Shutdown()
}

// lookup returns the entry if it exists and is live; expired entries are dropped.
// Caller holds s.mu.
func (s *MemoryStore) lookup(key string) (*memoryValue, bool) {
	val, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if val.expired(s.now()) {
		delete(s.data, key)
		return nil, false
	}
	return val, true
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	now := s.now()
	for key, val := range s.data {
		if val.expired(now) {
			delete(s.data, key)
		}
	}
}
