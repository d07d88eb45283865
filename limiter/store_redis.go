package limiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	rediscomp "github.com/KOMKZ/go-yogan-ratelimit/redis"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const defaultKeyPrefix = "ratelimit:"

// DialFunc opens a Redis client. It is called lazily and retried after failures.
type DialFunc func(ctx context.Context) (redis.UniversalClient, error)

// RedisStore Redis storage implementation
type RedisStore struct {
	keyPrefix string
	dial      DialFunc

	mu        sync.Mutex
	client    redis.UniversalClient
	ownClient bool
	closed    bool

	dials   singleflight.Group
	scripts sync.Map // script source -> *redis.Script
}

// NewRedisStore creates a store that connects on first use
func NewRedisStore(dial DialFunc, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{
		keyPrefix: keyPrefix,
		dial:      dial,
		ownClient: true,
	}
}

// NewRedisStoreWithClient wraps an existing client. Close leaves the client open.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{
		keyPrefix: keyPrefix,
		client:    client,
	}
}

// buildKey Construct the complete key
func (s *RedisStore) buildKey(key string) string {
	return s.keyPrefix + key
}

// conn returns the client. Concurrent callers share one dial and PING;
// a failed attempt is not cached, so the next call dials again.
func (s *RedisStore) conn(ctx context.Context) (redis.UniversalClient, error) {
	if client, err := s.current(); client != nil || err != nil {
		return client, err
	}

	ch := s.dials.DoChan("dial", func() (interface{}, error) {
		if client, err := s.current(); client != nil || err != nil {
			return client, err
		}
		return s.connect(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(redis.UniversalClient), nil
	}
}

// current the live client, nil while none has been dialled yet
func (s *RedisStore) current() (redis.UniversalClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return nil, ErrStoreClosed
	case s.client != nil:
		return s.client, nil
	case s.dial == nil:
		return nil, fmt.Errorf("%w: no redis dialer configured", ErrStoreUnavailable)
	}
	return nil, nil
}

// connect dials and pings without holding mu
func (s *RedisStore) connect(ctx context.Context) (redis.UniversalClient, error) {
	client, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = client.Close()
		return nil, ErrStoreClosed
	}
	s.client = client
	return client, nil
}

// Ping dials if needed, then pings the server
func (s *RedisStore) Ping(ctx context.Context) error {
	client, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := rediscomp.NewHealthChecker(client).Check(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get Retrieve value
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return "", err
	}
	val, err := client.Get(ctx, s.buildKey(key)).Result()
	if err != nil {
		return "", s.wrapErr("get", err)
	}
	return val, nil
}

// Set the value. ttl <= 0 persists the key (SET drops any old expiry).
func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	client, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return s.wrapErr("set", client.Set(ctx, s.buildKey(key), value, ttl).Err())
}

// Incr one script: a non-integer value restarts the counter at 1 with its
// expiry kept, atomically with the increment.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	res, err := s.eval(ctx, client, incrScript, []string{s.buildKey(key)})
	if err != nil {
		return 0, err
	}
	return toInt64(res), nil
}

// Expire refreshes the TTL of an existing key
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	ok, err := client.Expire(ctx, s.buildKey(key), ttl).Result()
	if err != nil {
		return false, s.wrapErr("expire", err)
	}
	return ok, nil
}

// Del removes keys
func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = s.buildKey(key)
	}
	n, err := client.Del(ctx, fullKeys...).Result()
	if err != nil {
		return 0, s.wrapErr("del", err)
	}
	return n, nil
}

// Eval runs a Lua script; keys are prefixed before the call
func (s *RedisStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = s.buildKey(key)
	}
	return s.eval(ctx, client, script, fullKeys, args...)
}

func (s *RedisStore) eval(ctx context.Context, client redis.UniversalClient, src string, keys []string, args ...interface{}) (interface{}, error) {
	cached, _ := s.scripts.LoadOrStore(src, redis.NewScript(src))
	res, err := cached.(*redis.Script).Run(ctx, client, keys, args...).Result()
	if err != nil {
		return nil, s.wrapErr("eval", err)
	}
	return res, nil
}

// Close closes the client when the store opened it
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.client != nil && s.ownClient {
		return s.client.Close()
	}
	return nil
}

// wrapErr separates "not found" and transport failures from reply errors
func (s *RedisStore) wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return ErrKeyNotFound
	case isNetworkErr(err):
		return fmt.Errorf("%w: redis %s: %v", ErrStoreUnavailable, op, err)
	default:
		return fmt.Errorf("redis %s: %w", op, err)
	}
}

// isNetworkErr anything that is not a server reply is treated as connectivity
func isNetworkErr(err error) bool {
	if errors.Is(err, redis.Nil) {
		return false
	}
	var replyErr redis.Error
	return !errors.As(err, &replyErr)
}

const incrScript = `
local n = redis.pcall('INCR', KEYS[1])
if type(n) == 'table' and n.err then
  redis.call('SET', KEYS[1], 0, 'KEEPTTL')
  n = redis.call('INCR', KEYS[1])
end
return n
`

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}
