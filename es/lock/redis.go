package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"

	"github.com/getpup/pupstore/es"
)

// DefaultRedisTTL is how long a Redis lock survives a crashed holder.
const DefaultRedisTTL = 30 * time.Second

// releaseScript deletes the key only when it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisClient is the subset of *redis.Client used by Redis.
type RedisClient interface {
	SetNX(key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisOption configures a Redis lock.
type RedisOption func(*Redis)

// WithRedisPrefix sets the key prefix. Defaults to "pupstore:lock:".
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithRedisTTL sets the key expiry.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithRedisTimeout sets how long Acquire polls before giving up.
func WithRedisTimeout(timeout time.Duration) RedisOption {
	return func(r *Redis) {
		r.timeout = timeout
	}
}

// WithRedisRetryInterval sets the polling interval of Acquire.
func WithRedisRetryInterval(interval time.Duration) RedisOption {
	return func(r *Redis) {
		r.interval = interval
	}
}

// Redis is a write lock held in Redis, for writers spread over processes
// that do not share database sessions. The conn argument is ignored.
type Redis struct {
	client   RedisClient
	prefix   string
	ttl      time.Duration
	timeout  time.Duration
	interval time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedis creates a Redis write lock.
func NewRedis(client RedisClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client:   client,
		prefix:   "pupstore:lock:",
		ttl:      DefaultRedisTTL,
		timeout:  DefaultTimeout,
		interval: DefaultRetryInterval,
		tokens:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire implements WriteLock.
func (r *Redis) Acquire(ctx context.Context, _ es.DBTX, resource string) (bool, error) {
	token := uuid.NewString()
	key := r.prefix + resource

	ok, err := Poll(ctx, r.timeout, r.interval, func(context.Context) (bool, error) {
		return r.client.SetNX(key, token, r.ttl).Result()
	})
	if err != nil {
		return false, fmt.Errorf("failed to acquire redis lock %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	r.mu.Lock()
	r.tokens[resource] = token
	r.mu.Unlock()
	return true, nil
}

// Release implements WriteLock. It returns false when the lock expired or
// was never acquired by this instance.
func (r *Redis) Release(_ context.Context, _ es.DBTX, resource string) (bool, error) {
	r.mu.Lock()
	token, ok := r.tokens[resource]
	delete(r.tokens, resource)
	r.mu.Unlock()

	if !ok {
		return false, nil
	}

	key := r.prefix + resource
	n, err := r.client.Eval(releaseScript, []string{key}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to release redis lock %s: %w", key, err)
	}
	return n == 1, nil
}

var _ WriteLock = (*Redis)(nil)
