package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/teranos/hireflow/errors"
)

// DefaultLeaseKey is the Redis key replicas compete for before scanning
const DefaultLeaseKey = "hireflow:pulse:lease"

// Lease elects a single scanning replica per tick. Acquire returns true when
// the caller holds the lease for ttl; a holder may re-acquire to extend it.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// LocalLease serializes scans within one process
type LocalLease struct {
	mu    sync.Mutex
	until time.Time
	now   func() time.Time
}

// NewLocalLease creates a process-local lease
func NewLocalLease() *LocalLease {
	return &LocalLease{now: time.Now}
}

// Acquire succeeds when the lease is free or expired
func (l *LocalLease) Acquire(_ context.Context, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Before(l.until) {
		return false, nil
	}
	l.until = now.Add(ttl)
	return true, nil
}

// Release frees the lease
func (l *LocalLease) Release(context.Context) error {
	l.mu.Lock()
	l.until = time.Time{}
	l.mu.Unlock()
	return nil
}

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLease is a lease shared by every replica pointed at the same Redis
type RedisLease struct {
	client redis.Cmdable
	key    string
	token  string
}

// NewRedisLease creates a lease on key; an empty key uses DefaultLeaseKey
func NewRedisLease(client redis.Cmdable, key string) *RedisLease {
	if key == "" {
		key = DefaultLeaseKey
	}
	return &RedisLease{client: client, key: key, token: uuid.NewString()}
}

// Acquire takes the lease with SET NX, or extends it when this replica already holds it
func (l *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "acquire pulse lease")
	}
	if ok {
		return true, nil
	}

	holder, err := l.client.Get(ctx, l.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errors.Wrap(err, "read pulse lease")
	}
	if holder != l.token {
		return false, nil
	}
	if err := l.client.Expire(ctx, l.key, ttl).Err(); err != nil {
		return false, errors.Wrap(err, "extend pulse lease")
	}
	return true, nil
}

// Release deletes the lease if this replica holds it
func (l *RedisLease) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return errors.Wrap(err, "release pulse lease")
	}
	return nil
}
