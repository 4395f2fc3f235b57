package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease key only when it still holds our token,
// so a lease that expired and was re-acquired elsewhere is never released
// by the old holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// Lease is a single-holder lock backed by a Redis key with a TTL. The chain
// poller uses it to guarantee one polling instance per deployment; a second
// process fails to acquire and stays passive.
type Lease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewLease creates a lease on the given key with the given TTL.
func NewLease(client *redis.Client, key string, ttl time.Duration) *Lease {
	return &Lease{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire attempts to take the lease. It reports false when another holder
// owns it.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
}

// Renew extends the lease TTL. It reports false when the lease was lost,
// in which case the holder must stop its protected work.
func (l *Lease) Renew(ctx context.Context) (bool, error) {
	res, err := l.client.Eval(ctx, renewScript, []string{l.key}, l.token, l.ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	n, ok := res.(int64)
	return ok && n == 1, nil
}

// Release gives the lease up if we still hold it.
func (l *Lease) Release(ctx context.Context) error {
	return l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err()
}
