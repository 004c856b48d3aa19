package runlock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is the non-blocking exclusive lock guarding a whole scheduler run.
// TryLock either takes the lock immediately or reports it held elsewhere.
type Lock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// RedisLock implements Lock with SET NX plus a TTL so a crashed run cannot
// wedge the scheduler forever.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func NewRedisLock(client *redis.Client, key, token string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, token: token, ttl: ttl}
}

func (l *RedisLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
}

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Unlock releases only our own lock; an expired lock reacquired by a later
// run is left untouched.
func (l *RedisLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
