package keylock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
)

const (
	// DefaultTTL bounds how long a crashed holder can block a key.
	DefaultTTL = 2 * time.Minute

	// DefaultPoll is the retry interval while a key is held elsewhere.
	DefaultPoll = 100 * time.Millisecond

	keyPrefix = "hivepress:lock:"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process talking to the same Redis.
// Locks expire after TTL so a crashed holder cannot block a key forever.
type Redis struct {
	client *redis.Client
	TTL    time.Duration
	Poll   time.Duration
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewRedisWithClient(client), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, TTL: DefaultTTL, Poll: DefaultPoll}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	name := keyPrefix + key
	client := r.client.WithContext(ctx)

	ticker := time.NewTicker(r.Poll)
	defer ticker.Stop()

	for {
		ok, err := client.SetNX(name, token, r.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		// r.client, not client: release must run after ctx is cancelled.
		once.Do(func() { releaseScript.Run(r.client, []string{name}, token) })
	}, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
