package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Lease keeps concurrent scanner replicas from scanning at the same time.
type Lease interface {
	// Acquire returns false when another holder owns the lease.
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// localLease always grants the lease. Used when no Redis is configured.
type localLease struct{}

// NewLocalLease returns a lease for single-replica deployments.
func NewLocalLease() Lease {
	return localLease{}
}

func (localLease) Acquire(context.Context, time.Duration) (bool, error) { return true, nil }

func (localLease) Release(context.Context) error { return nil }

// releaseScript deletes the key only while it still holds our token, so an
// expired lease taken over by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a SET NX PX lease on a single key.
type RedisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

// NewRedisLease creates a lease on key. Each instance has its own token.
func NewRedisLease(client redis.UniversalClient, key string) *RedisLease {
	return &RedisLease{
		client: client,
		key:    key,
		token:  uuid.NewString(),
	}
}

// ConnectRedis parses a redis:// URL and checks the server is reachable.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func (l *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", l.key, err)
	}

	return ok, nil
}

func (l *RedisLease) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.key, err)
	}

	return nil
}
