package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

const keyPrefix = "illumyn:lease:"

// Redis shares leases across processes through redsync mutexes.
type Redis struct {
	log *logger.Logger
	rs  *redsync.Redsync
}

func NewRedis(log *logger.Logger, client redis.UniversalClient) *Redis {
	return &Redis{
		log: log.With("component", "RedisLease"),
		rs:  redsync.New(goredis.NewPool(client)),
	}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	m := r.rs.NewMutex(keyPrefix+key, redsync.WithExpiry(ttl), redsync.WithTries(1))
	if err := m.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	return &redisLease{log: r.log, key: key, m: m}, nil
}

type redisLease struct {
	log *logger.Logger
	key string
	m   *redsync.Mutex
}

func (l *redisLease) Renew(ctx context.Context) error {
	ok, err := l.m.ExtendContext(ctx)
	if err != nil || !ok {
		if err != nil {
			l.log.Warn("lease extend failed", "key", l.key, "error", err)
		}
		return ErrLost
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if _, err := l.m.UnlockContext(ctx); err != nil && !errors.Is(err, redsync.ErrLockAlreadyExpired) {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}
