package redislock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/yungbote/simgraph/internal/pkg/errors"
	"github.com/yungbote/simgraph/internal/platform/logger"
)

// Locker guards a pipeline run so two runs never pass the idempotency gate
// against the same empty store at once.
type Locker interface {
	// Acquire returns ErrLocked when another holder owns key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
	Close() error
}

type Lease interface {
	// Refresh extends the lease to ttl. It returns ErrLockLost when the key
	// expired or now belongs to another holder.
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// releaseScript deletes the key only if it still carries our token, so an
// expired lease never frees somebody else's lock.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type redisLocker struct {
	rdb    *goredis.Client
	prefix string
	log    *logger.Logger
}

// New connects to addr. An empty addr yields a no-op locker.
func New(ctx context.Context, addr string, log *logger.Logger) (Locker, error) {
	if log == nil {
		log = logger.Nop()
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		log.Warn("REDIS_ADDR unset; concurrent runs are not guarded")
		return Noop{}, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisLocker{
		rdb:    rdb,
		prefix: "simgraph:lock:",
		log:    log.With("service", "RedisLocker"),
	}, nil
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	token := uuid.NewString()
	full := l.prefix + key
	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", full, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire lock %s: %w", full, apperrors.ErrLocked)
	}
	l.log.Info("run lock acquired", "key", full, "ttl", ttl.String())
	return &redisLease{l: l, key: full, token: token}, nil
}

func (l *redisLocker) Close() error { return l.rdb.Close() }

type redisLease struct {
	l     *redisLocker
	key   string
	token string
}

func (r *redisLease) Refresh(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Hour
	}
	n, err := refreshScript.Run(ctx, r.l.rdb, []string{r.key}, r.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refresh lock %s: %w", r.key, err)
	}
	if n == 0 {
		return fmt.Errorf("refresh lock %s: %w", r.key, apperrors.ErrLockLost)
	}
	return nil
}

func (r *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, r.l.rdb, []string{r.key}, r.token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", r.key, err)
	}
	if n == 0 {
		r.l.log.Warn("run lock already expired", "key", r.key)
	}
	return nil
}

// Noop grants every lease.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (Lease, error) { return noopLease{}, nil }
func (Noop) Close() error { return nil }

type noopLease struct{}

func (noopLease) Refresh(context.Context, time.Duration) error { return nil }
func (noopLease) Release(context.Context) error                { return nil }
