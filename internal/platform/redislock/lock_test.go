package redislock

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yungbote/simgraph/internal/pkg/errors"
)

func TestNewWithoutAddrIsNoop(t *testing.T) {
	l, err := New(context.Background(), "  ", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := l.(Noop); !ok {
		t.Fatalf("want Noop, got=%T", l)
	}
	lease, err := l.Acquire(context.Background(), "k", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lease.Refresh(context.Background(), time.Second); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestRedisLockExclusive(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("REDIS_TEST_ADDR"))
	if addr == "" {
		t.Skip("set REDIS_TEST_ADDR to run redis lock tests")
	}
	ctx := context.Background()
	l, err := New(ctx, addr, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	key := "test-" + uuid.NewString()
	lease, err := l.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, key, time.Minute); !errors.Is(err, apperrors.ErrLocked) {
		t.Fatalf("second Acquire: want ErrLocked, got=%v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := lease.Refresh(ctx, time.Minute); !errors.Is(err, apperrors.ErrLockLost) {
		t.Fatalf("Refresh after release: want ErrLockLost, got=%v", err)
	}
	again, err := l.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if err := again.Refresh(ctx, 2*time.Minute); err != nil {
		t.Fatalf("Refresh held lease: %v", err)
	}
	_ = again.Release(ctx)
}
