package gate

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyProber struct {
	failures int
	calls    int
}

func (p *flakyProber) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitReadyFailsTwiceThenSucceeds(t *testing.T) {
	p := &flakyProber{failures: 2}
	r := NewReadiness(p, 10*time.Second, nil)
	var delays []time.Duration
	r.Sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	var settled []State
	r.OnTransition = func(_, to State) {
		if to == StateReady || to == StateUnavailable {
			settled = append(settled, to)
		}
	}

	if r.State() != StateUnknown {
		t.Fatalf("initial state: want=%s got=%s", StateUnknown, r.State())
	}
	if err := r.WaitReady(context.Background()); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if len(delays) != 2 {
		t.Fatalf("delays: want=2 got=%d", len(delays))
	}
	for _, d := range delays {
		if d != 10*time.Second {
			t.Fatalf("delay: want=%v got=%v", 10*time.Second, d)
		}
	}
	want := []State{StateUnavailable, StateUnavailable, StateReady}
	if len(settled) != len(want) {
		t.Fatalf("transitions: want=%v got=%v", want, settled)
	}
	for i := range want {
		if settled[i] != want[i] {
			t.Fatalf("transitions: want=%v got=%v", want, settled)
		}
	}
	if r.State() != StateReady || r.Attempts() != 3 || p.calls != 3 {
		t.Fatalf("final: state=%s attempts=%d calls=%d", r.State(), r.Attempts(), p.calls)
	}
}

func TestWaitReadyInterruptedByCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewReadiness(&flakyProber{failures: 1 << 30}, time.Hour, nil)
	sleeps := 0
	r.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		if sleeps == 5 {
			cancel()
		}
		return ctx.Err()
	}
	err := r.WaitReady(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got=%v", err)
	}
	if r.State() != StateUnavailable {
		t.Fatalf("state: want=%s got=%s", StateUnavailable, r.State())
	}
}

func TestSleepCtxHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got=%v", err)
	}
	if err := sleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("short sleep: %v", err)
	}
}

type fixedCounter struct {
	n   int64
	err error
}

func (c fixedCounter) CountFootprint(context.Context) (int64, error) { return c.n, c.err }

func TestCheckIdempotency(t *testing.T) {
	occ, _, err := CheckIdempotency(context.Background(), fixedCounter{n: 0})
	if err != nil || occ != OccupancyEmpty {
		t.Fatalf("empty: got=%s err=%v", occ, err)
	}
	occ, n, err := CheckIdempotency(context.Background(), fixedCounter{n: 12})
	if err != nil || occ != OccupancyPopulated || n != 12 {
		t.Fatalf("populated: got=%s n=%d err=%v", occ, n, err)
	}
	boom := errors.New("boom")
	if _, _, err := CheckIdempotency(context.Background(), fixedCounter{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("error: want boom, got=%v", err)
	}
}
