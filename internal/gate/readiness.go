package gate

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/simgraph/internal/platform/logger"
)

const DefaultBackoff = 10 * time.Second

type State string

const (
	StateUnknown     State = "UNKNOWN"
	StateChecking    State = "CHECKING"
	StateReady       State = "READY"
	StateUnavailable State = "UNAVAILABLE"
)

// Prober issues a trivial read against the store.
type Prober interface {
	Ping(ctx context.Context) error
}

// Readiness blocks until the store answers a probe. There is no attempt
// limit; only ctx cancellation ends the wait early.
type Readiness struct {
	prober  Prober
	backoff time.Duration
	log     *logger.Logger

	// Sleep waits d or until ctx is done. Replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnTransition observes every state change.
	OnTransition func(from, to State)

	mu       sync.Mutex
	state    State
	attempts int
}

func NewReadiness(prober Prober, backoff time.Duration, log *logger.Logger) *Readiness {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Readiness{
		prober:  prober,
		backoff: backoff,
		log:     log.With("component", "ReadinessGate"),
		Sleep:   sleepCtx,
		state:   StateUnknown,
	}
}

func (r *Readiness) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Attempts is the number of probes issued so far.
func (r *Readiness) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *Readiness) transition(to State) {
	r.mu.Lock()
	from := r.state
	r.state = to
	r.mu.Unlock()
	if from != to && r.OnTransition != nil {
		r.OnTransition(from, to)
	}
}

// WaitReady probes until success. Each failed probe leaves the gate
// UNAVAILABLE and is followed by exactly one backoff sleep.
func (r *Readiness) WaitReady(ctx context.Context) error {
	for {
		r.transition(StateChecking)
		r.mu.Lock()
		r.attempts++
		attempt := r.attempts
		r.mu.Unlock()

		err := r.prober.Ping(ctx)
		if err == nil {
			r.transition(StateReady)
			r.log.Info("store ready", "attempt", attempt)
			return nil
		}
		r.transition(StateUnavailable)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Warn("store unavailable, retrying", "attempt", attempt, "backoff", r.backoff.String(), "error", err)
		if err := r.Sleep(ctx, r.backoff); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
