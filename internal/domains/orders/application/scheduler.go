package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/facebookgo/clock"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

const (
	DefaultPollInterval   = 15 * time.Second
	DefaultInitialBackoff = 5 * time.Second
	DefaultMaxBackoff     = 60 * time.Second
)

// State is the scheduler state machine position.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateBackoff  State = "backoff"
)

// SnapshotSink receives cycles whose fingerprints changed.
type SnapshotSink interface {
	Publish(cycle *ports.Cycle, membership, status string) Snapshot
}

// divergingSink is implemented by sinks that apply local changes between publishes.
type divergingSink interface {
	Diverged() bool
}

// SchedulerStatus is the freshness view exposed to consumers.
type SchedulerStatus struct {
	State State
	// Loading is set while a user-visible fetch runs.
	Loading       bool
	Delay         time.Duration
	Failures      int
	LastAttemptAt time.Time
	LastSuccessAt time.Time
	Degraded      bool
	// LastError only carries failures of user-visible fetches.
	LastError error
}

type refreshRequest struct {
	reply chan error
}

// Scheduler polls the cycle runner on an interval, backs off after failures and
// publishes only when the membership or status fingerprint changed. All cycles run
// on the goroutine executing Run, so at most one is ever in flight.
type Scheduler struct {
	runner ports.CycleRunner
	sink   SnapshotSink
	clock  clock.Clock
	logger *slog.Logger

	interval time.Duration
	backoff  *backoff.ExponentialBackOff
	mode     domain.FingerprintMode

	refresh chan refreshRequest

	mu         sync.RWMutex
	status     SchedulerStatus
	membership string
	statusHash string
	published  bool
}

type SchedulerOption func(*Scheduler)

func WithSchedulerClock(c clock.Clock) SchedulerOption {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBackoff sets the first failure delay and its cap. Delays double with no jitter.
func WithBackoff(initial, max time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if initial > 0 && max >= initial {
			s.backoff = newBackoff(initial, max)
		}
	}
}

func WithFingerprintMode(mode domain.FingerprintMode) SchedulerOption {
	return func(s *Scheduler) {
		s.mode = mode
	}
}

func NewScheduler(runner ports.CycleRunner, sink SnapshotSink, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		sink:     sink,
		clock:    clock.New(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		interval: DefaultPollInterval,
		backoff:  newBackoff(DefaultInitialBackoff, DefaultMaxBackoff),
		mode:     domain.FingerprintOrdered,
		refresh:  make(chan refreshRequest),
		status:   SchedulerStatus{State: StateIdle},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func newBackoff(initial, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run performs a visible initial fetch, then polls until ctx is cancelled.
// Cancellation is not an error.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	retry := s.retryAfter(s.runOnce(ctx, true))
	for {
		select {
		case <-ctx.Done():
			s.setIdle()
			return nil
		case <-ticker.C:
			retry = s.retryAfter(s.runOnce(ctx, false))
		case <-retry:
			retry = s.retryAfter(s.runOnce(ctx, false))
		case req := <-s.refresh:
			err := s.runOnce(ctx, true)
			retry = s.retryAfter(err)
			req.reply <- err
		}
	}
}

// Refresh asks the running loop for a user-visible fetch and returns its error.
func (s *Scheduler) Refresh(ctx context.Context) error {
	req := refreshRequest{reply: make(chan error, 1)}
	select {
	case s.refresh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current freshness view.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// retryAfter arms the one-shot retry that runs in addition to the regular ticker.
func (s *Scheduler) retryAfter(err error) <-chan time.Time {
	if err == nil || isCancellation(err) {
		return nil
	}
	delay := s.Status().Delay
	if delay <= 0 {
		return nil
	}
	return s.clock.After(delay)
}

func (s *Scheduler) runOnce(ctx context.Context, visible bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.status.State = StateFetching
	s.status.Loading = visible
	s.status.LastAttemptAt = s.clock.Now()
	s.mu.Unlock()

	cycle, err := s.runner.RunCycle(ctx)
	if ctx.Err() != nil {
		s.setIdle()
		return ctx.Err()
	}
	if cycle != nil {
		s.publishIfChanged(cycle)
	}
	if err != nil {
		s.recordFailure(ctx, err, visible, cycle != nil)
		return err
	}
	s.recordSuccess()
	return nil
}

func (s *Scheduler) publishIfChanged(cycle *ports.Cycle) {
	membership := domain.MembershipFingerprint(cycle.Orders, s.mode)
	statusHash := domain.StatusFingerprint(cycle.Orders, cycle.Payments)

	diverged := false
	if d, ok := s.sink.(divergingSink); ok {
		diverged = d.Diverged()
	}

	s.mu.Lock()
	changed := !s.published || diverged || membership != s.membership || statusHash != s.statusHash
	if changed {
		s.membership, s.statusHash, s.published = membership, statusHash, true
	}
	s.status.Degraded = len(cycle.Failed) > 0
	s.mu.Unlock()

	if !changed {
		return
	}
	snap := s.sink.Publish(cycle, membership, statusHash)
	s.logger.Debug("published order snapshot",
		slog.Uint64("snapshot.version", snap.Version), slog.Int("orders", len(snap.Orders)))
}

func (s *Scheduler) recordFailure(ctx context.Context, err error, visible, published bool) {
	delay := s.backoff.NextBackOff()
	s.mu.Lock()
	s.status.State = StateBackoff
	s.status.Loading = false
	s.status.Delay = delay
	s.status.Failures++
	if !published {
		// Nothing reached the snapshot, so consumers keep reading older data.
		s.status.Degraded = true
	}
	if visible {
		s.status.LastError = err
	}
	failures := s.status.Failures
	s.mu.Unlock()

	level := slog.LevelWarn
	if !visible {
		level = slog.LevelDebug
	}
	s.logger.LogAttrs(ctx, level, "order poll failed",
		slog.String("error", err.Error()),
		slog.Duration("backoff", delay),
		slog.Int("failures", failures),
		slog.Bool("published", published))
}

func (s *Scheduler) recordSuccess() {
	s.backoff.Reset()
	s.mu.Lock()
	s.status.State = StateIdle
	s.status.Loading = false
	s.status.Delay = 0
	s.status.Failures = 0
	s.status.LastError = nil
	s.status.LastSuccessAt = s.clock.Now()
	s.mu.Unlock()
}

func (s *Scheduler) setIdle() {
	s.mu.Lock()
	s.status.Loading = false
	if s.status.State == StateFetching {
		if s.status.Delay > 0 {
			s.status.State = StateBackoff
		} else {
			s.status.State = StateIdle
		}
	}
	s.mu.Unlock()
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
