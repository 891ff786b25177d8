// Package scheduler runs recurring sync cycles: a nominal period with a
// jitter window, a network constraint checked before every firing, and
// exponential backoff when a cycle asks to be retried.
package scheduler

import (
	"context"
	"math/rand"
	stdsync "sync"
	"time"

	"github.com/monetalabs/moneta/internal/application/ports"
	"github.com/monetalabs/moneta/internal/application/sync"
	"github.com/monetalabs/moneta/internal/infrastructure/logging"
)

// Cycler is the orchestrator surface the scheduler drives.
type Cycler interface {
	SyncToCloud(ctx context.Context) sync.Result
	SyncFromCloud(ctx context.Context) sync.Result
}

// Config carries the schedule timing knobs.
type Config struct {
	Period         time.Duration // Nominal interval between firings
	Flex           time.Duration // Jitter window added to the period
	InitialBackoff time.Duration // First retry delay after a failed firing
	MaxBackoff     time.Duration // Backoff ceiling
}

// LastRun records the outcome of the most recent firing, for the status
// surface.
type LastRun struct {
	At   time.Time
	Push sync.Result
	Pull sync.Result
}

// Scheduler owns the background sync loop. Starting an already-running
// scheduler keeps the existing schedule.
type Scheduler struct {
	cycler  Cycler
	network ports.ConnectivityPort
	config  Config
	logger  *logging.Logger

	after  func(time.Duration) <-chan time.Time
	jitter func(time.Duration) time.Duration

	mu      stdsync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun *LastRun
}

// NewScheduler creates a scheduler over the given cycler.
func NewScheduler(cycler Cycler, network ports.ConnectivityPort, config Config, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		cycler:  cycler,
		network: network,
		config:  config,
		logger:  logger,
		after:   time.After,
		jitter: func(flex time.Duration) time.Duration {
			if flex <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(flex)))
		},
	}
}

// Start launches the background loop. Idempotent: a second Start while the
// loop is running keeps the existing schedule and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Running reports whether the background loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastRun returns the most recent firing outcome, or nil before the first.
func (s *Scheduler) LastRun() *LastRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	backoff := time.Duration(0)
	for {
		delay := s.nextDelay(backoff)
		select {
		case <-ctx.Done():
			return
		case <-s.after(delay):
		}

		retry := s.fire(ctx)
		if retry {
			backoff = s.nextBackoff(backoff)
		} else {
			backoff = 0
		}
	}
}

// nextDelay picks the wait before the next firing: the backoff when one is
// in force, otherwise the nominal period plus jitter.
func (s *Scheduler) nextDelay(backoff time.Duration) time.Duration {
	if backoff > 0 {
		return backoff
	}
	return s.config.Period + s.jitter(s.config.Flex)
}

// nextBackoff doubles the retry delay up to the ceiling.
func (s *Scheduler) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return s.config.InitialBackoff
	}
	next := current * 2
	if next > s.config.MaxBackoff {
		return s.config.MaxBackoff
	}
	return next
}

// fire runs one push-then-pull pass and reports whether the scheduler
// should back off before the next one.
func (s *Scheduler) fire(ctx context.Context) bool {
	if !s.network.Connected() {
		s.logger.DebugContext(ctx, "sync firing skipped, no network")
		s.record(sync.NoNetwork(), sync.NoNetwork())
		return true
	}

	// Push before pull: local-authored changes must not be clobbered by a
	// pull in the same firing.
	push := s.cycler.SyncToCloud(ctx)
	pull := s.cycler.SyncFromCloud(ctx)
	s.record(push, pull)

	s.logger.InfoContext(ctx, "scheduled sync completed",
		"push", push.String(),
		"pull", pull.String(),
	)
	return push.RetryLater() || pull.RetryLater()
}

// SyncNow runs one immediate push-then-pull pass outside the schedule. It
// shares the network constraint with scheduled firings.
func (s *Scheduler) SyncNow(ctx context.Context) (sync.Result, sync.Result) {
	if !s.network.Connected() {
		result := sync.NoNetwork()
		s.record(result, result)
		return result, result
	}

	push := s.cycler.SyncToCloud(ctx)
	pull := s.cycler.SyncFromCloud(ctx)
	s.record(push, pull)
	return push, pull
}

func (s *Scheduler) record(push, pull sync.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = &LastRun{At: time.Now(), Push: push, Pull: pull}
}
