package ratelimiter

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	defaultErrorRetryDelay = 100 * time.Millisecond
	defaultIdleInterval    = 5 * time.Millisecond
	defaultJitterMax       = 25 * time.Millisecond
)

// Job is one model call managed by the Scheduler. Execute runs after the
// reservation is granted and returns the tokens actually used.
type Job struct {
	JobID   string
	LeaseID string

	Provider, Model string
	Prompt          string
	MaxOutputTokens uint64

	Execute func(ctx context.Context) (actualTokens uint64, err error)
}

// Observer receives reservation events for a job. Calls happen on worker
// goroutines.
type Observer interface {
	OnReserveStart(job Job)
	OnReserveDenied(job Job, res ReserveResponse)
	OnReserveError(job Job, err error)
}

// Option tunes a Scheduler.
type Option func(*Scheduler)

// WithObserver reports reservation events to o.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithClock replaces the time source used for retry deadlines.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithJitter replaces the retry jitter function.
func WithJitter(jitter func(time.Duration) time.Duration) Option {
	return func(s *Scheduler) { s.jitter = jitter }
}

// WithLeaseIDs replaces the lease id generator.
func WithLeaseIDs(next func() string) Option {
	return func(s *Scheduler) { s.newLeaseID = next }
}

// WithErrorRetryDelay sets the wait after a limiter error.
func WithErrorRetryDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.errorRetryDelay = d }
}

// Scheduler runs jobs on a fixed worker pool. Jobs are queued per
// provider/model pair and served round-robin, so a throttled model does not
// hold up jobs for another.
type Scheduler struct {
	limiter  Limiter
	workers  int
	observer Observer

	submitCh  chan Job
	requeueCh chan requeueRequest
	workCh    chan Job
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	state *schedulerState

	now             func() time.Time
	newLeaseID      func() string
	jitter          func(time.Duration) time.Duration
	errorRetryDelay time.Duration
	idleInterval    time.Duration
}

// NewScheduler starts a Scheduler with the given number of workers. A nil
// limiter allows everything.
func NewScheduler(limiter Limiter, workers int, opts ...Option) *Scheduler {
	if limiter == nil {
		limiter = NoopLimiter
	}
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		limiter:         limiter,
		workers:         workers,
		submitCh:        make(chan Job, workers*4),
		requeueCh:       make(chan requeueRequest, workers*4),
		workCh:          make(chan Job, workers),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
		ctx:             ctx,
		cancel:          cancel,
		state:           newSchedulerState(),
		now:             time.Now,
		newLeaseID:      NewULID,
		jitter:          newLockedRand(time.Now().UnixNano()).Jitter,
		errorRetryDelay: defaultErrorRetryDelay,
		idleInterval:    defaultIdleInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Submit enqueues a job. Jobs submitted after Shutdown are dropped.
func (s *Scheduler) Submit(job Job) {
	select {
	case <-s.doneCh:
	case s.submitCh <- job:
	}
}

// Shutdown stops dispatching, cancels the context passed to running jobs
// and waits for workers to return. Queued jobs are dropped.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.cancel()
	})
	wait := make(chan struct{})
	go func() {
		<-s.doneCh
		s.wg.Wait()
		close(wait)
	}()
	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

// Jitter returns a random duration up to base, capped at 25ms.
func (l *lockedRand) Jitter(base time.Duration) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	bound := defaultJitterMax
	if base > 0 && base < bound {
		bound = base
	}
	return time.Duration(l.r.Int63n(int64(bound) + 1))
}
