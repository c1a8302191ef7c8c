package ratelimiter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"reportqa/internal/testutil"
)

type fakeLimiter struct {
	mu            sync.Mutex
	reserveCalls  []ReserveRequest
	completeCalls []CompleteRequest
	reserveFn     func(ReserveRequest) (ReserveResponse, error)
	completeCh    chan struct{}
}

func (f *fakeLimiter) Reserve(_ context.Context, req ReserveRequest) (ReserveResponse, error) {
	f.mu.Lock()
	f.reserveCalls = append(f.reserveCalls, req)
	fn := f.reserveFn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return ReserveResponse{Allowed: true}, nil
}

func (f *fakeLimiter) Complete(_ context.Context, req CompleteRequest) (CompleteResponse, error) {
	f.mu.Lock()
	f.completeCalls = append(f.completeCalls, req)
	completeCh := f.completeCh
	f.mu.Unlock()
	if completeCh != nil {
		select {
		case completeCh <- struct{}{}:
		default:
		}
	}
	return CompleteResponse{Ok: true}, nil
}

type idSource struct {
	mu   sync.Mutex
	next int
}

func (s *idSource) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("L-%d", s.next)
}

type recordingObserver struct {
	mu      sync.Mutex
	starts  int
	denials int
	errors  int
}

func (o *recordingObserver) OnReserveStart(Job) {
	o.mu.Lock()
	o.starts++
	o.mu.Unlock()
}

func (o *recordingObserver) OnReserveDenied(Job, ReserveResponse) {
	o.mu.Lock()
	o.denials++
	o.mu.Unlock()
}

func (o *recordingObserver) OnReserveError(Job, error) {
	o.mu.Lock()
	o.errors++
	o.mu.Unlock()
}

func testScheduler(lim Limiter, workers int, opts ...Option) *Scheduler {
	ids := &idSource{}
	base := []Option{
		WithLeaseIDs(ids.Next),
		WithJitter(func(time.Duration) time.Duration { return 0 }),
		WithErrorRetryDelay(5 * time.Millisecond),
	}
	return NewScheduler(lim, workers, append(base, opts...)...)
}

// TestSchedulerNoHeadOfLineBlocking verifies a throttled model does not stall another.
func TestSchedulerNoHeadOfLineBlocking(t *testing.T) {
	runWithTimeout(t, 2*time.Second, func() {
		lim := &fakeLimiter{}
		lim.reserveFn = func(req ReserveRequest) (ReserveResponse, error) {
			if hasProvider(req.Requirements, "openai") {
				return ReserveResponse{Allowed: false, RetryAfterMs: 100}, nil
			}
			return ReserveResponse{Allowed: true}, nil
		}
		sched := testScheduler(lim, 1)
		defer func() {
			_ = sched.Shutdown(testutil.Context(t, time.Second))
		}()

		done := make(chan struct{}, 2)
		sched.Submit(Job{
			Provider: "openai",
			Model:    "gpt-4o",
			Execute: func(context.Context) (uint64, error) {
				t.Errorf("openai job should not execute")
				return 0, nil
			},
		})
		for i := 0; i < 2; i++ {
			sched.Submit(Job{
				Provider: "ollama",
				Model:    "llama3",
				Execute: func(context.Context) (uint64, error) {
					done <- struct{}{}
					return 1, nil
				},
			})
		}
		waitForCount(t, done, 2, 200*time.Millisecond)
	})
}

// TestSchedulerRetryUsesNewLeaseID verifies denied jobs retry under a fresh lease.
func TestSchedulerRetryUsesNewLeaseID(t *testing.T) {
	runWithTimeout(t, 2*time.Second, func() {
		lim := &fakeLimiter{}
		var countMu sync.Mutex
		callCounts := map[string]int{}
		lim.reserveFn = func(req ReserveRequest) (ReserveResponse, error) {
			countMu.Lock()
			count := callCounts[req.JobID]
			callCounts[req.JobID] = count + 1
			countMu.Unlock()
			if count == 0 {
				return ReserveResponse{Allowed: false, RetryAfterMs: 1}, nil
			}
			return ReserveResponse{Allowed: true}, nil
		}
		observer := &recordingObserver{}
		sched := testScheduler(lim, 1, WithObserver(observer))
		defer func() {
			_ = sched.Shutdown(testutil.Context(t, time.Second))
		}()

		done := make(chan struct{})
		sched.Submit(Job{
			JobID:    "q-1",
			Provider: "openai",
			Model:    "gpt-4o",
			Execute: func(context.Context) (uint64, error) {
				close(done)
				return 1, nil
			},
		})
		waitFor(t, done, 300*time.Millisecond)

		lim.mu.Lock()
		calls := append([]ReserveRequest(nil), lim.reserveCalls...)
		lim.mu.Unlock()
		if len(calls) < 2 {
			t.Fatalf("expected at least 2 reserve calls, got %d", len(calls))
		}
		if calls[0].LeaseID == calls[1].LeaseID {
			t.Fatalf("expected different lease IDs for retry")
		}
		observer.mu.Lock()
		defer observer.mu.Unlock()
		if observer.starts < 2 || observer.denials != 1 {
			t.Fatalf("unexpected observer counts: starts=%d denials=%d", observer.starts, observer.denials)
		}
	})
}

// TestSchedulerCompleteAlwaysCalledAfterAllowed verifies leases complete even when the job fails.
func TestSchedulerCompleteAlwaysCalledAfterAllowed(t *testing.T) {
	runWithTimeout(t, 2*time.Second, func() {
		lim := &fakeLimiter{}
		completeCalled := make(chan struct{}, 2)
		lim.completeCh = completeCalled
		sched := testScheduler(lim, 2)
		defer func() {
			_ = sched.Shutdown(testutil.Context(t, time.Second))
		}()

		for i := 0; i < 2; i++ {
			sched.Submit(Job{
				JobID:    fmt.Sprintf("q-%d", i),
				Provider: "openai",
				Model:    "gpt-4o",
				Execute: func(context.Context) (uint64, error) {
					return 42, fmt.Errorf("provider error")
				},
			})
		}
		waitForCount(t, completeCalled, 2, 200*time.Millisecond)

		lim.mu.Lock()
		defer lim.mu.Unlock()
		if len(lim.completeCalls) != 2 {
			t.Fatalf("expected 2 complete calls, got %d", len(lim.completeCalls))
		}
		actual := lim.completeCalls[0].Actuals
		if len(actual) != 1 || actual[0].ActualAmount != 42 || actual[0].Key != TPMKey("openai", "gpt-4o") {
			t.Fatalf("unexpected actuals: %+v", actual)
		}
	})
}

// TestSchedulerRetriesAfterLimiterError verifies limiter errors are reported and retried.
func TestSchedulerRetriesAfterLimiterError(t *testing.T) {
	runWithTimeout(t, 2*time.Second, func() {
		lim := &fakeLimiter{}
		var once sync.Once
		lim.reserveFn = func(ReserveRequest) (ReserveResponse, error) {
			var err error
			once.Do(func() { err = fmt.Errorf("limiter unavailable") })
			if err != nil {
				return ReserveResponse{}, err
			}
			return ReserveResponse{Allowed: true}, nil
		}
		observer := &recordingObserver{}
		sched := testScheduler(lim, 1, WithObserver(observer))
		defer func() {
			_ = sched.Shutdown(testutil.Context(t, time.Second))
		}()

		done := make(chan struct{})
		sched.Submit(Job{Provider: "openai", Model: "gpt-4o", Execute: func(context.Context) (uint64, error) {
			close(done)
			return 0, nil
		}})
		waitFor(t, done, 300*time.Millisecond)
		observer.mu.Lock()
		defer observer.mu.Unlock()
		if observer.errors != 1 {
			t.Fatalf("expected one reserve error, got %d", observer.errors)
		}
	})
}

// TestSchedulerShutdownDropsQueuedJobs verifies shutdown returns while jobs are still blocked.
func TestSchedulerShutdownDropsQueuedJobs(t *testing.T) {
	runWithTimeout(t, 2*time.Second, func() {
		lim := &fakeLimiter{}
		lim.reserveFn = func(ReserveRequest) (ReserveResponse, error) {
			return ReserveResponse{Allowed: false, RetryAfterMs: 60000}, nil
		}
		sched := testScheduler(lim, 1)
		sched.Submit(Job{Provider: "openai", Model: "gpt-4o", Execute: func(context.Context) (uint64, error) {
			t.Errorf("blocked job should not execute")
			return 0, nil
		}})
		testutil.Eventually(t, time.Second, time.Millisecond, func() bool {
			lim.mu.Lock()
			defer lim.mu.Unlock()
			return len(lim.reserveCalls) > 0
		}, "expected a reserve attempt")
		if err := sched.Shutdown(testutil.Context(t, time.Second)); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	})
}

func hasProvider(reqs []Requirement, provider string) bool {
	for _, req := range reqs {
		if strings.Contains(string(req.Key), ":"+provider+":") {
			return true
		}
	}
	return false
}
