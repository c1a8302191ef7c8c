package ratelimiter

import (
	"context"
	"time"
)

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for job := range s.workCh {
		s.handle(job)
	}
}

// handle makes one reserve attempt. A denied or failed reservation is
// requeued under a fresh lease id; a granted one runs the job and always
// completes the lease.
func (s *Scheduler) handle(job Job) {
	if job.LeaseID == "" {
		job.LeaseID = s.newLeaseID()
	}
	if s.observer != nil {
		s.observer.OnReserveStart(job)
	}
	reqs := BuildLLMRequirements(LLMReserveInput{
		Provider:        job.Provider,
		Model:           job.Model,
		Prompt:          job.Prompt,
		MaxOutputTokens: job.MaxOutputTokens,
	})
	res, err := s.limiter.Reserve(s.ctx, ReserveRequest{LeaseID: job.LeaseID, JobID: job.JobID, Requirements: reqs})
	if err != nil {
		if s.observer != nil {
			s.observer.OnReserveError(job, err)
		}
		job.LeaseID = ""
		s.requeue(job, s.now().Add(s.errorRetryDelay))
		return
	}
	if !res.Allowed {
		if s.observer != nil {
			s.observer.OnReserveDenied(job, res)
		}
		job.LeaseID = ""
		s.requeue(job, s.now().Add(s.retryDelay(res)))
		return
	}

	var actuals []Actual
	if job.Execute != nil {
		tokens, _ := job.Execute(s.ctx)
		actuals = []Actual{{Key: TPMKey(job.Provider, job.Model), ActualAmount: tokens}}
	}
	_, _ = s.limiter.Complete(context.Background(), CompleteRequest{
		LeaseID: job.LeaseID,
		JobID:   job.JobID,
		Actuals: actuals,
	})
}

func (s *Scheduler) retryDelay(res ReserveResponse) time.Duration {
	delay := max(time.Duration(res.RetryAfterMs)*time.Millisecond, 0)
	return delay + max(s.jitter(delay), 0)
}
