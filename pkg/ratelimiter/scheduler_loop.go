package ratelimiter

import (
	"sort"
	"time"
)

type requeueRequest struct {
	job       Job
	notBefore time.Time
}

// run owns all queue state. Workers talk to it only through channels.
func (s *Scheduler) run() {
	timer := time.NewTimer(s.idleInterval)
	defer timer.Stop()

	for {
		s.state.promote(s.now())
		s.dispatch()
		resetTimer(timer, s.nextWake())

		select {
		case <-s.stopCh:
			close(s.workCh)
			close(s.doneCh)
			return
		case job := <-s.submitCh:
			s.state.enqueue(job)
		case msg := <-s.requeueCh:
			s.state.block(msg.job, msg.notBefore)
		case <-timer.C:
		}
	}
}

func (s *Scheduler) dispatch() {
	for len(s.workCh) < cap(s.workCh) {
		job, ok := s.state.next()
		if !ok {
			return
		}
		s.workCh <- job
	}
}

func (s *Scheduler) requeue(job Job, notBefore time.Time) {
	select {
	case <-s.doneCh:
	case s.requeueCh <- requeueRequest{job: job, notBefore: notBefore}:
	}
}

func (s *Scheduler) nextWake() time.Duration {
	next, ok := s.state.earliestBlocked()
	if !ok {
		return s.idleInterval
	}
	return max(next.Sub(s.now()), 0)
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}

type schedulerState struct {
	queues  map[string]*modelQueue
	order   []string
	rrIndex int
}

// modelQueue holds the jobs for one provider/model pair. blocked is kept
// sorted by notBefore.
type modelQueue struct {
	ready   []Job
	blocked []requeueRequest
}

func newSchedulerState() *schedulerState {
	return &schedulerState{queues: map[string]*modelQueue{}}
}

func (s *schedulerState) queue(job Job) *modelQueue {
	key := job.Provider + ":" + job.Model
	if q, ok := s.queues[key]; ok {
		return q
	}
	q := &modelQueue{}
	s.queues[key] = q
	s.order = append(s.order, key)
	return q
}

func (s *schedulerState) enqueue(job Job) {
	q := s.queue(job)
	q.ready = append(q.ready, job)
}

func (s *schedulerState) block(job Job, notBefore time.Time) {
	q := s.queue(job)
	idx := sort.Search(len(q.blocked), func(i int) bool {
		return q.blocked[i].notBefore.After(notBefore)
	})
	q.blocked = append(q.blocked, requeueRequest{})
	copy(q.blocked[idx+1:], q.blocked[idx:])
	q.blocked[idx] = requeueRequest{job: job, notBefore: notBefore}
}

func (s *schedulerState) promote(now time.Time) {
	for _, q := range s.queues {
		n := 0
		for n < len(q.blocked) && !q.blocked[n].notBefore.After(now) {
			q.ready = append(q.ready, q.blocked[n].job)
			n++
		}
		q.blocked = q.blocked[n:]
	}
}

// next takes one ready job, rotating across model queues.
func (s *schedulerState) next() (Job, bool) {
	for i := range s.order {
		idx := (s.rrIndex + i) % len(s.order)
		q := s.queues[s.order[idx]]
		if len(q.ready) == 0 {
			continue
		}
		job := q.ready[0]
		q.ready = q.ready[1:]
		s.rrIndex = (idx + 1) % len(s.order)
		return job, true
	}
	return Job{}, false
}

func (s *schedulerState) earliestBlocked() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, q := range s.queues {
		if len(q.blocked) == 0 {
			continue
		}
		if t := q.blocked[0].notBefore; !found || t.Before(earliest) {
			earliest = t
			found = true
		}
	}
	return earliest, found
}
