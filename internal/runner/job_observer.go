package runner

import (
	"sync"
	"time"

	"reportqa/internal/question"
	"reportqa/pkg/ratelimiter"
)

// jobObserver bridges scheduler events to RunObserver callbacks. A nil
// *jobObserver ignores every call.
type jobObserver struct {
	observer  RunObserver
	questions []question.Question
	mu        sync.RWMutex
	jobIndex  map[string]int
}

func newJobObserver(observer RunObserver, questions []question.Question) *jobObserver {
	if observer == nil {
		return nil
	}
	return &jobObserver{
		observer:  observer,
		questions: questions,
		jobIndex:  map[string]int{},
	}
}

func (o *jobObserver) emitQueuedAll() {
	if o == nil {
		return
	}
	for index := range o.questions {
		o.emit(index, QuestionEvent{Type: QuestionQueued})
	}
}

func (o *jobObserver) register(jobID string, index int) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobIndex[jobID] = index
}

// emit fills index, text and timestamp on event and delivers it.
func (o *jobObserver) emit(index int, event QuestionEvent) {
	if o == nil || index < 0 || index >= len(o.questions) {
		return
	}
	event.QuestionIndex = index
	event.QuestionText = o.questions[index].Text
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now()
	}
	o.observer.OnQuestionEvent(event)
}

func (o *jobObserver) OnReserveStart(job ratelimiter.Job) {
	o.emitByJob(job.JobID, QuestionEvent{Type: QuestionReserving})
}

func (o *jobObserver) OnReserveDenied(job ratelimiter.Job, res ratelimiter.ReserveResponse) {
	o.emitByJob(job.JobID, QuestionEvent{
		Type:         QuestionWaitingRateLimit,
		RetryAfterMs: res.RetryAfterMs,
		Error:        res.Error,
	})
}

func (o *jobObserver) OnReserveError(job ratelimiter.Job, err error) {
	if err == nil {
		return
	}
	o.emitByJob(job.JobID, QuestionEvent{Type: QuestionWaitingLimiterError, Error: err.Error()})
}

func (o *jobObserver) emitByJob(jobID string, event QuestionEvent) {
	if o == nil {
		return
	}
	o.mu.RLock()
	index, ok := o.jobIndex[jobID]
	o.mu.RUnlock()
	if ok {
		o.emit(index, event)
	}
}
