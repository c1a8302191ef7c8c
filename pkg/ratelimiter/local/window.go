package local

import (
	"container/heap"
	"sort"
	"time"

	"reportqa/pkg/ratelimiter"
)

type expiring struct {
	id        string
	amount    uint64
	expiresAt time.Time
	index     int
}

// expiryQueue orders entries by expiry, earliest first.
type expiryQueue []*expiring

func (q expiryQueue) Len() int           { return len(q) }
func (q expiryQueue) Less(i, j int) bool { return q[i].expiresAt.Before(q[j].expiresAt) }

func (q expiryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *expiryQueue) Push(x any) {
	item := x.(*expiring)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	item.index = -1
	*q = old[:n-1]
	return item
}

type rollingLimit struct {
	cap   uint64
	used  uint64
	queue expiryQueue
	byID  map[string]*expiring
}

func (r *rollingLimit) expire(now time.Time) {
	for r.queue.Len() > 0 && !r.queue[0].expiresAt.After(now) {
		item := heap.Pop(&r.queue).(*expiring)
		delete(r.byID, item.id)
		r.used -= min(r.used, item.amount)
	}
}

// admit reports whether amount fits in the window, or how long until it
// will. A request larger than the whole capacity is admitted once the
// window is empty so it cannot wait forever.
func (r *rollingLimit) admit(amount uint64, now time.Time) (time.Duration, bool) {
	if r.used+amount <= r.cap || r.used == 0 {
		return 0, true
	}
	needed := r.used
	if amount <= r.cap {
		needed = r.used + amount - r.cap
	}
	ordered := append(expiryQueue(nil), r.queue...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].expiresAt.Before(ordered[j].expiresAt) })
	freed := uint64(0)
	for _, item := range ordered {
		freed += item.amount
		if freed >= needed {
			return item.expiresAt.Sub(now), false
		}
	}
	return time.Second, false
}

func (r *rollingLimit) add(id string, amount uint64, expiresAt time.Time) {
	item := &expiring{id: id, amount: amount, expiresAt: expiresAt}
	r.byID[id] = item
	r.used += amount
	heap.Push(&r.queue, item)
}

func (r *rollingLimit) shrink(id string, amount uint64) {
	item, ok := r.byID[id]
	if !ok || amount >= item.amount {
		return
	}
	r.used -= min(r.used, item.amount-amount)
	item.amount = amount
}

const maxConcurrencyWait = 100 * time.Millisecond

type concLimit struct {
	cap   uint64
	queue expiryQueue
	holds map[string]*expiring
}

func (c *concLimit) expire(now time.Time) {
	for c.queue.Len() > 0 && !c.queue[0].expiresAt.After(now) {
		item := heap.Pop(&c.queue).(*expiring)
		delete(c.holds, item.id)
	}
}

func (c *concLimit) add(id string, expiresAt time.Time) {
	item := &expiring{id: id, amount: 1, expiresAt: expiresAt}
	c.holds[id] = item
	heap.Push(&c.queue, item)
}

func (c *concLimit) release(id string) {
	item, ok := c.holds[id]
	if !ok {
		return
	}
	delete(c.holds, id)
	if item.index >= 0 {
		heap.Remove(&c.queue, item.index)
	}
}

// nextExpiry is the wait until the oldest hold times out, capped at
// maxConcurrencyWait since completed calls release their hold early.
func (c *concLimit) nextExpiry(now time.Time, def ratelimiter.LimitDefinition) time.Duration {
	wait := time.Duration(def.TimeoutSeconds) * time.Second
	if c.queue.Len() > 0 {
		wait = c.queue[0].expiresAt.Sub(now)
	}
	return min(wait, maxConcurrencyWait)
}
