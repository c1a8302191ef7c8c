// Package local implements an in-process ratelimiter.Limiter with rolling
// window and concurrency limits.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reportqa/pkg/ratelimiter"
)

const (
	invalidRequestError = "invalid_request"
	minRetryAfterMs      = 10
)

// Clock provides the current time for the limiter.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Limiter keeps all limit state in memory. Requirements whose key has no
// definition are not limited.
type Limiter struct {
	mu     sync.Mutex
	clock  Clock
	defs   map[ratelimiter.LimitKey]ratelimiter.LimitDefinition
	roll   map[ratelimiter.LimitKey]*rollingLimit
	conc   map[ratelimiter.LimitKey]*concLimit
	leases map[string]lease
}

type lease struct {
	reservedAt time.Time
	reserved   map[ratelimiter.LimitKey]uint64
}

// New builds a limiter from definitions. A nil clock uses wall time.
func New(defs []ratelimiter.LimitDefinition, clock Clock) (*Limiter, error) {
	if clock == nil {
		clock = realClock{}
	}
	l := &Limiter{
		clock:  clock,
		defs:   map[ratelimiter.LimitKey]ratelimiter.LimitDefinition{},
		roll:   map[ratelimiter.LimitKey]*rollingLimit{},
		conc:   map[ratelimiter.LimitKey]*concLimit{},
		leases: map[string]lease{},
	}
	for _, def := range defs {
		if err := l.apply(def); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Limiter) apply(def ratelimiter.LimitDefinition) error {
	if def.Key == "" {
		return fmt.Errorf("limit key is required")
	}
	if _, ok := l.defs[def.Key]; ok {
		return fmt.Errorf("duplicate limit %q", def.Key)
	}
	switch def.Kind {
	case ratelimiter.KindRolling:
		if def.WindowSeconds <= 0 {
			return fmt.Errorf("limit %q: window_seconds must be positive", def.Key)
		}
		l.roll[def.Key] = &rollingLimit{cap: def.Capacity, byID: map[string]*expiring{}}
	case ratelimiter.KindConcurrency:
		if def.TimeoutSeconds <= 0 {
			return fmt.Errorf("limit %q: timeout_seconds must be positive", def.Key)
		}
		l.conc[def.Key] = &concLimit{cap: def.Capacity, holds: map[string]*expiring{}}
	default:
		return fmt.Errorf("limit %q: unknown kind %q", def.Key, def.Kind)
	}
	l.defs[def.Key] = def
	return nil
}

// Definitions returns the configured limits.
func (l *Limiter) Definitions() []ratelimiter.LimitDefinition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ratelimiter.LimitDefinition, 0, len(l.defs))
	for _, def := range l.defs {
		out = append(out, def)
	}
	return out
}

// Reserve reserves every requirement or none of them.
func (l *Limiter) Reserve(_ context.Context, req ratelimiter.ReserveRequest) (ratelimiter.ReserveResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if req.LeaseID == "" || len(req.Requirements) == 0 {
		return ratelimiter.ReserveResponse{Allowed: false, Error: invalidRequestError}, nil
	}
	now := l.clock.Now()
	if existing, ok := l.leases[req.LeaseID]; ok {
		return ratelimiter.ReserveResponse{Allowed: true, ReservedAtUnixMs: existing.reservedAt.UnixMilli()}, nil
	}

	denied := false
	retry := time.Duration(0)
	for _, r := range req.Requirements {
		def, ok := l.defs[r.Key]
		if !ok {
			continue
		}
		switch def.Kind {
		case ratelimiter.KindRolling:
			limit := l.roll[r.Key]
			limit.expire(now)
			if wait, ok := limit.admit(r.Amount, now); !ok {
				denied = true
				retry = max(retry, wait)
			}
		case ratelimiter.KindConcurrency:
			limit := l.conc[r.Key]
			limit.expire(now)
			if uint64(len(limit.holds))+1 > limit.cap {
				denied = true
				retry = max(retry, limit.nextExpiry(now, def))
			}
		}
	}
	if denied {
		ms := int(retry / time.Millisecond)
		if ms < minRetryAfterMs {
			ms = minRetryAfterMs
		}
		return ratelimiter.ReserveResponse{Allowed: false, RetryAfterMs: ms}, nil
	}

	reserved := make(map[ratelimiter.LimitKey]uint64, len(req.Requirements))
	for _, r := range req.Requirements {
		def, ok := l.defs[r.Key]
		if !ok {
			continue
		}
		switch def.Kind {
		case ratelimiter.KindRolling:
			l.roll[r.Key].add(req.LeaseID, r.Amount, now.Add(time.Duration(def.WindowSeconds)*time.Second))
		case ratelimiter.KindConcurrency:
			l.conc[r.Key].add(req.LeaseID, now.Add(time.Duration(def.TimeoutSeconds)*time.Second))
		}
		reserved[r.Key] = r.Amount
	}
	l.leases[req.LeaseID] = lease{reservedAt: now, reserved: reserved}
	return ratelimiter.ReserveResponse{Allowed: true, ReservedAtUnixMs: now.UnixMilli()}, nil
}

// Complete releases concurrency holds and shrinks rolling reservations to
// the reported usage. Unknown leases are ignored.
func (l *Limiter) Complete(_ context.Context, req ratelimiter.CompleteRequest) (ratelimiter.CompleteResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.leases[req.LeaseID]
	if !ok {
		return ratelimiter.CompleteResponse{Ok: true}, nil
	}
	for key := range state.reserved {
		if limit, ok := l.conc[key]; ok {
			limit.release(req.LeaseID)
		}
	}
	for _, actual := range req.Actuals {
		limit, ok := l.roll[actual.Key]
		if !ok {
			continue
		}
		if actual.ActualAmount < state.reserved[actual.Key] {
			limit.shrink(req.LeaseID, actual.ActualAmount)
		}
	}
	delete(l.leases, req.LeaseID)
	return ratelimiter.CompleteResponse{Ok: true}, nil
}
