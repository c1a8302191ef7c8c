package local

import (
	"context"
	"testing"
	"time"

	"reportqa/internal/testutil"
	"reportqa/pkg/ratelimiter"
)

func rolling(key string, capacity uint64, window int) ratelimiter.LimitDefinition {
	return ratelimiter.LimitDefinition{Key: ratelimiter.LimitKey(key), Kind: ratelimiter.KindRolling, Capacity: capacity, WindowSeconds: window}
}

func concurrency(key string, capacity uint64) ratelimiter.LimitDefinition {
	return ratelimiter.LimitDefinition{Key: ratelimiter.LimitKey(key), Kind: ratelimiter.KindConcurrency, Capacity: capacity, TimeoutSeconds: 30}
}

func reserve(t *testing.T, l *Limiter, lease string, reqs ...ratelimiter.Requirement) ratelimiter.ReserveResponse {
	t.Helper()
	res, err := l.Reserve(context.Background(), ratelimiter.ReserveRequest{LeaseID: lease, Requirements: reqs})
	if err != nil {
		t.Fatalf("reserve %s: %v", lease, err)
	}
	return res
}

func need(key string, amount uint64) ratelimiter.Requirement {
	return ratelimiter.Requirement{Key: ratelimiter.LimitKey(key), Amount: amount}
}

// TestRollingAllowThenDeny verifies a full window denies with a retry hint.
func TestRollingAllowThenDeny(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	l, err := New([]ratelimiter.LimitDefinition{rolling("rpm", 2, 60)}, clock)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, lease := range []string{"L1", "L2"} {
		if res := reserve(t, l, lease, need("rpm", 1)); !res.Allowed {
			t.Fatalf("expected %s allowed", lease)
		}
	}
	res := reserve(t, l, "L3", need("rpm", 1))
	if res.Allowed {
		t.Fatalf("expected deny")
	}
	if res.RetryAfterMs != 60000 {
		t.Fatalf("expected retry after 60000ms, got %d", res.RetryAfterMs)
	}
	clock.Advance(61 * time.Second)
	if res := reserve(t, l, "L4", need("rpm", 1)); !res.Allowed {
		t.Fatalf("expected window expiry to free capacity")
	}
}

// TestReserveIsAllOrNothing verifies a denied key leaves other keys untouched.
func TestReserveIsAllOrNothing(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	l, err := New([]ratelimiter.LimitDefinition{rolling("a", 1, 10), rolling("b", 1, 10)}, clock)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if res := reserve(t, l, "L1", need("b", 1)); !res.Allowed {
		t.Fatalf("expected b allowed")
	}
	if res := reserve(t, l, "L2", need("a", 1), need("b", 1)); res.Allowed {
		t.Fatalf("expected deny when b is full")
	}
	if res := reserve(t, l, "L3", need("a", 1)); !res.Allowed {
		t.Fatalf("expected a to remain free")
	}
}

// TestCompleteReleasesConcurrencyAndSlack verifies reconciliation frees capacity.
func TestCompleteReleasesConcurrencyAndSlack(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	l, err := New([]ratelimiter.LimitDefinition{rolling("tpm", 100, 60), concurrency("conc", 1)}, clock)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if res := reserve(t, l, "L1", need("tpm", 90), need("conc", 1)); !res.Allowed {
		t.Fatalf("expected first reservation allowed")
	}
	if res := reserve(t, l, "L2", need("tpm", 50), need("conc", 1)); res.Allowed {
		t.Fatalf("expected deny while held")
	}
	_, err = l.Complete(context.Background(), ratelimiter.CompleteRequest{
		LeaseID: "L1",
		Actuals: []ratelimiter.Actual{{Key: "tpm", ActualAmount: 20}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res := reserve(t, l, "L2", need("tpm", 50), need("conc", 1)); !res.Allowed {
		t.Fatalf("expected reservation after completion, got %+v", res)
	}
}

func TestUnknownKeysAreUnlimited(t *testing.T) {
	l, err := New(nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, lease := range []string{"L1", "L2", "L3"} {
		if res := reserve(t, l, lease, need("llm:openai:gpt-4o:rpm", 1)); !res.Allowed {
			t.Fatalf("expected unlimited key to allow")
		}
	}
}

// TestOversizedRequestRunsAlone verifies a request above capacity is not starved.
func TestOversizedRequestRunsAlone(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	l, err := New([]ratelimiter.LimitDefinition{rolling("tpm", 10, 60)}, clock)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if res := reserve(t, l, "L1", need("tpm", 50)); !res.Allowed {
		t.Fatalf("expected oversized request admitted into empty window")
	}
	if res := reserve(t, l, "L2", need("tpm", 1)); res.Allowed {
		t.Fatalf("expected window to be exhausted")
	}
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	cases := []ratelimiter.LimitDefinition{
		{Key: "", Kind: ratelimiter.KindRolling, WindowSeconds: 1},
		{Key: "x", Kind: ratelimiter.KindRolling},
		{Key: "x", Kind: "bucket", WindowSeconds: 1},
	}
	for _, def := range cases {
		if _, err := New([]ratelimiter.LimitDefinition{def}, nil); err == nil {
			t.Fatalf("expected error for %+v", def)
		}
	}
	if _, err := New([]ratelimiter.LimitDefinition{rolling("a", 1, 1), rolling("a", 1, 1)}, nil); err == nil {
		t.Fatalf("expected duplicate error")
	}
}
