package ratelimiter

// LimitKey identifies the resource being limited.
type LimitKey string

// LimitKind defines the limiter semantics.
type LimitKind string

const (
	// KindRolling caps the amount reserved within a rolling window.
	KindRolling LimitKind = "rolling"
	// KindConcurrency caps the amount held by in-flight leases.
	KindConcurrency LimitKind = "concurrency"
)

// LimitDefinition configures one limit.
type LimitDefinition struct {
	Key            LimitKey  `json:"key" yaml:"key"`
	Kind           LimitKind `json:"kind" yaml:"kind"`
	Capacity       uint64    `json:"capacity" yaml:"capacity"`
	WindowSeconds  int       `json:"window_seconds" yaml:"window_seconds"`
	TimeoutSeconds int       `json:"timeout_seconds" yaml:"timeout_seconds"`
	Unit           string    `json:"unit" yaml:"unit"`
	Description    string    `json:"description" yaml:"description"`
}

// Requirement is a requested reservation for a limit.
type Requirement struct {
	Key    LimitKey `json:"key"`
	Amount uint64   `json:"amount"`
}

// Actual reports the actual usage for reconciliation.
type Actual struct {
	Key          LimitKey `json:"key"`
	ActualAmount uint64   `json:"actual_amount"`
}

// ReserveRequest asks to reserve capacity for a lease.
type ReserveRequest struct {
	LeaseID      string        `json:"lease_id"`
	JobID        string        `json:"job_id"`
	Requirements []Requirement `json:"requirements"`
}

// ReserveResponse reports whether a reservation was allowed.
type ReserveResponse struct {
	Allowed          bool   `json:"allowed"`
	RetryAfterMs     int    `json:"retry_after_ms"`
	ReservedAtUnixMs int64  `json:"reserved_at_unix_ms"`
	Error            string `json:"error"`
}

// CompleteRequest reports actual usage for a lease.
type CompleteRequest struct {
	LeaseID string   `json:"lease_id"`
	JobID   string   `json:"job_id"`
	Actuals []Actual `json:"actuals"`
}

// CompleteResponse reports whether completion succeeded.
type CompleteResponse struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error"`
}
