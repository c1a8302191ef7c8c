// Package ratelimiter schedules provider calls against reserve/complete
// limiters so batches stay within per model request, token and concurrency
// limits.
package ratelimiter

import "context"

// Limiter reserves capacity before a call and reconciles actual usage after.
type Limiter interface {
	Reserve(ctx context.Context, req ReserveRequest) (ReserveResponse, error)
	Complete(ctx context.Context, req CompleteRequest) (CompleteResponse, error)
}
