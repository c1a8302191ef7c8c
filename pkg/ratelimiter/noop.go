package ratelimiter

import "context"

// NoopLimiter allows every reservation.
var NoopLimiter Limiter = noopLimiter{}

type noopLimiter struct{}

func (noopLimiter) Reserve(_ context.Context, _ ReserveRequest) (ReserveResponse, error) {
	return ReserveResponse{Allowed: true}, nil
}

func (noopLimiter) Complete(_ context.Context, _ CompleteRequest) (CompleteResponse, error) {
	return CompleteResponse{Ok: true}, nil
}
