// Package ratelimit turns the rate_limiter config section into a limiter for
// the batch scheduler.
package ratelimit

import (
	"fmt"
	"strings"

	"reportqa/internal/spec"
	"reportqa/pkg/ratelimiter"
	"reportqa/pkg/ratelimiter/local"
)

const (
	ModeDisabled = "disabled"
	ModeEmbedded = "embedded"

	fallbackMaxOutputTokens uint64 = 512

	windowSeconds      = 60
	holdTimeoutSeconds = 300
)

// BuildLimiter constructs the limiter selected by cfg.RateLimiter.Mode.
func BuildLimiter(cfg spec.Config) (ratelimiter.Limiter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.RateLimiter.Mode)) {
	case "", ModeDisabled:
		return ratelimiter.NoopLimiter, nil
	case ModeEmbedded:
		limiter, err := local.New(Definitions(cfg.RateLimiter.Limits), nil)
		if err != nil {
			return nil, fmt.Errorf("build embedded limiter: %w", err)
		}
		return limiter, nil
	default:
		return nil, fmt.Errorf("unsupported rate limiter mode %q", cfg.RateLimiter.Mode)
	}
}

// Definitions expands per-model limits into limiter definitions. Zero
// values produce no definition for that dimension.
func Definitions(limits []spec.ModelLimit) []ratelimiter.LimitDefinition {
	var defs []ratelimiter.LimitDefinition
	for _, limit := range limits {
		provider := strings.TrimSpace(limit.Provider)
		model := strings.TrimSpace(limit.Model)
		if limit.RPM > 0 {
			defs = append(defs, ratelimiter.LimitDefinition{
				Key:           ratelimiter.RPMKey(provider, model),
				Kind:          ratelimiter.KindRolling,
				Capacity:      limit.RPM,
				WindowSeconds: windowSeconds,
				Unit:          "requests",
			})
		}
		if limit.TPM > 0 {
			defs = append(defs, ratelimiter.LimitDefinition{
				Key:           ratelimiter.TPMKey(provider, model),
				Kind:          ratelimiter.KindRolling,
				Capacity:      limit.TPM,
				WindowSeconds: windowSeconds,
				Unit:          "tokens",
			})
		}
		if limit.Concurrency > 0 {
			defs = append(defs, ratelimiter.LimitDefinition{
				Key:            ratelimiter.ConcurrencyKey(provider, model),
				Kind:           ratelimiter.KindConcurrency,
				Capacity:       limit.Concurrency,
				TimeoutSeconds: holdTimeoutSeconds,
				Unit:           "requests",
			})
		}
	}
	return defs
}

// MaxOutputTokens returns the output token bound used for reservations.
func MaxOutputTokens(cfg spec.Config) uint64 {
	if cfg.RateLimiter.MaxOutputTokens > 0 {
		return cfg.RateLimiter.MaxOutputTokens
	}
	if cfg.Engine.MaxOutputTokens > 0 {
		return uint64(cfg.Engine.MaxOutputTokens)
	}
	return fallbackMaxOutputTokens
}
