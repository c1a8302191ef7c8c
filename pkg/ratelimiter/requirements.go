package ratelimiter

import "fmt"

// LLMReserveInput captures the fields needed to build model call requirements.
type LLMReserveInput struct {
	Provider        string
	Model           string
	Prompt          string
	MaxOutputTokens uint64
}

// EstimatePromptTokens returns a conservative token estimate for a prompt:
// one token per byte.
func EstimatePromptTokens(prompt string) uint64 {
	return uint64(len(prompt))
}

// BuildLLMRequirements reserves one request, the token upper bound and one
// concurrency slot for the provider/model pair.
func BuildLLMRequirements(in LLMReserveInput) []Requirement {
	upper := EstimatePromptTokens(in.Prompt) + in.MaxOutputTokens
	return []Requirement{
		{Key: RPMKey(in.Provider, in.Model), Amount: 1},
		{Key: TPMKey(in.Provider, in.Model), Amount: upper},
		{Key: ConcurrencyKey(in.Provider, in.Model), Amount: 1},
	}
}

// RPMKey is the requests-per-minute key for a provider/model pair.
func RPMKey(provider, model string) LimitKey {
	return LimitKey(fmt.Sprintf("llm:%s:%s:rpm", provider, model))
}

// TPMKey is the tokens-per-minute key for a provider/model pair.
func TPMKey(provider, model string) LimitKey {
	return LimitKey(fmt.Sprintf("llm:%s:%s:tpm", provider, model))
}

// ConcurrencyKey is the in-flight key for a provider/model pair.
func ConcurrencyKey(provider, model string) LimitKey {
	return LimitKey(fmt.Sprintf("llm:%s:%s:concurrency", provider, model))
}
