package ratelimiter

import "testing"

// TestBuildLLMRequirementsContainsExpectedKeys verifies request, token and concurrency requirements.
func TestBuildLLMRequirementsContainsExpectedKeys(t *testing.T) {
	input := LLMReserveInput{
		Provider:        "openai",
		Model:           "gpt-4o",
		Prompt:          "hello",
		MaxOutputTokens: 50,
	}
	reqs := BuildLLMRequirements(input)
	expected := map[LimitKey]uint64{
		RPMKey("openai", "gpt-4o"):         1,
		TPMKey("openai", "gpt-4o"):         55,
		ConcurrencyKey("openai", "gpt-4o"): 1,
	}
	if len(reqs) != len(expected) {
		t.Fatalf("expected %d requirements, got %d", len(expected), len(reqs))
	}
	for _, req := range reqs {
		amount, ok := expected[req.Key]
		if !ok {
			t.Fatalf("unexpected key %s", req.Key)
		}
		if req.Amount != amount {
			t.Fatalf("expected %s amount %d, got %d", req.Key, amount, req.Amount)
		}
	}
}

func TestKeysIncludeProviderAndModel(t *testing.T) {
	if got := string(RPMKey("huggingface", "meta-llama/Meta-Llama-3-8B-Instruct")); got != "llm:huggingface:meta-llama/Meta-Llama-3-8B-Instruct:rpm" {
		t.Fatalf("unexpected key %q", got)
	}
}
