package llm

import (
	"errors"
	"testing"
)

func TestEstimateCost(t *testing.T) {
	// gpt-4o-mini: $0.15 prompt / $0.60 completion за 1M токенов
	got := EstimateCost("gpt-4o-mini", 1000, 500)
	want := 0.00015 + 0.0003
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}

	if got := EstimateCost("unknown-model", 1000, 1000); got != 0 {
		t.Errorf("unknown model must cost 0, got %f", got)
	}
}

func TestNewOpenAIProvider_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIProvider(OpenAIConfig{})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}
