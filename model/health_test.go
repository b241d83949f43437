package model

import (
	"slices"
	"testing"
	"time"
)

func TestEndpointHealthTracking(t *testing.T) {
	r := NewDefaultRegistry()

	if !r.IsEndpointAvailable("qwen") {
		t.Error("expected qwen to be available initially")
	}
	if r.GetEndpointHealth("qwen") != nil {
		t.Error("expected no health info before any requests")
	}

	r.MarkEndpointSuccess("qwen")

	health := r.GetEndpointHealth("qwen")
	if health == nil {
		t.Fatal("expected health info after success")
	}
	if !health.Available || health.FailureCount != 0 || health.LastSuccess.IsZero() {
		t.Errorf("unexpected health after success: %+v", health)
	}

	// The returned value is a copy.
	health.FailureCount = 99
	if r.GetEndpointHealth("qwen").FailureCount != 0 {
		t.Error("GetEndpointHealth should return a copy")
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	r := NewDefaultRegistry()
	r.SetHealthConfig(HealthConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  50 * time.Millisecond,
	})

	r.MarkEndpointFailure("groq-llama")
	if !r.IsEndpointAvailable("groq-llama") {
		t.Error("expected available after 1 failure")
	}

	r.MarkEndpointFailure("groq-llama")
	if r.IsEndpointAvailable("groq-llama") {
		t.Error("expected unavailable after circuit opens")
	}
	if h := r.GetEndpointHealth("groq-llama"); !h.CircuitOpen || h.FailureCount != 2 {
		t.Errorf("unexpected health: %+v", h)
	}

	time.Sleep(60 * time.Millisecond)
	if !r.IsEndpointAvailable("groq-llama") {
		t.Error("expected half-open after recovery timeout")
	}

	r.MarkEndpointSuccess("groq-llama")
	if h := r.GetEndpointHealth("groq-llama"); h.CircuitOpen || h.FailureCount != 0 {
		t.Errorf("expected closed circuit after success: %+v", h)
	}
}

func TestGetAvailableFallbackChain(t *testing.T) {
	r := NewDefaultRegistry()
	r.SetHealthConfig(HealthConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})

	r.MarkEndpointFailure("gemini-flash")

	if got := r.GetAvailableFallbackChain(CapabilityPlanning); !slices.Equal(got, []string{"qwen"}) {
		t.Errorf("planning chain = %v, want [qwen]", got)
	}

	// With everything down the full chain is returned.
	r.MarkEndpointFailure("qwen")
	if got := r.GetAvailableFallbackChain(CapabilityPlanning); !slices.Equal(got, []string{"gemini-flash", "qwen"}) {
		t.Errorf("planning chain = %v, want full chain", got)
	}
}

func TestResetEndpointHealth(t *testing.T) {
	r := NewDefaultRegistry()
	r.ResetEndpointHealth("qwen") // no tracker yet

	r.SetHealthConfig(HealthConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	r.MarkEndpointFailure("qwen")
	r.ResetEndpointHealth("qwen")

	if !r.IsEndpointAvailable("qwen") {
		t.Error("expected qwen available after reset")
	}
	if r.GetEndpointHealth("qwen") != nil {
		t.Error("expected health info cleared")
	}
}

func TestHealthSnapshot(t *testing.T) {
	r := NewDefaultRegistry()
	if got := r.HealthSnapshot(); len(got) != 0 {
		t.Errorf("expected empty snapshot, got %v", got)
	}

	r.MarkEndpointSuccess("gemini-flash")
	r.MarkEndpointFailure("qwen")

	snap := r.HealthSnapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap))
	}
	if snap["qwen"].FailureCount != 1 {
		t.Errorf("qwen failures = %d", snap["qwen"].FailureCount)
	}
}

func TestDefaultHealthConfig(t *testing.T) {
	cfg := DefaultHealthConfig()
	if cfg.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, want 3", cfg.FailureThreshold)
	}
	if cfg.RecoveryTimeout != 30*time.Second {
		t.Errorf("RecoveryTimeout = %v, want 30s", cfg.RecoveryTimeout)
	}
}
