package health

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockChecker struct {
	err error
}

func (m *mockChecker) HealthCheck(_ context.Context) error { return m.err }

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck(t *testing.T) {
	down := errors.New("down")
	tests := []struct {
		name    string
		dataset error
		cache   CachePinger
		llm     LLMChecker
		status  Status
		checks  map[string]CheckResult
	}{
		{
			name:   "all healthy",
			cache:  &mockPinger{},
			llm:    &mockChecker{},
			status: Healthy,
			checks: map[string]CheckResult{ComponentDataset: CheckOK, ComponentCache: CheckOK, ComponentLLM: CheckOK},
		},
		{
			name:   "optional components absent",
			status: Healthy,
			checks: map[string]CheckResult{ComponentDataset: CheckOK},
		},
		{
			name:   "llm down degrades",
			llm:    &mockChecker{err: down},
			status: Degraded,
			checks: map[string]CheckResult{ComponentDataset: CheckOK, ComponentLLM: CheckError},
		},
		{
			name:   "cache down degrades",
			cache:  &mockPinger{err: down},
			llm:    &mockChecker{},
			status: Degraded,
			checks: map[string]CheckResult{ComponentDataset: CheckOK, ComponentCache: CheckError, ComponentLLM: CheckOK},
		},
		{
			name:    "dataset down is unhealthy",
			dataset: down,
			llm:     &mockChecker{err: down},
			status:  Unhealthy,
			checks:  map[string]CheckResult{ComponentDataset: CheckError, ComponentLLM: CheckError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&mockChecker{err: tt.dataset}, tt.cache, tt.llm, zap.NewNop())
			r := svc.Check(context.Background())

			if r.Status != tt.status {
				t.Errorf("status: expected %q, got %q", tt.status, r.Status)
			}
			if len(r.Checks) != len(tt.checks) {
				t.Fatalf("checks: expected %v, got %v", tt.checks, r.Checks)
			}
			for k, want := range tt.checks {
				if r.Checks[k] != want {
					t.Errorf("%s: expected %q, got %q", k, want, r.Checks[k])
				}
			}
		})
	}
}
