package health

import (
	"context"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component failed; search still works.
	Degraded Status = "degraded"
	// Unhealthy indicates the dataset is unavailable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	ComponentDataset = "dataset"
	ComponentCache   = "cache"
	ComponentLLM     = "llm"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	dataset DatasetChecker
	cache   CachePinger
	llm     LLMChecker
	logger  *zap.Logger
}

// New creates a Service. cache and llm can be nil.
func New(dataset DatasetChecker, cache CachePinger, llm LLMChecker, logger *zap.Logger) *Service {
	return &Service{dataset: dataset, cache: cache, llm: llm, logger: logger}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, 3)
	status := Healthy

	if err := s.dataset.HealthCheck(ctx); err != nil {
		s.logger.Warn("Dataset health check failed", zap.Error(err))
		checks[ComponentDataset] = CheckError
		status = Unhealthy
	} else {
		checks[ComponentDataset] = CheckOK
	}

	if s.cache != nil {
		checks[ComponentCache] = s.optional(ComponentCache, s.cache.Ping(ctx), &status)
	}
	if s.llm != nil {
		checks[ComponentLLM] = s.optional(ComponentLLM, s.llm.HealthCheck(ctx), &status)
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) optional(name string, err error, status *Status) CheckResult {
	if err == nil {
		return CheckOK
	}
	s.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
	if *status == Healthy {
		*status = Degraded
	}
	return CheckError
}
