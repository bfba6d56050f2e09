package health

import (
	"context"

	"github.com/kailas-cloud/pictura/internal/domain"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckLoading indicates a component that is still starting.
	CheckLoading CheckResult = "loading"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        Pinger
	cache     Pinger
	extractor ExtractorStatus
}

// New creates a Service. cache can be nil when caching is disabled.
func New(db Pinger, cache Pinger, extractor ExtractorStatus) *Service {
	return &Service{db: db, cache: cache, extractor: extractor}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks["database"] = ping(ctx, s.db)
	if s.cache != nil {
		checks["cache"] = ping(ctx, s.cache)
	}

	if s.extractor != nil {
		state, _ := s.extractor.Status()
		switch state {
		case domain.ExtractorReady:
			checks["extractor"] = CheckOK
		case domain.ExtractorLoading:
			checks["extractor"] = CheckLoading
		default:
			checks["extractor"] = CheckError
		}
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func ping(ctx context.Context, p Pinger) CheckResult {
	if err := p.Ping(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
