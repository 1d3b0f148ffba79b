package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/tablefinder/internal/domain/usage"
)

// Service reports LLM token consumption.
type Service struct {
	br       BudgetReader
	provider string
	now      func() time.Time
}

// New creates a Service. br can be nil when no budget is configured; provider
// names the completer in that case.
func New(br BudgetReader, provider string) *Service {
	if br != nil {
		provider = br.Provider()
	}
	return &Service{br: br, provider: provider, now: time.Now}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now().UTC()
	var start, end time.Time
	var limit, used, remaining int64

	switch period {
	case domusage.PeriodMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
		if s.br != nil {
			limit = s.br.MonthlyLimit()
			used = s.br.MonthlyUsed()
			remaining = s.br.RemainingMonthly()
		}
	default:
		period = domusage.PeriodDay
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
		if s.br != nil {
			limit = s.br.DailyLimit()
			used = s.br.DailyUsed()
			remaining = s.br.RemainingDaily()
		}
	}

	return domusage.NewReport(s.provider, period, start, end, limit, used, remaining)
}
