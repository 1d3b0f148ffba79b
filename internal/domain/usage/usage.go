package usage

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/tablefinder/internal/domain"
)

// Period is the budget window a report covers.
type Period string

// Budget windows.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a query value to a Period. Empty means the daily window.
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("%w: period must be day or month, got %q", domain.ErrInvalidPeriod, s)
	}
}

// Report is a snapshot of LLM token consumption against the configured budget.
type Report struct {
	provider    string
	period      Period
	periodStart time.Time
	periodEnd   time.Time
	limit       int64
	used        int64
	remaining   int64
}

// NewReport creates a report. A zero limit means unlimited and remaining is
// reported as -1.
func NewReport(provider string, period Period, start, end time.Time, limit, used, remaining int64) Report {
	if limit == 0 {
		remaining = -1
	}
	return Report{
		provider:    provider,
		period:      period,
		periodStart: start,
		periodEnd:   end,
		limit:       limit,
		used:        used,
		remaining:   remaining,
	}
}

// Provider returns the LLM provider name.
func (r *Report) Provider() string { return r.provider }

// Period returns the budget window.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the inclusive window start (UTC).
func (r *Report) PeriodStart() time.Time { return r.periodStart }

// PeriodEnd returns the exclusive window end, which is also when the counter resets.
func (r *Report) PeriodEnd() time.Time { return r.periodEnd }

// TokensLimit returns the cap, 0 when unlimited.
func (r *Report) TokensLimit() int64 { return r.limit }

// TokensUsed returns tokens consumed in the window.
func (r *Report) TokensUsed() int64 { return r.used }

// TokensRemaining returns tokens left, -1 when unlimited.
func (r *Report) TokensRemaining() int64 { return r.remaining }

// Unlimited reports whether no cap is configured.
func (r *Report) Unlimited() bool { return r.limit == 0 }

// IsExhausted reports whether the window's budget is spent.
func (r *Report) IsExhausted() bool { return r.limit > 0 && r.remaining <= 0 }
