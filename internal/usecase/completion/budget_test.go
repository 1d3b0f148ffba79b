package completion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tablefinder/internal/domain"
)

func TestBudgetTracker_RejectWhenExceeded(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 0, BudgetActionReject, zap.NewNop())
	bt.Record(100)

	err := bt.Check(context.Background())
	if !errors.Is(err, domain.ErrTokenBudgetExceeded) {
		t.Fatalf("expected ErrTokenBudgetExceeded, got %v", err)
	}
	if !errors.Is(err, domain.ErrAIServiceUnavailable) {
		t.Fatalf("budget rejection must read as an unavailable AI service, got %v", err)
	}
}

func TestBudgetTracker_WarnWhenExceeded(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 0, BudgetActionWarn, zap.NewNop())
	bt.Record(200)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil error for warn action, got %v", err)
	}
}

func TestBudgetTracker_MonthlyReject(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 500, BudgetActionReject, zap.NewNop())
	bt.Record(500)

	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrTokenBudgetExceeded) {
		t.Fatalf("expected ErrTokenBudgetExceeded for monthly limit, got %v", err)
	}
}

func TestBudgetTracker_Unlimited(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 0, BudgetActionReject, zap.NewNop())
	bt.Record(999_999_999)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil error for unlimited budget, got %v", err)
	}
	if bt.RemainingDaily() != -1 || bt.RemainingMonthly() != -1 {
		t.Errorf("unlimited remaining: got %d/%d", bt.RemainingDaily(), bt.RemainingMonthly())
	}
}

func TestBudgetTracker_Remaining(t *testing.T) {
	bt := NewBudgetTracker("test", 1000, 10000, BudgetActionWarn, zap.NewNop())
	bt.Record(300)

	if got := bt.RemainingDaily(); got != 700 {
		t.Errorf("daily remaining: want 700 got %d", got)
	}
	if got := bt.RemainingMonthly(); got != 9700 {
		t.Errorf("monthly remaining: want 9700 got %d", got)
	}

	bt.Record(5000)
	if got := bt.RemainingDaily(); got != 0 {
		t.Errorf("daily remaining must floor at 0, got %d", got)
	}
	if bt.DailyUsed() != 5300 || bt.MonthlyUsed() != 5300 {
		t.Errorf("used = %d/%d, want 5300/5300", bt.DailyUsed(), bt.MonthlyUsed())
	}
	if bt.DailyLimit() != 1000 || bt.MonthlyLimit() != 10000 || bt.Provider() != "test" {
		t.Errorf("limits = %d/%d provider %q", bt.DailyLimit(), bt.MonthlyLimit(), bt.Provider())
	}
}

func TestBudgetTracker_DayRollover(t *testing.T) {
	now := time.Date(2026, 10, 16, 23, 59, 0, 0, time.UTC)
	bt := NewBudgetTracker("test", 100, 1000, BudgetActionReject, zap.NewNop())
	bt.now = func() time.Time { return now }
	bt.lastDayReset = truncateToDay(now)
	bt.lastMonthReset = truncateToMonth(now)

	bt.Record(100)
	if err := bt.Check(context.Background()); err == nil {
		t.Fatal("expected daily budget to be exhausted")
	}

	now = now.Add(2 * time.Minute)
	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("daily budget must reset at midnight UTC: %v", err)
	}
	if got := bt.RemainingMonthly(); got != 900 {
		t.Errorf("monthly usage must survive the day rollover, remaining %d", got)
	}
	if got := bt.DailyUsed(); got != 0 {
		t.Errorf("daily used after rollover = %d, want 0", got)
	}
}

type mockBudgetStore struct {
	mu     sync.Mutex
	values map[string]int64
	getErr error
}

func (m *mockBudgetStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] += val
	return nil
}

func (m *mockBudgetStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.values[key], nil
}

func TestBudgetTracker_WithStore(t *testing.T) {
	now := time.Now().UTC()
	store := &mockBudgetStore{values: map[string]int64{}}
	bt := NewBudgetTracker("openai", 1000, 0, BudgetActionWarn, zap.NewNop())
	store.values[bt.dailyKey(now)] = 400

	bt.WithStore(context.Background(), store)
	if got := bt.RemainingDaily(); got != 600 {
		t.Fatalf("loaded usage: want remaining 600 got %d", got)
	}

	bt.Record(50)
	if got := store.values[bt.dailyKey(now)]; got != 450 {
		t.Errorf("persisted daily: want 450 got %d", got)
	}
	if got := store.values[bt.monthlyKey(now)]; got != 50 {
		t.Errorf("persisted monthly: want 50 got %d", got)
	}
}

func TestBudgetTracker_WithStoreLoadError(t *testing.T) {
	store := &mockBudgetStore{values: map[string]int64{}, getErr: errors.New("down")}
	bt := NewBudgetTracker("openai", 1000, 0, BudgetActionWarn, zap.NewNop())

	bt.WithStore(context.Background(), store)
	if got := bt.RemainingDaily(); got != 1000 {
		t.Fatalf("load failure must start from zero, remaining %d", got)
	}
}

func TestBudgetTracker_ConcurrentRecord(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 0, BudgetActionWarn, zap.NewNop())

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bt.Record(2)
		}()
	}
	wg.Wait()

	bt.mu.Lock()
	defer bt.mu.Unlock()
	if bt.dailyUsed != 100 {
		t.Fatalf("want 100 tokens recorded, got %d", bt.dailyUsed)
	}
}
