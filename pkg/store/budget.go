package store

import (
	"sync"
	"time"
)

const (
	// DefaultDailyBudget is the default spend limit per calendar day.
	DefaultDailyBudget = 5.0

	// warnThreshold is the fraction of the daily limit at which
	// ShouldWarn starts reporting true.
	warnThreshold = 0.8

	// historyRetention is how long per-day spend records are kept.
	historyRetention = 30 * 24 * time.Hour

	dayFormat = "2006-01-02"
)

type dayUsage struct {
	Cost     float64 `json:"cost"`
	Requests int     `json:"requests"`
}

type budgetState struct {
	Days          map[string]*dayUsage `json:"daily_usage"`
	TotalCost     float64              `json:"total_cost"`
	TotalRequests int                  `json:"total_requests"`
}

// BudgetStats summarizes spend for callers.
type BudgetStats struct {
	DailyLimit    float64 `json:"daily_limit"`
	SpentToday    float64 `json:"spent_today"`
	Remaining     float64 `json:"remaining"`
	RequestsToday int     `json:"requests_today"`
	TotalCost     float64 `json:"total_cost"`
	TotalRequests int     `json:"total_requests"`
}

// Budget tracks cumulative LLM spend against a rolling daily limit and gates
// whether a prospective call may proceed. The day boundary rolls implicitly:
// spend is keyed by calendar date, so crossing midnight always returns the
// guard to under-budget. The counter update is mutex-guarded; a lost
// increment here would silently blow the budget, which defeats the guard.
type Budget struct {
	mu    sync.Mutex
	path  string
	limit float64
	state budgetState
	now   func() time.Time
}

// NewBudget opens (or creates) the spend ledger at path. A negative limit
// means DefaultDailyBudget; a limit of exactly 0 denies all spending.
func NewBudget(path string, dailyLimit float64) (*Budget, error) {
	if dailyLimit < 0 {
		dailyLimit = DefaultDailyBudget
	}
	b := &Budget{
		path:  path,
		limit: dailyLimit,
		state: budgetState{Days: make(map[string]*dayUsage)},
		now:   time.Now,
	}
	if err := loadJSON(path, &b.state); err != nil {
		return nil, err
	}
	if b.state.Days == nil {
		b.state.Days = make(map[string]*dayUsage)
	}
	return b, nil
}

// DailyLimit returns the configured per-day limit.
func (b *Budget) DailyLimit() float64 { return b.limit }

// CanSpend reports whether spending estimated on top of today's total would
// stay within the daily limit. Read-only: a denied attempt changes nothing.
func (b *Budget) CanSpend(estimated float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spentTodayLocked()+estimated <= b.limit
}

// LogSpend records the actual cost of a completed LLM call against today and
// persists the ledger.
func (b *Budget) LogSpend(actual float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := b.now().Format(dayFormat)
	day, ok := b.state.Days[key]
	if !ok {
		day = &dayUsage{}
		b.state.Days[key] = day
	}
	day.Cost += actual
	day.Requests++
	b.state.TotalCost += actual
	b.state.TotalRequests++

	b.pruneLocked()
	return saveJSON(b.path, &b.state)
}

// SpentToday returns today's recorded spend.
func (b *Budget) SpentToday() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spentTodayLocked()
}

// ShouldWarn reports whether today's spend has reached the warning fraction
// of the daily limit.
func (b *Budget) ShouldWarn() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit > 0 && b.spentTodayLocked() >= b.limit*warnThreshold
}

// Stats reports today's and lifetime spend.
func (b *Budget) Stats() BudgetStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := BudgetStats{
		DailyLimit:    b.limit,
		SpentToday:    b.spentTodayLocked(),
		TotalCost:     b.state.TotalCost,
		TotalRequests: b.state.TotalRequests,
	}
	if day, ok := b.state.Days[b.now().Format(dayFormat)]; ok {
		st.RequestsToday = day.Requests
	}
	st.Remaining = b.limit - st.SpentToday
	if st.Remaining < 0 {
		st.Remaining = 0
	}
	return st
}

func (b *Budget) spentTodayLocked() float64 {
	if day, ok := b.state.Days[b.now().Format(dayFormat)]; ok {
		return day.Cost
	}
	return 0
}

// pruneLocked drops per-day records older than the retention window.
// Lifetime totals are unaffected.
func (b *Budget) pruneLocked() {
	cutoff := b.now().Add(-historyRetention).Format(dayFormat)
	for key := range b.state.Days {
		if key < cutoff {
			delete(b.state.Days, key)
		}
	}
}
