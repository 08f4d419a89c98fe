// Package profit rolls matched trades and categorized income/expense events
// into a per-account daily ledger with derived metrics.
package profit

import (
	"fmt"
	"time"

	"github.com/tornwatch/tornwatch/internal/logger"
	"github.com/tornwatch/tornwatch/internal/models"
	"github.com/tornwatch/tornwatch/internal/storage"
)

// Totals is the derived view over the active daily ledger.
type Totals struct {
	Income  int64
	Expense int64
	Net     int64
	PerHour float64
}

// Aggregator owns one account's active DailyLedger. Every access performs a
// lazy day-boundary check first: when the wall-clock date has advanced, a
// fresh ledger replaces the stale one before the operation proceeds. A ledger
// can therefore go stale by at most one call but self-corrects on next access.
type Aggregator struct {
	accountID string
	storage   *storage.Storage
	ledger    *models.DailyLedger
	loc       *time.Location
	now       func() time.Time
}

// NewAggregator returns an aggregator for accountID, restoring today's ledger
// from st when one was already persisted. st may be nil for in-memory use.
func NewAggregator(accountID string, st *storage.Storage) *Aggregator {
	a := &Aggregator{
		accountID: accountID,
		storage:   st,
		loc:       time.Local,
		now:       time.Now,
	}
	if st != nil {
		if l, err := st.LoadDailyLedger(accountID, a.today()); err != nil {
			logger.Warn("Failed to restore daily ledger for %s: %v", accountID, err)
		} else if l != nil {
			a.ledger = l
		}
	}
	return a
}

// SetClock overrides the aggregator's clock.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
}

// AddIncome adds amount to an income category.
func (a *Aggregator) AddIncome(category string, amount int64) {
	a.rollover()
	a.ledger.Income[category] += amount
}

// AddExpense adds amount to an expense category.
func (a *Aggregator) AddExpense(category string, amount int64) {
	a.rollover()
	a.ledger.Expense[category] += amount
}

// IncrementStat bumps an activity counter.
func (a *Aggregator) IncrementStat(key string, n int) {
	a.rollover()
	a.ledger.Stats[key] += n
}

// Totals returns the active day's aggregates. perHour divides net profit by
// hours since local-day start, floored at one hour so a fresh rollover does
// not blow the rate up.
func (a *Aggregator) Totals() Totals {
	a.rollover()
	now := a.now().In(a.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)
	hours := now.Sub(dayStart).Hours()
	if hours < 1 {
		hours = 1
	}
	net := a.ledger.Net()
	return Totals{
		Income:  a.ledger.TotalIncome(),
		Expense: a.ledger.TotalExpense(),
		Net:     net,
		PerHour: float64(net) / hours,
	}
}

// Ledger exposes the active ledger after a boundary check.
func (a *Aggregator) Ledger() *models.DailyLedger {
	a.rollover()
	return a.ledger
}

// Flush persists the active ledger.
func (a *Aggregator) Flush() error {
	a.rollover()
	if a.storage == nil {
		return nil
	}
	if err := a.storage.SaveDailyLedger(a.accountID, a.ledger); err != nil {
		return fmt.Errorf("failed to flush daily ledger: %w", err)
	}
	return nil
}

func (a *Aggregator) today() string {
	return a.now().In(a.loc).Format("2006-01-02")
}

// rollover substitutes a fresh ledger when the wall-clock date advanced. The
// displaced day is persisted best-effort so its totals survive the boundary.
func (a *Aggregator) rollover() {
	date := a.today()
	if a.ledger != nil && a.ledger.Date == date {
		return
	}
	if a.ledger != nil && a.storage != nil {
		if err := a.storage.SaveDailyLedger(a.accountID, a.ledger); err != nil {
			logger.Warn("Failed to persist rolled-over ledger %s/%s: %v",
				a.accountID, a.ledger.Date, err)
		}
	}
	a.ledger = models.NewDailyLedger(date)
}
