package profit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tornwatch/tornwatch/internal/storage"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func localNoon() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.Local)
}

func TestAggregator_Totals(t *testing.T) {
	a := NewAggregator("acct-1", nil)
	a.SetClock(localNoon)

	a.AddIncome("crime", 3_000)
	a.AddIncome("market", 1_500)
	a.AddExpense("goods", 1_000)
	a.IncrementStat("crimes", 2)

	totals := a.Totals()
	assert.Equal(t, int64(4_500), totals.Income)
	assert.Equal(t, int64(1_000), totals.Expense)
	assert.Equal(t, int64(3_500), totals.Net)
	assert.InDelta(t, 3_500.0/12.0, totals.PerHour, 0.01)
	assert.Equal(t, 2, a.Ledger().Stats["crimes"])
}

func TestAggregator_PerHourFlooredAtOneHour(t *testing.T) {
	a := NewAggregator("acct-1", nil)
	now := time.Now()
	a.SetClock(func() time.Time {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 10, 0, 0, time.Local)
	})

	a.AddIncome("crime", 6_000)
	totals := a.Totals()
	assert.InDelta(t, 6_000.0, totals.PerHour, 0.01, "ten minutes into the day still divides by one hour")
}

func TestAggregator_LazyDayRollover(t *testing.T) {
	s := newTestStorage(t)
	a := NewAggregator("acct-1", s)

	day1 := localNoon()
	clock := day1
	a.SetClock(func() time.Time { return clock })

	a.AddIncome("crime", 5_000)
	date1 := day1.Format("2006-01-02")
	assert.Equal(t, date1, a.Ledger().Date)

	// Crossing midnight swaps in a fresh ledger on next touch and persists
	// the displaced day.
	clock = day1.Add(24 * time.Hour)
	totals := a.Totals()
	assert.Equal(t, int64(0), totals.Income)
	assert.Equal(t, clock.Format("2006-01-02"), a.Ledger().Date)

	persisted, err := s.LoadDailyLedger("acct-1", date1)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, int64(5_000), persisted.Income["crime"])
}

func TestAggregator_RestoresTodaysLedger(t *testing.T) {
	s := newTestStorage(t)

	a := NewAggregator("acct-1", s)
	a.AddIncome("market", 2_500)
	require.NoError(t, a.Flush())

	// A restart mid-day picks the persisted ledger back up.
	b := NewAggregator("acct-1", s)
	assert.Equal(t, int64(2_500), b.Totals().Income)
}

func TestAggregator_FlushPersists(t *testing.T) {
	s := newTestStorage(t)
	a := NewAggregator("acct-1", s)

	a.AddExpense("goods", 750)
	require.NoError(t, a.Flush())

	persisted, err := s.LoadDailyLedger("acct-1", a.Ledger().Date)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, int64(750), persisted.Expense["goods"])
}
