package models

// DailyLedger accumulates categorized income and expense plus activity stat
// counters for one local calendar day. A fresh instance replaces it when the
// wall-clock date rolls over.
type DailyLedger struct {
	Date    string           `json:"date"` // YYYY-MM-DD, account-local
	Income  map[string]int64 `json:"income"`
	Expense map[string]int64 `json:"expense"`
	Stats   map[string]int   `json:"stats"`
}

// NewDailyLedger returns an empty ledger for the given local date.
func NewDailyLedger(date string) *DailyLedger {
	return &DailyLedger{
		Date:    date,
		Income:  make(map[string]int64),
		Expense: make(map[string]int64),
		Stats:   make(map[string]int),
	}
}

// TotalIncome sums all income categories.
func (l *DailyLedger) TotalIncome() int64 {
	var total int64
	for _, v := range l.Income {
		total += v
	}
	return total
}

// TotalExpense sums all expense categories.
func (l *DailyLedger) TotalExpense() int64 {
	var total int64
	for _, v := range l.Expense {
		total += v
	}
	return total
}

// Net returns income minus expense.
func (l *DailyLedger) Net() int64 {
	return l.TotalIncome() - l.TotalExpense()
}
