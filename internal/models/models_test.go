package models

import (
	"testing"
	"time"
)

func validSnapshot() *Snapshot {
	return &Snapshot{
		AccountID: "acct-1",
		TakenAt:   time.Now(),
		Cash:      100_000,
		Location:  HomeCity,
	}
}

func TestSnapshot_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Snapshot)
		wantErr bool
	}{
		{"valid", func(s *Snapshot) {}, false},
		{"empty account", func(s *Snapshot) { s.AccountID = "" }, true},
		{"zero taken_at", func(s *Snapshot) { s.TakenAt = time.Time{} }, true},
		{"negative cash", func(s *Snapshot) { s.Cash = -1 }, true},
		{"empty location", func(s *Snapshot) { s.Location = "" }, true},
		{"negative time left", func(s *Snapshot) { s.Travel.TimeLeft = -1 }, true},
		{"flying without destination", func(s *Snapshot) { s.Travel.TimeLeft = 100 }, true},
		{"flying with destination", func(s *Snapshot) {
			s.Travel = Travel{Destination: "Japan", TimeLeft: 100}
		}, false},
		{"negative listing", func(s *Snapshot) {
			s.Listings = []Listing{{Source: SourceMarket, ListingID: 1, UnitPrice: -5, Quantity: 1}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSnapshot()
			tt.mutate(s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshot_Abroad(t *testing.T) {
	s := validSnapshot()
	if s.Abroad() {
		t.Error("home city must not read as abroad")
	}
	s.Location = "Japan"
	if !s.Abroad() {
		t.Error("foreign location must read as abroad")
	}
	s.Location = ""
	if s.Abroad() {
		t.Error("unknown location must not read as abroad")
	}
}

func TestSnapshot_InventoryCount(t *testing.T) {
	s := validSnapshot()
	if got := s.InventoryCount(206); got != 0 {
		t.Errorf("nil inventory should count 0, got %d", got)
	}
	s.Inventory = map[int]int{206: 4}
	if got := s.InventoryCount(206); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
}

func TestListing_Revenue(t *testing.T) {
	l := Listing{UnitPrice: 1_500, Quantity: 4}
	if got := l.Revenue(); got != 6_000 {
		t.Errorf("expected 6000, got %d", got)
	}
}

func TestBuyRecord_Remaining(t *testing.T) {
	b := &BuyRecord{Qty: 10, MatchedQty: 4}
	if got := b.Remaining(); got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
}

func TestDailyLedger_Totals(t *testing.T) {
	l := NewDailyLedger("2026-09-01")
	l.Income["crime"] = 3_000
	l.Income["market"] = 2_000
	l.Expense["goods"] = 1_500

	if got := l.TotalIncome(); got != 5_000 {
		t.Errorf("TotalIncome: expected 5000, got %d", got)
	}
	if got := l.TotalExpense(); got != 1_500 {
		t.Errorf("TotalExpense: expected 1500, got %d", got)
	}
	if got := l.Net(); got != 3_500 {
		t.Errorf("Net: expected 3500, got %d", got)
	}
}
