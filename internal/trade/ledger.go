package trade

import (
	"fmt"
	"math"

	"github.com/tornwatch/tornwatch/internal/models"
	"github.com/tornwatch/tornwatch/internal/storage"
)

// Ledger persists BUY lots and matches SELLs against them oldest-first to
// compute realized profit. Callers must serialize RecordSell per account; lot
// consumption is transactional but not designed for concurrent writers.
type Ledger struct {
	storage *storage.Storage
	taxRate float64
}

// NewLedger returns a ledger writing through st.
func NewLedger(st *storage.Storage, taxRate float64) *Ledger {
	return &Ledger{storage: st, taxRate: taxRate}
}

// RecordBuy appends a BUY lot. Always an append; lots are only ever mutated
// by the matcher and only deleted on a manual history clear.
func (l *Ledger) RecordBuy(b *models.BuyRecord) error {
	if err := l.storage.InsertBuy(b); err != nil {
		return fmt.Errorf("failed to record buy: %w", err)
	}
	return nil
}

// RecordSell computes the sell's tax, cost basis, and profit by walking the
// account's open BUY lots for the item in insertion order, then applies the
// whole result in one transaction. When lots run out first, the record is
// flagged orphan and profit stays nil.
func (l *Ledger) RecordSell(s *models.SellRecord) (*models.SellRecord, error) {
	if s.GrossRevenue == 0 {
		s.GrossRevenue = s.UnitPrice * int64(s.Qty)
	}
	s.Tax = int64(math.Round(float64(s.GrossRevenue) * l.taxRate))
	s.NetRevenue = s.GrossRevenue - s.Tax

	lots, err := l.storage.UnmatchedBuys(s.AccountID, s.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load buy lots: %w", err)
	}

	remaining := s.Qty
	var cost int64
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		take := lot.Remaining()
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}
		cost += lot.UnitPrice * int64(take)
		remaining -= take
		s.MatchedBuys = append(s.MatchedBuys, models.MatchedBuy{
			BuyID:     lot.ID,
			MatchQty:  take,
			UnitPrice: lot.UnitPrice,
		})
	}

	s.TotalBuyCost = cost
	if remaining > 0 {
		s.IsOrphan = true
		s.Profit = nil
	} else {
		profit := s.NetRevenue - s.TotalBuyCost
		s.Profit = &profit
	}

	if err := l.storage.ApplySell(s); err != nil {
		return nil, fmt.Errorf("failed to apply sell: %w", err)
	}
	return s, nil
}
