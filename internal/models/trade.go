package models

import "time"

// BuyRecord is one inferred bulk purchase, stored as a FIFO lot. Created
// once; only the ledger matcher mutates it, and only by growing MatchedQty
// until Matched flips true.
type BuyRecord struct {
	ID         string    `json:"id"` // ULID, lexically time-sortable
	AccountID  string    `json:"account_id"`
	ItemID     int       `json:"item_id"`
	ItemName   string    `json:"item_name"`
	Qty        int       `json:"qty"`
	UnitPrice  int64     `json:"unit_price"`
	TotalCost  int64     `json:"total_cost"`
	Region     string    `json:"region"`
	TakenAt    time.Time `json:"taken_at"`
	MatchedQty int       `json:"matched_qty"`
	Matched    bool      `json:"matched"`
}

// Remaining returns the unmatched quantity left in the lot.
func (b *BuyRecord) Remaining() int {
	return b.Qty - b.MatchedQty
}

// MatchedBuy records one consumed portion of a BUY lot.
type MatchedBuy struct {
	BuyID     string `json:"buy_id"`
	MatchQty  int    `json:"match_qty"`
	UnitPrice int64  `json:"unit_price"`
}

// SellRecord is one inferred completed sale. Immutable once the ledger has
// computed its matching. Profit stays nil while any portion of the quantity
// is unmatched.
type SellRecord struct {
	ID           string       `json:"id"`
	AccountID    string       `json:"account_id"`
	ItemID       int          `json:"item_id"`
	Qty          int          `json:"qty"`
	UnitPrice    int64        `json:"unit_price"`
	GrossRevenue int64        `json:"gross_revenue"`
	Tax          int64        `json:"tax"`
	NetRevenue   int64        `json:"net_revenue"`
	TotalBuyCost int64        `json:"total_buy_cost"`
	Profit       *int64       `json:"profit,omitempty"`
	IsOrphan     bool         `json:"is_orphan"`
	MatchedBuys  []MatchedBuy `json:"matched_buys,omitempty"`
	TakenAt      time.Time    `json:"taken_at"`
}
