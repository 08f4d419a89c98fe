// Package trade infers BUY and SELL trades from snapshot cash deltas plus
// reference market data, and matches sells against buy lots FIFO for profit
// attribution.
package trade

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tornwatch/tornwatch/internal/id"
	"github.com/tornwatch/tornwatch/internal/models"
)

// DetectorConfig holds the heuristics for price-matching inference.
type DetectorConfig struct {
	// MinBuyThreshold is the smallest cash drop considered a purchase.
	MinBuyThreshold int64
	// RatioTolerance bounds |unitPrice*qty/cashDelta - 1| for a BUY candidate.
	RatioTolerance float64
	// AbsoluteGuard bounds |matchedTotal - cashDelta| to reject coincidental
	// ratios on large deltas.
	AbsoluteGuard int64
	// TypicalCapacity is the travel-capacity quantity used to break ties
	// between equally good candidates.
	TypicalCapacity int
	// DedupWindow suppresses re-detection of the same purchase across polls.
	DedupWindow time.Duration

	// SellRatioMin/Max bound cashGain / listingRevenue for a completed sale,
	// covering tax and fee variance.
	SellRatioMin float64
	SellRatioMax float64
	// TaxRate is the market tax deducted from gross revenue.
	TaxRate float64
}

// DefaultDetectorConfig returns the stock tolerances.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinBuyThreshold: 50_000,
		RatioTolerance:  0.01,
		AbsoluteGuard:   500,
		TypicalCapacity: 25,
		DedupWindow:     10 * time.Minute,
		SellRatioMin:    0.90,
		SellRatioMax:    1.05,
		TaxRate:         0.05,
	}
}

// Detector infers trades from snapshot pairs. It owns the dedup table for
// repeated BUY sightings; state is explicit and caller-scoped.
type Detector struct {
	config DetectorConfig
	seen   map[string]time.Time
	now    func() time.Time
}

// NewDetector returns a detector with an empty dedup table.
func NewDetector(config DetectorConfig) *Detector {
	return &Detector{
		config: config,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// SetClock overrides the detector's clock.
func (d *Detector) SetClock(now func() time.Time) {
	d.now = now
}

// DetectBuy infers a single bulk purchase from a cash drop while abroad,
// price-matched against the region's live stock. Missing stock data or an
// ambiguous match yields nil rather than a guess. Two different item types
// bought inside one polling window cannot be disambiguated and are dropped;
// the matcher assumes one bulk buy per cycle.
func (d *Detector) DetectBuy(prev, curr *models.Snapshot, stock []models.StockEntry) *models.BuyRecord {
	if prev == nil || curr == nil || !curr.Abroad() || len(stock) == 0 {
		return nil
	}
	cashDelta := prev.Cash - curr.Cash
	if cashDelta <= d.config.MinBuyThreshold {
		return nil
	}

	type candidate struct {
		entry models.StockEntry
		qty   int
		total int64
	}
	var candidates []candidate
	for _, entry := range stock {
		if entry.UnitPrice <= 0 {
			continue
		}
		qty := int(math.Round(float64(cashDelta) / float64(entry.UnitPrice)))
		if qty < 1 {
			continue
		}
		total := entry.UnitPrice * int64(qty)
		dev := math.Abs(float64(total)/float64(cashDelta) - 1)
		if dev > d.config.RatioTolerance {
			continue
		}
		if abs64(total-cashDelta) >= d.config.AbsoluteGuard {
			continue
		}
		candidates = append(candidates, candidate{entry: entry, qty: qty, total: total})
	}
	if len(candidates) == 0 {
		return nil
	}

	// Coincidental pricing can satisfy the ratio for several items; the
	// quantity closest to a typical travel load is the most plausible buy.
	best := candidates[0]
	for _, c := range candidates[1:] {
		if absInt(c.qty-d.config.TypicalCapacity) < absInt(best.qty-d.config.TypicalCapacity) {
			best = c
		}
	}

	now := d.now()
	d.pruneSeen(now)
	key := dedupKey(curr.AccountID, best.entry.ItemID, best.qty, cashDelta)
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.config.DedupWindow {
		return nil
	}
	d.seen[key] = now

	return &models.BuyRecord{
		ID:        id.New(),
		AccountID: curr.AccountID,
		ItemID:    best.entry.ItemID,
		ItemName:  best.entry.Name,
		Qty:       best.qty,
		UnitPrice: best.entry.UnitPrice,
		TotalCost: best.total,
		Region:    curr.Location,
		TakenAt:   curr.TakenAt,
	}
}

// DetectSell infers a completed sale from a listing that vanished between
// polls while at home, paired with a cash increase near the listing's implied
// revenue. Cancellation and coincidental inflows can fool this heuristic; the
// ratio band is the sole discriminator. When several listings vanished at
// once, the one whose revenue best explains the cash gain wins.
func (d *Detector) DetectSell(prev, curr *models.Snapshot) *models.SellRecord {
	if prev == nil || curr == nil || curr.Abroad() || len(prev.Listings) == 0 {
		return nil
	}
	cashGain := curr.Cash - prev.Cash
	if cashGain <= 0 {
		return nil
	}

	present := make(map[string]bool, len(curr.Listings))
	for _, l := range curr.Listings {
		present[listingKey(l)] = true
	}

	expected := 1 - d.config.TaxRate
	var best *models.Listing
	var bestDist float64
	for i := range prev.Listings {
		l := prev.Listings[i]
		if present[listingKey(l)] {
			continue
		}
		revenue := l.Revenue()
		if revenue <= 0 {
			continue
		}
		ratio := float64(cashGain) / float64(revenue)
		if ratio < d.config.SellRatioMin || ratio > d.config.SellRatioMax {
			continue
		}
		dist := math.Abs(ratio - expected)
		if best == nil || dist < bestDist {
			best = &prev.Listings[i]
			bestDist = dist
		}
	}
	if best == nil {
		return nil
	}

	return &models.SellRecord{
		ID:           uuid.NewString(),
		AccountID:    curr.AccountID,
		ItemID:       best.ItemID,
		Qty:          best.Quantity,
		UnitPrice:    best.UnitPrice,
		GrossRevenue: best.Revenue(),
		TakenAt:      curr.TakenAt,
	}
}

func (d *Detector) pruneSeen(now time.Time) {
	for k, t := range d.seen {
		if now.Sub(t) >= d.config.DedupWindow {
			delete(d.seen, k)
		}
	}
}

// dedupKey buckets the cash delta to 10k so API rounding between polls does
// not defeat the suppression.
func dedupKey(accountID string, itemID, qty int, cashDelta int64) string {
	return fmt.Sprintf("%s:%d:%d:%d", accountID, itemID, qty, cashDelta/10_000)
}

func listingKey(l models.Listing) string {
	return fmt.Sprintf("%s:%d", l.Source, l.ListingID)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
