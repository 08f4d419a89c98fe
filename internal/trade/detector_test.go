package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tornwatch/tornwatch/internal/models"
)

func buySnapshots(prevCash, currCash int64, location string) (*models.Snapshot, *models.Snapshot) {
	now := time.Now()
	prev := &models.Snapshot{
		AccountID: "acct-1",
		TakenAt:   now.Add(-30 * time.Second),
		Cash:      prevCash,
		Location:  location,
	}
	curr := &models.Snapshot{
		AccountID: "acct-1",
		TakenAt:   now,
		Cash:      currCash,
		Location:  location,
	}
	return prev, curr
}

func TestDetectBuy_PriceMatchedPurchase(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	prev, curr := buySnapshots(1_000_000, 750_000, "Japan")
	stock := []models.StockEntry{
		{ItemID: 258, Name: "Jaguar Plushie", UnitPrice: 25_000, Quantity: 40},
	}

	buy := d.DetectBuy(prev, curr, stock)
	require.NotNil(t, buy)
	assert.Equal(t, "acct-1", buy.AccountID)
	assert.Equal(t, 258, buy.ItemID)
	assert.Equal(t, 10, buy.Qty)
	assert.Equal(t, int64(25_000), buy.UnitPrice)
	assert.Equal(t, int64(250_000), buy.TotalCost)
	assert.Equal(t, "Japan", buy.Region)
	assert.NotEmpty(t, buy.ID)
}

func TestDetectBuy_Guards(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	stock := []models.StockEntry{{ItemID: 1, Name: "Item", UnitPrice: 25_000, Quantity: 5}}

	t.Run("nil previous", func(t *testing.T) {
		_, curr := buySnapshots(1_000_000, 750_000, "Japan")
		assert.Nil(t, d.DetectBuy(nil, curr, stock))
	})
	t.Run("at home", func(t *testing.T) {
		prev, curr := buySnapshots(1_000_000, 750_000, models.HomeCity)
		assert.Nil(t, d.DetectBuy(prev, curr, stock))
	})
	t.Run("no stock data", func(t *testing.T) {
		prev, curr := buySnapshots(1_000_000, 750_000, "Japan")
		assert.Nil(t, d.DetectBuy(prev, curr, nil))
	})
	t.Run("below threshold", func(t *testing.T) {
		prev, curr := buySnapshots(1_000_000, 980_000, "Japan")
		assert.Nil(t, d.DetectBuy(prev, curr, stock))
	})
	t.Run("cash increased", func(t *testing.T) {
		prev, curr := buySnapshots(750_000, 1_000_000, "Japan")
		assert.Nil(t, d.DetectBuy(prev, curr, stock))
	})
}

func TestDetectBuy_RatioToleranceRejects(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	prev, curr := buySnapshots(1_000_000, 750_000, "Japan")
	// 250,000 / 24,000 rounds to 10 units for 240,000 total, a 4% deviation.
	stock := []models.StockEntry{{ItemID: 1, Name: "Item", UnitPrice: 24_000, Quantity: 40}}

	assert.Nil(t, d.DetectBuy(prev, curr, stock))
}

func TestDetectBuy_AbsoluteGuardRejectsLargeDelta(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	// 10 units at 999,950 totals 9,999,500: within ratio tolerance of the
	// 10,000,000 delta, but 500 short, which hits the absolute guard.
	prev, curr := buySnapshots(20_000_000, 10_000_000, "Japan")
	stock := []models.StockEntry{{ItemID: 1, Name: "Item", UnitPrice: 999_950, Quantity: 40}}

	assert.Nil(t, d.DetectBuy(prev, curr, stock))
}

func TestDetectBuy_TieBreakPrefersTypicalCapacity(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	prev, curr := buySnapshots(1_000_000, 750_000, "Japan")
	// Both entries divide the delta exactly; the 25-unit read wins.
	stock := []models.StockEntry{
		{ItemID: 1, Name: "Expensive", UnitPrice: 25_000, Quantity: 40},
		{ItemID: 2, Name: "Cheap", UnitPrice: 10_000, Quantity: 40},
	}

	buy := d.DetectBuy(prev, curr, stock)
	require.NotNil(t, buy)
	assert.Equal(t, 2, buy.ItemID)
	assert.Equal(t, 25, buy.Qty)
}

func TestDetectBuy_DedupSuppressesRepeatSighting(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	base := time.Now()
	clock := base
	d.SetClock(func() time.Time { return clock })

	prev, curr := buySnapshots(1_000_000, 750_000, "Japan")
	stock := []models.StockEntry{{ItemID: 1, Name: "Item", UnitPrice: 25_000, Quantity: 40}}

	require.NotNil(t, d.DetectBuy(prev, curr, stock))

	clock = base.Add(time.Minute)
	assert.Nil(t, d.DetectBuy(prev, curr, stock), "same purchase within the window must not re-detect")

	clock = base.Add(11 * time.Minute)
	assert.NotNil(t, d.DetectBuy(prev, curr, stock), "a fresh purchase after the window is a new trade")
}

func sellSnapshots(prevCash, currCash int64, prevListings, currListings []models.Listing) (*models.Snapshot, *models.Snapshot) {
	now := time.Now()
	prev := &models.Snapshot{
		AccountID: "acct-1",
		TakenAt:   now.Add(-30 * time.Second),
		Cash:      prevCash,
		Location:  models.HomeCity,
		Listings:  prevListings,
	}
	curr := &models.Snapshot{
		AccountID: "acct-1",
		TakenAt:   now,
		Cash:      currCash,
		Location:  models.HomeCity,
		Listings:  currListings,
	}
	return prev, curr
}

func TestDetectSell_VanishedListingWithMatchingGain(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	listing := models.Listing{Source: models.SourceMarket, ListingID: 77, ItemID: 206, UnitPrice: 1_000, Quantity: 10}
	prev, curr := sellSnapshots(100_000, 109_500, []models.Listing{listing}, nil)

	sell := d.DetectSell(prev, curr)
	require.NotNil(t, sell)
	assert.Equal(t, 206, sell.ItemID)
	assert.Equal(t, 10, sell.Qty)
	assert.Equal(t, int64(10_000), sell.GrossRevenue)
	assert.NotEmpty(t, sell.ID)
}

func TestDetectSell_RatioBandRejectsCancellation(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	listing := models.Listing{Source: models.SourceBazaar, ListingID: 5, ItemID: 206, UnitPrice: 1_000, Quantity: 10}
	// Gain of 2,000 against an implied 10,000 revenue: a cancellation plus
	// unrelated inflow, not a sale.
	prev, curr := sellSnapshots(100_000, 102_000, []models.Listing{listing}, nil)

	assert.Nil(t, d.DetectSell(prev, curr))
}

func TestDetectSell_PicksListingClosestToExpectedRatio(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	a := models.Listing{Source: models.SourceMarket, ListingID: 1, ItemID: 10, UnitPrice: 1_000, Quantity: 10} // revenue 10,000
	b := models.Listing{Source: models.SourceMarket, ListingID: 2, ItemID: 11, UnitPrice: 980, Quantity: 10}   // revenue 9,800
	prev, curr := sellSnapshots(100_000, 109_500, []models.Listing{a, b}, nil)

	sell := d.DetectSell(prev, curr)
	require.NotNil(t, sell)
	assert.Equal(t, 10, sell.ItemID, "the 0.95 ratio beats 0.969 against the tax expectation")
}

func TestDetectSell_Guards(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	listing := models.Listing{Source: models.SourceMarket, ListingID: 1, ItemID: 10, UnitPrice: 1_000, Quantity: 10}

	t.Run("abroad", func(t *testing.T) {
		prev, curr := sellSnapshots(100_000, 109_500, []models.Listing{listing}, nil)
		curr.Location = "Japan"
		assert.Nil(t, d.DetectSell(prev, curr))
	})
	t.Run("no cash gain", func(t *testing.T) {
		prev, curr := sellSnapshots(100_000, 100_000, []models.Listing{listing}, nil)
		assert.Nil(t, d.DetectSell(prev, curr))
	})
	t.Run("listing still present", func(t *testing.T) {
		prev, curr := sellSnapshots(100_000, 109_500, []models.Listing{listing}, []models.Listing{listing})
		assert.Nil(t, d.DetectSell(prev, curr))
	})
	t.Run("no prior listings", func(t *testing.T) {
		prev, curr := sellSnapshots(100_000, 109_500, nil, nil)
		assert.Nil(t, d.DetectSell(prev, curr))
	})
}
