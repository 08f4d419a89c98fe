// Package models defines the core domain entities: account snapshots,
// activity events, trade records, alert rules, and the daily ledger.
package models

import (
	"errors"
	"time"
)

// HomeCity is the location reported while the account is not abroad.
const HomeCity = "Torn"

// ListingSource identifies where an active listing lives.
type ListingSource string

const (
	SourceMarket ListingSource = "market"
	SourceBazaar ListingSource = "bazaar"
)

// Listing is one active item-market or bazaar listing.
type Listing struct {
	Source    ListingSource `json:"source"`
	ListingID int64         `json:"listing_id"`
	ItemID    int           `json:"item_id"`
	UnitPrice int64         `json:"unit_price"`
	Quantity  int           `json:"quantity"`
}

// Revenue returns the gross cash implied by a full sale of the listing.
func (l Listing) Revenue() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Travel describes the account's current travel leg. Zero-valued when the
// account is idle at home or already landed.
type Travel struct {
	Destination string `json:"destination,omitempty"`
	TimeLeft    int64  `json:"time_left"` // seconds until landing
}

// StockEntry is one row of a foreign country's live shop stock.
type StockEntry struct {
	ItemID    int    `json:"item_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// Snapshot is a point-in-time normalized capture of an account's economic
// state. Snapshots are immutable once built; exactly two are retained per
// account (previous and current) for differencing.
type Snapshot struct {
	AccountID string    `json:"account_id"`
	TakenAt   time.Time `json:"taken_at"`

	Cash     int64  `json:"cash"`
	Location string `json:"location"`
	Travel   Travel `json:"travel"`

	Energy    int `json:"energy"`
	MaxEnergy int `json:"max_energy"`
	Nerve     int `json:"nerve"`
	MaxNerve  int `json:"max_nerve"`

	JobPoints int    `json:"job_points"`
	Job       string `json:"job,omitempty"`

	// Inventory holds best-effort item counts (itemID → qty). The API does
	// not report every container, so deltas are proxies, not ground truth.
	Inventory map[int]int `json:"inventory,omitempty"`
	Listings  []Listing   `json:"listings,omitempty"`
}

// Abroad reports whether the account is currently landed in a foreign country.
func (s *Snapshot) Abroad() bool {
	return s.Location != "" && s.Location != HomeCity
}

// Traveling reports whether the account is mid-flight.
func (s *Snapshot) Traveling() bool {
	return s.Travel.TimeLeft > 0
}

// InventoryCount returns the proxy count for an item, zero when unknown.
func (s *Snapshot) InventoryCount(itemID int) int {
	if s.Inventory == nil {
		return 0
	}
	return s.Inventory[itemID]
}

// Validate checks snapshot field constraints.
func (s *Snapshot) Validate() error {
	if s.AccountID == "" {
		return errors.New("account ID must not be empty")
	}
	if s.TakenAt.IsZero() {
		return errors.New("taken at must be set")
	}
	if s.Cash < 0 {
		return errors.New("cash must not be negative")
	}
	if s.Location == "" {
		return errors.New("location must not be empty")
	}
	if s.Travel.TimeLeft < 0 {
		return errors.New("travel time left must not be negative")
	}
	if s.Travel.TimeLeft > 0 && s.Travel.Destination == "" {
		return errors.New("travel destination must be set while mid-flight")
	}
	for _, l := range s.Listings {
		if l.UnitPrice < 0 || l.Quantity < 0 {
			return errors.New("listing price and quantity must not be negative")
		}
	}
	return nil
}
