package models

import "time"

// EventType classifies an inferred activity event.
type EventType string

const (
	EventEnergyUsed   EventType = "energy_used"
	EventEnergyFull   EventType = "energy_full"
	EventNerveUsed    EventType = "nerve_used"
	EventCrimeReward  EventType = "crime_reward"
	EventTravelDepart EventType = "travel_depart"
	EventTravelArrive EventType = "travel_arrive"
	EventTradeBuy     EventType = "trade_buy"
	EventTradeSell    EventType = "trade_sell"
	EventWalletChange EventType = "wallet_change"
	EventJobPoints    EventType = "job_points"
	EventJobChange    EventType = "job_change"
)

// ActivityEvent is one discrete inferred event, produced by differencing two
// snapshots. Delta and Current carry the numeric payload specific to the
// type (energy spent, cash moved, and so on); Detail carries a free-form
// qualifier such as a destination country.
type ActivityEvent struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	Delta   int64  `json:"delta,omitempty"`
	Current int64  `json:"current,omitempty"`
	Detail  string `json:"detail,omitempty"`
}
