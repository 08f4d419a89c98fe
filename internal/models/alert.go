package models

import "time"

// AlertState is the market alert state machine position for one rule.
type AlertState string

const (
	AlertIdle       AlertState = "idle"
	AlertArmed      AlertState = "armed"
	AlertMonitoring AlertState = "monitoring"
	AlertTriggered  AlertState = "triggered" // transient, never persisted
	AlertCooldown   AlertState = "cooldown"
)

// AlertRule watches one (account, item, country) tuple for a
// restock-from-empty transition while the account is traveling there.
// User-created, engine-mutated.
type AlertRule struct {
	AccountID string     `json:"account_id"`
	ItemID    int        `json:"item_id"`
	ItemName  string     `json:"item_name"`
	Country   string     `json:"country"`
	State     AlertState `json:"state"`

	// LastStock is the last observed quantity, updated every cycle so the
	// zero→nonzero edge is measured against the truest prior observation.
	LastStock     int       `json:"last_stock"`
	CooldownUntil time.Time `json:"cooldown_until,omitzero"`
}
