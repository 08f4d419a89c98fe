// Package alerts runs the per-item restock alert state machine off travel
// status and live foreign stock.
package alerts

import (
	"fmt"
	"time"

	"github.com/tornwatch/tornwatch/internal/logger"
	"github.com/tornwatch/tornwatch/internal/models"
	"github.com/tornwatch/tornwatch/internal/storage"
)

// Config holds the engine's timing windows.
type Config struct {
	// ApproachWindow is the remaining travel time below which a rule arms.
	ApproachWindow time.Duration
	// Cooldown is how long a fired rule stays silent.
	Cooldown time.Duration
}

// DefaultConfig returns the stock windows.
func DefaultConfig() Config {
	return Config{
		ApproachWindow: 180 * time.Second,
		Cooldown:       15 * time.Minute,
	}
}

// Trigger is the engine's "fire notification now" signal for one rule.
type Trigger struct {
	Rule    models.AlertRule
	Stock   int
	FiredAt time.Time
}

// Engine drives every alert rule for an account through its state machine
// once per poll cycle.
type Engine struct {
	storage *storage.Storage
	config  Config
	now     func() time.Time
}

// New returns an engine persisting rule mutations through st.
func New(st *storage.Storage, config Config) *Engine {
	return &Engine{storage: st, config: config, now: time.Now}
}

// SetClock overrides the engine's clock.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Evaluate steps every rule for the account. travel and location come from
// the current snapshot; stocks maps country → live stock and may be missing
// entries (stale feed), in which case the rule's stock observation is simply
// skipped this cycle. Returns the fired triggers.
func (e *Engine) Evaluate(accountID string, travel models.Travel, location string, stocks map[string][]models.StockEntry) ([]Trigger, error) {
	rules, err := e.storage.ListAlertRules(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert rules: %w", err)
	}

	now := e.now()
	var triggers []Trigger
	for _, rule := range rules {
		stock, hasStock := findStock(stocks[rule.Country], rule.ItemID)
		before := rule.State

		if fired := e.step(rule, travel, location, stock, hasStock, now); fired {
			triggers = append(triggers, Trigger{Rule: *rule, Stock: stock, FiredAt: now})
		}

		if before != rule.State {
			logger.Debug("Alert rule %s/%d/%s: %s → %s",
				rule.AccountID, rule.ItemID, rule.Country, before, rule.State)
		}
		if err := e.storage.UpsertAlertRule(rule); err != nil {
			logger.Warn("Failed to persist alert rule %s/%d/%s: %v",
				rule.AccountID, rule.ItemID, rule.Country, err)
		}
	}
	return triggers, nil
}

// step advances one rule and reports whether it fired. TRIGGERED is
// transient: the rule lands in COOLDOWN within the same cycle.
func (e *Engine) step(rule *models.AlertRule, travel models.Travel, location string, stock int, hasStock bool, now time.Time) bool {
	atTarget := destinationMatches(rule.Country, travel, location)
	landed := location == rule.Country && travel.TimeLeft == 0
	approaching := travel.Destination == rule.Country &&
		travel.TimeLeft > 0 &&
		travel.TimeLeft <= int64(e.config.ApproachWindow/time.Second)
	restock := hasStock && rule.LastStock == 0 && stock > 0

	fired := false
	switch rule.State {
	case models.AlertIdle:
		switch {
		case landed:
			rule.State = models.AlertMonitoring
		case approaching:
			rule.State = models.AlertArmed
		}

	case models.AlertArmed:
		switch {
		case !atTarget:
			rule.State = models.AlertIdle
		case landed:
			rule.State = models.AlertMonitoring
		}

	case models.AlertMonitoring:
		switch {
		case !atTarget:
			rule.State = models.AlertIdle
		case restock:
			// Restock-from-empty is the only firing condition; continuous
			// nonzero stock never re-fires.
			fired = true
			rule.State = models.AlertCooldown
			rule.CooldownUntil = now.Add(e.config.Cooldown)
		}

	case models.AlertCooldown:
		// Early exit: the user left, so the cooldown context is gone.
		if !atTarget || !now.Before(rule.CooldownUntil) {
			rule.State = models.AlertIdle
			rule.CooldownUntil = time.Time{}
		}

	default:
		rule.State = models.AlertIdle
	}

	if hasStock {
		rule.LastStock = stock
	}
	return fired
}

// destinationMatches reports whether the account is headed to, or already at,
// the rule's country.
func destinationMatches(country string, travel models.Travel, location string) bool {
	if travel.TimeLeft > 0 {
		return travel.Destination == country
	}
	return location == country
}

func findStock(stock []models.StockEntry, itemID int) (int, bool) {
	for _, entry := range stock {
		if entry.ItemID == itemID {
			return entry.Quantity, true
		}
	}
	return 0, false
}
