// Package activity diffs successive snapshots into typed, cooldown-gated
// activity events.
package activity

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tornwatch/tornwatch/internal/boundedlog"
	"github.com/tornwatch/tornwatch/internal/models"
)

// Config holds significance thresholds, cooldown windows, and buffer bounds.
type Config struct {
	EnergyThreshold int
	NerveThreshold  int
	CashThreshold   int64

	// ShortCooldown gates frequent categories (energy, nerve, cash, travel);
	// LongCooldown gates rare ones (full bar, job points, job change).
	ShortCooldown time.Duration
	LongCooldown  time.Duration

	MaxEvents      int
	EventRetention time.Duration
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		EnergyThreshold: 5,
		NerveThreshold:  2,
		CashThreshold:   10_000,
		ShortCooldown:   30 * time.Second,
		LongCooldown:    5 * time.Minute,
		MaxEvents:       500,
		EventRetention:  72 * time.Hour,
	}
}

// Detector turns (prev, curr) snapshot pairs into activity events. It owns
// the per-(account, type) cooldown table and the per-account bounded event
// buffer; all state is explicit and caller-scoped, so detection stays
// deterministic under test.
type Detector struct {
	config    Config
	lastFired map[string]time.Time
	buffers   map[string]*boundedlog.Log[models.ActivityEvent]
	now       func() time.Time
}

// New returns a detector with an empty cooldown table.
func New(config Config) *Detector {
	if config.MaxEvents < 1 {
		config.MaxEvents = 500
	}
	return &Detector{
		config:    config,
		lastFired: make(map[string]time.Time),
		buffers:   make(map[string]*boundedlog.Log[models.ActivityEvent]),
		now:       time.Now,
	}
}

// SetClock overrides the detector's clock.
func (d *Detector) SetClock(now func() time.Time) {
	d.now = now
}

// Detect diffs two snapshots into events. A nil prev is the first poll:
// nothing is emitted, curr is the new baseline. Within a category's cooldown
// window the change is absorbed silently, so rapid bursts under-count.
func (d *Detector) Detect(prev, curr *models.Snapshot) []models.ActivityEvent {
	if prev == nil || curr == nil {
		return nil
	}

	now := d.now()
	var events []models.ActivityEvent
	emit := func(t models.EventType, delta, current int64, detail string) {
		window := d.cooldownFor(t)
		key := cooldownKey(curr.AccountID, t)
		if last, ok := d.lastFired[key]; ok && now.Sub(last) < window {
			return
		}
		d.lastFired[key] = now
		events = append(events, models.ActivityEvent{
			ID:         uuid.NewString(),
			AccountID:  curr.AccountID,
			Type:       t,
			OccurredAt: now,
			Delta:      delta,
			Current:    current,
			Detail:     detail,
		})
	}

	cashDelta := curr.Cash - prev.Cash

	if used := prev.Energy - curr.Energy; used > d.config.EnergyThreshold {
		emit(models.EventEnergyUsed, int64(used), int64(curr.Energy), "")
	}
	if curr.MaxEnergy > 0 && curr.Energy >= curr.MaxEnergy && prev.Energy < prev.MaxEnergy {
		emit(models.EventEnergyFull, 0, int64(curr.Energy), "")
	}

	if used := prev.Nerve - curr.Nerve; used > d.config.NerveThreshold {
		emit(models.EventNerveUsed, int64(used), int64(curr.Nerve), "")
		// Nerve spent alongside a cash gain reads as a rewarded crime.
		if cashDelta > 0 {
			emit(models.EventCrimeReward, cashDelta, curr.Cash, "")
		}
	}

	if cashDelta > d.config.CashThreshold || -cashDelta > d.config.CashThreshold {
		emit(models.EventWalletChange, cashDelta, curr.Cash, "")
	}

	if !prev.Traveling() && curr.Traveling() {
		emit(models.EventTravelDepart, curr.Travel.TimeLeft, 0, curr.Travel.Destination)
	}
	if prev.Traveling() && !curr.Traveling() {
		emit(models.EventTravelArrive, 0, 0, curr.Location)
	}

	if gained := curr.JobPoints - prev.JobPoints; gained > 0 {
		emit(models.EventJobPoints, int64(gained), int64(curr.JobPoints), "")
	}
	if curr.Job != "" && prev.Job != "" && curr.Job != prev.Job {
		emit(models.EventJobChange, 0, 0, curr.Job)
	}

	if len(events) > 0 {
		d.buffer(curr.AccountID).Append(now, events...)
	}
	return events
}

// Record appends an externally detected event (trade buy/sell) to the
// account's buffer without cooldown gating; the trade detector applies its
// own dedup.
func (d *Detector) Record(ev models.ActivityEvent) {
	d.buffer(ev.AccountID).Append(d.now(), ev)
}

// Events returns the account's retained events, oldest first.
func (d *Detector) Events(accountID string) []models.ActivityEvent {
	return d.buffer(accountID).Entries()
}

// RestoreEvents reloads a persisted buffer, re-applying cap and retention.
func (d *Detector) RestoreEvents(accountID string, events []models.ActivityEvent) {
	d.buffer(accountID).Restore(d.now(), events)
}

func (d *Detector) buffer(accountID string) *boundedlog.Log[models.ActivityEvent] {
	b, ok := d.buffers[accountID]
	if !ok {
		b = boundedlog.New(d.config.MaxEvents, d.config.EventRetention,
			func(ev models.ActivityEvent) time.Time { return ev.OccurredAt })
		d.buffers[accountID] = b
	}
	return b
}

func (d *Detector) cooldownFor(t models.EventType) time.Duration {
	switch t {
	case models.EventEnergyFull, models.EventJobPoints, models.EventJobChange:
		return d.config.LongCooldown
	default:
		return d.config.ShortCooldown
	}
}

func cooldownKey(accountID string, t models.EventType) string {
	return fmt.Sprintf("%s:%s", accountID, t)
}
