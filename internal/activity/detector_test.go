package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tornwatch/tornwatch/internal/models"
)

func snap(cash int64, energy, nerve int) *models.Snapshot {
	return &models.Snapshot{
		AccountID: "acct-1",
		TakenAt:   time.Now(),
		Cash:      cash,
		Location:  models.HomeCity,
		Energy:    energy,
		MaxEnergy: 100,
		Nerve:     nerve,
		MaxNerve:  50,
	}
}

func eventTypes(events []models.ActivityEvent) []models.EventType {
	types := make([]models.EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func TestDetect_NilPrevIsBaseline(t *testing.T) {
	d := New(DefaultConfig())
	assert.Nil(t, d.Detect(nil, snap(100_000, 50, 20)))
}

func TestDetect_EnergyUsed(t *testing.T) {
	d := New(DefaultConfig())

	events := d.Detect(snap(100_000, 50, 20), snap(100_000, 40, 20))
	require.Len(t, events, 1)
	assert.Equal(t, models.EventEnergyUsed, events[0].Type)
	assert.Equal(t, int64(10), events[0].Delta)
	assert.Equal(t, int64(40), events[0].Current)
	assert.NotEmpty(t, events[0].ID)
}

func TestDetect_EnergyAtThresholdIgnored(t *testing.T) {
	d := New(DefaultConfig())

	// A drop of exactly the threshold is natural tick noise, not activity.
	events := d.Detect(snap(100_000, 50, 20), snap(100_000, 45, 20))
	assert.Empty(t, events)
}

func TestDetect_EnergyFull(t *testing.T) {
	d := New(DefaultConfig())

	events := d.Detect(snap(100_000, 95, 20), snap(100_000, 100, 20))
	assert.Contains(t, eventTypes(events), models.EventEnergyFull)
}

func TestDetect_CrimeRewardFromNerveAndCash(t *testing.T) {
	d := New(DefaultConfig())

	events := d.Detect(snap(100_000, 50, 20), snap(150_000, 50, 15))
	types := eventTypes(events)
	assert.Contains(t, types, models.EventNerveUsed)
	assert.Contains(t, types, models.EventCrimeReward)
	assert.Contains(t, types, models.EventWalletChange)

	for _, ev := range events {
		if ev.Type == models.EventCrimeReward {
			assert.Equal(t, int64(50_000), ev.Delta)
		}
	}
}

func TestDetect_NerveWithoutCashIsNotACrimeReward(t *testing.T) {
	d := New(DefaultConfig())

	events := d.Detect(snap(100_000, 50, 20), snap(100_000, 50, 15))
	types := eventTypes(events)
	assert.Contains(t, types, models.EventNerveUsed)
	assert.NotContains(t, types, models.EventCrimeReward)
}

func TestDetect_WalletChangeThreshold(t *testing.T) {
	d := New(DefaultConfig())

	events := d.Detect(snap(100_000, 50, 20), snap(109_000, 50, 20))
	assert.Empty(t, events, "9,000 is below the significance threshold")

	events = d.Detect(snap(100_000, 50, 20), snap(60_000, 50, 20))
	require.Len(t, events, 1)
	assert.Equal(t, models.EventWalletChange, events[0].Type)
	assert.Equal(t, int64(-40_000), events[0].Delta)
}

func TestDetect_TravelEdges(t *testing.T) {
	d := New(DefaultConfig())

	home := snap(100_000, 50, 20)
	flying := snap(100_000, 50, 20)
	flying.Travel = models.Travel{Destination: "Japan", TimeLeft: 9_000}
	landed := snap(100_000, 50, 20)
	landed.Location = "Japan"

	events := d.Detect(home, flying)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTravelDepart, events[0].Type)
	assert.Equal(t, "Japan", events[0].Detail)

	events = d.Detect(flying, landed)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTravelArrive, events[0].Type)
	assert.Equal(t, "Japan", events[0].Detail)
}

func TestDetect_JobChanges(t *testing.T) {
	d := New(DefaultConfig())

	prev := snap(100_000, 50, 20)
	prev.JobPoints = 10
	prev.Job = "Clerk @ MegaCorp"
	curr := snap(100_000, 50, 20)
	curr.JobPoints = 12
	curr.Job = "Manager @ MegaCorp"

	events := d.Detect(prev, curr)
	types := eventTypes(events)
	assert.Contains(t, types, models.EventJobPoints)
	assert.Contains(t, types, models.EventJobChange)
}

func TestDetect_CooldownAbsorbsBursts(t *testing.T) {
	d := New(DefaultConfig())
	base := time.Now()
	clock := base
	d.SetClock(func() time.Time { return clock })

	events := d.Detect(snap(100_000, 50, 20), snap(100_000, 40, 20))
	require.Len(t, events, 1)

	// Another drop 10 seconds later is absorbed.
	clock = base.Add(10 * time.Second)
	events = d.Detect(snap(100_000, 40, 20), snap(100_000, 30, 20))
	assert.Empty(t, events)

	// Past the window it fires again.
	clock = base.Add(40 * time.Second)
	events = d.Detect(snap(100_000, 30, 20), snap(100_000, 20, 20))
	assert.Len(t, events, 1)
}

func TestDetect_BufferRetainsEvents(t *testing.T) {
	d := New(DefaultConfig())

	d.Detect(snap(100_000, 50, 20), snap(100_000, 40, 20))
	d.Record(models.ActivityEvent{
		ID:         "trade-1",
		AccountID:  "acct-1",
		Type:       models.EventTradeBuy,
		OccurredAt: time.Now(),
	})

	events := d.Events("acct-1")
	require.Len(t, events, 2)
	assert.Equal(t, models.EventEnergyUsed, events[0].Type)
	assert.Equal(t, models.EventTradeBuy, events[1].Type)
}

func TestRestoreEvents_ReappliesRetention(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEvents = 3
	d := New(cfg)
	now := time.Now()

	d.RestoreEvents("acct-1", []models.ActivityEvent{
		{ID: "stale", AccountID: "acct-1", Type: models.EventEnergyUsed, OccurredAt: now.Add(-80 * time.Hour)},
		{ID: "a", AccountID: "acct-1", Type: models.EventEnergyUsed, OccurredAt: now.Add(-time.Hour)},
		{ID: "b", AccountID: "acct-1", Type: models.EventNerveUsed, OccurredAt: now.Add(-30 * time.Minute)},
		{ID: "c", AccountID: "acct-1", Type: models.EventWalletChange, OccurredAt: now.Add(-10 * time.Minute)},
		{ID: "d", AccountID: "acct-1", Type: models.EventTravelDepart, OccurredAt: now},
	})

	events := d.Events("acct-1")
	require.Len(t, events, 3)
	assert.Equal(t, "b", events[0].ID)
	assert.Equal(t, "d", events[2].ID)
}
