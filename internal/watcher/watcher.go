// Package watcher orchestrates one detection cycle per poll tick: snapshot
// assembly, activity and trade inference, ledger matching, alert evaluation,
// profit aggregation, persistence, and notification.
package watcher

import (
	"context"
	"fmt"

	"github.com/tornwatch/tornwatch/internal/activity"
	"github.com/tornwatch/tornwatch/internal/alerts"
	"github.com/tornwatch/tornwatch/internal/logger"
	"github.com/tornwatch/tornwatch/internal/models"
	"github.com/tornwatch/tornwatch/internal/profit"
	"github.com/tornwatch/tornwatch/internal/snapshot"
	"github.com/tornwatch/tornwatch/internal/storage"
	"github.com/tornwatch/tornwatch/internal/torn"
	"github.com/tornwatch/tornwatch/internal/trade"
)

// xanaxItemID is the inventory proxy used for the daily xanax counter.
const xanaxItemID = 206

// Account identifies one watched account.
type Account struct {
	ID     string
	APIKey string
}

// Notifier is the outbound notification sink. All methods are best-effort;
// the watcher logs failures and moves on.
type Notifier interface {
	SendActivity(accountID string, events []models.ActivityEvent) error
	SendTrades(accountID string, buys []*models.BuyRecord, sells []*models.SellRecord) error
	SendRestock(trigger alerts.Trigger) error
}

// Config bundles the per-component tuning a watcher needs.
type Config struct {
	Activity activity.Config
	Trade    trade.DetectorConfig
	Alerts   alerts.Config
}

// Watcher owns all detection state for exactly one account, so parallel
// watchers never share mutable state. Ticks for the same watcher must not
// overlap (FIFO lot consumption is not safe under concurrent writers); the
// caller's scheduler guarantees that by running one cycle at a time.
type Watcher struct {
	account  Account
	client   *torn.Client
	storage  *storage.Storage
	store    *snapshot.Store
	activity *activity.Detector
	trades   *trade.Detector
	ledger   *trade.Ledger
	alerts   *alerts.Engine
	profits  *profit.Aggregator
	notifier Notifier
	restored bool
}

// New assembles a watcher for one account. notifier may be nil to disable
// notifications; st may be nil for fully in-memory operation.
func New(account Account, client *torn.Client, st *storage.Storage, notifier Notifier, cfg Config) *Watcher {
	return &Watcher{
		account:  account,
		client:   client,
		storage:  st,
		store:    snapshot.NewStore(st),
		activity: activity.New(cfg.Activity),
		trades:   trade.NewDetector(cfg.Trade),
		ledger:   trade.NewLedger(st, cfg.Trade.TaxRate),
		alerts:   alerts.New(st, cfg.Alerts),
		profits:  profit.NewAggregator(account.ID, st),
		notifier: notifier,
	}
}

// Tick runs one full detection cycle. It returns an error only when the
// account state could not be fetched at all; detection and persistence
// failures degrade to "fewer events this cycle" and a warning.
func (w *Watcher) Tick(ctx context.Context) error {
	w.restoreOnce()

	snap, err := w.client.FetchSnapshot(ctx, w.account.ID, w.account.APIKey)
	if err != nil {
		return fmt.Errorf("failed to fetch snapshot for %s: %w", w.account.ID, err)
	}

	// Reference data is best-effort: a stale or missing stock feed must not
	// block activity detection.
	stocks, err := w.client.FetchForeignStock(ctx)
	if err != nil {
		logger.Warn("Foreign stock fetch failed, skipping stock-based detection: %v", err)
		stocks = nil
	}

	prev, err := w.store.Push(snap)
	if err != nil {
		logger.Warn("Snapshot persistence failed for %s: %v", w.account.ID, err)
	}

	events := w.activity.Detect(prev, snap)
	w.categorize(prev, snap, events)

	var buys []*models.BuyRecord
	var sells []*models.SellRecord
	if buy := w.trades.DetectBuy(prev, snap, stocks[snap.Location]); buy != nil {
		if err := w.ledger.RecordBuy(buy); err != nil {
			logger.Warn("Failed to record buy for %s: %v", w.account.ID, err)
		} else {
			buys = append(buys, buy)
			w.profits.AddExpense("goods", buy.TotalCost)
			w.activity.Record(models.ActivityEvent{
				ID:         buy.ID,
				AccountID:  w.account.ID,
				Type:       models.EventTradeBuy,
				OccurredAt: buy.TakenAt,
				Delta:      buy.TotalCost,
				Detail:     buy.ItemName,
			})
		}
	}
	if sell := w.trades.DetectSell(prev, snap); sell != nil {
		rec, err := w.ledger.RecordSell(sell)
		if err != nil {
			logger.Warn("Failed to record sell for %s: %v", w.account.ID, err)
		} else {
			sells = append(sells, rec)
			if rec.Profit != nil {
				w.profits.AddIncome("market", *rec.Profit)
			}
			w.activity.Record(models.ActivityEvent{
				ID:         rec.ID,
				AccountID:  w.account.ID,
				Type:       models.EventTradeSell,
				OccurredAt: rec.TakenAt,
				Delta:      rec.NetRevenue,
			})
		}
	}

	triggers, err := w.alerts.Evaluate(w.account.ID, snap.Travel, snap.Location, stocks)
	if err != nil {
		logger.Warn("Alert evaluation failed for %s: %v", w.account.ID, err)
	}

	w.persist()
	w.notify(events, buys, sells, triggers)

	logger.Debug("Tick complete for %s: %d events, %d buys, %d sells, %d triggers",
		w.account.ID, len(events), len(buys), len(sells), len(triggers))
	return nil
}

// categorize feeds detected events into the daily ledger.
func (w *Watcher) categorize(prev, curr *models.Snapshot, events []models.ActivityEvent) {
	for _, ev := range events {
		switch ev.Type {
		case models.EventCrimeReward:
			w.profits.AddIncome("crime", ev.Delta)
			w.profits.IncrementStat("crimes", 1)
		case models.EventTravelArrive:
			w.profits.IncrementStat("trips", 1)
		case models.EventEnergyUsed, models.EventNerveUsed, models.EventWalletChange:
			w.profits.IncrementStat("active_polls", 1)
		}
	}
	if prev != nil && curr != nil {
		if used := prev.InventoryCount(xanaxItemID) - curr.InventoryCount(xanaxItemID); used > 0 {
			w.profits.IncrementStat("xanax", used)
		}
	}
}

// restoreOnce reloads the persisted activity buffer on the first tick after
// startup.
func (w *Watcher) restoreOnce() {
	if w.restored {
		return
	}
	w.restored = true
	if w.storage == nil {
		return
	}
	events, err := w.storage.LoadEventLog(w.account.ID)
	if err != nil {
		logger.Warn("Failed to restore event log for %s: %v", w.account.ID, err)
		return
	}
	if len(events) > 0 {
		w.activity.RestoreEvents(w.account.ID, events)
		logger.Info("Restored %d buffered events for %s", len(events), w.account.ID)
	}
}

// persist writes the durable state. Failures are logged, not fatal: the
// detection results still reach the notifier, and the next cycle's persist
// re-attempts the write without re-running detection.
func (w *Watcher) persist() {
	if w.storage != nil {
		if err := w.storage.SaveEventLog(w.account.ID, w.activity.Events(w.account.ID)); err != nil {
			logger.Warn("Failed to persist event log for %s: %v", w.account.ID, err)
		}
	}
	if err := w.profits.Flush(); err != nil {
		logger.Warn("Failed to persist daily ledger for %s: %v", w.account.ID, err)
	}
}

func (w *Watcher) notify(events []models.ActivityEvent, buys []*models.BuyRecord, sells []*models.SellRecord, triggers []alerts.Trigger) {
	if w.notifier == nil {
		return
	}
	if len(events) > 0 {
		if err := w.notifier.SendActivity(w.account.ID, events); err != nil {
			logger.Error("Failed to send activity notification: %v", err)
		}
	}
	if len(buys) > 0 || len(sells) > 0 {
		if err := w.notifier.SendTrades(w.account.ID, buys, sells); err != nil {
			logger.Error("Failed to send trade notification: %v", err)
		}
	}
	for _, trigger := range triggers {
		if err := w.notifier.SendRestock(trigger); err != nil {
			logger.Error("Failed to send restock notification: %v", err)
		}
	}
}

// Shutdown flushes the account's buffers and ledger.
func (w *Watcher) Shutdown() {
	w.persist()
}
