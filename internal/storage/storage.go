// Package storage provides SQLite-backed persistence for snapshots, trade
// records, alert rules, event buffers, and daily ledgers.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tornwatch/tornwatch/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/tornwatch/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "tornwatch", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			account_id TEXT NOT NULL,
			taken_at   INTEGER NOT NULL,
			doc        TEXT NOT NULL,
			PRIMARY KEY (account_id, taken_at)
		)`,
		`CREATE TABLE IF NOT EXISTS buy_records (
			id          TEXT PRIMARY KEY,
			account_id  TEXT NOT NULL,
			item_id     INTEGER NOT NULL,
			item_name   TEXT NOT NULL,
			qty         INTEGER NOT NULL,
			unit_price  INTEGER NOT NULL,
			total_cost  INTEGER NOT NULL,
			region      TEXT NOT NULL,
			taken_at    INTEGER NOT NULL,
			matched_qty INTEGER NOT NULL DEFAULT 0,
			matched     INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_buys_open
			ON buy_records(account_id, item_id, matched)`,
		`CREATE TABLE IF NOT EXISTS sell_records (
			id             TEXT PRIMARY KEY,
			account_id     TEXT NOT NULL,
			item_id        INTEGER NOT NULL,
			qty            INTEGER NOT NULL,
			unit_price     INTEGER NOT NULL,
			gross_revenue  INTEGER NOT NULL,
			tax            INTEGER NOT NULL,
			net_revenue    INTEGER NOT NULL,
			total_buy_cost INTEGER NOT NULL,
			profit         INTEGER,
			is_orphan      INTEGER NOT NULL DEFAULT 0,
			taken_at       INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sell_matches (
			sell_id    TEXT NOT NULL REFERENCES sell_records(id) ON DELETE CASCADE,
			buy_id     TEXT NOT NULL REFERENCES buy_records(id) ON DELETE CASCADE,
			match_qty  INTEGER NOT NULL,
			unit_price INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alert_rules (
			account_id     TEXT NOT NULL,
			item_id        INTEGER NOT NULL,
			item_name      TEXT NOT NULL,
			country        TEXT NOT NULL,
			state          TEXT NOT NULL,
			last_stock     INTEGER NOT NULL DEFAULT 0,
			cooldown_until INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (account_id, item_id, country)
		)`,
		`CREATE TABLE IF NOT EXISTS daily_ledgers (
			account_id TEXT NOT NULL,
			date       TEXT NOT NULL,
			doc        TEXT NOT NULL,
			PRIMARY KEY (account_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS event_logs (
			account_id TEXT PRIMARY KEY,
			doc        TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot stores a snapshot and trims the account to its two newest.
func (s *Storage) SaveSnapshot(snap *models.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO snapshots (account_id, taken_at, doc)
		VALUES (?,?,?)`,
		snap.AccountID, snap.TakenAt.UnixNano(), string(doc),
	); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM snapshots WHERE account_id = ? AND taken_at NOT IN (
			SELECT taken_at FROM snapshots WHERE account_id = ?
			ORDER BY taken_at DESC LIMIT 2
		)`, snap.AccountID, snap.AccountID,
	); err != nil {
		return fmt.Errorf("failed to trim snapshots: %w", err)
	}

	return tx.Commit()
}

// LoadSnapshots returns the retained snapshots for an account, oldest first
// (at most two).
func (s *Storage) LoadSnapshots(accountID string) ([]*models.Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT doc FROM snapshots WHERE account_id = ?
		ORDER BY taken_at ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*models.Snapshot
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		var snap models.Snapshot
		if err := json.Unmarshal([]byte(doc), &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		snaps = append(snaps, &snap)
	}
	return snaps, rows.Err()
}

// InsertBuy appends a new BUY lot.
func (s *Storage) InsertBuy(b *models.BuyRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO buy_records
			(id, account_id, item_id, item_name, qty, unit_price, total_cost,
			 region, taken_at, matched_qty, matched)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.AccountID, b.ItemID, b.ItemName, b.Qty, b.UnitPrice, b.TotalCost,
		b.Region, b.TakenAt.UnixNano(), b.MatchedQty, boolToInt(b.Matched),
	)
	if err != nil {
		return fmt.Errorf("failed to insert buy record: %w", err)
	}
	return nil
}

const buyCols = `id, account_id, item_id, item_name, qty, unit_price, total_cost,
	region, taken_at, matched_qty, matched`

func scanBuy(scan func(...any) error) (*models.BuyRecord, error) {
	var b models.BuyRecord
	var takenAtNano int64
	var matched int
	err := scan(
		&b.ID, &b.AccountID, &b.ItemID, &b.ItemName, &b.Qty, &b.UnitPrice,
		&b.TotalCost, &b.Region, &takenAtNano, &b.MatchedQty, &matched,
	)
	if err != nil {
		return nil, err
	}
	b.TakenAt = time.Unix(0, takenAtNano)
	b.Matched = matched != 0
	return &b, nil
}

// UnmatchedBuys returns the account's open BUY lots for an item in insertion
// order (oldest first). IDs are ULIDs, so the id ordering breaks ties within
// the same timestamp.
func (s *Storage) UnmatchedBuys(accountID string, itemID int) ([]*models.BuyRecord, error) {
	rows, err := s.db.Query(`
		SELECT `+buyCols+` FROM buy_records
		WHERE account_id = ? AND item_id = ? AND matched = 0
		ORDER BY taken_at ASC, id ASC`, accountID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query buy records: %w", err)
	}
	defer rows.Close()

	var buys []*models.BuyRecord
	for rows.Next() {
		b, err := scanBuy(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan buy record: %w", err)
		}
		buys = append(buys, b)
	}
	return buys, rows.Err()
}

// GetBuy returns one BUY lot by id.
func (s *Storage) GetBuy(buyID string) (*models.BuyRecord, error) {
	row := s.db.QueryRow(`SELECT `+buyCols+` FROM buy_records WHERE id = ?`, buyID)
	b, err := scanBuy(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("buy record not found: %s", buyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get buy record: %w", err)
	}
	return b, nil
}

// ApplySell records a computed SELL and consumes the matched BUY lots in one
// transaction. This is the only multi-record mutation in the system; running
// it atomically keeps a concurrent crash from double-spending a lot.
func (s *Storage) ApplySell(sell *models.SellRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var profit sql.NullInt64
	if sell.Profit != nil {
		profit = sql.NullInt64{Int64: *sell.Profit, Valid: true}
	}

	if _, err := tx.Exec(`
		INSERT INTO sell_records
			(id, account_id, item_id, qty, unit_price, gross_revenue, tax,
			 net_revenue, total_buy_cost, profit, is_orphan, taken_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		sell.ID, sell.AccountID, sell.ItemID, sell.Qty, sell.UnitPrice,
		sell.GrossRevenue, sell.Tax, sell.NetRevenue, sell.TotalBuyCost,
		profit, boolToInt(sell.IsOrphan), sell.TakenAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert sell record: %w", err)
	}

	for _, m := range sell.MatchedBuys {
		if _, err := tx.Exec(`
			INSERT INTO sell_matches (sell_id, buy_id, match_qty, unit_price)
			VALUES (?,?,?,?)`,
			sell.ID, m.BuyID, m.MatchQty, m.UnitPrice,
		); err != nil {
			return fmt.Errorf("failed to insert sell match: %w", err)
		}
		if _, err := tx.Exec(`
			UPDATE buy_records SET
				matched_qty = matched_qty + ?,
				matched = CASE WHEN matched_qty + ? >= qty THEN 1 ELSE 0 END
			WHERE id = ? AND matched_qty + ? <= qty`,
			m.MatchQty, m.MatchQty, m.BuyID, m.MatchQty,
		); err != nil {
			return fmt.Errorf("failed to consume buy lot: %w", err)
		}
	}

	return tx.Commit()
}

// ListSells returns the account's SELL records, newest first.
func (s *Storage) ListSells(accountID string, limit int) ([]*models.SellRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, item_id, qty, unit_price, gross_revenue, tax,
		       net_revenue, total_buy_cost, profit, is_orphan, taken_at
		FROM sell_records WHERE account_id = ?
		ORDER BY taken_at DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sell records: %w", err)
	}
	defer rows.Close()

	var sells []*models.SellRecord
	for rows.Next() {
		var rec models.SellRecord
		var takenAtNano int64
		var profit sql.NullInt64
		var orphan int
		if err := rows.Scan(
			&rec.ID, &rec.AccountID, &rec.ItemID, &rec.Qty, &rec.UnitPrice,
			&rec.GrossRevenue, &rec.Tax, &rec.NetRevenue, &rec.TotalBuyCost,
			&profit, &orphan, &takenAtNano,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sell record: %w", err)
		}
		if profit.Valid {
			v := profit.Int64
			rec.Profit = &v
		}
		rec.IsOrphan = orphan != 0
		rec.TakenAt = time.Unix(0, takenAtNano)
		sells = append(sells, &rec)
	}
	return sells, rows.Err()
}

// ClearTrades removes all BUY and SELL history for an account. Only manual
// history clears delete trade records.
func (s *Storage) ClearTrades(accountID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{
		`DELETE FROM sell_matches WHERE sell_id IN
			(SELECT id FROM sell_records WHERE account_id = ?)`,
		`DELETE FROM sell_records WHERE account_id = ?`,
		`DELETE FROM buy_records WHERE account_id = ?`,
	} {
		if _, err := tx.Exec(stmt, accountID); err != nil {
			return fmt.Errorf("failed to clear trades: %w", err)
		}
	}
	return tx.Commit()
}

// UpsertAlertRule inserts or replaces an alert rule.
func (s *Storage) UpsertAlertRule(r *models.AlertRule) error {
	var cooldown int64
	if !r.CooldownUntil.IsZero() {
		cooldown = r.CooldownUntil.UnixNano()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO alert_rules
			(account_id, item_id, item_name, country, state, last_stock, cooldown_until)
		VALUES (?,?,?,?,?,?,?)`,
		r.AccountID, r.ItemID, r.ItemName, r.Country, string(r.State),
		r.LastStock, cooldown,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert alert rule: %w", err)
	}
	return nil
}

// ListAlertRules returns all alert rules for an account.
func (s *Storage) ListAlertRules(accountID string) ([]*models.AlertRule, error) {
	rows, err := s.db.Query(`
		SELECT account_id, item_id, item_name, country, state, last_stock, cooldown_until
		FROM alert_rules WHERE account_id = ?
		ORDER BY country, item_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.AlertRule
	for rows.Next() {
		var r models.AlertRule
		var state string
		var cooldown int64
		if err := rows.Scan(
			&r.AccountID, &r.ItemID, &r.ItemName, &r.Country, &state,
			&r.LastStock, &cooldown,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		r.State = models.AlertState(state)
		if cooldown != 0 {
			r.CooldownUntil = time.Unix(0, cooldown)
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

// DeleteAlertRule removes one rule.
func (s *Storage) DeleteAlertRule(accountID string, itemID int, country string) error {
	_, err := s.db.Exec(`
		DELETE FROM alert_rules
		WHERE account_id = ? AND item_id = ? AND country = ?`,
		accountID, itemID, country)
	if err != nil {
		return fmt.Errorf("failed to delete alert rule: %w", err)
	}
	return nil
}

// SaveDailyLedger persists one day's ledger as a JSON document.
func (s *Storage) SaveDailyLedger(accountID string, l *models.DailyLedger) error {
	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to marshal daily ledger: %w", err)
	}
	if _, err := s.db.Exec(`
		INSERT OR REPLACE INTO daily_ledgers (account_id, date, doc)
		VALUES (?,?,?)`,
		accountID, l.Date, string(doc),
	); err != nil {
		return fmt.Errorf("failed to save daily ledger: %w", err)
	}
	return nil
}

// LoadDailyLedger returns the ledger for a date, or nil when absent.
func (s *Storage) LoadDailyLedger(accountID, date string) (*models.DailyLedger, error) {
	row := s.db.QueryRow(`
		SELECT doc FROM daily_ledgers WHERE account_id = ? AND date = ?`,
		accountID, date)
	var doc string
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load daily ledger: %w", err)
	}
	var l models.DailyLedger
	if err := json.Unmarshal([]byte(doc), &l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal daily ledger: %w", err)
	}
	return &l, nil
}

// SaveEventLog persists an account's bounded activity buffer.
func (s *Storage) SaveEventLog(accountID string, events []models.ActivityEvent) error {
	doc, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to marshal event log: %w", err)
	}
	if _, err := s.db.Exec(`
		INSERT OR REPLACE INTO event_logs (account_id, doc) VALUES (?,?)`,
		accountID, string(doc),
	); err != nil {
		return fmt.Errorf("failed to save event log: %w", err)
	}
	return nil
}

// LoadEventLog returns an account's persisted activity buffer, nil when absent.
func (s *Storage) LoadEventLog(accountID string) ([]models.ActivityEvent, error) {
	row := s.db.QueryRow(`SELECT doc FROM event_logs WHERE account_id = ?`, accountID)
	var doc string
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event log: %w", err)
	}
	var events []models.ActivityEvent
	if err := json.Unmarshal([]byte(doc), &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event log: %w", err)
	}
	return events, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
