package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"polyradar/logging"
	"polyradar/models"
)

// SQLiteRecorder persists signal snapshots, trade events and session
// summaries to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger logging.LoggerInterface
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log logging.LoggerInterface) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so external readers do not block the write path.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signal_snapshots (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			direction   TEXT,
			strength    INTEGER,
			score       REAL,
			regime      TEXT,
			phase       TEXT,
			up_price    REAL,
			down_price  REAL,
			asset_price REAL,
			rsi         REAL,
			adx         REAL,
			macd_hist   REAL,
			vwap_pos    REAL,
			bb_pos      REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_ts ON signal_snapshots(timestamp)`,

		`CREATE TABLE IF NOT EXISTS trade_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			action    TEXT,
			direction TEXT,
			shares    REAL,
			price     REAL,
			pnl       REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_ts ON trade_events(timestamp)`,

		`CREATE TABLE IF NOT EXISTS session_summaries (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			wins      INTEGER,
			losses    INTEGER,
			pnl       REAL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// RecordSignal stores one per-cycle signal snapshot.
func (r *SQLiteRecorder) RecordSignal(sig *models.Signal, snap models.IndicatorSnapshot, upPrice, downPrice, assetPrice float64) error {
	if sig == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(
		`INSERT INTO signal_snapshots
		 (timestamp, direction, strength, score, regime, phase,
		  up_price, down_price, asset_price, rsi, adx, macd_hist, vwap_pos, bb_pos)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.Time.Unix(), string(sig.Direction), sig.Strength, sig.Score,
		string(sig.Regime), string(sig.Phase),
		upPrice, downPrice, assetPrice,
		snap.RSI, snap.ADX, snap.MACDHist, snap.VWAPPos, snap.BBPos,
	)
	if err != nil {
		return fmt.Errorf("insert signal snapshot: %w", err)
	}
	return nil
}

// RecordTrade stores one fill or close event.
func (r *SQLiteRecorder) RecordTrade(ev models.TradeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(
		`INSERT INTO trade_events (timestamp, action, direction, shares, price, pnl)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Time.Unix(), string(ev.Action), string(ev.Direction), ev.Shares, ev.Price, ev.PnL,
	)
	if err != nil {
		return fmt.Errorf("insert trade event: %w", err)
	}
	return nil
}

// RecordSummary stores the end-of-session result.
func (r *SQLiteRecorder) RecordSummary(wins, losses int, pnl float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(
		`INSERT INTO session_summaries (timestamp, wins, losses, pnl) VALUES (?, ?, ?, ?)`,
		time.Now().Unix(), wins, losses, pnl,
	)
	if err != nil {
		return fmt.Errorf("insert session summary: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
