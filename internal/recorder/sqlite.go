package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"COTSentinel/internal/model"
)

// SQLiteRecorder caches raw feed data in a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
// ":memory:" is accepted for tests.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: single writer, and an in-memory database lives per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			code          TEXT NOT NULL,
			market_code   TEXT,
			market        TEXT,
			report_date   TEXT NOT NULL,
			net_noncomm   INTEGER,
			noncomm_long  INTEGER,
			noncomm_short INTEGER,
			comm_long     INTEGER,
			comm_short    INTEGER,
			nonrept_long  INTEGER,
			nonrept_short INTEGER,
			net_comm      INTEGER,
			fetched_at    INTEGER NOT NULL,
			PRIMARY KEY (code, report_date)
		)`,

		`CREATE TABLE IF NOT EXISTS prices (
			pair       TEXT NOT NULL,
			price_date TEXT NOT NULL,
			price      REAL NOT NULL,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (pair, price_date)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) SavePositions(code string, rec model.PositionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO positions
		(code, market_code, market, report_date, net_noncomm,
		 noncomm_long, noncomm_short, comm_long, comm_short,
		 nonrept_long, nonrept_short, net_comm, fetched_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, w := range rec.Weeks {
		if _, err := stmt.Exec(code, rec.Code, rec.Market, w.Date.Format(model.DateLayout), w.NetNonComm,
			w.NonCommLong, w.NonCommShort, w.CommLong, w.CommShort,
			w.NonReptLong, w.NonReptShort, w.NetComm, now); err != nil {
			return fmt.Errorf("insert %s %s: %w", code, w.Date.Format(model.DateLayout), err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) LoadPositions(codes []string) (model.PositionFeed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	feed := make(model.PositionFeed, len(codes))
	for _, code := range codes {
		rec, err := r.loadRecord(code)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", code, err)
		}
		if len(rec.Weeks) > 0 {
			feed[code] = rec
		}
	}
	return feed, nil
}

func (r *SQLiteRecorder) loadRecord(code string) (model.PositionRecord, error) {
	rows, err := r.db.Query(`SELECT market_code, market, report_date, net_noncomm,
		noncomm_long, noncomm_short, comm_long, comm_short,
		nonrept_long, nonrept_short, net_comm
		FROM positions WHERE code = ? ORDER BY report_date DESC`, code)
	if err != nil {
		return model.PositionRecord{}, err
	}
	defer rows.Close()

	var rec model.PositionRecord
	for rows.Next() {
		var (
			w    model.WeeklyPosition
			date string
		)
		if err := rows.Scan(&rec.Code, &rec.Market, &date, &w.NetNonComm,
			&w.NonCommLong, &w.NonCommShort, &w.CommLong, &w.CommShort,
			&w.NonReptLong, &w.NonReptShort, &w.NetComm); err != nil {
			return model.PositionRecord{}, err
		}
		if w.Date, err = model.ParseDate(date); err != nil {
			return model.PositionRecord{}, fmt.Errorf("bad report_date %q: %w", date, err)
		}
		rec.Weeks = append(rec.Weeks, w)
	}
	return rec, rows.Err()
}

func (r *SQLiteRecorder) SavePrices(pair string, points []model.PricePoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO prices (pair, price_date, price, fetched_at) VALUES (?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, p := range points {
		if _, err := stmt.Exec(pair, p.Date.Format(model.DateLayout), p.Price, now); err != nil {
			return fmt.Errorf("insert %s %s: %w", pair, p.Date.Format(model.DateLayout), err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) LoadPrices(pair string) ([]model.PricePoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT price_date, price FROM prices WHERE pair = ? ORDER BY price_date ASC`, pair)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var out []model.PricePoint
	for rows.Next() {
		var (
			date string
			p    model.PricePoint
		)
		if err := rows.Scan(&date, &p.Price); err != nil {
			return nil, err
		}
		if p.Date, err = model.ParseDate(date); err != nil {
			return nil, fmt.Errorf("bad price_date %q: %w", date, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
