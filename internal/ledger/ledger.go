// Package ledger keeps the trade journal in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var (
	ErrNoSession      = errors.New("no trading session started")
	ErrUnknownSession = errors.New("session not found")
)

type Kind string

const (
	KindBuy   Kind = "buy"
	KindSell  Kind = "sell"
	KindRound Kind = "round"
)

// Trade is one journal row. Unused amounts stay zero.
type Trade struct {
	Kind            Kind
	UnitPrice       int
	Count           int
	Total           int
	ExpectedRevenue int
	Cost            int
	Profit          int
	At              time.Time
}

// Summary aggregates one session.
type Summary struct {
	Session     string
	Mode        string
	Buys        int
	Sells       int
	Bought      int
	Sold        int
	Spent       int
	Revenue     int
	Profit      int
	AvgBuyPrice decimal.Decimal
}

// Journal wraps a SQLite database holding sessions and trades.
type Journal struct {
	db  *sql.DB
	now func() time.Time

	mu      sync.Mutex
	session string
}

// Open opens or creates the journal at path. ":memory:" is accepted.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	j := &Journal{db: db, now: time.Now}
	if err := j.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id            TEXT PRIMARY KEY,
			mode          TEXT NOT NULL,
			start_balance INTEGER NOT NULL DEFAULT 0,
			started_at    INTEGER NOT NULL,
			ended_at      INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id       TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			kind             TEXT NOT NULL,
			unit_price       INTEGER NOT NULL DEFAULT 0,
			count            INTEGER NOT NULL DEFAULT 0,
			total            INTEGER NOT NULL DEFAULT 0,
			expected_revenue INTEGER NOT NULL DEFAULT 0,
			cost             INTEGER NOT NULL DEFAULT 0,
			profit           INTEGER NOT NULL DEFAULT 0,
			at               INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id, kind)`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// StartSession opens a session and makes it current for Record.
func (j *Journal) StartSession(ctx context.Context, mode string, balance int) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, mode, start_balance, started_at) VALUES (?,?,?,?)`,
		id, mode, balance, j.now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}
	j.mu.Lock()
	j.session = id
	j.mu.Unlock()
	return id, nil
}

// EndSession stamps the current session as finished.
func (j *Journal) EndSession(ctx context.Context) error {
	j.mu.Lock()
	id := j.session
	j.session = ""
	j.mu.Unlock()
	if id == "" {
		return nil
	}
	if _, err := j.db.ExecContext(ctx, `UPDATE sessions SET ended_at = ? WHERE id = ?`, j.now().UnixNano(), id); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// Session returns the current session id, "" when none is open.
func (j *Journal) Session() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.session
}

// Record appends a trade to the current session.
func (j *Journal) Record(ctx context.Context, t Trade) error {
	id := j.Session()
	if id == "" {
		return ErrNoSession
	}
	if t.At.IsZero() {
		t.At = j.now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trades
			(session_id, kind, unit_price, count, total, expected_revenue, cost, profit, at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		id, string(t.Kind), t.UnitPrice, t.Count, t.Total, t.ExpectedRevenue, t.Cost, t.Profit, t.At.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// Trades lists a session's rows in insertion order.
func (j *Journal) Trades(ctx context.Context, session string) ([]Trade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT kind, unit_price, count, total, expected_revenue, cost, profit, at
		FROM trades WHERE session_id = ? ORDER BY id`, session)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var (
			t    Trade
			kind string
			at   int64
		)
		if err := rows.Scan(&kind, &t.UnitPrice, &t.Count, &t.Total, &t.ExpectedRevenue, &t.Cost, &t.Profit, &at); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Kind = Kind(kind)
		t.At = time.Unix(0, at)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Summary aggregates buys and sells of a session. The average buy price is
// the spend divided by the units sold, or by the units bought while nothing
// has been sold.
func (j *Journal) Summary(ctx context.Context, session string) (Summary, error) {
	s := Summary{Session: session}
	err := j.db.QueryRowContext(ctx, `SELECT mode FROM sessions WHERE id = ?`, session).Scan(&s.Mode)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("%w: %s", ErrUnknownSession, session)
	}
	if err != nil {
		return s, fmt.Errorf("failed to query session: %w", err)
	}

	err = j.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'buy' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'sell' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'buy' THEN count ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'sell' THEN count ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'buy' THEN cost ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'sell' THEN expected_revenue ELSE 0 END), 0)
		FROM trades WHERE session_id = ?`, session).
		Scan(&s.Buys, &s.Sells, &s.Bought, &s.Sold, &s.Spent, &s.Revenue)
	if err != nil {
		return s, fmt.Errorf("failed to summarise session: %w", err)
	}
	s.Profit = s.Revenue - s.Spent
	units := s.Sold
	if units == 0 {
		units = s.Bought
	}
	if units > 0 {
		s.AvgBuyPrice = decimal.NewFromInt(int64(s.Spent)).Div(decimal.NewFromInt(int64(units))).Round(2)
	}
	return s, nil
}
