package usage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/modelmux/modelmux/pkg/dialect"
)

// schema creates the ledger tables.
const schema = `
CREATE TABLE IF NOT EXISTS usage_records (
    id TEXT PRIMARY KEY,
    recorded_at TIMESTAMP NOT NULL,

    requested_model TEXT NOT NULL,
    resolved_model TEXT NOT NULL,
    account TEXT NOT NULL,
    dialect TEXT NOT NULL,
    stream BOOLEAN NOT NULL,
    finish_reason TEXT,

    prompt_tokens INTEGER NOT NULL,
    completion_tokens INTEGER NOT NULL,
    total_tokens INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_recorded_at ON usage_records(recorded_at);
CREATE INDEX IF NOT EXISTS idx_usage_resolved_model ON usage_records(resolved_model);
CREATE INDEX IF NOT EXISTS idx_usage_account ON usage_records(account);
`

// Entry is one recorded call.
type Entry struct {
	// ID is assigned on record if empty.
	ID string

	// RecordedAt is set to the current time on record if zero.
	RecordedAt time.Time

	// RequestedModel is the model name the client sent.
	RequestedModel string

	// ResolvedModel is the deployment model name after alias fallback.
	ResolvedModel string

	// Account is the backend account that served the call.
	Account string

	// Dialect is the client-facing wire dialect of the call.
	Dialect string

	// Stream records whether the call was streamed.
	Stream bool

	// FinishReason is the canonical finish reason, empty if none observed.
	FinishReason string

	// Usage is the accumulated token usage.
	Usage dialect.Usage
}

// Config contains configuration for the ledger database.
type Config struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default ledger configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:         "modelmux-usage.db",
		MaxOpenConns: 10,
		BusyTimeout:  5 * time.Second,
	}
}

// Ledger is the SQLite-backed usage store. Safe for concurrent use.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the ledger database and initializes
// its schema. WAL mode is always enabled; the ledger is written from
// request goroutines and read by ad-hoc queries.
func Open(config *Config) (*Ledger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	logger := slog.Default().With("component", "usage.ledger")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database %q: %w", config.Path, err)
	}
	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	busy := config.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busy.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create usage schema: %w", err)
	}

	logger.Info("usage ledger opened", "path", config.Path)

	return &Ledger{db: db, logger: logger}, nil
}

// Record persists one entry. A missing ID or timestamp is filled in.
func (l *Ledger) Record(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO usage_records (
			id, recorded_at,
			requested_model, resolved_model, account, dialect, stream, finish_reason,
			prompt_tokens, completion_tokens, total_tokens
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.RecordedAt,
		entry.RequestedModel, entry.ResolvedModel, entry.Account, entry.Dialect, entry.Stream, entry.FinishReason,
		entry.Usage.PromptTokens, entry.Usage.CompletionTokens, entry.Usage.Total(),
	)
	if err != nil {
		return fmt.Errorf("failed to record usage entry: %w", err)
	}
	return nil
}

// ModelTotals returns accumulated usage per resolved model since the
// given time.
func (l *Ledger) ModelTotals(ctx context.Context, since time.Time) (map[string]dialect.Usage, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT resolved_model, SUM(prompt_tokens), SUM(completion_tokens)
		FROM usage_records
		WHERE recorded_at >= ?
		GROUP BY resolved_model`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]dialect.Usage)
	for rows.Next() {
		var model string
		var u dialect.Usage
		if err := rows.Scan(&model, &u.PromptTokens, &u.CompletionTokens); err != nil {
			return nil, fmt.Errorf("failed to scan usage totals: %w", err)
		}
		totals[model] = u
	}
	return totals, rows.Err()
}

// AccountTotals returns accumulated usage per account since the given time.
func (l *Ledger) AccountTotals(ctx context.Context, since time.Time) (map[string]dialect.Usage, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT account, SUM(prompt_tokens), SUM(completion_tokens)
		FROM usage_records
		WHERE recorded_at >= ?
		GROUP BY account`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query account totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]dialect.Usage)
	for rows.Next() {
		var account string
		var u dialect.Usage
		if err := rows.Scan(&account, &u.PromptTokens, &u.CompletionTokens); err != nil {
			return nil, fmt.Errorf("failed to scan account totals: %w", err)
		}
		totals[account] = u
	}
	return totals, rows.Err()
}

// PruneBefore deletes entries recorded before the cutoff and returns how
// many were removed.
func (l *Ledger) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx,
		`DELETE FROM usage_records WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage entries: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		l.logger.Info("pruned usage entries", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
