package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/xiaot623/treeleaf/internal/domain"
)

// queries holds every statement the game needs. It runs against either the
// pool or an open transaction, so SQLiteStore and Tx share one method set.
type queries struct {
	ext sqlx.ExtContext
}

// SQLiteStore implements game persistence using SQLite.
type SQLiteStore struct {
	queries
	db *sqlx.DB
}

// Tx is an open write transaction. Nothing it does is visible until WithTx commits.
type Tx struct {
	queries
	tx *sqlx.Tx
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	memory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
	db, err := sqlx.Open("sqlite3", withDefaults(dsn, memory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if memory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{queries: queries{ext: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// withDefaults turns on foreign keys for every pooled connection and, for file
// databases, makes transactions take the write lock up front and wait on it.
func withDefaults(dsn string, memory bool) string {
	params := []string{"_foreign_keys=on"}
	if !memory {
		params = append(params, "_txlock=immediate", "_busy_timeout=5000")
	}
	if dsn == ":memory:" {
		dsn = "file::memory:"
	}
	for _, p := range params {
		key := p[:strings.Index(p, "=")+1]
		if strings.Contains(dsn, key) {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + p
		} else {
			dsn += "?" + p
		}
	}
	return dsn
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			price INTEGER NOT NULL CHECK (price >= 0),
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS game_sessions (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			product_id INTEGER NOT NULL,
			package_type TEXT NOT NULL,
			total_attempts INTEGER NOT NULL CHECK (total_attempts >= 1),
			attempts_used INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			amount_paid INTEGER NOT NULL,
			status TEXT NOT NULL,
			committed_outcomes TEXT NOT NULL,
			prize_code TEXT UNIQUE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			CHECK (attempts_used <= total_attempts),
			CHECK (wins <= attempts_used),
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (product_id) REFERENCES products(id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_game_sessions_one_active
			ON game_sessions(user_id, product_id) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS idx_game_sessions_user ON game_sessions(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_game_sessions_status ON game_sessions(status, updated_at)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			product_id INTEGER NOT NULL,
			sequence_index INTEGER NOT NULL,
			choice TEXT NOT NULL,
			shown_outcome TEXT NOT NULL,
			is_win BOOLEAN NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (session_id, sequence_index),
			FOREIGN KEY (session_id) REFERENCES game_sessions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS prize_codes (
			code TEXT PRIMARY KEY,
			session_id TEXT NOT NULL UNIQUE,
			user_id INTEGER NOT NULL,
			product_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			redeemed_at DATETIME,
			expires_at DATETIME,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES game_sessions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prize_codes_status ON prize_codes(status, expires_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// SeedProducts inserts the demo catalog when the products table is empty.
func (s *SQLiteStore) SeedProducts(ctx context.Context) error {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	products := []domain.Product{
		{Name: "Wireless Earbuds", Price: 4999, IsActive: true},
		{Name: "Smart Watch", Price: 19900, IsActive: true},
		{Name: "Mechanical Keyboard", Price: 12950, IsActive: true},
		{Name: "Gift Card", Price: 900, IsActive: true},
	}
	for i := range products {
		if err := s.UpsertProduct(ctx, &products[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside a transaction. The transaction commits only when fn returns nil;
// any error or panic rolls every write back.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&Tx{queries: queries{ext: sqlTx}, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func now() time.Time {
	return time.Now().UTC()
}

func affected(res interface{ RowsAffected() (int64, error) }, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
