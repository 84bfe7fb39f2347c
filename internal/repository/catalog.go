package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/xiaot623/treeleaf/internal/domain"
)

// UpsertProduct creates a product, or updates it when ID is set and exists.
func (q queries) UpsertProduct(ctx context.Context, p *domain.Product) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	if p.ID == 0 {
		res, err := q.ext.ExecContext(ctx,
			`INSERT INTO products (name, price, is_active, created_at) VALUES (?, ?, ?, ?)`,
			p.Name, p.Price, p.IsActive, p.CreatedAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = id
		return nil
	}
	_, err := q.ext.ExecContext(ctx,
		`INSERT INTO products (id, name, price, is_active, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price, is_active = excluded.is_active`,
		p.ID, p.Name, p.Price, p.IsActive, p.CreatedAt)
	return err
}

// GetProduct retrieves a product by ID. It returns nil when the product does not exist.
func (q queries) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, q.ext, &p,
		`SELECT id, name, price, is_active, created_at FROM products WHERE id = ?`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts lists all products.
func (q queries) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := sqlx.SelectContext(ctx, q.ext, &out,
		`SELECT id, name, price, is_active, created_at FROM products ORDER BY id`)
	return out, err
}

// GetUser retrieves a user by ID. It returns nil when the user does not exist.
func (q queries) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, q.ext, &u, `SELECT id, name, role, created_at FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrCreateUser stores the identity presented by a token. An empty name keeps the stored one.
func (q queries) GetOrCreateUser(ctx context.Context, userID int64, name string, role domain.Role) (*domain.User, error) {
	if role == "" {
		role = domain.RoleUser
	}
	_, err := q.ext.ExecContext(ctx,
		`INSERT INTO users (id, name, role, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = CASE WHEN excluded.name != '' THEN excluded.name ELSE users.name END,
		   role = excluded.role`,
		userID, name, role, now())
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	u, err := q.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %d missing after upsert", userID)
	}
	return u, nil
}

// EnsureUser creates a bare user row if none exists. Existing rows are left untouched.
func (q queries) EnsureUser(ctx context.Context, userID int64) error {
	_, err := q.ext.ExecContext(ctx,
		`INSERT INTO users (id, name, role, created_at) VALUES (?, '', ?, ?) ON CONFLICT(id) DO NOTHING`,
		userID, domain.RoleUser, now())
	return err
}

// CreateEvent creates a new event.
func (q queries) CreateEvent(ctx context.Context, event *domain.Event) error {
	var payload sql.NullString
	if event.Payload != nil {
		payload = sql.NullString{String: string(event.Payload), Valid: true}
	}
	_, err := q.ext.ExecContext(ctx,
		`INSERT INTO events (id, session_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.SessionID, event.Ts, event.Type, payload)
	return err
}

// ListEvents retrieves the events of a session in order.
func (q queries) ListEvents(ctx context.Context, sessionID string) ([]domain.Event, error) {
	rows, err := q.ext.QueryxContext(ctx,
		`SELECT id, session_id, ts, type, payload FROM events WHERE session_id = ? ORDER BY ts ASC, rowid ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.ID, &event.SessionID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			event.Payload = []byte(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
