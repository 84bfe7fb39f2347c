package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/xiaot623/treeleaf/internal/domain"
)

const prizeCodeColumns = `code, session_id, user_id, product_id, status, redeemed_at, expires_at, created_at`

// CreatePrizeCode inserts a prize code. Codes are globally unique and a session owns at most one.
func (q queries) CreatePrizeCode(ctx context.Context, pc *domain.PrizeCode) error {
	_, err := q.ext.ExecContext(ctx,
		`INSERT INTO prize_codes (`+prizeCodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pc.Code, pc.SessionID, pc.UserID, pc.ProductID, pc.Status, pc.RedeemedAt, pc.ExpiresAt, pc.CreatedAt)
	return err
}

// PrizeCodeExists reports whether code is already taken.
func (q queries) PrizeCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, q.ext, &n, `SELECT COUNT(*) FROM prize_codes WHERE code = ?`, code); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetPrizeCode retrieves a prize code. It returns nil when the code does not exist.
func (q queries) GetPrizeCode(ctx context.Context, code string) (*domain.PrizeCode, error) {
	var pc domain.PrizeCode
	err := sqlx.GetContext(ctx, q.ext, &pc, `SELECT `+prizeCodeColumns+` FROM prize_codes WHERE code = ?`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// GetPrizeCodeBySession returns the prize code minted for a session, or nil.
func (q queries) GetPrizeCodeBySession(ctx context.Context, sessionID string) (*domain.PrizeCode, error) {
	var pc domain.PrizeCode
	err := sqlx.GetContext(ctx, q.ext, &pc, `SELECT `+prizeCodeColumns+` FROM prize_codes WHERE session_id = ?`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// GetPrizeCodeDetails joins a prize code with its session, user and product. It returns nil
// when the code does not exist.
func (q queries) GetPrizeCodeDetails(ctx context.Context, code string) (*domain.PrizeCodeDetails, error) {
	pc, err := q.GetPrizeCode(ctx, code)
	if err != nil || pc == nil {
		return nil, err
	}
	return q.details(ctx, pc)
}

func (q queries) details(ctx context.Context, pc *domain.PrizeCode) (*domain.PrizeCodeDetails, error) {
	gs, err := q.GetSession(ctx, pc.SessionID)
	if err != nil {
		return nil, err
	}
	if gs == nil {
		return nil, errors.New("prize code references missing session " + pc.SessionID)
	}
	out := &domain.PrizeCodeDetails{PrizeCode: *pc, Session: *gs.View()}

	user, err := q.GetUser(ctx, pc.UserID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		out.User = *user
	} else {
		out.User = domain.User{ID: pc.UserID}
	}

	product, err := q.GetProduct(ctx, pc.ProductID)
	if err != nil {
		return nil, err
	}
	if product != nil {
		out.Product = *product
	} else {
		out.Product = domain.Product{ID: pc.ProductID}
	}
	return out, nil
}

// ListPrizeCodes returns prize codes with their owners and products, newest first.
func (q queries) ListPrizeCodes(ctx context.Context, limit int) ([]domain.PrizeCodeDetails, error) {
	var codes []domain.PrizeCode
	err := sqlx.SelectContext(ctx, q.ext, &codes,
		`SELECT `+prizeCodeColumns+` FROM prize_codes ORDER BY created_at DESC, code ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PrizeCodeDetails, 0, len(codes))
	for i := range codes {
		d, err := q.details(ctx, &codes[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

// RedeemPrizeCode marks an active code redeemed. It reports false when the code was
// no longer active, so exactly one of several concurrent callers succeeds.
func (q queries) RedeemPrizeCode(ctx context.Context, code string, at time.Time) (bool, error) {
	return affected(q.ext.ExecContext(ctx,
		`UPDATE prize_codes SET status = ?, redeemed_at = ? WHERE code = ? AND status = ?`,
		domain.PrizeCodeStatusRedeemed, at, code, domain.PrizeCodeStatusActive))
}

// ExpirePrizeCodeIfActive marks an active code expired.
func (q queries) ExpirePrizeCodeIfActive(ctx context.Context, code string) (bool, error) {
	return affected(q.ext.ExecContext(ctx,
		`UPDATE prize_codes SET status = ? WHERE code = ? AND status = ?`,
		domain.PrizeCodeStatusExpired, code, domain.PrizeCodeStatusActive))
}

// ListExpiredPrizeCodes returns active codes whose expiry is at or before cutoff.
func (q queries) ListExpiredPrizeCodes(ctx context.Context, cutoff time.Time, limit int) ([]domain.PrizeCode, error) {
	var out []domain.PrizeCode
	err := sqlx.SelectContext(ctx, q.ext, &out,
		`SELECT `+prizeCodeColumns+` FROM prize_codes
		 WHERE status = ? AND expires_at IS NOT NULL AND julianday(expires_at) <= julianday(?)
		 ORDER BY expires_at ASC
		 LIMIT ?`,
		domain.PrizeCodeStatusActive, cutoff, limit)
	return out, err
}
