package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/xiaot623/treeleaf/internal/domain"
)

const sessionColumns = `id, user_id, product_id, package_type, total_attempts, attempts_used, wins,
	amount_paid, status, committed_outcomes, prize_code, created_at, updated_at`

// CreateSession inserts a new session. A second active session for the same
// user and product fails with a unique violation.
func (q queries) CreateSession(ctx context.Context, gs *domain.Session) error {
	_, err := q.ext.ExecContext(ctx,
		`INSERT INTO game_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gs.ID, gs.UserID, gs.ProductID, gs.PackageType, gs.TotalAttempts, gs.AttemptsUsed, gs.Wins,
		gs.AmountPaid, gs.Status, gs.CommittedOutcomes, gs.PrizeCode, gs.CreatedAt, gs.UpdatedAt)
	return err
}

// GetSession retrieves a session by ID. It returns nil when the session does not exist.
func (q queries) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var gs domain.Session
	err := sqlx.GetContext(ctx, q.ext, &gs, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = ?`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gs, nil
}

// GetActiveSession returns the active session of a user for a product, or nil.
func (q queries) GetActiveSession(ctx context.Context, userID, productID int64) (*domain.Session, error) {
	var gs domain.Session
	err := sqlx.GetContext(ctx, q.ext, &gs,
		`SELECT `+sessionColumns+` FROM game_sessions WHERE user_id = ? AND product_id = ? AND status = ?`,
		userID, productID, domain.SessionStatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gs, nil
}

// CountActiveSessions returns how many active sessions a user holds across all products.
func (q queries) CountActiveSessions(ctx context.Context, userID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q.ext, &n,
		`SELECT COUNT(*) FROM game_sessions WHERE user_id = ? AND status = ?`, userID, domain.SessionStatusActive)
	return n, err
}

// AdvanceSession writes the counters and status of gs, provided the row is still
// active and attempts_used still equals prevAttemptsUsed. It reports whether the
// row was updated; false means another writer got there first.
func (q queries) AdvanceSession(ctx context.Context, gs *domain.Session, prevAttemptsUsed int) (bool, error) {
	return affected(q.ext.ExecContext(ctx,
		`UPDATE game_sessions
		 SET attempts_used = ?, wins = ?, status = ?, prize_code = ?, updated_at = ?
		 WHERE id = ? AND attempts_used = ? AND status = ?`,
		gs.AttemptsUsed, gs.Wins, gs.Status, gs.PrizeCode, gs.UpdatedAt,
		gs.ID, prevAttemptsUsed, domain.SessionStatusActive))
}

// ExpireSessionIfIdle marks an active session expired unless a round was played
// since the sweeper read it.
func (q queries) ExpireSessionIfIdle(ctx context.Context, sessionID string, attemptsUsed int) (bool, error) {
	return affected(q.ext.ExecContext(ctx,
		`UPDATE game_sessions SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND attempts_used = ?`,
		domain.SessionStatusExpired, now(), sessionID, domain.SessionStatusActive, attemptsUsed))
}

// ListIdleSessions returns active sessions not updated since cutoff, oldest first.
func (q queries) ListIdleSessions(ctx context.Context, cutoff time.Time, limit int) ([]domain.Session, error) {
	var out []domain.Session
	err := sqlx.SelectContext(ctx, q.ext, &out,
		`SELECT `+sessionColumns+` FROM game_sessions
		 WHERE status = ? AND julianday(updated_at) <= julianday(?)
		 ORDER BY updated_at ASC
		 LIMIT ?`,
		domain.SessionStatusActive, cutoff, limit)
	return out, err
}

type historyRow struct {
	domain.Session
	ProductName string `db:"product_name"`
}

// ListUserSessions returns every session of a user with its product name, newest first.
func (q queries) ListUserSessions(ctx context.Context, userID int64, limit int) ([]domain.SessionHistoryItem, error) {
	var rows []historyRow
	err := sqlx.SelectContext(ctx, q.ext, &rows,
		`SELECT gs.id, gs.user_id, gs.product_id, gs.package_type, gs.total_attempts, gs.attempts_used,
		        gs.wins, gs.amount_paid, gs.status, gs.committed_outcomes, gs.prize_code,
		        gs.created_at, gs.updated_at, p.name AS product_name
		 FROM game_sessions gs
		 JOIN products p ON p.id = gs.product_id
		 WHERE gs.user_id = ?
		 ORDER BY gs.created_at DESC, gs.id DESC
		 LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SessionHistoryItem, 0, len(rows))
	for i := range rows {
		out = append(out, domain.SessionHistoryItem{
			Session:     *rows[i].Session.View(),
			ProductName: rows[i].ProductName,
		})
	}
	return out, nil
}

// InsertRound appends a round record. A duplicate sequence index for the session fails.
func (q queries) InsertRound(ctx context.Context, r *domain.Round) error {
	_, err := q.ext.ExecContext(ctx,
		`INSERT INTO rounds (id, session_id, user_id, product_id, sequence_index, choice, shown_outcome, is_win, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.UserID, r.ProductID, r.SequenceIndex, r.Choice, r.ShownOutcome, r.IsWin, r.CreatedAt)
	return err
}

// ListRounds returns the rounds of a session in play order.
func (q queries) ListRounds(ctx context.Context, sessionID string) ([]domain.Round, error) {
	var out []domain.Round
	err := sqlx.SelectContext(ctx, q.ext, &out,
		`SELECT id, session_id, user_id, product_id, sequence_index, choice, shown_outcome, is_win, created_at
		 FROM rounds WHERE session_id = ? ORDER BY sequence_index ASC`,
		sessionID)
	return out, err
}

// CountWinningRounds returns the number of winning rounds recorded for a session.
func (q queries) CountWinningRounds(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q.ext, &n, `SELECT COUNT(*) FROM rounds WHERE session_id = ? AND is_win = 1`, sessionID)
	return n, err
}
