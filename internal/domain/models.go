package domain

import (
	"encoding/json"
	"time"
)

// Session is a purchased bundle of attempts for one user and one product.
type Session struct {
	ID                string        `db:"id" json:"session_id"`
	UserID            int64         `db:"user_id" json:"user_id"`
	ProductID         int64         `db:"product_id" json:"product_id"`
	PackageType       PackageType   `db:"package_type" json:"package_type"`
	TotalAttempts     int           `db:"total_attempts" json:"total_attempts"`
	AttemptsUsed      int           `db:"attempts_used" json:"attempts_used"`
	Wins              int           `db:"wins" json:"wins"`
	AmountPaid        int64         `db:"amount_paid" json:"amount_paid"`
	Status            SessionStatus `db:"status" json:"status"`
	CommittedOutcomes Commitments   `db:"committed_outcomes" json:"-"`
	PrizeCode         *string       `db:"prize_code" json:"prize_code,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// AttemptsRemaining returns the number of unplayed rounds.
func (s *Session) AttemptsRemaining() int {
	return s.TotalAttempts - s.AttemptsUsed
}

// View returns the client-facing projection of the session.
func (s *Session) View() *SessionView {
	v := &SessionView{
		SessionID:     s.ID,
		ProductID:     s.ProductID,
		PackageType:   s.PackageType,
		AttemptsUsed:  s.AttemptsUsed,
		TotalAttempts: s.TotalAttempts,
		Wins:          s.Wins,
		Status:        s.Status,
		AmountPaid:    s.AmountPaid,
		CreatedAt:     s.CreatedAt.UnixMilli(),
	}
	if s.PrizeCode != nil {
		v.PrizeCode = *s.PrizeCode
	}
	return v
}

// SessionView is the public projection of a session. It never carries the committed outcomes.
type SessionView struct {
	SessionID     string        `json:"session_id"`
	ProductID     int64         `json:"product_id"`
	PackageType   PackageType   `json:"package_type"`
	AttemptsUsed  int           `json:"attempts_used"`
	TotalAttempts int           `json:"total_attempts"`
	Wins          int           `json:"wins"`
	Status        SessionStatus `json:"status"`
	PrizeCode     string        `json:"prize_code,omitempty"`
	AmountPaid    int64         `json:"amount_paid"`
	CreatedAt     int64         `json:"created_at"`
}

// Round is the append-only audit record of one consumed attempt.
type Round struct {
	ID            string    `db:"id" json:"round_id"`
	SessionID     string    `db:"session_id" json:"session_id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	ProductID     int64     `db:"product_id" json:"product_id"`
	SequenceIndex int       `db:"sequence_index" json:"sequence_index"`
	Choice        Face      `db:"choice" json:"choice"`
	ShownOutcome  Face      `db:"shown_outcome" json:"shown_outcome"`
	IsWin         bool      `db:"is_win" json:"is_win"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PrizeCode is a single-use token granted when a session reaches the win threshold.
type PrizeCode struct {
	Code       string          `db:"code" json:"code"`
	SessionID  string          `db:"session_id" json:"session_id"`
	UserID     int64           `db:"user_id" json:"user_id"`
	ProductID  int64           `db:"product_id" json:"product_id"`
	Status     PrizeCodeStatus `db:"status" json:"status"`
	RedeemedAt *time.Time      `db:"redeemed_at" json:"redeemed_at,omitempty"`
	ExpiresAt  *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// PastExpiry reports whether the code has an expiry that is not after now.
func (p *PrizeCode) PastExpiry(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// Product is the catalog entry a session is played for. Prices are in cents.
type Product struct {
	ID        int64     `db:"id" json:"product_id"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// User is the identity record of a player.
type User struct {
	ID        int64     `db:"id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Event is an audit trail entry recorded alongside state changes.
type Event struct {
	ID        string          `db:"id" json:"event_id"`
	SessionID string          `db:"session_id" json:"session_id"`
	Ts        int64           `db:"ts" json:"ts"` // Unix milliseconds
	Type      EventType       `db:"type" json:"type"`
	Payload   json.RawMessage `db:"payload" json:"payload,omitempty"`
}

// SessionHistoryItem is one entry of a user's game history.
type SessionHistoryItem struct {
	Session     SessionView `json:"session"`
	ProductName string      `json:"product_name"`
}

// PrizeCodeDetails joins a prize code with its session, owner and product.
type PrizeCodeDetails struct {
	PrizeCode PrizeCode   `json:"prize_code"`
	Session   SessionView `json:"session"`
	User      User        `json:"user"`
	Product   Product     `json:"product"`
}
