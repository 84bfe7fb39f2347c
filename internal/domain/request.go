package domain

// CreateSessionRequest represents a purchase of a game package.
type CreateSessionRequest struct {
	ProductID   int64  `json:"product_id"`
	PackageType string `json:"package_type"` // single or multi
}

// CreateSessionResponse is returned after a session has been stored.
type CreateSessionResponse struct {
	SessionID     string `json:"session_id"`
	TotalAttempts int    `json:"total_attempts"`
	AmountPaid    int64  `json:"amount_paid"`
}

// PlayRoundRequest carries the player's choice for one round.
type PlayRoundRequest struct {
	Choice string `json:"choice"` // A or B
}

// PlayRoundResult is the outcome of one round together with the updated session counters.
type PlayRoundResult struct {
	IsWin         bool          `json:"is_win"`
	ShownOutcome  Face          `json:"shown_outcome"`
	SequenceIndex int           `json:"sequence_index"`
	AttemptsUsed  int           `json:"attempts_used"`
	TotalAttempts int           `json:"total_attempts"`
	Wins          int           `json:"wins"`
	Status        SessionStatus `json:"status"`
	PrizeCode     string        `json:"prize_code,omitempty"`
}

// UpsertProductRequest creates or updates a catalog product.
type UpsertProductRequest struct {
	ProductID int64  `json:"product_id,omitempty"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

// RedeemResponse is returned after a prize code was consumed.
type RedeemResponse struct {
	Code       string      `json:"code"`
	RedeemedAt int64       `json:"redeemed_at"`
	Session    SessionView `json:"session"`
	User       User        `json:"user"`
	Product    Product     `json:"product"`
}

// FeedMessage is pushed to websocket subscribers of a session.
type FeedMessage struct {
	Type      string `json:"type"` // round_result, session_won, session_lost, session_expired, prize_redeemed
	SessionID string `json:"session_id"`
	Ts        int64  `json:"ts"`
	Data      any    `json:"data,omitempty"`
}

// Feed message types.
const (
	FeedRoundResult    = "round_result"
	FeedSessionWon     = "session_won"
	FeedSessionLost    = "session_lost"
	FeedSessionExpired = "session_expired"
	FeedPrizeRedeemed  = "prize_redeemed"
)
