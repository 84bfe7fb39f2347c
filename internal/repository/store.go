package store

import (
	"context"
	"time"

	"github.com/xiaot623/treeleaf/internal/domain"
)

// Store defines the interface for data persistence. Every write that must be
// atomic with another goes through WithTx.
type Store interface {
	WithTx(ctx context.Context, fn func(tx *Tx) error) error

	// Session operations
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	GetActiveSession(ctx context.Context, userID, productID int64) (*domain.Session, error)
	CountActiveSessions(ctx context.Context, userID int64) (int, error)
	ListUserSessions(ctx context.Context, userID int64, limit int) ([]domain.SessionHistoryItem, error)
	ListIdleSessions(ctx context.Context, cutoff time.Time, limit int) ([]domain.Session, error)
	ExpireSessionIfIdle(ctx context.Context, sessionID string, attemptsUsed int) (bool, error)

	// Round operations
	ListRounds(ctx context.Context, sessionID string) ([]domain.Round, error)
	CountWinningRounds(ctx context.Context, sessionID string) (int, error)

	// Prize code operations
	GetPrizeCodeDetails(ctx context.Context, code string) (*domain.PrizeCodeDetails, error)
	ListPrizeCodes(ctx context.Context, limit int) ([]domain.PrizeCodeDetails, error)
	ListExpiredPrizeCodes(ctx context.Context, cutoff time.Time, limit int) ([]domain.PrizeCode, error)
	ExpirePrizeCodeIfActive(ctx context.Context, code string) (bool, error)

	// Catalog and identity
	UpsertProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetOrCreateUser(ctx context.Context, userID int64, name string, role domain.Role) (*domain.User, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	ListEvents(ctx context.Context, sessionID string) ([]domain.Event, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
