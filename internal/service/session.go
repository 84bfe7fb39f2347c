package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/treeleaf/internal/apperrors"
	"github.com/xiaot623/treeleaf/internal/domain"
	"github.com/xiaot623/treeleaf/internal/logger"
	"github.com/xiaot623/treeleaf/internal/metrics"
	"github.com/xiaot623/treeleaf/internal/policy"
	store "github.com/xiaot623/treeleaf/internal/repository"
)

const defaultHistoryLimit = 100

// CreateSession buys a package of attempts for a product. Outcomes for every
// attempt are drawn here, before the first round can be played.
func (s *Service) CreateSession(ctx context.Context, userID, productID int64, packageType string) (*domain.CreateSessionResponse, error) {
	if userID <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "user_id is required")
	}
	pkg, err := domain.ParsePackageType(packageType)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "invalid package_type", err)
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, storageErr("failed to get product", err)
	}
	if product == nil || !product.IsActive {
		return nil, apperrors.New(apperrors.CodeNotFound, "product not found")
	}
	price := PackagePrice(product.Price, pkg)

	if s.policyEngine != nil {
		active, err := s.store.CountActiveSessions(ctx, userID)
		if err != nil {
			return nil, storageErr("failed to count active sessions", err)
		}
		decision, err := s.policyEngine.Evaluate(ctx, policy.PurchaseInput{
			UserID:         userID,
			ProductID:      productID,
			PackageType:    string(pkg),
			ProductPrice:   product.Price,
			PackagePrice:   price,
			ActiveSessions: active,
		})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeUnknown, "purchase policy failed", err)
		}
		if !decision.Allowed {
			return nil, apperrors.New(apperrors.CodeValidation, "purchase blocked: "+strings.Join(decision.Reasons, "; "))
		}
	}

	committed, err := s.outcomes.Generate(pkg.TotalAttempts(), s.config.WinProbability)
	if err != nil {
		return nil, err
	}

	ts := s.now()
	gs := &domain.Session{
		ID:                "gs_" + uuid.New().String(),
		UserID:            userID,
		ProductID:         productID,
		PackageType:       pkg,
		TotalAttempts:     pkg.TotalAttempts(),
		AmountPaid:        price,
		Status:            domain.SessionStatusActive,
		CommittedOutcomes: committed,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.EnsureUser(ctx, userID); err != nil {
			return err
		}
		existing, err := tx.GetActiveSession(ctx, userID, productID)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflictErr(existing.ID)
		}
		if err := tx.CreateSession(ctx, gs); err != nil {
			if store.IsUniqueViolation(err) {
				if existing, _ := tx.GetActiveSession(ctx, userID, productID); existing != nil {
					return conflictErr(existing.ID)
				}
			}
			return err
		}
		return s.recordEvent(ctx, tx, gs.ID, domain.EventTypeSessionCreated, map[string]interface{}{
			"user_id":        userID,
			"product_id":     productID,
			"package_type":   pkg,
			"total_attempts": gs.TotalAttempts,
			"amount_paid":    price,
		})
	})
	if err != nil {
		return nil, storageErr("failed to create session", err)
	}

	metrics.SessionCreated(string(pkg))
	logger.For(ctx, s.log).Info("session created",
		zap.String("session_id", gs.ID),
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.String("package_type", string(pkg)),
		zap.Int64("amount_paid", price))

	return &domain.CreateSessionResponse{
		SessionID:     gs.ID,
		TotalAttempts: gs.TotalAttempts,
		AmountPaid:    price,
	}, nil
}

func conflictErr(sessionID string) error {
	return apperrors.WithMetadata(apperrors.CodeConflict, "an active session already exists for this product",
		map[string]string{"session_id": sessionID})
}

// GetActiveSession returns the public view of the user's active session for a product, or nil.
func (s *Service) GetActiveSession(ctx context.Context, userID, productID int64) (*domain.SessionView, error) {
	gs, err := s.store.GetActiveSession(ctx, userID, productID)
	if err != nil {
		return nil, storageErr("failed to get active session", err)
	}
	if gs == nil {
		return nil, nil
	}
	return gs.View(), nil
}

// GetSession returns the public view of a session owned by userID.
func (s *Service) GetSession(ctx context.Context, sessionID string, userID int64) (*domain.SessionView, error) {
	gs, err := s.ownedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return gs.View(), nil
}

// GetSessionRounds returns the audit trail of a session in play order.
func (s *Service) GetSessionRounds(ctx context.Context, sessionID string, userID int64) ([]domain.Round, error) {
	if _, err := s.ownedSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	rounds, err := s.store.ListRounds(ctx, sessionID)
	if err != nil {
		return nil, storageErr("failed to list rounds", err)
	}
	if rounds == nil {
		rounds = []domain.Round{}
	}
	return rounds, nil
}

// GetUserGameHistory returns the user's sessions, newest first.
func (s *Service) GetUserGameHistory(ctx context.Context, userID int64, limit int) ([]domain.SessionHistoryItem, error) {
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}
	items, err := s.store.ListUserSessions(ctx, userID, limit)
	if err != nil {
		return nil, storageErr("failed to list sessions", err)
	}
	return items, nil
}

func (s *Service) ownedSession(ctx context.Context, sessionID string, userID int64) (*domain.Session, error) {
	gs, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storageErr("failed to get session", err)
	}
	if gs == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "session not found")
	}
	if gs.UserID != userID {
		return nil, apperrors.New(apperrors.CodeForbidden, "session belongs to another user")
	}
	return gs, nil
}
