package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/treeleaf/internal/apperrors"
	"github.com/xiaot623/treeleaf/internal/domain"
	"github.com/xiaot623/treeleaf/internal/logger"
	store "github.com/xiaot623/treeleaf/internal/repository"
)

// PrizeCodeAlphabet leaves out I, O, 0 and 1.
const PrizeCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// issuePrize mints the prize code of a session inside the winning round's
// transaction. A session that already owns a code gets that code back.
func (s *Service) issuePrize(ctx context.Context, tx *store.Tx, gs *domain.Session, ts time.Time) (string, error) {
	if gs.PrizeCode != nil {
		return *gs.PrizeCode, nil
	}
	existing, err := tx.GetPrizeCodeBySession(ctx, gs.ID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.Code, nil
	}

	pc := &domain.PrizeCode{
		SessionID: gs.ID,
		UserID:    gs.UserID,
		ProductID: gs.ProductID,
		Status:    domain.PrizeCodeStatusActive,
		CreatedAt: ts,
	}
	if s.config.PrizeCodeTTL > 0 {
		expires := ts.Add(s.config.PrizeCodeTTL)
		pc.ExpiresAt = &expires
	}

	for i := 0; i < s.config.PrizeCodeRetries; i++ {
		pc.Code = s.newPrizeCode()
		taken, err := tx.PrizeCodeExists(ctx, pc.Code)
		if err != nil {
			return "", err
		}
		if taken {
			logger.For(ctx, s.log).Warn("prize code collision", zap.String("session_id", gs.ID), zap.Int("try", i+1))
			continue
		}
		if err := tx.CreatePrizeCode(ctx, pc); err != nil {
			if store.IsUniqueViolation(err) {
				continue
			}
			return "", err
		}
		if err := s.recordEvent(ctx, tx, gs.ID, domain.EventTypePrizeIssued, map[string]interface{}{
			"code":       pc.Code,
			"expires_at": pc.ExpiresAt,
		}); err != nil {
			return "", err
		}
		return pc.Code, nil
	}
	return "", apperrors.Storage("could not generate a unique prize code", nil)
}

func (s *Service) newPrizeCode() string {
	var b strings.Builder
	b.Grow(s.config.PrizeCodeLength)
	for i := 0; i < s.config.PrizeCodeLength; i++ {
		b.WriteByte(PrizeCodeAlphabet[s.codes.Intn(len(PrizeCodeAlphabet))])
	}
	return b.String()
}

// InspectPrizeCode looks a code up without changing it.
func (s *Service) InspectPrizeCode(ctx context.Context, code string) (*domain.PrizeCodeDetails, error) {
	details, err := s.store.GetPrizeCodeDetails(ctx, normalizeCode(code))
	if err != nil {
		return nil, storageErr("failed to get prize code", err)
	}
	if details == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "prize code not found")
	}
	return details, nil
}

// ListPrizeCodes returns recent prize codes with owners and products.
func (s *Service) ListPrizeCodes(ctx context.Context, limit int) ([]domain.PrizeCodeDetails, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	out, err := s.store.ListPrizeCodes(ctx, limit)
	if err != nil {
		return nil, storageErr("failed to list prize codes", err)
	}
	return out, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
