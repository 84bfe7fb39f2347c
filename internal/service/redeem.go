package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiaot623/treeleaf/internal/apperrors"
	"github.com/xiaot623/treeleaf/internal/domain"
	"github.com/xiaot623/treeleaf/internal/logger"
	"github.com/xiaot623/treeleaf/internal/metrics"
	store "github.com/xiaot623/treeleaf/internal/repository"
)

// RedeemPrizeCode consumes an active prize code. Of several concurrent callers
// exactly one succeeds; the others see ALREADY_USED.
func (s *Service) RedeemPrizeCode(ctx context.Context, code string) (resp *domain.RedeemResponse, err error) {
	defer func() {
		if err != nil {
			metrics.RecordRedemption(string(apperrors.GetCode(err)))
		} else {
			metrics.RecordRedemption("success")
		}
	}()

	code = normalizeCode(code)
	if code == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "code is required")
	}

	redeemedAt := s.now()
	var (
		details   *domain.PrizeCodeDetails
		lapsedNow bool
	)
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		pc, err := tx.GetPrizeCode(ctx, code)
		if err != nil {
			return err
		}
		if pc == nil {
			return apperrors.New(apperrors.CodeNotFound, "prize code not found")
		}
		switch pc.Status {
		case domain.PrizeCodeStatusRedeemed:
			return apperrors.New(apperrors.CodeAlreadyUsed, "prize code already redeemed")
		case domain.PrizeCodeStatusExpired:
			return apperrors.New(apperrors.CodeExpired, "prize code expired")
		}
		if pc.PastExpiry(redeemedAt) {
			// Commit the expiry so the sweeper and later callers agree.
			if _, err := tx.ExpirePrizeCodeIfActive(ctx, code); err != nil {
				return err
			}
			lapsedNow = true
			return s.recordEvent(ctx, tx, pc.SessionID, domain.EventTypePrizeExpired, map[string]interface{}{"code": code})
		}

		ok, err := tx.RedeemPrizeCode(ctx, code, redeemedAt)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.New(apperrors.CodeAlreadyUsed, "prize code already redeemed")
		}

		details, err = tx.GetPrizeCodeDetails(ctx, code)
		if err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, pc.SessionID, domain.EventTypePrizeRedeemed, map[string]interface{}{"code": code})
	})
	if err != nil {
		return nil, storageErr("failed to redeem prize code", err)
	}
	if lapsedNow {
		return nil, apperrors.New(apperrors.CodeExpired, "prize code expired")
	}

	resp = &domain.RedeemResponse{
		Code:       code,
		RedeemedAt: redeemedAt.UnixMilli(),
		Session:    details.Session,
		User:       details.User,
		Product:    details.Product,
	}
	logger.For(ctx, s.log).Info("prize code redeemed",
		zap.String("session_id", details.Session.SessionID),
		zap.Int64("user_id", details.User.ID),
		zap.Int64("product_id", details.Product.ID))
	s.publish(details.Session.SessionID, domain.FeedPrizeRedeemed, resp)
	return resp, nil
}
