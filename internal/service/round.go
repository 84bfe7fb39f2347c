package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/treeleaf/internal/apperrors"
	"github.com/xiaot623/treeleaf/internal/domain"
	"github.com/xiaot623/treeleaf/internal/logger"
	"github.com/xiaot623/treeleaf/internal/metrics"
	store "github.com/xiaot623/treeleaf/internal/repository"
)

// maxCASRetries bounds how often a round is re-read after losing a conditional update.
const maxCASRetries = 5

var errCASConflict = errors.New("session changed concurrently")

// PlayRound consumes the next committed outcome of a session for the given choice.
// The attempt advance, the round record, the status change and any prize code are
// committed together or not at all.
func (s *Service) PlayRound(ctx context.Context, sessionID string, userID int64, choice string) (result *domain.PlayRoundResult, err error) {
	started := time.Now()
	defer func() {
		label := "loss"
		switch {
		case err != nil:
			label = string(apperrors.GetCode(err))
		case result.IsWin:
			label = "win"
		}
		metrics.RecordRound(label, started)
	}()

	face, perr := domain.ParseFace(choice)
	if perr != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "choice must be A or B", perr)
	}

	var (
		gs    *domain.Session
		round *domain.Round
	)
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		gs, round, err = s.playOnce(ctx, sessionID, userID, face)
		if !errors.Is(err, errCASConflict) {
			break
		}
		metrics.CASConflict("play_round")
		logger.For(ctx, s.log).Debug("play round lost conditional update, retrying",
			zap.String("session_id", sessionID), zap.Int("attempt", attempt+1))
	}
	if errors.Is(err, errCASConflict) {
		return nil, apperrors.Storage("session is busy, retry the round", err)
	}
	if err != nil {
		return nil, storageErr("failed to play round", err)
	}

	result = &domain.PlayRoundResult{
		IsWin:         round.IsWin,
		ShownOutcome:  round.ShownOutcome,
		SequenceIndex: round.SequenceIndex,
		AttemptsUsed:  gs.AttemptsUsed,
		TotalAttempts: gs.TotalAttempts,
		Wins:          gs.Wins,
		Status:        gs.Status,
	}
	if gs.PrizeCode != nil {
		result.PrizeCode = *gs.PrizeCode
	}

	s.afterRound(ctx, gs, result)
	return result, nil
}

// playOnce runs one read-check-write cycle inside a transaction.
func (s *Service) playOnce(ctx context.Context, sessionID string, userID int64, face domain.Face) (*domain.Session, *domain.Round, error) {
	var (
		gs    *domain.Session
		round *domain.Round
	)
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		gs, err = tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if gs == nil {
			return apperrors.New(apperrors.CodeNotFound, "session not found")
		}
		if gs.UserID != userID {
			return apperrors.New(apperrors.CodeForbidden, "session belongs to another user")
		}
		if gs.Status != domain.SessionStatusActive {
			return apperrors.WithMetadata(apperrors.CodeInvalidState, "session is "+string(gs.Status),
				map[string]string{"status": string(gs.Status)})
		}
		if gs.AttemptsUsed >= gs.TotalAttempts {
			return apperrors.New(apperrors.CodeExhausted, "no attempts remain")
		}
		if len(gs.CommittedOutcomes) != gs.TotalAttempts {
			return apperrors.New(apperrors.CodeUnknown, "committed outcomes do not match total attempts")
		}

		prev := gs.AttemptsUsed
		isWin, shown := gs.CommittedOutcomes[prev].Resolve(face)
		ts := s.now()

		gs.AttemptsUsed = prev + 1
		if isWin {
			gs.Wins++
		}
		gs.UpdatedAt = ts

		switch {
		case gs.Wins >= s.config.WinThreshold:
			gs.Status = domain.SessionStatusWon
			code, err := s.issuePrize(ctx, tx, gs, ts)
			if err != nil {
				return err
			}
			gs.PrizeCode = &code
		case gs.AttemptsUsed >= gs.TotalAttempts:
			gs.Status = domain.SessionStatusLost
		}

		ok, err := tx.AdvanceSession(ctx, gs, prev)
		if err != nil {
			return err
		}
		if !ok {
			return errCASConflict
		}

		round = &domain.Round{
			ID:            "rnd_" + uuid.New().String(),
			SessionID:     gs.ID,
			UserID:        gs.UserID,
			ProductID:     gs.ProductID,
			SequenceIndex: prev,
			Choice:        face,
			ShownOutcome:  shown,
			IsWin:         isWin,
			CreatedAt:     ts,
		}
		if err := tx.InsertRound(ctx, round); err != nil {
			return err
		}

		if err := s.recordEvent(ctx, tx, gs.ID, domain.EventTypeRoundPlayed, map[string]interface{}{
			"sequence_index": prev,
			"choice":         face,
			"shown_outcome":  shown,
			"is_win":         isWin,
		}); err != nil {
			return err
		}
		switch gs.Status {
		case domain.SessionStatusWon:
			return s.recordEvent(ctx, tx, gs.ID, domain.EventTypeSessionWon, map[string]interface{}{
				"wins":       gs.Wins,
				"prize_code": *gs.PrizeCode,
			})
		case domain.SessionStatusLost:
			return s.recordEvent(ctx, tx, gs.ID, domain.EventTypeSessionLost, map[string]interface{}{
				"wins": gs.Wins,
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return gs, round, nil
}

// afterRound emits metrics, logs and feed messages for a committed round.
func (s *Service) afterRound(ctx context.Context, gs *domain.Session, result *domain.PlayRoundResult) {
	log := logger.For(ctx, s.log).With(zap.String("session_id", gs.ID))
	log.Info("round played",
		zap.Int("sequence_index", result.SequenceIndex),
		zap.Bool("is_win", result.IsWin),
		zap.Int("wins", result.Wins),
		zap.String("status", string(result.Status)))

	s.publish(gs.ID, domain.FeedRoundResult, result)

	switch gs.Status {
	case domain.SessionStatusWon:
		metrics.SessionTransition(string(gs.Status))
		metrics.PrizeIssued()
		log.Info("session won", zap.String("prize_code", result.PrizeCode))
		s.publish(gs.ID, domain.FeedSessionWon, gs.View())
	case domain.SessionStatusLost:
		metrics.SessionTransition(string(gs.Status))
		s.publish(gs.ID, domain.FeedSessionLost, gs.View())
	}
}
