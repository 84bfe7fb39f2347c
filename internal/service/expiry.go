package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/treeleaf/internal/domain"
	"github.com/xiaot623/treeleaf/internal/metrics"
)

const sweepBatch = 100

// RunExpiryMonitor expires idle sessions and lapsed prize codes until ctx is done.
func (s *Service) RunExpiryMonitor(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpired(ctx)
		}
	}
}

func (s *Service) sweepExpired(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if s.config.SessionTTL > 0 {
		s.sweepIdleSessions(sweepCtx)
	}
	s.sweepPrizeCodes(sweepCtx)
}

func (s *Service) sweepIdleSessions(ctx context.Context) {
	idle, err := s.store.ListIdleSessions(ctx, s.now().Add(-s.config.SessionTTL), sweepBatch)
	if err != nil {
		s.log.Warn("session expiry sweep failed", zap.Error(err))
		return
	}

	for _, gs := range idle {
		updated, err := s.store.ExpireSessionIfIdle(ctx, gs.ID, gs.AttemptsUsed)
		if err != nil {
			s.log.Warn("failed to expire session", zap.String("session_id", gs.ID), zap.Error(err))
			continue
		}
		if !updated {
			continue
		}

		if err := s.recordEvent(ctx, s.store, gs.ID, domain.EventTypeSessionExpired, map[string]interface{}{
			"attempts_used": gs.AttemptsUsed,
			"wins":          gs.Wins,
		}); err != nil {
			s.log.Warn("failed to record session expiry event", zap.String("session_id", gs.ID), zap.Error(err))
		}
		metrics.SessionTransition(string(domain.SessionStatusExpired))
		gs.Status = domain.SessionStatusExpired
		s.publish(gs.ID, domain.FeedSessionExpired, gs.View())
		s.log.Info("session expired", zap.String("session_id", gs.ID))
	}
}

func (s *Service) sweepPrizeCodes(ctx context.Context) {
	lapsed, err := s.store.ListExpiredPrizeCodes(ctx, s.now(), sweepBatch)
	if err != nil {
		s.log.Warn("prize code expiry sweep failed", zap.Error(err))
		return
	}

	for _, pc := range lapsed {
		updated, err := s.store.ExpirePrizeCodeIfActive(ctx, pc.Code)
		if err != nil {
			s.log.Warn("failed to expire prize code", zap.String("session_id", pc.SessionID), zap.Error(err))
			continue
		}
		if !updated {
			continue
		}
		if err := s.recordEvent(ctx, s.store, pc.SessionID, domain.EventTypePrizeExpired, map[string]interface{}{
			"code": pc.Code,
		}); err != nil {
			s.log.Warn("failed to record prize expiry event", zap.String("session_id", pc.SessionID), zap.Error(err))
		}
	}
}
