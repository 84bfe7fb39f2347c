// Package service implements the game session engine.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/treeleaf/internal/apperrors"
	"github.com/xiaot623/treeleaf/internal/config"
	"github.com/xiaot623/treeleaf/internal/domain"
	"github.com/xiaot623/treeleaf/internal/outcome"
	"github.com/xiaot623/treeleaf/internal/policy"
	store "github.com/xiaot623/treeleaf/internal/repository"
)

// FeedPublisher receives committed game events for live subscribers.
type FeedPublisher interface {
	Publish(sessionID string, v interface{})
}

type Service struct {
	store        store.Store
	outcomes     outcome.Generator
	codes        outcome.Source
	policyEngine *policy.Engine
	feed         FeedPublisher
	config       *config.Config
	log          *zap.Logger
	now          func() time.Time
}

// New wires the engine. policyEngine and feed may be nil.
func New(st store.Store, outcomes outcome.Generator, codes outcome.Source, policyEngine *policy.Engine, feed FeedPublisher, cfg *config.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:        st,
		outcomes:     outcomes,
		codes:        codes,
		policyEngine: policyEngine,
		feed:         feed,
		config:       cfg,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type eventWriter interface {
	CreateEvent(ctx context.Context, event *domain.Event) error
}

// recordEvent records an event through w, which is either the store or an open transaction.
func (s *Service) recordEvent(ctx context.Context, w eventWriter, sessionID string, eventType domain.EventType, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		ID:        "evt_" + uuid.New().String(),
		SessionID: sessionID,
		Ts:        s.now().UnixMilli(),
		Type:      eventType,
		Payload:   payloadBytes,
	}

	return w.CreateEvent(ctx, event)
}

func (s *Service) publish(sessionID, msgType string, data interface{}) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(sessionID, domain.FeedMessage{
		Type:      msgType,
		SessionID: sessionID,
		Ts:        s.now().UnixMilli(),
		Data:      data,
	})
}

// storageErr keeps domain errors as they are and wraps everything else as a storage failure.
func storageErr(message string, err error) error {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.Storage(message, err)
}
