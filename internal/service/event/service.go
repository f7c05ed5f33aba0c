package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
)

// Service writes outbox events. Callers pass the transaction of the state
// change so the event commits or rolls back with it.
type Service struct {
	outboxRepo repository.OutboxRepository
	now        func() time.Time
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{outboxRepo: outboxRepo, now: time.Now}
}

func (s *Service) Emit(ctx context.Context, tx *sqlx.Tx, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}
	if err := s.outboxRepo.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// EmitCase writes a case or referral event describing c after the change.
func (s *Service) EmitCase(ctx context.Context, tx *sqlx.Tx, eventType string, c *model.Case, r *model.Referral, actor *uuid.UUID) error {
	payload := model.CaseEvent{
		CaseID:     c.ID,
		ActorID:    actor,
		Status:     c.Status,
		OccurredAt: s.now(),
	}
	if r != nil {
		id := r.ID
		payload.ReferralID = &id
		payload.Referral = r.Status
	}
	return s.Emit(ctx, tx, eventType, payload)
}
