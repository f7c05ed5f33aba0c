package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Event types written to the outbox alongside state changes.
const (
	EventCaseCreated       = "case.created"
	EventCaseUpdated       = "case.updated"
	EventCaseCompleted     = "case.completed"
	EventCaseCancelled     = "case.cancelled"
	EventCaseRestored      = "case.restored"
	EventCaseDeleted       = "case.deleted"
	EventCaseAutoCompleted = "case.auto_completed"
	EventReferralCreated   = "referral.created"
	EventReferralAccepted  = "referral.accepted"
	EventReferralDeclined  = "referral.declined"
	EventReferralRemoved   = "referral.removed"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// CaseEvent is the payload of case.* and referral.* events.
type CaseEvent struct {
	CaseID     uuid.UUID      `json:"case_id"`
	ReferralID *uuid.UUID     `json:"referral_id,omitempty"`
	ActorID    *uuid.UUID     `json:"actor_id,omitempty"`
	Status     CaseStatus     `json:"status"`
	Referral   ReferralStatus `json:"referral_status,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
