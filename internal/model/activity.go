package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ActivityAction string

const (
	ActionCreateCase       ActivityAction = "CREATE_CASE"
	ActionUpdateCase       ActivityAction = "UPDATE_CASE"
	ActionCompleteCase     ActivityAction = "COMPLETE_CASE"
	ActionCancelCase       ActivityAction = "CANCEL_CASE"
	ActionDeleteCase       ActivityAction = "DELETE_CASE"
	ActionRestoreCase      ActivityAction = "RESTORE_CASE"
	ActionAutoCompleteCase ActivityAction = "AUTO_COMPLETE_CASE"
	ActionReferCase        ActivityAction = "REFER_CASE"
	ActionAcceptReferral   ActivityAction = "ACCEPT_REFERRAL"
	ActionDeclineReferral  ActivityAction = "DECLINE_REFERRAL"
	ActionRemoveReferral   ActivityAction = "REMOVE_REFERRAL"
	ActionAdminUpdateCase  ActivityAction = "ADMIN_UPDATE_CASE"
	ActionUpdateSetting    ActivityAction = "UPDATE_SETTING"
	ActionSignup           ActivityAction = "SIGNUP"
	ActionLogin            ActivityAction = "LOGIN"
)

const (
	EntityCase     = "Case"
	EntityReferral = "Referral"
	EntityUser     = "User"
	EntitySetting  = "Setting"
)

// ActivityLog is an append-only record of a user or system action.
type ActivityLog struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Action      ActivityAction  `json:"action" db:"action"`
	EntityType  string          `json:"entity_type" db:"entity_type"`
	EntityID    *uuid.UUID      `json:"entity_id,omitempty" db:"entity_id"`
	Description string          `json:"description" db:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	IPAddress   *string         `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent   *string         `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type ActivityFilter struct {
	UserID     *uuid.UUID
	Action     ActivityAction
	EntityType string
	EntityID   *uuid.UUID
	Pagination
}
