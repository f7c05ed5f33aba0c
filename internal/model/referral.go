package model

import (
	"time"

	"github.com/google/uuid"
)

type ReferralStatus string

const (
	ReferralStatusPending  ReferralStatus = "Pending"
	ReferralStatusAccepted ReferralStatus = "Accepted"
	ReferralStatusDeclined ReferralStatus = "Declined"
)

// Referral transfers responsibility for a case to a colleague identified by phone number.
type Referral struct {
	Base
	CaseID             uuid.UUID      `json:"case_id" db:"case_id"`
	ReferrerID         uuid.UUID      `json:"referrer_id" db:"referrer_id"`
	RefereeID          *uuid.UUID     `json:"referee_id,omitempty" db:"referee_id"`
	RefereePhoneNumber string         `json:"referee_phone_number" db:"referee_phone_number"`
	Status             ReferralStatus `json:"status" db:"status"`
	AcceptedAt         *time.Time     `json:"accepted_at,omitempty" db:"accepted_at"`
	DeclinedAt         *time.Time     `json:"declined_at,omitempty" db:"declined_at"`
	SMSSent            bool           `json:"sms_sent" db:"sms_sent"`

	Case     *CaseSummary `json:"case,omitempty" db:"-"`
	Referrer *UserSummary `json:"referrer,omitempty" db:"-"`
	Referee  *UserSummary `json:"referee,omitempty" db:"-"`
}

func (r *Referral) IsPending() bool {
	return r.Status == ReferralStatusPending
}

// CaseSummary is the slice of a case shown next to a referral.
type CaseSummary struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	PatientName     string     `json:"patient_name" db:"patient_name"`
	DateOfProcedure time.Time  `json:"date_of_procedure" db:"date_of_procedure"`
	Status          CaseStatus `json:"status" db:"status"`
	FacilityName    *string    `json:"facility_name,omitempty" db:"facility_name"`
}

type CreateReferralRequest struct {
	CaseID             uuid.UUID `json:"case_id" binding:"required"`
	RefereePhoneNumber string    `json:"referee_phone_number" binding:"required,kephone"`
}

// ReferralResult is returned by referral operations. Warning is set when the
// state change succeeded but the SMS could not be delivered.
type ReferralResult struct {
	Referral *Referral `json:"referral"`
	Case     *Case     `json:"case,omitempty"`
	Warning  string    `json:"warning,omitempty"`
}
