package model

import (
	"time"

	"github.com/google/uuid"
)

type CaseStatus string

const (
	CaseStatusUpcoming  CaseStatus = "Upcoming"
	CaseStatusCompleted CaseStatus = "Completed"
	CaseStatusCancelled CaseStatus = "Cancelled"
	CaseStatusReferred  CaseStatus = "Referred"
	CaseStatusInvoiced  CaseStatus = "Invoiced"
	CaseStatusPaid      CaseStatus = "Paid"
)

func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusUpcoming, CaseStatusCompleted, CaseStatusCancelled,
		CaseStatusReferred, CaseStatusInvoiced, CaseStatusPaid:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "Pending"
	PaymentStatusPaid          PaymentStatus = "Paid"
	PaymentStatusPartiallyPaid PaymentStatus = "Partially Paid"
	PaymentStatusProBono       PaymentStatus = "Pro Bono"
	PaymentStatusCancelled     PaymentStatus = "Cancelled"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusPartiallyPaid,
		PaymentStatusProBono, PaymentStatusCancelled:
		return true
	}
	return false
}

// Case is a single procedure record owned by a doctor.
type Case struct {
	Base
	UserID          uuid.UUID     `json:"user_id" db:"user_id"`
	DateOfProcedure time.Time     `json:"date_of_procedure" db:"date_of_procedure"`
	PatientName     string        `json:"patient_name" db:"patient_name"`
	InpatientNumber *string       `json:"inpatient_number,omitempty" db:"inpatient_number"`
	PatientAge      *int          `json:"patient_age,omitempty" db:"patient_age"`
	FacilityID      *uuid.UUID    `json:"facility_id,omitempty" db:"facility_id"`
	PayerID         *uuid.UUID    `json:"payer_id,omitempty" db:"payer_id"`
	ProcedureID     *uuid.UUID    `json:"procedure_id,omitempty" db:"procedure_id"`
	InvoiceNumber   *string       `json:"invoice_number,omitempty" db:"invoice_number"`
	Amount          *float64      `json:"amount,omitempty" db:"amount"`
	PaymentStatus   PaymentStatus `json:"payment_status" db:"payment_status"`
	AdditionalNotes *string       `json:"additional_notes,omitempty" db:"additional_notes"`
	Status          CaseStatus    `json:"status" db:"status"`
	IsReferred      bool          `json:"is_referred" db:"is_referred"`
	ReferredToID    *uuid.UUID    `json:"referred_to_id,omitempty" db:"referred_to_id"`
	IsAutoCompleted bool          `json:"is_auto_completed" db:"is_auto_completed"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`

	Facility     *Facility    `json:"facility,omitempty" db:"-"`
	Payer        *Payer       `json:"payer,omitempty" db:"-"`
	Procedures   []Procedure  `json:"procedures,omitempty" db:"-"`
	TeamMembers  []TeamMember `json:"team_members,omitempty" db:"-"`
	Referral     *Referral    `json:"referral,omitempty" db:"-"`
	ProcedureIDs []uuid.UUID  `json:"-" db:"-"`
	TeamIDs      []uuid.UUID  `json:"-" db:"-"`
}

func (c *Case) IsOwner(userID uuid.UUID) bool {
	return c.UserID == userID
}

func (c *Case) IsReferredTo(userID uuid.UUID) bool {
	return c.ReferredToID != nil && *c.ReferredToID == userID
}

// CaseFilter narrows case listings.
type CaseFilter struct {
	UserID        *uuid.UUID
	ParticipantID *uuid.UUID
	Statuses      []CaseStatus
	IsReferred    *bool
	From          *time.Time
	Limit         int
	OrderDesc     bool
}

type CreateCaseRequest struct {
	DateOfProcedure time.Time      `json:"date_of_procedure" binding:"required"`
	PatientName     string         `json:"patient_name" binding:"required,max=255"`
	InpatientNumber *string        `json:"inpatient_number" binding:"omitempty,max=64"`
	PatientAge      *int           `json:"patient_age" binding:"omitempty,min=0,max=150"`
	FacilityID      *uuid.UUID     `json:"facility_id"`
	PayerID         *uuid.UUID     `json:"payer_id"`
	InvoiceNumber   *string        `json:"invoice_number" binding:"omitempty,max=64"`
	ProcedureID     *uuid.UUID     `json:"procedure_id"`
	ProcedureIDs    []uuid.UUID    `json:"procedure_ids"`
	TeamMemberIDs   []uuid.UUID    `json:"team_member_ids"`
	Amount          *float64       `json:"amount" binding:"omitempty,min=0"`
	PaymentStatus   *PaymentStatus `json:"payment_status" binding:"omitempty,payment_status"`
	AdditionalNotes *string        `json:"additional_notes"`
}

type UpdateCaseRequest struct {
	DateOfProcedure *time.Time     `json:"date_of_procedure"`
	PatientName     *string        `json:"patient_name" binding:"omitempty,min=1,max=255"`
	InpatientNumber *string        `json:"inpatient_number" binding:"omitempty,max=64"`
	PatientAge      *int           `json:"patient_age" binding:"omitempty,min=0,max=150"`
	FacilityID      *uuid.UUID     `json:"facility_id"`
	PayerID         *uuid.UUID     `json:"payer_id"`
	InvoiceNumber   *string        `json:"invoice_number" binding:"omitempty,max=64"`
	ProcedureIDs    []uuid.UUID    `json:"procedure_ids"`
	TeamMemberIDs   []uuid.UUID    `json:"team_member_ids"`
	Amount          *float64       `json:"amount" binding:"omitempty,min=0"`
	PaymentStatus   *PaymentStatus `json:"payment_status" binding:"omitempty,payment_status"`
	AdditionalNotes *string        `json:"additional_notes"`
}

// AdminUpdateCaseRequest carries the fields an administrator may change.
type AdminUpdateCaseRequest struct {
	Status        *CaseStatus    `json:"status" binding:"omitempty,case_status"`
	PaymentStatus *PaymentStatus `json:"payment_status" binding:"omitempty,payment_status"`
	InvoiceNumber *string        `json:"invoice_number" binding:"omitempty,max=64"`
	Amount        *float64       `json:"amount" binding:"omitempty,min=0"`
}
