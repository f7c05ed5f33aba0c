package model

import (
	"time"

	"github.com/google/uuid"
)

// CaseReport summarises a doctor's caseload.
type CaseReport struct {
	CompletedCount     int              `json:"completed_count"`
	CancelledCount     int              `json:"cancelled_count"`
	ReferredCount      int              `json:"referred_count"`
	AutoCompletedCount int              `json:"auto_completed_count"`
	Surgeons           []SurgeonCount   `json:"surgeons_worked_with"`
	InvoicedAmount     float64          `json:"invoiced_amount"`
	UninvoicedAmount   float64          `json:"uninvoiced_amount"`
	Facilities         []FacilityReport `json:"facilities"`
	GeneratedAt        time.Time        `json:"generated_at"`
}

type SurgeonCount struct {
	ID    uuid.UUID `json:"id" db:"id"`
	Name  string    `json:"name" db:"name"`
	Count int       `json:"count" db:"count"`
}

type FacilityReport struct {
	ID     *uuid.UUID `json:"id,omitempty" db:"id"`
	Name   string     `json:"name" db:"name"`
	Count  int        `json:"count" db:"count"`
	Amount float64    `json:"amount" db:"amount"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	CompletedCases int `json:"completed_cases" db:"completed_cases"`
	CancelledCases int `json:"cancelled_cases" db:"cancelled_cases"`
	ReferredCases  int `json:"referred_cases" db:"referred_cases"`
	TotalUsers     int `json:"total_users" db:"total_users"`
	ActiveUsers    int `json:"active_users" db:"active_users"`
}
