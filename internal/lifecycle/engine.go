// Package lifecycle decides case and referral state transitions. It performs
// no I/O: callers load the rows, apply a transition in memory and persist the
// result with a conditional update on the previous status.
package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/model"
	apperrors "github.com/lipanganya/doctime-api/pkg/errors"
)

// Initial is the status a case starts in.
type Initial struct {
	Status          model.CaseStatus
	IsAutoCompleted bool
	CompletedAt     *time.Time
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// beforeToday reports whether date falls on a calendar day before now's.
func beforeToday(date, now time.Time) bool {
	return startOfDay(date.In(now.Location())).Before(startOfDay(now))
}

// DetermineInitialStatus completes cases entered after their procedure day
// and leaves everything else Upcoming.
func DetermineInitialStatus(procedureDate, now time.Time) Initial {
	if beforeToday(procedureDate, now) {
		completedAt := now
		return Initial{
			Status:          model.CaseStatusCompleted,
			IsAutoCompleted: true,
			CompletedAt:     &completedAt,
		}
	}
	return Initial{Status: model.CaseStatusUpcoming}
}

// ApplyInitial stamps the initial status onto a new case.
func ApplyInitial(c *model.Case, now time.Time) {
	init := DetermineInitialStatus(c.DateOfProcedure, now)
	c.Status = init.Status
	c.IsAutoCompleted = init.IsAutoCompleted
	c.CompletedAt = init.CompletedAt
}

// AuthorizeActor allows the owner and the current referee. A referee may only
// act once the referral has been accepted.
func AuthorizeActor(c *model.Case, actor uuid.UUID, referral *model.Referral) error {
	if c.IsOwner(actor) {
		return nil
	}
	if !c.IsReferredTo(actor) {
		return apperrors.Forbidden("not authorized to modify this case")
	}
	if c.IsReferred && (referral == nil || referral.Status != model.ReferralStatusAccepted) {
		return apperrors.PreconditionFailed("referral not yet accepted")
	}
	return nil
}

// Complete marks the case completed. Completing a completed case is a no-op
// and reports changed=false.
func Complete(c *model.Case, actor uuid.UUID, referral *model.Referral, now time.Time) (bool, error) {
	if err := AuthorizeActor(c, actor, referral); err != nil {
		return false, err
	}
	if c.Status == model.CaseStatusCompleted {
		return false, nil
	}
	c.Status = model.CaseStatusCompleted
	c.CompletedAt = &now
	return true, nil
}

// Cancel marks the case cancelled. Cancelling a cancelled case is a no-op.
func Cancel(c *model.Case, actor uuid.UUID, referral *model.Referral, now time.Time) (bool, error) {
	if err := AuthorizeActor(c, actor, referral); err != nil {
		return false, err
	}
	if c.Status == model.CaseStatusCancelled {
		return false, nil
	}
	c.Status = model.CaseStatusCancelled
	c.CancelledAt = &now
	return true, nil
}

// Restore brings a cancelled case back. Cases dated today or later become
// Upcoming, older ones Completed.
func Restore(c *model.Case, actor uuid.UUID, now time.Time) error {
	if !c.IsOwner(actor) {
		return apperrors.Forbidden("only the case owner can restore a case")
	}
	if c.Status != model.CaseStatusCancelled {
		return apperrors.InvalidState("case is not cancelled")
	}

	c.CancelledAt = nil
	if beforeToday(c.DateOfProcedure, now) {
		c.Status = model.CaseStatusCompleted
		c.CompletedAt = &now
		return nil
	}
	c.Status = model.CaseStatusUpcoming
	c.CompletedAt = nil
	return nil
}

// Revert returns a referred case to its owner. The status is recomputed from
// the procedure date so a lapsed case does not reappear as Upcoming.
func Revert(c *model.Case, now time.Time) {
	c.IsReferred = false
	c.ReferredToID = nil
	ApplyInitial(c, now)
}

// IsOverdue reports whether the sweep should auto-complete the case.
func IsOverdue(c *model.Case, now time.Time) bool {
	return c.Status == model.CaseStatusUpcoming && c.DateOfProcedure.Before(now)
}

// AutoComplete applies the sweep transition. It returns false when the case
// is not overdue.
func AutoComplete(c *model.Case, now time.Time) bool {
	if !IsOverdue(c, now) {
		return false
	}
	c.Status = model.CaseStatusCompleted
	c.IsAutoCompleted = true
	c.CompletedAt = &now
	return true
}

// AdminSetStatus moves a case to any status on behalf of an administrator,
// keeping the timestamps consistent with the new status. Leaving Referred
// detaches the referee; the caller drops the referral row.
func AdminSetStatus(c *model.Case, status model.CaseStatus, now time.Time) error {
	if !status.Valid() {
		return apperrors.BadRequest("invalid case status", nil)
	}
	if c.Status == status {
		return nil
	}
	if c.Status == model.CaseStatusReferred {
		c.IsReferred = false
		c.ReferredToID = nil
	}

	switch status {
	case model.CaseStatusCompleted:
		c.CompletedAt = &now
		c.CancelledAt = nil
	case model.CaseStatusCancelled:
		c.CancelledAt = &now
	case model.CaseStatusUpcoming:
		c.CompletedAt = nil
		c.CancelledAt = nil
		c.IsAutoCompleted = false
	case model.CaseStatusReferred:
		if !c.IsReferred {
			return apperrors.InvalidState("case has no referral")
		}
	}
	c.Status = status
	return nil
}
