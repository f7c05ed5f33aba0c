package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/model"
	apperrors "github.com/lipanganya/doctime-api/pkg/errors"
	"github.com/lipanganya/doctime-api/pkg/phone"
)

// CanRefer checks that referrer may hand c over to refereePhone. existing is
// the referral row currently attached to the case, if any.
func CanRefer(c *model.Case, referrer *model.User, refereePhone string, existing *model.Referral) error {
	if !c.IsOwner(referrer.ID) {
		return apperrors.Forbidden("not authorized to refer this case")
	}
	if !phone.Valid(refereePhone) {
		return apperrors.BadRequest("invalid referee phone number", nil)
	}
	if refereePhone == referrer.PhoneNumber {
		return apperrors.BadRequest("cannot refer a case to yourself", nil)
	}
	if existing != nil && existing.Status != model.ReferralStatusDeclined {
		return apperrors.InvalidState("case already referred")
	}
	if c.Status != model.CaseStatusUpcoming {
		return apperrors.InvalidState("only upcoming cases can be referred")
	}
	return nil
}

// Refer builds a pending referral and moves the case to Referred. The phone
// number is normalized first; referee is nil when nobody is registered with it.
func Refer(c *model.Case, referrer *model.User, refereePhone string, referee *model.User, existing *model.Referral, now time.Time) (*model.Referral, error) {
	refereePhone = phone.Normalize(refereePhone)
	if err := CanRefer(c, referrer, refereePhone, existing); err != nil {
		return nil, err
	}

	r := &model.Referral{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		CaseID:             c.ID,
		ReferrerID:         referrer.ID,
		RefereePhoneNumber: refereePhone,
		Status:             model.ReferralStatusPending,
	}
	if referee != nil {
		id := referee.ID
		r.RefereeID = &id
	}

	c.IsReferred = true
	c.ReferredToID = r.RefereeID
	c.Status = model.CaseStatusReferred
	return r, nil
}

// CanRespond allows the referee, matched by phone number or bound account, to
// accept or decline a pending referral.
func CanRespond(r *model.Referral, actor *model.User) error {
	if !r.IsPending() {
		return apperrors.Forbidden("referral is no longer pending")
	}
	if phone.Normalize(actor.PhoneNumber) == r.RefereePhoneNumber {
		return nil
	}
	if r.RefereeID != nil && *r.RefereeID == actor.ID {
		return nil
	}
	return apperrors.Forbidden("not authorized to respond to this referral")
}

// Accept binds the referral and the case to the accepting account.
func Accept(r *model.Referral, c *model.Case, actor *model.User, now time.Time) error {
	if err := CanRespond(r, actor); err != nil {
		return err
	}
	id := actor.ID
	r.Status = model.ReferralStatusAccepted
	r.AcceptedAt = &now
	r.RefereeID = &id
	r.UpdatedAt = now
	c.ReferredToID = &id
	return nil
}

// Decline rejects the referral and returns the case to its owner.
func Decline(r *model.Referral, c *model.Case, actor *model.User, now time.Time) error {
	if err := CanRespond(r, actor); err != nil {
		return err
	}
	r.Status = model.ReferralStatusDeclined
	r.DeclinedAt = &now
	r.UpdatedAt = now
	Revert(c, now)
	return nil
}

// CanRemove allows only the referrer to withdraw a referral, and only while
// it is pending.
func CanRemove(r *model.Referral, actor uuid.UUID) error {
	if r.ReferrerID != actor {
		return apperrors.Forbidden("only the referrer can remove this referral")
	}
	if !r.IsPending() {
		return apperrors.InvalidState("cannot remove accepted/declined referral")
	}
	return nil
}

// Remove withdraws a pending referral. The caller deletes the row.
func Remove(r *model.Referral, c *model.Case, actor uuid.UUID, now time.Time) error {
	if err := CanRemove(r, actor); err != nil {
		return err
	}
	Revert(c, now)
	return nil
}
