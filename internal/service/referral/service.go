// Package referral hands cases between doctors. The referral row, the case row
// and the outbox event change in one transaction; SMS follows after commit and
// its failure only produces a warning.
package referral

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lipanganya/doctime-api/internal/lifecycle"
	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
	"github.com/lipanganya/doctime-api/internal/service"
	"github.com/lipanganya/doctime-api/internal/service/activity"
	"github.com/lipanganya/doctime-api/pkg/logger"
	"github.com/lipanganya/doctime-api/pkg/phone"
)

const (
	warnSMSFailed = "Referral saved but the SMS notification could not be sent"
	dateLayout    = "2006-01-02"
)

type ActivityLogger interface {
	Log(ctx context.Context, e activity.Entry)
}

type EventEmitter interface {
	EmitCase(ctx context.Context, tx *sqlx.Tx, eventType string, c *model.Case, r *model.Referral, actor *uuid.UUID) error
}

// SMSNotifier reports delivered=false without an error when the message was
// only logged.
type SMSNotifier interface {
	DeliverSMS(ctx context.Context, to, message string) (delivered bool, err error)
}

type SettingReader interface {
	Enabled(ctx context.Context, key string, fallback bool) bool
}

type Service struct {
	tx        repository.TxManager
	cases     repository.CaseRepository
	referrals repository.ReferralRepository
	users     repository.UserRepository
	events    EventEmitter
	activity  ActivityLogger
	sms       SMSNotifier
	settings  SettingReader
	appLink   string
	log       *logger.Logger
	now       func() time.Time
}

func NewService(
	tx repository.TxManager,
	cases repository.CaseRepository,
	referrals repository.ReferralRepository,
	users repository.UserRepository,
	events EventEmitter,
	activity ActivityLogger,
	sms SMSNotifier,
	settings SettingReader,
	appLink string,
	log *logger.Logger,
) *Service {
	return &Service{
		tx:        tx,
		cases:     cases,
		referrals: referrals,
		users:     users,
		events:    events,
		activity:  activity,
		sms:       sms,
		settings:  settings,
		appLink:   appLink,
		log:       log,
		now:       time.Now,
	}
}

func (s *Service) Create(ctx context.Context, actor uuid.UUID, req *model.CreateReferralRequest) (*model.ReferralResult, error) {
	referrer, err := s.users.Get(ctx, actor)
	if err != nil {
		return nil, service.MapError(err, "user")
	}

	refereePhone := phone.Normalize(req.RefereePhoneNumber)
	referee, err := s.users.GetByPhone(ctx, refereePhone)
	if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
		return nil, service.MapError(err, "user")
	}

	var (
		c *model.Case
		r *model.Referral
	)
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		c, err = s.cases.GetForUpdate(ctx, tx, req.CaseID)
		if err != nil {
			return err
		}
		existing, err := s.referrals.GetByCase(ctx, tx, c.ID)
		if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
			return err
		}

		from := c.Status
		r, err = lifecycle.Refer(c, referrer, refereePhone, referee, existing, s.now())
		if err != nil {
			return err
		}

		// One referral row per case: a declined one makes room for the new one.
		if existing != nil {
			if err := s.referrals.Delete(ctx, tx, existing.ID); err != nil {
				return err
			}
		}
		if err := s.referrals.Create(ctx, tx, r); err != nil {
			return err
		}
		if err := s.cases.UpdateState(ctx, tx, c, from); err != nil {
			return err
		}
		return s.events.EmitCase(ctx, tx, model.EventReferralCreated, c, r, &actor)
	})
	if err != nil {
		return nil, service.MapError(err, "case")
	}

	s.activity.Log(ctx, activity.Entry{
		UserID:      &actor,
		Action:      model.ActionReferCase,
		EntityType:  model.EntityReferral,
		EntityID:    r.ID,
		Description: "Case referred to " + r.RefereePhoneNumber,
		Metadata:    map[string]string{"case_id": c.ID.String(), "referee_phone_number": r.RefereePhoneNumber},
	})

	result := &model.ReferralResult{Referral: r, Case: c}
	if !s.smsEnabled(ctx) {
		return result, nil
	}

	msg := fmt.Sprintf("You have been referred a case by %s. Patient: %s, Date: %s, Facility: %s. Install app: %s",
		referrer.PhoneNumber, c.PatientName, c.DateOfProcedure.Format(dateLayout), s.facilityName(ctx, c), s.appLink)
	sent, ok := s.sendSMS(ctx, r.RefereePhoneNumber, msg)
	if err := s.referrals.MarkSMSSent(ctx, r.ID, sent); err != nil {
		s.log.Warn("failed to record referral sms status", "referral_id", r.ID.String(), "error", err.Error())
	}
	r.SMSSent = sent
	if !ok {
		result.Warning = warnSMSFailed
	}
	return result, nil
}

func (s *Service) facilityName(ctx context.Context, c *model.Case) string {
	if c.FacilityID == nil {
		return "N/A"
	}
	full, err := s.cases.GetWithRelations(ctx, c.ID)
	if err != nil || full.Facility == nil {
		return "N/A"
	}
	return full.Facility.Name
}

// Accept binds the referral and the case to the accepting doctor.
func (s *Service) Accept(ctx context.Context, actor, id uuid.UUID) (*model.ReferralResult, error) {
	return s.respond(ctx, actor, id, response{
		eventType: model.EventReferralAccepted,
		action:    model.ActionAcceptReferral,
		apply:     lifecycle.Accept,
		message: func(r *model.Referral, c *model.Case) string {
			return fmt.Sprintf("Your referral has been accepted by %s. Case: %s", r.RefereePhoneNumber, c.PatientName)
		},
	})
}

// Decline rejects the referral and hands the case back to its owner.
func (s *Service) Decline(ctx context.Context, actor, id uuid.UUID) (*model.ReferralResult, error) {
	return s.respond(ctx, actor, id, response{
		eventType: model.EventReferralDeclined,
		action:    model.ActionDeclineReferral,
		apply:     lifecycle.Decline,
		message: func(r *model.Referral, c *model.Case) string {
			return fmt.Sprintf("Your referral has been declined by %s. Case: %s has been returned to your queue.", r.RefereePhoneNumber, c.PatientName)
		},
	})
}

type response struct {
	eventType string
	action    model.ActivityAction
	apply     func(r *model.Referral, c *model.Case, actor *model.User, now time.Time) error
	message   func(r *model.Referral, c *model.Case) string
}

func (s *Service) respond(ctx context.Context, actor, id uuid.UUID, resp response) (*model.ReferralResult, error) {
	user, err := s.users.Get(ctx, actor)
	if err != nil {
		return nil, service.MapError(err, "user")
	}

	var (
		c *model.Case
		r *model.Referral
	)
	err = s.lockPair(ctx, id, func(tx *sqlx.Tx, lc *model.Case, lr *model.Referral) error {
		c, r = lc, lr
		caseFrom, referralFrom := c.Status, r.Status
		if err := resp.apply(r, c, user, s.now()); err != nil {
			return err
		}
		if err := s.referrals.UpdateState(ctx, tx, r, referralFrom); err != nil {
			return err
		}
		if err := s.cases.UpdateState(ctx, tx, c, caseFrom); err != nil {
			return err
		}
		return s.events.EmitCase(ctx, tx, resp.eventType, c, r, &actor)
	})
	if err != nil {
		return nil, service.MapError(err, "referral")
	}

	s.activity.Log(ctx, activity.Entry{
		UserID:      &actor,
		Action:      resp.action,
		EntityType:  model.EntityReferral,
		EntityID:    r.ID,
		Description: fmt.Sprintf("Referral %s", r.Status),
		Metadata:    map[string]string{"case_id": c.ID.String(), "case_status": string(c.Status)},
	})

	result := &model.ReferralResult{Referral: r, Case: c}
	if !s.smsEnabled(ctx) {
		return result, nil
	}
	referrer, err := s.users.Get(ctx, r.ReferrerID)
	if err != nil {
		s.log.Warn("failed to load referrer for sms", "referral_id", r.ID.String(), "error", err.Error())
		result.Warning = warnSMSFailed
		return result, nil
	}
	if _, ok := s.sendSMS(ctx, referrer.PhoneNumber, resp.message(r, c)); !ok {
		result.Warning = warnSMSFailed
	}
	return result, nil
}

// Remove withdraws a pending referral. The referee is not told.
func (s *Service) Remove(ctx context.Context, actor, id uuid.UUID) error {
	var c *model.Case
	err := s.lockPair(ctx, id, func(tx *sqlx.Tx, lc *model.Case, r *model.Referral) error {
		c = lc
		from := c.Status
		if err := lifecycle.Remove(r, c, actor, s.now()); err != nil {
			return err
		}
		if err := s.referrals.Delete(ctx, tx, r.ID); err != nil {
			return err
		}
		if err := s.cases.UpdateState(ctx, tx, c, from); err != nil {
			return err
		}
		return s.events.EmitCase(ctx, tx, model.EventReferralRemoved, c, r, &actor)
	})
	if err != nil {
		return service.MapError(err, "referral")
	}

	s.activity.Log(ctx, activity.Entry{
		UserID:      &actor,
		Action:      model.ActionRemoveReferral,
		EntityType:  model.EntityReferral,
		EntityID:    id,
		Description: "Referral removed",
		Metadata:    map[string]string{"case_id": c.ID.String(), "case_status": string(c.Status)},
	})
	return nil
}

// lockPair locks the case before the referral, the same order Create uses,
// so concurrent referral operations on one case cannot deadlock.
func (s *Service) lockPair(ctx context.Context, id uuid.UUID, fn func(tx *sqlx.Tx, c *model.Case, r *model.Referral) error) error {
	ref, err := s.referrals.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.cases.GetForUpdate(ctx, tx, ref.CaseID)
		if err != nil {
			return err
		}
		r, err := s.referrals.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		return fn(tx, c, r)
	})
}

// List returns the referrals the user sent or received, newest first.
func (s *Service) List(ctx context.Context, actor uuid.UUID) ([]*model.Referral, error) {
	user, err := s.users.Get(ctx, actor)
	if err != nil {
		return nil, service.MapError(err, "user")
	}
	refs, err := s.referrals.ListForUser(ctx, actor, phone.Normalize(user.PhoneNumber))
	if err != nil {
		return nil, service.MapError(err, "referrals")
	}
	if refs == nil {
		refs = []*model.Referral{}
	}
	return refs, nil
}

func (s *Service) ListAll(ctx context.Context, p model.Pagination) ([]*model.Referral, error) {
	refs, err := s.referrals.ListAll(ctx, p.Normalize())
	if err != nil {
		return nil, service.MapError(err, "referrals")
	}
	if refs == nil {
		refs = []*model.Referral{}
	}
	return refs, nil
}

func (s *Service) smsEnabled(ctx context.Context) bool {
	return s.settings.Enabled(ctx, model.SettingEnableReferralSMS, true)
}

// sendSMS reports whether the message was delivered and whether the send
// failed. A message that was only logged is neither.
func (s *Service) sendSMS(ctx context.Context, to, msg string) (delivered, ok bool) {
	delivered, err := s.sms.DeliverSMS(ctx, to, msg)
	if err != nil {
		s.log.Warn("referral sms failed", "to", to, "error", err.Error())
		return false, false
	}
	return delivered, true
}
