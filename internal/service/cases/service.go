// Package cases persists case lifecycle transitions. Every write runs in one
// transaction together with its outbox event; activity entries and push
// notices follow after commit.
package cases

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
	"github.com/lipanganya/doctime-api/pkg/errors"
	"github.com/lipanganya/doctime-api/pkg/event"
	"github.com/lipanganya/doctime-api/pkg/logger"
	"github.com/lipanganya/doctime-api/pkg/metrics"
)

const (
	upcomingPreview   = 5
	defaultSweepBatch = 500
	dateLayout        = "2006-01-02"
)

// updatableFields are recorded as old/new pairs on UPDATE_CASE entries.
var updatableFields = []string{
	"date_of_procedure", "patient_name", "inpatient_number", "patient_age",
	"facility_id", "payer_id", "invoice_number", "amount", "payment_status",
	"additional_notes", "status",
}

type ActivityLogger interface {
	Log(ctx context.Context, e activity.Entry)
}

type EventEmitter interface {
	EmitCase(ctx context.Context, tx *sqlx.Tx, eventType string, c *model.Case, r *model.Referral, actor *uuid.UUID) error
}

type PushNotifier interface {
	SendPush(ctx context.Context, user *model.User, title, body string, data map[string]string) error
}

type Service struct {
	tx         repository.TxManager
	cases      repository.CaseRepository
	referrals  repository.ReferralRepository
	users      repository.UserRepository
	events     EventEmitter
	activity   ActivityLogger
	push       PushNotifier
	log        *logger.Logger
	metrics    *metrics.Metrics
	sweepBatch int
	now        func() time.Time
}

func NewService(
	tx repository.TxManager,
	cases repository.CaseRepository,
	referrals repository.ReferralRepository,
	users repository.UserRepository,
	events EventEmitter,
	activity ActivityLogger,
	push PushNotifier,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		tx:         tx,
		cases:      cases,
		referrals:  referrals,
		users:      users,
		events:     events,
		activity:   activity,
		push:       push,
		log:        log,
		metrics:    m,
		sweepBatch: defaultSweepBatch,
		now:        time.Now,
	}
}

// SetSweepBatch bounds how many overdue cases one sweep run completes.
func (s *Service) SetSweepBatch(n int) {
	if n > 0 {
		s.sweepBatch = n
	}
}

func (s *Service) Create(ctx context.Context, actor uuid.UUID, req *model.CreateCaseRequest) (*model.Case, error) {
	if req.Amount != nil && *req.Amount < 0 {
		return nil, errors.BadRequest("amount must not be negative", nil)
	}

	c := &model.Case{
		Base:            model.Base{ID: uuid.New()},
		UserID:          actor,
		DateOfProcedure: req.DateOfProcedure,
		PatientName:     req.PatientName,
		InpatientNumber: req.InpatientNumber,
		PatientAge:      req.PatientAge,
		FacilityID:      req.FacilityID,
		PayerID:         req.PayerID,
		ProcedureID:     req.ProcedureID,
		InvoiceNumber:   req.InvoiceNumber,
		Amount:          req.Amount,
		PaymentStatus:   model.PaymentStatusPending,
		AdditionalNotes: req.AdditionalNotes,
		ProcedureIDs:    req.ProcedureIDs,
		TeamIDs:         req.TeamMemberIDs,
	}
	if req.PaymentStatus != nil {
		c.PaymentStatus = *req.PaymentStatus
	}
	if len(c.ProcedureIDs) == 0 && c.ProcedureID != nil {
		c.ProcedureIDs = []uuid.UUID{*c.ProcedureID}
	}
	lifecycle.ApplyInitial(c, s.now())

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.cases.Create(ctx, tx, c); err != nil {
			return err
		}
		return s.events.EmitCase(ctx, tx, model.EventCaseCreated, c, nil, &actor)
	})
	if err != nil {
		return nil, service.MapError(err, "case")
	}

	s.activity.Log(ctx, activity.Entry{
		UserID:      &actor,
		Action:      model.ActionCreateCase,
		EntityType:  model.EntityCase,
		EntityID:    c.ID,
		Description: "Case created for " + c.PatientName,
		Metadata: map[string]interface{}{
			"status":            c.Status,
			"is_auto_completed": c.IsAutoCompleted,
		},
	})

	return s.reload(ctx, c), nil
}

// reload returns the case with its relations, falling back to c when the
// read fails after a successful write.
func (s *Service) reload(ctx context.Context, c *model.Case) *model.Case {
	full, err := s.cases.GetWithRelations(ctx, c.ID)
	if err != nil {
		s.log.Warn("failed to reload case", "case_id", c.ID.String(), "error", err.Error())
		return c
	}
	return full
}

// ListUpcoming returns Upcoming and Referred cases from now on that the user
// owns or was referred. Without all only the next few are returned.
func (s *Service) ListUpcoming(ctx context.Context, actor uuid.UUID, all bool) ([]*model.Case, error) {
	now := s.now()
	filter := model.CaseFilter{
		ParticipantID: &actor,
		Statuses:      []model.CaseStatus{model.CaseStatusUpcoming, model.CaseStatusReferred},
		From:          &now,
	}
	if !all {
		filter.Limit = upcomingPreview
	}
	return s.list(ctx, filter)
}

func (s *Service) ListCompleted(ctx context.Context, actor uuid.UUID) ([]*model.Case, error) {
	notReferred := false
	return s.list(ctx, model.CaseFilter{
		UserID:     &actor,
		Statuses:   []model.CaseStatus{model.CaseStatusCompleted},
		IsReferred: &notReferred,
		OrderDesc:  true,
	})
}

func (s *Service) ListCancelled(ctx context.Context, actor uuid.UUID) ([]*model.Case, error) {
	return s.list(ctx, model.CaseFilter{
		UserID:    &actor,
		Statuses:  []model.CaseStatus{model.CaseStatusCancelled},
		OrderDesc: true,
	})
}

// ListOngoing returns every Upcoming or Referred case from now on, for admins.
func (s *Service) ListOngoing(ctx context.Context) ([]*model.Case, error) {
	now := s.now()
	return s.list(ctx, model.CaseFilter{
		Statuses: []model.CaseStatus{model.CaseStatusUpcoming, model.CaseStatusReferred},
		From:     &now,
	})
}

func (s *Service) list(ctx context.Context, filter model.CaseFilter) ([]*model.Case, error) {
	cases, err := s.cases.List(ctx, filter)
	if err != nil {
		return nil, service.MapError(err, "cases")
	}
	if cases == nil {
		cases = []*model.Case{}
	}
	return cases, nil
}

// Get returns the case with its relations. Only the owner and the referee
// can see it.
func (s *Service) Get(ctx context.Context, actor, id uuid.UUID) (*model.Case, error) {
	c, err := s.cases.GetWithRelations(ctx, id)
	if err != nil {
		return nil, service.MapError(err, "case")
	}
	if !c.IsOwner(actor) && !c.IsReferredTo(actor) {
		return nil, errors.Forbidden("not authorized to view this case")
	}
	return c, nil
}

// referralOf returns the referral attached to c, or nil.
func (s *Service) referralOf(ctx context.Context, tx *sqlx.Tx, c *model.Case) (*model.Referral, error) {
	if !c.IsReferred {
		return nil, nil
	}
	r, err := s.referrals.GetByCase(ctx, tx, c.ID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return r, err
}

func (s *Service) Update(ctx context.Context, actor, id uuid.UUID, req *model.UpdateCaseRequest) (*model.Case, error) {
	if req.Amount != nil && *req.Amount < 0 {
		return nil, errors.BadRequest("amount must not be negative", nil)
	}

	var (
		before  model.Case
		updated *model.Case
	)
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.cases.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		r, err := s.referralOf(ctx, tx, c)
		if err != nil {
			return err
		}
		if err := lifecycle.AuthorizeActor(c, actor, r); err != nil {
			return err
		}

		before = *c
		applyUpdate(c, req)

		if req.DateOfProcedure != nil && before.Status == model.CaseStatusUpcoming {
			lifecycle.ApplyInitial(c, s.now())
		}
		if err := s.cases.Update(ctx, tx, c); err != nil {
			return err
		}
		if c.Status != before.Status {
			if err := s.cases.UpdateState(ctx, tx, c, before.Status); err != nil {
				return err
			}
		}
		updated = c
		return s.events.EmitCase(ctx, tx, model.EventCaseUpdated, c, r, &actor)
	})
	if err != nil {
		return nil, service.MapError(err, "case")
	}

	s.activity.Log(ctx, activity.Entry{
		UserID:      &actor,
		Action:      model.ActionUpdateCase,
		EntityType:  model.EntityCase,
		EntityID:    id,
		Description: "Case updated",
		Metadata:    event.ExtractChanges(&before, updated, updatableFields),
	})

	return s.reload(ctx, updated), nil
}

func applyUpdate(c *model.Case, req *model.UpdateCaseRequest) {
	if req.DateOfProcedure != nil {
		c.DateOfProcedure = *req.DateOfProcedure
	}
	if req.PatientName != nil {
		c.PatientName = *req.PatientName
	}
	if req.InpatientNumber != nil {
		c.InpatientNumber = req.InpatientNumber
	}
	if req.PatientAge != nil {
		c.PatientAge = req.PatientAge
	}
	if req.FacilityID != nil {
		c.FacilityID = req.FacilityID
	}
	if req.PayerID != nil {
		c.PayerID = req.PayerID
	}
	if req.InvoiceNumber != nil {
		c.InvoiceNumber = req.InvoiceNumber
	}
	if req.Amount != nil {
		c.Amount = req.Amount
	}
	if req.PaymentStatus != nil {
		c.PaymentStatus = *req.PaymentStatus
	}
	if req.AdditionalNotes != nil {
		c.AdditionalNotes = req.AdditionalNotes
	}
	if req.ProcedureIDs != nil {
		c.ProcedureIDs = req.ProcedureIDs
	}
	if req.TeamMemberIDs != nil {
		c.TeamIDs = req.TeamMemberIDs
	}
}

// transition is applied under the case row lock. It reports whether the case
// changed; an unchanged case is neither written nor logged.
type transition func(c *model.Case, r *model.Referral, now time.Time) (bool, error)

type transitionSpec struct {
	eventType   string
	action      model.ActivityAction
	description string
	apply       transition
}

func (s *Service) run(ctx context.Context, actor, id uuid.UUID, tr transitionSpec) (*model.Case, error) {
	var (
		result  *model.Case
		from    model.CaseStatus
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.cases.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		r, err := s.referralOf(ctx, tx, c)
		if err != nil {
			return err
		}

		from = c.Status
		changed, err = tr.apply(c, r, s.now())
		if err != nil {
			return err
		}
		result = c
		if !changed {
			return nil
		}
		if err := s.cases.UpdateState(ctx, tx, c, from); err != nil {
			return err
		}
		return s.events.EmitCase(ctx, tx, tr.eventType, c, r, &actor)
	})
	if err != nil {
		return nil, service.MapError(err, "case")
	}

	if changed {
		s.activity.Log(ctx, activity.Entry{
			UserID:      &actor,
			Action:      tr.action,
			EntityType:  model.EntityCase,
			EntityID:    id,
			Description: tr.description,
			Metadata:    map[string]model.CaseStatus{"from": from, "to": result.Status},
		})
	}
	return result, nil
}

// Complete is a no-op on an already completed case.
func (s *Service) Complete(ctx context.Context, actor, id uuid.UUID) (*model.Case, error) {
	return s.run(ctx, actor, id, transitionSpec{
		eventType:   model.EventCaseCompleted,
		action:      model.ActionCompleteCase,
		description: "Case completed",
		apply: func(c *model.Case, r *model.Referral, now time.Time) (bool, error) {
			return lifecycle.Complete(c, actor, r, now)
		},
	})
}

// Cancel is a no-op on an already cancelled case.
func (s *Service) Cancel(ctx context.Context, actor, id uuid.UUID) (*model.Case, error) {
	return s.run(ctx, actor, id, transitionSpec{
		eventType:   model.EventCaseCancelled,
		action:      model.ActionCancelCase,
		description: "Case cancelled",
		apply: func(c *model.Case, r *model.Referral, now time.Time) (bool, error) {
			return lifecycle.Cancel(c, actor, r, now)
		},
	})
}

func (s *Service) Restore(ctx context.Context, actor, id uuid.UUID) (*model.Case, error) {
	return s.run(ctx, actor, id, transitionSpec{
		eventType:   model.EventCaseRestored,
		action:      model.ActionRestoreCase,
		description: "Case restored",
		apply: func(c *model.Case, _ *model.Referral, now time.Time) (bool, error) {
			if err := lifecycle.Restore(c, actor, now); err != nil {
				return false, err
			}
			return true, nil
		},
	})
}

// Delete removes a case owned by actor. A pending or declined referral goes
// with it; an accepted one blocks the deletion.
func (s *Service) Delete(ctx context.Context, actor, id uuid.UUID) error {
	var patient string
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.cases.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !c.IsOwner(actor) {
			return errors.Forbidden("only the case owner can delete a case")
		}

		r, err := s.referrals.GetByCase(ctx, tx, id)
		if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
			return err
		}
		if r != nil && r.Status == model.ReferralStatusAccepted {
			return errors.InvalidState("cannot delete a case with an accepted referral")
		}

		if err := s.cases.Delete(ctx, tx, id); err != nil {
			return err
		}
		patient = c.PatientName
		return s.events.EmitCase(ctx, tx, model.EventCaseDeleted, c, nil, &actor)
	})
	if err != nil {
		return service.MapError(err, "case")
	}

	s.activity.Log(ctx, activity.Entry{
		UserID:      &actor,
		Action:      model.ActionDeleteCase,
		EntityType:  model.EntityCase,
		EntityID:    id,
		Description: "Case deleted for " + patient,
	})
	return nil
}

// AdminUpdate changes status and billing fields on behalf of an administrator.
// The owner is notified by push when the status changes.
func (s *Service) AdminUpdate(ctx context.Context, admin, id uuid.UUID, req *model.AdminUpdateCaseRequest) (*model.Case, error) {
	if req.Amount != nil && *req.Amount < 0 {
		return nil, errors.BadRequest("amount must not be negative", nil)
	}

	var (
		before  model.Case
		updated *model.Case
	)
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.cases.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		before = *c

		if req.PaymentStatus != nil {
			c.PaymentStatus = *req.PaymentStatus
		}
		if req.InvoiceNumber != nil {
			c.InvoiceNumber = req.InvoiceNumber
		}
		if req.Amount != nil {
			c.Amount = req.Amount
		}
		if err := s.cases.Update(ctx, tx, c); err != nil {
			return err
		}

		var dropped *model.Referral
		if req.Status != nil && *req.Status != before.Status {
			if err := lifecycle.AdminSetStatus(c, *req.Status, s.now()); err != nil {
				return err
			}
			if before.Status == model.CaseStatusReferred {
				if dropped, err = s.dropReferral(ctx, tx, c.ID); err != nil {
					return err
				}
			}
			if err := s.cases.UpdateState(ctx, tx, c, before.Status); err != nil {
				return err
			}
		}
		updated = c
		return s.events.EmitCase(ctx, tx, model.EventCaseUpdated, c, dropped, &admin)
	})
	if err != nil {
		return nil, service.MapError(err, "case")
	}

	s.activity.Log(ctx, activity.Entry{
		UserID:      &admin,
		Action:      model.ActionAdminUpdateCase,
		EntityType:  model.EntityCase,
		EntityID:    id,
		Description: "Case updated by admin",
		Metadata:    event.ExtractChanges(&before, updated, updatableFields),
	})

	if updated.Status != before.Status {
		s.notifyOwner(ctx, updated, "Case status updated",
			fmt.Sprintf("%s is now %s", updated.PatientName, updated.Status))
	}
	return updated, nil
}

// dropReferral deletes the referral of a case an administrator moved out of
// Referred, so the owner can refer it again.
func (s *Service) dropReferral(ctx context.Context, tx *sqlx.Tx, caseID uuid.UUID) (*model.Referral, error) {
	r, err := s.referrals.GetByCase(ctx, tx, caseID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.referrals.Delete(ctx, tx, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

// AutoCompleteOverdue completes every Upcoming case whose procedure date has
// passed, reading them in batches of sweepBatch. Cases changed concurrently
// are skipped; running it twice in a row completes nothing the second time.
func (s *Service) AutoCompleteOverdue(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	now := s.now()
	completed := 0
	for {
		overdue, err := s.cases.ListOverdue(ctx, now, s.sweepBatch)
		if err != nil {
			return completed, service.MapError(err, "cases")
		}
		n, err := s.completeBatch(ctx, overdue, now)
		completed += n
		if err != nil {
			return completed, err
		}
		// A short batch is the last one. A batch with no progress would be
		// returned again, so it ends the run too.
		if len(overdue) < s.sweepBatch || n == 0 {
			break
		}
	}

	if completed > 0 {
		s.log.Info("auto-completed overdue cases", "count", completed)
	}
	return completed, nil
}

func (s *Service) completeBatch(ctx context.Context, overdue []*model.Case, now time.Time) (int, error) {
	completed := 0
	for _, candidate := range overdue {
		if err := ctx.Err(); err != nil {
			return completed, err
		}

		c, err := s.autoComplete(ctx, candidate.ID, now)
		if err != nil {
			if stderrors.Is(err, repository.ErrConflict) {
				continue
			}
			s.log.Error(err, "failed to auto-complete case", "case_id", candidate.ID.String())
			continue
		}
		if c == nil {
			continue
		}

		completed++
		s.metrics.CasesAutoCompleted.Inc()
		s.activity.Log(ctx, activity.Entry{
			Action:      model.ActionAutoCompleteCase,
			EntityType:  model.EntityCase,
			EntityID:    c.ID,
			Description: "Case auto-completed after procedure date",
		})
		s.notifyOwner(ctx, c, "Case auto-completed",
			fmt.Sprintf("%s on %s was marked completed", c.PatientName, c.DateOfProcedure.Format(dateLayout)))
	}
	return completed, nil
}

// autoComplete returns nil when the case is no longer overdue.
func (s *Service) autoComplete(ctx context.Context, id uuid.UUID, now time.Time) (*model.Case, error) {
	var done *model.Case
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.cases.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !lifecycle.AutoComplete(c, now) {
			return nil
		}
		if err := s.cases.UpdateState(ctx, tx, c, model.CaseStatusUpcoming); err != nil {
			return err
		}
		done = c
		return s.events.EmitCase(ctx, tx, model.EventCaseAutoCompleted, c, nil, nil)
	})
	return done, err
}

func (s *Service) notifyOwner(ctx context.Context, c *model.Case, title, body string) {
	owner, err := s.users.Get(ctx, c.UserID)
	if err != nil {
		s.log.Warn("failed to load case owner for push", "case_id", c.ID.String(), "error", err.Error())
		return
	}
	if err := s.push.SendPush(ctx, owner, title, body, map[string]string{"case_id": c.ID.String()}); err != nil {
		s.log.Warn("push notification failed", "case_id", c.ID.String(), "error", err.Error())
	}
}
