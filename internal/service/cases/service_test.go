package cases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
	"github.com/lipanganya/doctime-api/internal/repository/mocks"
	"github.com/lipanganya/doctime-api/internal/service/activity"
	"github.com/lipanganya/doctime-api/pkg/errors"
	"github.com/lipanganya/doctime-api/pkg/logger"
	"github.com/lipanganya/doctime-api/pkg/metrics"
)

var now = time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)

type emitted struct {
	eventType string
	caseID    uuid.UUID
	status    model.CaseStatus
}

type fakeEvents struct{ events []emitted }

func (f *fakeEvents) EmitCase(_ context.Context, _ *sqlx.Tx, eventType string, c *model.Case, _ *model.Referral, _ *uuid.UUID) error {
	f.events = append(f.events, emitted{eventType: eventType, caseID: c.ID, status: c.Status})
	return nil
}

type fakeActivity struct{ entries []activity.Entry }

func (f *fakeActivity) Log(_ context.Context, e activity.Entry) {
	f.entries = append(f.entries, e)
}

type fakePush struct{ bodies []string }

func (f *fakePush) SendPush(_ context.Context, _ *model.User, _, body string, _ map[string]string) error {
	f.bodies = append(f.bodies, body)
	return nil
}

type fixture struct {
	svc       *Service
	tx        *mocks.TxManager
	cases     *mocks.CaseRepository
	referrals *mocks.ReferralRepository
	users     *mocks.UserRepository
	events    *fakeEvents
	activity  *fakeActivity
	push      *fakePush
	metrics   *metrics.Metrics
}

func newFixture() *fixture {
	f := &fixture{
		tx:        &mocks.TxManager{},
		cases:     new(mocks.CaseRepository),
		referrals: new(mocks.ReferralRepository),
		users:     new(mocks.UserRepository),
		events:    &fakeEvents{},
		activity:  &fakeActivity{},
		push:      &fakePush{},
		metrics:   metrics.Nop(),
	}
	f.svc = NewService(f.tx, f.cases, f.referrals, f.users, f.events, f.activity, f.push, logger.Nop(), f.metrics)
	f.svc.now = func() time.Time { return now }
	return f
}

func newCase(owner uuid.UUID, date time.Time, status model.CaseStatus) *model.Case {
	return &model.Case{
		Base:            model.Base{ID: uuid.New()},
		UserID:          owner,
		DateOfProcedure: date,
		PatientName:     "Jane Wanjiru",
		Status:          status,
		PaymentStatus:   model.PaymentStatusPending,
	}
}

func TestCreateBackdatedCaseIsAutoCompleted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.New()

	f.cases.On("Create", ctx, mock.AnythingOfType("*model.Case")).Return(nil)
	f.cases.On("GetWithRelations", ctx, mock.Anything).Return(nil, repository.ErrNotFound)

	c, err := f.svc.Create(ctx, owner, &model.CreateCaseRequest{
		DateOfProcedure: now.AddDate(0, 0, -1),
		PatientName:     "Jane Wanjiru",
	})

	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCompleted, c.Status)
	assert.True(t, c.IsAutoCompleted)
	require.NotNil(t, c.CompletedAt)
	assert.Equal(t, model.PaymentStatusPending, c.PaymentStatus)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, model.EventCaseCreated, f.events.events[0].eventType)
	require.Len(t, f.activity.entries, 1)
	assert.Equal(t, model.ActionCreateCase, f.activity.entries[0].Action)
}

func TestCreateFutureCaseIsUpcoming(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	procedure := uuid.New()

	f.cases.On("Create", ctx, mock.MatchedBy(func(c *model.Case) bool {
		return len(c.ProcedureIDs) == 1 && c.ProcedureIDs[0] == procedure
	})).Return(nil)
	f.cases.On("GetWithRelations", ctx, mock.Anything).Return(nil, repository.ErrNotFound)

	c, err := f.svc.Create(ctx, uuid.New(), &model.CreateCaseRequest{
		DateOfProcedure: now.AddDate(0, 0, 1),
		PatientName:     "John Otieno",
		ProcedureID:     &procedure,
	})

	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusUpcoming, c.Status)
	assert.False(t, c.IsAutoCompleted)
	assert.Nil(t, c.CompletedAt)
}

func TestCreateRejectsNegativeAmount(t *testing.T) {
	f := newFixture()
	amount := -5.0

	_, err := f.svc.Create(context.Background(), uuid.New(), &model.CreateCaseRequest{Amount: &amount})

	assert.True(t, errors.Is(err, errors.ErrBadRequest))
	assert.Zero(t, f.tx.Count)
}

func TestCompleteWritesStateEventAndActivity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.New()
	c := newCase(owner, now.AddDate(0, 0, 1), model.CaseStatusUpcoming)

	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.cases.On("UpdateState", ctx, c, model.CaseStatusUpcoming).Return(nil)

	got, err := f.svc.Complete(ctx, owner, c.ID)

	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCompleted, got.Status)
	assert.Equal(t, now, *got.CompletedAt)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, model.EventCaseCompleted, f.events.events[0].eventType)
	require.Len(t, f.activity.entries, 1)
	assert.Equal(t, model.ActionCompleteCase, f.activity.entries[0].Action)
	f.cases.AssertExpectations(t)
}

func TestCompleteTwiceIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.New()
	stamped := now.Add(-time.Hour)
	c := newCase(owner, now, model.CaseStatusCompleted)
	c.CompletedAt = &stamped

	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)

	got, err := f.svc.Complete(ctx, owner, c.ID)

	require.NoError(t, err)
	assert.Equal(t, stamped, *got.CompletedAt)
	f.cases.AssertNotCalled(t, "UpdateState", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.events.events)
	assert.Empty(t, f.activity.entries)
}

func TestCompleteConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.New()
	c := newCase(owner, now.AddDate(0, 0, 1), model.CaseStatusUpcoming)

	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.cases.On("UpdateState", ctx, c, model.CaseStatusUpcoming).Return(repository.ErrConflict)

	_, err := f.svc.Complete(ctx, owner, c.ID)

	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Empty(t, f.activity.entries)
}

func TestCompleteByRefereeRequiresAcceptance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	referee := uuid.New()
	c := newCase(uuid.New(), now.AddDate(0, 0, 1), model.CaseStatusReferred)
	c.IsReferred = true
	c.ReferredToID = &referee
	pending := &model.Referral{CaseID: c.ID, Status: model.ReferralStatusPending}

	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.referrals.On("GetByCase", ctx, c.ID).Return(pending, nil)

	_, err := f.svc.Complete(ctx, referee, c.ID)

	assert.True(t, errors.Is(err, errors.ErrPreconditionFailed))
	assert.Equal(t, model.CaseStatusReferred, c.Status)
}

func TestCancelByStrangerForbidden(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := newCase(uuid.New(), now.AddDate(0, 0, 1), model.CaseStatusUpcoming)

	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)

	_, err := f.svc.Cancel(ctx, uuid.New(), c.ID)

	assert.True(t, errors.Is(err, errors.ErrForbidden))
}

func TestRestore(t *testing.T) {
	tests := []struct {
		name   string
		date   time.Time
		status model.CaseStatus
	}{
		{"later today is upcoming", now.Add(time.Hour), model.CaseStatusUpcoming},
		{"earlier today is upcoming", now.Add(-time.Hour), model.CaseStatusUpcoming},
		{"yesterday is completed", now.AddDate(0, 0, -1), model.CaseStatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			owner := uuid.New()
			c := newCase(owner, tt.date, model.CaseStatusCancelled)
			c.CancelledAt = &now

			f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
			f.cases.On("UpdateState", ctx, c, model.CaseStatusCancelled).Return(nil)

			got, err := f.svc.Restore(ctx, owner, c.ID)

			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Nil(t, got.CancelledAt)
		})
	}
}

func TestRestoreRequiresCancelled(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.New()
	c := newCase(owner, now, model.CaseStatusUpcoming)

	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)

	_, err := f.svc.Restore(ctx, owner, c.ID)

	assert.True(t, errors.Is(err, errors.ErrInvalidState))
}

func TestDeleteBlockedByAcceptedReferral(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.New()
	c := newCase(owner, now, model.CaseStatusReferred)

	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.referrals.On("GetByCase", ctx, c.ID).Return(&model.Referral{Status: model.ReferralStatusAccepted}, nil)

	err := f.svc.Delete(ctx, owner, c.ID)

	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	f.cases.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteWithoutReferral(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.New()
	c := newCase(owner, now, model.CaseStatusUpcoming)

	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.referrals.On("GetByCase", ctx, c.ID).Return(nil, repository.ErrNotFound)
	f.cases.On("Delete", ctx, c.ID).Return(nil)

	require.NoError(t, f.svc.Delete(ctx, owner, c.ID))
	require.Len(t, f.events.events, 1)
	assert.Equal(t, model.EventCaseDeleted, f.events.events[0].eventType)
	assert.Equal(t, model.ActionDeleteCase, f.activity.entries[0].Action)
}

func TestGetHiddenFromStrangers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := newCase(uuid.New(), now, model.CaseStatusUpcoming)
	f.cases.On("GetWithRelations", ctx, c.ID).Return(c, nil)

	_, err := f.svc.Get(ctx, uuid.New(), c.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	got, err := f.svc.Get(ctx, c.UserID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestGetNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := uuid.New()
	f.cases.On("GetWithRelations", ctx, id).Return(nil, repository.ErrNotFound)

	_, err := f.svc.Get(ctx, uuid.New(), id)

	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestUpdateMovingDateIntoPastCompletes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.New()
	c := newCase(owner, now.AddDate(0, 0, 2), model.CaseStatusUpcoming)
	past := now.AddDate(0, 0, -3)

	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.cases.On("Update", ctx, c).Return(nil)
	f.cases.On("UpdateState", ctx, c, model.CaseStatusUpcoming).Return(nil)
	f.cases.On("GetWithRelations", ctx, c.ID).Return(c, nil)

	got, err := f.svc.Update(ctx, owner, c.ID, &model.UpdateCaseRequest{DateOfProcedure: &past})

	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCompleted, got.Status)
	assert.True(t, got.IsAutoCompleted)
	require.Len(t, f.activity.entries, 1)
	assert.Contains(t, f.activity.entries[0].Metadata, "date_of_procedure")
}

func TestListUpcomingPreview(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	actor := uuid.New()

	f.cases.On("List", ctx, mock.MatchedBy(func(filter model.CaseFilter) bool {
		return filter.Limit == upcomingPreview && *filter.ParticipantID == actor && filter.From.Equal(now)
	})).Return(nil, nil)

	got, err := f.svc.ListUpcoming(ctx, actor, false)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAdminUpdateStatusNotifiesOwner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := &model.User{Base: model.Base{ID: uuid.New()}}
	c := newCase(owner.ID, now, model.CaseStatusCompleted)
	invoiced := model.CaseStatusInvoiced

	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.cases.On("Update", ctx, c).Return(nil)
	f.cases.On("UpdateState", ctx, c, model.CaseStatusCompleted).Return(nil)
	f.users.On("Get", ctx, owner.ID).Return(owner, nil)

	got, err := f.svc.AdminUpdate(ctx, uuid.New(), c.ID, &model.AdminUpdateCaseRequest{Status: &invoiced})

	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusInvoiced, got.Status)
	assert.Equal(t, []string{"Jane Wanjiru is now Invoiced"}, f.push.bodies)
	assert.Equal(t, model.ActionAdminUpdateCase, f.activity.entries[0].Action)
}

func TestAutoCompleteOverdue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := &model.User{Base: model.Base{ID: uuid.New()}}
	overdue := newCase(owner.ID, now.Add(-2*time.Hour), model.CaseStatusUpcoming)
	raced := newCase(owner.ID, now.Add(-3*time.Hour), model.CaseStatusUpcoming)
	stale := newCase(owner.ID, now.Add(-4*time.Hour), model.CaseStatusCompleted)

	f.cases.On("ListOverdue", ctx, now, defaultSweepBatch).Return([]*model.Case{overdue, raced, stale}, nil)
	f.cases.On("GetForUpdate", ctx, overdue.ID).Return(overdue, nil)
	f.cases.On("GetForUpdate", ctx, raced.ID).Return(raced, nil)
	f.cases.On("GetForUpdate", ctx, stale.ID).Return(stale, nil)
	f.cases.On("UpdateState", ctx, overdue, model.CaseStatusUpcoming).Return(nil)
	f.cases.On("UpdateState", ctx, raced, model.CaseStatusUpcoming).Return(repository.ErrConflict)
	f.users.On("Get", ctx, owner.ID).Return(owner, nil)

	n, err := f.svc.AutoCompleteOverdue(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, overdue.IsAutoCompleted)
	assert.Equal(t, model.CaseStatusCompleted, overdue.Status)
	require.Len(t, f.activity.entries, 1)
	assert.Nil(t, f.activity.entries[0].UserID)
	assert.Equal(t, model.ActionAutoCompleteCase, f.activity.entries[0].Action)
	assert.Equal(t, []string{"Jane Wanjiru on 2026-05-14 was marked completed"}, f.push.bodies)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CasesAutoCompleted))
	f.cases.AssertNumberOfCalls(t, "UpdateState", 2)
}

func TestAutoCompleteOverdueReadsUntilShortBatch(t *testing.T) {
	f := newFixture()
	f.svc.SetSweepBatch(2)
	ctx := context.Background()
	owner := &model.User{Base: model.Base{ID: uuid.New()}}
	first := []*model.Case{
		newCase(owner.ID, now.Add(-2*time.Hour), model.CaseStatusUpcoming),
		newCase(owner.ID, now.Add(-3*time.Hour), model.CaseStatusUpcoming),
	}
	last := newCase(owner.ID, now.Add(-4*time.Hour), model.CaseStatusUpcoming)

	f.cases.On("ListOverdue", ctx, now, 2).Return(first, nil).Once()
	f.cases.On("ListOverdue", ctx, now, 2).Return([]*model.Case{last}, nil).Once()
	for _, c := range append(first, last) {
		f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
		f.cases.On("UpdateState", ctx, c, model.CaseStatusUpcoming).Return(nil)
	}
	f.users.On("Get", ctx, owner.ID).Return(owner, nil)

	n, err := f.svc.AutoCompleteOverdue(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	f.cases.AssertNumberOfCalls(t, "ListOverdue", 2)
	assert.Equal(t, model.CaseStatusCompleted, last.Status)
}

func TestAutoCompleteOverdueStopsWithoutProgress(t *testing.T) {
	f := newFixture()
	f.svc.SetSweepBatch(1)
	ctx := context.Background()
	stuck := newCase(uuid.New(), now.Add(-2*time.Hour), model.CaseStatusUpcoming)

	f.cases.On("ListOverdue", ctx, now, 1).Return([]*model.Case{stuck}, nil)
	f.cases.On("GetForUpdate", ctx, stuck.ID).Return(nil, assert.AnError)

	n, err := f.svc.AutoCompleteOverdue(ctx)

	require.NoError(t, err)
	assert.Zero(t, n)
	f.cases.AssertNumberOfCalls(t, "ListOverdue", 1)
}

func TestAdminUpdateLeavingReferredDropsReferral(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := &model.User{Base: model.Base{ID: uuid.New()}}
	referee := uuid.New()
	c := newCase(owner.ID, now.AddDate(0, 0, 2), model.CaseStatusReferred)
	c.IsReferred = true
	c.ReferredToID = &referee
	ref := &model.Referral{Base: model.Base{ID: uuid.New()}, CaseID: c.ID, Status: model.ReferralStatusPending}
	upcoming := model.CaseStatusUpcoming

	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.cases.On("Update", ctx, c).Return(nil)
	f.referrals.On("GetByCase", ctx, c.ID).Return(ref, nil)
	f.referrals.On("Delete", ctx, ref.ID).Return(nil)
	f.cases.On("UpdateState", ctx, c, model.CaseStatusReferred).Return(nil)
	f.users.On("Get", ctx, owner.ID).Return(owner, nil)

	got, err := f.svc.AdminUpdate(ctx, uuid.New(), c.ID, &model.AdminUpdateCaseRequest{Status: &upcoming})

	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusUpcoming, got.Status)
	assert.False(t, got.IsReferred)
	assert.Nil(t, got.ReferredToID)
	f.referrals.AssertCalled(t, "Delete", ctx, ref.ID)
}
