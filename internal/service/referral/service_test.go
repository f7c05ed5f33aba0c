package referral

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
	"github.com/lipanganya/doctime-api/internal/repository/mocks"
	"github.com/lipanganya/doctime-api/internal/service/activity"
	apperrors "github.com/lipanganya/doctime-api/pkg/errors"
	"github.com/lipanganya/doctime-api/pkg/logger"
)

var now = time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)

const appLink = "https://expo.dev/@lipanganya/doctime"

type fakeEvents struct{ types []string }

func (f *fakeEvents) EmitCase(_ context.Context, _ *sqlx.Tx, eventType string, _ *model.Case, _ *model.Referral, _ *uuid.UUID) error {
	f.types = append(f.types, eventType)
	return nil
}

type fakeActivity struct{ actions []model.ActivityAction }

func (f *fakeActivity) Log(_ context.Context, e activity.Entry) {
	f.actions = append(f.actions, e.Action)
}

type sentSMS struct{ to, msg string }

type fakeSMS struct {
	sent    []sentSMS
	err     error
	logOnly bool
}

func (f *fakeSMS) DeliverSMS(_ context.Context, to, msg string) (bool, error) {
	f.sent = append(f.sent, sentSMS{to, msg})
	if f.err != nil {
		return false, f.err
	}
	return !f.logOnly, nil
}

type fakeSettings struct{ referralSMS bool }

func (f fakeSettings) Enabled(_ context.Context, _ string, _ bool) bool {
	return f.referralSMS
}

type fixture struct {
	svc       *Service
	cases     *mocks.CaseRepository
	referrals *mocks.ReferralRepository
	users     *mocks.UserRepository
	events    *fakeEvents
	activity  *fakeActivity
	sms       *fakeSMS
}

func newFixture(smsEnabled bool) *fixture {
	f := &fixture{
		cases:     new(mocks.CaseRepository),
		referrals: new(mocks.ReferralRepository),
		users:     new(mocks.UserRepository),
		events:    &fakeEvents{},
		activity:  &fakeActivity{},
		sms:       &fakeSMS{},
	}
	f.svc = NewService(&mocks.TxManager{}, f.cases, f.referrals, f.users, f.events, f.activity, f.sms,
		fakeSettings{referralSMS: smsEnabled}, appLink, logger.Nop())
	f.svc.now = func() time.Time { return now }
	return f
}

func newUser(phone string) *model.User {
	return &model.User{Base: model.Base{ID: uuid.New()}, PhoneNumber: phone}
}

func upcomingCase(owner uuid.UUID) *model.Case {
	return &model.Case{
		Base:            model.Base{ID: uuid.New()},
		UserID:          owner,
		DateOfProcedure: time.Date(2026, 5, 20, 8, 0, 0, 0, time.UTC),
		PatientName:     "Jane Wanjiru",
		Status:          model.CaseStatusUpcoming,
	}
}

func TestCreateReferralToRegisteredUser(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	referrer := newUser("254700000001")
	referee := newUser("254712345678")
	c := upcomingCase(referrer.ID)

	f.users.On("Get", ctx, referrer.ID).Return(referrer, nil)
	f.users.On("GetByPhone", ctx, "254712345678").Return(referee, nil)
	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.referrals.On("GetByCase", ctx, c.ID).Return(nil, repository.ErrNotFound)
	f.referrals.On("Create", ctx, mock.AnythingOfType("*model.Referral")).Return(nil)
	f.cases.On("UpdateState", ctx, c, model.CaseStatusUpcoming).Return(nil)
	f.referrals.On("MarkSMSSent", ctx, mock.Anything, true).Return(nil)

	res, err := f.svc.Create(ctx, referrer.ID, &model.CreateReferralRequest{CaseID: c.ID, RefereePhoneNumber: "0712 345 678"})

	require.NoError(t, err)
	assert.Empty(t, res.Warning)
	assert.Equal(t, model.ReferralStatusPending, res.Referral.Status)
	assert.Equal(t, referee.ID, *res.Referral.RefereeID)
	assert.True(t, res.Referral.SMSSent)
	assert.Equal(t, model.CaseStatusReferred, c.Status)
	assert.True(t, c.IsReferred)
	assert.Equal(t, []string{model.EventReferralCreated}, f.events.types)
	assert.Equal(t, []model.ActivityAction{model.ActionReferCase}, f.activity.actions)

	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, "254712345678", f.sms.sent[0].to)
	assert.Equal(t,
		"You have been referred a case by 254700000001. Patient: Jane Wanjiru, Date: 2026-05-20, Facility: N/A. Install app: "+appLink,
		f.sms.sent[0].msg)
}

func TestCreateReferralSMSFailureIsWarning(t *testing.T) {
	f := newFixture(true)
	f.sms.err = errors.New("gateway down")
	ctx := context.Background()
	referrer := newUser("254700000001")
	c := upcomingCase(referrer.ID)

	f.users.On("Get", ctx, referrer.ID).Return(referrer, nil)
	f.users.On("GetByPhone", ctx, "254712345678").Return(nil, repository.ErrNotFound)
	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.referrals.On("GetByCase", ctx, c.ID).Return(nil, repository.ErrNotFound)
	f.referrals.On("Create", ctx, mock.Anything).Return(nil)
	f.cases.On("UpdateState", ctx, c, model.CaseStatusUpcoming).Return(nil)
	f.referrals.On("MarkSMSSent", ctx, mock.Anything, false).Return(nil)

	res, err := f.svc.Create(ctx, referrer.ID, &model.CreateReferralRequest{CaseID: c.ID, RefereePhoneNumber: "+254712345678"})

	require.NoError(t, err)
	assert.Equal(t, warnSMSFailed, res.Warning)
	assert.Nil(t, res.Referral.RefereeID)
	assert.False(t, res.Referral.SMSSent)
	assert.Equal(t, model.CaseStatusReferred, c.Status)
}

func TestCreateReferralLoggedSMSIsNotMarkedSent(t *testing.T) {
	f := newFixture(true)
	f.sms.logOnly = true
	ctx := context.Background()
	referrer := newUser("254700000001")
	c := upcomingCase(referrer.ID)

	f.users.On("Get", ctx, referrer.ID).Return(referrer, nil)
	f.users.On("GetByPhone", ctx, "254712345678").Return(nil, repository.ErrNotFound)
	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.referrals.On("GetByCase", ctx, c.ID).Return(nil, repository.ErrNotFound)
	f.referrals.On("Create", ctx, mock.Anything).Return(nil)
	f.cases.On("UpdateState", ctx, c, model.CaseStatusUpcoming).Return(nil)
	f.referrals.On("MarkSMSSent", ctx, mock.Anything, false).Return(nil)

	res, err := f.svc.Create(ctx, referrer.ID, &model.CreateReferralRequest{CaseID: c.ID, RefereePhoneNumber: "0712345678"})

	require.NoError(t, err)
	assert.Empty(t, res.Warning)
	assert.False(t, res.Referral.SMSSent)
	f.referrals.AssertCalled(t, "MarkSMSSent", ctx, res.Referral.ID, false)
}

func TestCreateReferralSkipsSMSWhenDisabled(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	referrer := newUser("254700000001")
	c := upcomingCase(referrer.ID)

	f.users.On("Get", ctx, referrer.ID).Return(referrer, nil)
	f.users.On("GetByPhone", ctx, mock.Anything).Return(nil, repository.ErrNotFound)
	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.referrals.On("GetByCase", ctx, c.ID).Return(nil, repository.ErrNotFound)
	f.referrals.On("Create", ctx, mock.Anything).Return(nil)
	f.cases.On("UpdateState", ctx, c, model.CaseStatusUpcoming).Return(nil)

	_, err := f.svc.Create(ctx, referrer.ID, &model.CreateReferralRequest{CaseID: c.ID, RefereePhoneNumber: "0712345678"})

	require.NoError(t, err)
	assert.Empty(t, f.sms.sent)
	f.referrals.AssertNotCalled(t, "MarkSMSSent", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateReplacesDeclinedReferral(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	referrer := newUser("254700000001")
	c := upcomingCase(referrer.ID)
	declined := &model.Referral{Base: model.Base{ID: uuid.New()}, CaseID: c.ID, Status: model.ReferralStatusDeclined}

	f.users.On("Get", ctx, referrer.ID).Return(referrer, nil)
	f.users.On("GetByPhone", ctx, mock.Anything).Return(nil, repository.ErrNotFound)
	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.referrals.On("GetByCase", ctx, c.ID).Return(declined, nil)
	f.referrals.On("Delete", ctx, declined.ID).Return(nil)
	f.referrals.On("Create", ctx, mock.Anything).Return(nil)
	f.cases.On("UpdateState", ctx, c, model.CaseStatusUpcoming).Return(nil)

	_, err := f.svc.Create(ctx, referrer.ID, &model.CreateReferralRequest{CaseID: c.ID, RefereePhoneNumber: "0712345678"})

	require.NoError(t, err)
	f.referrals.AssertCalled(t, "Delete", ctx, declined.ID)
}

func TestCreateRejectsNonOwner(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	stranger := newUser("254700000009")
	c := upcomingCase(uuid.New())

	f.users.On("Get", ctx, stranger.ID).Return(stranger, nil)
	f.users.On("GetByPhone", ctx, mock.Anything).Return(nil, repository.ErrNotFound)
	f.cases.On("GetForUpdate", ctx, c.ID).Return(c, nil)
	f.referrals.On("GetByCase", ctx, c.ID).Return(nil, repository.ErrNotFound)

	_, err := f.svc.Create(ctx, stranger.ID, &model.CreateReferralRequest{CaseID: c.ID, RefereePhoneNumber: "0712345678"})

	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	assert.Equal(t, model.CaseStatusUpcoming, c.Status)
	f.referrals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

type pair struct {
	referrer *model.User
	referee  *model.User
	c        *model.Case
	r        *model.Referral
}

func referredPair() pair {
	referrer := newUser("254700000001")
	referee := newUser("254712345678")
	c := upcomingCase(referrer.ID)
	c.Status = model.CaseStatusReferred
	c.IsReferred = true
	r := &model.Referral{
		Base:               model.Base{ID: uuid.New()},
		CaseID:             c.ID,
		ReferrerID:         referrer.ID,
		RefereePhoneNumber: referee.PhoneNumber,
		Status:             model.ReferralStatusPending,
	}
	return pair{referrer: referrer, referee: referee, c: c, r: r}
}

func (f *fixture) expectLocks(ctx context.Context, p pair) {
	f.referrals.On("Get", ctx, p.r.ID).Return(p.r, nil)
	f.cases.On("GetForUpdate", ctx, p.c.ID).Return(p.c, nil)
	f.referrals.On("GetForUpdate", ctx, p.r.ID).Return(p.r, nil)
}

func TestAcceptBindsRefereeAndNotifiesReferrer(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	p := referredPair()

	f.users.On("Get", ctx, p.referee.ID).Return(p.referee, nil)
	f.users.On("Get", ctx, p.referrer.ID).Return(p.referrer, nil)
	f.expectLocks(ctx, p)
	f.referrals.On("UpdateState", ctx, p.r, model.ReferralStatusPending).Return(nil)
	f.cases.On("UpdateState", ctx, p.c, model.CaseStatusReferred).Return(nil)

	res, err := f.svc.Accept(ctx, p.referee.ID, p.r.ID)

	require.NoError(t, err)
	assert.Equal(t, model.ReferralStatusAccepted, res.Referral.Status)
	assert.Equal(t, p.referee.ID, *res.Referral.RefereeID)
	assert.Equal(t, p.referee.ID, *p.c.ReferredToID)
	assert.Equal(t, []string{model.EventReferralAccepted}, f.events.types)
	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, sentSMS{"254700000001", "Your referral has been accepted by 254712345678. Case: Jane Wanjiru"}, f.sms.sent[0])
}

func TestAcceptConcurrentLoserGetsConflict(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	p := referredPair()

	f.users.On("Get", ctx, p.referee.ID).Return(p.referee, nil)
	f.expectLocks(ctx, p)
	f.referrals.On("UpdateState", ctx, p.r, model.ReferralStatusPending).Return(repository.ErrConflict)

	_, err := f.svc.Accept(ctx, p.referee.ID, p.r.ID)

	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Empty(t, f.sms.sent)
	assert.Empty(t, f.activity.actions)
}

func TestAcceptByWrongUserForbidden(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	p := referredPair()
	other := newUser("254799999999")

	f.users.On("Get", ctx, other.ID).Return(other, nil)
	f.expectLocks(ctx, p)

	_, err := f.svc.Accept(ctx, other.ID, p.r.ID)

	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	assert.Equal(t, model.ReferralStatusPending, p.r.Status)
}

func TestDeclineRevertsCase(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	p := referredPair()

	f.users.On("Get", ctx, p.referee.ID).Return(p.referee, nil)
	f.users.On("Get", ctx, p.referrer.ID).Return(p.referrer, nil)
	f.expectLocks(ctx, p)
	f.referrals.On("UpdateState", ctx, p.r, model.ReferralStatusPending).Return(nil)
	f.cases.On("UpdateState", ctx, p.c, model.CaseStatusReferred).Return(nil)

	res, err := f.svc.Decline(ctx, p.referee.ID, p.r.ID)

	require.NoError(t, err)
	assert.Equal(t, model.ReferralStatusDeclined, res.Referral.Status)
	assert.Equal(t, model.CaseStatusUpcoming, p.c.Status)
	assert.False(t, p.c.IsReferred)
	assert.Nil(t, p.c.ReferredToID)
	assert.Equal(t,
		"Your referral has been declined by 254712345678. Case: Jane Wanjiru has been returned to your queue.",
		f.sms.sent[0].msg)
}

func TestRemoveDeletesPendingReferralSilently(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	p := referredPair()

	f.expectLocks(ctx, p)
	f.referrals.On("Delete", ctx, p.r.ID).Return(nil)
	f.cases.On("UpdateState", ctx, p.c, model.CaseStatusReferred).Return(nil)

	require.NoError(t, f.svc.Remove(ctx, p.referrer.ID, p.r.ID))

	assert.Equal(t, model.CaseStatusUpcoming, p.c.Status)
	assert.Empty(t, f.sms.sent)
	assert.Equal(t, []string{model.EventReferralRemoved}, f.events.types)
	assert.Equal(t, []model.ActivityAction{model.ActionRemoveReferral}, f.activity.actions)
}

func TestRemoveAcceptedReferralRejected(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	p := referredPair()
	p.r.Status = model.ReferralStatusAccepted

	f.expectLocks(ctx, p)

	err := f.svc.Remove(ctx, p.referrer.ID, p.r.ID)

	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	f.referrals.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestListUsesNormalizedPhone(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	user := newUser("0712345678")

	f.users.On("Get", ctx, user.ID).Return(user, nil)
	f.referrals.On("ListForUser", ctx, user.ID, "254712345678").Return(nil, nil)

	refs, err := f.svc.List(ctx, user.ID)

	require.NoError(t, err)
	assert.NotNil(t, refs)
}
