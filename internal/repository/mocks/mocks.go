// Package mocks provides testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
)

var (
	_ repository.TxManager           = (*TxManager)(nil)
	_ repository.CaseRepository      = (*CaseRepository)(nil)
	_ repository.ReferralRepository  = (*ReferralRepository)(nil)
	_ repository.UserRepository      = (*UserRepository)(nil)
	_ repository.ActivityRepository  = (*ActivityRepository)(nil)
	_ repository.OutboxRepository    = (*OutboxRepository)(nil)
	_ repository.SettingRepository   = (*SettingRepository)(nil)
	_ repository.ReferenceRepository = (*ReferenceRepository)(nil)
	_ repository.ReportRepository    = (*ReportRepository)(nil)
	_ repository.OTPStore            = (*OTPStore)(nil)
)

// TxManager runs fn with a nil transaction. Set Err to make WithTx fail
// without calling fn.
type TxManager struct {
	Err   error
	Count int
}

func (m *TxManager) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	m.Count++
	if m.Err != nil {
		return m.Err
	}
	return fn(nil)
}

type CaseRepository struct{ mock.Mock }

func (m *CaseRepository) Create(ctx context.Context, tx *sqlx.Tx, c *model.Case) error {
	return m.Called(ctx, c).Error(0)
}

func (m *CaseRepository) Get(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	args := m.Called(ctx, id)
	return caseOrNil(args.Get(0)), args.Error(1)
}

func (m *CaseRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Case, error) {
	args := m.Called(ctx, id)
	return caseOrNil(args.Get(0)), args.Error(1)
}

func (m *CaseRepository) GetWithRelations(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	args := m.Called(ctx, id)
	return caseOrNil(args.Get(0)), args.Error(1)
}

func (m *CaseRepository) List(ctx context.Context, filter model.CaseFilter) ([]*model.Case, error) {
	args := m.Called(ctx, filter)
	cases, _ := args.Get(0).([]*model.Case)
	return cases, args.Error(1)
}

func (m *CaseRepository) Update(ctx context.Context, tx *sqlx.Tx, c *model.Case) error {
	return m.Called(ctx, c).Error(0)
}

func (m *CaseRepository) UpdateState(ctx context.Context, tx *sqlx.Tx, c *model.Case, expected model.CaseStatus) error {
	return m.Called(ctx, c, expected).Error(0)
}

func (m *CaseRepository) Delete(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *CaseRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*model.Case, error) {
	args := m.Called(ctx, now, limit)
	cases, _ := args.Get(0).([]*model.Case)
	return cases, args.Error(1)
}

func caseOrNil(v interface{}) *model.Case {
	c, _ := v.(*model.Case)
	return c
}

type ReferralRepository struct{ mock.Mock }

func (m *ReferralRepository) Create(ctx context.Context, tx *sqlx.Tx, r *model.Referral) error {
	return m.Called(ctx, r).Error(0)
}

func (m *ReferralRepository) Get(ctx context.Context, id uuid.UUID) (*model.Referral, error) {
	args := m.Called(ctx, id)
	return referralOrNil(args.Get(0)), args.Error(1)
}

func (m *ReferralRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Referral, error) {
	args := m.Called(ctx, id)
	return referralOrNil(args.Get(0)), args.Error(1)
}

func (m *ReferralRepository) GetByCase(ctx context.Context, tx *sqlx.Tx, caseID uuid.UUID) (*model.Referral, error) {
	args := m.Called(ctx, caseID)
	return referralOrNil(args.Get(0)), args.Error(1)
}

func (m *ReferralRepository) UpdateState(ctx context.Context, tx *sqlx.Tx, r *model.Referral, expected model.ReferralStatus) error {
	return m.Called(ctx, r, expected).Error(0)
}

func (m *ReferralRepository) Delete(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *ReferralRepository) MarkSMSSent(ctx context.Context, id uuid.UUID, sent bool) error {
	return m.Called(ctx, id, sent).Error(0)
}

func (m *ReferralRepository) ListForUser(ctx context.Context, userID uuid.UUID, phone string) ([]*model.Referral, error) {
	args := m.Called(ctx, userID, phone)
	refs, _ := args.Get(0).([]*model.Referral)
	return refs, args.Error(1)
}

func (m *ReferralRepository) ListAll(ctx context.Context, p model.Pagination) ([]*model.Referral, error) {
	args := m.Called(ctx, p)
	refs, _ := args.Get(0).([]*model.Referral)
	return refs, args.Error(1)
}

func referralOrNil(v interface{}) *model.Referral {
	r, _ := v.(*model.Referral)
	return r
}

type UserRepository struct{ mock.Mock }

func (m *UserRepository) Create(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	args := m.Called(ctx, phone)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepository) Update(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepository) UpdatePin(ctx context.Context, id uuid.UUID, pinHash string) error {
	return m.Called(ctx, id, pinHash).Error(0)
}

func (m *UserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *UserRepository) List(ctx context.Context, p model.Pagination) ([]*model.User, error) {
	args := m.Called(ctx, p)
	users, _ := args.Get(0).([]*model.User)
	return users, args.Error(1)
}

type ActivityRepository struct{ mock.Mock }

func (m *ActivityRepository) Create(ctx context.Context, tx *sqlx.Tx, log *model.ActivityLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityLog, int, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]*model.ActivityLog)
	return logs, args.Int(1), args.Error(2)
}

func (m *ActivityRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type OutboxRepository struct {
	TxManager
	mock.Mock
}

func (m *OutboxRepository) Create(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *OutboxRepository) GetPendingEventsWithLock(ctx context.Context, tx *sqlx.Tx, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*model.OutboxEvent)
	return events, args.Error(1)
}

func (m *OutboxRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	return m.Called(ctx, id, status, errorMessage, retryAt).Error(0)
}

func (m *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type SettingRepository struct{ mock.Mock }

func (m *SettingRepository) Get(ctx context.Context, key string) (*model.Setting, error) {
	args := m.Called(ctx, key)
	s, _ := args.Get(0).(*model.Setting)
	return s, args.Error(1)
}

func (m *SettingRepository) List(ctx context.Context) ([]*model.Setting, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).([]*model.Setting)
	return s, args.Error(1)
}

func (m *SettingRepository) Upsert(ctx context.Context, setting *model.Setting) error {
	return m.Called(ctx, setting).Error(0)
}

type ReferenceRepository struct{ mock.Mock }

func (m *ReferenceRepository) ListFacilities(ctx context.Context) ([]*model.Facility, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]*model.Facility)
	return v, args.Error(1)
}

func (m *ReferenceRepository) FindOrCreateFacility(ctx context.Context, name string) (*model.Facility, error) {
	args := m.Called(ctx, name)
	v, _ := args.Get(0).(*model.Facility)
	return v, args.Error(1)
}

func (m *ReferenceRepository) ListPayers(ctx context.Context) ([]*model.Payer, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]*model.Payer)
	return v, args.Error(1)
}

func (m *ReferenceRepository) FindOrCreatePayer(ctx context.Context, name string) (*model.Payer, error) {
	args := m.Called(ctx, name)
	v, _ := args.Get(0).(*model.Payer)
	return v, args.Error(1)
}

func (m *ReferenceRepository) ListProcedures(ctx context.Context) ([]*model.Procedure, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]*model.Procedure)
	return v, args.Error(1)
}

func (m *ReferenceRepository) FindOrCreateProcedure(ctx context.Context, name string) (*model.Procedure, error) {
	args := m.Called(ctx, name)
	v, _ := args.Get(0).(*model.Procedure)
	return v, args.Error(1)
}

func (m *ReferenceRepository) ListTeamMembers(ctx context.Context, role *model.UserRole) ([]*model.TeamMember, error) {
	args := m.Called(ctx, role)
	v, _ := args.Get(0).([]*model.TeamMember)
	return v, args.Error(1)
}

func (m *ReferenceRepository) CreateTeamMember(ctx context.Context, tm *model.TeamMember) error {
	return m.Called(ctx, tm).Error(0)
}

func (m *ReferenceRepository) ListRoles(ctx context.Context) ([]*model.Role, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]*model.Role)
	return v, args.Error(1)
}

func (m *ReferenceRepository) AddRoleNames(ctx context.Context, role model.UserRole, names []string) (*model.Role, error) {
	args := m.Called(ctx, role, names)
	v, _ := args.Get(0).(*model.Role)
	return v, args.Error(1)
}

type ReportRepository struct{ mock.Mock }

func (m *ReportRepository) CaseReport(ctx context.Context, userID uuid.UUID) (*model.CaseReport, error) {
	args := m.Called(ctx, userID)
	v, _ := args.Get(0).(*model.CaseReport)
	return v, args.Error(1)
}

func (m *ReportRepository) Dashboard(ctx context.Context, activeSince time.Time) (*model.Dashboard, error) {
	args := m.Called(ctx, activeSince)
	v, _ := args.Get(0).(*model.Dashboard)
	return v, args.Error(1)
}

type OTPStore struct{ mock.Mock }

func (m *OTPStore) Save(ctx context.Context, purpose, phone, code string, ttl time.Duration) error {
	return m.Called(ctx, purpose, phone, code, ttl).Error(0)
}

func (m *OTPStore) Take(ctx context.Context, purpose, phone string) (string, error) {
	args := m.Called(ctx, purpose, phone)
	return args.String(0), args.Error(1)
}
