package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lipanganya/doctime-api/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by conditional updates when the row no longer
	// has the expected status.
	ErrConflict = errors.New("record was modified concurrently")
)

// Methods taking a *sqlx.Tx run on the pool when tx is nil.
type (
	TxManager interface {
		WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	}

	CaseRepository interface {
		Create(ctx context.Context, tx *sqlx.Tx, c *model.Case) error
		Get(ctx context.Context, id uuid.UUID) (*model.Case, error)
		GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Case, error)
		GetWithRelations(ctx context.Context, id uuid.UUID) (*model.Case, error)
		List(ctx context.Context, filter model.CaseFilter) ([]*model.Case, error)
		Update(ctx context.Context, tx *sqlx.Tx, c *model.Case) error
		UpdateState(ctx context.Context, tx *sqlx.Tx, c *model.Case, expected model.CaseStatus) error
		Delete(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error
		ListOverdue(ctx context.Context, now time.Time, limit int) ([]*model.Case, error)
	}

	ReferralRepository interface {
		Create(ctx context.Context, tx *sqlx.Tx, r *model.Referral) error
		Get(ctx context.Context, id uuid.UUID) (*model.Referral, error)
		GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Referral, error)
		GetByCase(ctx context.Context, tx *sqlx.Tx, caseID uuid.UUID) (*model.Referral, error)
		UpdateState(ctx context.Context, tx *sqlx.Tx, r *model.Referral, expected model.ReferralStatus) error
		Delete(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error
		MarkSMSSent(ctx context.Context, id uuid.UUID, sent bool) error
		ListForUser(ctx context.Context, userID uuid.UUID, phone string) ([]*model.Referral, error)
		ListAll(ctx context.Context, p model.Pagination) ([]*model.Referral, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByPhone(ctx context.Context, phone string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		UpdatePin(ctx context.Context, id uuid.UUID, pinHash string) error
		UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
		List(ctx context.Context, p model.Pagination) ([]*model.User, error)
	}

	ActivityRepository interface {
		Create(ctx context.Context, tx *sqlx.Tx, log *model.ActivityLog) error
		List(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityLog, int, error)
		DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	}

	OutboxRepository interface {
		TxManager
		Create(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, tx *sqlx.Tx, limit int) ([]*model.OutboxEvent, error)
		UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	SettingRepository interface {
		Get(ctx context.Context, key string) (*model.Setting, error)
		List(ctx context.Context) ([]*model.Setting, error)
		Upsert(ctx context.Context, setting *model.Setting) error
	}

	ReferenceRepository interface {
		ListFacilities(ctx context.Context) ([]*model.Facility, error)
		FindOrCreateFacility(ctx context.Context, name string) (*model.Facility, error)
		ListPayers(ctx context.Context) ([]*model.Payer, error)
		FindOrCreatePayer(ctx context.Context, name string) (*model.Payer, error)
		ListProcedures(ctx context.Context) ([]*model.Procedure, error)
		FindOrCreateProcedure(ctx context.Context, name string) (*model.Procedure, error)
		ListTeamMembers(ctx context.Context, role *model.UserRole) ([]*model.TeamMember, error)
		CreateTeamMember(ctx context.Context, m *model.TeamMember) error
		ListRoles(ctx context.Context) ([]*model.Role, error)
		AddRoleNames(ctx context.Context, role model.UserRole, names []string) (*model.Role, error)
	}

	ReportRepository interface {
		CaseReport(ctx context.Context, userID uuid.UUID) (*model.CaseReport, error)
		Dashboard(ctx context.Context, activeSince time.Time) (*model.Dashboard, error)
	}

	// OTPStore keeps one-time codes with a TTL. Take removes the code so it
	// can only be used once.
	OTPStore interface {
		Save(ctx context.Context, purpose, phone, code string, ttl time.Duration) error
		Take(ctx context.Context, purpose, phone string) (string, error)
	}
)
