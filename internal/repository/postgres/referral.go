package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
)

const referralColumns = `
	id, case_id, referrer_id, referee_id, referee_phone_number, status,
	accepted_at, declined_at, sms_sent, created_at, updated_at`

type referralRepository struct {
	BaseRepository
}

func NewReferralRepository(base BaseRepository) repository.ReferralRepository {
	return &referralRepository{base}
}

func (r *referralRepository) Create(ctx context.Context, tx *sqlx.Tx, ref *model.Referral) error {
	query := `
		INSERT INTO referrals (` + referralColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if ref.ID == uuid.Nil {
		ref.ID = uuid.New()
	}
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = time.Now()
	}
	ref.UpdatedAt = ref.CreatedAt

	_, err := r.conn(tx).ExecContext(ctx, query,
		ref.ID,
		ref.CaseID,
		ref.ReferrerID,
		ref.RefereeID,
		ref.RefereePhoneNumber,
		ref.Status,
		ref.AcceptedAt,
		ref.DeclinedAt,
		ref.SMSSent,
		ref.CreatedAt,
		ref.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create referral: %w", err)
	}
	return nil
}

func (r *referralRepository) Get(ctx context.Context, id uuid.UUID) (*model.Referral, error) {
	var ref model.Referral
	err := r.db.GetContext(ctx, &ref, `SELECT `+referralColumns+` FROM referrals WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "get referral")
	}
	return &ref, nil
}

func (r *referralRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Referral, error) {
	var ref model.Referral
	err := sqlx.GetContext(ctx, r.conn(tx), &ref,
		`SELECT `+referralColumns+` FROM referrals WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, notFound(err, "lock referral")
	}
	return &ref, nil
}

func (r *referralRepository) GetByCase(ctx context.Context, tx *sqlx.Tx, caseID uuid.UUID) (*model.Referral, error) {
	var ref model.Referral
	err := sqlx.GetContext(ctx, r.conn(tx), &ref,
		`SELECT `+referralColumns+` FROM referrals WHERE case_id = $1`, caseID)
	if err != nil {
		return nil, notFound(err, "get referral by case")
	}
	return &ref, nil
}

// UpdateState persists a status transition only if the stored status still
// equals expected, so two concurrent accepts cannot both win.
func (r *referralRepository) UpdateState(ctx context.Context, tx *sqlx.Tx, ref *model.Referral, expected model.ReferralStatus) error {
	query := `
		UPDATE referrals SET
			status = $1,
			referee_id = $2,
			accepted_at = $3,
			declined_at = $4,
			updated_at = $5
		WHERE id = $6 AND status = $7
	`
	ref.UpdatedAt = time.Now()

	res, err := r.conn(tx).ExecContext(ctx, query,
		ref.Status,
		ref.RefereeID,
		ref.AcceptedAt,
		ref.DeclinedAt,
		ref.UpdatedAt,
		ref.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update referral: %w", err)
	}
	return expectOne(res, "update referral", repository.ErrConflict)
}

func (r *referralRepository) Delete(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM referrals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete referral: %w", err)
	}
	return expectOne(res, "delete referral", repository.ErrNotFound)
}

func (r *referralRepository) MarkSMSSent(ctx context.Context, id uuid.UUID, sent bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE referrals SET sms_sent = $1, updated_at = NOW() WHERE id = $2`, sent, id)
	if err != nil {
		return fmt.Errorf("failed to mark referral sms: %w", err)
	}
	return nil
}

// referralListRow flattens a referral with its case summary and both parties.
type referralListRow struct {
	model.Referral
	CasePatientName  string           `db:"case_patient_name"`
	CaseDate         time.Time        `db:"case_date_of_procedure"`
	CaseStatus       model.CaseStatus `db:"case_status"`
	CaseFacilityName *string          `db:"case_facility_name"`
	ReferrerPhone    string           `db:"referrer_phone_number"`
	ReferrerRole     *model.UserRole  `db:"referrer_role"`
	RefereePhone     *string          `db:"referee_user_phone_number"`
	RefereeRole      *model.UserRole  `db:"referee_role"`
}

func (row *referralListRow) toModel() *model.Referral {
	ref := row.Referral
	ref.Case = &model.CaseSummary{
		ID:              ref.CaseID,
		PatientName:     row.CasePatientName,
		DateOfProcedure: row.CaseDate,
		Status:          row.CaseStatus,
		FacilityName:    row.CaseFacilityName,
	}
	ref.Referrer = &model.UserSummary{
		ID:          ref.ReferrerID,
		PhoneNumber: row.ReferrerPhone,
		Role:        row.ReferrerRole,
	}
	if ref.RefereeID != nil && row.RefereePhone != nil {
		ref.Referee = &model.UserSummary{
			ID:          *ref.RefereeID,
			PhoneNumber: *row.RefereePhone,
			Role:        row.RefereeRole,
		}
	}
	return &ref
}

const referralListQuery = `
	SELECT
		r.id, r.case_id, r.referrer_id, r.referee_id, r.referee_phone_number,
		r.status, r.accepted_at, r.declined_at, r.sms_sent, r.created_at, r.updated_at,
		c.patient_name AS case_patient_name,
		c.date_of_procedure AS case_date_of_procedure,
		c.status AS case_status,
		f.name AS case_facility_name,
		ru.phone_number AS referrer_phone_number,
		ru.role AS referrer_role,
		eu.phone_number AS referee_user_phone_number,
		eu.role AS referee_role
	FROM referrals r
	JOIN cases c ON c.id = r.case_id
	LEFT JOIN facilities f ON f.id = c.facility_id
	JOIN users ru ON ru.id = r.referrer_id
	LEFT JOIN users eu ON eu.id = r.referee_id`

func (r *referralRepository) ListForUser(ctx context.Context, userID uuid.UUID, phone string) ([]*model.Referral, error) {
	query := referralListQuery + `
		WHERE r.referrer_id = $1 OR r.referee_id = $1 OR r.referee_phone_number = $2
		ORDER BY r.created_at DESC
	`
	return r.list(ctx, query, userID, phone)
}

func (r *referralRepository) ListAll(ctx context.Context, p model.Pagination) ([]*model.Referral, error) {
	p = p.Normalize()
	query := referralListQuery + `
		ORDER BY r.created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.list(ctx, query, p.PageSize, p.Offset())
}

func (r *referralRepository) list(ctx context.Context, query string, args ...interface{}) ([]*model.Referral, error) {
	var rows []referralListRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	out := make([]*model.Referral, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}
