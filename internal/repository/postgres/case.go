package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
)

const caseColumns = `
	id, user_id, date_of_procedure, patient_name, inpatient_number, patient_age,
	facility_id, payer_id, procedure_id, invoice_number, amount, payment_status,
	additional_notes, status, is_referred, referred_to_id, is_auto_completed,
	completed_at, cancelled_at, created_at, updated_at`

type caseRepository struct {
	BaseRepository
}

func NewCaseRepository(base BaseRepository) repository.CaseRepository {
	return &caseRepository{base}
}

func (r *caseRepository) Create(ctx context.Context, tx *sqlx.Tx, c *model.Case) error {
	query := `
		INSERT INTO cases (` + caseColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21
		)
	`
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	q := r.conn(tx)
	_, err := q.ExecContext(ctx, query,
		c.ID,
		c.UserID,
		c.DateOfProcedure,
		c.PatientName,
		c.InpatientNumber,
		c.PatientAge,
		c.FacilityID,
		c.PayerID,
		c.ProcedureID,
		c.InvoiceNumber,
		c.Amount,
		c.PaymentStatus,
		c.AdditionalNotes,
		c.Status,
		c.IsReferred,
		c.ReferredToID,
		c.IsAutoCompleted,
		c.CompletedAt,
		c.CancelledAt,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}

	return r.replaceLinks(ctx, q, c)
}

func (r *caseRepository) Get(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`

	var c model.Case
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		return nil, notFound(err, "get case")
	}
	return &c, nil
}

func (r *caseRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1 FOR UPDATE`

	var c model.Case
	if err := sqlx.GetContext(ctx, r.conn(tx), &c, query, id); err != nil {
		return nil, notFound(err, "lock case")
	}
	return &c, nil
}

func (r *caseRepository) GetWithRelations(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.loadRelations(ctx, []*model.Case{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *caseRepository) List(ctx context.Context, f model.CaseFilter) ([]*model.Case, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.UserID != nil {
		conds = append(conds, "user_id = "+arg(*f.UserID))
	}
	if f.ParticipantID != nil {
		p := arg(*f.ParticipantID)
		conds = append(conds, fmt.Sprintf("(user_id = %s OR referred_to_id = %s)", p, p))
	}
	if len(f.Statuses) > 0 {
		statuses := make(pq.StringArray, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "status = ANY("+arg(statuses)+")")
	}
	if f.IsReferred != nil {
		conds = append(conds, "is_referred = "+arg(*f.IsReferred))
	}
	if f.From != nil {
		conds = append(conds, "date_of_procedure >= "+arg(*f.From))
	}

	query := `SELECT ` + caseColumns + ` FROM cases`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.OrderDesc {
		query += " ORDER BY date_of_procedure DESC"
	} else {
		query += " ORDER BY date_of_procedure ASC"
	}
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	var cases []*model.Case
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	if err := r.loadRelations(ctx, cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// Update writes the descriptive fields. Lifecycle fields go through UpdateState.
func (r *caseRepository) Update(ctx context.Context, tx *sqlx.Tx, c *model.Case) error {
	query := `
		UPDATE cases SET
			date_of_procedure = $1,
			patient_name = $2,
			inpatient_number = $3,
			patient_age = $4,
			facility_id = $5,
			payer_id = $6,
			procedure_id = $7,
			invoice_number = $8,
			amount = $9,
			payment_status = $10,
			additional_notes = $11,
			updated_at = $12
		WHERE id = $13
	`
	c.UpdatedAt = time.Now()

	q := r.conn(tx)
	res, err := q.ExecContext(ctx, query,
		c.DateOfProcedure,
		c.PatientName,
		c.InpatientNumber,
		c.PatientAge,
		c.FacilityID,
		c.PayerID,
		c.ProcedureID,
		c.InvoiceNumber,
		c.Amount,
		c.PaymentStatus,
		c.AdditionalNotes,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	if err := expectOne(res, "update case", repository.ErrNotFound); err != nil {
		return err
	}

	return r.replaceLinks(ctx, q, c)
}

// UpdateState persists the lifecycle fields only if the stored status still
// equals expected.
func (r *caseRepository) UpdateState(ctx context.Context, tx *sqlx.Tx, c *model.Case, expected model.CaseStatus) error {
	query := `
		UPDATE cases SET
			status = $1,
			is_referred = $2,
			referred_to_id = $3,
			is_auto_completed = $4,
			completed_at = $5,
			cancelled_at = $6,
			updated_at = $7
		WHERE id = $8 AND status = $9
	`
	c.UpdatedAt = time.Now()

	res, err := r.conn(tx).ExecContext(ctx, query,
		c.Status,
		c.IsReferred,
		c.ReferredToID,
		c.IsAutoCompleted,
		c.CompletedAt,
		c.CancelledAt,
		c.UpdatedAt,
		c.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update case state: %w", err)
	}
	return expectOne(res, "update case state", repository.ErrConflict)
}

func (r *caseRepository) Delete(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}
	return expectOne(res, "delete case", repository.ErrNotFound)
}

func (r *caseRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*model.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE status = $1 AND date_of_procedure < $2
		ORDER BY date_of_procedure ASC
		LIMIT $3
	`
	var cases []*model.Case
	if err := r.db.SelectContext(ctx, &cases, query, model.CaseStatusUpcoming, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list overdue cases: %w", err)
	}
	return cases, nil
}

// replaceLinks rewrites the procedure and team member join rows. A nil slice
// leaves the existing rows untouched.
func (r *caseRepository) replaceLinks(ctx context.Context, q sqlx.ExecerContext, c *model.Case) error {
	if c.ProcedureIDs != nil {
		if _, err := q.ExecContext(ctx, `DELETE FROM case_procedures WHERE case_id = $1`, c.ID); err != nil {
			return fmt.Errorf("failed to clear case procedures: %w", err)
		}
		if len(c.ProcedureIDs) > 0 {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO case_procedures (case_id, procedure_id)
				 SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`,
				c.ID, uuidArray(c.ProcedureIDs)); err != nil {
				return fmt.Errorf("failed to link case procedures: %w", err)
			}
		}
	}

	if c.TeamIDs != nil {
		if _, err := q.ExecContext(ctx, `DELETE FROM case_team_members WHERE case_id = $1`, c.ID); err != nil {
			return fmt.Errorf("failed to clear case team members: %w", err)
		}
		if len(c.TeamIDs) > 0 {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO case_team_members (case_id, team_member_id)
				 SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`,
				c.ID, uuidArray(c.TeamIDs)); err != nil {
				return fmt.Errorf("failed to link case team members: %w", err)
			}
		}
	}
	return nil
}

type caseProcedureRow struct {
	CaseID uuid.UUID `db:"case_id"`
	model.Procedure
}

type caseTeamMemberRow struct {
	CaseID uuid.UUID `db:"case_id"`
	model.TeamMember
}

// loadRelations fills facility, payer, procedures, team members and referral
// for a page of cases with one query per relation.
func (r *caseRepository) loadRelations(ctx context.Context, cases []*model.Case) error {
	if len(cases) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*model.Case, len(cases))
	ids := make([]uuid.UUID, 0, len(cases))
	var facilityIDs, payerIDs []uuid.UUID
	for _, c := range cases {
		byID[c.ID] = c
		ids = append(ids, c.ID)
		if c.FacilityID != nil {
			facilityIDs = append(facilityIDs, *c.FacilityID)
		}
		if c.PayerID != nil {
			payerIDs = append(payerIDs, *c.PayerID)
		}
	}

	if len(facilityIDs) > 0 {
		var facilities []*model.Facility
		if err := r.db.SelectContext(ctx, &facilities,
			`SELECT id, name, created_at, updated_at FROM facilities WHERE id = ANY($1::uuid[])`,
			uuidArray(facilityIDs)); err != nil {
			return fmt.Errorf("failed to load facilities: %w", err)
		}
		index := make(map[uuid.UUID]*model.Facility, len(facilities))
		for _, f := range facilities {
			index[f.ID] = f
		}
		for _, c := range cases {
			if c.FacilityID != nil {
				c.Facility = index[*c.FacilityID]
			}
		}
	}

	if len(payerIDs) > 0 {
		var payers []*model.Payer
		if err := r.db.SelectContext(ctx, &payers,
			`SELECT id, name, created_at, updated_at FROM payers WHERE id = ANY($1::uuid[])`,
			uuidArray(payerIDs)); err != nil {
			return fmt.Errorf("failed to load payers: %w", err)
		}
		index := make(map[uuid.UUID]*model.Payer, len(payers))
		for _, p := range payers {
			index[p.ID] = p
		}
		for _, c := range cases {
			if c.PayerID != nil {
				c.Payer = index[*c.PayerID]
			}
		}
	}

	var procedures []caseProcedureRow
	if err := r.db.SelectContext(ctx, &procedures, `
		SELECT cp.case_id, p.id, p.name, p.created_at, p.updated_at
		FROM case_procedures cp
		JOIN procedures p ON p.id = cp.procedure_id
		WHERE cp.case_id = ANY($1::uuid[])
		ORDER BY p.name`, uuidArray(ids)); err != nil {
		return fmt.Errorf("failed to load case procedures: %w", err)
	}
	for _, row := range procedures {
		c := byID[row.CaseID]
		c.Procedures = append(c.Procedures, row.Procedure)
	}

	var members []caseTeamMemberRow
	if err := r.db.SelectContext(ctx, &members, `
		SELECT ctm.case_id, tm.id, tm.user_id, tm.name, tm.role, tm.other_role,
			tm.phone_number, tm.is_system_defined, tm.created_at, tm.updated_at
		FROM case_team_members ctm
		JOIN team_members tm ON tm.id = ctm.team_member_id
		WHERE ctm.case_id = ANY($1::uuid[])
		ORDER BY tm.name`, uuidArray(ids)); err != nil {
		return fmt.Errorf("failed to load case team members: %w", err)
	}
	for _, row := range members {
		c := byID[row.CaseID]
		c.TeamMembers = append(c.TeamMembers, row.TeamMember)
	}

	var referrals []*model.Referral
	if err := r.db.SelectContext(ctx, &referrals,
		`SELECT `+referralColumns+` FROM referrals WHERE case_id = ANY($1::uuid[])`,
		uuidArray(ids)); err != nil {
		return fmt.Errorf("failed to load case referrals: %w", err)
	}
	for _, ref := range referrals {
		byID[ref.CaseID].Referral = ref
	}
	return nil
}

func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
