package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
)

type reportRepository struct {
	BaseRepository
}

func NewReportRepository(base BaseRepository) repository.ReportRepository {
	return &reportRepository{base}
}

func (r *reportRepository) CaseReport(ctx context.Context, userID uuid.UUID) (*model.CaseReport, error) {
	report := &model.CaseReport{
		Surgeons:   []model.SurgeonCount{},
		Facilities: []model.FacilityReport{},
	}

	counts := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'Completed' AND NOT is_referred) AS completed_count,
			COUNT(*) FILTER (WHERE status = 'Cancelled') AS cancelled_count,
			COUNT(*) FILTER (WHERE is_referred) AS referred_count,
			COUNT(*) FILTER (WHERE is_auto_completed) AS auto_completed_count,
			COALESCE(SUM(amount) FILTER (WHERE status = 'Completed' AND invoice_number IS NOT NULL), 0) AS invoiced_amount,
			COALESCE(SUM(amount) FILTER (WHERE status = 'Completed' AND invoice_number IS NULL), 0) AS uninvoiced_amount
		FROM cases
		WHERE user_id = $1
	`
	row := r.db.QueryRowxContext(ctx, counts, userID)
	if err := row.Scan(
		&report.CompletedCount,
		&report.CancelledCount,
		&report.ReferredCount,
		&report.AutoCompletedCount,
		&report.InvoicedAmount,
		&report.UninvoicedAmount,
	); err != nil {
		return nil, fmt.Errorf("failed to count cases: %w", err)
	}

	surgeons := `
		SELECT tm.id, tm.name, COUNT(*) AS count
		FROM cases c
		JOIN case_team_members ctm ON ctm.case_id = c.id
		JOIN team_members tm ON tm.id = ctm.team_member_id
		WHERE c.user_id = $1 AND c.status = 'Completed' AND tm.role = 'Surgeon'
		GROUP BY tm.id, tm.name
		ORDER BY count DESC, tm.name ASC
	`
	if err := r.db.SelectContext(ctx, &report.Surgeons, surgeons, userID); err != nil {
		return nil, fmt.Errorf("failed to count surgeons: %w", err)
	}

	facilities := `
		SELECT c.facility_id AS id, COALESCE(f.name, 'Unknown') AS name,
			COUNT(*) AS count, COALESCE(SUM(c.amount), 0) AS amount
		FROM cases c
		LEFT JOIN facilities f ON f.id = c.facility_id
		WHERE c.user_id = $1 AND c.status = 'Completed'
		GROUP BY c.facility_id, f.name
		ORDER BY count DESC
	`
	if err := r.db.SelectContext(ctx, &report.Facilities, facilities, userID); err != nil {
		return nil, fmt.Errorf("failed to group facilities: %w", err)
	}

	report.GeneratedAt = time.Now()
	return report, nil
}

func (r *reportRepository) Dashboard(ctx context.Context, activeSince time.Time) (*model.Dashboard, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM cases WHERE status = 'Completed') AS completed_cases,
			(SELECT COUNT(*) FROM cases WHERE status = 'Cancelled') AS cancelled_cases,
			(SELECT COUNT(*) FROM cases WHERE is_referred) AS referred_cases,
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(*) FROM users WHERE last_login_at >= $1) AS active_users
	`
	var d model.Dashboard
	if err := r.db.GetContext(ctx, &d, query, activeSince); err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}
	return &d, nil
}
