package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
)

const activityColumns = `
	id, user_id, action, entity_type, entity_id, description, metadata,
	ip_address, user_agent, created_at`

type activityRepository struct {
	BaseRepository
}

func NewActivityRepository(base BaseRepository) repository.ActivityRepository {
	return &activityRepository{base}
}

func (r *activityRepository) Create(ctx context.Context, tx *sqlx.Tx, log *model.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (` + activityColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	var metadata interface{}
	if len(log.Metadata) > 0 {
		metadata = []byte(log.Metadata)
	}

	_, err := r.conn(tx).ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.Action,
		log.EntityType,
		log.EntityID,
		log.Description,
		metadata,
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity log: %w", err)
	}
	return nil
}

func (r *activityRepository) List(ctx context.Context, f model.ActivityFilter) ([]*model.ActivityLog, int, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if f.UserID != nil {
		args = append(args, *f.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}
	if f.EntityType != "" {
		args = append(args, f.EntityType)
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if f.EntityID != nil {
		args = append(args, *f.EntityID)
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", len(args)))
	}

	baseQuery := `FROM activity_logs`
	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count activity logs: %w", err)
	}

	p := f.Pagination.Normalize()
	args = append(args, p.PageSize, p.Offset())
	query := "SELECT " + activityColumns + " " + baseQuery +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var logs []*model.ActivityLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return logs, total, nil
}

func (r *activityRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup activity logs: %w", err)
	}
	return res.RowsAffected()
}
