package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
)

type referenceRepository struct {
	BaseRepository
}

func NewReferenceRepository(base BaseRepository) repository.ReferenceRepository {
	return &referenceRepository{base}
}

func (r *referenceRepository) listNamed(ctx context.Context, table string, dest interface{}) error {
	query := `SELECT id, name, created_at, updated_at FROM ` + table + ` ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, dest, query); err != nil {
		return fmt.Errorf("failed to list %s: %w", table, err)
	}
	return nil
}

// findOrCreateNamed matches names case-insensitively. The lower(name) unique
// index makes concurrent creates of the same name collapse to one row.
func (r *referenceRepository) findOrCreateNamed(ctx context.Context, table, name string, dest interface{}) error {
	name = strings.TrimSpace(name)
	insert := `
		INSERT INTO ` + table + ` (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, uuid.New(), name, time.Now()); err != nil {
		return fmt.Errorf("failed to create %s entry: %w", table, err)
	}

	query := `SELECT id, name, created_at, updated_at FROM ` + table + ` WHERE lower(name) = lower($1)`
	if err := r.db.GetContext(ctx, dest, query, name); err != nil {
		return notFound(err, "get "+table+" entry")
	}
	return nil
}

func (r *referenceRepository) ListFacilities(ctx context.Context) ([]*model.Facility, error) {
	var out []*model.Facility
	if err := r.listNamed(ctx, "facilities", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *referenceRepository) FindOrCreateFacility(ctx context.Context, name string) (*model.Facility, error) {
	var f model.Facility
	if err := r.findOrCreateNamed(ctx, "facilities", name, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *referenceRepository) ListPayers(ctx context.Context) ([]*model.Payer, error) {
	var out []*model.Payer
	if err := r.listNamed(ctx, "payers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *referenceRepository) FindOrCreatePayer(ctx context.Context, name string) (*model.Payer, error) {
	var p model.Payer
	if err := r.findOrCreateNamed(ctx, "payers", name, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *referenceRepository) ListProcedures(ctx context.Context) ([]*model.Procedure, error) {
	var out []*model.Procedure
	if err := r.listNamed(ctx, "procedures", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *referenceRepository) FindOrCreateProcedure(ctx context.Context, name string) (*model.Procedure, error) {
	var p model.Procedure
	if err := r.findOrCreateNamed(ctx, "procedures", name, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *referenceRepository) ListTeamMembers(ctx context.Context, role *model.UserRole) ([]*model.TeamMember, error) {
	query := `
		SELECT id, user_id, name, role, other_role, phone_number, is_system_defined,
			created_at, updated_at
		FROM team_members`
	var args []interface{}
	if role != nil {
		query += ` WHERE role = $1`
		args = append(args, *role)
	}
	query += ` ORDER BY name ASC`

	var members []*model.TeamMember
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	return members, nil
}

func (r *referenceRepository) CreateTeamMember(ctx context.Context, m *model.TeamMember) error {
	query := `
		INSERT INTO team_members (
			id, user_id, name, role, other_role, phone_number, is_system_defined,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.UserID,
		m.Name,
		m.Role,
		m.OtherRole,
		m.PhoneNumber,
		m.IsSystemDefined,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create team member: %w", err)
	}
	return nil
}

func (r *referenceRepository) ListRoles(ctx context.Context) ([]*model.Role, error) {
	var roles []*model.Role
	if err := r.db.SelectContext(ctx, &roles,
		`SELECT name, team_member_names FROM roles ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// AddRoleNames merges names into the role's curated list, creating the role
// when it does not exist yet.
func (r *referenceRepository) AddRoleNames(ctx context.Context, role model.UserRole, names []string) (*model.Role, error) {
	query := `
		INSERT INTO roles (name, team_member_names)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET team_member_names = ARRAY(
			SELECT DISTINCT unnest(roles.team_member_names || EXCLUDED.team_member_names)
			ORDER BY 1
		)
		RETURNING name, team_member_names
	`
	var out model.Role
	if err := r.db.GetContext(ctx, &out, query, role, pq.StringArray(names)); err != nil {
		return nil, fmt.Errorf("failed to update role names: %w", err)
	}
	return &out, nil
}
