package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
)

const userColumns = `
	id, phone_number, pin_hash, role, other_role, prefix, preferred_name,
	is_admin, biometric_enabled, is_verified, last_login_at, push_token,
	created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (` + userColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.PhoneNumber,
		user.PinHash,
		user.Role,
		user.OtherRole,
		user.Prefix,
		user.PreferredName,
		user.IsAdmin,
		user.BiometricEnabled,
		user.IsVerified,
		user.LastLoginAt,
		user.PushToken,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "get user")
	}
	return &user, nil
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	var user model.User
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone); err != nil {
		return nil, notFound(err, "get user by phone")
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users SET
			role = $1,
			other_role = $2,
			prefix = $3,
			preferred_name = $4,
			biometric_enabled = $5,
			push_token = $6,
			updated_at = $7
		WHERE id = $8
	`
	user.UpdatedAt = time.Now()

	res, err := r.db.ExecContext(ctx, query,
		user.Role,
		user.OtherRole,
		user.Prefix,
		user.PreferredName,
		user.BiometricEnabled,
		user.PushToken,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectOne(res, "update user", repository.ErrNotFound)
}

func (r *userRepository) UpdatePin(ctx context.Context, id uuid.UUID, pinHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET pin_hash = $1, updated_at = NOW() WHERE id = $2`, pinHash, id)
	if err != nil {
		return fmt.Errorf("failed to update pin: %w", err)
	}
	return expectOne(res, "update pin", repository.ErrNotFound)
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $1, updated_at = NOW() WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, p model.Pagination) ([]*model.User, error) {
	p = p.Normalize()
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, p.PageSize, p.Offset()); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
