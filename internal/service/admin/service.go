// Package admin holds the administrator-only reads that have no home in
// another service.
package admin

import (
	"context"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
	"github.com/lipanganya/doctime-api/internal/service"
)

type Service struct {
	users repository.UserRepository
}

func NewService(users repository.UserRepository) *Service {
	return &Service{users: users}
}

func (s *Service) ListUsers(ctx context.Context, p model.Pagination) ([]*model.User, error) {
	users, err := s.users.List(ctx, p.Normalize())
	if err != nil {
		return nil, service.MapError(err, "users")
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}
