// Package reference serves the lookup lists offered when entering a case.
// Lists are cached in process; creating an entry drops the cached list.
package reference

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
	"github.com/lipanganya/doctime-api/internal/service"
	"github.com/lipanganya/doctime-api/pkg/errors"
)

const (
	DefaultTTL = 5 * time.Minute

	keyFacilities  = "facilities"
	keyPayers      = "payers"
	keyProcedures  = "procedures"
	keyRoles       = "roles"
	keyTeamMembers = "team_members:"
)

type Service struct {
	repo  repository.ReferenceRepository
	cache *cache.Cache
}

func NewService(repo repository.ReferenceRepository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		repo:  repo,
		cache: cache.New(ttl, 2*ttl),
	}
}

// cached returns the value under key, loading and storing it on a miss.
func cached[T any](s *Service, key string, load func() (T, error)) (T, error) {
	if v, ok := s.cache.Get(key); ok {
		return v.(T), nil
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	s.cache.SetDefault(key, v)
	return v, nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.BadRequest("name is required", nil)
	}
	return name, nil
}

func (s *Service) ListFacilities(ctx context.Context) ([]*model.Facility, error) {
	v, err := cached(s, keyFacilities, func() ([]*model.Facility, error) {
		items, err := s.repo.ListFacilities(ctx)
		if items == nil {
			items = []*model.Facility{}
		}
		return items, err
	})
	return v, service.MapError(err, "facilities")
}

func (s *Service) CreateFacility(ctx context.Context, name string) (*model.Facility, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	f, err := s.repo.FindOrCreateFacility(ctx, name)
	if err != nil {
		return nil, service.MapError(err, "facility")
	}
	s.cache.Delete(keyFacilities)
	return f, nil
}

func (s *Service) ListPayers(ctx context.Context) ([]*model.Payer, error) {
	v, err := cached(s, keyPayers, func() ([]*model.Payer, error) {
		items, err := s.repo.ListPayers(ctx)
		if items == nil {
			items = []*model.Payer{}
		}
		return items, err
	})
	return v, service.MapError(err, "payers")
}

func (s *Service) CreatePayer(ctx context.Context, name string) (*model.Payer, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.FindOrCreatePayer(ctx, name)
	if err != nil {
		return nil, service.MapError(err, "payer")
	}
	s.cache.Delete(keyPayers)
	return p, nil
}

func (s *Service) ListProcedures(ctx context.Context) ([]*model.Procedure, error) {
	v, err := cached(s, keyProcedures, func() ([]*model.Procedure, error) {
		items, err := s.repo.ListProcedures(ctx)
		if items == nil {
			items = []*model.Procedure{}
		}
		return items, err
	})
	return v, service.MapError(err, "procedures")
}

func (s *Service) CreateProcedure(ctx context.Context, name string) (*model.Procedure, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.FindOrCreateProcedure(ctx, name)
	if err != nil {
		return nil, service.MapError(err, "procedure")
	}
	s.cache.Delete(keyProcedures)
	return p, nil
}

func teamKey(role *model.UserRole) string {
	if role == nil {
		return keyTeamMembers + "all"
	}
	return keyTeamMembers + string(*role)
}

// ListTeamMembers lists team members, optionally only those with role.
func (s *Service) ListTeamMembers(ctx context.Context, role *model.UserRole) ([]*model.TeamMember, error) {
	if role != nil && !role.Valid() {
		return nil, errors.BadRequest("invalid role", nil)
	}
	v, err := cached(s, teamKey(role), func() ([]*model.TeamMember, error) {
		items, err := s.repo.ListTeamMembers(ctx, role)
		if items == nil {
			items = []*model.TeamMember{}
		}
		return items, err
	})
	return v, service.MapError(err, "team members")
}

func (s *Service) CreateTeamMember(ctx context.Context, actor uuid.UUID, req *model.CreateTeamMemberRequest) (*model.TeamMember, error) {
	name, err := cleanName(req.Name)
	if err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, errors.BadRequest("invalid role", nil)
	}

	m := &model.TeamMember{
		UserID:      actor,
		Name:        name,
		Role:        req.Role,
		OtherRole:   req.OtherRole,
		PhoneNumber: req.PhoneNumber,
	}
	if err := s.repo.CreateTeamMember(ctx, m); err != nil {
		return nil, service.MapError(err, "team member")
	}
	s.invalidateTeam()
	return m, nil
}

func (s *Service) invalidateTeam() {
	s.cache.Delete(teamKey(nil))
	for _, role := range model.Roles {
		r := role
		s.cache.Delete(teamKey(&r))
	}
}

func (s *Service) ListRoles(ctx context.Context) ([]*model.Role, error) {
	v, err := cached(s, keyRoles, func() ([]*model.Role, error) {
		items, err := s.repo.ListRoles(ctx)
		if items == nil {
			items = []*model.Role{}
		}
		return items, err
	})
	return v, service.MapError(err, "roles")
}

// AddRoleNames merges curated team member names into a role.
func (s *Service) AddRoleNames(ctx context.Context, role model.UserRole, names []string) (*model.Role, error) {
	if !role.Valid() {
		return nil, errors.BadRequest("invalid role", nil)
	}
	clean := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			clean = append(clean, n)
		}
	}
	if len(clean) == 0 {
		return nil, errors.BadRequest("at least one name is required", nil)
	}

	r, err := s.repo.AddRoleNames(ctx, role, clean)
	if err != nil {
		return nil, service.MapError(err, "role")
	}
	s.cache.Delete(keyRoles)
	return r, nil
}
