// Package settings reads and updates runtime feature switches.
package settings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
	"github.com/lipanganya/doctime-api/internal/service"
	"github.com/lipanganya/doctime-api/internal/service/activity"
	"github.com/lipanganya/doctime-api/pkg/logger"
)

type ActivityLogger interface {
	Log(ctx context.Context, e activity.Entry)
}

type Service struct {
	repo     repository.SettingRepository
	activity ActivityLogger
	log      *logger.Logger
}

func NewService(repo repository.SettingRepository, activity ActivityLogger, log *logger.Logger) *Service {
	return &Service{repo: repo, activity: activity, log: log}
}

func (s *Service) List(ctx context.Context) ([]*model.Setting, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, service.MapError(err, "settings")
	}
	return settings, nil
}

func (s *Service) Get(ctx context.Context, key string) (*model.Setting, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, service.MapError(err, "setting")
	}
	return setting, nil
}

// Enabled reports whether key is set to "true". A missing setting yields
// fallback; a read error is logged and also yields fallback.
func (s *Service) Enabled(ctx context.Context, key string, fallback bool) bool {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("failed to read setting", "key", key, "error", err.Error())
		}
		return fallback
	}
	return strings.EqualFold(strings.TrimSpace(setting.Value), "true")
}

func (s *Service) Update(ctx context.Context, actor uuid.UUID, key string, req *model.UpdateSettingRequest) (*model.Setting, error) {
	setting := &model.Setting{
		Key:         key,
		Value:       req.Value,
		Description: req.Description,
		UpdatedAt:   time.Now(),
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, service.MapError(err, "setting")
	}

	s.activity.Log(ctx, activity.Entry{
		UserID:      &actor,
		Action:      model.ActionUpdateSetting,
		EntityType:  model.EntitySetting,
		Description: "Setting " + key + " set to " + req.Value,
		Metadata:    map[string]string{"key": key, "value": req.Value},
	})
	return setting, nil
}
