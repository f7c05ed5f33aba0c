// Package activity records who did what to which case or referral.
package activity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
	"github.com/lipanganya/doctime-api/pkg/logger"
)

// Entry is one activity record. UserID is nil for system actions such as the
// auto-completion sweep.
type Entry struct {
	UserID      *uuid.UUID
	Action      model.ActivityAction
	EntityType  string
	EntityID    uuid.UUID
	Description string
	Metadata    interface{}
}

type clientKey struct{}

type clientInfo struct {
	ip        string
	userAgent string
}

// WithClient stores the caller's address and user agent for later entries.
func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, clientInfo{ip: ip, userAgent: userAgent})
}

func clientFrom(ctx context.Context) (string, string) {
	if gc, ok := ctx.(*gin.Context); ok && gc.Request != nil {
		return gc.ClientIP(), gc.Request.UserAgent()
	}
	if info, ok := ctx.Value(clientKey{}).(clientInfo); ok {
		return info.ip, info.userAgent
	}
	return "", ""
}

type Service struct {
	repo repository.ActivityRepository
	log  *logger.Logger
	now  func() time.Time
}

func NewService(repo repository.ActivityRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// Log writes e. Failures are logged and swallowed; an activity entry never
// fails the operation it describes.
func (s *Service) Log(ctx context.Context, e Entry) {
	entry := &model.ActivityLog{
		ID:          uuid.New(),
		UserID:      e.UserID,
		Action:      e.Action,
		EntityType:  e.EntityType,
		Description: e.Description,
		CreatedAt:   s.now(),
	}
	if e.EntityID != uuid.Nil {
		id := e.EntityID
		entry.EntityID = &id
	}
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			s.log.Warn("failed to encode activity metadata", "action", string(e.Action), "error", err.Error())
		} else {
			entry.Metadata = raw
		}
	}
	if ip, ua := clientFrom(ctx); ip != "" || ua != "" {
		if ip != "" {
			entry.IPAddress = &ip
		}
		if ua != "" {
			entry.UserAgent = &ua
		}
	}

	if err := s.repo.Create(ctx, nil, entry); err != nil {
		s.log.Error(err, "failed to write activity log",
			"action", string(e.Action),
			"entity_type", e.EntityType,
			"entity_id", e.EntityID.String())
	}
}

func (s *Service) List(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityLog, int, error) {
	filter.Pagination = filter.Pagination.Normalize()
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// Cleanup deletes entries older than retention.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteBefore(ctx, s.now().Add(-retention))
}
