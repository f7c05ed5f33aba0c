package report

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
	"github.com/lipanganya/doctime-api/internal/service"
)

// ActiveWindow is how recently a user must have logged in to count as active.
const ActiveWindow = 30 * 24 * time.Hour

type Service struct {
	repo repository.ReportRepository
	now  func() time.Time
}

func NewService(repo repository.ReportRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CaseReport summarises the cases owned by userID.
func (s *Service) CaseReport(ctx context.Context, userID uuid.UUID) (*model.CaseReport, error) {
	report, err := s.repo.CaseReport(ctx, userID)
	if err != nil {
		return nil, service.MapError(err, "report")
	}
	return report, nil
}

// Dashboard builds the admin overview across all users.
func (s *Service) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	d, err := s.repo.Dashboard(ctx, s.now().Add(-ActiveWindow))
	if err != nil {
		return nil, service.MapError(err, "dashboard")
	}
	return d, nil
}
