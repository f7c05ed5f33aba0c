package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository/mocks"
)

func TestEmitCaseWritesPayload(t *testing.T) {
	repo := new(mocks.OutboxRepository)
	svc := NewService(repo)
	now := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	c := &model.Case{Base: model.Base{ID: uuid.New()}, Status: model.CaseStatusReferred}
	r := &model.Referral{Base: model.Base{ID: uuid.New()}, Status: model.ReferralStatusPending}
	actor := uuid.New()

	var got *model.OutboxEvent
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.OutboxEvent")).
		Run(func(args mock.Arguments) { got = args.Get(1).(*model.OutboxEvent) }).
		Return(nil)

	require.NoError(t, svc.EmitCase(context.Background(), nil, model.EventReferralCreated, c, r, &actor))

	require.NotNil(t, got)
	assert.Equal(t, model.EventReferralCreated, got.EventType)

	var payload model.CaseEvent
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, c.ID, payload.CaseID)
	assert.Equal(t, r.ID, *payload.ReferralID)
	assert.Equal(t, model.ReferralStatusPending, payload.Referral)
	assert.Equal(t, model.CaseStatusReferred, payload.Status)
	assert.True(t, now.Equal(payload.OccurredAt))
}

func TestEmitWrapsRepositoryError(t *testing.T) {
	repo := new(mocks.OutboxRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	err := NewService(repo).Emit(context.Background(), nil, model.EventCaseCreated, map[string]string{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert failed")
}
