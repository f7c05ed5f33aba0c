package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/pkg/logger"
	"github.com/lipanganya/doctime-api/pkg/metrics"
)

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

func (m *mockOutboxRepo) Create(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockOutboxRepo) GetPendingEventsWithLock(ctx context.Context, tx *sqlx.Tx, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.OutboxEvent), args.Error(1)
}

func (m *mockOutboxRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	return m.Called(ctx, id, status, errorMessage, retryAt).Error(0)
}

func (m *mockOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	return m.Called(ctx, eventType, payload).Error(0)
}

func newProcessor(repo *mockOutboxRepo, pub *mockPublisher) *OutboxProcessor {
	p := NewOutboxProcessor(repo, pub, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}, logger.Nop(), metrics.Nop())
	fixed := time.Date(2026, 5, 14, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	return p
}

func TestProcessBatchPublishesAndMarksProcessed(t *testing.T) {
	ctx := context.Background()
	repo := new(mockOutboxRepo)
	pub := new(mockPublisher)
	event := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventCaseCompleted, Payload: []byte(`{"case_id":"x"}`)}

	repo.On("GetPendingEventsWithLock", ctx, 10).Return([]*model.OutboxEvent{event}, nil)
	pub.On("Publish", ctx, model.EventCaseCompleted, []byte(`{"case_id":"x"}`)).Return(nil)
	repo.On("UpdateStatusTx", ctx, event.ID, model.OutboxStatusProcessed, (*string)(nil), (*time.Time)(nil)).Return(nil)

	n, err := newProcessor(repo, pub).ProcessBatch(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestProcessBatchSchedulesRetryWithBackoff(t *testing.T) {
	ctx := context.Background()
	repo := new(mockOutboxRepo)
	pub := new(mockPublisher)
	event := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventReferralCreated, Payload: []byte(`{}`), RetryCount: 1}

	repo.On("GetPendingEventsWithLock", ctx, 10).Return([]*model.OutboxEvent{event}, nil)
	pub.On("Publish", ctx, model.EventReferralCreated, mock.Anything).Return(errors.New("broker down"))
	repo.On("UpdateStatusTx", ctx, event.ID, model.OutboxStatusRetry, mock.Anything, mock.Anything).Return(nil)

	p := newProcessor(repo, pub)
	n, err := p.ProcessBatch(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, n)

	call := repo.Calls[len(repo.Calls)-1]
	retryAt := call.Arguments.Get(4).(*time.Time)
	require.NotNil(t, retryAt)
	assert.Equal(t, p.now().Add(2*time.Second), *retryAt)
	assert.Equal(t, "broker down", *call.Arguments.Get(3).(*string))
}

func TestProcessBatchFailsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	repo := new(mockOutboxRepo)
	pub := new(mockPublisher)
	event := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventCaseCreated, Payload: []byte(`{}`), RetryCount: 2}

	repo.On("GetPendingEventsWithLock", ctx, 10).Return([]*model.OutboxEvent{event}, nil)
	pub.On("Publish", ctx, model.EventCaseCreated, mock.Anything).Return(errors.New("broker down"))
	repo.On("UpdateStatusTx", ctx, event.ID, model.OutboxStatusFailed, mock.Anything, (*time.Time)(nil)).Return(nil)

	_, err := newProcessor(repo, pub).ProcessBatch(ctx)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestProcessBatchAbortsWhenStatusUpdateFails(t *testing.T) {
	ctx := context.Background()
	repo := new(mockOutboxRepo)
	pub := new(mockPublisher)
	first := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventCaseCreated, Payload: []byte(`{}`)}
	second := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventCaseCreated, Payload: []byte(`{}`)}

	repo.On("GetPendingEventsWithLock", ctx, 10).Return([]*model.OutboxEvent{first, second}, nil)
	pub.On("Publish", ctx, model.EventCaseCreated, mock.Anything).Return(nil).Once()
	repo.On("UpdateStatusTx", ctx, first.ID, model.OutboxStatusProcessed, mock.Anything, mock.Anything).Return(errors.New("db gone"))

	_, err := newProcessor(repo, pub).ProcessBatch(ctx)

	require.Error(t, err)
	pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestBackoffDoubles(t *testing.T) {
	p := newProcessor(new(mockOutboxRepo), new(mockPublisher))

	assert.Equal(t, time.Second, p.backoff(1))
	assert.Equal(t, 2*time.Second, p.backoff(2))
	assert.Equal(t, 4*time.Second, p.backoff(3))
}
