package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lipanganya/doctime-api/internal/repository"
	apperrors "github.com/lipanganya/doctime-api/pkg/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apperrors.ErrorCode
	}{
		{"not found", fmt.Errorf("get: %w", repository.ErrNotFound), apperrors.ErrNotFound},
		{"conflict", repository.ErrConflict, apperrors.ErrConflict},
		{"app error kept", apperrors.Forbidden("no"), apperrors.ErrForbidden},
		{"unknown", errors.New("pq: broken pipe"), apperrors.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, apperrors.CodeOf(MapError(tt.err, "case")))
		})
	}

	assert.NoError(t, MapError(nil, "case"))
	assert.Equal(t, "case not found", MapError(repository.ErrNotFound, "case").(*apperrors.AppError).Message)
}
