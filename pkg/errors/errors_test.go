package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"not found", NotFound("case", nil), http.StatusNotFound},
		{"forbidden", Forbidden("not the owner"), http.StatusForbidden},
		{"precondition", PreconditionFailed("referral not yet accepted"), http.StatusBadRequest},
		{"invalid state", InvalidState("case is not cancelled"), http.StatusBadRequest},
		{"bad request", BadRequest("bad", nil), http.StatusBadRequest},
		{"unauthorized", Unauthorized(nil), http.StatusUnauthorized},
		{"conflict", Conflict("changed", nil), http.StatusConflict},
		{"internal", Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestIsFollowsWrapping(t *testing.T) {
	err := fmt.Errorf("complete case: %w", InvalidState("case is not cancelled"))

	assert.True(t, Is(err, ErrInvalidState))
	assert.False(t, Is(err, ErrForbidden))
	assert.Equal(t, ErrInvalidState, CodeOf(err))
	assert.Equal(t, ErrInternal, CodeOf(fmt.Errorf("plain")))
}

func TestErrorMessage(t *testing.T) {
	err := NotFound("referral", fmt.Errorf("sql: no rows"))

	assert.Equal(t, "referral not found: sql: no rows", err.Error())
	assert.Equal(t, "referral not found", NotFound("referral", nil).Error())
}
