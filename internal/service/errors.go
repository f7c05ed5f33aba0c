// Package service holds helpers shared by the domain services.
package service

import (
	stderrors "errors"

	"github.com/lipanganya/doctime-api/internal/repository"
	"github.com/lipanganya/doctime-api/pkg/errors"
)

// MapError translates repository errors into AppErrors. AppErrors pass
// through unchanged; anything unrecognised becomes Internal.
func MapError(err error, resource string) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFound(resource, err)
	case stderrors.Is(err, repository.ErrConflict):
		return errors.Conflict(resource+" was modified by another request, please retry", err)
	default:
		return errors.Internal(err)
	}
}
