package service

import (
	"errors"

	"github.com/vaidashi/dispatch-engine/internal/repository"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
)

// translate maps repository errors onto the application taxonomy.
// AppErrors raised inside a transaction pass through unchanged.
func translate(err error, resource, id string) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFoundErrorf(resource, id)
	case errors.Is(err, repository.ErrVehicleUnavailable):
		conflict := apperrors.NewConflictError("vehicle " + id + " is not available for assignment")
		return conflict.WithContext("vehicle_id", id)
	case errors.Is(err, repository.ErrDatabase):
		return apperrors.NewDependencyError("database", err)
	}

	return apperrors.NewInternalError(err.Error())
}
