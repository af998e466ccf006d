package repository

import (
	"context"
	"errors"
	"toll-payment/internal/vehicles/entities"
)

var (
	ErrNotFound          = errors.New("vehicle not found")
	ErrAlreadyRegistered = errors.New("vehicle already registered")
)

// Directory stores vehicles keyed by normalized plate.
type Directory interface {
	Register(ctx context.Context, v entities.Vehicle) error
	Lookup(ctx context.Context, plate string) (entities.Vehicle, error)
}
