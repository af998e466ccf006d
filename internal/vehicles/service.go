package vehicles

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"toll-payment/internal/phone"
	"toll-payment/internal/vehicles/entities"
	"toll-payment/internal/vehicles/repository"
)

var platePattern = regexp.MustCompile(`^[A-Z0-9]{3,12}$`)

var (
	ErrInvalidPlate = errors.New("invalid license plate")
	ErrMissingOwner = errors.New("owner name is required")
)

// NormalizePlate strips all whitespace and upper-cases the plate.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.Join(strings.Fields(plate), ""))
}

type Service struct {
	directory repository.Directory
	now       func() time.Time
}

func NewVehicleService(dir repository.Directory) *Service {
	return &Service{directory: dir, now: time.Now}
}

// Register validates the plate, normalizes the contact number and stores the
// vehicle. The stored phone number is always in canonical form.
func (s *Service) Register(ctx context.Context, v entities.Vehicle) (entities.Vehicle, error) {
	v.LicensePlate = NormalizePlate(v.LicensePlate)
	if !platePattern.MatchString(v.LicensePlate) {
		return v, fmt.Errorf("%w: %q", ErrInvalidPlate, v.LicensePlate)
	}
	v.OwnerName = strings.TrimSpace(v.OwnerName)
	if v.OwnerName == "" {
		return v, ErrMissingOwner
	}

	normalized, err := phone.Normalize(v.PhoneNumber)
	if err != nil {
		return v, err
	}
	v.PhoneNumber = normalized
	v.CreatedAt = s.now().UTC()

	if err := s.directory.Register(ctx, v); err != nil {
		return v, err
	}
	return v, nil
}

func (s *Service) Lookup(ctx context.Context, plate string) (entities.Vehicle, error) {
	return s.directory.Lookup(ctx, NormalizePlate(plate))
}
