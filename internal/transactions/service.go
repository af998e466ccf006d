package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"
	"toll-payment/internal/mpesa"
	"toll-payment/internal/transactions/entities"
	"toll-payment/internal/transactions/repository"
	vehicleEntities "toll-payment/internal/vehicles/entities"
	vehicleRepository "toll-payment/internal/vehicles/repository"

	"github.com/google/uuid"
)

var ErrVehicleNotRegistered = errors.New("vehicle not registered")

// PaymentInitiator sends exactly one push request per call.
type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, phoneNumber string, amount int) (mpesa.PushResult, error)
}

type VehicleLookup interface {
	Lookup(ctx context.Context, plate string) (vehicleEntities.Vehicle, error)
}

type VerifyResult struct {
	Vehicle     vehicleEntities.Vehicle
	Transaction entities.Transaction
}

type Service struct {
	transactionRepository repository.Transaction
	vehicles              VehicleLookup
	initiator             PaymentInitiator
	tollAmount            int
	now                   func() time.Time
}

func NewTransactionService(repo repository.Transaction, vehicles VehicleLookup, initiator PaymentInitiator, tollAmount int) *Service {
	return &Service{
		transactionRepository: repo,
		vehicles:              vehicles,
		initiator:             initiator,
		tollAmount:            tollAmount,
		now:                   time.Now,
	}
}

// Verify resolves the plate, pushes the toll charge to the owner's phone and
// records the pending transaction once the provider has accepted the push.
func (s *Service) Verify(ctx context.Context, plate string) (VerifyResult, error) {
	vehicle, err := s.vehicles.Lookup(ctx, plate)
	if errors.Is(err, vehicleRepository.ErrNotFound) {
		return VerifyResult{}, ErrVehicleNotRegistered
	}
	if err != nil {
		return VerifyResult{}, fmt.Errorf("lookup vehicle: %w", err)
	}

	push, err := s.initiator.InitiatePayment(ctx, vehicle.PhoneNumber, s.tollAmount)
	if err != nil {
		return VerifyResult{Vehicle: vehicle}, err
	}

	now := s.now().UTC()
	tx := entities.Transaction{
		ID:                uuid.NewString(),
		LicensePlate:      vehicle.LicensePlate,
		PhoneNumber:       vehicle.PhoneNumber,
		Amount:            s.tollAmount,
		Status:            entities.StatusPending,
		CheckoutRequestID: push.CheckoutRequestID,
		MerchantRequestID: push.MerchantRequestID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	// The push is already on the payer's phone; the callback for it will be
	// reported as unknown if this write is lost.
	if err := s.transactionRepository.Create(ctx, &tx); err != nil {
		return VerifyResult{Vehicle: vehicle}, fmt.Errorf("record transaction %s: %w", push.CheckoutRequestID, err)
	}
	return VerifyResult{Vehicle: vehicle, Transaction: tx}, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (entities.Transaction, error) {
	return s.transactionRepository.Get(ctx, id)
}
