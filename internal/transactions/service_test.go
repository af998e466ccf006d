package transactions

import (
	"context"
	"errors"
	"testing"
	"time"
	"toll-payment/internal/mpesa"
	"toll-payment/internal/phone"
	"toll-payment/internal/transactions/entities"
	"toll-payment/internal/vehicles"
	vehicleEntities "toll-payment/internal/vehicles/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInitiator struct {
	calls  int
	phone  string
	amount int
	err    error
}

func (f *fakeInitiator) InitiatePayment(ctx context.Context, phoneNumber string, amount int) (mpesa.PushResult, error) {
	f.calls++
	f.phone, f.amount = phoneNumber, amount
	if f.err != nil {
		return mpesa.PushResult{}, f.err
	}
	return mpesa.PushResult{CheckoutRequestID: "ws_CO_1", MerchantRequestID: "m-1"}, nil
}

func newTestService(t *testing.T, initiator PaymentInitiator) (*Service, *InMemoryTransactionDB) {
	t.Helper()
	dir := vehicles.NewInMemoryVehicleDB()
	require.NoError(t, dir.Register(context.Background(), vehicleEntities.Vehicle{
		LicensePlate: "KAA123A",
		OwnerName:    "Jane Wanjiku",
		PhoneNumber:  "254712345678",
	}))
	repo := NewInMemoryTransactionDB()
	s := NewTransactionService(repo, vehicles.NewVehicleService(dir), initiator, 1)
	s.now = func() time.Time { return baseTime }
	return s, repo
}

func TestVerifyCreatesPendingTransaction(t *testing.T) {
	initiator := &fakeInitiator{}
	s, repo := newTestService(t, initiator)

	res, err := s.Verify(context.Background(), " kaa 123a ")
	require.NoError(t, err)
	assert.Equal(t, 1, initiator.calls)
	assert.Equal(t, "254712345678", initiator.phone)
	assert.Equal(t, 1, initiator.amount)

	tx := res.Transaction
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, entities.StatusPending, tx.Status)
	assert.Equal(t, "KAA123A", tx.LicensePlate)
	assert.Equal(t, "ws_CO_1", tx.CheckoutRequestID)
	assert.Equal(t, baseTime, tx.CreatedAt)

	stored, err := repo.Get(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx, stored)
}

func TestVerifyUnknownPlate(t *testing.T) {
	initiator := &fakeInitiator{}
	s, _ := newTestService(t, initiator)

	_, err := s.Verify(context.Background(), "KZZ999Z")
	assert.ErrorIs(t, err, ErrVehicleNotRegistered)
	assert.Equal(t, 0, initiator.calls)
}

func TestVerifyInitiationFailureRecordsNothing(t *testing.T) {
	for name, cause := range map[string]error{
		"declined":      &mpesa.InitiationError{ResponseCode: "1", Description: "Rejected"},
		"phone invalid": &phone.InvalidFormatError{Input: "123"},
	} {
		t.Run(name, func(t *testing.T) {
			s, repo := newTestService(t, &fakeInitiator{err: cause})
			_, err := s.Verify(context.Background(), "KAA123A")
			require.Error(t, err)
			assert.True(t, errors.Is(err, cause))

			_, err = repo.LatestByCheckoutID(context.Background(), "ws_CO_1")
			assert.Error(t, err)
		})
	}
}
