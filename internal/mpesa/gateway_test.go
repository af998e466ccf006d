package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	"toll-payment/internal/phone"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCredentials struct {
	cred  Credential
	err   error
	calls atomic.Int64
}

func (s *staticCredentials) EnsureFresh(context.Context) (Credential, error) {
	s.calls.Add(1)
	return s.cred, s.err
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*Gateway, *staticCredentials, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	creds := &staticCredentials{cred: Credential{Token: "bearer-123", ExpiresAt: time.Now().Add(time.Hour)}}
	gw := NewGateway(GatewayConfig{
		BaseURL:          srv.URL,
		Shortcode:        "174379",
		Passkey:          "passkey",
		CallbackURL:      "https://toll.example.com/mpesa/callback",
		AccountReference: "TOLL-PAYMENT",
		TransactionDesc:  "Toll Payment",
		Timeout:          2 * time.Second,
	}, creds)
	gw.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 15, 0, eat) }
	return gw, creds, &hits
}

func TestInitiatePaymentSendsPushRequest(t *testing.T) {
	var got pushRequest
	gw, _, hits := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, stkPushPath, r.URL.Path)
		assert.Equal(t, "Bearer bearer-123", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`))
	})

	res, err := gw.InitiatePayment(context.Background(), "0712345678", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())

	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", res.MerchantRequestID)

	assert.Equal(t, "174379", got.BusinessShortCode)
	assert.Equal(t, "20260301093015", got.Timestamp)
	assert.Equal(t, Password("174379", "passkey", "20260301093015"), got.Password)
	assert.Equal(t, "MTc0Mzc5cGFzc2tleTIwMjYwMzAxMDkzMDE1", got.Password)
	assert.Equal(t, "CustomerPayBillOnline", got.TransactionType)
	assert.Equal(t, 1, got.Amount)
	assert.Equal(t, "254712345678", got.PartyA)
	assert.Equal(t, "254712345678", got.PhoneNumber)
	assert.Equal(t, "174379", got.PartyB)
	assert.Equal(t, "https://toll.example.com/mpesa/callback", got.CallBackURL)
	assert.Equal(t, "TOLL-PAYMENT", got.AccountReference)
}

func TestInitiatePaymentRejectsPhoneBeforeNetwork(t *testing.T) {
	gw, creds, hits := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})

	_, err := gw.InitiatePayment(context.Background(), "12345", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, phone.ErrInvalidPhoneFormat))
	assert.Equal(t, int64(0), hits.Load())
	assert.Equal(t, int64(0), creds.calls.Load())
}

func TestInitiatePaymentRejectsAmount(t *testing.T) {
	gw, _, hits := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := gw.InitiatePayment(context.Background(), "0712345678", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, int64(0), hits.Load())
}

func TestInitiatePaymentDeclined(t *testing.T) {
	gw, _, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ResponseCode":"1","ResponseDescription":"Rejected by provider"}`))
	})

	_, err := gw.InitiatePayment(context.Background(), "0712345678", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPaymentInitiationFailed))

	var initErr *InitiationError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, "1", initErr.ResponseCode)
	assert.Equal(t, "Rejected by provider", initErr.Description)
}

func TestInitiatePaymentProviderError(t *testing.T) {
	gw, _, hits := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"requestId":"1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`))
	})

	_, err := gw.InitiatePayment(context.Background(), "0712345678", 1)
	var initErr *InitiationError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, http.StatusBadRequest, initErr.StatusCode)
	assert.Equal(t, "400.002.02", initErr.ResponseCode)
	assert.Equal(t, "Bad Request - Invalid PhoneNumber", initErr.Description)
	assert.Equal(t, int64(1), hits.Load(), "no automatic retry")
}

func TestInitiatePaymentCredentialFailure(t *testing.T) {
	gw, creds, hits := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})
	creds.err = &CredentialRefreshError{StatusCode: 401, Detail: "unauthorized"}

	_, err := gw.InitiatePayment(context.Background(), "0712345678", 1)
	assert.True(t, errors.Is(err, ErrCredentialRefresh))
	assert.Equal(t, int64(0), hits.Load())
}

func TestInitiatePaymentRequiresCheckoutID(t *testing.T) {
	gw, _, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing"}`))
	})

	_, err := gw.InitiatePayment(context.Background(), "0712345678", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPaymentInitiationFailed))
	var initErr *InitiationError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, "0", initErr.ResponseCode)
	assert.Contains(t, initErr.Description, "CheckoutRequestID")
}
