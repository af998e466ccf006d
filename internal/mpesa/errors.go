package mpesa

import (
	"errors"
	"fmt"
)

var (
	ErrCredentialRefresh       = errors.New("mpesa: credential refresh failed")
	ErrPaymentInitiationFailed = errors.New("mpesa: payment initiation failed")
	ErrInvalidAmount           = errors.New("mpesa: amount must be a positive integer")
)

// CredentialRefreshError is returned when the token endpoint is unreachable or
// rejects the application keys. StatusCode is zero for transport failures.
type CredentialRefreshError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *CredentialRefreshError) Error() string {
	switch {
	case e.Err != nil && e.Detail != "":
		return fmt.Sprintf("%v: %s: %v", ErrCredentialRefresh, e.Detail, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", ErrCredentialRefresh, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%v: status %d: %s", ErrCredentialRefresh, e.StatusCode, e.Detail)
	default:
		return fmt.Sprintf("%v: %s", ErrCredentialRefresh, e.Detail)
	}
}

func (e *CredentialRefreshError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCredentialRefresh}
	}
	return []error{ErrCredentialRefresh, e.Err}
}

// InitiationError carries the provider's description of a declined push.
type InitiationError struct {
	StatusCode   int
	ResponseCode string
	Description  string
	Err          error
}

func (e *InitiationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", ErrPaymentInitiationFailed, e.Err)
	}
	return fmt.Sprintf("%v: code=%q status=%d: %s", ErrPaymentInitiationFailed, e.ResponseCode, e.StatusCode, e.Description)
}

func (e *InitiationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPaymentInitiationFailed}
	}
	return []error{ErrPaymentInitiationFailed, e.Err}
}
