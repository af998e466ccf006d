package entities

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusTimeout
}

// Transaction is one payment attempt. Rows are never deleted; status and
// GateConsumed are mutated in place through conditional updates only.
type Transaction struct {
	ID                string     `json:"id"`
	LicensePlate      string     `json:"licensePlate"`
	PhoneNumber       string     `json:"phoneNumber"`
	Amount            int        `json:"amount"`
	Status            Status     `json:"status"`
	CheckoutRequestID string     `json:"checkoutRequestId"`
	MerchantRequestID string     `json:"merchantRequestId"`
	ReceiptReference  string     `json:"receiptReference,omitempty"`
	ResultDesc        string     `json:"resultDesc,omitempty"`
	GateConsumed      bool       `json:"gateConsumed"`
	GateConsumedAt    *time.Time `json:"gateConsumedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Outcome is the terminal result applied by reconciliation.
type Outcome struct {
	Status           Status
	ReceiptReference string
	ResultDesc       string
	At               time.Time
}
