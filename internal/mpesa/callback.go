package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	ResultCodeSuccess = 0
	ReceiptItemName   = "MpesaReceiptNumber"
)

// CallbackEnvelope is the body the provider posts to the callback URL.
type CallbackEnvelope struct {
	Body *CallbackBody `json:"Body"`
}

type CallbackBody struct {
	StkCallback *StkCallback `json:"stkCallback"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        ResultCode        `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// ResultCode is the provider's result, sent as a number or a numeric string.
// An absent or null code is not Valid.
type ResultCode struct {
	Code  int
	Valid bool
}

func Code(n int) ResultCode {
	return ResultCode{Code: n, Valid: true}
}

func (r *ResultCode) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*r = ResultCode{}
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("ResultCode %s is not an integer", string(b))
	}
	*r = Code(n)
	return nil
}

func (r ResultCode) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(r.Code)), nil
}

func (r ResultCode) String() string {
	if !r.Valid {
		return "none"
	}
	return strconv.Itoa(r.Code)
}

// Succeeded reports whether the payer authorised the charge. Only an explicit
// zero result code counts.
func (c *StkCallback) Succeeded() bool {
	return c.ResultCode.Valid && c.ResultCode.Code == ResultCodeSuccess
}

// Metadata looks an item up by name and renders its value as a string.
func (c *StkCallback) Metadata(name string) (string, bool) {
	if c.CallbackMetadata == nil {
		return "", false
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name != name || len(item.Value) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(item.Value, &s); err == nil {
			return s, s != ""
		}
		raw := strings.TrimSpace(string(item.Value))
		if raw == "null" {
			return "", false
		}
		return raw, true
	}
	return "", false
}

// Receipt returns the MpesaReceiptNumber metadata item.
func (c *StkCallback) Receipt() (string, bool) {
	return c.Metadata(ReceiptItemName)
}

// CallbackAck is what the provider expects back; anything else triggers
// redelivery.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func AcceptedAck() CallbackAck {
	return CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}
}

func (c *StkCallback) String() string {
	return fmt.Sprintf("checkout=%s merchant=%s result=%s", c.CheckoutRequestID, c.MerchantRequestID, c.ResultCode)
}
