package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"toll-payment/internal/phone"
)

const (
	stkPushPath        = "/mpesa/stkpush/v1/processrequest"
	timestampLayout    = "20060102150405"
	transactionType    = "CustomerPayBillOnline"
	responseCodeAccept = "0"
)

// East Africa Time, the zone the provider validates push timestamps in.
var eat = time.FixedZone("EAT", 3*60*60)

type CredentialProvider interface {
	EnsureFresh(ctx context.Context) (Credential, error)
}

type GatewayConfig struct {
	BaseURL          string
	Shortcode        string
	Passkey          string
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
	Timeout          time.Duration
}

type pushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int    `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type pushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// PushResult holds the identifiers the provider assigned to an accepted push.
type PushResult struct {
	CheckoutRequestID   string
	MerchantRequestID   string
	ResponseDescription string
	CustomerMessage     string
}

// Gateway sends STK push requests. It never retries: a blind retry could
// charge the payer twice.
type Gateway struct {
	cfg    GatewayConfig
	creds  CredentialProvider
	client *http.Client
	now    func() time.Time
}

func NewGateway(cfg GatewayConfig, creds CredentialProvider) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gateway{
		cfg:   cfg,
		creds: creds,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: func() time.Time { return time.Now().In(eat) },
	}
}

// Password derives the one-time password from shortcode, passkey and timestamp.
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

func (g *Gateway) InitiatePayment(ctx context.Context, phoneNumber string, amount int) (PushResult, error) {
	if amount <= 0 {
		return PushResult{}, ErrInvalidAmount
	}
	msisdn, err := phone.Normalize(phoneNumber)
	if err != nil {
		return PushResult{}, err
	}

	cred, err := g.creds.EnsureFresh(ctx)
	if err != nil {
		return PushResult{}, err
	}

	timestamp := g.now().Format(timestampLayout)
	payload, err := json.Marshal(pushRequest{
		BusinessShortCode: g.cfg.Shortcode,
		Password:          Password(g.cfg.Shortcode, g.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            amount,
		PartyA:            msisdn,
		PartyB:            g.cfg.Shortcode,
		PhoneNumber:       msisdn,
		CallBackURL:       g.cfg.CallbackURL,
		AccountReference:  g.cfg.AccountReference,
		TransactionDesc:   g.cfg.TransactionDesc,
	})
	if err != nil {
		return PushResult{}, &InitiationError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+stkPushPath, bytes.NewReader(payload))
	if err != nil {
		return PushResult{}, &InitiationError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.Token)

	resp, err := g.client.Do(req)
	if err != nil {
		return PushResult{}, &InitiationError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return PushResult{}, &InitiationError{StatusCode: resp.StatusCode, Err: err}
	}

	var out pushResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return PushResult{}, &InitiationError{
			StatusCode:  resp.StatusCode,
			Description: strings.TrimSpace(string(body)),
		}
	}

	if resp.StatusCode != http.StatusOK || out.ResponseCode != responseCodeAccept {
		description := out.ResponseDescription
		if description == "" {
			description = out.ErrorMessage
		}
		code := out.ResponseCode
		if code == "" {
			code = out.ErrorCode
		}
		return PushResult{}, &InitiationError{
			StatusCode:   resp.StatusCode,
			ResponseCode: code,
			Description:  description,
		}
	}

	if strings.TrimSpace(out.CheckoutRequestID) == "" {
		return PushResult{}, &InitiationError{
			StatusCode:   resp.StatusCode,
			ResponseCode: out.ResponseCode,
			Description:  "accepted without CheckoutRequestID",
		}
	}

	return PushResult{
		CheckoutRequestID:   out.CheckoutRequestID,
		MerchantRequestID:   out.MerchantRequestID,
		ResponseDescription: out.ResponseDescription,
		CustomerMessage:     out.CustomerMessage,
	}, nil
}
