package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const tokenPath = "/oauth/v1/generate?grant_type=client_credentials"

// OAuthClient fetches access tokens with the application's consumer key and
// secret.
type OAuthClient struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	client         *http.Client
	now            func() time.Time
}

type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   seconds `json:"expires_in"`
}

// seconds accepts both "3599" and 3599.
type seconds int64

func (s *seconds) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("expires_in: %w", err)
	}
	*s = seconds(n)
	return nil
}

func NewOAuthClient(baseURL, consumerKey, consumerSecret string, timeout time.Duration) *OAuthClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OAuthClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		client: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

func (c *OAuthClient) FetchToken(ctx context.Context) (Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tokenPath, nil)
	if err != nil {
		return Credential{}, &CredentialRefreshError{Err: err}
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	requestedAt := c.now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Credential{}, &CredentialRefreshError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Credential{}, &CredentialRefreshError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return Credential{}, &CredentialRefreshError{
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(body)),
		}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return Credential{}, &CredentialRefreshError{StatusCode: resp.StatusCode, Detail: "decode token response", Err: err}
	}
	if token.AccessToken == "" || token.ExpiresIn <= 0 {
		return Credential{}, &CredentialRefreshError{StatusCode: resp.StatusCode, Detail: "token response missing access_token or expires_in"}
	}

	// Lifetime is counted from the request so the stored expiry never runs
	// later than the provider's.
	return Credential{
		Token:     token.AccessToken,
		ExpiresAt: requestedAt.Add(time.Duration(token.ExpiresIn) * time.Second),
	}, nil
}
