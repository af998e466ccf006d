package mpesa

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthClientFetchToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/v1/generate", r.URL.Path)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "consumer-key", user)
		assert.Equal(t, "consumer-secret", pass)
		_, _ = w.Write([]byte(`{"access_token":"c9SQxWWhmdVRlyh0zh8gZDTkubVF","expires_in":"3599"}`))
	}))
	defer srv.Close()

	requestedAt := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	client := NewOAuthClient(srv.URL+"/", "consumer-key", "consumer-secret", time.Second)
	client.now = func() time.Time { return requestedAt }

	cred, err := client.FetchToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c9SQxWWhmdVRlyh0zh8gZDTkubVF", cred.Token)
	assert.Equal(t, requestedAt.Add(3599*time.Second), cred.ExpiresAt)
}

func TestOAuthClientNumericExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"abc","expires_in":60}`))
	}))
	defer srv.Close()

	client := NewOAuthClient(srv.URL, "k", "s", time.Second)
	cred, err := client.FetchToken(context.Background())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), cred.ExpiresAt, 5*time.Second)
}

func TestOAuthClientRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorCode":"400.008.01","errorMessage":"Invalid Authentication passed"}`))
	}))
	defer srv.Close()

	client := NewOAuthClient(srv.URL, "k", "bad", time.Second)
	_, err := client.FetchToken(context.Background())

	var refreshErr *CredentialRefreshError
	require.True(t, errors.As(err, &refreshErr))
	assert.Equal(t, http.StatusBadRequest, refreshErr.StatusCode)
	assert.Contains(t, refreshErr.Detail, "Invalid Authentication passed")
	assert.True(t, errors.Is(err, ErrCredentialRefresh))
}

func TestOAuthClientMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":""}`))
	}))
	defer srv.Close()

	_, err := NewOAuthClient(srv.URL, "k", "s", time.Second).FetchToken(context.Background())
	assert.True(t, errors.Is(err, ErrCredentialRefresh))
}

func TestOAuthClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewOAuthClient(url, "k", "s", time.Second).FetchToken(context.Background())
	var refreshErr *CredentialRefreshError
	require.True(t, errors.As(err, &refreshErr))
	assert.Zero(t, refreshErr.StatusCode)
	assert.Error(t, refreshErr.Err)
}
