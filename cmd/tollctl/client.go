package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type verifyResult struct {
	Registered    bool   `json:"registered"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
	Error         string `json:"error"`
	Vehicle       *struct {
		LicensePlate string `json:"licensePlate"`
		Owner        string `json:"owner"`
		Contact      string `json:"contact"`
	} `json:"vehicle"`
}

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) verify(ctx context.Context, plate string) (verifyResult, error) {
	body, _ := json.Marshal(map[string]string{"licensePlate": plate})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return verifyResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return verifyResult{}, err
	}
	defer resp.Body.Close()

	var out verifyResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return verifyResult{}, fmt.Errorf("verify: status %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return out, fmt.Errorf("verify: status %d: %s", resp.StatusCode, out.Error)
	}
	return out, nil
}

func (c *client) gate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/gate-status", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
