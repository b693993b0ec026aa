package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chronocoders/ecash/api"
)

// client is the wallet's HTTP client against the issuer server's public
// surface (spec §4.9). It speaks the same JSON shapes api's handlers do.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *client) post(path string, reqBody, respBody interface{}) error {
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%s: %s (status %d)", path, errResp.Error, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(respBody)
}

func (c *client) get(path string, respBody interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}

func (c *client) Keys() (*api.KeysResponse, error) {
	var resp api.KeysResponse
	if err := c.get("/api/v1/keys", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) Health() (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.get("/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) Withdraw(req api.WithdrawRequest) (*api.WithdrawResponse, error) {
	var resp api.WithdrawResponse
	if err := c.post("/api/v1/withdraw", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) Redeem(req api.RedeemRequest) (*api.RedeemResponse, error) {
	var resp api.RedeemResponse
	if err := c.post("/api/v1/redeem", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
