// Package facilitator contains the HTTP client for the remote
// facilitator service that owns plan balances. Verify is non-mutating;
// Settle burns credits. The protocol provides no idempotency key:
// at-most-once settlement per work id is the request ledger's job, not
// this client's.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	payments "github.com/nevermined-io/payments-go"
)

// Client communicates with a remote facilitator over HTTP. It
// implements payments.FacilitatorClient.
type Client struct {
	url          string
	httpClient   *http.Client
	authProvider AuthProvider
}

// AuthProvider generates authentication headers for facilitator
// requests.
type AuthProvider interface {
	// GetAuthHeaders returns the headers to attach to each call.
	GetAuthHeaders(ctx context.Context) (map[string]string, error)
}

// APIKeyAuth authenticates with a static bearer key.
type APIKeyAuth string

// GetAuthHeaders returns the Authorization header for the key.
func (k APIKeyAuth) GetAuthHeaders(_ context.Context) (map[string]string, error) {
	return map[string]string{"Authorization": "Bearer " + string(k)}, nil
}

// Config configures the facilitator client.
type Config struct {
	// URL is the base URL of the facilitator service.
	URL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// AuthProvider provides authentication headers (optional).
	AuthProvider AuthProvider

	// Timeout for requests (optional, defaults to 30s).
	Timeout time.Duration
}

// NewClient creates a facilitator client. The zero Config uses a 30s
// request timeout and no authentication.
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		url:          config.URL,
		httpClient:   httpClient,
		authProvider: config.AuthProvider,
	}
}

type verifyRequest struct {
	Requirement payments.PaymentRequirement `json:"paymentRequirement"`
	Token       string                      `json:"token"`
	MaxAmount   int64                       `json:"maxAmount"`
}

type settleRequest struct {
	Requirement    payments.PaymentRequirement `json:"paymentRequirement"`
	Token          string                      `json:"token"`
	Amount         int64                       `json:"amount"`
	AgentRequestID string                      `json:"agentRequestId,omitempty"`
}

// Verify checks whether the token holds enough entitlement for the
// requirement.
func (c *Client) Verify(ctx context.Context, requirement payments.PaymentRequirement, token string, maxAmount int64) (*payments.VerificationResult, error) {
	body, err := json.Marshal(verifyRequest{Requirement: requirement, Token: token, MaxAmount: maxAmount})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	responseBody, status, err := c.post(ctx, "/verify", body)
	if err != nil {
		return nil, err
	}

	var result payments.VerificationResult
	if err := json.Unmarshal(responseBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}

	if status != http.StatusOK {
		if result.InvalidReason != "" {
			// A structured rejection is a valid protocol answer, not a
			// transport failure.
			return &result, nil
		}
		return nil, fmt.Errorf("facilitator verify failed (%d): %s", status, string(responseBody))
	}

	return &result, nil
}

// Settle burns credits for completed work.
func (c *Client) Settle(ctx context.Context, requirement payments.PaymentRequirement, token string, amount int64, agentRequestID string) (*payments.SettlementResult, error) {
	body, err := json.Marshal(settleRequest{
		Requirement:    requirement,
		Token:          token,
		Amount:         amount,
		AgentRequestID: agentRequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settle request: %w", err)
	}

	responseBody, status, err := c.post(ctx, "/settle", body)
	if err != nil {
		return nil, err
	}

	var result payments.SettlementResult
	if err := json.Unmarshal(responseBody, &result); err != nil {
		return nil, fmt.Errorf("facilitator settle failed (%d): %s", status, string(responseBody))
	}

	if status != http.StatusOK {
		if result.ErrorReason != "" {
			return &result, nil
		}
		return nil, fmt.Errorf("facilitator settle failed (%d): %s", status, string(responseBody))
	}

	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create %s request: %w", path, err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.authProvider != nil {
		authHeaders, err := c.authProvider.GetAuthHeaders(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to get auth headers: %w", err)
		}
		for k, v := range authHeaders {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	return responseBody, resp.StatusCode, nil
}
