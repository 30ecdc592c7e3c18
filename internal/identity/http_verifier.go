package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPVerifier calls the provider's verification endpoint.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTPVerifier creates a verifier against the provider's base URL.
func NewHTTPVerifier(baseURL string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type verifyRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Verified  bool   `json:"verified"`
	AccountID string `json:"account_id"`
	Reason    string `json:"reason"`
}

func (v *HTTPVerifier) VerifyCredentials(ctx context.Context, email, password string) (*Verdict, error) {
	payload, err := json.Marshal(verifyRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encode verify request: %w", err)
	}

	url := v.baseURL + "/v1/credentials/verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity provider status %d", resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}

	return &Verdict{
		Verified:  body.Verified,
		AccountID: body.AccountID,
		Reason:    body.Reason,
	}, nil
}
