package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidToken is returned for any token the identity provider does
// not accept. Verification fails closed: every provider error maps to a
// rejected connection, never to an anonymous one.
var ErrInvalidToken = errors.New("invalid token")

// Verifier resolves a bearer token to a user identity.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (int64, error)
}

// HTTPVerifier introspects tokens against an OAuth2-style endpoint of the
// external identity provider.
type HTTPVerifier struct {
	introspectionURL string
	clientID         string
	clientSecret     string
	httpClient       *http.Client
}

// NewHTTPVerifier constructs an HTTPVerifier.
func NewHTTPVerifier(introspectionURL, clientID, clientSecret string) *HTTPVerifier {
	return &HTTPVerifier{
		introspectionURL: introspectionURL,
		clientID:         clientID,
		clientSecret:     clientSecret,
		httpClient:       &http.Client{Timeout: 10 * time.Second},
	}
}

type introspectionResponse struct {
	Active bool   `json:"active"`
	Sub    string `json:"sub"`
	UserID int64  `json:"user_id"`
}

// VerifyToken calls the introspection endpoint and returns the verified
// user id.
func (v *HTTPVerifier) VerifyToken(ctx context.Context, token string) (int64, error) {
	data := url.Values{}
	data.Set("token", token)
	data.Set("client_id", v.clientID)
	data.Set("client_secret", v.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.introspectionURL, strings.NewReader(data.Encode()))
	if err != nil {
		return 0, fmt.Errorf("build introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("introspection request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("introspection status %d: %w", resp.StatusCode, ErrInvalidToken)
	}

	var ir introspectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return 0, fmt.Errorf("decode introspection response: %w", err)
	}
	if !ir.Active || ir.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return ir.UserID, nil
}
