// Package profile resolves the authenticated user's identity from a bearer
// credential.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hal9000y/gmail-compose/internal/auth"
)

const defaultBaseURL = "https://www.googleapis.com"

// ErrIncompleteProfile indicates the identity endpoint responded without a
// display name or email address.
var ErrIncompleteProfile = errors.New("incomplete profile data received")

// FetchError indicates the identity endpoint returned a non-2xx status.
type FetchError struct {
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("profile fetch failed with status %d", e.Status)
}

// Resolver fetches identities from the userinfo endpoint. Stateless, no
// retries; the caller decides whether a failure tears the session down.
type Resolver struct {
	baseURL    string
	httpClient *http.Client
}

// NewResolver creates a Resolver against the default Google userinfo
// endpoint. baseURL overrides the endpoint host when non-empty.
func NewResolver(baseURL string) *Resolver {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Resolver{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

// Resolve fetches the identity behind the access token. Both a display name
// and an email address are required.
func (r *Resolver) Resolve(ctx context.Context, accessToken string) (*auth.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.baseURL+"/oauth2/v3/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("http.NewRequestWithContext failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpClient.Do failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Status: resp.StatusCode}
	}

	var payload struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("json.NewDecoder.Decode failed: %w", err)
	}

	if payload.Name == "" || payload.Email == "" {
		return nil, ErrIncompleteProfile
	}

	return &auth.Identity{
		DisplayName:  payload.Name,
		EmailAddress: payload.Email,
		AvatarURL:    payload.Picture,
	}, nil
}
