package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultRevokeURL = "https://oauth2.googleapis.com/revoke"

	stateTTL = 5 * time.Minute
)

// Authorizer is the provider's token-acquisition surface: the interactive
// consent flow (ConsentURL + Exchange), the silent refresh, and revocation.
type Authorizer interface {
	ConsentURL() (string, error)
	Exchange(ctx context.Context, code, state string) (*Credential, error)
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)
	Revoke(ctx context.Context, accessToken string) error
}

// GoogleAuthorizer implements Authorizer on top of an oauth2.Config for
// Google's endpoints.
type GoogleAuthorizer struct {
	mu         sync.Mutex
	cfg        *oauth2.Config
	revokeURL  string
	httpClient *http.Client
	stateStore map[string]time.Time
	now        func() time.Time
}

// NewGoogleAuthorizer creates a GoogleAuthorizer for the given oauth2 config.
func NewGoogleAuthorizer(cfg *oauth2.Config) *GoogleAuthorizer {
	return &GoogleAuthorizer{
		cfg:        cfg,
		revokeURL:  defaultRevokeURL,
		httpClient: http.DefaultClient,
		stateStore: make(map[string]time.Time),
		now:        time.Now,
	}
}

// ConsentURL generates the interactive authorization URL with a secure random
// one-shot state. The consent prompt is forced so a refresh token is always
// granted.
func (a *GoogleAuthorizer) ConsentURL() (string, error) {
	state, err := a.generateState()
	if err != nil {
		return "", fmt.Errorf("generateState failed: %w", err)
	}

	return a.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

func (a *GoogleAuthorizer) generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand.Read failed: %w", err)
	}
	state := base64.URLEncoding.EncodeToString(b)

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.stateStore[state] = now.Add(stateTTL)

	for s, exp := range a.stateStore {
		if exp.Before(now) {
			delete(a.stateStore, s)
		}
	}

	return state, nil
}

func (a *GoogleAuthorizer) validateState(state string) bool {
	if state == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	expiry, exists := a.stateStore[state]
	if !exists {
		return false
	}

	delete(a.stateStore, state)

	return !a.now().After(expiry)
}

// Exchange validates the callback state and trades the authorization code for
// a fresh credential.
func (a *GoogleAuthorizer) Exchange(ctx context.Context, code, state string) (*Credential, error) {
	if !a.validateState(state) {
		return nil, errors.New("invalid or expired state parameter")
	}

	tok, err := a.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("cfg.Exchange failed: %w", err)
	}

	return a.credentialFromToken(tok), nil
}

// Refresh obtains a new access token non-interactively from a refresh token.
func (a *GoogleAuthorizer) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token available")
	}

	src := a.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("tokenSource.Token failed: %w", err)
	}

	return a.credentialFromToken(tok), nil
}

// Revoke invalidates the access token at the provider.
func (a *GoogleAuthorizer) Revoke(ctx context.Context, accessToken string) error {
	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.revokeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpClient.Do failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke endpoint returned status %d", resp.StatusCode)
	}

	return nil
}

func (a *GoogleAuthorizer) credentialFromToken(tok *oauth2.Token) *Credential {
	cred := &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		IssuedAt:     a.now(),
		ExpiresAt:    tok.Expiry,
	}

	if scope, ok := tok.Extra("scope").(string); ok {
		cred.Scope = strings.Fields(scope)
	}

	return cred
}
