package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTokenEndpoint(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "tok-fresh",
			"token_type": "Bearer",
			"refresh_token": "rt-fresh",
			"expires_in": 3600,
			"scope": "scope-a scope-b"
		}`))
	}))
}

func newTestAuthorizer(tokenURL string) *GoogleAuthorizer {
	return NewGoogleAuthorizer(&oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost/oauth",
		Scopes:       []string{"scope-a"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/auth",
			TokenURL: tokenURL,
		},
	})
}

func TestConsentURL(t *testing.T) {
	a := newTestAuthorizer("https://accounts.example.com/token")

	u, err := a.ConsentURL()
	require.NoError(t, err)

	assert.Contains(t, u, "https://accounts.example.com/auth")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
	assert.Contains(t, u, "state=")
}

func TestExchange(t *testing.T) {
	ts := newTokenEndpoint(t)
	defer ts.Close()

	a := newTestAuthorizer(ts.URL)

	consentURL, err := a.ConsentURL()
	require.NoError(t, err)

	state := extractState(t, consentURL)

	before := time.Now()
	cred, err := a.Exchange(context.Background(), "code-1", state)
	require.NoError(t, err)

	assert.Equal(t, "tok-fresh", cred.AccessToken)
	assert.Equal(t, "rt-fresh", cred.RefreshToken)
	assert.Equal(t, "Bearer", cred.TokenType)
	assert.Equal(t, []string{"scope-a", "scope-b"}, cred.Scope)
	assert.False(t, cred.IssuedAt.Before(before))
	assert.True(t, cred.ExpiresAt.After(cred.IssuedAt), "expiry must be after issuance")

	// State is one-shot.
	_, err = a.Exchange(context.Background(), "code-1", state)
	require.Error(t, err)
}

func TestExchangeRejectsUnknownState(t *testing.T) {
	a := newTestAuthorizer("https://accounts.example.com/token")

	_, err := a.Exchange(context.Background(), "code-1", "forged-state")
	require.Error(t, err)

	_, err = a.Exchange(context.Background(), "code-1", "")
	require.Error(t, err)
}

func TestRefresh(t *testing.T) {
	ts := newTokenEndpoint(t)
	defer ts.Close()

	a := newTestAuthorizer(ts.URL)

	cred, err := a.Refresh(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "tok-fresh", cred.AccessToken)

	_, err = a.Refresh(context.Background(), "")
	require.Error(t, err, "refresh without a refresh token must fail")
}

func TestRevoke(t *testing.T) {
	var gotToken string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotToken = r.PostForm.Get("token")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := newTestAuthorizer("https://accounts.example.com/token")
	a.revokeURL = ts.URL

	require.NoError(t, a.Revoke(context.Background(), "tok-dead"))
	assert.Equal(t, "tok-dead", gotToken)
}

func TestRevokeNonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	a := newTestAuthorizer("https://accounts.example.com/token")
	a.revokeURL = ts.URL

	require.Error(t, a.Revoke(context.Background(), "tok-dead"))
}

func extractState(t *testing.T, consentURL string) string {
	t.Helper()

	u, err := url.Parse(consentURL)
	require.NoError(t, err)

	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	return state
}
