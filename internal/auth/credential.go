// Package auth owns the OAuth2 credential lifecycle: interactive sign-in,
// proactive background renewal, durable session persistence and sign-out.
package auth

import (
	"time"
)

// Credential is a bearer access token together with its validity window and
// granted scope. It is replaced wholesale on every renewal, never patched.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Scope        []string  `json:"scope,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the credential must no longer be used at the given
// instant.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Identity is the authenticated user's profile, resolved from a Credential
// and invalidated together with it.
type Identity struct {
	DisplayName  string `json:"display_name"`
	EmailAddress string `json:"email_address"`
	AvatarURL    string `json:"avatar_url,omitempty"`
}

// Snapshot is the persisted form of a session: the credential plus the
// identity resolved from it.
type Snapshot struct {
	Credential *Credential `json:"credential"`
	Identity   *Identity   `json:"identity,omitempty"`
}
