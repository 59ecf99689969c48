package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrNotAuthenticated indicates no usable credential is available; the caller
// must re-authenticate.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrAuthorizationFailed indicates the interactive flow was rejected or
// cancelled.
var ErrAuthorizationFailed = errors.New("authorization failed")

// ErrRefreshFailed indicates silent renewal failed with no usable credential
// remaining; the session has been signed out.
var ErrRefreshFailed = errors.New("token refresh failed")

const (
	// renewalLead is how long before expiry a credential is renewed.
	renewalLead = 5 * time.Minute

	// renewRetryInterval is the delay before retrying a failed silent
	// renewal while the current credential is still unexpired.
	renewRetryInterval = time.Minute

	renewTimeout = 30 * time.Second
)

// State is the lifecycle state of a Session.
type State int

// Session lifecycle states.
const (
	StateUnauthenticated State = iota
	StateAuthorizing
	StateAuthorized
	StateRefreshScheduled
	StateRefreshing
)

type profileResolver interface {
	Resolve(ctx context.Context, accessToken string) (*Identity, error)
}

// Session owns the current credential and identity, drives the sign-in /
// renew / sign-out state machine and keeps the persisted snapshot in sync.
// At most one renewal timer is pending at any time.
type Session struct {
	mu         sync.Mutex
	authorizer Authorizer
	store      Store
	profiles   profileResolver

	state    State
	cred     *Credential
	identity *Identity
	timer    *time.Timer

	now func() time.Time
}

// NewSession creates an unauthenticated Session with injected dependencies.
func NewSession(authorizer Authorizer, store Store, profiles profileResolver) *Session {
	return &Session{
		authorizer: authorizer,
		store:      store,
		profiles:   profiles,
		state:      StateUnauthenticated,
		now:        time.Now,
	}
}

// ConsentURL returns the provider's interactive authorization URL.
func (s *Session) ConsentURL() (string, error) {
	return s.authorizer.ConsentURL()
}

// SignIn completes the interactive flow with the authorization code returned
// by the provider. Valid only while unauthenticated.
func (s *Session) SignIn(ctx context.Context, code, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnauthenticated {
		return errors.New("sign-in requested while a session is active")
	}

	s.state = StateAuthorizing
	cred, err := s.authorizer.Exchange(ctx, code, state)
	if err != nil {
		s.state = StateUnauthenticated

		return fmt.Errorf("%w: %v", ErrAuthorizationFailed, err)
	}

	return s.adoptLocked(ctx, cred)
}

// Restore loads the persisted session, if any. An unexpired credential
// becomes the live session directly; an expired one triggers a silent
// renewal, never the interactive flow. No snapshot is not an error.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("store.Load failed: %w", err)
	}
	if snap == nil || snap.Credential == nil {
		return nil
	}

	s.cred = snap.Credential
	s.identity = snap.Identity

	if s.cred.Expired(s.now()) {
		s.state = StateAuthorized

		return s.renewLocked(ctx)
	}

	s.state = StateAuthorized
	ident, err := s.profiles.Resolve(ctx, s.cred.AccessToken)
	if err != nil {
		s.signOutLocked(ctx)

		return fmt.Errorf("profiles.Resolve failed: %w", err)
	}
	s.identity = ident
	s.scheduleRenewalLocked()

	return s.persistLocked()
}

// adoptLocked installs a freshly acquired credential: identity resolution,
// persistence and timer arming. Identity failure is a fatal credential fault
// and forces sign-out.
func (s *Session) adoptLocked(ctx context.Context, cred *Credential) error {
	ident, err := s.profiles.Resolve(ctx, cred.AccessToken)
	if err != nil {
		s.cred = cred
		s.signOutLocked(ctx)

		return fmt.Errorf("profiles.Resolve failed: %w", err)
	}

	s.cred = cred
	s.identity = ident
	s.state = StateAuthorized
	s.scheduleRenewalLocked()

	return s.persistLocked()
}

// renewLocked performs a silent, non-interactive token refresh. On failure an
// unexpired credential stays in place and a retry is armed; an expired one
// forces sign-out since no usable credential remains.
func (s *Session) renewLocked(ctx context.Context) error {
	if s.state == StateUnauthenticated || s.cred == nil {
		return ErrNotAuthenticated
	}

	prev := s.cred
	s.state = StateRefreshing

	cred, err := s.authorizer.Refresh(ctx, prev.RefreshToken)
	if err != nil {
		if prev.Expired(s.now()) {
			s.signOutLocked(ctx)

			return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		}

		log.Printf("Silent renewal failed, keeping current credential: %v", err)
		s.state = StateAuthorized
		s.armLocked(s.retryDelayLocked())

		return nil
	}

	if cred.RefreshToken == "" {
		cred.RefreshToken = prev.RefreshToken
	}

	s.cred = cred
	s.state = StateAuthorized
	s.scheduleRenewalLocked()

	return s.persistLocked()
}

// SignOut tears the session down: the pending timer is cancelled before any
// state is cleared, the token is revoked best-effort and the snapshot is
// deleted. Valid from any state.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signOutLocked(ctx)
}

func (s *Session) signOutLocked(ctx context.Context) {
	s.stopTimerLocked()

	if s.cred != nil {
		if err := s.authorizer.Revoke(ctx, s.cred.AccessToken); err != nil {
			log.Printf("Token revocation failed: %v", err)
		}
	}

	s.cred = nil
	s.identity = nil
	s.state = StateUnauthenticated

	if err := s.store.Delete(); err != nil {
		log.Printf("Deleting persisted session failed: %v", err)
	}
}

// CurrentCredential returns the live credential, or ErrNotAuthenticated when
// none is usable (signed out, mid-authorization, or expired).
func (s *Session) CurrentCredential() (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred == nil || s.state == StateUnauthenticated || s.state == StateAuthorizing {
		return nil, ErrNotAuthenticated
	}
	if s.cred.Expired(s.now()) {
		return nil, ErrNotAuthenticated
	}

	return s.cred, nil
}

// CurrentIdentity returns the resolved identity of the signed-in user.
func (s *Session) CurrentIdentity() (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil {
		return nil, ErrNotAuthenticated
	}

	return s.identity, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Close cancels the pending renewal timer without signing out. Used on
// process shutdown; the persisted snapshot survives for the next Restore.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
}

func (s *Session) persistLocked() error {
	snap := &Snapshot{Credential: s.cred, Identity: s.identity}
	if err := s.store.Save(snap); err != nil {
		return fmt.Errorf("store.Save failed: %w", err)
	}

	return nil
}

// scheduleRenewalLocked arms the proactive renewal timer from the remaining
// credential lifetime.
func (s *Session) scheduleRenewalLocked() {
	s.armLocked(renewalDelay(s.cred.ExpiresAt.Sub(s.now())))
}

// armLocked arms exactly one pending timer; re-arming cancels any prior one.
func (s *Session) armLocked(delay time.Duration) {
	s.stopTimerLocked()
	s.state = StateRefreshScheduled
	s.timer = time.AfterFunc(delay, s.renewTick)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// renewTick runs when the renewal timer fires. A stale fire after sign-out
// must not issue a refresh.
func (s *Session) renewTick() {
	ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUnauthenticated || s.cred == nil {
		return
	}

	if err := s.renewLocked(ctx); err != nil {
		log.Printf("Scheduled renewal failed: %v", err)
	}
}

// retryDelayLocked bounds the renewal retry by the credential's remaining
// lifetime.
func (s *Session) retryDelayLocked() time.Duration {
	delay := renewRetryInterval
	if remaining := s.cred.ExpiresAt.Sub(s.now()); remaining < delay {
		delay = remaining
	}
	if delay < 0 {
		delay = 0
	}

	return delay
}

// renewalDelay converts a remaining credential lifetime into the timer delay:
// renew renewalLead before expiry, clamped to zero.
func renewalDelay(untilExpiry time.Duration) time.Duration {
	delay := untilExpiry - renewalLead
	if delay < 0 {
		return 0
	}

	return delay
}
