package auth

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// HTTPHandler drives the interactive sign-in flow and session teardown over
// HTTP: consent redirect, authorization callback, sign-out, status.
type HTTPHandler struct {
	session *Session
}

// NewHTTPHandler creates an HTTP handler for the OAuth2 flow.
func NewHTTPHandler(session *Session) *HTTPHandler {
	return &HTTPHandler{session: session}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("redirect") != "" {
		consentURL, err := h.session.ConsentURL()
		if err != nil {
			log.Println("session.ConsentURL failed", err)
			http.Error(w, "Unable to start authorization", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, consentURL, http.StatusMovedPermanently)
		return
	}

	if r.URL.Query().Get("signout") != "" {
		h.session.SignOut(r.Context())
		http.Redirect(w, r, r.URL.EscapedPath(), http.StatusFound)
		return
	}

	if code := r.URL.Query().Get("code"); code != "" {
		state := r.URL.Query().Get("state")
		if err := h.session.SignIn(r.Context(), code, state); err != nil {
			log.Println("session.SignIn failed", err)
			http.Error(w, "Unable to authorize provided code", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, r.URL.EscapedPath(), http.StatusFound)
		return
	}

	cred, err := h.session.CurrentCredential()
	if errors.Is(err, ErrNotAuthenticated) {
		http.Error(w, "Not signed in", http.StatusUnauthorized)
		return
	}

	ident, err := h.session.CurrentIdentity()
	if err != nil {
		http.Error(w, "Not signed in", http.StatusUnauthorized)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "Signed in as %s <%s>, token: %s, expires: %s",
		ident.DisplayName, ident.EmailAddress,
		maskLeft(cred.AccessToken), cred.ExpiresAt.Format(time.RFC3339))
}

func maskLeft(s string) string {
	rs := []rune(s)
	for i := 0; i < len(rs)-4; i++ {
		rs[i] = 'X'
	}
	return string(rs)
}
