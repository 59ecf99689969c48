package gservice_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/hal9000y/gmail-compose/internal/auth"
	"github.com/hal9000y/gmail-compose/internal/gservice"
	"github.com/hal9000y/gmail-compose/internal/wire"
)

type credsMock struct {
	CurrentCredentialFunc func() (*auth.Credential, error)
}

func (m *credsMock) CurrentCredential() (*auth.Credential, error) {
	return m.CurrentCredentialFunc()
}

func liveCreds() *credsMock {
	return &credsMock{
		CurrentCredentialFunc: func() (*auth.Credential, error) {
			return &auth.Credential{
				AccessToken: "tok-live",
				TokenType:   "Bearer",
				IssuedAt:    time.Now(),
				ExpiresAt:   time.Now().Add(time.Hour),
			}, nil
		},
	}
}

func newGateway(endpoint string, creds *credsMock) *gservice.Mail {
	return gservice.NewMail(&oauth2.Config{}, creds, option.WithEndpoint(endpoint))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func draftWithRecipient(id, to string) *gmail.Draft {
	return &gmail.Draft{
		Id: id,
		Message: &gmail.Message{
			Id:      "m-" + id,
			Snippet: "snippet " + id,
			Payload: &gmail.MessagePart{
				MimeType: "text/html",
				Headers: []*gmail.MessagePartHeader{
					{Name: "To", Value: to},
					{Name: "Subject", Value: "Subject " + id},
				},
				Body: &gmail.MessagePartBody{
					Data: base64.RawURLEncoding.EncodeToString([]byte("<p>" + id + "</p>")),
				},
			},
		},
	}
}

func TestSend(t *testing.T) {
	var gotAuth, gotRaw string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var msg gmail.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		gotRaw = msg.Raw

		writeJSON(t, w, &gmail.Message{Id: "m-1", ThreadId: "t-1"})
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	gw := newGateway(ts.URL, liveCreds())

	msg, err := gw.Send(context.Background(), wire.Email{
		To:       "a@b.com",
		Subject:  "Hi",
		BodyHTML: "<p>Hello</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "m-1", msg.Id)
	assert.Equal(t, "Bearer tok-live", gotAuth)

	decoded, err := base64.RawURLEncoding.DecodeString(gotRaw)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(decoded), "To: a@b.com\r\nSubject: Hi\r\n"))
}

func TestSendWithoutCredential(t *testing.T) {
	creds := &credsMock{
		CurrentCredentialFunc: func() (*auth.Credential, error) {
			return nil, auth.ErrNotAuthenticated
		},
	}

	gw := newGateway("http://127.0.0.1:0", creds)

	_, err := gw.Send(context.Background(), wire.Email{To: "a@b.com"})
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)
}

func TestSaveDraftCreatesWithoutID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /gmail/v1/users/me/drafts", func(w http.ResponseWriter, r *http.Request) {
		var draft gmail.Draft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		require.NotNil(t, draft.Message)
		assert.NotEmpty(t, draft.Message.Raw)

		writeJSON(t, w, &gmail.Draft{Id: "d-new"})
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	gw := newGateway(ts.URL, liveCreds())

	draft, err := gw.SaveDraft(context.Background(), wire.Email{To: "a@b.com", Subject: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "d-new", draft.Id)
}

func TestSaveDraftUpdatesInPlace(t *testing.T) {
	var gotID string
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /gmail/v1/users/me/drafts/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotID = r.PathValue("id")
		writeJSON(t, w, &gmail.Draft{Id: gotID})
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	gw := newGateway(ts.URL, liveCreds())

	draft, err := gw.SaveDraft(context.Background(), wire.Email{ID: "d-7", To: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, "d-7", draft.Id)
	assert.Equal(t, "d-7", gotID)
}

func TestListDraftsResolvesEachSummaryInOrder(t *testing.T) {
	var mu sync.Mutex
	gets := 0

	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/drafts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("maxResults"))

		writeJSON(t, w, &gmail.ListDraftsResponse{
			Drafts: []*gmail.Draft{{Id: "d1"}, {Id: "d2"}, {Id: "d3"}},
		})
	})
	mux.HandleFunc("GET /gmail/v1/users/me/drafts/{id}", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gets++
		mu.Unlock()

		id := r.PathValue("id")
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		writeJSON(t, w, draftWithRecipient(id, id+"@test.com"))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	gw := newGateway(ts.URL, liveCreds())

	drafts, err := gw.ListDrafts(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	assert.Equal(t, 3, gets)

	for i, id := range []string{"d1", "d2", "d3"} {
		assert.Equal(t, id, drafts[i].Id, "summary order must be preserved")
	}
}

func TestListDraftsSurfacesFirstResolutionError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/drafts", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, &gmail.ListDraftsResponse{
			Drafts: []*gmail.Draft{{Id: "d1"}, {Id: "d2"}, {Id: "d3"}},
		})
	})
	mux.HandleFunc("GET /gmail/v1/users/me/drafts/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "d2" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = fmt.Fprint(w, `{"error":{"code":500,"message":"simulated provider error"}}`)
			return
		}
		writeJSON(t, w, draftWithRecipient(r.PathValue("id"), "a@test.com"))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	gw := newGateway(ts.URL, liveCreds())

	_, err := gw.ListDrafts(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drafts.Get d2 failed")
}

func TestGetDraft(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/drafts/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, draftWithRecipient(r.PathValue("id"), "a@b.com"))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	gw := newGateway(ts.URL, liveCreds())

	draft, err := gw.GetDraft(context.Background(), "d-9")
	require.NoError(t, err)
	assert.Equal(t, "d-9", draft.Id)

	email := wire.Decode(draft.Message.Payload)
	assert.Equal(t, "a@b.com", email.To)
	assert.Equal(t, "<p>d-9</p>", email.BodyHTML)
}
