// Package gservice is the thin boundary to the Gmail API: sending messages
// and creating, updating and listing drafts with the session's live
// credential.
package gservice

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/hal9000y/gmail-compose/internal/auth"
	"github.com/hal9000y/gmail-compose/internal/wire"
)

const gmailUserID = "me"

type credentialSource interface {
	CurrentCredential() (*auth.Credential, error)
}

// NewMail creates a Mail gateway. Extra client options are applied after the
// authenticated HTTP client, which lets tests point the service at a fake
// endpoint.
func NewMail(cfg *oauth2.Config, creds credentialSource, opts ...option.ClientOption) *Mail {
	return &Mail{
		cfg:   cfg,
		creds: creds,
		opts:  opts,
	}
}

// Mail performs provider mail operations with the current credential.
type Mail struct {
	cfg   *oauth2.Config
	creds credentialSource
	opts  []option.ClientOption
}

// Send encodes and sends the email.
func (m *Mail) Send(ctx context.Context, email wire.Email) (*gmail.Message, error) {
	svc, err := m.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	msg, err := svc.Users.Messages.Send(gmailUserID, &gmail.Message{Raw: wire.Encode(email)}).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("messages.Send failed: %w", err)
	}

	return msg, nil
}

// SaveDraft creates a draft when the email has no id yet, and updates it in
// place otherwise.
func (m *Mail) SaveDraft(ctx context.Context, email wire.Email) (*gmail.Draft, error) {
	svc, err := m.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	draft := &gmail.Draft{Message: &gmail.Message{Raw: wire.Encode(email)}}

	if email.ID == "" {
		created, err := svc.Users.Drafts.Create(gmailUserID, draft).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("drafts.Create failed: %w", err)
		}

		return created, nil
	}

	updated, err := svc.Users.Drafts.Update(gmailUserID, email.ID, draft).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("drafts.Update %s failed: %w", email.ID, err)
	}

	return updated, nil
}

// ListDrafts fetches a bounded page of draft summaries, resolves each one to
// a full message tree concurrently, and returns them in summary order. The
// first failing resolution fails the whole call.
func (m *Mail) ListDrafts(ctx context.Context, maxResults int64) ([]*gmail.Draft, error) {
	svc, err := m.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	list, err := svc.Users.Drafts.List(gmailUserID).
		IncludeSpamTrash(false).
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("drafts.List failed: %w", err)
	}

	drafts := make([]*gmail.Draft, len(list.Drafts))

	g, ctx := errgroup.WithContext(ctx)
	for i, summary := range list.Drafts {
		g.Go(func() error {
			full, err := svc.Users.Drafts.Get(gmailUserID, summary.Id).
				Format("full").
				Context(ctx).
				Do()
			if err != nil {
				return fmt.Errorf("drafts.Get %s failed: %w", summary.Id, err)
			}
			drafts[i] = full

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return drafts, nil
}

// GetDraft fetches one draft with its full message tree.
func (m *Mail) GetDraft(ctx context.Context, id string) (*gmail.Draft, error) {
	svc, err := m.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	draft, err := svc.Users.Drafts.Get(gmailUserID, id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("drafts.Get %s failed: %w", id, err)
	}

	return draft, nil
}

func (m *Mail) newSvc(ctx context.Context) (*gmail.Service, error) {
	cred, err := m.creds.CurrentCredential()
	if err != nil {
		return nil, fmt.Errorf("creds.CurrentCredential failed: %w", err)
	}

	clt := m.cfg.Client(ctx, &oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   cred.TokenType,
		Expiry:      cred.ExpiresAt,
	})

	opts := append([]option.ClientOption{option.WithHTTPClient(clt)}, m.opts...)

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}

	return svc, nil
}
