package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-compose/internal/wire"
)

// SaveDraftRequest describes the draft to create or update. When draft_id is
// set the existing draft is replaced in place.
type SaveDraftRequest struct {
	DraftID     string              `json:"draft_id,omitempty" jsonschema:"existing draft ID to update, omit to create"`
	To          string              `json:"to" jsonschema:"recipient address"`
	Subject     string              `json:"subject" jsonschema:"email subject"`
	BodyHTML    string              `json:"body_html" jsonschema:"HTML body of the email"`
	Attachments []AttachmentPayload `json:"attachments,omitempty" jsonschema:"binary attachments"`
}

// SaveDraftResponse reports the saved draft.
type SaveDraftResponse struct {
	DraftID string `json:"draft_id" jsonschema:"provider-assigned draft ID"`
}

// ListDraftsRequest bounds the drafts page.
type ListDraftsRequest struct {
	MaxResults int64 `json:"max_results,omitempty" jsonschema:"max drafts to return"`
}

// ListDraftsResponse contains decoded draft summaries.
type ListDraftsResponse struct {
	Drafts       []DraftSummary `json:"drafts" jsonschema:"array of draft summaries"`
	TotalResults int            `json:"total_results" jsonschema:"number of drafts returned"`
}

// GetDraftRequest identifies the draft to load.
type GetDraftRequest struct {
	DraftID string `json:"draft_id" jsonschema:"draft ID to load"`
}

// GetDraftResponse is the draft decoded back into editable fields.
type GetDraftResponse struct {
	DraftID  string `json:"draft_id" jsonschema:"provider-assigned draft ID"`
	To       string `json:"to" jsonschema:"recipient address"`
	Subject  string `json:"subject" jsonschema:"email subject"`
	BodyHTML string `json:"body_html" jsonschema:"HTML body recovered from the draft"`
}

type draftsSvc interface {
	SaveDraft(ctx context.Context, email wire.Email) (*gmail.Draft, error)
	ListDrafts(ctx context.Context, maxResults int64) ([]*gmail.Draft, error)
	GetDraft(ctx context.Context, id string) (*gmail.Draft, error)
}

// NewDrafts creates the draft management tools.
func NewDrafts(svc draftsSvc) *Drafts {
	return &Drafts{svc: svc}
}

// Drafts creates, updates, lists and loads provider drafts.
type Drafts struct {
	svc draftsSvc
}

// SaveDraft persists the email as a provider draft.
func (t *Drafts) SaveDraft(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SaveDraftRequest,
) (*mcp.CallToolResult, SaveDraftResponse, error) {
	email, err := buildWireEmail(input.DraftID, input.To, input.Subject, input.BodyHTML, input.Attachments)
	if err != nil {
		return nil, SaveDraftResponse{}, fmt.Errorf("buildWireEmail failed: %w", err)
	}

	draft, err := t.svc.SaveDraft(ctx, email)
	if err != nil {
		return nil, SaveDraftResponse{}, fmt.Errorf("svc.SaveDraft failed: %w", err)
	}

	return nil, SaveDraftResponse{DraftID: draft.Id}, nil
}

// ListDrafts returns decoded summaries of the user's drafts.
func (t *Drafts) ListDrafts(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListDraftsRequest,
) (*mcp.CallToolResult, ListDraftsResponse, error) {
	drafts, err := t.svc.ListDrafts(ctx, normalizeMaxResults(input.MaxResults))
	if err != nil {
		return nil, ListDraftsResponse{}, fmt.Errorf("svc.ListDrafts failed: %w", err)
	}

	summaries := make([]DraftSummary, 0, len(drafts))
	for _, draft := range drafts {
		summaries = append(summaries, draftSummary(draft))
	}

	return nil, ListDraftsResponse{
		Drafts:       summaries,
		TotalResults: len(summaries),
	}, nil
}

// GetDraft loads one draft back into editable fields. Attachments are not
// reconstructed; edits start from the recovered body.
func (t *Drafts) GetDraft(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetDraftRequest,
) (*mcp.CallToolResult, GetDraftResponse, error) {
	draft, err := t.svc.GetDraft(ctx, input.DraftID)
	if err != nil {
		return nil, GetDraftResponse{}, fmt.Errorf("svc.GetDraft failed: %w", err)
	}

	email := decodeDraft(draft)

	return nil, GetDraftResponse{
		DraftID:  draft.Id,
		To:       email.To,
		Subject:  email.Subject,
		BodyHTML: email.BodyHTML,
	}, nil
}

func draftSummary(draft *gmail.Draft) DraftSummary {
	summary := DraftSummary{DraftID: draft.Id}

	if draft.Message != nil {
		summary.Snippet = draft.Message.Snippet
		email := decodeDraft(draft)
		summary.To = email.To
		summary.Subject = email.Subject
	}

	return summary
}

func decodeDraft(draft *gmail.Draft) wire.Email {
	if draft.Message == nil {
		return wire.Email{}
	}

	return wire.Decode(draft.Message.Payload)
}
