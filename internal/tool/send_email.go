package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-compose/internal/wire"
)

// SendEmailRequest describes the email to send.
type SendEmailRequest struct {
	To          string              `json:"to" jsonschema:"recipient address"`
	Subject     string              `json:"subject" jsonschema:"email subject"`
	BodyHTML    string              `json:"body_html" jsonschema:"HTML body of the email"`
	Attachments []AttachmentPayload `json:"attachments,omitempty" jsonschema:"binary attachments"`
}

// SendEmailResponse reports the sent message.
type SendEmailResponse struct {
	MessageID string `json:"message_id" jsonschema:"provider-assigned message ID"`
	ThreadID  string `json:"thread_id,omitempty" jsonschema:"thread ID"`
}

type sendEmailSvc interface {
	Send(ctx context.Context, email wire.Email) (*gmail.Message, error)
}

// NewSendEmail creates a new SendEmail tool.
func NewSendEmail(svc sendEmailSvc) *SendEmail {
	return &SendEmail{svc: svc}
}

// SendEmail sends a composed email through the provider.
type SendEmail struct {
	svc sendEmailSvc
}

// SendEmail encodes the email and submits it for delivery.
func (t *SendEmail) SendEmail(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SendEmailRequest,
) (*mcp.CallToolResult, SendEmailResponse, error) {
	email, err := buildWireEmail("", input.To, input.Subject, input.BodyHTML, input.Attachments)
	if err != nil {
		return nil, SendEmailResponse{}, fmt.Errorf("buildWireEmail failed: %w", err)
	}

	msg, err := t.svc.Send(ctx, email)
	if err != nil {
		return nil, SendEmailResponse{}, fmt.Errorf("svc.Send failed: %w", err)
	}

	return nil, SendEmailResponse{
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
	}, nil
}
