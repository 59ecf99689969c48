package tool

import (
	"encoding/base64"
	"fmt"

	"github.com/hal9000y/gmail-compose/internal/wire"
)

// AttachmentPayload is a binary attachment carried through tool input.
type AttachmentPayload struct {
	Filename   string `json:"filename" jsonschema:"original filename"`
	MimeType   string `json:"mime_type" jsonschema:"MIME type"`
	DataBase64 string `json:"data_base64" jsonschema:"attachment bytes, base64-encoded"`
}

// DraftSummary contains the editable essentials of a provider draft.
type DraftSummary struct {
	DraftID string `json:"draft_id" jsonschema:"provider-assigned draft ID"`
	To      string `json:"to" jsonschema:"recipient address"`
	Subject string `json:"subject" jsonschema:"email subject"`
	Snippet string `json:"snippet,omitempty" jsonschema:"message preview"`
}

func buildWireEmail(id, to, subject, bodyHTML string, attachments []AttachmentPayload) (wire.Email, error) {
	email := wire.Email{
		ID:       id,
		To:       to,
		Subject:  subject,
		BodyHTML: bodyHTML,
	}

	for _, att := range attachments {
		data, err := base64.StdEncoding.DecodeString(att.DataBase64)
		if err != nil {
			return wire.Email{}, fmt.Errorf("decoding attachment %s failed: %w", att.Filename, err)
		}

		email.Attachments = append(email.Attachments, wire.Attachment{
			Filename: att.Filename,
			MimeType: att.MimeType,
			Data:     data,
		})
	}

	return email, nil
}

func normalizeMaxResults(maxResults int64) int64 {
	if maxResults == 0 {
		return 20
	}
	if maxResults > 50 {
		return 50
	}
	return maxResults
}
