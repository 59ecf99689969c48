// Package wire serializes structured emails into the provider's raw multipart
// wire format and decodes provider message trees back into editable emails.
// Pure transformation, no I/O.
package wire

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/api/gmail/v1"
)

// DecodeFailurePlaceholder replaces a message body that could not be decoded;
// the document must still be editable.
const DecodeFailurePlaceholder = "<p>Could not decode email body.</p>"

// Attachment is a binary email attachment.
type Attachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// Email is the structured, editable form of a message. ID is the
// provider-assigned draft identifier, empty until first saved.
type Email struct {
	ID          string
	To          string
	Subject     string
	BodyHTML    string
	Attachments []Attachment
}

// Encode serializes the email into the base64url raw message the provider
// accepts: a multipart/mixed body with one HTML part followed by the
// attachments in input order. The HTML is carried verbatim.
func Encode(email Email) string {
	boundary := "----=" + uuid.NewString()

	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", email.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", email.Subject)
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", email.BodyHTML)

	for _, att := range email.Attachments {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: %s; name=%q\r\n", att.MimeType, att.Filename)
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n", att.Filename)
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		fmt.Fprintf(&b, "%s\r\n\r\n", base64.StdEncoding.EncodeToString(att.Data))
	}

	fmt.Fprintf(&b, "--%s--", boundary)

	return base64.RawURLEncoding.EncodeToString([]byte(b.String()))
}

// Decode turns a provider message tree back into an editable email. The
// recipient and subject come from a case-insensitive header lookup; the body
// is the first text/html node found depth-first, or the root itself when the
// tree has no parts. Attachments are not reconstructed.
func Decode(payload *gmail.MessagePart) Email {
	if payload == nil {
		return Email{}
	}

	email := Email{
		To:      header(payload.Headers, "To"),
		Subject: header(payload.Headers, "Subject"),
	}

	candidate := payload
	if len(payload.Parts) > 0 {
		candidate = findHTMLPart(payload.Parts)
	}

	if candidate != nil && candidate.Body != nil && candidate.Body.Data != "" {
		email.BodyHTML = decodeBase64URL(candidate.Body.Data)
	}

	return email
}

func header(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}

	return ""
}

func findHTMLPart(parts []*gmail.MessagePart) *gmail.MessagePart {
	for _, part := range parts {
		if part.MimeType == "text/html" {
			return part
		}
		if len(part.Parts) > 0 {
			if nested := findHTMLPart(part.Parts); nested != nil {
				return nested
			}
		}
	}

	return nil
}

func decodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return DecodeFailurePlaceholder
		}
	}

	return string(decoded)
}
