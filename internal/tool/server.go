package tool

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type mailSvc interface {
	sendEmailSvc
	draftsSvc
}

// NewServer creates an MCP server with the compose tools.
func NewServer(svc mailSvc) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "gmail-compose", Version: "v1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "send_email",
		Description: "Send an email with an HTML body and optional attachments",
	}, NewSendEmail(svc).SendEmail)

	drafts := NewDrafts(svc)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_draft",
		Description: "Create a Gmail draft, or update an existing one when draft_id is set",
	}, drafts.SaveDraft)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_drafts",
		Description: "List Gmail drafts with recipient, subject and preview",
	}, drafts.ListDrafts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_draft",
		Description: "Load a Gmail draft back into editable fields for further composition",
	}, drafts.GetDraft)

	return server
}
