package tool_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-compose/internal/wire"
)

type mailSvcMock struct {
	SendFunc       func(ctx context.Context, email wire.Email) (*gmail.Message, error)
	SaveDraftFunc  func(ctx context.Context, email wire.Email) (*gmail.Draft, error)
	ListDraftsFunc func(ctx context.Context, maxResults int64) ([]*gmail.Draft, error)
	GetDraftFunc   func(ctx context.Context, id string) (*gmail.Draft, error)
}

func (m *mailSvcMock) Send(ctx context.Context, email wire.Email) (*gmail.Message, error) {
	return m.SendFunc(ctx, email)
}

func (m *mailSvcMock) SaveDraft(ctx context.Context, email wire.Email) (*gmail.Draft, error) {
	return m.SaveDraftFunc(ctx, email)
}

func (m *mailSvcMock) ListDrafts(ctx context.Context, maxResults int64) ([]*gmail.Draft, error) {
	return m.ListDraftsFunc(ctx, maxResults)
}

func (m *mailSvcMock) GetDraft(ctx context.Context, id string) (*gmail.Draft, error) {
	return m.GetDraftFunc(ctx, id)
}

type testSession struct {
	ctx    context.Context
	client *mcp.ClientSession
	close  func()
}

func newTestSession(t *testing.T, server *mcp.Server) *testSession {
	t.Helper()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ctx := context.Background()

	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	clientSession, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	return &testSession{
		ctx:    ctx,
		client: clientSession,
		close: func() {
			_ = clientSession.Close()
			_ = serverSession.Close()
		},
	}
}

func callTool[T any](t *testing.T, s *testSession, name string, args any) (T, *mcp.CallToolResult) {
	t.Helper()

	result, err := s.client.CallTool(s.ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	var response T
	if !result.IsError {
		require.NoError(t, json.Unmarshal(
			[]byte(result.Content[0].(*mcp.TextContent).Text),
			&response,
		))
	}

	return response, result
}
