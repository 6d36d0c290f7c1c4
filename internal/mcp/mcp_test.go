package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/foliodev/folio/internal/model"
	"github.com/foliodev/folio/internal/service"
	"github.com/foliodev/folio/internal/store"
)

func newTestServer(t *testing.T) (*MCPServer, *store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore("")
	if err != nil {
		t.Fatalf("store.NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewMCPServer(service.NewContentService(st, nil), "test", nil), st
}

func callTool(t *testing.T, s *MCPServer, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("tool returned protocol error: %v", err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func TestGetContentDefault(t *testing.T) {
	s, _ := newTestServer(t)

	res := callTool(t, s, s.handleGetContent, map[string]any{"type": "projects"})
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	var got model.BucketResponse
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.IsDefault || string(got.Data) != "[]" {
		t.Errorf("got %+v, want default empty list", got)
	}
}

func TestGetContentStored(t *testing.T) {
	s, st := newTestServer(t)
	if _, err := st.PutBucket(context.Background(), "profile", json.RawMessage(`{"name":"Ada"}`)); err != nil {
		t.Fatalf("PutBucket: %v", err)
	}

	res := callTool(t, s, s.handleGetContent, map[string]any{"type": "Profile"})
	if !strings.Contains(resultText(t, res), `"Ada"`) {
		t.Errorf("result = %s", resultText(t, res))
	}
}

func TestGetContentErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing type", map[string]any{}, "missing required parameter"},
		{"bad key", map[string]any{"type": "no spaces"}, "Invalid content type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, s, s.handleGetContent, tt.args)
			if !res.IsError {
				t.Fatal("expected tool error")
			}
			if txt := resultText(t, res); !strings.Contains(txt, tt.want) {
				t.Errorf("error = %q, want substring %q", txt, tt.want)
			}
		})
	}
}

func TestListBucketsTool(t *testing.T) {
	s, st := newTestServer(t)
	if _, err := st.PutBucket(context.Background(), "settings", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("PutBucket: %v", err)
	}

	res := callTool(t, s, s.handleListBuckets, nil)
	var got model.ListResponse[model.BucketSummary]
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Count != len(model.KnownBuckets) {
		t.Fatalf("count = %d, want %d", got.Count, len(model.KnownBuckets))
	}
	for _, b := range got.Resource {
		if b.Key == "settings" && b.IsDefault {
			t.Error("settings should not be default after a write")
		}
		if b.Key == "profile" && !b.IsDefault {
			t.Error("profile should still be default")
		}
	}
}

func TestGetPortfolioTool(t *testing.T) {
	s, _ := newTestServer(t)

	res := callTool(t, s, s.handleGetPortfolio, nil)
	var got model.Portfolio
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Settings.Theme != "dark" {
		t.Errorf("settings theme = %q, want dark default", got.Settings.Theme)
	}
	if got.Projects == nil {
		t.Error("projects should decode as an empty list")
	}
}

func TestContentResource(t *testing.T) {
	s, _ := newTestServer(t)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "folio://content/settings"
	contents, err := s.handleContentResource(context.Background(), req)
	if err != nil {
		t.Fatalf("handleContentResource: %v", err)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content is %T", contents[0])
	}
	if text.URI != req.Params.URI || text.MIMEType != "application/json" {
		t.Errorf("unexpected contents %+v", text)
	}

	req.Params.URI = "folio://other/settings"
	if _, err := s.handleContentResource(context.Background(), req); err == nil {
		t.Error("expected error for foreign URI")
	}
}

func TestContentIndexResource(t *testing.T) {
	s, _ := newTestServer(t)

	contents, err := s.handleContentIndexResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("handleContentIndexResource: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents)
	if !strings.Contains(text.Text, `"opensource"`) {
		t.Errorf("index missing known bucket: %s", text.Text)
	}
}

func TestReadOnlyAnnotation(t *testing.T) {
	ann := readOnlyAnnotation()
	if ann.ReadOnlyHint == nil || !*ann.ReadOnlyHint {
		t.Error("ReadOnlyHint should be true")
	}
}
