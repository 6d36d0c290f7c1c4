package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/foliodev/folio/internal/model"
	"github.com/foliodev/folio/internal/service"
)

func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("folio_list_buckets",
			mcp.WithDescription(
				"List the portfolio content buckets (profile, projects, achievements, notes, "+
					"opensource, settings and any custom keys). Each entry says whether the "+
					"bucket still holds its default document and when it was last written.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListBuckets,
	)

	srv.AddTool(
		mcp.NewTool("folio_get_content",
			mcp.WithDescription(
				"Read one content bucket as JSON. Buckets that were never written return "+
					"their default document with isDefault set to true.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("type",
				mcp.Required(),
				mcp.Description("Bucket key, e.g. \"profile\" or \"projects\""),
			),
		),
		s.handleGetContent,
	)

	srv.AddTool(
		mcp.NewTool("folio_get_portfolio",
			mcp.WithDescription(
				"Read every well-known bucket in one call and return them as a single "+
					"object keyed by bucket name.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleGetPortfolio,
	)
}

func (s *MCPServer) handleListBuckets(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buckets, err := s.content.ListBuckets(ctx)
	if err != nil {
		return toolError("failed to list buckets")
	}
	return successJSON(model.ListResponse[model.BucketSummary]{Resource: buckets, Count: len(buckets)})
}

func (s *MCPServer) handleGetContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := requireString(request, "type")
	if err != nil {
		return toolError("%s", err.Error())
	}
	resp, err := s.content.GetBucket(ctx, key)
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			return toolError("%s", ve.Message)
		}
		return toolError("failed to read bucket %q", key)
	}
	return successJSON(resp)
}

func (s *MCPServer) handleGetPortfolio(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := make(map[string]json.RawMessage, len(model.KnownBuckets))
	for _, key := range model.KnownBuckets {
		resp, err := s.content.GetBucket(ctx, key)
		if err != nil {
			return toolError("failed to read bucket %q", key)
		}
		out[key] = resp.Data
	}
	return successJSON(out)
}
