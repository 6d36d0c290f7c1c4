package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	contentIndexURI  = "folio://content"
	contentURIPrefix = "folio://content/"
)

// registerResources adds the read-only content resources.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			contentIndexURI,
			"Portfolio Content Index",
			mcp.WithResourceDescription(
				"Every content bucket with its default flag and last update time.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleContentIndexResource,
	)

	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			contentURIPrefix+"{type}",
			"Portfolio Content Bucket",
			mcp.WithTemplateDescription(
				"The JSON document stored in one content bucket, or its default.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleContentResource,
	)
}

func (s *MCPServer) handleContentIndexResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	buckets, err := s.content.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	return jsonContents(contentIndexURI, buckets)
}

// handleContentResource serves "folio://content/{type}".
func (s *MCPServer) handleContentResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	key := strings.TrimPrefix(uri, contentURIPrefix)
	if key == "" || key == uri {
		return nil, fmt.Errorf("invalid content URI %q: expected %s{type}", uri, contentURIPrefix)
	}

	resp, err := s.content.GetBucket(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read bucket %q: %w", key, err)
	}
	return jsonContents(uri, resp)
}
