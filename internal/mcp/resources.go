package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterResources publishes every catalogued regulation document as
// an MCP resource under the regulation:// scheme. Call after the
// server is created and before serving. A server built without a
// catalog serves tools only.
func (s *Server) RegisterResources(ctx context.Context) error {
	if s.catalog == nil {
		return nil
	}

	docs, err := s.catalog.All(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	for _, doc := range docs {
		uri := "regulation://" + doc.ID
		name := doc.Section
		if name == "" {
			name = doc.ID
		}
		s.mcp.AddResource(
			&mcp.Resource{
				Name:        name,
				URI:         uri,
				Description: fmt.Sprintf("%s §%s (%s)", doc.SourceLabel, doc.Section, doc.AuthorityTag),
				MIMEType:    "text/plain",
			},
			s.makeDocumentHandler(doc.ID),
		)
	}

	s.logger.Info("registered resources", "count", len(docs))
	return nil
}

// makeDocumentHandler creates a read handler for one document ID. The
// handler re-reads the catalog on every call so re-indexed content is
// always current.
func (s *Server) makeDocumentHandler(id string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		doc, err := s.catalog.Get(ctx, id)
		if err != nil {
			return nil, MapError(err)
		}
		if doc == nil {
			return nil, NewResourceNotFoundError("regulation://" + id)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      "regulation://" + id,
					MIMEType: "text/plain",
					Text:     doc.Section + "\n\n" + doc.Content,
				},
			},
		}, nil
	}
}

// registerMetricsResource publishes session telemetry as JSON.
func (s *Server) registerMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "pipeline_metrics",
			URI:         "regsearch://metrics",
			Description: "Query pattern telemetry for the retrieval pipeline",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			snap := s.pipeline.CurrentStatus().Metrics
			if snap == nil {
				return nil, NewInvalidParamsError("pipeline metrics not available")
			}

			content, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return nil, MapError(err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      "regsearch://metrics",
						MIMEType: "application/json",
						Text:     string(content),
					},
				},
			}, nil
		},
	)
}
