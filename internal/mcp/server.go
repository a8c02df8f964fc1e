package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ohmbase/regsearch/internal/config"
	"github.com/ohmbase/regsearch/internal/pipeline"
	"github.com/ohmbase/regsearch/internal/store"
	"github.com/ohmbase/regsearch/pkg/version"
)

// Server is the MCP server for regsearch. It bridges AI clients with
// the regulation retrieval pipeline.
type Server struct {
	mcp      *mcp.Server
	pipeline *pipeline.Pipeline
	catalog  *store.Catalog // optional, enables document resources
	config   *config.Config
	logger   *slog.Logger

	mu sync.RWMutex
}

// SearchInput is the input schema for the search_regulations tool.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"the electrical question or regulation lookup to run"`
	ContextTag string `json:"context_tag,omitempty" jsonschema:"optional tag scoping the result cache, e.g. a job or conversation id"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 15"`
}

// SearchOutput is the structured output of the search_regulations tool.
type SearchOutput struct {
	Results           []SearchResultOutput `json:"results" jsonschema:"ranked regulation excerpts"`
	AverageConfidence float64              `json:"average_confidence" jsonschema:"mean confidence across results"`
	Intent            string               `json:"intent" jsonschema:"classified query intent"`
	CacheHit          bool                 `json:"cache_hit" jsonschema:"true if served from the result cache"`
	DegradedCalls     int                  `json:"degraded_calls,omitempty" jsonschema:"retrieval calls that failed and were skipped"`
}

// SearchResultOutput is a single regulation result with its confidence
// context, so clients can decide how much to trust each excerpt.
type SearchResultOutput struct {
	ID         string  `json:"id" jsonschema:"document identifier"`
	Source     string  `json:"source" jsonschema:"publication the excerpt comes from"`
	Section    string  `json:"section" jsonschema:"section or regulation number"`
	Content    string  `json:"content" jsonschema:"regulation text"`
	Authority  string  `json:"authority" jsonschema:"authority tier: statutory, normative, or guidance"`
	Score      float64 `json:"score" jsonschema:"final relevance score between 0 and 1"`
	Confidence float64 `json:"confidence" jsonschema:"overall confidence between 0 and 1"`
	Level      string  `json:"level" jsonschema:"confidence band: high, medium, or low"`
	Reasoning  string  `json:"reasoning" jsonschema:"why this result received its confidence band"`
}

// StatusInput is the (empty) input schema for the pipeline_status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the pipeline_status tool.
type StatusOutput struct {
	Version      string         `json:"version" jsonschema:"regsearch version"`
	Stores       []string       `json:"stores" jsonschema:"registered search store names"`
	CacheEnabled bool           `json:"cache_enabled" jsonschema:"whether the result cache is active"`
	RerankActive bool           `json:"rerank_active" jsonschema:"whether LLM reranking is active"`
	Runs         int64          `json:"runs" jsonschema:"pipeline runs this session"`
	CacheHitRate float64        `json:"cache_hit_rate" jsonschema:"fraction of runs served from cache"`
	IntentCounts map[string]int `json:"intent_counts,omitempty" jsonschema:"runs per classified intent"`
}

// Options configures a Server. Pipeline is required.
type Options struct {
	Pipeline *pipeline.Pipeline
	Catalog  *store.Catalog
	Config   *config.Config
	Logger   *slog.Logger
}

// NewServer creates a new MCP server around the retrieval pipeline.
func NewServer(opts Options) (*Server, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		pipeline: opts.Pipeline,
		catalog:  opts.Catalog,
		config:   cfg,
		logger:   logger.With("component", "mcp"),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "regsearch",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerMetricsResource()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "regsearch", version.Version
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_regulations",
		Description: "Search BS 7671 wiring regulations and guidance. Understands electrical scenarios (loads, locations, earthing systems), fans out to safety and protection concerns, and returns excerpts ranked with per-result confidence. Use for any regulatory question.",
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pipeline_status",
		Description: "Check which regulation stores are loaded and how the pipeline is performing. Use to verify the index is ready before searching.",
	}, s.mcpStatusHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 2))
}

// CallTool invokes a tool by name with raw arguments. The SDK drives
// the typed handlers in normal operation; this path serves direct
// embedding and tests.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_regulations":
		input := SearchInput{}
		if q, ok := args["query"].(string); ok {
			input.Query = q
		}
		if tag, ok := args["context_tag"].(string); ok {
			input.ContextTag = tag
		}
		if l, ok := args["limit"].(float64); ok {
			input.Limit = int(l)
		}
		return s.handleSearch(ctx, input)
	case "pipeline_status":
		return s.handleStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// mcpSearchHandler is the MCP SDK handler for search_regulations.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	output, err := s.handleSearch(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, *output, nil
}

// mcpStatusHandler is the MCP SDK handler for pipeline_status.
func (s *Server) mcpStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult,
	*StatusOutput,
	error,
) {
	output, err := s.handleStatus(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, output, nil
}

func (s *Server) handleSearch(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	if strings.TrimSpace(input.Query) == "" {
		return nil, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	limit := clampLimit(input.Limit, 15, 1, 15)

	s.logger.Info("search_regulations started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("limit", limit))

	resp, err := s.pipeline.Search(ctx, pipeline.Request{
		Query:      input.Query,
		ContextTag: input.ContextTag,
	})
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("search_regulations failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("search_regulations completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(resp.Results)),
		slog.Bool("cache_hit", resp.CacheHit))

	output := &SearchOutput{
		Results:           make([]SearchResultOutput, 0, limit),
		AverageConfidence: resp.AverageConfidence,
		Intent:            resp.Intent.String(),
		CacheHit:          resp.CacheHit,
		DegradedCalls:     resp.DegradedCalls,
	}
	for _, r := range resp.Results {
		if len(output.Results) >= limit {
			break
		}
		output.Results = append(output.Results, SearchResultOutput{
			ID:         r.ID,
			Source:     r.SourceLabel,
			Section:    r.Section,
			Content:    r.Content,
			Authority:  r.AuthorityTag,
			Score:      r.FinalScore,
			Confidence: r.Confidence.Overall,
			Level:      string(r.Confidence.Level),
			Reasoning:  r.Confidence.Reasoning,
		})
	}
	return output, nil
}

func (s *Server) handleStatus(_ context.Context) (*StatusOutput, error) {
	status := s.pipeline.CurrentStatus()

	output := &StatusOutput{
		Version:      version.Version,
		Stores:       status.Stores,
		CacheEnabled: status.CacheEnabled,
		RerankActive: status.RerankActive,
	}
	if snap := status.Metrics; snap != nil {
		output.Runs = snap.TotalRuns
		output.CacheHitRate = snap.CacheHitRate()
		if len(snap.IntentCounts) > 0 {
			output.IntentCounts = make(map[string]int, len(snap.IntentCounts))
			for intent, count := range snap.IntentCounts {
				output.IntentCounts[intent] = int(count)
			}
		}
	}
	return output, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	return s.pipeline.Close()
}

// clampLimit bounds a requested limit, substituting def when unset.
func clampLimit(v, def, min, max int) int {
	if v <= 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
