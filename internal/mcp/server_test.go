package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohmbase/regsearch/internal/config"
	"github.com/ohmbase/regsearch/internal/pipeline"
	"github.com/ohmbase/regsearch/internal/store"
)

type stubStore struct {
	candidates []*store.Candidate
	err        error
}

func (s *stubStore) Name() string { return "stub" }

func (s *stubStore) HybridSearch(_ context.Context, _ string, k int) ([]*store.Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*store.Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		dup := *c
		out = append(out, &dup)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func (s *stubStore) Close() error { return nil }

func testCandidates() []*store.Candidate {
	return []*store.Candidate{
		{
			ID:           "bs7671:701.411.3.3",
			SourceLabel:  "BS 7671:2018+A2:2022",
			Section:      "701.411.3.3",
			Content:      "In locations containing a bath or shower, additional protection by RCD shall be provided.",
			AuthorityTag: store.AuthorityNormative,
			Similarity:   0.88,
			HybridScore:  0.82,
		},
		{
			ID:           "gn8:5.2",
			SourceLabel:  "Guidance Note 8",
			Section:      "5.2",
			Content:      "Earthing and bonding in locations of increased shock risk.",
			AuthorityTag: store.AuthorityGuidance,
			Similarity:   0.70,
			HybridScore:  0.64,
		},
	}
}

func newTestServer(t *testing.T, st store.SearchStore) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.NewConfig()
	cfg.Cache.Enabled = false

	p, err := pipeline.New(pipeline.Options{
		Config: cfg,
		Stores: st,
		Logger: logger,
	})
	require.NoError(t, err)

	s, err := NewServer(Options{Pipeline: p, Config: cfg, Logger: logger})
	require.NoError(t, err)
	return s
}

func TestNewServer_RequiresPipeline(t *testing.T) {
	_, err := NewServer(Options{})
	require.Error(t, err)
}

func TestCallTool_SearchRegulations(t *testing.T) {
	s := newTestServer(t, &stubStore{candidates: testCandidates()})

	result, err := s.CallTool(context.Background(), "search_regulations", map[string]any{
		"query": "rcd in bathroom",
	})
	require.NoError(t, err)

	output, ok := result.(*SearchOutput)
	require.True(t, ok)
	require.Len(t, output.Results, 2)
	assert.Equal(t, "bs7671:701.411.3.3", output.Results[0].ID)
	assert.Equal(t, "701.411.3.3", output.Results[0].Section)
	assert.NotEmpty(t, output.Results[0].Level)
	assert.NotEmpty(t, output.Results[0].Reasoning)
	assert.False(t, output.CacheHit)
}

func TestCallTool_EmptyQueryRejected(t *testing.T) {
	s := newTestServer(t, &stubStore{})

	_, err := s.CallTool(context.Background(), "search_regulations", map[string]any{
		"query": "   ",
	})
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestCallTool_LimitClamped(t *testing.T) {
	s := newTestServer(t, &stubStore{candidates: testCandidates()})

	result, err := s.CallTool(context.Background(), "search_regulations", map[string]any{
		"query": "bonding",
		"limit": float64(1),
	})
	require.NoError(t, err)
	output := result.(*SearchOutput)
	assert.Len(t, output.Results, 1)
}

func TestCallTool_StoreOutageStillAnswers(t *testing.T) {
	s := newTestServer(t, &stubStore{err: errors.New("index offline")})

	result, err := s.CallTool(context.Background(), "search_regulations", map[string]any{
		"query": "rcd in bathroom",
	})
	require.NoError(t, err)
	output := result.(*SearchOutput)
	assert.Empty(t, output.Results)
	assert.Greater(t, output.DegradedCalls, 0)
}

func TestCallTool_UnknownTool(t *testing.T) {
	s := newTestServer(t, &stubStore{})

	_, err := s.CallTool(context.Background(), "nonsense", nil)
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestCallTool_PipelineStatus(t *testing.T) {
	s := newTestServer(t, &stubStore{})

	result, err := s.CallTool(context.Background(), "pipeline_status", nil)
	require.NoError(t, err)

	status, ok := result.(*StatusOutput)
	require.True(t, ok)
	assert.Equal(t, []string{"stub"}, status.Stores)
	assert.False(t, status.CacheEnabled)
}

func TestRegisterResources_FromCatalog(t *testing.T) {
	catalog, err := store.OpenCatalog(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })

	require.NoError(t, catalog.Upsert(context.Background(), []*store.Document{
		{
			ID:           "bs7671:525.1",
			SourceLabel:  "BS 7671:2018+A2:2022",
			Section:      "525.1",
			Content:      "Voltage drop limits between the origin and load points.",
			AuthorityTag: store.AuthorityNormative,
		},
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.NewConfig()
	cfg.Cache.Enabled = false
	p, err := pipeline.New(pipeline.Options{Config: cfg, Stores: &stubStore{}, Logger: logger})
	require.NoError(t, err)

	s, err := NewServer(Options{Pipeline: p, Catalog: catalog, Config: cfg, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, s.RegisterResources(context.Background()))
}

func TestServe_UnknownTransport(t *testing.T) {
	s := newTestServer(t, &stubStore{})
	err := s.Serve(context.Background(), "sse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestInfo(t *testing.T) {
	s := newTestServer(t, &stubStore{})
	name, _ := s.Info()
	assert.Equal(t, "regsearch", name)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 15, clampLimit(0, 15, 1, 15))
	assert.Equal(t, 15, clampLimit(-3, 15, 1, 15))
	assert.Equal(t, 15, clampLimit(50, 15, 1, 15))
	assert.Equal(t, 5, clampLimit(5, 15, 1, 15))
}
