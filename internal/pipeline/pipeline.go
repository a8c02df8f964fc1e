// Package pipeline orchestrates a full retrieval run: parse and
// decompose the query, fan out weighted search calls across the
// registered stores, then fuse, dedupe, rerank, and score the results.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ohmbase/regsearch/internal/cache"
	"github.com/ohmbase/regsearch/internal/config"
	"github.com/ohmbase/regsearch/internal/confidence"
	"github.com/ohmbase/regsearch/internal/dedupe"
	regerrors "github.com/ohmbase/regsearch/internal/errors"
	"github.com/ohmbase/regsearch/internal/fusion"
	"github.com/ohmbase/regsearch/internal/query"
	"github.com/ohmbase/regsearch/internal/rerank"
	"github.com/ohmbase/regsearch/internal/store"
	"github.com/ohmbase/regsearch/internal/telemetry"
)

// Request is one search invocation.
type Request struct {
	// Query is the user's free-text question.
	Query string `json:"query"`

	// ContextTag optionally scopes the cache key (e.g. a conversation
	// or project identifier). Runs with different tags never share
	// cached responses.
	ContextTag string `json:"contextTag,omitempty"`
}

// Result is one ranked search result with its confidence breakdown.
type Result struct {
	store.Candidate
	Confidence confidence.Metrics `json:"confidence"`
}

// Response is the outcome of a pipeline run.
type Response struct {
	Results           []Result             `json:"results"`
	AverageConfidence float64              `json:"averageConfidence"`
	Intent            query.Intent         `json:"intent"`
	Entities          query.ParsedEntities `json:"entities"`
	Implicit          query.ImplicitRefs   `json:"implicit"`
	CacheHit          bool                 `json:"cacheHit"`
	DegradedCalls     int                  `json:"degradedCalls"`
	OracleFallbacks   int                  `json:"oracleFallbacks"`
	Elapsed           time.Duration        `json:"elapsed"`
}

// cachedPayload is the portion of a Response persisted in the result
// cache. Run-specific fields (elapsed, degradation counters) are not
// meaningful on replay and are recomputed as zero.
type cachedPayload struct {
	Results           []Result             `json:"results"`
	AverageConfidence float64              `json:"averageConfidence"`
	Intent            query.Intent         `json:"intent"`
	Entities          query.ParsedEntities `json:"entities"`
	Implicit          query.ImplicitRefs   `json:"implicit"`
}

// Options configures a Pipeline. Stores is required; everything else
// falls back to a sensible default or is disabled when nil.
type Options struct {
	Config   *config.Config
	Stores   store.SearchStore
	Reranker *rerank.Reranker
	Cache    cache.Store
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger
}

// Pipeline runs the retrieval stages in order. It takes ownership of
// the stores, reranker, cache, and metrics it was built with; Close
// releases them all.
type Pipeline struct {
	cfg        *config.Config
	parser     *query.Parser
	decomposer *query.Decomposer
	stores     store.SearchStore
	fuser      *fusion.Fuser
	deduper    *dedupe.Deduper
	reranker   *rerank.Reranker
	scorer     *confidence.Scorer
	cache      cache.Store
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// New builds a pipeline from its stages.
func New(opts Options) (*Pipeline, error) {
	if opts.Stores == nil {
		return nil, regerrors.ValidationError("pipeline requires a search store", nil)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reranker := opts.Reranker
	if reranker == nil {
		// Even without an oracle, fallback scoring must still run so
		// every surviving candidate carries a final score
		// (finalScore = hybridScore, neutral oracle factor).
		reranker = rerank.NewReranker(nil, rerank.Config{
			Enabled:         false,
			BatchSize:       cfg.Rerank.BatchSize,
			MaxExcerptChars: cfg.Rerank.MaxExcerptChars,
			HybridBlend:     cfg.Rerank.HybridBlend,
			OracleBlend:     cfg.Rerank.OracleBlend,
		}, logger)
	}

	scorer := confidence.NewScorer(confidence.Weights{
		Similarity:     cfg.Confidence.SimilarityWeight,
		KeywordOverlap: cfg.Confidence.KeywordWeight,
		CrossEncoder:   cfg.Confidence.CrossEncoderWeight,
		Authority:      cfg.Confidence.AuthorityWeight,
		Importance:     cfg.Confidence.ImportanceWeight,
	}, nil)

	return &Pipeline{
		cfg:        cfg,
		parser:     query.NewParser(),
		decomposer: query.NewDecomposer(query.NewRuleClassifier()),
		stores:     opts.Stores,
		fuser:      fusion.NewFuser(cfg.Search.FusedLimit),
		deduper:    dedupe.New(cfg.Dedupe.JaccardThreshold, cfg.Dedupe.SectionPrefixLen),
		reranker:   reranker,
		scorer:     scorer,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
		logger:     logger.With("component", "pipeline"),
	}, nil
}

// retrievalCall is one fan-out search call before execution.
type retrievalCall struct {
	role      string
	weight    float64
	queryText string
}

// Search runs the pipeline for one request. The only errors returned
// are input validation failures; every upstream fault (store outage,
// embedding failure, oracle timeout) degrades the response instead.
func (p *Pipeline) Search(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()

	queryText := strings.TrimSpace(req.Query)
	if queryText == "" {
		return nil, regerrors.ValidationError("query is empty", nil)
	}
	if max := p.cfg.Query.MaxLength; max > 0 && len(queryText) > max {
		return nil, regerrors.ValidationError(
			fmt.Sprintf("query exceeds %d characters", max), nil)
	}

	key := cache.Key(queryText, req.ContextTag)
	if resp := p.cacheLookup(ctx, key); resp != nil {
		resp.Elapsed = time.Since(started)
		p.record(queryText, resp, started)
		return resp, nil
	}

	entities := p.parser.Parse(queryText)
	components := p.decomposer.Decompose(queryText, entities)

	calls := p.buildCalls(queryText, components)
	callResults, degraded := p.fanOut(ctx, calls)

	candidates := p.fuser.Fuse(callResults)
	candidates = p.deduper.Dedupe(candidates)

	candidates, fallbackBatches := p.reranker.Rerank(ctx, queryText, candidates)

	results := make([]Result, 0, len(candidates))
	metrics := make([]confidence.Metrics, 0, len(candidates))
	for _, c := range candidates {
		m := p.scorer.Score(c, queryText)
		results = append(results, Result{Candidate: *c, Confidence: m})
		metrics = append(metrics, m)
	}

	resp := &Response{
		Results:           results,
		AverageConfidence: confidence.Average(metrics),
		Intent:            components.Primary.Type,
		Entities:          entities,
		Implicit:          components.Implicit,
		DegradedCalls:     degraded,
		OracleFallbacks:   fallbackBatches,
		Elapsed:           time.Since(started),
	}

	p.cacheStore(ctx, queryText, req.ContextTag, resp)
	p.record(queryText, resp, started)
	return resp, nil
}

// buildCalls assembles the primary call plus up to MaxSecondaries
// concern calls. Concerns arrive priority-ordered from the decomposer.
func (p *Pipeline) buildCalls(queryText string, components query.Components) []retrievalCall {
	primaryWeight := p.cfg.Search.PrimaryWeight
	if primaryWeight <= 0 {
		primaryWeight = fusion.PrimaryCallWeight
	}
	secondaryWeight := p.cfg.Search.SecondaryWeight
	if secondaryWeight <= 0 {
		secondaryWeight = fusion.SecondaryCallWeight
	}

	calls := []retrievalCall{{
		role:      fusion.RolePrimary,
		weight:    primaryWeight,
		queryText: queryText,
	}}

	limit := p.cfg.Query.MaxSecondaries
	for _, concern := range components.Secondary {
		if len(calls)-1 >= limit {
			break
		}
		if len(concern.Keywords) == 0 {
			continue
		}
		calls = append(calls, retrievalCall{
			role:      fusion.RoleSecondary,
			weight:    secondaryWeight,
			queryText: strings.Join(concern.Keywords, " "),
		})
	}
	return calls
}

// fanOut executes the calls concurrently. A failed call contributes
// zero candidates and bumps the degraded counter; it never fails the
// run.
func (p *Pipeline) fanOut(ctx context.Context, calls []retrievalCall) ([]fusion.CallResult, int) {
	results := make([]fusion.CallResult, len(calls))
	failed := make([]bool, len(calls))

	topK := p.cfg.Search.PerCallTopK
	if topK <= 0 {
		topK = fusion.DefaultFusedLimit
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			callCtx := gctx
			if timeout := p.cfg.Search.CallTimeout; timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}

			candidates, err := p.stores.HybridSearch(callCtx, call.queryText, topK)
			if err != nil {
				p.logger.Warn("retrieval call failed, continuing without it",
					"role", call.role,
					"query", call.queryText,
					"error", err)
				failed[i] = true
				candidates = nil
			}
			results[i] = fusion.CallResult{
				Role:       call.role,
				Weight:     call.weight,
				Candidates: candidates,
			}
			return nil
		})
	}
	_ = g.Wait()

	degraded := 0
	for _, f := range failed {
		if f {
			degraded++
		}
	}
	return results, degraded
}

// cacheLookup returns a replayed response on a hit, nil on a miss.
// Cache faults are logged and treated as misses.
func (p *Pipeline) cacheLookup(ctx context.Context, key string) *Response {
	if p.cache == nil || !p.cfg.Cache.Enabled {
		return nil
	}
	entry, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("cache lookup failed", "error", err)
		return nil
	}
	if entry == nil {
		return nil
	}
	var payload cachedPayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		p.logger.Warn("cache entry unreadable, ignoring", "error", err)
		return nil
	}
	return &Response{
		Results:           payload.Results,
		AverageConfidence: payload.AverageConfidence,
		Intent:            payload.Intent,
		Entities:          payload.Entities,
		Implicit:          payload.Implicit,
		CacheHit:          true,
	}
}

// cacheStore persists the response. It runs on a context detached from
// the caller so an abandoned request still populates the cache.
func (p *Pipeline) cacheStore(ctx context.Context, queryText, contextTag string, resp *Response) {
	if p.cache == nil || !p.cfg.Cache.Enabled {
		return
	}
	payload, err := json.Marshal(cachedPayload{
		Results:           resp.Results,
		AverageConfidence: resp.AverageConfidence,
		Intent:            resp.Intent,
		Entities:          resp.Entities,
		Implicit:          resp.Implicit,
	})
	if err != nil {
		p.logger.Warn("cache payload encode failed", "error", err)
		return
	}
	entry := cache.NewEntry(queryText, contextTag, payload, resp.AverageConfidence, time.Now())
	if err := p.cache.Put(context.WithoutCancel(ctx), entry); err != nil {
		p.logger.Warn("cache store failed", "error", err)
	}
}

func (p *Pipeline) record(queryText string, resp *Response, started time.Time) {
	if p.metrics == nil {
		return
	}
	band, _ := confidence.Band(resp.AverageConfidence)
	p.metrics.Record(telemetry.RunEvent{
		Query:          queryText,
		Intent:         resp.Intent.String(),
		ResultCount:    len(resp.Results),
		Latency:        time.Since(started),
		CacheHit:       resp.CacheHit,
		DegradedCalls:  resp.DegradedCalls,
		OracleFallback: resp.OracleFallbacks > 0,
		ConfidenceBand: string(band),
		Timestamp:      time.Now(),
	})
}

// Status reports the pipeline's operational state.
type Status struct {
	Stores       []string            `json:"stores"`
	CacheEnabled bool                `json:"cacheEnabled"`
	RerankActive bool                `json:"rerankActive"`
	Metrics      *telemetry.Snapshot `json:"metrics,omitempty"`
}

// CurrentStatus snapshots the pipeline for status reporting.
func (p *Pipeline) CurrentStatus() Status {
	status := Status{
		CacheEnabled: p.cache != nil && p.cfg.Cache.Enabled,
		RerankActive: p.reranker.Active(),
	}
	if named, ok := p.stores.(interface{ Names() []string }); ok {
		status.Stores = named.Names()
	} else {
		status.Stores = []string{p.stores.Name()}
	}
	if p.metrics != nil {
		status.Metrics = p.metrics.Snapshot()
	}
	return status
}

// Close releases every owned component. Safe to call once.
func (p *Pipeline) Close() error {
	var errs []error
	if err := p.reranker.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.stores.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.cache != nil {
		if err := p.cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.metrics != nil {
		if err := p.metrics.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
