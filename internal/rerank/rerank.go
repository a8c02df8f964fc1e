package rerank

import (
	"context"
	"log/slog"
	"sort"

	"github.com/ohmbase/regsearch/internal/errors"
	"github.com/ohmbase/regsearch/internal/store"
)

const (
	// DefaultBatchSize matches the fused-list cap, so the common case
	// is a single oracle call.
	DefaultBatchSize = 15

	// DefaultMaxExcerptChars bounds each excerpt sent to the oracle.
	DefaultMaxExcerptChars = 600

	// Blend weights between the fused retrieval score and the oracle
	// score.
	DefaultHybridBlend = 0.6
	DefaultOracleBlend = 0.4

	// neutralOracleScore is the cross-encoder value assigned when the
	// oracle cannot be used.
	neutralOracleScore = 0.5
)

// Config tunes reranking.
type Config struct {
	Enabled         bool
	BatchSize       int
	MaxExcerptChars int
	HybridBlend     float64
	OracleBlend     float64
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxExcerptChars <= 0 {
		c.MaxExcerptChars = DefaultMaxExcerptChars
	}
	if c.HybridBlend <= 0 {
		c.HybridBlend = DefaultHybridBlend
	}
	if c.OracleBlend <= 0 {
		c.OracleBlend = DefaultOracleBlend
	}
}

// Reranker applies oracle relevance scores to fused candidates. Oracle
// failures never fail the request: the affected batch keeps its retrieval
// ranking via neutral fallback scores, and a circuit breaker stops
// hammering a dead oracle.
type Reranker struct {
	oracle  Oracle
	breaker *errors.CircuitBreaker
	cfg     Config
	logger  *slog.Logger
}

func NewReranker(oracle Oracle, cfg Config, logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Reranker{
		oracle:  oracle,
		breaker: errors.NewCircuitBreaker("rerank-oracle"),
		cfg:     cfg,
		logger:  logger,
	}
}

// Active reports whether oracle scoring is in play, as opposed to the
// fallback path that keeps retrieval order.
func (r *Reranker) Active() bool {
	return r.cfg.Enabled && r.oracle != nil
}

// Rerank scores candidates in batches and re-sorts by final score. It
// always returns exactly as many candidates as it was given, each with a
// final score set. The second return value counts batches that fell back
// to neutral scoring.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []*store.Candidate) ([]*store.Candidate, int) {
	if len(candidates) == 0 {
		return candidates, 0
	}

	fallbackBatches := 0
	if !r.cfg.Enabled || r.oracle == nil {
		for _, c := range candidates {
			r.fallbackScore(c)
		}
		fallbackBatches = (len(candidates) + r.cfg.BatchSize - 1) / r.cfg.BatchSize
	} else {
		for start := 0; start < len(candidates); start += r.cfg.BatchSize {
			end := min(start+r.cfg.BatchSize, len(candidates))
			if !r.scoreBatch(ctx, query, candidates[start:end]) {
				fallbackBatches++
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FinalScore != candidates[j].FinalScore {
			return candidates[i].FinalScore > candidates[j].FinalScore
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates, fallbackBatches
}

// scoreBatch scores one batch through the breaker. Reports whether the
// oracle scores were applied.
func (r *Reranker) scoreBatch(ctx context.Context, query string, batch []*store.Candidate) bool {
	if !r.breaker.Allow() {
		r.logger.Debug("oracle circuit open, using fallback scores",
			"batch_size", len(batch))
		for _, c := range batch {
			r.fallbackScore(c)
		}
		return false
	}

	excerpts := make([]string, len(batch))
	for i, c := range batch {
		excerpts[i] = r.excerpt(c)
	}

	scores, err := r.oracle.ScoreBatch(ctx, query, excerpts)
	if err != nil {
		r.breaker.RecordFailure()
		r.logger.Warn("oracle scoring failed, using fallback scores",
			"batch_size", len(batch), "error", err)
		for _, c := range batch {
			r.fallbackScore(c)
		}
		return false
	}
	r.breaker.RecordSuccess()

	for i, c := range batch {
		c.CrossEncoderScore = float64(scores[i]) / 100
		c.FinalScore = c.HybridScore*r.cfg.HybridBlend + c.CrossEncoderScore*r.cfg.OracleBlend
	}
	return true
}

// fallbackScore keeps the retrieval ranking when the oracle is out of the
// picture. A candidate with no retrieval score at all gets a flat neutral
// value.
func (r *Reranker) fallbackScore(c *store.Candidate) {
	c.CrossEncoderScore = neutralOracleScore
	if c.HybridScore > 0 {
		c.FinalScore = c.HybridScore
	} else {
		c.FinalScore = neutralOracleScore
	}
}

// excerpt builds the oracle-visible text for a candidate, section first so
// clause identity survives truncation.
func (r *Reranker) excerpt(c *store.Candidate) string {
	text := c.Content
	if c.Section != "" {
		text = c.Section + ": " + text
	}
	if len(text) > r.cfg.MaxExcerptChars {
		cut := r.cfg.MaxExcerptChars
		for cut > 0 && text[cut]&0xC0 == 0x80 {
			cut--
		}
		text = text[:cut]
	}
	return text
}

// Close closes the underlying oracle.
func (r *Reranker) Close() error {
	if r.oracle == nil {
		return nil
	}
	return r.oracle.Close()
}
