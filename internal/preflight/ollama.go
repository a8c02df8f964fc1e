package preflight

import (
	"context"
	"fmt"

	"github.com/ohmbase/regsearch/internal/embed"
	"github.com/ohmbase/regsearch/internal/lifecycle"
)

// CheckOllama probes the Ollama server and the models the pipeline
// wants. None of these checks are required: without Ollama the
// pipeline runs on the static embedder and skips oracle reranking.
func (c *Checker) CheckOllama(ctx context.Context) []CheckResult {
	if c.cfg.Embeddings.Provider == embed.ProviderStatic {
		return []CheckResult{{
			Name:    "ollama",
			Status:  StatusPass,
			Message: "skipped (static embedder configured)",
		}}
	}

	mgr := lifecycle.NewManager(c.cfg.Embeddings.OllamaHost)
	results := []CheckResult{c.checkServer(ctx, mgr)}
	if results[0].Status != StatusPass {
		return results
	}

	results = append(results, c.checkModel(ctx, mgr, "embedding_model", c.cfg.Embeddings.Model))
	if c.cfg.Rerank.Enabled {
		rerankMgr := mgr
		if c.cfg.Rerank.Endpoint != "" && c.cfg.Rerank.Endpoint != mgr.Host() {
			rerankMgr = lifecycle.NewManager(c.cfg.Rerank.Endpoint)
		}
		results = append(results, c.checkModel(ctx, rerankMgr, "rerank_model", c.cfg.Rerank.Model))
	}
	return results
}

func (c *Checker) checkServer(ctx context.Context, mgr *lifecycle.Manager) CheckResult {
	result := CheckResult{Name: "ollama"}

	if mgr.IsRunning(ctx) {
		result.Status = StatusPass
		result.Message = "running at " + mgr.Host()
		return result
	}

	result.Status = StatusWarn
	if !mgr.IsRemote() && !mgr.IsInstalled() {
		result.Message = "not installed; semantic search will use the static embedder"
		result.Details = lifecycle.InstallInstructions()
	} else {
		result.Message = "not responding at " + mgr.Host()
		result.Details = "Start it with: ollama serve"
	}
	return result
}

func (c *Checker) checkModel(ctx context.Context, mgr *lifecycle.Manager, name, model string) CheckResult {
	result := CheckResult{Name: name}

	ok, err := mgr.HasModel(ctx, model)
	switch {
	case err != nil:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot list models: %v", err)
	case ok:
		result.Status = StatusPass
		result.Message = model + " available"
	default:
		result.Status = StatusWarn
		result.Message = model + " not pulled"
		result.Details = "Run: ollama pull " + model
	}
	return result
}
