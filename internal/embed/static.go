package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// StaticModelName identifies the offline fallback embedder.
const StaticModelName = "static-hash"

var staticTokenPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)+|[0-9a-zA-Z]+`)

// StaticEmbedder produces deterministic hash-based embeddings with no
// external dependency. Quality is far below a real model, but it keeps
// semantic retrieval limping along when Ollama is absent, and gives tests
// stable vectors.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed hashes each token (and adjacent token pair) into the vector and
// normalizes the result. Identical text always yields identical vectors.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	tokens := staticTokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return vec, nil
	}

	for i, token := range tokens {
		e.accumulate(vec, token, 1.0)
		if i > 0 {
			e.accumulate(vec, tokens[i-1]+" "+token, 0.5)
		}
	}
	return normalizeVector(vec), nil
}

// accumulate spreads a token over three hashed positions with
// deterministic signs.
func (e *StaticEmbedder) accumulate(vec []float32, token string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(token))
	sum := h.Sum64()

	for i := 0; i < 3; i++ {
		pos := int(sum % uint64(e.dims))
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[pos] += sign * weight
		// Re-mix so each of the three positions is independent.
		sum = sum*0x9e3779b97f4a7c15 + 0x2545f4914f6cdd1d
	}
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

func (e *StaticEmbedder) Dimensions() int                  { return e.dims }
func (e *StaticEmbedder) ModelName() string                { return StaticModelName }
func (e *StaticEmbedder) Available(_ context.Context) bool { return true }
func (e *StaticEmbedder) Close() error                     { return nil }
