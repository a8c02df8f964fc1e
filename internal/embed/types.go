package embed

import (
	"context"
	"math"
	"time"
	"unicode/utf8"
)

const (
	// DefaultDimensions matches nomic-embed-text.
	DefaultDimensions = 768

	// DefaultMaxInputBytes bounds the text sent to the embedding
	// provider. Regulation excerpts are short; anything longer is a
	// concatenated table and the tail adds nothing.
	DefaultMaxInputBytes = 8000

	// DefaultBatchSize is the number of texts per provider request.
	DefaultBatchSize = 16

	// DefaultMaxRetries is the number of attempts per embedding call.
	DefaultMaxRetries = 3

	// DefaultWarmTimeout applies when the model answered recently.
	DefaultWarmTimeout = 30 * time.Second

	// DefaultColdTimeout applies on the first call or after the
	// provider has likely unloaded the model.
	DefaultColdTimeout = 120 * time.Second

	// ModelUnloadThreshold is how long Ollama keeps an idle model
	// loaded before it must be reloaded from disk.
	ModelUnloadThreshold = 5 * time.Minute
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// truncateInput caps text at maxBytes without splitting a UTF-8 sequence.
func truncateInput(text string, maxBytes int) string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// normalizeVector scales a vector to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
