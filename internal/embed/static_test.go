package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder(256)
	ctx := context.Background()

	a, err := e.Embed(ctx, "9.5kW shower 15m from consumer unit")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "9.5kW shower 15m from consumer unit")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := e.Embed(ctx, "socket outlets in a garage")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestStaticEmbedderUnitLength(t *testing.T) {
	e := NewStaticEmbedder(128)
	vec, err := e.Embed(context.Background(), "supplementary bonding in bathroom zones")
	require.NoError(t, err)
	require.Len(t, vec, 128)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
}

func TestStaticEmbedderEmptyText(t *testing.T) {
	e := NewStaticEmbedder(64)
	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, vec, 64)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedderDefaults(t *testing.T) {
	e := NewStaticEmbedder(0)
	assert.Equal(t, DefaultDimensions, e.Dimensions())
	assert.Equal(t, StaticModelName, e.ModelName())
	assert.True(t, e.Available(context.Background()))
}

func TestStaticEmbedderBatch(t *testing.T) {
	e := NewStaticEmbedder(64)
	ctx := context.Background()

	batch, err := e.EmbedBatch(ctx, []string{"rcd protection", "cable sizing"})
	require.NoError(t, err)
	require.Len(t, batch, 2)

	single, err := e.Embed(ctx, "rcd protection")
	require.NoError(t, err)
	assert.Equal(t, single, batch[0])
}

func TestTruncateInput(t *testing.T) {
	assert.Equal(t, "abc", truncateInput("abc", 10))
	assert.Equal(t, "ab", truncateInput("abcdef", 2))
	assert.Equal(t, "abcdef", truncateInput("abcdef", 0))

	// Never splits a multi-byte rune.
	text := "abécd" // é is two bytes starting at index 2
	assert.Equal(t, "ab", truncateInput(text, 3))
	assert.Equal(t, "abé", truncateInput(text, 4))
}
