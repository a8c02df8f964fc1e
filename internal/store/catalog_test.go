package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := OpenCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func TestCatalogUpsertAndGet(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.Upsert(ctx, testDocuments()))

	doc, err := cat.Get(ctx, "bs7671:701.411.3.3")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "BS 7671:2018+A2:2022", doc.SourceLabel)
	assert.Equal(t, AuthorityNormative, doc.AuthorityTag)

	missing, err := cat.Get(ctx, "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCatalogUpsertReplaces(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.Upsert(ctx, []*Document{
		{ID: "x", SourceLabel: "v1", Content: "old text"},
	}))
	require.NoError(t, cat.Upsert(ctx, []*Document{
		{ID: "x", SourceLabel: "v2", Content: "new text"},
	}))

	doc, err := cat.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "v2", doc.SourceLabel)
	assert.Equal(t, "new text", doc.Content)

	n, err := cat.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCatalogGetMany(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, cat.Upsert(ctx, testDocuments()))

	docs, err := cat.GetMany(ctx, []string{"gn8:5.2", "no-such-id", "bs7671:411.3.3"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Contains(t, docs, "gn8:5.2")
	assert.Contains(t, docs, "bs7671:411.3.3")
	assert.NotContains(t, docs, "no-such-id")

	empty, err := cat.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCatalogDelete(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, cat.Upsert(ctx, testDocuments()))

	require.NoError(t, cat.Delete(ctx, []string{"gn8:5.2"}))

	n, err := cat.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	doc, err := cat.Get(ctx, "gn8:5.2")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestCatalogAll(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, cat.Upsert(ctx, testDocuments()))

	docs, err := cat.All(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	// Ordered by id.
	assert.Equal(t, "bs7671:411.3.3", docs[0].ID)
	assert.Equal(t, "bs7671:701.411.3.3", docs[1].ID)
	assert.Equal(t, "gn8:5.2", docs[2].ID)
}
