package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohmbase/regsearch/internal/config"
	"github.com/ohmbase/regsearch/internal/store"
	"github.com/ohmbase/regsearch/internal/ui"
)

func testRenderer() ui.Renderer {
	return ui.NewRenderer(ui.Config{Output: new(bytes.Buffer), ForcePlain: true})
}

func TestReadCorpus_RoutesByStoreField(t *testing.T) {
	input := strings.Join([]string{
		`{"id": "bs7671:701.411.3.3", "source_label": "BS 7671", "section": "701.411.3.3", "content": "Supplementary bonding.", "authority_tag": "normative", "store": "wiring-regulations"}`,
		`{"id": "gn8:5.2", "source_label": "Guidance Note 8", "section": "5.2", "content": "Bonding guidance.", "authority_tag": "guidance", "store": "guidance-notes"}`,
		`{"id": "bs7671:433.1.1", "source_label": "BS 7671", "section": "433.1.1", "content": "Overload protection."}`,
	}, "\n")

	grouped := make(map[string][]*store.Document)
	accepted, skipped, err := readCorpus(strings.NewReader(input), grouped, "wiring-regulations", false, testRenderer())

	require.NoError(t, err)
	assert.Equal(t, 3, accepted)
	assert.Zero(t, skipped)
	assert.Len(t, grouped["wiring-regulations"], 2, "explicit route plus default route")
	assert.Len(t, grouped["guidance-notes"], 1)
	assert.Equal(t, "bs7671:701.411.3.3", grouped["wiring-regulations"][0].ID)
}

func TestReadCorpus_ForceStoreOverridesRouting(t *testing.T) {
	input := `{"id": "gn8:5.2", "source_label": "Guidance Note 8", "section": "5.2", "content": "Bonding.", "store": "guidance-notes"}`

	grouped := make(map[string][]*store.Document)
	accepted, _, err := readCorpus(strings.NewReader(input), grouped, "wiring-regulations", true, testRenderer())

	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.Len(t, grouped["wiring-regulations"], 1)
	assert.Empty(t, grouped["guidance-notes"])
}

func TestReadCorpus_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"id": "ok:1", "content": "Valid."}`,
		`not json at all`,
		`{"id": "", "content": "Missing id."}`,
		`{"id": "no-content:1"}`,
		``,
		`{"id": "ok:2", "content": "Also valid."}`,
	}, "\n")

	grouped := make(map[string][]*store.Document)
	accepted, skipped, err := readCorpus(strings.NewReader(input), grouped, "wiring-regulations", false, testRenderer())

	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 3, skipped, "malformed JSON, missing id, missing content")
}

func TestStorePath_FallsBackToDataDir(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Stores = []config.StoreConfig{{Name: "wiring-regulations", Path: "/tmp/wr", Weight: 0.95}}

	assert.Equal(t, "/tmp/wr", storePath(cfg, "wiring-regulations"))
	assert.Equal(t,
		filepath.Join(config.DefaultDataDir(), "stores", "on-site-guide"),
		storePath(cfg, "on-site-guide"))
}

func TestStoreConfigured(t *testing.T) {
	cfg := config.NewConfig()

	assert.True(t, storeConfigured(cfg, "wiring-regulations"))
	assert.True(t, storeConfigured(cfg, "guidance-notes"))
	assert.False(t, storeConfigured(cfg, "nope"))
}

func TestClearStoreData(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.db"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bm25.bleve"), 0o755))
	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("keep"), 0o644))

	require.NoError(t, clearStoreData(dir))

	assert.NoFileExists(t, filepath.Join(dir, "catalog.db"))
	assert.NoDirExists(t, filepath.Join(dir, "bm25.bleve"))
	assert.FileExists(t, keep, "unrelated files are preserved")
}

func TestIndexCmd_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a real index on disk")
	}

	tmpDir := t.TempDir()
	storeDir := filepath.Join(tmpDir, "stores", "wiring-regulations")

	configYAML := `stores:
  - name: wiring-regulations
    path: ` + storeDir + `
    weight: 0.95
embeddings:
  provider: static
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".regsearch.yaml"), []byte(configYAML), 0o644))

	corpus := strings.Join([]string{
		`{"id": "bs7671:701.411.3.3", "source_label": "BS 7671:2018+A2:2022", "section": "701.411.3.3", "content": "Supplementary equipotential bonding in locations containing a bath or shower.", "authority_tag": "normative"}`,
		`{"id": "bs7671:433.1.1", "source_label": "BS 7671:2018+A2:2022", "section": "433.1.1", "content": "Protection against overload current.", "authority_tag": "normative"}`,
	}, "\n")
	corpusPath := filepath.Join(tmpDir, "corpus.jsonl")
	require.NoError(t, os.WriteFile(corpusPath, []byte(corpus), 0o644))

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", corpusPath, "--plain"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Complete: 2 documents", output)
	assert.FileExists(t, filepath.Join(storeDir, "catalog.db"))
	assert.DirExists(t, filepath.Join(storeDir, "bm25.bleve"))
}
