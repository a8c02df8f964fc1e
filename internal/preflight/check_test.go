package preflight

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohmbase/regsearch/internal/config"
	"github.com/ohmbase/regsearch/internal/embed"
)

func TestCheckStatus_String(t *testing.T) {
	assert.Equal(t, "PASS", StatusPass.String())
	assert.Equal(t, "WARN", StatusWarn.String())
	assert.Equal(t, "FAIL", StatusFail.String())
}

func TestChecker_CheckWritePermissions(t *testing.T) {
	c := New(config.NewConfig())

	result := c.CheckWritePermissions(filepath.Join(t.TempDir(), "data"))

	assert.Equal(t, StatusPass, result.Status)
	assert.True(t, result.Required)
}

func TestChecker_CheckDiskSpace(t *testing.T) {
	c := New(config.NewConfig())

	result := c.CheckDiskSpace(t.TempDir())

	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "free")
}

func TestChecker_CheckFileDescriptors(t *testing.T) {
	c := New(config.NewConfig())

	result := c.CheckFileDescriptors()

	assert.Equal(t, "file_descriptors", result.Name)
	assert.True(t, result.Required)
	assert.NotEmpty(t, result.Message)
}

func TestChecker_CheckStores_NotIndexed(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Stores = []config.StoreConfig{
		{Name: "wiring-regulations", Path: t.TempDir(), Weight: 0.95},
	}
	c := New(cfg)

	results := c.CheckStores()

	require.Len(t, results, 1)
	assert.Equal(t, "store:wiring-regulations", results[0].Name)
	assert.Equal(t, StatusWarn, results[0].Status)
	assert.Contains(t, results[0].Details, "regsearch index")
}

func TestChecker_CheckStores_Indexed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.db"), []byte("x"), 0o644))
	cfg := config.NewConfig()
	cfg.Stores = []config.StoreConfig{
		{Name: "guidance-notes", Path: dir, Weight: 0.9},
	}
	c := New(cfg)

	results := c.CheckStores()

	require.Len(t, results, 1)
	assert.Equal(t, StatusPass, results[0].Status)
}

func TestChecker_CheckOllama_StaticProviderSkips(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = embed.ProviderStatic
	c := New(cfg)

	results := c.CheckOllama(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, StatusPass, results[0].Status)
	assert.Contains(t, results[0].Message, "skipped")
}

func TestChecker_CheckOllama_ServerUpWithModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"nomic-embed-text:latest"},{"name":"qwen3:4b"}]}`)
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.Embeddings.OllamaHost = srv.URL
	cfg.Rerank.Endpoint = srv.URL
	c := New(cfg)

	results := c.CheckOllama(context.Background())

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, StatusPass, r.Status, r.Name)
	}
}

func TestChecker_CheckOllama_ServerDownWarns(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Embeddings.OllamaHost = "http://127.0.0.1:1"
	c := New(cfg)

	results := c.CheckOllama(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, StatusWarn, results[0].Status)
	assert.False(t, results[0].IsCritical())
}

func TestChecker_CheckOllama_MissingRerankModelWarns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"nomic-embed-text:latest"}]}`)
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.Embeddings.OllamaHost = srv.URL
	cfg.Rerank.Endpoint = srv.URL
	c := New(cfg)

	results := c.CheckOllama(context.Background())

	require.Len(t, results, 3)
	assert.Equal(t, "rerank_model", results[2].Name)
	assert.Equal(t, StatusWarn, results[2].Status)
	assert.Contains(t, results[2].Details, "ollama pull qwen3:4b")
}

func TestChecker_SummaryStatus(t *testing.T) {
	c := New(config.NewConfig())

	assert.Equal(t, "ready", c.SummaryStatus([]CheckResult{
		{Status: StatusPass, Required: true},
	}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{
		{Status: StatusPass, Required: true},
		{Status: StatusWarn},
	}))
	assert.Equal(t, "failed", c.SummaryStatus([]CheckResult{
		{Status: StatusFail, Required: true},
	}))
}

func TestChecker_HasCriticalFailures(t *testing.T) {
	c := New(config.NewConfig())

	assert.False(t, c.HasCriticalFailures([]CheckResult{
		{Status: StatusFail, Required: false},
		{Status: StatusWarn, Required: true},
	}))
	assert.True(t, c.HasCriticalFailures([]CheckResult{
		{Status: StatusFail, Required: true},
	}))
}

func TestChecker_PrintResults(t *testing.T) {
	var buf bytes.Buffer
	c := New(config.NewConfig(), WithOutput(&buf), WithVerbose(true))

	c.PrintResults([]CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "10.0 GB free", Required: true},
		{Name: "ollama", Status: StatusWarn, Message: "not responding", Details: "Start it with: ollama serve"},
	})

	out := buf.String()
	assert.Contains(t, out, "regsearch System Check")
	assert.Contains(t, out, "[PASS] disk_space")
	assert.Contains(t, out, "Status: READY_WITH_WARNINGS")
	assert.Contains(t, out, "1 warning(s):")
	assert.Contains(t, out, "Start it with: ollama serve")
}
