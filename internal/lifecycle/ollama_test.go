package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	m := NewManager(srv.URL)
	m.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	m.fileExists = func(string) bool { return false }
	return m
}

func tagsHandler(models ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"models":[`)
		for i, m := range models {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"name":%q}`, m)
		}
		fmt.Fprint(w, `]}`)
	})
}

func TestNewManager_HostNormalization(t *testing.T) {
	// Given a bare host:port
	m := NewManager("localhost:11434")

	// Then the scheme is added and trailing slashes trimmed
	assert.Equal(t, "http://localhost:11434", m.Host())
}

func TestNewManager_EnvOverride(t *testing.T) {
	t.Setenv(EnvHost, "http://ollama.internal:11434")

	m := NewManager("")

	assert.Equal(t, "http://ollama.internal:11434", m.Host())
	assert.True(t, m.IsRemote())
}

func TestManager_IsRemote(t *testing.T) {
	assert.False(t, NewManager("http://localhost:11434").IsRemote())
	assert.False(t, NewManager("http://127.0.0.1:11434").IsRemote())
	assert.True(t, NewManager("http://gpu-box:11434").IsRemote())
}

func TestManager_IsRunning(t *testing.T) {
	// Given a server answering /api/tags
	m := testManager(t, tagsHandler())

	// Then the manager reports it as running
	assert.True(t, m.IsRunning(context.Background()))
}

func TestManager_IsRunning_ServerDown(t *testing.T) {
	m := NewManager("http://127.0.0.1:1")

	assert.False(t, m.IsRunning(context.Background()))
}

func TestManager_ListModels(t *testing.T) {
	m := testManager(t, tagsHandler("nomic-embed-text:latest", "qwen3:4b"))

	models, err := m.ListModels(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"nomic-embed-text:latest", "qwen3:4b"}, models)
}

func TestManager_HasModel_MatchesBareName(t *testing.T) {
	// Given the server holds a tagged variant of the model
	m := testManager(t, tagsHandler("nomic-embed-text:latest"))

	// When checking by bare name
	ok, err := m.HasModel(context.Background(), "nomic-embed-text")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManager_HasModel_Missing(t *testing.T) {
	m := testManager(t, tagsHandler("llama3:8b"))

	ok, err := m.HasModel(context.Background(), DefaultEmbedModel)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_Probe(t *testing.T) {
	m := testManager(t, tagsHandler("qwen3:4b"))

	st := m.Probe(context.Background())

	assert.True(t, st.Running)
	assert.False(t, st.Installed)
	assert.Equal(t, []string{"qwen3:4b"}, st.Models)
}

func TestManager_IsInstalled_ChecksKnownPaths(t *testing.T) {
	m := NewManager(DefaultHost)
	m.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	m.fileExists = func(path string) bool { return path == "/usr/local/bin/ollama" }

	assert.True(t, m.IsInstalled())
}

func TestManager_WaitForReady_TimesOut(t *testing.T) {
	m := NewManager("http://127.0.0.1:1")

	err := m.WaitForReady(context.Background(), 200*time.Millisecond)

	var nre *NotRunningError
	require.ErrorAs(t, err, &nre)
}

func TestManager_PullModel_StreamsProgress(t *testing.T) {
	m := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pull", r.URL.Path)
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"downloading","total":100,"completed":50}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	}))

	var seen []string
	err := m.PullModel(context.Background(), "nomic-embed-text", func(p PullProgress) {
		seen = append(seen, p.Status)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"pulling manifest", "downloading", "success"}, seen)
}

func TestManager_PullModel_ReportsServerError(t *testing.T) {
	m := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"error: model not found"}`)
	}))

	err := m.PullModel(context.Background(), "no-such-model", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestManager_EnsureModel_AlreadyAvailable(t *testing.T) {
	m := testManager(t, tagsHandler("nomic-embed-text:latest"))

	err := m.EnsureModel(context.Background(), "nomic-embed-text", EnsureOpts{})

	assert.NoError(t, err)
}

func TestManager_EnsureModel_MissingWithoutAutoPull(t *testing.T) {
	m := testManager(t, tagsHandler())

	err := m.EnsureModel(context.Background(), "qwen3:4b", EnsureOpts{})

	var mnf *ModelNotFoundError
	require.ErrorAs(t, err, &mnf)
	assert.Equal(t, "qwen3:4b", mnf.Model)
}

func TestManager_EnsureModel_ServerDown(t *testing.T) {
	m := NewManager("http://127.0.0.1:1")

	err := m.EnsureModel(context.Background(), DefaultEmbedModel, EnsureOpts{})

	var nre *NotRunningError
	require.ErrorAs(t, err, &nre)
}
