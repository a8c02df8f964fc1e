// Package lifecycle manages the local Ollama runtime that regsearch
// depends on for embeddings and oracle reranking. It detects whether
// Ollama is installed and running, starts it when possible, and pulls
// the models the configuration asks for.
package lifecycle

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const (
	// DefaultHost is where a stock Ollama install listens.
	DefaultHost = "http://localhost:11434"

	// EnvHost overrides the host detection when set.
	EnvHost = "REGSEARCH_OLLAMA_HOST"

	// DefaultEmbedModel is the embedding model regsearch expects.
	DefaultEmbedModel = "nomic-embed-text"

	// DefaultRerankModel is the generative model used as the rerank oracle.
	DefaultRerankModel = "qwen3:4b"

	statusTimeout = 2 * time.Second
	readyTimeout  = 30 * time.Second
)

// Status reports the state of the Ollama runtime and the models it holds.
type Status struct {
	Installed bool     `json:"installed"`
	Running   bool     `json:"running"`
	Host      string   `json:"host"`
	Remote    bool     `json:"remote"`
	Models    []string `json:"models,omitempty"`
}

// NotInstalledError indicates the ollama binary is not on this machine.
type NotInstalledError struct{}

func (e *NotInstalledError) Error() string {
	return "ollama is not installed"
}

// NotRunningError indicates Ollama is installed but the server is down.
type NotRunningError struct {
	Host string
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("ollama is not running at %s", e.Host)
}

// ModelNotFoundError indicates a required model has not been pulled.
type ModelNotFoundError struct {
	Model string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q is not available; run: ollama pull %s", e.Model, e.Model)
}

// Manager probes and controls a local Ollama server.
//
// The exec and filesystem hooks exist so tests can run without Ollama
// installed; production code uses the zero-value hooks from NewManager.
type Manager struct {
	host   string
	client *http.Client

	lookPath    func(string) (string, error)
	execCommand func(name string, arg ...string) *exec.Cmd
	fileExists  func(string) bool
}

// NewManager returns a Manager for the given host. An empty host falls
// back to REGSEARCH_OLLAMA_HOST, then the stock localhost address.
func NewManager(host string) *Manager {
	if host == "" {
		host = os.Getenv(EnvHost)
	}
	if host == "" {
		host = DefaultHost
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return &Manager{
		host:     strings.TrimRight(host, "/"),
		client:   &http.Client{Timeout: statusTimeout},
		lookPath: exec.LookPath,
		execCommand: func(name string, arg ...string) *exec.Cmd {
			return exec.Command(name, arg...)
		},
		fileExists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// Host returns the resolved server address.
func (m *Manager) Host() string {
	return m.host
}

// IsRemote reports whether the host points somewhere other than this
// machine. Start and IsInstalled are meaningless for remote hosts.
func (m *Manager) IsRemote() bool {
	u, err := url.Parse(m.host)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1", "":
		return false
	}
	return true
}

// IsInstalled reports whether the ollama binary can be found locally.
func (m *Manager) IsInstalled() bool {
	if _, err := m.lookPath("ollama"); err == nil {
		return true
	}
	// Common install locations outside PATH.
	candidates := []string{
		"/usr/local/bin/ollama",
		"/opt/homebrew/bin/ollama",
		"/Applications/Ollama.app/Contents/Resources/ollama",
	}
	for _, p := range candidates {
		if m.fileExists(p) {
			return true
		}
	}
	return false
}

// IsRunning reports whether the server answers on the configured host.
func (m *Manager) IsRunning(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the names of models the server has pulled.
func (m *Manager) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("building tags request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &NotRunningError{Host: m.host}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing models: server returned %s", resp.Status)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, mdl := range tags.Models {
		names = append(names, mdl.Name)
	}
	return names, nil
}

// HasModel reports whether the named model is available. A bare name
// matches any tag, so "nomic-embed-text" matches "nomic-embed-text:latest".
func (m *Manager) HasModel(ctx context.Context, model string) (bool, error) {
	models, err := m.ListModels(ctx)
	if err != nil {
		return false, err
	}
	want := baseName(model)
	for _, have := range models {
		if have == model || baseName(have) == want {
			return true, nil
		}
	}
	return false, nil
}

// Probe gathers the full runtime status in one pass.
func (m *Manager) Probe(ctx context.Context) Status {
	st := Status{
		Host:      m.host,
		Remote:    m.IsRemote(),
		Installed: !m.IsRemote() && m.IsInstalled(),
	}
	st.Running = m.IsRunning(ctx)
	if st.Running {
		if models, err := m.ListModels(ctx); err == nil {
			st.Models = models
		}
	}
	return st
}

// Start launches the Ollama server in the background. It returns
// immediately; callers should follow with WaitForReady.
func (m *Manager) Start(ctx context.Context) error {
	if m.IsRemote() {
		return fmt.Errorf("cannot start remote ollama at %s", m.host)
	}
	if !m.IsInstalled() {
		return &NotInstalledError{}
	}
	if m.IsRunning(ctx) {
		return nil
	}

	if runtime.GOOS == "darwin" && m.fileExists("/Applications/Ollama.app") {
		if err := m.execCommand("open", "-a", "Ollama").Start(); err == nil {
			return nil
		}
	}
	cmd := m.execCommand("ollama", "serve")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ollama serve: %w", err)
	}
	return nil
}

// WaitForReady polls until the server responds or the timeout passes.
func (m *Manager) WaitForReady(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = readyTimeout
	}
	deadline := time.Now().Add(timeout)
	backoff := 100 * time.Millisecond
	for {
		if m.IsRunning(ctx) {
			return nil
		}
		if time.Now().After(deadline) {
			return &NotRunningError{Host: m.host}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
}

// PullProgress reports streaming progress from a model pull.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
}

// PullModel downloads a model, invoking progress for each status line
// the server streams back. progress may be nil.
func (m *Manager) PullModel(ctx context.Context, model string, progress func(PullProgress)) error {
	body, err := json.Marshal(map[string]string{"name": model})
	if err != nil {
		return fmt.Errorf("encoding pull request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.host+"/api/pull", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("building pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Pulls can take many minutes; bypass the short status client.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return &NotRunningError{Host: m.host}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pulling %s: server returned %s", model, resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var p PullProgress
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			continue
		}
		if strings.HasPrefix(p.Status, "error") {
			return fmt.Errorf("pulling %s: %s", model, p.Status)
		}
		if progress != nil {
			progress(p)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading pull stream: %w", err)
	}
	return nil
}

// EnsureOpts controls how far EnsureModel goes to make a model usable.
type EnsureOpts struct {
	AutoStart bool
	AutoPull  bool
	Progress  func(PullProgress)
}

// EnsureModel verifies the server is up and holds the model, starting
// the server and pulling the model when the options allow. It returns
// a typed error naming the first unmet requirement otherwise.
func (m *Manager) EnsureModel(ctx context.Context, model string, opts EnsureOpts) error {
	if !m.IsRunning(ctx) {
		if !opts.AutoStart || m.IsRemote() {
			return &NotRunningError{Host: m.host}
		}
		if err := m.Start(ctx); err != nil {
			return err
		}
		if err := m.WaitForReady(ctx, readyTimeout); err != nil {
			return err
		}
	}
	ok, err := m.HasModel(ctx, model)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if !opts.AutoPull {
		return &ModelNotFoundError{Model: model}
	}
	return m.PullModel(ctx, model, opts.Progress)
}

// InstallInstructions returns platform guidance for installing Ollama.
func InstallInstructions() string {
	switch runtime.GOOS {
	case "darwin":
		return "Install Ollama from https://ollama.com/download or: brew install ollama"
	case "linux":
		return "Install Ollama with: curl -fsSL https://ollama.com/install.sh | sh"
	default:
		return "Install Ollama from https://ollama.com/download"
	}
}

func baseName(model string) string {
	if i := strings.Index(model, ":"); i >= 0 {
		return model[:i]
	}
	return model
}
