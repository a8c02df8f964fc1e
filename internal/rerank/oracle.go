// Package rerank asks an LLM oracle to score fused candidates against the
// original query and blends those scores into the final ranking.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultOracleEndpoint = "http://localhost:11434"
	DefaultOracleModel    = "qwen3:4b"

	// DefaultOracleTimeout is generous because small local models can
	// take tens of seconds on a 15-candidate batch.
	DefaultOracleTimeout = 55 * time.Second
)

// Oracle scores a batch of candidate excerpts for relevance to a query.
// Scores are integers in [0, 100], one per excerpt, in input order.
type Oracle interface {
	ScoreBatch(ctx context.Context, query string, excerpts []string) ([]int, error)
	Available(ctx context.Context) bool
	Close() error
}

// OracleConfig configures the Ollama-backed oracle.
type OracleConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// OllamaOracle calls a local LLM through Ollama's generate API. The model
// is prompted to answer with a bare JSON array; anything else is rejected
// by validation rather than trusted.
type OllamaOracle struct {
	client *http.Client
	config OracleConfig

	mu     sync.RWMutex
	closed bool
}

var _ Oracle = (*OllamaOracle)(nil)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func NewOllamaOracle(cfg OracleConfig) *OllamaOracle {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOracleEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOracleModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOracleTimeout
	}
	return &OllamaOracle{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config: cfg,
	}
}

// ScoreBatch prompts the model and validates its answer strictly: the
// response must parse as a JSON array of exactly len(excerpts) integers,
// each within [0, 100]. Any deviation is an error; the caller falls back
// to neutral scores.
func (o *OllamaOracle) ScoreBatch(ctx context.Context, query string, excerpts []string) ([]int, error) {
	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		return nil, fmt.Errorf("oracle is closed")
	}
	o.mu.RUnlock()

	if len(excerpts) == 0 {
		return []int{}, nil
	}

	body, err := json.Marshal(generateRequest{
		Model:  o.config.Model,
		Prompt: buildPrompt(query, excerpts),
		Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling oracle request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost,
		o.config.Endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding oracle response: %w", err)
	}

	return ParseScores(result.Response, len(excerpts))
}

func buildPrompt(query string, excerpts []string) string {
	var b strings.Builder
	b.WriteString("You are scoring electrical regulation excerpts for relevance to a question.\n")
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nExcerpts:\n")
	for i, excerpt := range excerpts {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, excerpt)
	}
	fmt.Fprintf(&b, "\nReply with only a JSON array of %d integers from 0 to 100, "+
		"one relevance score per excerpt in order. No other text.", len(excerpts))
	return b.String()
}

// ParseScores extracts and validates the oracle's score array. The model
// sometimes wraps the array in prose, so everything outside the first
// balanced [...] is ignored; the array itself gets no such leniency.
func ParseScores(raw string, expected int) ([]int, error) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in oracle response")
	}

	var values []float64
	if err := json.Unmarshal([]byte(raw[start:end+1]), &values); err != nil {
		return nil, fmt.Errorf("parsing oracle scores: %w", err)
	}
	if len(values) != expected {
		return nil, fmt.Errorf("oracle returned %d scores, expected %d", len(values), expected)
	}

	scores := make([]int, len(values))
	for i, v := range values {
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("oracle score %v is not an integer", v)
		}
		n := int(v)
		if n < 0 || n > 100 {
			return nil, fmt.Errorf("oracle score %d out of range", n)
		}
		scores[i] = n
	}
	return scores, nil
}

// Available reports whether the Ollama endpoint answers.
func (o *OllamaOracle) Available(ctx context.Context) bool {
	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		return false
	}
	o.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet,
		o.config.Endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (o *OllamaOracle) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	if transport, ok := o.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
