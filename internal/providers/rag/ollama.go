package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/sandevgo/tuskmem/pkg/retry"
)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultHealthPath = "/api/tags"
	DefaultTimeout    = 5 * time.Second
)

// Embedder talks to an Ollama-compatible embedding API.
type Embedder struct {
	baseURL    string
	model      string
	healthPath string
	timeout    time.Duration
	httpClient *http.Client
	retrier    *retry.Retrier
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewEmbedder(cfg config.BackendConfig) *Embedder {
	e := &Embedder{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		model:      cfg.Model,
		healthPath: cfg.HealthPath,
		timeout:    cfg.Timeout,
	}
	if e.baseURL == "" {
		e.baseURL = DefaultBaseURL
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	if e.healthPath == "" {
		e.healthPath = DefaultHealthPath
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}

	e.httpClient = &http.Client{Timeout: e.timeout}
	e.retrier = retry.NewRetrier(&retry.Config{
		MaxRetries:    2,
		BackoffFactor: 2,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		Jitter:        25 * time.Millisecond,
	})
	return e
}

func (e *Embedder) Model() string {
	return e.model
}

// Embed converts text into a vector. Network errors and 5xx responses are retried
// within the configured timeout.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", core.ErrBackendUnavailable, err)
	}

	var vec []float32
	err = e.retrier.Do(ctx, func() error {
		v, err := e.embedOnce(ctx, body)
		if err != nil {
			log.FromCtx(ctx).Debug().Err(err).Str("model", e.model).Msg("embedding attempt failed")
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBackendUnavailable, err)
	}
	return vec, nil
}

func (e *Embedder) embedOnce(ctx context.Context, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, err
		}
		return nil, retry.Permanent(err)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decoding response: %w", err))
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, retry.Permanent(fmt.Errorf("no embeddings returned"))
	}
	return out.Embeddings[0], nil
}

// Health is the cheap liveness probe: one GET, no retries.
func (e *Embedder) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+e.healthPath, nil)
	if err != nil {
		return fmt.Errorf("%w: creating probe: %v", core.ErrBackendUnavailable, err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: probe: %v", core.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: probe returned status %d", core.ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

var (
	_ core.Embedder     = (*Embedder)(nil)
	_ core.HealthProber = (*Embedder)(nil)
)
