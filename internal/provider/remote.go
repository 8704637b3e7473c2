package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/lingoflow/internal/config"
	"github.com/example/lingoflow/internal/errcode"
	"github.com/example/lingoflow/internal/prompt"
)

// Kind selects the remote wire protocol.
type Kind string

const (
	// KindOpenAI speaks the OpenAI-style completions protocol
	// (vLLM, Ollama, LM Studio, OpenAI itself).
	KindOpenAI Kind = "openai"

	// KindHuggingFace speaks the hosted inference endpoint protocol.
	KindHuggingFace Kind = "huggingface"
)

const (
	defaultRemoteTimeout = 120 * time.Second
	defaultRemoteRetries = 2
	maxRemoteBodySize    = 10 * 1024 * 1024
)

// Remote calls a remote inference endpoint over HTTP. Load only builds the
// HTTP client; the first Generate proves connectivity.
type Remote struct {
	kind    Kind
	cfg     config.RemoteAPIConfig
	retries int
	logger  *slog.Logger

	mu     sync.Mutex
	state  State
	errMsg string
	client *http.Client
}

// NewRemote creates a remote provider. A non-nil httpClient is used as-is;
// otherwise a client with the configured timeout is built at Load time.
func NewRemote(kind Kind, cfg config.RemoteAPIConfig, httpClient *http.Client, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultRemoteRetries
	}
	return &Remote{
		kind:    kind,
		cfg:     cfg,
		retries: retries,
		logger:  logger,
		state:   StateNotLoaded,
		client:  httpClient,
	}
}

// Load initialises the HTTP client. Idempotent.
func (r *Remote) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateLoaded:
		return nil
	case StateLoading:
		return ErrLoadInProgress
	}

	if r.client == nil {
		timeout := defaultRemoteTimeout
		if r.cfg.TimeoutSec > 0 {
			timeout = time.Duration(r.cfg.TimeoutSec) * time.Second
		}
		r.client = &http.Client{Timeout: timeout}
	}

	r.state = StateLoaded
	r.errMsg = ""
	r.logger.Info("remote API client initialised",
		"kind", string(r.kind),
		"api_base", r.cfg.BaseURL,
		"model", r.cfg.Model,
	)
	return nil
}

// Generate flattens the prompt and calls the remote endpoint, retrying
// transport failures and 5xx responses within the configured budget.
func (r *Remote) Generate(ctx context.Context, p prompt.Prompt, params GenParams) (string, error) {
	r.mu.Lock()
	loaded := r.state == StateLoaded && r.client != nil
	r.mu.Unlock()
	if !loaded {
		return "", errcode.New(errcode.ModelNotLoaded)
	}

	flat := prompt.Flatten(p)

	var (
		text string
		err  error
	)
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", errcode.Newf(errcode.InternalError, "遠端 API 請求逾時: %v", ctx.Err())
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		switch r.kind {
		case KindOpenAI:
			text, err = r.generateOpenAI(ctx, flat, params)
		case KindHuggingFace:
			text, err = r.generateHuggingFace(ctx, flat, params)
		default:
			return "", errcode.Newf(errcode.InternalError, "不支援的 provider 類型: %s", r.kind)
		}

		if err == nil {
			return text, nil
		}
		var re *retryableError
		if !errors.As(err, &re) {
			break
		}
		r.logger.Warn("remote generate failed, retrying",
			"kind", string(r.kind), "attempt", attempt+1, "err", err)
	}

	if ctx.Err() != nil {
		return "", errcode.Newf(errcode.InternalError, "遠端 API 請求逾時: %v", ctx.Err())
	}
	return "", errcode.Newf(errcode.InternalError, "遠端 API 請求失敗: %v", err)
}

func (r *Remote) generateOpenAI(ctx context.Context, flat string, params GenParams) (string, error) {
	reqBody := map[string]any{
		"prompt":      flat,
		"max_tokens":  params.MaxNewTokens,
		"temperature": params.Temperature,
		"top_p":       params.TopP,
		"n":           1,
		"stream":      false,
	}
	if r.cfg.Model != "" {
		reqBody["model"] = r.cfg.Model
	}

	var result struct {
		Choices []struct {
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := r.post(ctx, strings.TrimRight(r.cfg.BaseURL, "/")+"/completions", reqBody, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(result.Choices[0].Text), nil
}

func (r *Remote) generateHuggingFace(ctx context.Context, flat string, params GenParams) (string, error) {
	parameters := map[string]any{
		"max_new_tokens":   params.MaxNewTokens,
		"temperature":      params.Temperature,
		"top_p":            params.TopP,
		"do_sample":        params.DoSample,
		"return_full_text": false,
	}
	if params.NumBeams > 1 {
		parameters["num_beams"] = params.NumBeams
	}
	if params.RepetitionPenalty > 0 {
		parameters["repetition_penalty"] = params.RepetitionPenalty
	}
	reqBody := map[string]any{
		"inputs":     flat,
		"parameters": parameters,
	}

	raw := json.RawMessage{}
	if err := r.post(ctx, r.cfg.BaseURL, reqBody, &raw); err != nil {
		return "", err
	}

	// The endpoint answers either [{"generated_text": ...}] or a bare
	// {"generated_text": ...}.
	var arr []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
		return strings.TrimSpace(arr[0].GeneratedText), nil
	}
	var single struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", fmt.Errorf("unexpected response shape: %w", err)
	}
	return strings.TrimSpace(single.GeneratedText), nil
}

// retryableError marks failures worth another attempt.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (r *Remote) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &retryableError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBodySize))
	if err != nil {
		return &retryableError{err: err}
	}
	if resp.StatusCode >= 500 {
		return &retryableError{err: fmt.Errorf("status %d: %s", resp.StatusCode, truncateForLog(string(data), 200))}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncateForLog(string(data), 200))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Unload closes the HTTP client. Idempotent.
func (r *Remote) Unload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		r.client.CloseIdleConnections()
	}
	r.state = StateNotLoaded
	r.logger.Info("remote API client closed", "kind", string(r.kind))
}

func (r *Remote) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Remote) ExecutionMode() Mode { return ModeRemote }

func (r *Remote) Progress() float64 {
	if r.State() == StateLoaded {
		return 100
	}
	return 0
}

func (r *Remote) ErrorMessage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errMsg
}

var _ Provider = (*Remote)(nil)
