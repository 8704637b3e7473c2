package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingoflow/internal/config"
	"github.com/example/lingoflow/internal/language"
	"github.com/example/lingoflow/internal/model"
	"github.com/example/lingoflow/internal/monitor"
	"github.com/example/lingoflow/internal/prompt"
	"github.com/example/lingoflow/internal/provider"
	"github.com/example/lingoflow/internal/queue"
	"github.com/example/lingoflow/internal/shutdown"
	"github.com/example/lingoflow/internal/stats"
	"github.com/example/lingoflow/internal/translation"
)

// echoProvider returns a canned Chinese line for translations and a fixed
// tag for detections.
type echoProvider struct {
	mu    sync.Mutex
	state provider.State
}

func (e *echoProvider) Load(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = provider.StateLoaded
	return nil
}

func (e *echoProvider) Generate(_ context.Context, p prompt.Prompt, _ provider.GenParams) (string, error) {
	if plain, ok := p.(prompt.Plain); ok && strings.Contains(string(plain), "信心分數") {
		return "en:0.9", nil
	}
	return "你好，世界！", nil
}

func (e *echoProvider) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = provider.StateNotLoaded
}

func (e *echoProvider) State() provider.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *echoProvider) ExecutionMode() provider.Mode { return provider.ModeCPU }
func (e *echoProvider) Progress() float64            { return 100 }
func (e *echoProvider) ErrorMessage() string         { return "" }

type testServer struct {
	handler http.Handler
	cfg     *config.Config
	queue   *queue.Queue
	manager *model.Manager
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Model.Models.Dir = t.TempDir()
	cfg.App.AdminAccess.AllowedIPs = []string{"127.0.0.1/32"}
	if mutate != nil {
		mutate(cfg)
	}

	reg := language.NewRegistry(cfg.Languages)
	builder := prompt.NewBuilder(cfg.Model.Prompts, reg)
	q := queue.New(cfg.MaxConcurrent(), cfg.MaxQueueSize())
	mgr := model.NewManager(cfg,
		func(*config.Config, string) provider.Provider { return &echoProvider{} },
		q.Active, nil)
	window := stats.NewWindow(nil, nil)
	coordinator := shutdown.New(q.Active, nil)

	svc := translation.NewService(cfg, reg, builder, mgr, q, window, translation.Options{
		ShuttingDown: coordinator.IsShuttingDown,
	})

	handler := NewRouter(RouterConfig{
		Config:   cfg,
		Registry: reg,
		Service:  svc,
		Manager:  mgr,
		Queue:    q,
		Window:   window,
		Monitor:  monitor.New(),
		Shutdown: coordinator,
	})
	return &testServer{handler: handler, cfg: cfg, queue: q, manager: mgr}
}

func (ts *testServer) addModel(t *testing.T, id string) {
	t.Helper()
	dir := filepath.Join(ts.cfg.ModelsDir(), id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{}"), 0o644))
}

func (ts *testServer) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "127.0.0.1:54321"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	errObj, _ := body["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func TestTranslateEmptyText(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/translate/",
		`{"text": "   ", "target_language": "en"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_EMPTY_TEXT", errorCode(t, rec))
}

func TestTranslateSameLanguage(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/translate/",
		`{"text": "Hello", "source_language": "en", "target_language": "en"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_SAME_LANGUAGE", errorCode(t, rec))
}

func TestTranslateInvalidJSON(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/translate/", `{"text": `, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", errorCode(t, rec))
}

func TestTranslateAutoHappyPath(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/translate/",
		`{"text": "Hello, world!", "source_language": "auto", "target_language": "zh-TW", "quality": "standard"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "en", body["detected_language"])
	assert.NotEmpty(t, body["request_id"])
	text, _ := body["translated_text"].(string)
	assert.NotEmpty(t, text)
	assert.True(t, strings.ContainsRune(text, '世'), "expected CJK output, got %q", text)
	_, hasPos := body["queue_position"]
	assert.False(t, hasPos, "completed responses must not carry queue_position")
}

func TestTranslateQueueFull(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.App.Concurrency.MaxConcurrent = 1
		zero := 0
		cfg.App.Concurrency.MaxQueueSize = &zero
	})
	ts.queue.Acquire("occupier")

	rec := ts.do(t, http.MethodPost, "/api/v1/translate/",
		`{"text": "Hello", "source_language": "en", "target_language": "zh-TW"}`, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "QUEUE_FULL", errorCode(t, rec))
}

func TestTranslateStatusEndpoint(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.App.Concurrency.MaxConcurrent = 1
	})
	ts.queue.Acquire("occupier")
	ts.queue.Acquire("waiting-req")

	rec := ts.do(t, http.MethodGet, "/api/v1/translate/waiting-req/status/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, float64(1), body["queue_position"])

	rec = ts.do(t, http.MethodGet, "/api/v1/translate/ghost/status/", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "REQUEST_NOT_FOUND", errorCode(t, rec))
}

func TestLanguagesEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/languages/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	langs, _ := body["languages"].([]any)
	assert.NotEmpty(t, langs)
	defaults, _ := body["defaults"].(map[string]any)
	assert.Equal(t, "auto", defaults["source_language"])
	assert.Equal(t, "zh-TW", defaults["target_language"])
}

func TestModelsCatalogFiltering(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addModel(t, "a")
	ts.addModel(t, "b")
	require.NoError(t, os.MkdirAll(filepath.Join(ts.cfg.ModelsDir(), "no_config"), 0o755))
	noCfg := filepath.Join(ts.cfg.ModelsDir(), "~bad")
	require.NoError(t, os.MkdirAll(noCfg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(noCfg, "config.json"), []byte("{}"), 0o644))

	rec := ts.do(t, http.MethodGet, "/api/v1/models/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	models, _ := body["models"].([]any)
	require.Len(t, models, 2)
	var ids []string
	for _, m := range models {
		ids = append(ids, m.(map[string]any)["model_id"].(string))
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestSelectionRoundTrip(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addModel(t, "m1")

	rec := ts.do(t, http.MethodPut, "/api/v1/models/selection/", `{"model_id": "m1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "m1", decode(t, rec)["selected_model_id"])

	// The session cookie carries the hint to the next call.
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	rec2 := ts.do(t, http.MethodGet, "/api/v1/models/", "", map[string]string{
		"Cookie": cookies[0].Name + "=" + cookies[0].Value,
	})
	body := decode(t, rec2)
	assert.Equal(t, "m1", body["selected_model_id"])
	// The hint never loads anything.
	assert.Equal(t, "", body["active_model_id"])
}

func TestSelectionUnknownModel(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPut, "/api/v1/models/selection/", `{"model_id": "nope"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MODEL_NOT_FOUND", errorCode(t, rec))

	rec = ts.do(t, http.MethodPut, "/api/v1/models/selection/", `{"model_id": "../evil"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MODEL_INVALID_ID", errorCode(t, rec))
}

func TestSwitchRejectedUnderLoad(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addModel(t, "a")
	ts.queue.Acquire("in-flight")

	rec := ts.do(t, http.MethodPost, "/api/v1/models/switch/",
		`{"model_id": "a", "force": false}`, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "MODEL_SWITCH_REJECTED", errorCode(t, rec))
}

func TestSwitchHappyPath(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addModel(t, "a")

	rec := ts.do(t, http.MethodPost, "/api/v1/models/switch/",
		`{"model_id": "a", "force": false}`, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "a", decode(t, rec)["active_model_id"])
}

func TestAdminDeniedFromOutside(t *testing.T) {
	ts := newTestServer(t, nil)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/admin/status/"},
		{http.MethodGet, "/api/v1/admin/statistics/"},
		{http.MethodGet, "/api/v1/admin/model/load-progress/"},
		{http.MethodPost, "/api/v1/admin/model/unload/"},
	}
	for _, p := range paths {
		rec := ts.do(t, p.method, p.path, "", map[string]string{
			"X-Forwarded-For": "203.0.113.50",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code, p.path)
		assert.Equal(t, "ACCESS_DENIED", errorCode(t, rec), p.path)
	}
}

func TestAdminAllowedFromLoopback(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/admin/status/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/admin/statistics/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	_, hasBreakdown := body["hourly_breakdown"]
	assert.True(t, hasBreakdown)
}

func TestAdminUnload(t *testing.T) {
	ts := newTestServer(t, nil)

	// Load something first via a translation.
	ts.do(t, http.MethodPost, "/api/v1/translate/",
		`{"text": "Hello", "source_language": "en", "target_language": "zh-TW"}`, nil)
	require.True(t, ts.manager.IsLoaded())

	rec := ts.do(t, http.MethodPost, "/api/v1/admin/model/unload/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ts.manager.IsLoaded())
}

func TestPublicStatusAndStatistics(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/status/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	system, _ := body["system"].(map[string]any)
	assert.Equal(t, true, system["is_running"])

	rec = ts.do(t, http.MethodGet, "/api/v1/statistics/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLoadProgressEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/model/load-progress/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not_loaded", body["status"])
}

func TestHealthProbes(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/health/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	// Nothing loaded yet: degraded, not unhealthy.
	assert.Equal(t, "degraded", body["status"])

	// Not ready until a model is loaded.
	rec = ts.do(t, http.MethodGet, "/api/ready/", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ts.do(t, http.MethodPost, "/api/v1/translate/",
		`{"text": "Hello", "source_language": "en", "target_language": "zh-TW"}`, nil)
	rec = ts.do(t, http.MethodGet, "/api/ready/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTrailingSlashIsSignificant(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/languages", "", nil)
	assert.NotEqual(t, http.StatusOK, rec.Code, "path without trailing slash must not match")
}
