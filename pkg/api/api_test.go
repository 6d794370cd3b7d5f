package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekroforge/preset-switch/pkg/db"
	"github.com/nekroforge/preset-switch/pkg/preset"
	"github.com/nekroforge/preset-switch/pkg/preset/repository"
	"github.com/nekroforge/preset-switch/pkg/tasks"
)

type testEnv struct {
	server  *Server
	presets *preset.Service
	tasks   *tasks.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	sqlxDB, err := db.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlxDB.Close() })

	logger := log.New(os.Stdout)
	require.NoError(t, db.RunMigrations(sqlxDB.DB, logger))

	presetService := preset.NewService(logger, repository.NewRepository(logger, sqlxDB))
	matcher := preset.NewMatcher(logger, presetService)
	taskService := tasks.NewService(logger, sqlxDB)

	return &testEnv{
		server:  NewServer(logger, presetService, matcher, taskService, ""),
		presets: presetService,
		tasks:   taskService,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetPreset(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/presets", map[string]any{
		"name":        "alice",
		"prompt_text": "You are Alice.",
		"trigger_rules": []map[string]any{
			{"pattern": "be alice", "match_mode": "exact", "log_to_history": true},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/presets/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var p preset.Preset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "You are Alice.", p.PromptText)
	require.Len(t, p.TriggerRules, 1)
	assert.Equal(t, preset.MatchExact, p.TriggerRules[0].MatchMode)
}

func TestCreateDuplicateReturns409(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{"name": "alice"}
	rec := env.do(t, http.MethodPost, "/api/presets", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/presets", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetMissingReturns404(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/presets/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/presets/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetActiveIsolationReturns403(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/presets", map[string]any{
		"name":           "restricted",
		"isolation_mode": "whitelist",
		"allow_list":     []string{"g1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/contexts/g2/active", map[string]any{"name": "restricted"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/contexts/g1/active", map[string]any{"name": "restricted"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdatePresetPatch(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/presets", map[string]any{
		"name":        "alice",
		"prompt_text": "old",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/presets/alice", map[string]any{
		"prompt_text": "new",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var p preset.Preset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "new", p.PromptText)
	assert.Equal(t, "alice", p.Name)
}

func TestEvaluateEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/presets", map[string]any{
		"name": "greeter",
		"trigger_rules": []map[string]any{
			{"pattern": "hello", "match_mode": "contains", "invoke_llm": true},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/evaluate", map[string]any{
		"context_id":   "c1",
		"message_text": "well hello there",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var decision preset.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, "greeter", decision.PresetName)
	assert.True(t, decision.InvokeLLM)

	// active pointer moved as a side effect
	active, err := env.presets.GetActive(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "greeter", active.Name)

	// no match → 204
	rec = env.do(t, http.MethodPost, "/api/evaluate", map[string]any{
		"context_id":   "c1",
		"message_text": "goodbye",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSetTaskEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/tasks/c1", map[string]any{
		"content": "finish the report, then switch back",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var task tasks.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, "c1", task.ContextID)
	assert.Equal(t, "finish the report, then switch back", task.Content)

	rec = env.do(t, http.MethodGet, "/api/tasks/c1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// empty content is rejected; /clear is the blanking path
	rec = env.do(t, http.MethodPut, "/api/tasks/c1", map[string]any{"content": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetActiveWithMessageRecordsHandoff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"outgoing", "incoming"} {
		rec := env.do(t, http.MethodPost, "/api/presets", map[string]any{"name": name})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodPut, "/api/contexts/c1/active", map[string]any{"name": "outgoing"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/contexts/c1/active", map[string]any{
		"name":    "incoming",
		"message": "please handle the billing question",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	task, err := env.tasks.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Contains(t, task.Content, `Preset "outgoing"`)
	assert.Contains(t, task.Content, "please handle the billing question")

	// the switch itself still happened
	active, err := env.presets.GetActive(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "incoming", active.Name)

	// a failed switch must not leave a note
	rec = env.do(t, http.MethodPut, "/api/contexts/c1/active", map[string]any{
		"name":    "ghost",
		"message": "never recorded",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	task, err = env.tasks.Get(ctx, "c1")
	require.NoError(t, err)
	assert.NotContains(t, task.Content, "never recorded")
}

func TestTasksEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.tasks.Set(ctx, "c1", "carry on"))

	rec := env.do(t, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []tasks.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "carry on", list[0].Content)

	rec = env.do(t, http.MethodPost, "/api/tasks/c1/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/tasks/c1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatistics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/api/presets", map[string]any{
		"name": "a",
		"trigger_rules": []map[string]any{
			{"pattern": "x", "match_mode": "contains"},
			{"pattern": "y", "match_mode": "exact"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	_, err := env.presets.SetActive(ctx, "g1", "a")
	require.NoError(t, err)
	require.NoError(t, env.tasks.Set(ctx, "g1", "pending"))

	rec = env.do(t, http.MethodGet, "/api/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats statisticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalPresets)
	assert.Equal(t, 2, stats.TotalTriggerRules)
	assert.Equal(t, 1, stats.ActiveContexts)
	assert.Equal(t, 1, stats.PendingTasks)
}

func TestExportAndImportRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{"a", "b"} {
		rec := env.do(t, http.MethodPost, "/api/presets", map[string]any{"name": name})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/export/presets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "presets_export_")

	var envelope exportEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.TotalCount)

	// import into a fresh instance; one entry collides with an existing name
	target := newTestEnv(t)
	rec = target.do(t, http.MethodPost, "/api/presets", map[string]any{"name": "a"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = target.do(t, http.MethodPost, "/api/import/presets", envelope)
	require.Equal(t, http.StatusOK, rec.Code)

	var result importResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.TotalCount)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `"a"`)
}

func TestWebAssetServing(t *testing.T) {
	env := newTestEnv(t)

	webDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html>preset admin</html>"), 0o644))
	env.server.webAssets = webDir

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "preset admin")

	// API routes keep precedence over the static catch-all
	rec = env.do(t, http.MethodGet, "/api/presets", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExportSome(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{"a", "b", "c"} {
		rec := env.do(t, http.MethodPost, "/api/presets", map[string]any{"name": name})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/export/presets/a,c", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope exportEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.TotalCount)

	rec = env.do(t, http.MethodGet, "/api/export/presets/a,ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
