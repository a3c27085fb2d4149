package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dbwarden/internal/api/types"
	"dbwarden/internal/checks"
	"dbwarden/internal/config"
	"dbwarden/internal/core"
	"dbwarden/internal/scope"
	"dbwarden/internal/storage"
	"dbwarden/internal/threshold"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	storage *storage.Storage
	store   *storage.ThresholdStore
	cache   *core.Cache
	handler http.Handler
}

// newTestEnv wires a server over a temp sqlite database with caching on.
func newTestEnv(t *testing.T, maxBatch int) *testEnv {
	t.Helper()

	s, err := storage.New(context.Background(), config.StorageConfig{
		Driver:          "sqlite",
		DSN:             filepath.Join(t.TempDir(), "dbwarden_api.db"),
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		AutoMigrate:     true,
	})
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	registry := checks.Default()
	store := storage.NewThresholdStore(s, registry)
	cache := core.NewCache(store, 128, time.Minute)
	store.OnChange(func(c storage.Change) { cache.Invalidate(c.Reference) })

	server := NewServer(config.ServerConfig{Addr: ":0", MaxBatch: maxBatch}, Dependencies{
		Storage:  s,
		Store:    store,
		Engine:   core.NewEngine(cache, registry, 4),
		Registry: registry,
		Cache:    cache,
		Version:  "test",
	})

	return &testEnv{storage: s, store: store, cache: cache, handler: server.Handler()}
}

type envelope struct {
	Success    bool                      `json:"success"`
	Data       json.RawMessage           `json:"data"`
	Error      *types.Error              `json:"error"`
	Pagination *types.PaginationResponse `json:"pagination"`
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("Failed to decode response %s: %v", w.Body.String(), err)
		}
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("Failed to decode data %s: %v", raw, err)
	}
	return v
}

func mustScope(t *testing.T, s string) scope.Key {
	t.Helper()
	k, err := scope.Parse(s)
	if err != nil {
		t.Fatalf("Failed to parse scope %q: %v", s, err)
	}
	return k
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("Expected status %d, got %d: %s", code, w.Code, w.Body.String())
	}
}

func expectErrorCode(t *testing.T, env envelope, code string) {
	t.Helper()
	if env.Success || env.Error == nil {
		t.Fatalf("Expected error envelope, got %+v", env)
	}
	if env.Error.Code != code {
		t.Errorf("Expected error code %s, got %s (%s)", code, env.Error.Code, env.Error.Details)
	}
}

func TestBaseEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	t.Run("Ping", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, "/api/ping", "")
		expectStatus(t, w, http.StatusOK)
		if !strings.Contains(w.Body.String(), "pong") {
			t.Errorf("Expected pong, got %s", w.Body.String())
		}
	})

	t.Run("Request id is assigned", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, "/api/ping", "")
		if w.Header().Get(RequestIDHeader) == "" {
			t.Error("Expected X-Request-ID header")
		}
	})

	t.Run("Request id is propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("Expected abc-123, got %q", got)
		}
	})

	t.Run("Health reports components", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, "/api/health", "")
		expectStatus(t, w, http.StatusOK)

		var body struct {
			Status     string `json:"status"`
			Version    string `json:"version"`
			Components struct {
				Database struct {
					Status string `json:"status"`
				} `json:"database"`
				Cache struct {
					Enabled bool `json:"enabled"`
				} `json:"cache"`
				Checks struct {
					Loaded int `json:"loaded"`
				} `json:"checks"`
			} `json:"components"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("Failed to decode health: %v", err)
		}
		if body.Status != "healthy" || body.Components.Database.Status != "healthy" {
			t.Errorf("Expected healthy, got %+v", body)
		}
		if !body.Components.Cache.Enabled || body.Components.Checks.Loaded != 5 {
			t.Errorf("Unexpected components %+v", body.Components)
		}
		if body.Version != "test" {
			t.Errorf("Expected version test, got %q", body.Version)
		}
	})

	t.Run("Metrics are exposed", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, "/metrics", "")
		expectStatus(t, w, http.StatusOK)
		if !strings.Contains(w.Body.String(), "dbwarden_http_requests_total") {
			t.Error("Expected dbwarden_http_requests_total in exposition")
		}
	})

	t.Run("Unknown route uses error envelope", func(t *testing.T) {
		w, body := env.do(t, http.MethodGet, "/api/v2/nothing", "")
		expectStatus(t, w, http.StatusNotFound)
		expectErrorCode(t, body, "NOT_FOUND")
	})

	t.Run("Health degrades when database is gone", func(t *testing.T) {
		broken := newTestEnv(t, 0)
		broken.storage.Close()

		w, _ := broken.do(t, http.MethodGet, "/api/health", "")
		expectStatus(t, w, http.StatusServiceUnavailable)
		if !strings.Contains(w.Body.String(), "degraded") {
			t.Errorf("Expected degraded, got %s", w.Body.String())
		}
	})
}

func TestChecksEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	t.Run("List check table", func(t *testing.T) {
		w, body := env.do(t, http.MethodGet, "/api/v1/checks", "")
		expectStatus(t, w, http.StatusOK)

		defs := decode[[]struct {
			Reference string `json:"reference"`
			Sense     string `json:"sense"`
		}](t, body.Data)
		if len(defs) != 5 {
			t.Fatalf("Expected 5 checks, got %d", len(defs))
		}
		if defs[0].Reference != "CollectionAge" {
			t.Errorf("Expected sorted references, first is %s", defs[0].Reference)
		}
	})

	t.Run("Get one check", func(t *testing.T) {
		w, body := env.do(t, http.MethodGet, "/api/v1/checks/FreeSpace", "")
		expectStatus(t, w, http.StatusOK)
		def := decode[struct {
			DefaultCheckType string `json:"default_check_type"`
			MaxLevel         string `json:"max_level"`
		}](t, body.Data)
		if def.DefaultCheckType != "%" || def.MaxLevel != "file" {
			t.Errorf("Unexpected definition %+v", def)
		}
	})

	t.Run("Unknown check", func(t *testing.T) {
		w, body := env.do(t, http.MethodGet, "/api/v1/checks/Nope", "")
		expectStatus(t, w, http.StatusNotFound)
		expectErrorCode(t, body, "NOT_FOUND")
	})
}

type scopeView struct {
	Stored    *threshold.Config   `json:"stored"`
	Effective threshold.Effective `json:"effective"`
	Inherited bool                `json:"inherited"`
}

func TestThresholdEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	t.Run("Upsert root row", func(t *testing.T) {
		w, body := env.do(t, http.MethodPut, "/api/v1/thresholds/FreeSpace",
			`{"mode":"enabled","warning":20,"critical":10}`)
		expectStatus(t, w, http.StatusOK)

		cfg := decode[threshold.Config](t, body.Data)
		if !cfg.Scope.IsRoot() || cfg.Mode != threshold.ModeEnabled || cfg.CheckType != checks.Percent {
			t.Errorf("Unexpected stored config %+v", cfg)
		}
	})

	t.Run("Effective config is inherited from root", func(t *testing.T) {
		w, body := env.do(t, http.MethodGet, "/api/v1/thresholds/FreeSpace/scope?instance=3&database=7", "")
		expectStatus(t, w, http.StatusOK)

		view := decode[scopeView](t, body.Data)
		if view.Stored != nil {
			t.Errorf("Expected no stored row, got %+v", view.Stored)
		}
		if !view.Effective.Enabled || view.Effective.Warning != 20 || !view.Inherited {
			t.Errorf("Unexpected effective config %+v", view)
		}
	})

	t.Run("Writes invalidate cached resolutions", func(t *testing.T) {
		w, _ := env.do(t, http.MethodPut, "/api/v1/thresholds/FreeSpace",
			`{"scope":"database:3/7","mode":"disabled"}`)
		expectStatus(t, w, http.StatusOK)

		w, body := env.do(t, http.MethodGet, "/api/v1/thresholds/FreeSpace/scope?instance=3&database=7", "")
		expectStatus(t, w, http.StatusOK)
		view := decode[scopeView](t, body.Data)
		if view.Effective.Enabled || view.Effective.ResolvedAt.String() != "database:3/7" {
			t.Errorf("Expected disabled at database:3/7, got %+v", view.Effective)
		}
		if view.Stored == nil || view.Stored.Mode != threshold.ModeDisabled || view.Inherited {
			t.Errorf("Expected own disabled row, got %+v", view)
		}
	})

	t.Run("List rows of a reference", func(t *testing.T) {
		w, body := env.do(t, http.MethodGet, "/api/v1/thresholds/FreeSpace", "")
		expectStatus(t, w, http.StatusOK)

		rows := decode[[]threshold.Config](t, body.Data)
		if len(rows) != 2 {
			t.Fatalf("Expected 2 rows, got %d", len(rows))
		}
		if body.Pagination == nil || body.Pagination.Total != 2 {
			t.Errorf("Unexpected pagination %+v", body.Pagination)
		}
	})

	t.Run("List all rows paginated", func(t *testing.T) {
		w, body := env.do(t, http.MethodGet, "/api/v1/thresholds?page=2&page_size=1", "")
		expectStatus(t, w, http.StatusOK)

		rows := decode[[]threshold.Config](t, body.Data)
		if len(rows) != 1 || rows[0].Scope.String() != "database:3/7" {
			t.Errorf("Expected second row database:3/7, got %+v", rows)
		}
		if body.Pagination.TotalPages != 2 {
			t.Errorf("Expected 2 pages, got %d", body.Pagination.TotalPages)
		}
	})

	t.Run("Empty list is an array", func(t *testing.T) {
		w, body := env.do(t, http.MethodGet, "/api/v1/thresholds/CollectionAge", "")
		expectStatus(t, w, http.StatusOK)
		if string(body.Data) != "[]" {
			t.Errorf("Expected [], got %s", body.Data)
		}
	})

	t.Run("Inverted thresholds are rejected", func(t *testing.T) {
		w, body := env.do(t, http.MethodPut, "/api/v1/thresholds/FreeSpace",
			`{"scope":{"instance_id":3},"mode":"enabled","warning":10,"critical":20}`)
		expectStatus(t, w, http.StatusBadRequest)
		expectErrorCode(t, body, "VALIDATION_ERROR")
	})

	t.Run("Scope below the check's level is rejected", func(t *testing.T) {
		w, body := env.do(t, http.MethodPut, "/api/v1/thresholds/CollectionAge",
			`{"scope":"database:3/7","mode":"disabled"}`)
		expectStatus(t, w, http.StatusBadRequest)
		expectErrorCode(t, body, "VALIDATION_ERROR")
	})

	t.Run("Unknown mode is rejected", func(t *testing.T) {
		w, body := env.do(t, http.MethodPut, "/api/v1/thresholds/FreeSpace", `{"mode":"sometimes"}`)
		expectStatus(t, w, http.StatusBadRequest)
		expectErrorCode(t, body, "VALIDATION_ERROR")
	})

	t.Run("Unknown reference", func(t *testing.T) {
		w, body := env.do(t, http.MethodPut, "/api/v1/thresholds/Nope", `{"mode":"disabled"}`)
		expectStatus(t, w, http.StatusNotFound)
		expectErrorCode(t, body, "NOT_FOUND")
	})

	t.Run("Non-JSON body is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/thresholds/FreeSpace", strings.NewReader("mode=disabled"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		expectStatus(t, w, http.StatusUnsupportedMediaType)
	})

	t.Run("Malformed scope query", func(t *testing.T) {
		tests := []string{
			"?database=7",
			"?instance=abc",
			"?instance=0",
			"?scope=root&instance=1",
			"?scope=galaxy:1",
		}
		for _, q := range tests {
			w, body := env.do(t, http.MethodGet, "/api/v1/thresholds/FreeSpace/scope"+q, "")
			expectStatus(t, w, http.StatusBadRequest)
			expectErrorCode(t, body, "VALIDATION_ERROR")
		}
	})

	t.Run("Delete existing row", func(t *testing.T) {
		w, _ := env.do(t, http.MethodDelete, "/api/v1/thresholds/FreeSpace/scope?instance=3&database=7", "")
		expectStatus(t, w, http.StatusOK)

		w, body := env.do(t, http.MethodGet, "/api/v1/thresholds/FreeSpace/scope?scope=file:3/7/2", "")
		expectStatus(t, w, http.StatusOK)
		view := decode[scopeView](t, body.Data)
		if !view.Effective.Enabled || !view.Effective.ResolvedAt.IsRoot() {
			t.Errorf("Expected root thresholds after delete, got %+v", view.Effective)
		}
	})

	t.Run("Delete missing row", func(t *testing.T) {
		w, body := env.do(t, http.MethodDelete, "/api/v1/thresholds/FreeSpace/scope?instance=9", "")
		expectStatus(t, w, http.StatusNotFound)
		expectErrorCode(t, body, "NOT_FOUND")
	})

	t.Run("Store failure is unavailable", func(t *testing.T) {
		broken := newTestEnv(t, 0)
		broken.storage.Close()

		w, body := broken.do(t, http.MethodGet, "/api/v1/thresholds/FreeSpace", "")
		expectStatus(t, w, http.StatusServiceUnavailable)
		expectErrorCode(t, body, "UNAVAILABLE")
	})
}

type evaluateReport struct {
	Results []struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"results"`
	Status  string            `json:"status"`
	Failed  int               `json:"failed"`
	Rollup  map[string]string `json:"rollup"`
	Summary struct {
		Total int `json:"total"`
	} `json:"summary"`
}

func TestEvaluateEndpoint(t *testing.T) {
	env := newTestEnv(t, 3)
	ctx := context.Background()

	for _, cfg := range []threshold.Config{
		{Reference: checks.FreeSpace, Mode: threshold.ModeEnabled, Warning: threshold.Float(20), Critical: threshold.Float(10)},
		{Reference: checks.FreeSpace, Scope: mustScope(t, "database:3/7"), Mode: threshold.ModeDisabled},
	} {
		if _, err := env.store.UpsertConfig(ctx, cfg); err != nil {
			t.Fatalf("Failed to seed config: %v", err)
		}
	}

	t.Run("Batch report", func(t *testing.T) {
		w, body := env.do(t, http.MethodPost, "/api/v1/evaluate", `{"samples":[
			{"reference":"FreeSpace","scope":"file:3/7/2","value":5},
			{"reference":"FreeSpace","scope":{"instance_id":3,"database_id":8,"file_id":1},"value":5},
			{"reference":"Nope","scope":"root","value":1}
		]}`)
		expectStatus(t, w, http.StatusOK)

		report := decode[evaluateReport](t, body.Data)
		want := []string{"NA", "Critical", "NA"}
		for i, res := range report.Results {
			if res.Status != want[i] {
				t.Errorf("Result %d: expected %s, got %s", i, want[i], res.Status)
			}
		}
		if report.Results[2].Error == "" || report.Failed != 1 {
			t.Errorf("Expected the unknown check to fail, got %+v", report)
		}
		if report.Status != "Critical" || report.Summary.Total != 3 {
			t.Errorf("Unexpected aggregate %+v", report)
		}
		if report.Rollup["root"] != "Critical" || report.Rollup["database:3/7"] != "NA" {
			t.Errorf("Unexpected rollup %v", report.Rollup)
		}
	})

	t.Run("Sample without scope fails alone", func(t *testing.T) {
		w, body := env.do(t, http.MethodPost, "/api/v1/evaluate", `{"samples":[
			{"reference":"FreeSpace","value":5},
			{"reference":"FreeSpace","scope":"instance:1","value":50}
		]}`)
		expectStatus(t, w, http.StatusOK)

		report := decode[evaluateReport](t, body.Data)
		if len(report.Results) != 2 {
			t.Fatalf("Expected 2 results, got %d", len(report.Results))
		}
		if report.Results[0].Status != "NA" || !strings.Contains(report.Results[0].Error, "scope is required") {
			t.Errorf("Expected missing scope error, got %+v", report.Results[0])
		}
		if report.Results[1].Status != "OK" || report.Failed != 1 {
			t.Errorf("Unexpected report %+v", report)
		}
		if report.Status != "OK" || report.Rollup["root"] != "OK" || report.Summary.Total != 2 {
			t.Errorf("Expected the unscoped sample to stay out of the rollup, got %+v", report)
		}
	})

	t.Run("Empty batch", func(t *testing.T) {
		w, body := env.do(t, http.MethodPost, "/api/v1/evaluate", `{"samples":[]}`)
		expectStatus(t, w, http.StatusBadRequest)
		expectErrorCode(t, body, "VALIDATION_ERROR")
	})

	t.Run("Batch over the limit", func(t *testing.T) {
		sample := `{"reference":"FreeSpace","scope":"root","value":50}`
		samples := strings.Repeat(sample+",", 3) + sample
		w, body := env.do(t, http.MethodPost, "/api/v1/evaluate", `{"samples":[`+samples+`]}`)
		expectStatus(t, w, http.StatusRequestEntityTooLarge)
		expectErrorCode(t, body, "PAYLOAD_TOO_LARGE")
	})

	t.Run("Malformed sample scope", func(t *testing.T) {
		w, body := env.do(t, http.MethodPost, "/api/v1/evaluate",
			`{"samples":[{"reference":"FreeSpace","scope":{"database_id":7},"value":1}]}`)
		expectStatus(t, w, http.StatusBadRequest)
		expectErrorCode(t, body, "VALIDATION_ERROR")
	})
}

func TestPanicRecovery(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), PanicRecovery())
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	var body types.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Error == nil || body.Error.Code != "INTERNAL_ERROR" || body.Error.Details != "" {
		t.Errorf("Expected internal error without details, got %+v", body.Error)
	}
}
