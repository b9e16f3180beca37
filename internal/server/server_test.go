package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmetrics/internal/executor"
	"github.com/leapstack-labs/leapmetrics/internal/project"
	"github.com/leapstack-labs/leapmetrics/internal/testutil"
	"github.com/leapstack-labs/leapmetrics/pkg/core"

	_ "github.com/leapstack-labs/leapmetrics/pkg/adapters/duckdb"
)

type testServer struct {
	server  *Server
	project *project.Context
	fixture *testutil.Project
}

func newTestServer(t *testing.T, fx *testutil.Project) *testServer {
	t.Helper()
	logger := testutil.NewTestLogger(t)

	pc, err := project.Load(fx.SemanticsDir, logger)
	require.NoError(t, err)

	dbs := map[string]core.DatabaseConfig{}
	if fx.Warehouse != "" {
		dbs["warehouse"] = core.DatabaseConfig{Type: "duckdb", Path: fx.Warehouse}
	}
	exec := executor.New(executor.Options{Databases: dbs, Logger: logger})
	t.Cleanup(func() { _ = exec.Close() })

	return &testServer{
		server:  New(Config{Project: pc, Executor: exec, Logger: logger}),
		project: pc,
		fixture: fx,
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func errorKind(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	assert.NotEmpty(t, e["message"])
	return e["kind"].(string)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		opts       testutil.ProjectOptions
		wantModels bool
		wantRules  bool
	}{
		{"both documents", testutil.ProjectOptions{Models: testutil.ShopModels, Rules: testutil.ShopRules}, true, true},
		{"models only", testutil.ProjectOptions{Models: testutil.ShopModels}, true, false},
		{"empty project", testutil.ProjectOptions{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, testutil.NewProject(t, tt.opts))
			rec, body := ts.do(t, http.MethodGet, "/health", "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "ok", body["status"])
			assert.Equal(t, tt.wantModels, body["models"])
			assert.Equal(t, tt.wantRules, body["rules"])
		})
	}
}

func TestModels(t *testing.T) {
	ts := newTestServer(t, testutil.NewShopProject(t))

	rec, body := ts.do(t, http.MethodGet, "/api/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	models := body["models"].([]any)
	require.Len(t, models, 4)
	assert.Equal(t, "customers", models[0].(map[string]any)["name"])

	rec, body = ts.do(t, http.MethodGet, "/api/models/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "orders", body["table"])
	assert.Equal(t, "main", body["schema"])
	assert.Len(t, body["joins"], 2)

	rec, body = ts.do(t, http.MethodGet, "/api/models/nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_model", errorKind(t, body))
}

func TestModels_NoDocument(t *testing.T) {
	ts := newTestServer(t, testutil.NewProject(t, testutil.ProjectOptions{Rules: testutil.ShopRules}))
	rec, body := ts.do(t, http.MethodGet, "/api/models", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "spec_not_found", errorKind(t, body))
}

func TestCompile(t *testing.T) {
	ts := newTestServer(t, testutil.NewShopProject(t))

	rec, body := ts.do(t, http.MethodPost, "/api/compile",
		`{"model_name": "orders", "measures": ["total_amount"], "filters": [{"column": "status", "value": "completed"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Contains(t, body["sql"], `"main"."orders"`)
	assert.Equal(t, []any{"completed"}, body["args"])
	assert.Equal(t, "warehouse", body["database"])
	assert.Equal(t, "duckdb", body["dialect"])
	assert.NotNil(t, body["plan"])
}

func TestCompile_Errors(t *testing.T) {
	ts := newTestServer(t, testutil.NewShopProject(t))

	tests := []struct {
		name     string
		body     string
		wantKind string
	}{
		{"malformed json", `{"model_name":`, "bad_request"},
		{"unknown field", `{"model": "orders"}`, "bad_request"},
		{"trailing data", `{"model_name": "orders"} {}`, "bad_request"},
		{"unknown model", `{"model_name": "nope", "measures": ["x"]}`, "unknown_model"},
		{"unknown measure", `{"model_name": "orders", "measures": ["nope"]}`, "unknown_measure"},
		{"bad operator", `{"model_name": "orders", "measures": ["order_count"], "filters": [{"column": "status", "operator": "like", "value": "x"}]}`, "invalid_filter_operator"},
		{"bad order by", `{"model_name": "orders", "measures": ["order_count"], "order_by": [{"column": "status"}]}`, "invalid_order_by"},
		{"undeclared alias", `{"model_name": "orders", "measures": ["order_count"], "dimensions": ["foo.bar"]}`, "unresolvable_join"},
		{"unknown database", `{"model_name": "orders", "measures": ["order_count"], "database_id": "lake"}`, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := ts.do(t, http.MethodPost, "/api/compile", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantKind, errorKind(t, body))
		})
	}
}

func TestQuery(t *testing.T) {
	ts := newTestServer(t, testutil.NewShopProject(t))

	tests := []struct {
		name string
		body string
		want []any
	}{
		{
			name: "total",
			body: `{"model_name": "orders", "measures": ["total_amount"]}`,
			want: []any{map[string]any{"total_amount": float64(550)}},
		},
		{
			name: "fan-out safe",
			body: `{"model_name": "orders", "measures": ["total_amount", "items.total_quantity"], "database_id": "warehouse"}`,
			want: []any{map[string]any{"total_amount": float64(550), "items.total_quantity": float64(10)}},
		},
		{
			name: "grouped",
			body: `{"model_name": "orders", "measures": ["order_count"], "dimensions": ["status"], "order_by": [{"column": "order_count", "ascending": false}], "limit": 1}`,
			want: []any{map[string]any{"status": "completed", "order_count": float64(4)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := ts.do(t, http.MethodPost, "/api/query", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, body)
			assert.Equal(t, tt.want, body["data"])
			assert.Equal(t, float64(len(tt.want)), body["row_count"])
			assert.Equal(t, "orders", body["model_name"])
			assert.NotEmpty(t, body["sql"])
		})
	}
}

func TestQuery_ExecutionError(t *testing.T) {
	ts := newTestServer(t, testutil.NewShopProject(t))
	rec, body := ts.do(t, http.MethodPost, "/api/query", `{"model_name": "refunds", "measures": ["refund_count"]}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "execution_error", errorKind(t, body))
}

func TestQuery_NoDatabases(t *testing.T) {
	ts := newTestServer(t, testutil.NewProject(t, testutil.ProjectOptions{Models: testutil.ShopModels}))
	rec, body := ts.do(t, http.MethodPost, "/api/query", `{"model_name": "orders", "measures": ["order_count"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorKind(t, body))
}

func TestBusinessContext(t *testing.T) {
	ts := newTestServer(t, testutil.NewShopProject(t))

	tests := []struct {
		name      string
		body      string
		wantRules []string
	}{
		{"all", `{}`, []string{"cash_tips_not_recorded", "revenue_excludes_refunds"}},
		{"empty body", ``, []string{"cash_tips_not_recorded", "revenue_excludes_refunds"}},
		{"by concept", `{"concepts": ["tip_amount"]}`, []string{"cash_tips_not_recorded"}},
		{"by category", `{"category": "metrics"}`, []string{"revenue_excludes_refunds"}},
		{"no match", `{"concepts": ["tip"]}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := ts.do(t, http.MethodPost, "/api/business-context", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, body)
			names := []string{}
			for _, r := range body["rules"].([]any) {
				names = append(names, r.(map[string]any)["name"].(string))
			}
			assert.Equal(t, tt.wantRules, names)
			assert.Equal(t, []any{"data_quality", "metrics"}, body["categories"])
		})
	}
}

func TestClassify(t *testing.T) {
	ts := newTestServer(t, testutil.NewShopProject(t))

	rec, body := ts.do(t, http.MethodPost, "/api/classify", `{"tags": ["orders"]}`)
	require.Equal(t, http.StatusOK, rec.Code, body)
	classes := body["classifications"].([]any)
	require.Len(t, classes, 1)
	assert.Equal(t, "bulk_order", classes[0].(map[string]any)["name"])
	assert.ElementsMatch(t, []any{"high_value_customer", "bulk_order"}, body["available_names"])

	rec, body = ts.do(t, http.MethodPost, "/api/classify", `{"name": "missing"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["classifications"])
}

func TestRulesEndpoints_NoDocument(t *testing.T) {
	ts := newTestServer(t, testutil.NewProject(t, testutil.ProjectOptions{Models: testutil.ShopModels}))
	for _, path := range []string{"/api/business-context", "/api/classify"} {
		rec, body := ts.do(t, http.MethodPost, path, `{}`)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "spec_not_found", errorKind(t, body))
	}
}

func TestRefresh(t *testing.T) {
	fx := testutil.NewShopProject(t)
	ts := newTestServer(t, fx)
	modelsPath := filepath.Join(fx.SemanticsDir, core.SemanticModelFile)

	rec, body := ts.do(t, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["updated"])

	testutil.WriteFile(t, modelsPath, testutil.ShopModels+`  shipments:
    table: shipments
    measures:
      shipment_count:
        type: count
`)
	rec, body = ts.do(t, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["updated"])
	assert.Equal(t, "project reloaded", body["message"])

	rec, _ = ts.do(t, http.MethodGet, "/api/models/shipments", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	testutil.WriteFile(t, modelsPath, "models:\n  broken:\n    measures: {}\n")
	rec, body = ts.do(t, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "schema_validation", errorKind(t, body))

	// The last good snapshot keeps serving.
	rec, _ = ts.do(t, http.MethodGet, "/api/models/shipments", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEvents(t *testing.T) {
	fx := testutil.NewShopProject(t)
	ts := newTestServer(t, fx)
	srv := httptest.NewServer(ts.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	testutil.WriteFile(t, filepath.Join(fx.SemanticsDir, core.BusinessRulesFile), testutil.ShopRules+"\n# edited\n")
	changed, err := ts.project.Reload()
	require.NoError(t, err)
	require.True(t, changed)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: reload\n", line)
}

func TestServe_Shutdown(t *testing.T) {
	ts := newTestServer(t, testutil.NewShopProject(t))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.server.serve(ctx, ln, nil) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_InvalidSchedule(t *testing.T) {
	ts := newTestServer(t, testutil.NewShopProject(t))
	ts.server.refreshSchedule = "not a cron"
	err := ts.server.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid refresh schedule")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantKind   core.ErrorKind
	}{
		{&core.SpecNotFoundError{Document: "semantic model"}, http.StatusNotFound, core.KindSpecNotFound},
		{&core.UnknownModelError{Name: "x"}, http.StatusBadRequest, core.KindUnknownModel},
		{&core.ExecutionError{Database: "w", Err: assert.AnError}, http.StatusBadGateway, core.KindExecution},
		{&badRequestError{err: assert.AnError}, http.StatusBadRequest, KindBadRequest},
		{assert.AnError, http.StatusInternalServerError, KindInternal},
	}
	for _, tt := range tests {
		status, kind := statusFor(tt.err)
		assert.Equal(t, tt.wantStatus, status, tt.err.Error())
		assert.Equal(t, tt.wantKind, kind)
	}
}
