package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atelierops/api/internal/config"
	"github.com/atelierops/api/internal/importer"
	"github.com/atelierops/api/internal/importrun"
	"github.com/atelierops/api/internal/metrics"
	"github.com/atelierops/api/internal/store/memory"
)

type testEnv struct {
	router  http.Handler
	manager *importrun.Manager
	store   *memory.Store
}

func setupTestEnv(t *testing.T) testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		Env:                "test",
		APIMaxBodyBytes:    1 << 20,
		ImportMaxFileBytes: 4 << 20,
		ImportMaxRows:      1000,
		ImportBatchSize:    2,
		ImportLineBatch:    10,
		ImportPageSize:     100,
		ImportCurrency:     importer.DefaultCurrency,
		ImportRateLimit:    5,
		RateLimitMaxIPs:    100,
	}
	reg := metrics.NewRegistry()
	st := memory.New()
	manager := importrun.NewManager(context.Background(), importer.New(st, logger, reg), nil, logger)
	router, err := NewRouter(cfg, Deps{Imports: manager, Metrics: reg, Logger: logger})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return testEnv{router: router, manager: manager, store: st}
}

func request(t *testing.T, router http.Handler, method, path string, body io.Reader, headers map[string]string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	resBody, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, resBody
}

func uploadBody(t *testing.T, filename, content, options string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte(content))
	_ = mw.WriteField("options", options)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

const ordersCSV = "Order No,Client,Phone,Services,Top Worker\n" +
	"A-1,Ama Mensah,0241234567,Shirt - 2 pcs - GH₵50.00 Trouser - 1 pcs - GH₵30.00,Yaw\n" +
	"A-2,Ama Mensah,0241234567,Shirt - 1 pcs - GH₵50.00,Yaw\n" +
	"A-3,Kofi Boateng,0209876543,Dress - 1 pcs - GH₵80.00,Esi\n"

const ordersOptions = `{"mapping":{"Order No":"order_number","Client":"client_name","Phone":"client_phone","Services":"services","Top Worker":"top_worker"}}`

func TestImportRoundTrip(t *testing.T) {
	env := setupTestEnv(t)
	orgID := uuid.New()
	headers := map[string]string{"X-Organization-Id": orgID.String()}

	body, contentType := uploadBody(t, "orders.csv", ordersCSV, ordersOptions)
	status, raw := request(t, env.router, http.MethodPost, "/api/imports", body, map[string]string{
		"X-Organization-Id": orgID.String(),
		"Content-Type":      contentType,
	})
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", status, raw)
	}
	var started struct {
		Run importrun.View `json:"run"`
	}
	if err := json.Unmarshal(raw, &started); err != nil {
		t.Fatalf("decode start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.manager.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	status, raw = request(t, env.router, http.MethodGet, "/api/imports/"+started.Run.ID.String(), nil, headers)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, raw)
	}
	var view importrun.View
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Status != importrun.StatusCompleted || view.Result == nil {
		t.Fatalf("expected completed run with result, got %+v", view)
	}
	if view.Result.OrdersCreated != 3 || view.Result.ClientsCreated != 2 || view.Result.ServicesCreated != 3 || view.Result.WorkersCreated != 2 {
		t.Fatalf("unexpected result %+v", view.Result)
	}
	if got := len(env.store.Orders(orgID)); got != 3 {
		t.Fatalf("expected 3 stored orders, got %d", got)
	}
	if view.Progress.Current != view.Progress.Total {
		t.Fatalf("progress did not reach total: %+v", view.Progress)
	}
}

func TestImportsRequireOrganization(t *testing.T) {
	env := setupTestEnv(t)
	status, raw := request(t, env.router, http.MethodGet, "/api/imports/fields", nil, nil)
	if status != http.StatusBadRequest || !strings.Contains(string(raw), "ORGANIZATION_REQUIRED") {
		t.Fatalf("expected ORGANIZATION_REQUIRED, got %d: %s", status, raw)
	}
}

func TestRunsAreScopedToOrganization(t *testing.T) {
	env := setupTestEnv(t)
	orgA := uuid.New()
	body, contentType := uploadBody(t, "orders.csv", ordersCSV, ordersOptions)
	status, raw := request(t, env.router, http.MethodPost, "/api/imports", body, map[string]string{
		"X-Organization-Id": orgA.String(),
		"Content-Type":      contentType,
	})
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", status, raw)
	}
	var started struct {
		Run importrun.View `json:"run"`
	}
	_ = json.Unmarshal(raw, &started)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = env.manager.Wait(ctx)

	status, _ = request(t, env.router, http.MethodGet, "/api/imports/"+started.Run.ID.String(), nil, map[string]string{
		"X-Organization-Id": uuid.NewString(),
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for another organization, got %d", status)
	}
}

func TestRouterRejectsMalformedRunID(t *testing.T) {
	env := setupTestEnv(t)
	status, raw := request(t, env.router, http.MethodGet, "/api/imports/not-a-uuid", nil, map[string]string{
		"X-Organization-Id": uuid.NewString(),
	})
	if status != http.StatusBadRequest || !strings.Contains(string(raw), "VALIDATION_ERROR") {
		t.Fatalf("expected validation error, got %d: %s", status, raw)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestEnv(t)
	if status, raw := request(t, env.router, http.MethodGet, "/api/health", nil, nil); status != http.StatusOK {
		t.Fatalf("health: %d %s", status, raw)
	}
	status, raw := request(t, env.router, http.MethodGet, "/metrics", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("metrics: %d", status)
	}
	if !strings.Contains(string(raw), "order_import_row_warnings_total") {
		t.Fatalf("unexpected metrics body %s", raw)
	}
}
