package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/atelierops/api/internal/config"
	"github.com/atelierops/api/internal/importer"
	"github.com/atelierops/api/internal/importrun"
	"github.com/atelierops/api/internal/middleware"
)

type fakeRuns struct {
	started  []importrun.StartRequest
	startErr error
	views    map[uuid.UUID]importrun.View
	cancels  int
}

func (f *fakeRuns) Start(req importrun.StartRequest) (importrun.View, error) {
	if f.startErr != nil {
		return importrun.View{}, f.startErr
	}
	f.started = append(f.started, req)
	return importrun.View{
		ID:             uuid.New(),
		OrganizationID: req.Import.OrganizationID,
		FileName:       req.FileName,
		Fingerprint:    importrun.Fingerprint(req.File),
		Status:         importrun.StatusRunning,
		StartedAt:      time.Now().UTC(),
	}, nil
}

func (f *fakeRuns) Get(orgID, runID uuid.UUID) (importrun.View, error) {
	v, ok := f.views[runID]
	if !ok || v.OrganizationID != orgID {
		return importrun.View{}, importrun.ErrNotFound
	}
	return v, nil
}

func (f *fakeRuns) Cancel(orgID, runID uuid.UUID) (importrun.View, error) {
	v, err := f.Get(orgID, runID)
	if err == nil {
		f.cancels++
	}
	return v, err
}

const sampleCSV = "Order No,Client,Phone,Services\n" +
	"A-1,Ama Mensah,0241234567,Shirt - 2 pcs - GH₵50.00\n" +
	"A-2,Kofi Boateng,0209876543,Dress - 1 pcs - GH₵80.00\n"

func testConfig() config.Config {
	return config.Config{
		ImportMaxFileBytes: 1 << 20,
		ImportMaxRows:      100,
		ImportBatchSize:    25,
		ImportLineBatch:    100,
		ImportPageSize:     500,
		ImportCurrency:     importer.DefaultCurrency,
	}
}

func multipartRequest(t *testing.T, orgID uuid.UUID, filename, content, options string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = part.Write([]byte(content))
	}
	if options != "" {
		if err := mw.WriteField("options", options); err != nil {
			t.Fatalf("write options: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/imports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(middleware.WithOrganizationID(req.Context(), orgID))
}

const validOptions = `{"mapping":{"Order No":"order_number","Client":"client_name","Phone":"client_phone","Services":"services"},"batchSize":10,"duplicateContactCheck":true}`

func TestPostImportsStartsRun(t *testing.T) {
	runs := &fakeRuns{}
	s := NewServer(testConfig(), runs, nil, nil)
	orgID := uuid.New()

	rr := httptest.NewRecorder()
	s.PostImports(rr, multipartRequest(t, orgID, "orders.csv", sampleCSV, validOptions))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(runs.started) != 1 {
		t.Fatalf("expected one started run, got %d", len(runs.started))
	}
	req := runs.started[0]
	if req.Import.OrganizationID != orgID {
		t.Fatalf("organization not forwarded")
	}
	if len(req.Import.Rows) != 2 || req.Import.Rows[0]["Client"] != "Ama Mensah" {
		t.Fatalf("unexpected rows %+v", req.Import.Rows)
	}
	opts := req.Import.Options
	if opts.BatchSize != 10 || opts.LineBatchSize != 100 || opts.PageSize != 500 || !opts.DuplicateContactCheck || !opts.CollapseBatchDuplicates {
		t.Fatalf("unexpected options %+v", opts)
	}
	if !strings.HasPrefix(rr.Header().Get("Location"), "/api/imports/") {
		t.Fatalf("missing Location header")
	}

	var body startImportResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Run.FileName != "orders.csv" || body.Run.Status != importrun.StatusRunning {
		t.Fatalf("unexpected run %+v", body.Run)
	}
}

func TestPostImportsRejections(t *testing.T) {
	orgID := uuid.New()
	tests := []struct {
		name     string
		filename string
		content  string
		options  string
		startErr error
		status   int
		code     string
	}{
		{name: "missing file", options: validOptions, status: http.StatusBadRequest, code: "MISSING_FILE"},
		{name: "missing options", filename: "orders.csv", content: sampleCSV, status: http.StatusBadRequest, code: "MISSING_OPTIONS"},
		{name: "options not json", filename: "orders.csv", content: sampleCSV, options: "{", status: http.StatusBadRequest, code: "INVALID_OPTIONS"},
		{name: "order number unmapped", filename: "orders.csv", content: sampleCSV, options: `{"mapping":{"Client":"client_name"}}`, status: http.StatusBadRequest, code: "INVALID_MAPPING"},
		{name: "unknown field", filename: "orders.csv", content: sampleCSV, options: `{"mapping":{"Order No":"order_number","Client":"customer"}}`, status: http.StatusBadRequest, code: "INVALID_MAPPING"},
		{name: "unsupported type", filename: "orders.pdf", content: sampleCSV, options: validOptions, status: http.StatusUnsupportedMediaType, code: "UNSUPPORTED_FILE_TYPE"},
		{name: "empty file", filename: "orders.csv", content: "", options: validOptions, status: http.StatusBadRequest, code: "EMPTY_FILE"},
		{name: "run active", filename: "orders.csv", content: sampleCSV, options: validOptions, startErr: importrun.ErrRunActive, status: http.StatusConflict, code: "IMPORT_RUNNING"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer(testConfig(), &fakeRuns{startErr: tc.startErr}, nil, nil)
			rr := httptest.NewRecorder()
			s.PostImports(rr, multipartRequest(t, orgID, tc.filename, tc.content, tc.options))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), `"code":"`+tc.code+`"`) {
				t.Fatalf("expected code %s, got %s", tc.code, rr.Body.String())
			}
		})
	}
}

func TestPostImportsRejectsOversizedFile(t *testing.T) {
	cfg := testConfig()
	cfg.ImportMaxFileBytes = 16
	s := NewServer(cfg, &fakeRuns{}, nil, nil)
	rr := httptest.NewRecorder()
	s.PostImports(rr, multipartRequest(t, uuid.New(), "orders.csv", sampleCSV, validOptions))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestGetAndCancelImportRun(t *testing.T) {
	orgID := uuid.New()
	runID := uuid.New()
	runs := &fakeRuns{views: map[uuid.UUID]importrun.View{
		runID: {ID: runID, OrganizationID: orgID, Status: importrun.StatusRunning},
	}}
	s := NewServer(testConfig(), runs, nil, nil)

	get := func(org uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/imports/"+runID.String(), nil)
		req = req.WithContext(middleware.WithOrganizationID(req.Context(), org))
		rr := httptest.NewRecorder()
		s.GetImportsRunId(rr, req, openapi_types.UUID(runID))
		return rr
	}

	if rr := get(orgID); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr := get(uuid.New()); rr.Code != http.StatusNotFound {
		t.Fatalf("another organization must not see the run, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/imports/"+runID.String()+"/cancel", nil)
	req = req.WithContext(middleware.WithOrganizationID(req.Context(), orgID))
	rr := httptest.NewRecorder()
	s.PostImportsRunIdCancel(rr, req, openapi_types.UUID(runID))
	if rr.Code != http.StatusOK || runs.cancels != 1 {
		t.Fatalf("expected cancel to reach the manager, got %d (%d cancels)", rr.Code, runs.cancels)
	}
}

func TestGetImportsFields(t *testing.T) {
	s := NewServer(testConfig(), &fakeRuns{}, nil, nil)
	rr := httptest.NewRecorder()
	s.GetImportsFields(rr, httptest.NewRequest(http.MethodGet, "/api/imports/fields", nil))
	var body fieldsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Fields) != len(importer.Fields()) || body.Custom != importer.FieldCustom {
		t.Fatalf("unexpected fields %+v", body)
	}
}
