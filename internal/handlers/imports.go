package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/atelierops/api/internal/httpx"
	"github.com/atelierops/api/internal/importer"
	"github.com/atelierops/api/internal/importrun"
	"github.com/atelierops/api/internal/middleware"
	"github.com/atelierops/api/internal/rowsource"
)

// importOptionsPayload is the JSON carried in the "options" form part.
// Unset pointers fall back to the server configuration.
type importOptionsPayload struct {
	Mapping                 map[string]string `json:"mapping"`
	Sheet                   string            `json:"sheet,omitempty"`
	BatchSize               *int              `json:"batchSize,omitempty"`
	DryRun                  bool              `json:"dryRun,omitempty"`
	DuplicateContactCheck   *bool             `json:"duplicateContactCheck,omitempty"`
	CollapseBatchDuplicates *bool             `json:"collapseBatchDuplicates,omitempty"`
}

type fieldsResponse struct {
	Fields []importer.Field `json:"fields"`
	Custom importer.Field   `json:"custom"`
}

type startImportResponse struct {
	Run       importrun.View `json:"run"`
	RequestID string         `json:"requestId"`
}

// GetImportsFields lists the targets a column can be mapped to.
func (s *Server) GetImportsFields(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, fieldsResponse{Fields: importer.Fields(), Custom: importer.FieldCustom})
}

func (s *Server) PostImports(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.OrganizationIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "ORGANIZATION_REQUIRED", "X-Organization-Id header is required", nil)
		return
	}

	upload, err := s.parseImportUpload(r)
	if err != nil {
		httpx.Write(w, r, err)
		return
	}

	requestID := middleware.RequestIDFromContext(r.Context())
	view, err := s.Imports.Start(importrun.StartRequest{
		Import: importer.Request{
			OrganizationID: orgID,
			Rows:           upload.table.Rows,
			Lines:          upload.table.Lines,
			Mapping:        upload.options.Mapping,
			Options:        s.importOptions(upload.options),
		},
		FileName:  upload.fileName,
		File:      upload.data,
		RequestID: requestID,
	})
	if err != nil {
		switch {
		case errors.Is(err, importrun.ErrRunActive):
			httpx.WriteError(w, r, http.StatusConflict, "IMPORT_RUNNING", "An import is already running for this organization", nil)
		case isMappingError(err):
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_MAPPING", err.Error(), nil)
		default:
			s.Logger.Error("import_start_failed", "organization_id", orgID, "request_id", requestID, "error", err)
			httpx.Write(w, r, err)
		}
		return
	}

	w.Header().Set("Location", "/api/imports/"+view.ID.String())
	httpx.WriteJSON(w, http.StatusAccepted, startImportResponse{Run: view, RequestID: requestID})
}

type importUpload struct {
	fileName string
	data     []byte
	options  importOptionsPayload
	table    rowsource.Table
}

func (s *Server) parseImportUpload(r *http.Request) (importUpload, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return importUpload{}, httpx.NewError(http.StatusUnsupportedMediaType, "INVALID_CONTENT_TYPE", "Content-Type must be multipart/form-data")
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if middleware.IsBodyTooLarge(err) {
			return importUpload{}, httpx.NewError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Upload exceeds the size limit")
		}
		return importUpload{}, httpx.NewError(http.StatusBadRequest, "INVALID_MULTIPART", "Failed to parse multipart form")
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return importUpload{}, httpx.NewError(http.StatusBadRequest, "MISSING_FILE", "file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.Config.ImportMaxFileBytes+1))
	if err != nil {
		return importUpload{}, httpx.NewError(http.StatusBadRequest, "UNREADABLE_FILE", "Failed to read upload")
	}
	if int64(len(data)) > s.Config.ImportMaxFileBytes {
		return importUpload{}, httpx.NewError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Upload exceeds the size limit").
			WithDetails(map[string]int64{"maxBytes": s.Config.ImportMaxFileBytes})
	}

	raw := strings.TrimSpace(r.FormValue("options"))
	if raw == "" {
		return importUpload{}, httpx.NewError(http.StatusBadRequest, "MISSING_OPTIONS", "options is required")
	}
	var options importOptionsPayload
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return importUpload{}, httpx.NewError(http.StatusBadRequest, "INVALID_OPTIONS", "options must be valid JSON")
	}
	if _, err := importer.NewMapping(options.Mapping); err != nil {
		return importUpload{}, httpx.NewError(http.StatusBadRequest, "INVALID_MAPPING", err.Error())
	}

	table, err := rowsource.Read(header.Filename, bytes.NewReader(data), rowsource.Options{
		Sheet:   options.Sheet,
		MaxRows: s.Config.ImportMaxRows,
	})
	if err != nil {
		return importUpload{}, s.rowSourceError(err)
	}
	return importUpload{fileName: header.Filename, data: data, options: options, table: table}, nil
}

func (s *Server) GetImportsRunId(w http.ResponseWriter, r *http.Request, runId openapi_types.UUID) {
	s.withRun(w, r, runId, s.Imports.Get)
}

func (s *Server) PostImportsRunIdCancel(w http.ResponseWriter, r *http.Request, runId openapi_types.UUID) {
	s.withRun(w, r, runId, s.Imports.Cancel)
}

func (s *Server) withRun(w http.ResponseWriter, r *http.Request, runId openapi_types.UUID, fn func(orgID, runID uuid.UUID) (importrun.View, error)) {
	orgID, ok := middleware.OrganizationIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "ORGANIZATION_REQUIRED", "X-Organization-Id header is required", nil)
		return
	}
	view, err := fn(orgID, uuid.UUID(runId))
	if err != nil {
		if errors.Is(err, importrun.ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "IMPORT_NOT_FOUND", "Import run was not found", nil)
			return
		}
		httpx.Write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (s *Server) importOptions(p importOptionsPayload) importer.Options {
	opts := importer.DefaultOptions()
	if s.Config.ImportBatchSize > 0 {
		opts.BatchSize = s.Config.ImportBatchSize
	}
	if s.Config.ImportLineBatch > 0 {
		opts.LineBatchSize = s.Config.ImportLineBatch
	}
	if s.Config.ImportPageSize > 0 {
		opts.PageSize = s.Config.ImportPageSize
	}
	if s.Config.ImportCurrency != "" {
		opts.Currency = s.Config.ImportCurrency
	}
	if p.BatchSize != nil && *p.BatchSize > 0 {
		opts.BatchSize = *p.BatchSize
	}
	if p.DuplicateContactCheck != nil {
		opts.DuplicateContactCheck = *p.DuplicateContactCheck
	}
	if p.CollapseBatchDuplicates != nil {
		opts.CollapseBatchDuplicates = *p.CollapseBatchDuplicates
	}
	opts.DryRun = p.DryRun
	return opts
}

func (s *Server) rowSourceError(err error) *httpx.Error {
	switch {
	case errors.Is(err, rowsource.ErrUnsupportedType):
		return httpx.NewError(http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE", "Upload a .csv or .xlsx file")
	case errors.Is(err, rowsource.ErrEmptyFile):
		return httpx.NewError(http.StatusBadRequest, "EMPTY_FILE", "The file has no data rows")
	case errors.Is(err, rowsource.ErrTooManyRows):
		return httpx.NewError(http.StatusRequestEntityTooLarge, "TOO_MANY_ROWS", err.Error()).
			WithDetails(map[string]int{"maxRows": s.Config.ImportMaxRows})
	default:
		return httpx.NewError(http.StatusBadRequest, "UNREADABLE_FILE", err.Error())
	}
}

func isMappingError(err error) bool {
	return errors.Is(err, importer.ErrEmptyMapping) ||
		errors.Is(err, importer.ErrUnknownField) ||
		errors.Is(err, importer.ErrDuplicateField) ||
		errors.Is(err, importer.ErrOrderNumberUnmapped)
}
