package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	openapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apidoc "github.com/atelierops/api/api"
	"github.com/atelierops/api/internal/config"
	"github.com/atelierops/api/internal/handlers"
	"github.com/atelierops/api/internal/httpx"
	"github.com/atelierops/api/internal/metrics"
	"github.com/atelierops/api/internal/middleware"
)

type Deps struct {
	Imports handlers.ImportRuns
	DB      handlers.Pinger
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

func NewRouter(cfg config.Config, deps Deps) (http.Handler, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(apidoc.OpenAPI)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.SecurityHeaders(cfg.Env))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.LimitBodyBytes(cfg.APIMaxBodyBytes, middleware.BodyLimit{
		PathPrefix: "/imports",
		// Multipart framing on top of the file itself.
		MaxBytes: cfg.ImportMaxFileBytes + 1<<20,
	}))

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	api := chi.NewRouter()
	api.Use(openapimiddleware.OapiRequestValidatorWithOptions(doc, &openapimiddleware.Options{
		SilenceServersWarning: true,
		// Uploads are checked by the handler; the filter would buffer the whole file.
		Options: openapi3filter.Options{ExcludeRequestBody: true},
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			httpx.WriteJSON(w, statusCode, httpx.ErrorEnvelope{
				Error:     httpx.ErrorBody{Code: "VALIDATION_ERROR", Message: message},
				RequestID: w.Header().Get("X-Request-Id"),
			})
		},
	}))

	h := handlers.NewServer(cfg, deps.Imports, logger, deps.DB)
	importLimiter := middleware.NewRateLimiter(cfg.ImportRateLimit, time.Minute, cfg.RateLimitMaxIPs)

	api.Get("/health", h.GetHealth)

	api.Route("/imports", func(imports chi.Router) {
		imports.Use(middleware.RequireOrganization)
		imports.Get("/fields", h.GetImportsFields)
		imports.With(importLimiter.Middleware("Too many imports started, try again shortly")).Post("/", h.PostImports)
		imports.Get("/{runId}", func(w http.ResponseWriter, r *http.Request) {
			withRunID(w, r, h.GetImportsRunId)
		})
		imports.Post("/{runId}/cancel", func(w http.ResponseWriter, r *http.Request) {
			withRunID(w, r, h.PostImportsRunIdCancel)
		})
	})

	r.Mount("/api", api)
	return r, nil
}

func withRunID(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request, openapi_types.UUID)) {
	var runID openapi_types.UUID
	if err := runID.UnmarshalText([]byte(chi.URLParam(r, "runId"))); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "runId must be a UUID", nil)
		return
	}
	next(w, r, runID)
}
