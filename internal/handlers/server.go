package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/atelierops/api/internal/config"
	"github.com/atelierops/api/internal/httpx"
	"github.com/atelierops/api/internal/importrun"
)

// ImportRuns is the slice of importrun.Manager the handlers drive.
type ImportRuns interface {
	Start(req importrun.StartRequest) (importrun.View, error)
	Get(orgID, runID uuid.UUID) (importrun.View, error)
	Cancel(orgID, runID uuid.UUID) (importrun.View, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Config  config.Config
	Imports ImportRuns
	Logger  *slog.Logger
	DB      Pinger
}

func NewServer(cfg config.Config, imports ImportRuns, logger *slog.Logger, db Pinger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{Config: cfg, Imports: imports, Logger: logger, DB: db}
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			s.Logger.Warn("health_db_unreachable", "error", err)
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
