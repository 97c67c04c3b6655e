package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/sessionshare/internal/config"
	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/web/internal/session"
)

// Version is stamped at build time with -ldflags "-X .../handlers.Version=..."
var Version = "dev"

// SettingsSource exposes the current session-sharing settings
type SettingsSource interface {
	Settings() config.Settings
}

// AuditWriter records audit entries
type AuditWriter interface {
	Create(ctx context.Context, log *entities.AuditLog) error
}

// HealthChecker reports whether storage is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds dependencies for all web handlers
type Handler struct {
	sessions *session.Manager
	settings SettingsSource
	audit    AuditWriter
	health   HealthChecker
	homePath string
	log      *slog.Logger
}

// New creates a new handler with dependencies. homePath is where logout lands.
func New(sessions *session.Manager, settings SettingsSource, audit AuditWriter, health HealthChecker, homePath string, logger *slog.Logger) *Handler {
	if homePath == "" {
		homePath = "/"
	}
	return &Handler{
		sessions: sessions,
		settings: settings,
		audit:    audit,
		health:   health,
		homePath: homePath,
		log:      logger.With(slog.String("component", "web_handler")),
	}
}

// writeJSON writes v with the given status
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
