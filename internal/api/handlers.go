package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hyperengineering/grmsync/internal/sync"
)

// SyncEngine is the sync behavior the handlers expose.
type SyncEngine interface {
	Pull(ctx context.Context, userID string, lastPulledAt int64) (*sync.PullResponse, error)
	Push(ctx context.Context, userID string, req sync.PushRequest) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DefaultMaxBodyBytes caps push bodies when no limit is configured.
const DefaultMaxBodyBytes = 10 << 20

// Handler implements the API handlers
type Handler struct {
	engine       SyncEngine
	pinger       Pinger
	secret       []byte
	version      string
	maxBodyBytes int64
}

// NewHandler creates a Handler. A non-positive maxBodyBytes uses
// DefaultMaxBodyBytes.
func NewHandler(engine SyncEngine, pinger Pinger, secret []byte, version string, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		engine:       engine,
		pinger:       pinger,
		secret:       secret,
		version:      version,
		maxBodyBytes: maxBodyBytes,
	}
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health reports liveness and store reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		slog.Error("health check failed",
			"component", "api",
			"action", "health",
			"error", err,
		)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "healthy", Version: h.version})
}
