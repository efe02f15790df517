package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hyperengineering/grmsync/internal/sync"
)

// Client-facing failure details. Internal errors are logged, never sent.
const (
	pullFailedDetail = "Sync failed, retry"
	pushFailedDetail = "Changes not saved, retry"
)

// SyncPull handles GET /api/v1/sync/pull
func (h *Handler) SyncPull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		WriteProblem(w, r, http.StatusUnauthorized, "Missing or invalid token")
		return
	}

	lastPulledAt, err := parseLastPulledAt(r)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.engine.Pull(ctx, userID, lastPulledAt)
	if err != nil {
		slog.Error("sync pull failed",
			"component", "api",
			"action", "sync_pull_failed",
			"user_id", userID,
			"last_pulled_at", lastPulledAt,
			"error", err,
		)
		switch {
		case errors.Is(err, sync.ErrInvalidCheckpoint):
			WriteProblem(w, r, http.StatusBadRequest, "Invalid lastPulledAt")
		case errors.Is(err, context.DeadlineExceeded):
			WriteProblem(w, r, http.StatusServiceUnavailable, pullFailedDetail)
		default:
			WriteProblem(w, r, http.StatusInternalServerError, pullFailedDetail)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode pull response", "user_id", userID, "error", err)
	}
}

// parseLastPulledAt reads the client checkpoint. Missing, empty and "null"
// mean a full resync.
func parseLastPulledAt(r *http.Request) (int64, error) {
	q := r.URL.Query()
	raw := q.Get("lastPulledAt")
	if raw == "" {
		raw = q.Get("last_pulled_at")
	}
	if raw == "" || raw == "null" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("lastPulledAt must be a non-negative integer, got %q", raw)
	}
	return v, nil
}

// SyncPush handles POST /api/v1/sync/push
func (h *Handler) SyncPush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		WriteProblem(w, r, http.StatusUnauthorized, "Missing or invalid token")
		return
	}

	var req sync.PushRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		slog.Warn("sync push body rejected", "component", "api", "action", "sync_push_invalid_json", "error", err)
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	err = h.engine.Push(ctx, userID, req)
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var rejected *sync.RejectedError
	switch {
	case errors.As(err, &rejected):
		WriteProblemWithRejections(w, r, "Changes rejected", rejected.Rejections)
	case errors.Is(err, sync.ErrBatchTooLarge):
		WriteProblem(w, r, http.StatusRequestEntityTooLarge,
			"Push contains too many records")
	case errors.Is(err, context.DeadlineExceeded):
		slog.Error("sync push timed out", "component", "api", "action", "sync_push_failed", "user_id", userID, "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, pushFailedDetail)
	default:
		slog.Error("sync push failed", "component", "api", "action", "sync_push_failed", "user_id", userID, "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, pushFailedDetail)
	}
}
