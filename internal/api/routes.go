package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipsmith/clipsmith-agent/internal/clips"
	"github.com/clipsmith/clipsmith-agent/internal/store"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/clips/build", buildClipHandler(cfg))
		r.Post("/clips/{id}/cancel", cancelClipHandler(cfg))
		r.Get("/clips", listClipsHandler(cfg))
		r.Get("/clips/{id}", getClipHandler(cfg))
		r.Get("/clips/file", clipFileHandler(cfg))

		if cfg.Hub != nil {
			r.Get("/ws", cfg.Hub.HandleWebSocket)
		}
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  int64(time.Since(cfg.StartTime).Seconds()),
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipRecords, err := cfg.Repository.ListClips(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list clips", "INTERNAL_ERROR")
			return
		}

		active := cfg.Orchestrator.ActiveCount()
		state := "idle"
		if active > 0 {
			state = "building"
		}

		lastError := ""
		for _, c := range clipRecords {
			if c.Status == store.ClipStatusFailed && lastError == "" {
				lastError = c.Error
			}
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:        state,
			BuildsActive: active,
			ClipsTotal:   len(clipRecords),
			LastError:    lastError,
		})
	}
}

// buildClipHandler accepts a build request, records the clip, and starts the
// build in the background. A duplicate clip id answers 409.
func buildClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BuildClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.ClipID == "" {
			req.ClipID = store.NewID()
		}
		if err := req.BuildRequest.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		if req.AllocateRun && req.RunNumber == nil {
			run, err := cfg.Repository.NextRunNumber(r.Context(), req.ProjectID)
			if err != nil {
				WriteError(w, http.StatusInternalServerError, "failed to allocate run number", "INTERNAL_ERROR")
				return
			}
			req.RunNumber = &run
		}

		record := &store.ClipRecord{
			ID:        req.ClipID,
			ProjectID: req.ProjectID,
			Name:      req.Name,
			Status:    store.ClipStatusPending,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if req.RunNumber != nil {
			record.RunNumber = *req.RunNumber
		}
		if err := cfg.Repository.CreateClip(r.Context(), record); err != nil {
			cfg.Logger.Warn("failed to persist clip record", "clip_id", req.ClipID, "error", err)
		}

		if err := cfg.Orchestrator.StartBuild(req.BuildRequest); err != nil {
			if errors.Is(err, clips.ErrDuplicateBuild) {
				WriteError(w, http.StatusConflict, err.Error(), "DUPLICATE_BUILD")
				return
			}
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusAccepted, BuildClipResponse{
			ClipID:    req.ClipID,
			RunNumber: req.RunNumber,
		})
	}
}

func cancelClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "clip id required", "BAD_REQUEST")
			return
		}

		cancelled := cfg.Orchestrator.Cancel(id)
		if cancelled {
			if err := cfg.Repository.UpdateClipStatus(r.Context(), id, store.ClipStatusCancelled, ""); err != nil {
				cfg.Logger.Warn("failed to mark clip cancelled", "clip_id", id, "error", err)
			}
		}
		WriteJSON(w, http.StatusOK, CancelResponse{Cancelled: cancelled})
	}
}

func listClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := cfg.Repository.ListClips(r.Context(), 100)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list clips", "INTERNAL_ERROR")
			return
		}

		resp := ClipsResponse{Clips: make([]ClipResponse, len(records))}
		for i, c := range records {
			resp.Clips[i] = ClipToResponse(c, cfg.Orchestrator.IsActive(c.ID))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "clip id required", "BAD_REQUEST")
			return
		}

		record, err := cfg.Repository.GetClip(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if record == nil {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, ClipToResponse(record, cfg.Orchestrator.IsActive(record.ID)))
	}
}

// clipFileHandler streams a rendered clip or thumbnail. Paths outside the
// agent's artifact directories are refused.
func clipFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		if !cfg.Paths.Contains(path) {
			WriteError(w, http.StatusForbidden, "path outside managed directories", "FORBIDDEN")
			return
		}

		if err := cfg.Playback.ServeFile(w, r, path); err != nil {
			cfg.Logger.Error("clip file serve error", "error", err, "path", path)
		}
	}
}
