package api

import (
	"time"

	"github.com/clipsmith/clipsmith-agent/internal/clips"
	"github.com/clipsmith/clipsmith-agent/internal/store"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State        string `json:"state"`
	BuildsActive int    `json:"builds_active"`
	ClipsTotal   int    `json:"clips_total"`
	LastError    string `json:"last_error,omitempty"`
}

// BuildClipRequest is the build submission payload. AllocateRun asks the
// agent to assign the next run number for the project; an explicit RunNumber
// in the embedded request wins over allocation.
type BuildClipRequest struct {
	clips.BuildRequest
	AllocateRun bool `json:"allocate_run,omitempty"`
}

type BuildClipResponse struct {
	ClipID    string `json:"clip_id"`
	RunNumber *int   `json:"run_number,omitempty"`
}

type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type ClipResponse struct {
	ID            string  `json:"id"`
	ProjectID     string  `json:"project_id"`
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	RunNumber     int     `json:"run_number,omitempty"`
	OutputPath    string  `json:"output_path,omitempty"`
	ThumbnailPath string  `json:"thumbnail_path,omitempty"`
	Duration      float64 `json:"duration"`
	FileSize      int64   `json:"file_size"`
	Building      bool    `json:"building"`
	Error         string  `json:"error,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type ClipsResponse struct {
	Clips []ClipResponse `json:"clips"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ClipToResponse(c *store.ClipRecord, building bool) ClipResponse {
	return ClipResponse{
		ID:            c.ID,
		ProjectID:     c.ProjectID,
		Name:          c.Name,
		Status:        c.Status,
		RunNumber:     c.RunNumber,
		OutputPath:    c.OutputPath,
		ThumbnailPath: c.ThumbnailPath,
		Duration:      c.Duration,
		FileSize:      c.FileSize,
		Building:      building,
		Error:         c.Error,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     c.UpdatedAt.Format(time.RFC3339),
	}
}
