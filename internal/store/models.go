package store

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	ClipStatusPending   = "pending"
	ClipStatusBuilding  = "building"
	ClipStatusCompleted = "completed"
	ClipStatusFailed    = "failed"
	ClipStatusCancelled = "cancelled"
)

// ClipRecord is the persisted bookkeeping row for one clip build.
type ClipRecord struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	RunNumber     int       `json:"run_number,omitempty"`
	OutputPath    string    `json:"output_path,omitempty"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	Duration      float64   `json:"duration"`
	FileSize      int64     `json:"file_size"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
