package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/clipsmith/clipsmith-agent/internal/clips"
)

// BuildRecorder persists clip build lifecycle transitions. It implements
// clips.Recorder on top of the repository.
type BuildRecorder struct {
	repo   Repository
	logger *slog.Logger
}

func NewBuildRecorder(repo Repository, logger *slog.Logger) *BuildRecorder {
	return &BuildRecorder{repo: repo, logger: logger}
}

func (b *BuildRecorder) RecordBuildStarted(clipID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.repo.UpdateClipStatus(ctx, clipID, ClipStatusBuilding, "")
}

func (b *BuildRecorder) RecordBuildFinished(clipID string, result clips.BuildResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if !result.Success {
		return b.repo.UpdateClipStatus(ctx, clipID, ClipStatusFailed, result.Error)
	}

	if err := b.repo.UpdateClipResult(ctx, clipID, result.OutputPath, result.ThumbnailPath, result.Duration, result.FileSize); err != nil {
		return err
	}
	return b.repo.UpdateClipStatus(ctx, clipID, ClipStatusCompleted, "")
}
