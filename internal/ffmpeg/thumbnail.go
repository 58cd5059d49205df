package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const thumbnailWidth = 320

// Thumbnailer extracts a single preview frame from a rendered clip.
type Thumbnailer struct {
	runner Runner
	logger *slog.Logger
}

func NewThumbnailer(runner Runner, logger *slog.Logger) *Thumbnailer {
	return &Thumbnailer{runner: runner, logger: logger}
}

// Generate seeks one second into clipPath and writes a 320px-wide JPEG to
// outputPath. Callers treat failure as non-fatal.
func (t *Thumbnailer) Generate(ctx context.Context, clipPath, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail dir: %w", err)
	}

	result := t.runner.Run(ctx,
		"-y",
		"-ss", "1",
		"-i", clipPath,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", thumbnailWidth),
		outputPath,
	)
	if !result.IsSuccess() {
		return fmt.Errorf("thumbnail extraction exited %d: %s", result.ExitCode, truncate(result.StderrTail, 512))
	}

	t.logger.Debug("thumbnail generated", "clip", clipPath, "thumbnail", outputPath)
	return nil
}
