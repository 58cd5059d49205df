package clips

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/clipsmith/clipsmith-agent/internal/ffmpeg"
)

// introOutroKey identifies one processed variant of an auxiliary clip. The
// same intro re-encoded for two aspect ratios or frame rates is two entries.
type introOutroKey struct {
	Path      string
	Ratio     string
	FrameRate int
	CropW     int
	CropH     int
}

// IntroOutroCache maps processed intro/outro variants to their temp files.
// It lives for one build session and is shared across that build's parallel
// aspect-ratio tasks.
type IntroOutroCache struct {
	mu      sync.Mutex
	entries map[introOutroKey]string
}

func NewIntroOutroCache() *IntroOutroCache {
	return &IntroOutroCache{entries: make(map[introOutroKey]string)}
}

func (c *IntroOutroCache) get(key introOutroKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.entries[key]
	return path, ok
}

func (c *IntroOutroCache) put(key introOutroKey, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = path
}

// Preparer re-encodes intro/outro assets to match a build variant's crop and
// frame rate so they can later be concatenated by stream copy.
type Preparer struct {
	runner   ffmpeg.Runner
	probe    *ffmpeg.Probe
	selector *ffmpeg.Selector
	logger   *slog.Logger
}

func NewPreparer(runner ffmpeg.Runner, probe *ffmpeg.Probe, selector *ffmpeg.Selector, logger *slog.Logger) *Preparer {
	return &Preparer{runner: runner, probe: probe, selector: selector, logger: logger}
}

// Prepare returns the path of the asset re-encoded for the given variant,
// reusing the cache entry when a sibling task already produced it. The cache
// lock is never held across subprocess work, so two tasks racing on the same
// key may both encode; last write wins and both outputs are valid.
func (p *Preparer) Prepare(ctx context.Context, path, tempDir, prefix string, ratio AspectRatio, quality string, frameRate, cropW, cropH int, cache *IntroOutroCache) (string, error) {
	key := introOutroKey{
		Path:      path,
		Ratio:     ratio.Key(),
		FrameRate: frameRate,
		CropW:     cropW,
		CropH:     cropH,
	}

	if cached, ok := cache.get(key); ok {
		if _, err := os.Stat(cached); err == nil {
			return cached, nil
		}
	}

	info, err := p.probe.Probe(ctx, path)
	if err != nil {
		return "", fmt.Errorf("probe %s: %w", prefix, err)
	}

	cropX, cropY := CropPosition(info.Width, info.Height, cropW, cropH)
	encoder := p.selector.Select(ctx, quality)

	outputPath := filepath.Join(tempDir, fmt.Sprintf("%s_%s_%dx%d_%dfps.mp4", prefix, ratio.String(), cropW, cropH, frameRate))

	args := []string{"-y", "-i", path}
	args = append(args,
		"-vf", fmt.Sprintf("crop=%d:%d:%d:%d,scale=%d:%d,fps=%d", cropW, cropH, cropX, cropY, cropW, cropH, frameRate),
	)
	args = append(args, encoder.Args()...)
	args = append(args,
		"-r", strconv.Itoa(frameRate),
		"-c:a", "aac",
		"-ar", "44100",
		"-pix_fmt", "yuv420p",
		outputPath,
	)

	result := p.runner.Run(ctx, args...)
	if !result.IsSuccess() {
		return "", fmt.Errorf("%s encode exited %d: %s", prefix, result.ExitCode, tailOf(result.StderrTail))
	}

	cache.put(key, outputPath)
	p.logger.Debug("prepared auxiliary clip", "prefix", prefix, "path", outputPath)
	return outputPath, nil
}

func tailOf(stderr string) string {
	const max = 512
	if len(stderr) <= max {
		return stderr
	}
	return "..." + stderr[len(stderr)-max:]
}
