package clips

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/clipsmith/clipsmith-agent/internal/ffmpeg"
	"github.com/clipsmith/clipsmith-agent/internal/storage"
)

// Progress milestones. Per-ratio work is scaled into the window between
// progressBuildStart and progressBuildEnd by task index.
const (
	progressInit       = 10
	progressBuildStart = 10
	progressBuildEnd   = 85
	progressFinalize   = 90
	progressDone       = 100
)

// Recorder persists clip lifecycle transitions. The orchestrator treats
// persistence failures as log-worthy, not build-fatal.
type Recorder interface {
	RecordBuildStarted(clipID string) error
	RecordBuildFinished(clipID string, result BuildResult) error
}

// Orchestrator drives clip builds: one goroutine per requested aspect ratio,
// a registry guaranteeing at most one in-flight build per clip id, and
// progress/result delivery through the sink.
type Orchestrator struct {
	paths       *storage.Paths
	probe       *ffmpeg.Probe
	selector    *ffmpeg.Selector
	renderer    *Renderer
	preparer    *Preparer
	thumbnailer *ffmpeg.Thumbnailer
	composer    *Composer
	fontsDir    string
	sink        ProgressSink
	recorder    Recorder
	logger      *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

type OrchestratorDeps struct {
	Paths       *storage.Paths
	Probe       *ffmpeg.Probe
	Selector    *ffmpeg.Selector
	Renderer    *Renderer
	Preparer    *Preparer
	Thumbnailer *ffmpeg.Thumbnailer
	Composer    *Composer
	FontsDir    string
	Sink        ProgressSink
	Recorder    Recorder
	Logger      *slog.Logger
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		paths:       deps.Paths,
		probe:       deps.Probe,
		selector:    deps.Selector,
		renderer:    deps.Renderer,
		preparer:    deps.Preparer,
		thumbnailer: deps.Thumbnailer,
		composer:    deps.Composer,
		fontsDir:    deps.FontsDir,
		sink:        deps.Sink,
		recorder:    deps.Recorder,
		logger:      deps.Logger,
		active:      make(map[string]context.CancelFunc),
	}
}

// StartBuild registers the build and runs it in the background. The
// registration is synchronous so a duplicate request fails immediately with
// ErrDuplicateBuild instead of being queued.
func (o *Orchestrator) StartBuild(req BuildRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := o.register(req.ClipID, cancel); err != nil {
		cancel()
		return err
	}

	go func() {
		result := o.run(ctx, req)
		o.finish(req.ClipID, result)
	}()
	return nil
}

// Build runs synchronously. Used by callers that want the result inline;
// registry semantics are identical to StartBuild.
func (o *Orchestrator) Build(ctx context.Context, req BuildRequest) (BuildResult, error) {
	if err := req.Validate(); err != nil {
		return BuildResult{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := o.register(req.ClipID, cancel); err != nil {
		cancel()
		return BuildResult{}, err
	}

	result := o.run(ctx, req)
	o.finish(req.ClipID, result)
	return result, nil
}

// Cancel aborts an in-flight build. Cancellation is forceful: the build's
// context is cancelled, which kills any subprocess it spawned.
func (o *Orchestrator) Cancel(clipID string) bool {
	o.mu.Lock()
	cancel, ok := o.active[clipID]
	delete(o.active, clipID)
	o.mu.Unlock()

	if ok {
		cancel()
		o.logger.Info("build cancelled", "clip_id", clipID)
	}
	return ok
}

// ActiveCount reports the number of in-flight builds.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// IsActive reports whether a build is in flight for the clip id.
func (o *Orchestrator) IsActive(clipID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[clipID]
	return ok
}

func (o *Orchestrator) register(clipID string, cancel context.CancelFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.active[clipID]; exists {
		return ErrDuplicateBuild
	}
	o.active[clipID] = cancel

	if o.recorder != nil {
		if err := o.recorder.RecordBuildStarted(clipID); err != nil {
			o.logger.Warn("failed to record build start", "clip_id", clipID, "error", err)
		}
	}
	return nil
}

// finish removes the registry entry, persists and emits the terminal result.
// It runs on every exit path, success or failure.
func (o *Orchestrator) finish(clipID string, result BuildResult) {
	o.mu.Lock()
	cancel, ok := o.active[clipID]
	delete(o.active, clipID)
	o.mu.Unlock()
	if ok {
		cancel()
	}

	if o.recorder != nil {
		if err := o.recorder.RecordBuildFinished(clipID, result); err != nil {
			o.logger.Warn("failed to record build result", "clip_id", clipID, "error", err)
		}
	}
	o.sink.EmitResult(result)
}

// variantResult is the per-aspect-ratio outcome collected during fan-out.
type variantResult struct {
	OutputPath    string
	ThumbnailPath string
	Duration      float64
	FileSize      int64
}

func (o *Orchestrator) run(ctx context.Context, req BuildRequest) BuildResult {
	logger := o.logger.With("clip_id", req.ClipID, "project_id", req.ProjectID)
	logger.Info("build started",
		"segments", len(req.Segments),
		"aspect_ratios", req.AspectRatios,
		"quality", req.Quality,
	)

	fail := func(err error) BuildResult {
		logger.Error("build failed", "error", err)
		return BuildResult{
			ClipID:    req.ClipID,
			ProjectID: req.ProjectID,
			Success:   false,
			Error:     err.Error(),
		}
	}

	o.emitProgress(req, 0, "initializing", "Preparing build")

	outputDir, err := o.resolveOutputDir(req)
	if err != nil {
		return fail(err)
	}

	// One probe shared by every aspect-ratio task.
	info, err := o.probe.Probe(ctx, req.SourcePath)
	if err != nil {
		return fail(fmt.Errorf("probe source: %w", err))
	}

	tempDir, err := os.MkdirTemp(o.paths.TempDir(), "build-"+req.ClipID+"-")
	if err != nil {
		return fail(fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(tempDir)

	o.emitProgress(req, progressInit, "building", "Rendering aspect ratios")

	cache := NewIntroOutroCache()
	variants := make([]variantResult, len(req.AspectRatios))

	g, gctx := errgroup.WithContext(ctx)
	for i, ratioStr := range req.AspectRatios {
		g.Go(func() error {
			v, err := o.buildVariant(gctx, req, ratioStr, i, info, outputDir, tempDir, cache)
			if err != nil {
				return fmt.Errorf("aspect ratio %s: %w", ratioStr, err)
			}
			variants[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	o.emitProgress(req, progressFinalize, "finalizing", "Collecting outputs")

	// Aggregate: first ratio's artifact paths and duration, summed sizes.
	var totalSize int64
	for _, v := range variants {
		totalSize += v.FileSize
	}

	result := BuildResult{
		ClipID:        req.ClipID,
		ProjectID:     req.ProjectID,
		Success:       true,
		OutputPath:    variants[0].OutputPath,
		ThumbnailPath: variants[0].ThumbnailPath,
		Duration:      variants[0].Duration,
		FileSize:      totalSize,
	}

	o.emitProgress(req, progressDone, "completed", "Build complete")
	logger.Info("build completed", "output", result.OutputPath, "total_size", totalSize)
	return result
}

// buildVariant renders one aspect-ratio output. Steps are strictly
// sequential within the variant; only the index-0 variant probes duration and
// generates a thumbnail.
func (o *Orchestrator) buildVariant(ctx context.Context, req BuildRequest, ratioStr string, index int, info *ffmpeg.VideoInfo, outputDir, tempDir string, cache *IntroOutroCache) (variantResult, error) {
	ratio, err := ParseAspectRatio(ratioStr)
	if err != nil {
		return variantResult{}, err
	}

	cropW, cropH, cropX, cropY := CropRect(info.Width, info.Height, ratio)
	encoder := o.selector.Select(ctx, req.Quality)

	format := req.Format
	if format == "" {
		format = "mp4"
	}
	outputPath := filepath.Join(outputDir, fmt.Sprintf("clip_%s.%s", ratio.String(), format))

	progress := func(pct int, message string) {
		o.emitProgress(req, scaleProgress(pct, index, len(req.AspectRatios)), "building", message)
	}
	progress(0, "Rendering "+ratioStr)

	subtitlePath, err := o.writeSubtitles(req, ratio, info, tempDir)
	if err != nil {
		return variantResult{}, err
	}
	if subtitlePath != "" {
		defer os.Remove(subtitlePath)
	}
	progress(20, "Subtitles ready")

	introPath, outroPath, err := o.prepareIntroOutro(ctx, req, ratio, tempDir, cropW, cropH, cache)
	if err != nil {
		return variantResult{}, err
	}
	progress(35, "Encoding segments")

	spec := renderSpec{
		SourcePath:   req.SourcePath,
		Segments:     req.Segments,
		OutputPath:   outputPath,
		TempDir:      tempDir,
		Encoder:      encoder,
		FrameRate:    req.FrameRate,
		CropW:        cropW,
		CropH:        cropH,
		CropX:        cropX,
		CropY:        cropY,
		SubtitlePath: subtitlePath,
		FontsDir:     o.fontsDir,
		IntroPath:    introPath,
		OutroPath:    outroPath,
	}
	if err := o.renderer.Render(ctx, spec); err != nil {
		return variantResult{}, err
	}
	progress(90, "Encoded "+ratioStr)

	v := variantResult{OutputPath: outputPath}
	if stat, err := os.Stat(outputPath); err == nil {
		v.FileSize = stat.Size()
	}

	// Thumbnail and duration come from the first-listed ratio regardless of
	// completion order. Failures here never fail the build.
	if index == 0 {
		thumbPath := filepath.Join(o.paths.ThumbnailsDir(), req.ClipID+".jpg")
		if err := o.thumbnailer.Generate(ctx, outputPath, thumbPath); err != nil {
			o.logger.Warn("thumbnail generation failed", "clip_id", req.ClipID, "error", err)
		} else {
			v.ThumbnailPath = thumbPath
		}

		if d, err := o.probe.Duration(ctx, outputPath); err != nil {
			o.logger.Warn("duration probe failed", "clip_id", req.ClipID, "error", err)
		} else {
			v.Duration = d
		}
	}

	progress(100, "Finished "+ratioStr)
	return v, nil
}

// writeSubtitles generates the per-ratio subtitle file in the temp dir, or
// returns "" when subtitles are disabled or there are no words.
func (o *Orchestrator) writeSubtitles(req BuildRequest, ratio AspectRatio, info *ffmpeg.VideoInfo, tempDir string) (string, error) {
	if req.Subtitles == nil || !req.Subtitles.Enabled || len(req.Words) == 0 {
		return "", nil
	}

	doc, err := o.composer.Generate(req.Subtitles, req.Words, req.Segments,
		req.MaxWordsPerPage, ratio, info.Width, info.Height, req.IntroDuration)
	if err != nil {
		return "", fmt.Errorf("generate subtitles: %w", err)
	}

	path := filepath.Join(tempDir, fmt.Sprintf("subs_%s.ass", ratio.String()))
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", fmt.Errorf("write subtitle file: %w", err)
	}
	return path, nil
}

func (o *Orchestrator) prepareIntroOutro(ctx context.Context, req BuildRequest, ratio AspectRatio, tempDir string, cropW, cropH int, cache *IntroOutroCache) (introPath, outroPath string, err error) {
	if req.IntroPath != "" {
		introPath, err = o.preparer.Prepare(ctx, req.IntroPath, tempDir, "intro", ratio, req.Quality, req.FrameRate, cropW, cropH, cache)
		if err != nil {
			return "", "", fmt.Errorf("prepare intro: %w", err)
		}
	}
	if req.OutroPath != "" {
		outroPath, err = o.preparer.Prepare(ctx, req.OutroPath, tempDir, "outro", ratio, req.Quality, req.FrameRate, cropW, cropH, cache)
		if err != nil {
			return "", "", fmt.Errorf("prepare outro: %w", err)
		}
	}
	return introPath, outroPath, nil
}

// resolveOutputDir builds clips/project_{id}/run-{N}/{name} (manual-builds
// in place of run-N when no run number is given) and ensures it exists.
func (o *Orchestrator) resolveOutputDir(req BuildRequest) (string, error) {
	name := storage.SanitizeName(req.Name, 80)

	runFolder := "manual-builds"
	if req.RunNumber != nil {
		runFolder = fmt.Sprintf("run-%d", *req.RunNumber)
	}

	dir := filepath.Join(o.paths.ClipsDir(),
		"project_"+storage.SanitizeName(req.ProjectID, 64), runFolder, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return dir, nil
}

// scaleProgress maps a variant-local percentage into this task's slice of
// the shared 10-85% window.
func scaleProgress(pct, index, total int) int {
	if total <= 0 {
		total = 1
	}
	window := float64(progressBuildEnd-progressBuildStart) / float64(total)
	base := float64(progressBuildStart) + window*float64(index)
	return int(base + window*float64(pct)/100)
}

func (o *Orchestrator) emitProgress(req BuildRequest, pct int, stage, message string) {
	o.sink.EmitProgress(BuildProgress{
		ClipID:    req.ClipID,
		ProjectID: req.ProjectID,
		Progress:  pct,
		Stage:     stage,
		Message:   message,
	})
}
