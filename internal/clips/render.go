package clips

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/clipsmith/clipsmith-agent/internal/ffmpeg"
)

// Renderer extracts, crops and encodes source time ranges into a finished
// clip, splicing in prepared intro/outro files and burning subtitles when
// requested.
type Renderer struct {
	runner ffmpeg.Runner
	logger *slog.Logger
}

func NewRenderer(runner ffmpeg.Runner, logger *slog.Logger) *Renderer {
	return &Renderer{runner: runner, logger: logger}
}

// renderSpec carries everything one variant render needs. Subtitle timestamps
// are defined against the final clip timeline, so SubtitlePath can only be
// burned after intro/outro are spliced in.
type renderSpec struct {
	SourcePath   string
	Segments     []Segment
	OutputPath   string
	TempDir      string
	Encoder      ffmpeg.EncoderConfig
	FrameRate    int
	CropW        int
	CropH        int
	CropX        int
	CropY        int
	SubtitlePath string
	FontsDir     string
	IntroPath    string
	OutroPath    string
}

// Render produces spec.OutputPath. Single-segment requests without intro or
// outro are done in one encode with the subtitle burn fused into the filter
// chain; anything else goes through extract, stream-copy concat, and an
// optional burn pass.
func (r *Renderer) Render(ctx context.Context, spec renderSpec) error {
	if len(spec.Segments) == 1 && spec.IntroPath == "" && spec.OutroPath == "" {
		return r.renderSingle(ctx, spec)
	}
	return r.renderConcat(ctx, spec)
}

func (r *Renderer) renderSingle(ctx context.Context, spec renderSpec) error {
	args := extractArgs(spec.SourcePath, spec.Segments[0], spec.Encoder, spec.FrameRate,
		cropFilter(spec)+subtitleFilter(spec.SubtitlePath, spec.FontsDir), spec.OutputPath)

	result := r.runner.Run(ctx, args...)
	if !result.IsSuccess() {
		return fmt.Errorf("segment encode exited %d: %s", result.ExitCode, tailOf(result.StderrTail))
	}
	return nil
}

func (r *Renderer) renderConcat(ctx context.Context, spec renderSpec) error {
	partDir, err := os.MkdirTemp(spec.TempDir, "parts-")
	if err != nil {
		return fmt.Errorf("create parts dir: %w", err)
	}
	defer os.RemoveAll(partDir)

	// Each segment encodes independently; one failure fails the render and
	// no partial output is kept.
	parts := make([]string, len(spec.Segments))
	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range spec.Segments {
		parts[i] = filepath.Join(partDir, fmt.Sprintf("part_%03d.mp4", i))
		g.Go(func() error {
			args := extractArgs(spec.SourcePath, seg, spec.Encoder, spec.FrameRate, cropFilter(spec), parts[i])
			result := r.runner.Run(gctx, args...)
			if !result.IsSuccess() {
				return fmt.Errorf("segment %d encode exited %d: %s", i, result.ExitCode, tailOf(result.StderrTail))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var pieces []string
	if spec.IntroPath != "" {
		pieces = append(pieces, spec.IntroPath)
	}
	pieces = append(pieces, parts...)
	if spec.OutroPath != "" {
		pieces = append(pieces, spec.OutroPath)
	}

	concatTarget := spec.OutputPath
	burn := spec.SubtitlePath != ""
	if burn {
		concatTarget = filepath.Join(partDir, "concat.mp4")
	}

	if err := r.concat(ctx, pieces, partDir, concatTarget); err != nil {
		return err
	}
	if !burn {
		return nil
	}

	args := burnArgs(concatTarget, spec.Encoder, subtitleFilter(spec.SubtitlePath, spec.FontsDir), spec.OutputPath)
	result := r.runner.Run(ctx, args...)
	if !result.IsSuccess() {
		return fmt.Errorf("subtitle burn exited %d: %s", result.ExitCode, tailOf(result.StderrTail))
	}
	return nil
}

// concat splices the given files by stream copy via the concat demuxer. All
// inputs must already share codec, dimensions and frame rate.
func (r *Renderer) concat(ctx context.Context, files []string, tempDir, outputPath string) error {
	listPath := filepath.Join(tempDir, "concat_list.txt")
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(f, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	result := r.runner.Run(ctx, concatArgs(listPath, outputPath)...)
	if !result.IsSuccess() {
		return fmt.Errorf("concat exited %d: %s", result.ExitCode, tailOf(result.StderrTail))
	}
	return nil
}

// extractArgs builds the argument list for cutting one segment out of the
// source with the given filter chain. Seeking before the input keeps the
// extraction fast; the small keyframe imprecision is invisible at clip scale.
func extractArgs(sourcePath string, seg Segment, enc ffmpeg.EncoderConfig, frameRate int, filter, outputPath string) []string {
	args := []string{
		"-y",
		"-ss", formatSeconds(seg.StartTime),
		"-i", sourcePath,
		"-t", formatSeconds(seg.Duration()),
		"-vf", filter,
	}
	args = append(args, enc.Args()...)
	if frameRate > 0 {
		args = append(args, "-r", strconv.Itoa(frameRate))
	}
	args = append(args,
		"-c:a", "aac",
		"-ar", "44100",
		"-pix_fmt", "yuv420p",
		outputPath,
	)
	return args
}

// burnArgs builds the second-pass encode that renders subtitles onto an
// already concatenated clip. Audio is copied untouched.
func burnArgs(inputPath string, enc ffmpeg.EncoderConfig, filter, outputPath string) []string {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vf", strings.TrimPrefix(filter, ","),
	}
	args = append(args, enc.Args()...)
	args = append(args, "-c:a", "copy", outputPath)
	return args
}

func concatArgs(listPath, outputPath string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
}

func cropFilter(spec renderSpec) string {
	return fmt.Sprintf("crop=%d:%d:%d:%d", spec.CropW, spec.CropH, spec.CropX, spec.CropY)
}

// subtitleFilter returns the burn-in filter fragment, prefixed with a comma
// so it appends onto a crop chain; empty when no subtitle file is set.
func subtitleFilter(subtitlePath, fontsDir string) string {
	if subtitlePath == "" {
		return ""
	}
	f := ",subtitles=" + escapeFilterPath(subtitlePath)
	if fontsDir != "" {
		f += ":fontsdir=" + escapeFilterPath(fontsDir)
	}
	return f
}

// escapeFilterPath normalizes separators and escapes colons, which the
// filter-graph mini-language treats as argument separators.
func escapeFilterPath(p string) string {
	p = filepath.ToSlash(p)
	p = strings.ReplaceAll(p, `\`, `/`)
	p = strings.ReplaceAll(p, ":", `\:`)
	return p
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
