package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// ErrUnparseable is returned when the analysis output carries no usable
// video stream line.
var ErrUnparseable = errors.New("ffmpeg output did not contain parseable video metadata")

// VideoInfo holds container-level metadata for a video file. Immutable once
// probed.
type VideoInfo struct {
	Width    int
	Height   int
	Codec    string
	Duration float64 // seconds, 0 when not reported
	FPS      float64 // 0 when not reported
}

// Probe extracts video metadata by running a null-output analysis pass and
// parsing the diagnostic stream. Results are cached per source path for the
// lifetime of the process; within one build session the source file does not
// change, so the cache is never invalidated.
type Probe struct {
	runner Runner
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*VideoInfo
}

func NewProbe(runner Runner, logger *slog.Logger) *Probe {
	return &Probe{
		runner: runner,
		logger: logger,
		cache:  make(map[string]*VideoInfo),
	}
}

// Probe returns metadata for the video at path, spawning one ffmpeg process
// per uncached path. The cache lock is never held across the subprocess call.
func (p *Probe) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	p.mu.Lock()
	if info, ok := p.cache[path]; ok {
		p.mu.Unlock()
		return info, nil
	}
	p.mu.Unlock()

	// ffmpeg exits 0 for a decodable input with a null muxer; the metadata
	// we want is on stderr either way, so parse before checking exit status.
	result := p.runner.Run(ctx, "-hide_banner", "-i", path, "-f", "null", "-")

	info, err := parseVideoInfo(result.StderrTail)
	if err != nil {
		if !result.IsSuccess() {
			return nil, fmt.Errorf("ffmpeg probe of %s exited %d: %s", path, result.ExitCode, truncate(result.StderrTail, 512))
		}
		return nil, err
	}

	p.logger.Debug("probed video",
		"path", path,
		"width", info.Width,
		"height", info.Height,
		"codec", info.Codec,
	)

	p.mu.Lock()
	p.cache[path] = info
	p.mu.Unlock()

	return info, nil
}

// Duration returns the container duration of path in seconds. Unlike Probe it
// is uncached; callers use it on freshly rendered outputs.
func (p *Probe) Duration(ctx context.Context, path string) (float64, error) {
	result := p.runner.Run(ctx, "-hide_banner", "-i", path, "-f", "null", "-")
	d := parseDuration(result.StderrTail)
	if d <= 0 {
		return 0, fmt.Errorf("no duration in ffmpeg output for %s", path)
	}
	return d, nil
}

var (
	resolutionRe = regexp.MustCompile(`(\d{2,5})x(\d{2,5})`)
	videoLineRe  = regexp.MustCompile(`Video:\s*(\w+)`)
	durationRe   = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2})\.(\d{2})`)
	fpsRe        = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*fps`)
)

// parseVideoInfo tries a format-sensitive scan of the "Video:" stream line
// first, then falls back to a permissive regex sweep over the whole output.
func parseVideoInfo(stderr string) (*VideoInfo, error) {
	info := &VideoInfo{
		Duration: parseDuration(stderr),
	}

	if w, h, codec, fps, ok := parseStreamLine(stderr); ok {
		info.Width, info.Height, info.Codec, info.FPS = w, h, codec, fps
		return info, nil
	}

	// Permissive fallback: take the first resolution-looking token and the
	// first codec token following any "Video:" marker.
	if m := resolutionRe.FindStringSubmatch(stderr); m != nil {
		info.Width, _ = strconv.Atoi(m[1])
		info.Height, _ = strconv.Atoi(m[2])
	}
	if m := videoLineRe.FindStringSubmatch(stderr); m != nil {
		info.Codec = m[1]
	}
	if m := fpsRe.FindStringSubmatch(stderr); m != nil {
		info.FPS, _ = strconv.ParseFloat(m[1], 64)
	}

	if info.Width == 0 || info.Height == 0 {
		return nil, ErrUnparseable
	}
	return info, nil
}

func parseStreamLine(stderr string) (width, height int, codec string, fps float64, ok bool) {
	for _, line := range strings.Split(stderr, "\n") {
		idx := strings.Index(line, "Video:")
		if idx < 0 {
			continue
		}
		rest := line[idx+len("Video:"):]

		fields := strings.Split(rest, ",")
		if len(fields) == 0 {
			continue
		}

		// Codec is the first token after the marker, e.g. "h264 (High)".
		codecField := strings.TrimSpace(fields[0])
		if sp := strings.IndexByte(codecField, ' '); sp > 0 {
			codecField = codecField[:sp]
		}

		for _, f := range fields {
			f = strings.TrimSpace(f)
			if m := resolutionRe.FindStringSubmatch(f); m != nil {
				w, err1 := strconv.Atoi(m[1])
				h, err2 := strconv.Atoi(m[2])
				if err1 == nil && err2 == nil {
					width, height, codec = w, h, codecField
					if fm := fpsRe.FindStringSubmatch(rest); fm != nil {
						fps, _ = strconv.ParseFloat(fm[1], 64)
					}
					return width, height, codec, fps, true
				}
			}
		}
	}
	return 0, 0, "", 0, false
}

func parseDuration(stderr string) float64 {
	m := durationRe.FindStringSubmatch(stderr)
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	cs, _ := strconv.Atoi(m[4])
	return float64(h)*3600 + float64(min)*60 + float64(s) + float64(cs)/100
}
