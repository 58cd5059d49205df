package clips

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/clipsmith/clipsmith-agent/internal/ffmpeg"
)

// fakeRunner records every invocation and answers from a script keyed on a
// distinguishing argument substring.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string

	// respond supplies the result for a call; nil means empty output and
	// exit 0 for everything.
	respond func(args []string) ffmpeg.RunResult

	// createOutputs makes the runner touch the last argument as a file,
	// imitating an encoder writing its output.
	createOutputs bool
}

func (f *fakeRunner) Run(_ context.Context, args ...string) ffmpeg.RunResult {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()

	if f.createOutputs && len(args) > 0 {
		last := args[len(args)-1]
		if last != "-" && !strings.HasPrefix(last, "-") {
			_ = os.WriteFile(last, []byte("fake-video"), 0o644)
		}
	}

	if f.respond != nil {
		return f.respond(args)
	}
	return ffmpeg.RunResult{ExitCode: 0}
}

func (f *fakeRunner) callCount(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if strings.Contains(strings.Join(call, " "), substr) {
			n++
		}
	}
	return n
}

// probeStderr is a plausible analysis banner for a 1920x1080 h264 source.
const probeStderr = `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'intro.mp4':
  Duration: 00:00:05.00, start: 0.000000, bitrate: 2500 kb/s
  Stream #0:0(und): Video: h264 (High) (avc1 / 0x31637661), yuv420p, 1920x1080, 2300 kb/s, 30 fps, 30 tbr, 15360 tbn`

func probeAware(f *fakeRunner) {
	f.respond = func(args []string) ffmpeg.RunResult {
		for _, a := range args {
			if a == "null" {
				return ffmpeg.RunResult{ExitCode: 0, StderrTail: probeStderr}
			}
		}
		return ffmpeg.RunResult{ExitCode: 0}
	}
}

func newTestPreparer(f *fakeRunner) *Preparer {
	logger := discardLogger()
	probe := ffmpeg.NewProbe(f, logger)
	selector := ffmpeg.NewSelector(f, logger)
	return NewPreparer(f, probe, selector, logger)
}

func TestPrepare_CacheHitSkipsEncode(t *testing.T) {
	f := &fakeRunner{createOutputs: true}
	probeAware(f)
	prep := newTestPreparer(f)
	cache := NewIntroOutroCache()
	tempDir := t.TempDir()
	ratio := AspectRatio{Width: 16, Height: 9}

	first, err := prep.Prepare(context.Background(), "intro.mp4", tempDir, "intro", ratio, ffmpeg.QualityMedium, 30, 1920, 1080, cache)
	if err != nil {
		t.Fatalf("first Prepare error = %v", err)
	}
	second, err := prep.Prepare(context.Background(), "intro.mp4", tempDir, "intro", ratio, ffmpeg.QualityMedium, 30, 1920, 1080, cache)
	if err != nil {
		t.Fatalf("second Prepare error = %v", err)
	}
	if first != second {
		t.Fatalf("cache miss: %q != %q", first, second)
	}
	if got := f.callCount("crop="); got != 1 {
		t.Fatalf("expected exactly 1 encode invocation, got %d", got)
	}
}

func TestPrepare_DifferentFrameRateReEncodes(t *testing.T) {
	f := &fakeRunner{createOutputs: true}
	probeAware(f)
	prep := newTestPreparer(f)
	cache := NewIntroOutroCache()
	tempDir := t.TempDir()
	ratio := AspectRatio{Width: 16, Height: 9}

	if _, err := prep.Prepare(context.Background(), "intro.mp4", tempDir, "intro", ratio, ffmpeg.QualityMedium, 30, 1920, 1080, cache); err != nil {
		t.Fatalf("Prepare(30fps) error = %v", err)
	}
	if _, err := prep.Prepare(context.Background(), "intro.mp4", tempDir, "intro", ratio, ffmpeg.QualityMedium, 60, 1920, 1080, cache); err != nil {
		t.Fatalf("Prepare(60fps) error = %v", err)
	}
	if got := f.callCount("crop="); got != 2 {
		t.Fatalf("expected 2 encode invocations for distinct frame rates, got %d", got)
	}
}

func TestPrepare_StaleCacheEntryReEncodes(t *testing.T) {
	f := &fakeRunner{createOutputs: true}
	probeAware(f)
	prep := newTestPreparer(f)
	cache := NewIntroOutroCache()
	tempDir := t.TempDir()
	ratio := AspectRatio{Width: 16, Height: 9}

	path, err := prep.Prepare(context.Background(), "intro.mp4", tempDir, "intro", ratio, ffmpeg.QualityMedium, 30, 1920, 1080, cache)
	if err != nil {
		t.Fatalf("Prepare error = %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove cached output: %v", err)
	}

	if _, err := prep.Prepare(context.Background(), "intro.mp4", tempDir, "intro", ratio, ffmpeg.QualityMedium, 30, 1920, 1080, cache); err != nil {
		t.Fatalf("Prepare after removal error = %v", err)
	}
	if got := f.callCount("crop="); got != 2 {
		t.Fatalf("expected re-encode after cached file vanished, got %d invocations", got)
	}
}

func TestPrepare_EncodeFailure(t *testing.T) {
	f := &fakeRunner{}
	f.respond = func(args []string) ffmpeg.RunResult {
		for _, a := range args {
			if a == "null" {
				return ffmpeg.RunResult{ExitCode: 0, StderrTail: probeStderr}
			}
		}
		return ffmpeg.RunResult{ExitCode: 1, StderrTail: "No such file or directory"}
	}
	prep := newTestPreparer(f)
	cache := NewIntroOutroCache()

	_, err := prep.Prepare(context.Background(), "intro.mp4", t.TempDir(), "intro",
		AspectRatio{Width: 16, Height: 9}, ffmpeg.QualityMedium, 30, 1920, 1080, cache)
	if err == nil {
		t.Fatal("expected encode error")
	}
	if !strings.Contains(err.Error(), "No such file") {
		t.Fatalf("error should carry stderr text, got %v", err)
	}
	if _, ok := cache.get(introOutroKey{Path: "intro.mp4", Ratio: "16:9", FrameRate: 30, CropW: 1920, CropH: 1080}); ok {
		t.Fatal("failed encode must not populate the cache")
	}
}

func TestPrepare_ForcesConcatCompatiblePixelFormat(t *testing.T) {
	f := &fakeRunner{createOutputs: true}
	probeAware(f)
	prep := newTestPreparer(f)
	tempDir := t.TempDir()

	if _, err := prep.Prepare(context.Background(), "intro.mp4", tempDir, "intro",
		AspectRatio{Width: 16, Height: 9}, ffmpeg.QualityMedium, 30, 1920, 1080, NewIntroOutroCache()); err != nil {
		t.Fatalf("Prepare error = %v", err)
	}

	// Concatenation is stream copy, so the prepared asset must carry the same
	// pixel format the segment extractions emit.
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.calls {
		joined := strings.Join(call, " ")
		if !strings.Contains(joined, "crop=") {
			continue
		}
		if !strings.Contains(joined, "-pix_fmt yuv420p") {
			t.Fatalf("encode args missing -pix_fmt yuv420p: %s", joined)
		}
		return
	}
	t.Fatal("no encode invocation recorded")
}

func TestPrepare_OutputInTempDir(t *testing.T) {
	f := &fakeRunner{createOutputs: true}
	probeAware(f)
	prep := newTestPreparer(f)
	tempDir := t.TempDir()

	path, err := prep.Prepare(context.Background(), "outro.mp4", tempDir, "outro",
		AspectRatio{Width: 9, Height: 16}, ffmpeg.QualityMedium, 30, 607, 1080, NewIntroOutroCache())
	if err != nil {
		t.Fatalf("Prepare error = %v", err)
	}
	if filepath.Dir(path) != tempDir {
		t.Fatalf("output %q not in temp dir %q", path, tempDir)
	}
	if !strings.Contains(filepath.Base(path), "outro") {
		t.Fatalf("output name missing prefix: %q", path)
	}
}
