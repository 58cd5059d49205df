package ffmpeg

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// fakeRunner returns canned results and counts invocations.
type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	respond func(args []string) RunResult
}

func (f *fakeRunner) Run(_ context.Context, args ...string) RunResult {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(args)
	}
	return RunResult{ExitCode: 0}
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sampleStderr = `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mp4':
  Duration: 00:01:23.45, start: 0.000000, bitrate: 5000 kb/s
  Stream #0:0(und): Video: h264 (High) (avc1 / 0x31637661), yuv420p, 1920x1080 [SAR 1:1 DAR 16:9], 4800 kb/s, 29.97 fps, 29.97 tbr, 30k tbn
  Stream #0:1(und): Audio: aac (LC) (mp4a / 0x6134706D), 44100 Hz, stereo, fltp, 128 kb/s
`

func TestParseVideoInfo_StreamLine(t *testing.T) {
	info, err := parseVideoInfo(sampleStderr)
	if err != nil {
		t.Fatalf("parseVideoInfo() error = %v", err)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("resolution = %dx%d, want 1920x1080", info.Width, info.Height)
	}
	if info.Codec != "h264" {
		t.Errorf("codec = %s, want h264", info.Codec)
	}
	if info.FPS != 29.97 {
		t.Errorf("fps = %f, want 29.97", info.FPS)
	}
	if info.Duration != 83.45 {
		t.Errorf("duration = %f, want 83.45", info.Duration)
	}
}

func TestParseVideoInfo_Fallback(t *testing.T) {
	// Resolution and fps separated from the stream line defeat the strict
	// parser; the permissive sweep should still recover them.
	stderr := `  Stream #0:0: Video: vp9
  1280x720
  24 fps
  Duration: 00:00:10.00, start: 0.000000
`
	info, err := parseVideoInfo(stderr)
	if err != nil {
		t.Fatalf("parseVideoInfo() error = %v", err)
	}
	if info.Width != 1280 || info.Height != 720 {
		t.Errorf("resolution = %dx%d, want 1280x720", info.Width, info.Height)
	}
	if info.Codec != "vp9" {
		t.Errorf("codec = %s, want vp9", info.Codec)
	}
	if info.FPS != 24 {
		t.Errorf("fps = %f, want 24", info.FPS)
	}
}

func TestParseVideoInfo_Unparseable(t *testing.T) {
	_, err := parseVideoInfo("in.mp4: Invalid data found when processing input\n")
	if err != ErrUnparseable {
		t.Errorf("parseVideoInfo() error = %v, want ErrUnparseable", err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		stderr string
		want   float64
	}{
		{"  Duration: 00:00:05.00, start: 0.0", 5.0},
		{"  Duration: 01:02:03.50, start: 0.0", 3723.5},
		{"no duration here", 0},
	}
	for _, tc := range tests {
		if got := parseDuration(tc.stderr); got != tc.want {
			t.Errorf("parseDuration(%q) = %f, want %f", tc.stderr, got, tc.want)
		}
	}
}

func TestProbe_CachesPerPath(t *testing.T) {
	runner := &fakeRunner{respond: func([]string) RunResult {
		return RunResult{ExitCode: 0, StderrTail: sampleStderr}
	}}
	probe := NewProbe(runner, testLogger())
	ctx := context.Background()

	first, err := probe.Probe(ctx, "/videos/a.mp4")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	second, err := probe.Probe(ctx, "/videos/a.mp4")
	if err != nil {
		t.Fatalf("second Probe() error = %v", err)
	}
	if first != second {
		t.Error("cached probe returned a different instance")
	}
	if runner.callCount() != 1 {
		t.Errorf("runner invoked %d times, want 1", runner.callCount())
	}

	if _, err := probe.Probe(ctx, "/videos/b.mp4"); err != nil {
		t.Fatalf("Probe(b) error = %v", err)
	}
	if runner.callCount() != 2 {
		t.Errorf("runner invoked %d times after second path, want 2", runner.callCount())
	}
}

func TestProbe_FailureCarriesStderr(t *testing.T) {
	runner := &fakeRunner{respond: func([]string) RunResult {
		return RunResult{ExitCode: 1, StderrTail: "in.mp4: No such file or directory"}
	}}
	probe := NewProbe(runner, testLogger())

	_, err := probe.Probe(context.Background(), "/videos/missing.mp4")
	if err == nil {
		t.Fatal("Probe() should fail for unreadable input")
	}
	if got := err.Error(); !strings.Contains(got, "No such file") {
		t.Errorf("error %q should carry the ffmpeg diagnostic", got)
	}
}

func TestDuration_Uncached(t *testing.T) {
	runner := &fakeRunner{respond: func([]string) RunResult {
		return RunResult{ExitCode: 0, StderrTail: sampleStderr}
	}}
	probe := NewProbe(runner, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := probe.Duration(ctx, "/clips/out.mp4")
		if err != nil {
			t.Fatalf("Duration() error = %v", err)
		}
		if d != 83.45 {
			t.Errorf("Duration() = %f, want 83.45", d)
		}
	}
	if runner.callCount() != 2 {
		t.Errorf("runner invoked %d times, want 2 (no caching)", runner.callCount())
	}
}
