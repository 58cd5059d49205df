package clips

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings() *SubtitleSettings {
	return &SubtitleSettings{
		Enabled:         true,
		FontFamily:      "Inter",
		FontSize:        48,
		FontWeight:      700,
		TextColor:       "#FFFFFF",
		Border1Color:    "#000000",
		Border2Color:    "#FF0000",
		ShadowColor:     "#000000",
		Border1Width:    2,
		Border2Width:    4,
		ShadowOffsetX:   2,
		ShadowOffsetY:   2,
		PositionPercent: 80,
		MaxWidthPercent: 80,
	}
}

func makeWords(n int, wordDur float64) []WordInfo {
	words := make([]WordInfo, n)
	for i := range words {
		start := float64(i) * wordDur
		words[i] = WordInfo{
			Word:  "w" + string(rune('a'+i)),
			Start: start,
			End:   start + wordDur,
		}
	}
	return words
}

func TestPaginate_ChunkBoundaries(t *testing.T) {
	timeline := buildTimeline(makeWords(11, 0.5), []Segment{{StartTime: 0, EndTime: 6}}, 0)
	if len(timeline) != 11 {
		t.Fatalf("expected 11 timeline words, got %d", len(timeline))
	}

	pages := paginate(timeline, 4, 0)
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	if len(pages[0].Words) != 4 || len(pages[1].Words) != 4 || len(pages[2].Words) != 3 {
		t.Fatalf("page sizes = %d,%d,%d, want 4,4,3",
			len(pages[0].Words), len(pages[1].Words), len(pages[2].Words))
	}
	if pages[0].VisibleStart != 0 {
		t.Fatalf("page 0 visible start = %v, want 0", pages[0].VisibleStart)
	}
	if pages[2].VisibleStart != pages[1].Words[3].End {
		t.Fatalf("page 2 visible start = %v, want previous page last word end %v",
			pages[2].VisibleStart, pages[1].Words[3].End)
	}
	if pages[1].VisibleEnd != pages[1].Words[3].End {
		t.Fatalf("page visible end = %v, want its last word end %v",
			pages[1].VisibleEnd, pages[1].Words[3].End)
	}
}

func TestBuildTimeline_FiltersAndShifts(t *testing.T) {
	words := []WordInfo{
		{Word: "before", Start: 1.0, End: 1.5},
		{Word: "inside", Start: 10.2, End: 10.6},
		{Word: "edge", Start: 9.95, End: 10.4}, // within the 0.1s tolerance
		{Word: "after", Start: 30.0, End: 30.5},
	}
	segments := []Segment{{StartTime: 10, EndTime: 15}}

	timeline := buildTimeline(words, segments, 2.0)
	if len(timeline) != 2 {
		t.Fatalf("expected 2 filtered words, got %d", len(timeline))
	}
	// Sorted by shifted start: "edge" lands just before "inside".
	if timeline[0].Text != "edge" || timeline[1].Text != "inside" {
		t.Fatalf("unexpected order: %q, %q", timeline[0].Text, timeline[1].Text)
	}
	want := 10.2 - 10 + 2.0
	if diff := timeline[1].Start - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("shifted start = %v, want %v", timeline[1].Start, want)
	}
}

func TestBuildTimeline_ConcatOffsetAcrossSegments(t *testing.T) {
	words := []WordInfo{
		{Word: "first", Start: 5.0, End: 5.5},
		{Word: "second", Start: 20.0, End: 20.5},
	}
	segments := []Segment{
		{StartTime: 4, EndTime: 8},
		{StartTime: 19, EndTime: 22},
	}

	timeline := buildTimeline(words, segments, 0)
	if len(timeline) != 2 {
		t.Fatalf("expected 2 words, got %d", len(timeline))
	}
	// Second segment's words start after the first segment's 4s of output.
	want := 20.0 - 19 + 4
	if diff := timeline[1].Start - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("concat-shifted start = %v, want %v", timeline[1].Start, want)
	}
}

func TestAnimationDurationMs_Monotonic(t *testing.T) {
	durations := []float64{0.01, 0.04, 0.05, 0.09, 0.10, 0.19, 0.20, 0.39, 0.40, 0.44, 0.444, 0.5, 1.0, 5.0}
	prev := -1
	for _, d := range durations {
		got := animationDurationMs(d)
		if got < prev {
			t.Fatalf("animationDurationMs(%v) = %d, decreased from %d", d, got, prev)
		}
		prev = got
	}
}

func TestAnimationDurationMs_Thresholds(t *testing.T) {
	tests := []struct {
		dur  float64
		want int
	}{
		{dur: 0.04, want: 0},
		{dur: 0.08, want: 24},  // 30% of 80ms
		{dur: 0.15, want: 52},  // 35% of 150ms
		{dur: 0.30, want: 120}, // 40% of 300ms
		{dur: 0.42, want: 189}, // 45% of 420ms
		{dur: 1.0, want: 200},  // capped
		{dur: 10.0, want: 200},
	}
	for _, tc := range tests {
		if got := animationDurationMs(tc.dur); got != tc.want {
			t.Fatalf("animationDurationMs(%v) = %d, want %d", tc.dur, got, tc.want)
		}
	}
}

func TestGenerate_EmptyWordsProducesHeadersOnly(t *testing.T) {
	c := NewComposer("", discardLogger())
	doc, err := c.Generate(testSettings(), nil, []Segment{{StartTime: 0, EndTime: 5}},
		4, AspectRatio{Width: 16, Height: 9}, 1920, 1080, 0)
	if err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	if !strings.Contains(doc, "[Script Info]") || !strings.Contains(doc, "[V4+ Styles]") {
		t.Fatalf("document missing headers:\n%s", doc)
	}
	if !strings.Contains(doc, "[Events]") {
		t.Fatalf("document missing events section:\n%s", doc)
	}
	if strings.Contains(doc, "Dialogue:") {
		t.Fatalf("expected no dialogue lines:\n%s", doc)
	}
}

func TestGenerate_CanvasFollowsSourceAspect(t *testing.T) {
	c := NewComposer("", discardLogger())
	doc, err := c.Generate(testSettings(), nil, []Segment{{StartTime: 0, EndTime: 5}},
		4, AspectRatio{Width: 16, Height: 9}, 1920, 1080, 0)
	if err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	if !strings.Contains(doc, "PlayResX: 1920") || !strings.Contains(doc, "PlayResY: 1080") {
		t.Fatalf("unexpected canvas dimensions:\n%s", doc)
	}
}

func TestGenerate_HighlightEvents(t *testing.T) {
	c := NewComposer("", discardLogger())
	words := []WordInfo{
		{Word: "hello", Start: 0.5, End: 1.0},
		{Word: "world", Start: 1.0, End: 1.6},
	}
	doc, err := c.Generate(testSettings(), words, []Segment{{StartTime: 0, EndTime: 5}},
		4, AspectRatio{Width: 9, Height: 16}, 1920, 1080, 0)
	if err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	if !strings.Contains(doc, `\fscx115\fscy115`) {
		t.Fatalf("missing scale animation tag:\n%s", doc)
	}
	if !strings.Contains(doc, `\alpha&HFF&`) {
		t.Fatalf("missing hidden-word alpha tag:\n%s", doc)
	}
	if !strings.Contains(doc, "Style: Outer,") || !strings.Contains(doc, "Style: Inner,") {
		t.Fatalf("missing layered styles:\n%s", doc)
	}
}

func TestFontScaleFactor(t *testing.T) {
	tests := []struct {
		ratio AspectRatio
		want  float64
	}{
		{ratio: AspectRatio{Width: 9, Height: 16}, want: 0.65},
		{ratio: AspectRatio{Width: 1, Height: 1}, want: 0.78},
		{ratio: AspectRatio{Width: 16, Height: 9}, want: 1.0},
	}
	for _, tc := range tests {
		if got := fontScaleFactor(tc.ratio); got != tc.want {
			t.Fatalf("fontScaleFactor(%v) = %v, want %v", tc.ratio, got, tc.want)
		}
	}
}

func TestAssColor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "#FFFFFF", want: "&H00FFFFFF"},
		{in: "#FF0000", want: "&H000000FF"}, // red: BGR ordering
		{in: "#0000FF", want: "&H00FF0000"},
		{in: "#12ab34", want: "&H0034AB12"},
		{in: "nonsense", want: "&H00FFFFFF"},
		{in: "", want: "&H00FFFFFF"},
	}
	for _, tc := range tests {
		if got := assColor(tc.in, "&H00FFFFFF"); got != tc.want {
			t.Fatalf("assColor(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAssTimestamp(t *testing.T) {
	tests := []struct {
		sec  float64
		want string
	}{
		{sec: 0, want: "0:00:00.00"},
		{sec: 1.5, want: "0:00:01.50"},
		{sec: 61.25, want: "0:01:01.25"},
		{sec: 3661.0, want: "1:01:01.00"},
		{sec: -2, want: "0:00:00.00"},
	}
	for _, tc := range tests {
		if got := assTimestamp(tc.sec); got != tc.want {
			t.Fatalf("assTimestamp(%v) = %q, want %q", tc.sec, got, tc.want)
		}
	}
}

func TestFontFileName(t *testing.T) {
	tests := []struct {
		family string
		weight int
		want   string
	}{
		{family: "Inter", weight: 700, want: "Inter-Bold.ttf"},
		{family: "Inter", weight: 650, want: "Inter-SemiBold.ttf"},
		{family: "Inter", weight: 500, want: "Inter-Medium.ttf"},
		{family: "Inter", weight: 400, want: "Inter-Regular.ttf"},
		{family: "Inter", weight: 300, want: "Inter-Light.ttf"},
		{family: "Inter", weight: 200, want: "Inter-Thin.ttf"},
		{family: "Noto Sans", weight: 700, want: "NotoSans-Bold.ttf"},
		{family: "Permanent Marker", weight: 700, want: "PermanentMarker-Regular.ttf"},
	}
	for _, tc := range tests {
		if got := fontFileName(tc.family, tc.weight); got != tc.want {
			t.Fatalf("fontFileName(%q, %d) = %q, want %q", tc.family, tc.weight, got, tc.want)
		}
	}
}

func TestUuencode_LineFormat(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}

	out := uuencode(data)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines for 100 bytes, got %d", len(lines))
	}
	// Full lines carry 45 bytes: length char 'M' (32+45).
	if lines[0][0] != 'M' || lines[1][0] != 'M' {
		t.Fatalf("full lines must start with 'M', got %q %q", lines[0][0], lines[1][0])
	}
	// Last line carries the remaining 10 bytes: 32+10 = '*'.
	if lines[2][0] != '*' {
		t.Fatalf("short line length char = %q, want '*'", lines[2][0])
	}
	// 45 bytes encode to 15 groups of 4 chars plus the length prefix.
	if len(lines[0]) != 1+60 {
		t.Fatalf("full line length = %d, want 61", len(lines[0]))
	}
	for _, line := range lines {
		for _, ch := range line {
			if ch != '`' && (ch < 32 || ch > 95) {
				t.Fatalf("non-encodable char %q in line %q", ch, line)
			}
		}
	}
}

func TestSanitizeASS(t *testing.T) {
	got := sanitizeASS(`a{b}c\d`)
	if got != `a(b)c\\d` {
		t.Fatalf("sanitizeASS = %q", got)
	}
}
