package clips

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
)

// ASS geometry works on a virtual canvas normalized to height 1080; width
// follows the source aspect so horizontal percentages stay meaningful.
const (
	canvasHeight = 1080.0

	// Rendered glyphs come out visually smaller than the requested point
	// size; the correction keeps the output matching the preview.
	fontSizeCorrection = 1.5

	// Style borders render centered on the glyph edge rather than outward,
	// so configured widths are slimmed down to match the intended look.
	borderCorrection = 0.8

	// Intervals shorter than this are boundary-rounding noise, not real
	// highlight windows.
	minIntervalSeconds = 0.010

	// Words within this distance of a segment edge still belong to it;
	// transcript timestamps jitter around cut points.
	segmentToleranceSeconds = 0.1

	maxAnimationMs     = 200
	activeWordScalePct = 115

	defaultWordsPerPage = 4
)

// Composer turns styling settings and a word-level transcript into an ASS
// subtitle document with per-word highlight animation.
type Composer struct {
	fontsDir string
	logger   *slog.Logger
}

func NewComposer(fontsDir string, logger *slog.Logger) *Composer {
	return &Composer{fontsDir: fontsDir, logger: logger}
}

// timedWord is a transcript word re-based onto the output clip timeline.
type timedWord struct {
	Text  string
	Start float64
	End   float64
}

// page is one fixed-size chunk of the word timeline together with the time
// window during which its text is on screen.
type page struct {
	Words        []timedWord
	VisibleStart float64
	VisibleEnd   float64
}

// Generate produces the full subtitle document for one aspect-ratio variant.
// timeOffset shifts every event forward, covering a prepended intro. An empty
// timeline yields a valid document with styles but no events.
func (c *Composer) Generate(settings *SubtitleSettings, words []WordInfo, segments []Segment, maxWordsPerPage int, ratio AspectRatio, videoW, videoH int, timeOffset float64) (string, error) {
	if settings == nil {
		return "", fmt.Errorf("subtitle settings are required")
	}
	if videoW <= 0 || videoH <= 0 {
		return "", fmt.Errorf("invalid video dimensions %dx%d", videoW, videoH)
	}

	canvasW := float64(videoW) * canvasHeight / float64(videoH)
	scale := fontScaleFactor(ratio) * fontSizeCorrection

	var b strings.Builder
	writeScriptInfo(&b, canvasW)
	c.writeFonts(&b, settings)
	writeStyles(&b, settings, scale)

	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	timeline := buildTimeline(words, segments, timeOffset)
	pages := paginate(timeline, maxWordsPerPage, timeOffset)
	pos := positionTag(settings, canvasW, scale)

	for _, pg := range pages {
		writePageEvents(&b, pg, pos)
	}

	return b.String(), nil
}

func writeScriptInfo(b *strings.Builder, canvasW float64) {
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(b, "PlayResX: %d\n", int(canvasW))
	fmt.Fprintf(b, "PlayResY: %d\n", int(canvasHeight))
	b.WriteString("ScaledBorderAndShadow: yes\n")
	b.WriteString("WrapStyle: 2\n")
}

// writeFonts embeds the configured font file so playback does not depend on
// system-installed fonts. A missing file is logged and skipped; the renderer
// falls back to a system font.
func (c *Composer) writeFonts(b *strings.Builder, settings *SubtitleSettings) {
	if c.fontsDir == "" || settings.FontFamily == "" {
		return
	}
	name, data, err := loadFont(c.fontsDir, settings.FontFamily, settings.FontWeight)
	if err != nil {
		c.logger.Warn("font embedding skipped", "family", settings.FontFamily, "error", err)
		return
	}

	b.WriteString("\n[Fonts]\n")
	fmt.Fprintf(b, "fontname: %s\n", name)
	b.WriteString(uuencode(data))
}

// writeStyles emits the two layered styles faking a dual-stroke outline: the
// outer style carries both border widths plus the drop shadow, the inner one
// only the first border. Events reference them back-to-front.
func writeStyles(b *strings.Builder, settings *SubtitleSettings, scale float64) {
	fontSize := settings.FontSize * scale
	border1 := settings.Border1Width * scale * borderCorrection
	border2 := (settings.Border1Width + settings.Border2Width) * scale * borderCorrection
	shadow := math.Hypot(settings.ShadowOffsetX, settings.ShadowOffsetY) * scale
	spacing := settings.LetterSpacing * scale

	bold := 0
	if settings.FontWeight >= 700 {
		bold = 1
	}

	primary := assColor(settings.TextColor, "&H00FFFFFF")
	border1Color := assColor(settings.Border1Color, "&H00000000")
	border2Color := assColor(settings.Border2Color, "&H00000000")
	shadowColor := assColor(settings.ShadowColor, "&H00000000")

	b.WriteString("\n[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(b, "Style: Outer,%s,%.0f,%s,%s,%s,%s,%d,0,0,0,100,100,%.2f,0,1,%.2f,%.2f,5,0,0,0,1\n",
		settings.FontFamily, fontSize, primary, primary, border2Color, shadowColor, bold, spacing, border2, shadow)
	fmt.Fprintf(b, "Style: Inner,%s,%.0f,%s,%s,%s,%s,%d,0,0,0,100,100,%.2f,0,1,%.2f,0,5,0,0,0,1\n",
		settings.FontFamily, fontSize, primary, primary, border1Color, shadowColor, bold, spacing, border1)
}

// fontScaleFactor shrinks text on narrow outputs so the same settings look
// right across vertical, square and wide variants.
func fontScaleFactor(ratio AspectRatio) float64 {
	switch aspect := ratio.Value(); {
	case aspect <= 0.9:
		return 0.65
	case aspect <= 1.1:
		return 0.78
	default:
		return 1.0
	}
}

// positionTag computes the shared middle-center anchor override for every
// event. Vertical placement anchors at a canvas-height percentage, nudged by
// an offset expressed against approximate text height, then corrected upward
// because the size correction pushes the visual baseline down.
func positionTag(settings *SubtitleSettings, canvasW, scale float64) string {
	fontSize := settings.FontSize * scale
	textHeight := fontSize * 1.2

	boxWidth := canvasW
	if settings.MaxWidthPercent > 0 {
		boxWidth = canvasW * settings.MaxWidthPercent / 100
	}

	x := canvasW/2 + settings.OffsetXPercent/100*boxWidth
	y := settings.PositionPercent/100*canvasHeight +
		settings.OffsetYPercent/100*textHeight -
		fontSize*0.2

	return fmt.Sprintf(`{\an5\pos(%.1f,%.1f)}`, x, y)
}

// buildTimeline filters transcript words into the requested segments, shifts
// them onto the concatenated output timeline, and sorts by start time. A
// tolerance window around each segment keeps words whose timestamps jitter
// slightly past a cut point.
func buildTimeline(words []WordInfo, segments []Segment, timeOffset float64) []timedWord {
	var out []timedWord
	var concatOffset float64

	for _, seg := range segments {
		for _, w := range words {
			if w.Start < seg.StartTime-segmentToleranceSeconds ||
				w.End > seg.EndTime+segmentToleranceSeconds {
				continue
			}
			text := sanitizeASS(w.Word)
			if text == "" {
				continue
			}
			start := w.Start - seg.StartTime + concatOffset + timeOffset
			end := w.End - seg.StartTime + concatOffset + timeOffset
			if start < 0 {
				start = 0
			}
			if end < start {
				end = start
			}
			out = append(out, timedWord{Text: text, Start: start, End: end})
		}
		concatOffset += seg.Duration()
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// paginate splits the timeline into fixed-size pages. A page becomes visible
// when the previous page's last word ends (the clip start for page 0) and
// stays up until its own last word ends.
func paginate(timeline []timedWord, maxWords int, timeOffset float64) []page {
	if maxWords <= 0 {
		maxWords = defaultWordsPerPage
	}

	var pages []page
	prevEnd := timeOffset
	for i := 0; i < len(timeline); i += maxWords {
		end := i + maxWords
		if end > len(timeline) {
			end = len(timeline)
		}
		chunk := timeline[i:end]
		pg := page{
			Words:        chunk,
			VisibleStart: prevEnd,
			VisibleEnd:   chunk[len(chunk)-1].End,
		}
		pages = append(pages, pg)
		prevEnd = pg.VisibleEnd
	}
	return pages
}

// writePageEvents subdivides the page's visible window at every word
// boundary and emits, per interval, the base text on both style layers plus,
// when a word is active at the interval midpoint, a highlight pair scaling
// that word while hiding its neighbors to preserve spacing.
func writePageEvents(b *strings.Builder, pg page, pos string) {
	boundaries := intervalBoundaries(pg)

	base := pos + pageText(pg.Words)

	for i := 0; i+1 < len(boundaries); i++ {
		start, end := boundaries[i], boundaries[i+1]
		if end-start < minIntervalSeconds {
			continue
		}

		writeDialogue(b, 0, start, end, "Outer", base)
		writeDialogue(b, 1, start, end, "Inner", base)

		mid := (start + end) / 2
		active := activeWordIndex(pg.Words, mid)
		if active < 0 {
			continue
		}

		highlight := pos + highlightText(pg.Words, active)
		writeDialogue(b, 2, start, end, "Outer", highlight)
		writeDialogue(b, 3, start, end, "Inner", highlight)
	}
}

func intervalBoundaries(pg page) []float64 {
	set := map[float64]struct{}{
		pg.VisibleStart: {},
		pg.VisibleEnd:   {},
	}
	for _, w := range pg.Words {
		if w.Start > pg.VisibleStart && w.Start < pg.VisibleEnd {
			set[w.Start] = struct{}{}
		}
		if w.End > pg.VisibleStart && w.End < pg.VisibleEnd {
			set[w.End] = struct{}{}
		}
	}

	out := make([]float64, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Float64s(out)
	return out
}

func activeWordIndex(words []timedWord, at float64) int {
	for i, w := range words {
		if at >= w.Start && at < w.End {
			return i
		}
	}
	return -1
}

func pageText(words []timedWord) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// highlightText renders only the active word visibly, popped to 115% and
// animated back to 100%. The other words are fully transparent placeholders
// so the active word keeps its horizontal position.
func highlightText(words []timedWord, active int) string {
	animMs := animationDurationMs(words[active].End - words[active].Start)

	parts := make([]string, len(words))
	for i, w := range words {
		if i == active {
			parts[i] = fmt.Sprintf(`{\fscx%d\fscy%d\t(0,%d,\fscx100\fscy100)}%s{\fscx100\fscy100}`,
				activeWordScalePct, activeWordScalePct, animMs, w.Text)
		} else {
			parts[i] = `{\alpha&HFF&}` + w.Text + `{\alpha&H00&}`
		}
	}
	return strings.Join(parts, " ")
}

// animationDurationMs scales the pop-in window with the word's own duration:
// very short words get no animation, longer ones a growing share capped at
// 200ms so the settle never outlives attention.
func animationDurationMs(wordDuration float64) int {
	ms := wordDuration * 1000
	switch {
	case ms < 50:
		return 0
	case ms < 100:
		return int(ms * 0.30)
	case ms < 200:
		return int(ms * 0.35)
	case ms < 400:
		return int(ms * 0.40)
	default:
		d := int(ms * 0.45)
		if d > maxAnimationMs {
			d = maxAnimationMs
		}
		return d
	}
}

func writeDialogue(b *strings.Builder, layer int, start, end float64, style, text string) {
	fmt.Fprintf(b, "Dialogue: %d,%s,%s,%s,,0,0,0,,%s\n",
		layer, assTimestamp(start), assTimestamp(end), style, text)
}

// assTimestamp renders seconds as the h:mm:ss.cs form the events section
// requires.
func assTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	cs := int(math.Round(sec * 100))
	h := cs / 360000
	cs -= h * 360000
	m := cs / 6000
	cs -= m * 6000
	s := cs / 100
	cs -= s * 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// assColor converts "#RRGGBB" to the &H00BBGGRR form; anything malformed
// falls back to the given default.
func assColor(hex, fallback string) string {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return fallback
	}
	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return fallback
		}
	}
	return "&H00" + strings.ToUpper(hex[4:6]+hex[2:4]+hex[0:2])
}

// sanitizeASS strips characters that would break out of the dialogue text
// grammar.
func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
