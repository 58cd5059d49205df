// Package clips implements the clip-build orchestration pipeline: per-aspect-
// ratio rendering, encoder selection, animated subtitle generation, intro/
// outro preparation, and progress/result reporting.
package clips

import (
	"errors"
	"fmt"
)

// ErrDuplicateBuild is returned when a build is requested for a clip id that
// already has one in flight.
var ErrDuplicateBuild = errors.New("a build for this clip is already in progress")

// Segment is one source time range, in seconds of the source timeline.
type Segment struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

func (s Segment) Duration() float64 { return s.EndTime - s.StartTime }

// Validate rejects malformed segments at the boundary rather than letting
// zero values reach the render pipeline.
func (s Segment) Validate() error {
	if s.StartTime < 0 {
		return fmt.Errorf("segment start_time %.3f is negative", s.StartTime)
	}
	if s.EndTime <= s.StartTime {
		return fmt.Errorf("segment end_time %.3f must be greater than start_time %.3f", s.EndTime, s.StartTime)
	}
	return nil
}

// WordInfo is one word of the transcript, timestamped against the source
// video timeline. Invariant: Start <= End.
type WordInfo struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
}

// SubtitleSettings carries the styling knobs for burned-in subtitles.
// Colors are "#RRGGBB" hex. FontWeight drives both the bold flag (>= 700)
// and embedded-font-file selection.
type SubtitleSettings struct {
	Enabled bool `json:"enabled"`

	FontFamily string  `json:"font_family"`
	FontSize   float64 `json:"font_size"`
	FontWeight int     `json:"font_weight"`

	TextColor       string `json:"text_color"`
	BackgroundColor string `json:"background_color"`
	Border1Color    string `json:"border1_color"`
	Border2Color    string `json:"border2_color"`
	ShadowColor     string `json:"shadow_color"`

	Border1Width  float64 `json:"border1_width"`
	Border2Width  float64 `json:"border2_width"`
	ShadowOffsetX float64 `json:"shadow_offset_x"`
	ShadowOffsetY float64 `json:"shadow_offset_y"`

	// PositionPercent anchors the text vertically as a percentage of canvas
	// height; the offsets nudge from that anchor.
	PositionPercent float64 `json:"position_percent"`
	OffsetXPercent  float64 `json:"offset_x_percent"`
	OffsetYPercent  float64 `json:"offset_y_percent"`

	MaxWidthPercent float64 `json:"max_width_percent"`
	Padding         float64 `json:"padding"`
	LetterSpacing   float64 `json:"letter_spacing"`
	WordSpacing     float64 `json:"word_spacing"`

	AnimationStyle string `json:"animation_style"`
}

// BuildRequest describes one clip build: which source ranges to cut, how to
// style them, and which output variants to produce.
type BuildRequest struct {
	ClipID    string `json:"clip_id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`

	SourcePath string    `json:"source_path"`
	Segments   []Segment `json:"segments"`

	Subtitles       *SubtitleSettings `json:"subtitles,omitempty"`
	Words           []WordInfo        `json:"words,omitempty"`
	MaxWordsPerPage int               `json:"max_words_per_page,omitempty"`

	AspectRatios []string `json:"aspect_ratios"`
	Quality      string   `json:"quality"`
	FrameRate    int      `json:"frame_rate"`
	Format       string   `json:"format"`

	// RunNumber groups outputs into a run-N folder; nil means a manual
	// one-off build.
	RunNumber *int `json:"run_number,omitempty"`

	IntroPath     string  `json:"intro_path,omitempty"`
	OutroPath     string  `json:"outro_path,omitempty"`
	IntroDuration float64 `json:"intro_duration,omitempty"`
}

// Validate checks the request fields the pipeline depends on.
func (r *BuildRequest) Validate() error {
	if r.ClipID == "" {
		return errors.New("clip_id is required")
	}
	if r.SourcePath == "" {
		return errors.New("source_path is required")
	}
	if len(r.Segments) == 0 {
		return errors.New("at least one segment is required")
	}
	for i, seg := range r.Segments {
		if err := seg.Validate(); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	if len(r.AspectRatios) == 0 {
		return errors.New("at least one aspect ratio is required")
	}
	for _, ar := range r.AspectRatios {
		if _, err := ParseAspectRatio(ar); err != nil {
			return err
		}
	}
	return nil
}

// TotalSegmentDuration returns the summed duration of all segments.
func (r *BuildRequest) TotalSegmentDuration() float64 {
	var total float64
	for _, s := range r.Segments {
		total += s.Duration()
	}
	return total
}

// BuildProgress is an ephemeral notification pushed to the UI; it is never
// persisted.
type BuildProgress struct {
	ClipID    string `json:"clip_id"`
	ProjectID string `json:"project_id"`
	Progress  int    `json:"progress"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
}

// BuildResult is the terminal artifact of one build. OutputPath,
// ThumbnailPath and Duration reflect only the first requested aspect ratio;
// FileSize sums every variant.
type BuildResult struct {
	ClipID        string  `json:"clip_id"`
	ProjectID     string  `json:"project_id"`
	Success       bool    `json:"success"`
	OutputPath    string  `json:"output_path,omitempty"`
	ThumbnailPath string  `json:"thumbnail_path,omitempty"`
	Duration      float64 `json:"duration,omitempty"`
	FileSize      int64   `json:"file_size"`
	Error         string  `json:"error,omitempty"`
}

// ProgressSink receives build notifications. Implementations must be
// fire-and-forget: delivery failures are their problem, never the build's.
type ProgressSink interface {
	EmitProgress(p BuildProgress)
	EmitResult(r BuildResult)
}
