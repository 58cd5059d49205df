package ffmpeg

import (
	"context"
	"log/slog"
	"strings"
)

// Quality tiers accepted by the build API.
const (
	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"
)

// EncoderConfig describes the codec and quality arguments for one encode.
// QualityFlag/QualityValue use the selected encoder's native scale: a
// constant-quality index for software, NVENC and QSV, an explicit bitrate
// for VideoToolbox.
type EncoderConfig struct {
	Codec        string
	Preset       string
	QualityFlag  string
	QualityValue string
}

// Args returns the codec arguments in ffmpeg order.
func (e EncoderConfig) Args() []string {
	args := []string{"-c:v", e.Codec}
	if e.Preset != "" {
		args = append(args, "-preset", e.Preset)
	}
	args = append(args, e.QualityFlag, e.QualityValue)
	return args
}

// Selector picks a hardware encoder when the local ffmpeg build offers one,
// falling back to libx264. Detection is re-run on every call; the encoder
// listing is a cheap subprocess and skipping a cache keeps the selector
// stateless.
type Selector struct {
	runner Runner
	logger *slog.Logger
}

func NewSelector(runner Runner, logger *slog.Logger) *Selector {
	return &Selector{runner: runner, logger: logger}
}

// Select never fails: any detection error degrades to software encoding.
func (s *Selector) Select(ctx context.Context, quality string) EncoderConfig {
	result := s.runner.Run(ctx, "-hide_banner", "-encoders")

	var listing string
	if result.IsSuccess() {
		listing = result.Stdout
	} else {
		s.logger.Warn("encoder detection failed, using software encoder",
			"exit_code", result.ExitCode)
	}

	switch {
	case strings.Contains(listing, "h264_nvenc"):
		cfg := EncoderConfig{
			Codec:        "h264_nvenc",
			Preset:       "p5",
			QualityFlag:  "-cq",
			QualityValue: nvencQuality(quality),
		}
		s.logger.Info("selected NVENC hardware encoder", "quality", quality)
		return cfg

	case strings.Contains(listing, "h264_qsv"):
		cfg := EncoderConfig{
			Codec:        "h264_qsv",
			Preset:       "medium",
			QualityFlag:  "-global_quality",
			QualityValue: qsvQuality(quality),
		}
		s.logger.Info("selected QSV hardware encoder", "quality", quality)
		return cfg

	case strings.Contains(listing, "h264_videotoolbox"):
		cfg := EncoderConfig{
			Codec:        "h264_videotoolbox",
			QualityFlag:  "-b:v",
			QualityValue: videotoolboxBitrate(quality),
		}
		s.logger.Info("selected VideoToolbox hardware encoder", "quality", quality)
		return cfg
	}

	return EncoderConfig{
		Codec:        "libx264",
		Preset:       "veryfast",
		QualityFlag:  "-crf",
		QualityValue: x264Quality(quality),
	}
}

func nvencQuality(quality string) string {
	switch quality {
	case QualityLow:
		return "32"
	case QualityHigh:
		return "20"
	default:
		return "26"
	}
}

func qsvQuality(quality string) string {
	switch quality {
	case QualityLow:
		return "32"
	case QualityHigh:
		return "20"
	default:
		return "26"
	}
}

// VideoToolbox has no constant-quality knob worth using; map tiers to
// explicit bitrates.
func videotoolboxBitrate(quality string) string {
	switch quality {
	case QualityLow:
		return "2M"
	case QualityHigh:
		return "10M"
	default:
		return "5M"
	}
}

func x264Quality(quality string) string {
	switch quality {
	case QualityLow:
		return "28"
	case QualityHigh:
		return "18"
	default:
		return "23"
	}
}
