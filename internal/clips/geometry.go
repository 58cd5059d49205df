package clips

import (
	"fmt"
	"strconv"
	"strings"
)

// AspectRatio is a parsed "W:H" target ratio. Invariant: Height > 0.
type AspectRatio struct {
	Width  float64
	Height float64
}

// Value returns width divided by height.
func (a AspectRatio) Value() float64 { return a.Width / a.Height }

// String renders the ratio in the "W-H" form used in output filenames.
func (a AspectRatio) String() string {
	return fmt.Sprintf("%s-%s", trimFloat(a.Width), trimFloat(a.Height))
}

// Key renders the canonical "W:H" form used as cache-key component.
func (a AspectRatio) Key() string {
	return fmt.Sprintf("%s:%s", trimFloat(a.Width), trimFloat(a.Height))
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseAspectRatio parses a "W:H" string. Exactly one colon and two numeric
// parts are required.
func ParseAspectRatio(s string) (AspectRatio, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return AspectRatio{}, fmt.Errorf("invalid aspect ratio %q: expected W:H", s)
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return AspectRatio{}, fmt.Errorf("invalid aspect ratio width in %q: %w", s, err)
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return AspectRatio{}, fmt.Errorf("invalid aspect ratio height in %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return AspectRatio{}, fmt.Errorf("aspect ratio %q parts must be positive", s)
	}
	return AspectRatio{Width: w, Height: h}, nil
}

// CropRect computes a centered crop window inside sourceW x sourceH that
// matches the target aspect. Dimensions are truncated to integers; the pixel
// grid downstream requires it.
func CropRect(sourceW, sourceH int, target AspectRatio) (cropW, cropH, cropX, cropY int) {
	srcAspect := float64(sourceW) / float64(sourceH)
	tgtAspect := target.Value()

	if srcAspect > tgtAspect {
		// Source is wider than the target: crop the sides.
		cropW = int(float64(sourceH) * tgtAspect)
		cropH = sourceH
		cropX = (sourceW - cropW) / 2
		cropY = 0
	} else {
		// Source is taller (or equal): crop top and bottom.
		cropW = sourceW
		cropH = int(float64(sourceW) / tgtAspect)
		cropX = 0
		cropY = (sourceH - cropH) / 2
	}
	return cropW, cropH, cropX, cropY
}

// CropPosition centers a cropW x cropH window inside videoW x videoH.
// Offsets clamp to zero when the crop meets or exceeds the source dimension.
func CropPosition(videoW, videoH, cropW, cropH int) (x, y int) {
	if cropW < videoW {
		x = (videoW - cropW) / 2
	}
	if cropH < videoH {
		y = (videoH - cropH) / 2
	}
	return x, y
}
