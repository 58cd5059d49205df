package clips

import (
	"math"
	"testing"
)

func TestParseAspectRatio_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "wide", input: "16:9", want: 16.0 / 9.0},
		{name: "vertical", input: "9:16", want: 9.0 / 16.0},
		{name: "square", input: "1:1", want: 1.0},
		{name: "fractional", input: "2.35:1", want: 2.35},
		{name: "spaces", input: " 4 : 3 ", want: 4.0 / 3.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ar, err := ParseAspectRatio(tc.input)
			if err != nil {
				t.Fatalf("ParseAspectRatio(%q) error = %v", tc.input, err)
			}
			if math.Abs(ar.Value()-tc.want) > 1e-9 {
				t.Fatalf("ParseAspectRatio(%q).Value() = %v, want %v", tc.input, ar.Value(), tc.want)
			}
		})
	}
}

func TestParseAspectRatio_Malformed(t *testing.T) {
	inputs := []string{"", "16", "16:9:2", "a:b", "16:", ":9", "16x9", "-16:9", "16:0"}
	for _, input := range inputs {
		if _, err := ParseAspectRatio(input); err == nil {
			t.Fatalf("ParseAspectRatio(%q) expected error", input)
		}
	}
}

func TestCropRect_VerticalTarget(t *testing.T) {
	cropW, cropH, cropX, cropY := CropRect(1920, 1080, AspectRatio{Width: 9, Height: 16})

	if cropW >= cropH {
		t.Fatalf("expected taller-than-wide crop, got %dx%d", cropW, cropH)
	}
	if cropH != 1080 {
		t.Fatalf("expected full source height, got %d", cropH)
	}
	if cropW != 607 {
		t.Fatalf("expected truncated crop width 607, got %d", cropW)
	}
	if cropX != (1920-cropW)/2 {
		t.Fatalf("crop not centered horizontally: x=%d w=%d", cropX, cropW)
	}
	if cropY != 0 {
		t.Fatalf("expected cropY 0, got %d", cropY)
	}
}

func TestCropRect_MatchingTarget(t *testing.T) {
	cropW, cropH, cropX, cropY := CropRect(1920, 1080, AspectRatio{Width: 16, Height: 9})

	if cropW != 1920 || cropH != 1080 {
		t.Fatalf("expected full frame, got %dx%d", cropW, cropH)
	}
	if cropX != 0 || cropY != 0 {
		t.Fatalf("expected zero offsets, got (%d,%d)", cropX, cropY)
	}
}

func TestCropRect_WideTargetOnVerticalSource(t *testing.T) {
	cropW, cropH, cropX, cropY := CropRect(1080, 1920, AspectRatio{Width: 16, Height: 9})

	if cropW != 1080 {
		t.Fatalf("expected full source width, got %d", cropW)
	}
	if cropH != 607 {
		t.Fatalf("expected truncated crop height 607, got %d", cropH)
	}
	if cropX != 0 {
		t.Fatalf("expected cropX 0, got %d", cropX)
	}
	if cropY != (1920-cropH)/2 {
		t.Fatalf("crop not centered vertically: y=%d h=%d", cropY, cropH)
	}
}

func TestCropPosition_Centered(t *testing.T) {
	x, y := CropPosition(1920, 1080, 607, 1080)
	if x != 656 {
		t.Fatalf("expected x 656, got %d", x)
	}
	if y != 0 {
		t.Fatalf("expected y 0, got %d", y)
	}
}

func TestCropPosition_ClampsToZero(t *testing.T) {
	x, y := CropPosition(1280, 720, 1280, 900)
	if x != 0 || y != 0 {
		t.Fatalf("expected clamped (0,0), got (%d,%d)", x, y)
	}
}
