package clips

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Families shipped in a single weight, or whose files do not follow the
// Family-Weight naming scheme.
var fontFileOverrides = map[string]string{
	"Permanent Marker": "PermanentMarker-Regular.ttf",
	"Bangers":          "Bangers-Regular.ttf",
	"Bebas Neue":       "BebasNeue-Regular.ttf",
}

// fontFileName maps a family and numeric weight onto the bundled font
// filename. Weights bucket into the named cuts the font files ship as.
func fontFileName(family string, weight int) string {
	if override, ok := fontFileOverrides[family]; ok {
		return override
	}

	var cut string
	switch {
	case weight >= 700:
		cut = "Bold"
	case weight >= 600:
		cut = "SemiBold"
	case weight >= 500:
		cut = "Medium"
	case weight >= 300 && weight < 400:
		cut = "Light"
	case weight < 300:
		cut = "Thin"
	default:
		cut = "Regular"
	}

	return strings.ReplaceAll(family, " ", "") + "-" + cut + ".ttf"
}

// loadFont reads the bundled font file for the family/weight pair. The
// returned name is the filename to declare in the fonts section.
func loadFont(fontsDir, family string, weight int) (name string, data []byte, err error) {
	name = fontFileName(family, weight)
	data, err = os.ReadFile(filepath.Join(fontsDir, name))
	if err != nil {
		return "", nil, fmt.Errorf("font file %s: %w", name, err)
	}
	return name, data, nil
}

const uuLineBytes = 45

// uuencode renders data in the classic uuencode line format used for font
// attachments: each line starts with a length character (32 + byte count)
// followed by 6-bit groups offset by 32, with 0 encoded as '`' instead of
// space.
func uuencode(data []byte) string {
	var b strings.Builder
	for off := 0; off < len(data); off += uuLineBytes {
		end := off + uuLineBytes
		if end > len(data) {
			end = len(data)
		}
		line := data[off:end]

		b.WriteByte(uuChar(byte(len(line))))
		for i := 0; i < len(line); i += 3 {
			var chunk [3]byte
			copy(chunk[:], line[i:])
			b.WriteByte(uuChar(chunk[0] >> 2))
			b.WriteByte(uuChar((chunk[0]&0x03)<<4 | chunk[1]>>4))
			b.WriteByte(uuChar((chunk[1]&0x0F)<<2 | chunk[2]>>6))
			b.WriteByte(uuChar(chunk[2] & 0x3F))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func uuChar(v byte) byte {
	if v&0x3F == 0 {
		return '`'
	}
	return 32 + (v & 0x3F)
}
