package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"rya/internal/models"
	"rya/internal/pkg/errors"
)

// stylePalettes give each archetype a distinct background and accent so a
// degraded video still reads as intentionally styled.
var stylePalettes = map[models.StyleArchetype][2]color.NRGBA{
	models.StyleTechnical:    {{R: 0x0d, G: 0x11, B: 0x17, A: 0xff}, {R: 0x58, G: 0xa6, B: 0xff, A: 0xff}},
	models.StyleStorytelling: {{R: 0x1a, G: 0x0f, B: 0x1f, A: 0xff}, {R: 0xe8, G: 0x6a, B: 0x92, A: 0xff}},
	models.StyleDocumentary:  {{R: 0x12, G: 0x14, B: 0x12, A: 0xff}, {R: 0xc9, G: 0xa2, B: 0x27, A: 0xff}},
	models.StyleMinimalist:   {{R: 0xfa, G: 0xfa, B: 0xfa, A: 0xff}, {R: 0x21, G: 0x21, B: 0x21, A: 0xff}},
}

// Placeholder renders a synthetic 1920x1080 background when every
// acquisition tier failed for a scene. The video completes with a styled
// card instead of the job failing.
func Placeholder(style models.StyleArchetype) ([]byte, error) {
	palette, ok := stylePalettes[style]
	if !ok {
		palette = stylePalettes[models.StyleTechnical]
	}
	bg, accent := palette[0], palette[1]

	const w, h = 1920, 1080
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		// Subtle vertical gradient toward the accent tone.
		blend := float64(y) / float64(h) * 0.25
		row := color.NRGBA{
			R: lerp(bg.R, accent.R, blend),
			G: lerp(bg.G, accent.G, blend),
			B: lerp(bg.B, accent.B, blend),
			A: 0xff,
		}
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, row)
		}
	}

	// Accent baseline strip in the lower third.
	for y := h * 3 / 4; y < h*3/4+6; y++ {
		for x := w / 8; x < w*7/8; x++ {
			img.SetNRGBA(x, y, accent)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "media.placeholder", "encode png")
	}
	return buf.Bytes(), nil
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}
