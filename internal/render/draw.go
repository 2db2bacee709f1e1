package render

import (
	"coupon-share-service/internal/pool"

	"github.com/fogleman/gg"
)

// minFontSize is the floor used when shrinking text to fit its box.
const minFontSize = 8

// setFittedFace picks the largest font size in [minFontSize, size] for which
// s fits into maxWidth pixels.
func setFittedFace(dc *gg.Context, s string, bold bool, size, maxWidth float64) error {
	for ; size >= minFontSize; size-- {
		face, err := newFace(bold, size)
		if err != nil {
			return err
		}
		dc.SetFontFace(face)
		if w, _ := dc.MeasureString(s); w <= maxWidth {
			return nil
		}
	}
	return nil
}

func encodePNG(dc *gg.Context) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if err := dc.EncodePNG(buf); err != nil {
		return nil, err
	}
	return pool.CopyBytes(buf), nil
}
