package render

import (
	"image"

	"coupon-share-service/internal/coupon"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

const (
	CardWidth  = 385
	CardHeight = 222
)

// Card layout anchors, in pixels.
const (
	cardColumnWidth = 110
	cardTextX       = 128
	cardTextMaxW    = CardWidth - cardTextX - 12
	cardDiscountY   = 78
	cardPeriodY     = 122
	cardExpiryY     = 158
	cardCodeMaxW    = CardHeight - 24
)

// RenderCard draws the discount card: scaled background art, three
// horizontal labels and the code rotated in the left column.
func RenderCard(code string, labels coupon.Labels, background image.Image) ([]byte, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), background, background.Bounds(), draw.Src, nil)

	dc := gg.NewContextForRGBA(canvas)

	dc.SetHexColor("#1f1f1f")
	if err := setFittedFace(dc, labels.Discount, true, 28, cardTextMaxW); err != nil {
		return nil, err
	}
	dc.DrawStringAnchored(labels.Discount, cardTextX, cardDiscountY, 0, 0.5)

	dc.SetHexColor("#333333")
	if err := setFittedFace(dc, labels.Period, false, 16, cardTextMaxW); err != nil {
		return nil, err
	}
	dc.DrawStringAnchored(labels.Period, cardTextX, cardPeriodY, 0, 0.5)

	if err := setFittedFace(dc, labels.Expiration, false, 14, cardTextMaxW); err != nil {
		return nil, err
	}
	dc.DrawStringAnchored(labels.Expiration, cardTextX, cardExpiryY, 0, 0.5)

	// Code reads bottom to top, centered in the left column
	cx, cy := float64(cardColumnWidth)/2, float64(CardHeight)/2
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), cx, cy)
	dc.SetHexColor("#ffffff")
	if err := setFittedFace(dc, code, true, 24, cardCodeMaxW); err != nil {
		dc.Pop()
		return nil, err
	}
	dc.DrawStringAnchored(code, cx, cy, 0.5, 0.5)
	dc.Pop()

	return encodePNG(dc)
}
