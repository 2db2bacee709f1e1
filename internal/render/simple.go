package render

import (
	"github.com/fogleman/gg"
)

const (
	SimpleWidth  = 800
	SimpleHeight = 600
)

const simpleDescription = "Gunakan kode ini untuk diskon spesial!"

// RenderSimple draws the plain share image: flat yellow canvas with the code
// and a short call to action.
func RenderSimple(code string) ([]byte, error) {
	dc := gg.NewContext(SimpleWidth, SimpleHeight)
	dc.SetHexColor("#ffcc00")
	dc.Clear()

	dc.SetHexColor("#000000")
	title := "Kupon Kode: " + code
	if err := setFittedFace(dc, title, true, 48, SimpleWidth-140); err != nil {
		return nil, err
	}
	dc.DrawString(title, 100, 150)

	face, err := newFace(false, 24)
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(face)
	dc.DrawString(simpleDescription, 100, 250)

	return encodePNG(dc)
}
