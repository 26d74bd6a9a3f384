package ocr

import (
	"image"
	"image/color"

	"github.com/rs/zerolog/log"
)

// PixelColor samples img at (x, y) relative to its top-left corner.
// Out-of-range coordinates are logged and reported as false; grayscale
// images yield equal channels.
func PixelColor(img image.Image, x, y int) (color.RGBA, bool) {
	b := img.Bounds()
	if x < 0 || y < 0 || x >= b.Dx() || y >= b.Dy() {
		log.Warn().Int("x", x).Int("y", y).Int("width", b.Dx()).Int("height", b.Dy()).Msg("pixel outside image")
		return color.RGBA{}, false
	}
	c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
	return c, true
}
