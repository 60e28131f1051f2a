package webui

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// stampStateLabel burns a small corner label naming the controller's current
// state into the top-left of an image, purely cosmetic.
func stampStateLabel(img image.Image, label string) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	const x, y = 6, 16
	textWidth := len(label)*7 + 6
	bg := color.RGBA{0, 0, 0, 170}
	for dy := 0; dy < 20; dy++ {
		for dx := 0; dx < textWidth; dx++ {
			px, py := bounds.Min.X+x-3+dx, bounds.Min.Y+y-14+dy
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				rgba.Set(px, py, bg)
			}
		}
	}

	d := &font.Drawer{
		Dst:  rgba,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(bounds.Min.X + x), Y: fixed.I(bounds.Min.Y + y)},
	}
	d.DrawString(label)
	return rgba
}
