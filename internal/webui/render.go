package webui

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/marcan/kinlarm/internal/frame"
)

// previewW and previewH match the original web UI's resized preview
// dimensions; the device's native resolution is larger.
const (
	previewW = 480
	previewH = 360
)

// Depth-to-preview coefficients, identical to internal/frame's raw-to-meters
// polynomial; kept local because this rendering path works directly off the
// clipped raw sample rather than internal/frame's invalid-sample-aware
// MeterFrame, matching the original preview's own depth_to_image math exactly.
const (
	depthCoeffA  = -0.0030711016
	depthCoeffB  = 3.3309495161
	rawClipLimit = 1046.31
)

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// renderDepth colorizes a raw depth frame through the hue palette, the same
// way the original preview turned a depth frame into a viewable JPEG:
// clip the raw sample, run it through 45/(raw*A+B)-45, clip to a byte, look
// that byte up in the hue palette.
func renderDepth(raw *frame.DepthFrame) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, raw.W, raw.H))
	for i, v := range raw.Pix {
		r := clip(float64(v), 0, rawClipLimit)
		g := 45/(r*depthCoeffA+depthCoeffB) - 45
		g = clip(g, 0, 255)
		rgb := huePalette[byte(g)]
		x, y := i%raw.W, i/raw.W
		img.SetRGBA(x, y, color.RGBA{rgb[0], rgb[1], rgb[2], 255})
	}
	resized := imaging.Resize(img, previewW, previewH, imaging.Linear)
	return imaging.Blur(resized, 0.6)
}

// renderVideo stretches the video frame's intensity histogram to the full
// range (the Go equivalent of the original's ImageOps.equalize pass) and
// resizes it to the preview dimensions.
func renderVideo(vf *frame.VideoFrame) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, vf.W, vf.H))
	for i := 0; i < vf.W*vf.H; i++ {
		r, g, b := vf.Pix[i*3], vf.Pix[i*3+1], vf.Pix[i*3+2]
		img.SetRGBA(i%vf.W, i/vf.W, color.RGBA{r, g, b, 255})
	}
	stretched := stretchContrast(img)
	return imaging.Resize(stretched, previewW, previewH, imaging.Linear)
}

// stretchContrast performs a linear min/max contrast stretch across the
// image's red, green and blue samples together (alpha is neither measured
// nor changed), a simplified stand-in for full histogram
// equalization with the same goal: make a dim depth-camera IR/video feed
// legible.
func stretchContrast(img *image.RGBA) *image.RGBA {
	bounds := img.Bounds()
	lo, hi := byte(255), byte(0)
	for i, px := range img.Pix {
		if i%4 == 3 { // alpha channel
			continue
		}
		if px < lo {
			lo = px
		}
		if px > hi {
			hi = px
		}
	}
	if hi <= lo {
		return img
	}
	out := image.NewRGBA(bounds)
	scale := 255.0 / float64(hi-lo)
	for i, px := range img.Pix {
		if i%4 == 3 { // alpha channel, leave untouched
			out.Pix[i] = px
			continue
		}
		v := (float64(px) - float64(lo)) * scale
		out.Pix[i] = clipByte(v)
	}
	return out
}

func clipByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
