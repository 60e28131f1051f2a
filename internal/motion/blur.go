package motion

import "math"

// gaussianBlur applies a separable Gaussian blur to a row-major float64
// grid and returns the result as a new slice; pix is not mutated.
// It operates directly on float64 depth data rather than through an 8-bit
// image library so that sub-centimeter differences the reference-model
// comparison depends on survive the filter.
func gaussianBlur(pix []float64, w, h int, sigma float64) []float64 {
	if sigma <= 0 {
		out := make([]float64, len(pix))
		copy(out, pix)
		return out
	}
	kernel := gaussianKernel(sigma)
	tmp := convolveRows(pix, w, h, kernel)
	return convolveCols(tmp, w, h, kernel)
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(sigma * 3))
	if radius < 1 {
		radius = 1
	}
	k := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func convolveRows(pix []float64, w, h int, kernel []float64) []float64 {
	radius := len(kernel) / 2
	out := make([]float64, len(pix))
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			var sum float64
			for i, kv := range kernel {
				sx := x + i - radius
				if sx < 0 {
					sx = 0
				} else if sx >= w {
					sx = w - 1
				}
				sum += pix[row+sx] * kv
			}
			out[row+x] = sum
		}
	}
	return out
}

func convolveCols(pix []float64, w, h int, kernel []float64) []float64 {
	radius := len(kernel) / 2
	out := make([]float64, len(pix))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var sum float64
			for i, kv := range kernel {
				sy := y + i - radius
				if sy < 0 {
					sy = 0
				} else if sy >= h {
					sy = h - 1
				}
				sum += pix[sy*w+x] * kv
			}
			out[y*w+x] = sum
		}
	}
	return out
}

// newDiskDilator returns a function that dilates a boolean grid with a disk
// structuring element of the given radius (radius 5 approximates the 11x11
// elliptical kernel the original detector used).
func newDiskDilator(radius int) func(mask []bool, w, h int) []bool {
	type offset struct{ dx, dy int }
	var offsets []offset
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				offsets = append(offsets, offset{dx, dy})
			}
		}
	}
	return func(mask []bool, w, h int) []bool {
		out := make([]bool, len(mask))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if !mask[y*w+x] {
					continue
				}
				for _, o := range offsets {
					nx, ny := x+o.dx, y+o.dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					out[ny*w+nx] = true
				}
			}
		}
		return out
	}
}
