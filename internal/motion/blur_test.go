package motion

import "testing"

func TestGaussianBlurPreservesConstantField(t *testing.T) {
	pix := make([]float64, 10*10)
	for i := range pix {
		pix[i] = 3.0
	}
	out := gaussianBlur(pix, 10, 10, 2.0)
	for i, v := range out {
		if diff := v - 3.0; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("pixel %d = %v, want 3.0 (constant field must be unchanged by blur)", i, v)
		}
	}
}

func TestGaussianBlurZeroSigmaIsIdentity(t *testing.T) {
	pix := []float64{1, 2, 3, 4}
	out := gaussianBlur(pix, 2, 2, 0)
	for i := range pix {
		if out[i] != pix[i] {
			t.Fatalf("pixel %d = %v, want %v", i, out[i], pix[i])
		}
	}
}

func TestGaussianBlurSmoothsSpike(t *testing.T) {
	const n = 11
	pix := make([]float64, n*n)
	pix[(n/2)*n+n/2] = 100
	out := gaussianBlur(pix, n, n, 1.5)
	if out[(n/2)*n+n/2] >= 100 {
		t.Fatalf("center value not reduced by blur: %v", out[(n/2)*n+n/2])
	}
	if out[(n/2)*n+n/2+1] <= 0 {
		t.Fatalf("blur did not spread into neighboring pixel")
	}
}

func TestDiskDilatorGrowsMask(t *testing.T) {
	const w, h = 9, 9
	mask := make([]bool, w*h)
	mask[4*w+4] = true

	dilate := newDiskDilator(1)
	out := dilate(mask, w, h)

	if !out[4*w+4] {
		t.Fatal("dilation lost the original set pixel")
	}
	if !out[4*w+5] || !out[4*w+3] || !out[3*w+4] || !out[5*w+4] {
		t.Fatal("dilation did not grow into adjacent pixels")
	}
	if out[0] {
		t.Fatal("dilation reached a pixel far outside the radius")
	}
}

func TestDiskDilatorHandlesEmptyMask(t *testing.T) {
	mask := make([]bool, 5*5)
	dilate := newDiskDilator(2)
	out := dilate(mask, 5, 5)
	for i, v := range out {
		if v {
			t.Fatalf("pixel %d set from an all-false mask", i)
		}
	}
}
