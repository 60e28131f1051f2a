package frame

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestFrameToDepthRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		raw       uint16
		wantValid bool
	}{
		{"zero", 0, true},
		{"mid range", 500, true},
		{"boundary valid", 1070, true},
		{"boundary invalid", 1071, false},
		{"sentinel", 2047, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df := &DepthFrame{W: 1, H: 1, Pix: []uint16{tt.raw}}
			m, mask := FrameToDepth(df)
			if math.IsNaN(m.Pix[0]) || math.IsInf(m.Pix[0], 0) {
				t.Fatalf("meters not finite: %v", m.Pix[0])
			}
			if mask.Pix[0] != !tt.wantValid {
				t.Fatalf("mask = %v, want %v", mask.Pix[0], !tt.wantValid)
			}
			if !tt.wantValid && m.Pix[0] != invalidDepth {
				t.Fatalf("invalid sample meters = %v, want %v", m.Pix[0], invalidDepth)
			}
		})
	}
}

func TestDepthToDisplayClips(t *testing.T) {
	m := &MeterFrame{W: 3, H: 1, Pix: []float64{0, 4, 100}}
	got := DepthToDisplay(m)
	want := []byte{255, 135, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pixel %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDeltaToDisplayClips(t *testing.T) {
	got := DeltaToDisplay([]float64{-1, 0, 2, 10})
	want := []byte{0, 0, 120, 255}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pixel %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestClipMaskSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depth_filter.npy")

	original := &ClipMask{W: 4, H: 2, Pix: []float64{
		0.5, 1.0, 1.5, 2.0,
		2.5, 3.0, 3.5, 4.0,
	}}
	if err := SaveClipMask(path, original); err != nil {
		t.Fatalf("SaveClipMask: %v", err)
	}

	loaded, err := LoadClipMask(path)
	if err != nil {
		t.Fatalf("LoadClipMask: %v", err)
	}
	if loaded.W != original.W || loaded.H != original.H {
		t.Fatalf("shape mismatch: got %dx%d want %dx%d", loaded.W, loaded.H, original.W, original.H)
	}
	for i := range original.Pix {
		if loaded.Pix[i] != original.Pix[i] {
			t.Errorf("pixel %d = %v, want %v", i, loaded.Pix[i], original.Pix[i])
		}
	}
}

func TestLoadClipMaskMissingFile(t *testing.T) {
	_, err := LoadClipMask(filepath.Join(t.TempDir(), "nope.npy"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestClipMaskClamp(t *testing.T) {
	mask := &ClipMask{W: 2, H: 1, Pix: []float64{0.5, 0.5}}
	m := &MeterFrame{W: 2, H: 1, Pix: []float64{0.2, 5.0}}
	clamped := mask.Clamp(m)
	if clamped.Pix[0] != 0.2 {
		t.Errorf("below-ceiling sample changed: got %v", clamped.Pix[0])
	}
	if clamped.Pix[1] != 0.5 {
		t.Errorf("above-ceiling sample not clamped: got %v", clamped.Pix[1])
	}
	// Clamp must not mutate the input frame.
	if m.Pix[1] != 5.0 {
		t.Errorf("Clamp mutated its input")
	}
}
