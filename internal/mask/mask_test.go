package mask

import "testing"

// A flat wall directly in front of and perpendicular to the camera, at a
// fixed raw depth, should yield a fairly uniform clip mask (plus or minus
// the effect of the 0.2m offset and perspective).
func TestGenerateProducesInRangeGrid(t *testing.T) {
	const w, h = 64, 48
	clicks := [3]Click{
		{U: 10, V: 10, Raw: 600},
		{U: 50, V: 10, Raw: 600},
		{U: 30, V: 40, Raw: 600},
	}

	m, err := Generate(clicks, DefaultIntrinsics(), DefaultDepthCoeffs(), w, h)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if m.W != w || m.H != h {
		t.Fatalf("shape = %dx%d, want %dx%d", m.W, m.H, w, h)
	}
	for i, v := range m.Pix {
		if v <= 0 || v > 100 {
			t.Fatalf("pixel %d = %v, out of the (0, 100] clamp range", i, v)
		}
	}
}

func TestGenerateRejectsCollinearClicks(t *testing.T) {
	clicks := [3]Click{
		{U: 10, V: 10, Raw: 600},
		{U: 20, V: 10, Raw: 600},
		{U: 30, V: 10, Raw: 600}, // same row, same depth: collinear with the first two
	}
	_, err := Generate(clicks, DefaultIntrinsics(), DefaultDepthCoeffs(), 64, 48)
	if err == nil {
		t.Fatal("Generate accepted three collinear clicks")
	}
}

func TestBackProjectRecoversRayZAsDepth(t *testing.T) {
	intr := DefaultIntrinsics()
	coeffs := DefaultDepthCoeffs()
	raw := uint16(600)
	wantDepth := 1.0 / (float64(raw)*coeffs.A + coeffs.B)

	p := backProject(int(intr.Cx), int(intr.Cy), raw, intr, coeffs)
	if diff := p.Z - wantDepth; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("Z = %v, want %v", p.Z, wantDepth)
	}
	// At (approximately) the principal point, X should back-project to (approximately) zero.
	if p.X > 1e-3 || p.X < -1e-3 {
		t.Fatalf("X at principal point = %v, want ~0", p.X)
	}
}
