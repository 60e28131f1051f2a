// Package mask implements the offline clip-mask calibration tool: given
// three operator clicks on the depth preview, it fits a plane 0.2m in front
// of the clicked surface and bakes a per-pixel depth ceiling grid from it.
package mask

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/marcan/kinlarm/internal/frame"
)

// Intrinsics are the depth camera's pinhole parameters.
type Intrinsics struct {
	Fx, Fy, Cx, Cy float64
}

// DefaultIntrinsics matches the device this system was designed against.
func DefaultIntrinsics() Intrinsics {
	return Intrinsics{Fx: 594.21, Fy: 591.04, Cx: 339.5, Cy: 242.7}
}

// DepthCoeffs are the raw-to-meters polynomial coefficients, matching
// internal/frame's FrameToDepth.
type DepthCoeffs struct{ A, B float64 }

// DefaultDepthCoeffs matches internal/frame's constants.
func DefaultDepthCoeffs() DepthCoeffs {
	return DepthCoeffs{A: -0.0030711016, B: 3.3309495161}
}

// Click is one operator click on the depth preview: pixel coordinates plus
// the raw depth sample under the cursor at the moment of the click.
type Click struct {
	U, V int
	Raw  uint16
}

// backProject maps a pixel plus raw depth sample to a world-space point,
// using the camera's intrinsics and the raw-to-meters polynomial. This is
// algebraically the same transform as the kinect-to-world homogeneous
// matrix multiply used by the original calibration tool, simplified: since
// the matrix's third row sends every point to w = raw*A+B = 1/depth, the
// perspective divide leaves the familiar pinhole back-projection scaled by
// depth.
func backProject(u, v int, raw uint16, intr Intrinsics, coeffs DepthCoeffs) r3.Vec {
	depth := 1.0 / (float64(raw)*coeffs.A + coeffs.B)
	x := (float64(u) - intr.Cx) / intr.Fx * depth
	y := (intr.Cy - float64(v)) / intr.Fy * depth
	return r3.Vec{X: x, Y: y, Z: depth}
}

// Generate fits a plane through three clicks, offsets it 0.2m toward the
// camera, and bakes a width x height depth-ceiling grid from it.
func Generate(clicks [3]Click, intr Intrinsics, coeffs DepthCoeffs, w, h int) (*frame.ClipMask, error) {
	p0 := backProject(clicks[0].U, clicks[0].V, clicks[0].Raw, intr, coeffs)
	p1 := backProject(clicks[1].U, clicks[1].V, clicks[1].Raw, intr, coeffs)
	p2 := backProject(clicks[2].U, clicks[2].V, clicks[2].Raw, intr, coeffs)

	normal := r3.Cross(r3.Sub(p1, p0), r3.Sub(p2, p0))
	norm := r3.Norm(normal)
	if norm == 0 {
		return nil, fmt.Errorf("mask: the three clicks are collinear")
	}
	normal = r3.Scale(1/norm, normal)

	offset := r3.Scale(0.2, normal)
	offsetPlane := [3]r3.Vec{r3.Add(p0, offset), r3.Add(p1, offset), r3.Add(p2, offset)}

	// Make sure the offset plane moved toward the camera (origin), not away.
	if r3.Norm(offsetPlane[0]) > r3.Norm(p0) {
		offset = r3.Scale(-1, offset)
		offsetPlane = [3]r3.Vec{r3.Add(p0, offset), r3.Add(p1, offset), r3.Add(p2, offset)}
	}

	out := frame.ClipMask{W: w, H: h, Pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		ray0 := backProjectDirection(0, y, intr)
		ray1 := backProjectDirection(w, y, intr)

		invZ0, ok0 := intersectionInvZ(offsetPlane, ray0)
		invZ1, ok1 := intersectionInvZ(offsetPlane, ray1)
		if !ok0 || !ok1 {
			for x := 0; x < w; x++ {
				out.Pix[y*w+x] = 100
			}
			continue
		}

		for x := 0; x < w; x++ {
			t := float64(x) / float64(w)
			invZ := (1-t)*invZ0 + t*invZ1
			z := 1.0 / invZ
			if !(z > 0 && z < 100) {
				z = 100
			}
			out.Pix[y*w+x] = z
		}
	}
	return &out, nil
}

// backProjectDirection back-projects a pixel at a nominal raw depth (the
// original tool used 500) to obtain a ray direction through that pixel;
// only the direction matters for the line-plane intersection below, so the
// exact nominal depth is not load-bearing.
func backProjectDirection(u, v int, intr Intrinsics) r3.Vec {
	const nominalRaw = 500
	return backProject(u, v, nominalRaw, intr, DefaultDepthCoeffs())
}

// intersectionInvZ solves for the Z coordinate where the line through the
// origin and ray crosses the plane defined by three points, and returns its
// reciprocal (1/z varies linearly across a scanline for a planar surface,
// which is what the caller interpolates on).
func intersectionInvZ(plane [3]r3.Vec, ray r3.Vec) (invZ float64, ok bool) {
	p0, p1, p2 := plane[0], plane[1], plane[2]
	d1 := r3.Sub(p1, p0)
	d2 := r3.Sub(p2, p0)

	a := mat.NewDense(3, 3, []float64{
		ray.X, -d1.X, -d2.X,
		ray.Y, -d1.Y, -d2.Y,
		ray.Z, -d1.Z, -d2.Z,
	})
	b := mat.NewVecDense(3, []float64{p0.X, p0.Y, p0.Z})

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return 0, false
	}
	t := x.AtVec(0)
	z := t * ray.Z
	if z == 0 {
		return 0, false
	}
	return 1.0 / z, true
}
