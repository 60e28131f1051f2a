// Package motion implements the reference-depth model that turns a stream
// of depth frames into a latching "something changed" signal: an
// exponentially-decayed reference image is compared against each incoming
// frame, and a sustained, spatially-coherent difference (or a sudden loss of
// valid pixels) trips the detection flag.
package motion

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/marcan/kinlarm/internal/frame"
)

// Config holds the tunable thresholds and filter parameters.
type Config struct {
	ZThreshold      float64
	MotionThreshold float64
	LostThreshold   int
	ValidThreshold  int
	DecayK          float64

	StabilizationDrop int
	FrameBlurSigma    float64
	DeltaBlurSigma    float64
	DilateRadius      int

	ClipMask *frame.ClipMask // nil means no clamping
}

// DefaultConfig mirrors the thresholds the original sensor shipped with.
func DefaultConfig() Config {
	return Config{
		ZThreshold:        0.05,
		MotionThreshold:   2000,
		LostThreshold:     2000,
		ValidThreshold:    150000,
		DecayK:            0.05,
		StabilizationDrop: 30,
		FrameBlurSigma:    2.0,
		DeltaBlurSigma:    1.0,
		DilateRadius:      5, // approximates an 11x11 elliptical structuring element
	}
}

// DepthSource is the depth stream the detector reads from.
// *hub.DepthSubscriber satisfies it structurally, without this package
// needing to import internal/hub; tests can supply a bare fake instead.
type DepthSource interface {
	Next() (*frame.DepthFrame, time.Time, error)
}

// Detector runs the reference-model comparison loop against a decimated
// depth stream. Construct with New and drive with Run.
type Detector struct {
	cfg Config
	sub DepthSource

	detected   atomic.Bool
	lastMotion float64
	lastLost   int
}

// New creates a detector reading from sub.
func New(sub DepthSource, cfg Config) *Detector {
	return &Detector{cfg: cfg, sub: sub}
}

// Detected reports whether the detection flag is currently set. Safe to call
// concurrently with Run.
func (d *Detector) Detected() bool { return d.detected.Load() }

// Reset clears the detection flag. The controller does not call it: it
// constructs a fresh Detector, with a cleared flag, on every entry into armed.
func (d *Detector) Reset() { d.detected.Store(false) }

// LastMotion and LastLost expose the most recent frame's raw scores, useful
// for diagnostics and tests.
func (d *Detector) LastMotion() float64 { return d.lastMotion }
func (d *Detector) LastLost() int       { return d.lastLost }

// Run blocks, consuming frames from the subscriber and updating the
// detection flag, until ctx is canceled or the subscriber reports a
// terminal error (typically hub.ErrHubClosed).
func (d *Detector) Run(ctx context.Context) error {
	ref, refMaskBuf, err := d.capture(ctx)
	if err != nil {
		return err
	}

	dilate := newDiskDilator(d.cfg.DilateRadius)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw, _, err := d.sub.Next()
		if err != nil {
			return err
		}

		depthM, mask := frame.FrameToDepth(raw)
		if d.cfg.ClipMask != nil {
			depthM = d.cfg.ClipMask.Clamp(depthM)
		}
		blurred := gaussianBlur(depthM.Pix, depthM.W, depthM.H, d.cfg.FrameBlurSigma)

		refMask := make([]bool, len(refMaskBuf))
		for i, v := range refMaskBuf {
			refMask[i] = v > 0.5
		}

		invalid := make([]bool, len(mask.Pix))
		for i := range invalid {
			invalid[i] = mask.Pix[i] || refMask[i]
		}
		invalid = dilate(invalid, depthM.W, depthM.H)

		lostCount := 0
		for i := range mask.Pix {
			if mask.Pix[i] && !refMask[i] {
				lostCount++
			}
		}

		delta := make([]float64, len(ref))
		for i := range delta {
			if invalid[i] {
				continue
			}
			v := ref[i] - blurred[i]
			if v < 0 {
				v = -v
			}
			delta[i] = v
		}
		delta = gaussianBlur(delta, depthM.W, depthM.H, d.cfg.DeltaBlurSigma)

		var motion float64
		for _, v := range delta {
			if v < d.cfg.ZThreshold {
				continue
			}
			motion += v
		}

		// Per-pixel EMA, frozen where the current sample is invalid.
		k := d.cfg.DecayK
		for i := range ref {
			if mask.Pix[i] {
				continue
			}
			ref[i] = ref[i]*(1-k) + blurred[i]*k
		}
		for i := range refMaskBuf {
			var m float64
			if mask.Pix[i] {
				m = 1
			}
			refMaskBuf[i] = refMaskBuf[i]*(1-k) + m*k
		}

		d.lastMotion = motion
		d.lastLost = lostCount
		if motion > d.cfg.MotionThreshold || lostCount > d.cfg.LostThreshold {
			d.detected.Store(true)
		}
	}
}

// capture implements the startup sequence: drop frames until enough of the
// first one is valid, drop a few more for stabilization, then build the
// initial reference model from the next frame.
func (d *Detector) capture(ctx context.Context) (ref, refMaskBuf []float64, err error) {
	for {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		raw, _, err := d.sub.Next()
		if err != nil {
			return nil, nil, err
		}
		if countValid(raw) >= d.cfg.ValidThreshold {
			break
		}
	}

	for i := 0; i < d.cfg.StabilizationDrop; i++ {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if _, _, err := d.sub.Next(); err != nil {
			return nil, nil, err
		}
	}

	raw, _, err := d.sub.Next()
	if err != nil {
		return nil, nil, err
	}
	depthM, mask := frame.FrameToDepth(raw)
	if d.cfg.ClipMask != nil {
		depthM = d.cfg.ClipMask.Clamp(depthM)
	}
	ref = gaussianBlur(depthM.Pix, depthM.W, depthM.H, d.cfg.FrameBlurSigma)
	refMaskBuf = make([]float64, len(mask.Pix))
	for i, v := range mask.Pix {
		if v {
			refMaskBuf[i] = 1
		}
	}
	return ref, refMaskBuf, nil
}

func countValid(raw *frame.DepthFrame) int {
	n := 0
	for _, v := range raw.Pix {
		if v != 2047 {
			n++
		}
	}
	return n
}
