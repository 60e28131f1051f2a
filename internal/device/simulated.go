package device

import (
	"context"
	"math"
	"sync"
	"time"
)

// Simulated is a Driver implementation that synthesizes depth and video
// frames instead of talking to hardware. It exists so the hub, the motion
// detector, and the HTTP preview surface can be exercised - including a
// demo/no-hardware run mode - without a physical depth sensor attached.
type Simulated struct {
	W, H int
	FPS  int

	mu           sync.Mutex
	depthCB      DepthCallback
	videoCB      VideoCallback
	depthRunning bool
	videoRunning bool
	led          LEDState
	tickN        int
	opened       bool
}

// NewSimulated returns a Simulated driver at the nominal device resolution.
func NewSimulated() *Simulated {
	return &Simulated{W: 640, H: 480, FPS: 30}
}

func (s *Simulated) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
	return nil
}

func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = false
	return nil
}

func (s *Simulated) SetDepthCallback(cb DepthCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depthCB = cb
}

func (s *Simulated) SetVideoCallback(cb VideoCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoCB = cb
}

func (s *Simulated) StartDepth() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depthRunning = true
	return nil
}

func (s *Simulated) StopDepth() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depthRunning = false
	return nil
}

func (s *Simulated) StartVideo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoRunning = true
	return nil
}

func (s *Simulated) StopVideo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoRunning = false
	return nil
}

func (s *Simulated) SetLED(state LEDState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.led = state
	return nil
}

// LED returns the most recently applied indicator color, for tests.
func (s *Simulated) LED() LEDState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.led
}

// RunLoop delivers one synthetic frame per started stream, then calls tick.
// A slow-moving synthetic "intruder" sweeps across the depth frame so the
// motion detector has something to notice in demo mode.
func (s *Simulated) RunLoop(ctx context.Context, tick func() error) error {
	interval := time.Second / time.Duration(maxInt(s.FPS, 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		s.mu.Lock()
		depthRunning, videoRunning := s.depthRunning, s.videoRunning
		depthCB, videoCB := s.depthCB, s.videoCB
		n := s.tickN
		s.tickN++
		s.mu.Unlock()

		now := time.Now()
		if depthRunning && depthCB != nil {
			depthCB(s.syntheticDepth(n), s.W, s.H, now)
		}
		if videoRunning && videoCB != nil {
			videoCB(s.syntheticVideo(n), s.W, s.H, now)
		}

		if err := tick(); err != nil {
			if err == ErrStopRequested {
				return ErrStopRequested
			}
			return err
		}
	}
}

// syntheticDepth renders a flat background plus a sweeping near-field blob
// so the motion detector's reference model has a quiet baseline to converge
// to and an occasional event to trigger on.
func (s *Simulated) syntheticDepth(n int) []uint16 {
	out := make([]uint16, s.W*s.H)
	const background = 700 // raw units, roughly 0.85m
	for i := range out {
		out[i] = background
	}

	phase := float64(n%300) / 300.0
	cx := int(phase * float64(s.W))
	cy := s.H / 2
	radius := 40
	for dy := -radius; dy <= radius; dy++ {
		y := cy + dy
		if y < 0 || y >= s.H {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			x := cx + dx
			if x < 0 || x >= s.W {
				continue
			}
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			out[y*s.W+x] = 300 // closer object
		}
	}
	return out
}

func (s *Simulated) syntheticVideo(n int) []byte {
	out := make([]byte, s.W*s.H*3)
	shade := byte(128 + int(64*math.Sin(float64(n)/20)))
	for i := 0; i < len(out); i += 3 {
		out[i] = shade
		out[i+1] = shade
		out[i+2] = shade
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
