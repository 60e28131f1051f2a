package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSimulatedSatisfiesDriver(t *testing.T) {
	var _ Driver = NewSimulated()
}

func TestSimulatedDeliversDepthFrames(t *testing.T) {
	s := NewSimulated()
	s.FPS = 1000 // keep the test fast

	var mu sync.Mutex
	var got int
	s.SetDepthCallback(func(raw []uint16, w, h int, ts time.Time) {
		mu.Lock()
		defer mu.Unlock()
		got++
		if w != s.W || h != s.H {
			t.Errorf("frame size = %dx%d, want %dx%d", w, h, s.W, s.H)
		}
		if len(raw) != w*h {
			t.Errorf("len(raw) = %d, want %d", len(raw), w*h)
		}
	})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.StartDepth(); err != nil {
		t.Fatalf("StartDepth: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ticks := 0
	err := s.RunLoop(ctx, func() error {
		ticks++
		if ticks >= 5 {
			return ErrStopRequested
		}
		return nil
	})
	if !errors.Is(err, ErrStopRequested) {
		t.Fatalf("RunLoop error = %v, want ErrStopRequested", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got == 0 {
		t.Fatal("no depth frames delivered")
	}
}

func TestSimulatedSkipsStoppedStreams(t *testing.T) {
	s := NewSimulated()
	s.FPS = 1000

	var videoCalls int
	s.SetVideoCallback(func(rgb []byte, w, h int, ts time.Time) {
		videoCalls++
	})
	// Video never started.

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_ = s.RunLoop(ctx, func() error { return nil })
	if videoCalls != 0 {
		t.Fatalf("video callback fired %d times with video stopped", videoCalls)
	}
}

func TestSimulatedRunLoopStopsOnContextCancel(t *testing.T) {
	s := NewSimulated()
	s.FPS = 1000
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.RunLoop(ctx, func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunLoop error = %v, want context.Canceled", err)
	}
}

func TestSimulatedSetLED(t *testing.T) {
	s := NewSimulated()
	if err := s.SetLED(LEDRed); err != nil {
		t.Fatalf("SetLED: %v", err)
	}
	if got := s.LED(); got != LEDRed {
		t.Fatalf("LED() = %v, want %v", got, LEDRed)
	}
}

func TestLEDStateString(t *testing.T) {
	if LEDBlinkRedYellow.String() != "blink-red-yellow" {
		t.Fatalf("String() = %q", LEDBlinkRedYellow.String())
	}
	if LEDState(99).String() != "unknown" {
		t.Fatalf("String() for unknown state = %q", LEDState(99).String())
	}
}
