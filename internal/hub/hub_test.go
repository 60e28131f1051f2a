package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/marcan/kinlarm/internal/device"
)

func newTestHub(t *testing.T) (*Hub, *device.Simulated) {
	t.Helper()
	sim := device.NewSimulated()
	sim.FPS = 1000
	h := New(sim, false, nil)
	go func() {
		if err := h.Run(); err != nil {
			t.Logf("hub run ended: %v", err)
		}
	}()
	return h, sim
}

func TestHubDeliversDepthFramesToSubscriber(t *testing.T) {
	h, _ := newTestHub(t)
	defer h.Stop()

	sub, err := h.SubscribeDepth(1)
	if err != nil {
		t.Fatalf("SubscribeDepth: %v", err)
	}
	defer sub.Unsubscribe()

	f, _, err := sub.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.W != 640 || f.H != 480 {
		t.Fatalf("frame size = %dx%d", f.W, f.H)
	}
}

func TestHubDecimatesFrames(t *testing.T) {
	h, _ := newTestHub(t)
	defer h.Stop()

	sub, err := h.SubscribeDepth(1)
	if err != nil {
		t.Fatalf("SubscribeDepth: %v", err)
	}
	defer sub.Unsubscribe()

	decimated, err := h.SubscribeDepth(5)
	if err != nil {
		t.Fatalf("SubscribeDepth: %v", err)
	}
	defer decimated.Unsubscribe()

	// Both should eventually deliver; the decimated one just delivers less
	// often. This only checks it is not starved outright.
	done := make(chan struct{})
	go func() {
		_, _, _ = decimated.Next()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("decimated subscriber never received a frame")
	}
}

// TestHubDecimationCountsExactly exercises the decimation arithmetic
// directly: onDepth is called synchronously with known frame indices rather
// than through device.Simulated's real-time ticker, so the lossy single-slot
// delivery (oneSlot.put overwrites an undelivered value) can never coalesce
// away a frame the test expects to observe. A d=2 subscriber must see frame
// indices 0,2,4,6,8,10 (6 deliveries) and a d=3 subscriber 0,3,6,9 (4
// deliveries), overlapping at the multiples of 6.
func TestHubDecimationCountsExactly(t *testing.T) {
	sim := device.NewSimulated()
	h := New(sim, false, nil)

	sub2, err := h.SubscribeDepth(2)
	if err != nil {
		t.Fatalf("SubscribeDepth(2): %v", err)
	}
	sub3, err := h.SubscribeDepth(3)
	if err != nil {
		t.Fatalf("SubscribeDepth(3): %v", err)
	}

	var got2, got3 []uint16
	for i := 0; i < 12; i++ {
		h.onDepth([]uint16{uint16(i)}, 1, 1, time.Time{})
		if i%2 == 0 {
			f, _, err := sub2.Next()
			if err != nil {
				t.Fatalf("sub2.Next() at i=%d: %v", i, err)
			}
			got2 = append(got2, f.Pix[0])
		}
		if i%3 == 0 {
			f, _, err := sub3.Next()
			if err != nil {
				t.Fatalf("sub3.Next() at i=%d: %v", i, err)
			}
			got3 = append(got3, f.Pix[0])
		}
	}

	want2 := []uint16{0, 2, 4, 6, 8, 10}
	if len(got2) != len(want2) {
		t.Fatalf("d=2 deliveries = %v, want %v", got2, want2)
	}
	for i, v := range want2 {
		if got2[i] != v {
			t.Fatalf("d=2 deliveries = %v, want %v", got2, want2)
		}
	}

	want3 := []uint16{0, 3, 6, 9}
	if len(got3) != len(want3) {
		t.Fatalf("d=3 deliveries = %v, want %v", got3, want3)
	}
	for i, v := range want3 {
		if got3[i] != v {
			t.Fatalf("d=3 deliveries = %v, want %v", got3, want3)
		}
	}
}

func TestHubStopClosesSubscribers(t *testing.T) {
	h, _ := newTestHub(t)

	sub, err := h.SubscribeDepth(1)
	if err != nil {
		t.Fatalf("SubscribeDepth: %v", err)
	}

	// Make sure at least one frame flowed so the stream is actually started.
	if _, _, err := sub.Next(); err != nil {
		t.Fatalf("Next before stop: %v", err)
	}

	h.Stop()

	_, _, err = sub.Next()
	if !errors.Is(err, ErrHubClosed) {
		t.Fatalf("Next after stop = %v, want ErrHubClosed", err)
	}
}

func TestHubSubscribeAfterCloseFails(t *testing.T) {
	h, _ := newTestHub(t)
	h.Stop()

	if _, err := h.SubscribeDepth(1); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("SubscribeDepth after stop = %v, want ErrHubClosed", err)
	}
}

func TestHubVideoFramesAreCopied(t *testing.T) {
	h, _ := newTestHub(t)
	defer h.Stop()

	sub, err := h.SubscribeVideo(1)
	if err != nil {
		t.Fatalf("SubscribeVideo: %v", err)
	}
	defer sub.Unsubscribe()

	f, _, err := sub.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	original := append([]byte(nil), f.Pix...)
	f.Pix[0] = 255 - f.Pix[0]
	if f.Pix[0] == original[0] {
		t.Skip("pixel value unchanged by inversion, cannot assert independence")
	}

	f2, _, err := sub.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	// f2 must be a distinct backing array from f, i.e. mutating f must not
	// have touched the payload of a later delivery.
	if &f.Pix[0] == &f2.Pix[0] {
		t.Fatal("successive video frames share a backing array")
	}
}
