// Package hub runs the depth camera's blocking event loop on its own
// goroutine and fans out decimated depth/video frames to subscribers. It
// starts and stops the underlying device streams to match live subscriber
// demand, exactly as the original streamer thread did.
package hub

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcan/kinlarm/internal/device"
	"github.com/marcan/kinlarm/internal/frame"
)

// ErrHubClosed is returned by a subscriber's Next call once the hub has
// terminated, and by Subscribe* once it already has.
var ErrHubClosed = errors.New("hub: closed")

// oneSlot is a single-value mailbox: Put overwrites any undelivered value,
// Get blocks until one is available. It is the coalescing, lossy queue the
// hub uses to hand frames to subscribers without ever blocking the producer.
type oneSlot struct {
	mu     sync.Mutex
	cond   *sync.Cond
	val    any
	err    error
	hasVal bool
}

func newOneSlot() *oneSlot {
	s := &oneSlot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *oneSlot) put(v any) {
	s.mu.Lock()
	s.val = v
	s.hasVal = true
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *oneSlot) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.hasVal = true
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *oneSlot) get() (any, error) {
	s.mu.Lock()
	for !s.hasVal {
		s.cond.Wait()
	}
	v, err := s.val, s.err
	s.val = nil
	s.hasVal = false
	s.mu.Unlock()
	return v, err
}

type depthDelivery struct {
	f  *frame.DepthFrame
	ts time.Time
}

type videoDelivery struct {
	f  *frame.VideoFrame
	ts time.Time
}

// DepthSubscriber yields decimated depth frames until the hub closes it or
// the caller unsubscribes.
type DepthSubscriber struct {
	id       string
	hub      *Hub
	decimate int
	slot     *oneSlot
}

// Next blocks for the next decimated depth frame.
func (s *DepthSubscriber) Next() (*frame.DepthFrame, time.Time, error) {
	v, err := s.slot.get()
	if err != nil {
		return nil, time.Time{}, err
	}
	d := v.(depthDelivery)
	return d.f, d.ts, nil
}

// Unsubscribe idempotently removes this subscriber from the hub.
func (s *DepthSubscriber) Unsubscribe() { s.hub.removeDepthSubscriber(s.id) }

// VideoSubscriber yields decimated video frames until the hub closes it or
// the caller unsubscribes.
type VideoSubscriber struct {
	id       string
	hub      *Hub
	decimate int
	slot     *oneSlot
}

// Next blocks for the next decimated video frame.
func (s *VideoSubscriber) Next() (*frame.VideoFrame, time.Time, error) {
	v, err := s.slot.get()
	if err != nil {
		return nil, time.Time{}, err
	}
	d := v.(videoDelivery)
	return d.f, d.ts, nil
}

// Unsubscribe idempotently removes this subscriber from the hub.
func (s *VideoSubscriber) Unsubscribe() { s.hub.removeVideoSubscriber(s.id) }

// Hub drives a device.Driver from its own goroutine and fans frames out to
// subscribers. The zero value is not usable; construct with New.
type Hub struct {
	driver device.Driver
	invert bool
	logger *log.Logger

	mu           sync.Mutex
	cond         *sync.Cond
	depthSubs    map[string]*DepthSubscriber
	videoSubs    map[string]*VideoSubscriber
	depthStarted bool
	videoStarted bool
	depthFrameN  int
	videoFrameN  int
	ledPending   *device.LEDState
	closed       bool
	keepRunning  bool

	closeOnce sync.Once
	doneCh    chan struct{}
}

// New constructs a Hub around driver. invert flips both axes of every
// delivered frame, for ceiling-mounted sensors.
func New(driver device.Driver, invert bool, logger *log.Logger) *Hub {
	h := &Hub{
		driver:      driver,
		invert:      invert,
		logger:      logger,
		depthSubs:   make(map[string]*DepthSubscriber),
		videoSubs:   make(map[string]*VideoSubscriber),
		keepRunning: true,
		doneCh:      make(chan struct{}),
	}
	h.cond = sync.NewCond(&h.mu)
	driver.SetDepthCallback(h.onDepth)
	driver.SetVideoCallback(h.onVideo)
	return h
}

// SubscribeDepth registers a new depth frame consumer. Every d-th frame is
// delivered; d must be >= 1.
func (h *Hub) SubscribeDepth(d int) (*DepthSubscriber, error) {
	if d < 1 {
		d = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	sub := &DepthSubscriber{id: uuid.NewString(), hub: h, decimate: d, slot: newOneSlot()}
	wasEmpty := len(h.depthSubs) == 0
	h.depthSubs[sub.id] = sub
	if wasEmpty {
		h.cond.Signal()
	}
	return sub, nil
}

// SubscribeVideo registers a new video frame consumer. Every d-th frame is
// delivered; d must be >= 1.
func (h *Hub) SubscribeVideo(d int) (*VideoSubscriber, error) {
	if d < 1 {
		d = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	sub := &VideoSubscriber{id: uuid.NewString(), hub: h, decimate: d, slot: newOneSlot()}
	wasEmpty := len(h.videoSubs) == 0
	h.videoSubs[sub.id] = sub
	if wasEmpty {
		h.cond.Signal()
	}
	return sub, nil
}

func (h *Hub) removeDepthSubscriber(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.depthSubs[id]; !ok {
		return
	}
	delete(h.depthSubs, id)
	if len(h.depthSubs) == 0 {
		h.cond.Signal()
	}
}

func (h *Hub) removeVideoSubscriber(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.videoSubs[id]; !ok {
		return
	}
	delete(h.videoSubs, id)
	if len(h.videoSubs) == 0 {
		h.cond.Signal()
	}
}

// SetLED queues an indicator color change, applied on the next device loop tick.
func (h *Hub) SetLED(state device.LEDState) {
	h.mu.Lock()
	h.ledPending = &state
	h.mu.Unlock()
	h.cond.Signal()
}

// Stop signals shutdown, delivers ErrHubClosed to every live subscriber,
// closes the device, and waits for the driving goroutine to exit.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.keepRunning = false
	h.mu.Unlock()
	h.cond.Signal()
	<-h.doneCh
}

func (h *Hub) onDepth(raw []uint16, w, hh int, ts time.Time) {
	df := &frame.DepthFrame{W: w, H: hh, Pix: raw}
	if h.invert {
		df = invertDepth(df)
	}
	h.mu.Lock()
	n := h.depthFrameN
	h.depthFrameN++
	subs := make([]*DepthSubscriber, 0, len(h.depthSubs))
	for _, s := range h.depthSubs {
		if n%s.decimate == 0 {
			subs = append(subs, s)
		}
	}
	h.mu.Unlock()
	for _, s := range subs {
		s.slot.put(depthDelivery{f: df, ts: ts})
	}
}

func (h *Hub) onVideo(rgb []byte, w, hh int, ts time.Time) {
	vf := &frame.VideoFrame{W: w, H: hh, Pix: rgb}
	if h.invert {
		vf = invertVideo(vf)
	}
	h.mu.Lock()
	n := h.videoFrameN
	h.videoFrameN++
	subs := make([]*VideoSubscriber, 0, len(h.videoSubs))
	for _, s := range h.videoSubs {
		if n%s.decimate == 0 {
			subs = append(subs, s)
		}
	}
	h.mu.Unlock()
	for _, s := range subs {
		cp := &frame.VideoFrame{W: vf.W, H: vf.H, Pix: append([]byte(nil), vf.Pix...)}
		s.slot.put(videoDelivery{f: cp, ts: ts})
	}
}

func invertDepth(f *frame.DepthFrame) *frame.DepthFrame {
	out := frame.NewDepthFrame(f.W, f.H)
	n := f.W * f.H
	for i, v := range f.Pix {
		out.Pix[n-1-i] = v
	}
	return out
}

func invertVideo(f *frame.VideoFrame) *frame.VideoFrame {
	out := frame.NewVideoFrame(f.W, f.H)
	n := f.W * f.H
	for i := 0; i < n; i++ {
		j := n - 1 - i
		copy(out.Pix[j*3:j*3+3], f.Pix[i*3:i*3+3])
	}
	return out
}

// updateStreams starts or stops each device stream to match current
// subscriber demand. Returns true if both streams are now idle.
func (h *Hub) updateStreams() (bothIdle bool) {
	wantDepth := len(h.depthSubs) > 0
	wantVideo := len(h.videoSubs) > 0

	if h.depthStarted && !wantDepth {
		if err := h.driver.StopDepth(); err != nil {
			h.logf("stop depth: %v", err)
		}
		h.depthStarted = false
	} else if !h.depthStarted && wantDepth {
		if err := h.driver.StartDepth(); err != nil {
			h.logf("start depth: %v", err)
		}
		h.depthStarted = true
	}

	if h.videoStarted && !wantVideo {
		if err := h.driver.StopVideo(); err != nil {
			h.logf("stop video: %v", err)
		}
		h.videoStarted = false
	} else if !h.videoStarted && wantVideo {
		if err := h.driver.StartVideo(); err != nil {
			h.logf("start video: %v", err)
		}
		h.videoStarted = true
	}

	return !h.depthStarted && !h.videoStarted
}

func (h *Hub) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

// Run drives the device loop until Stop is called or the device reports a
// fatal error. It is meant to be launched in its own goroutine; it returns
// once the hub has fully shut down.
func (h *Hub) Run() error {
	defer h.closeOnce.Do(func() { close(h.doneCh) })

	runErr := h.runLoop()

	h.mu.Lock()
	h.closed = true
	allDepth := make([]*DepthSubscriber, 0, len(h.depthSubs))
	for _, s := range h.depthSubs {
		allDepth = append(allDepth, s)
	}
	allVideo := make([]*VideoSubscriber, 0, len(h.videoSubs))
	for _, s := range h.videoSubs {
		allVideo = append(allVideo, s)
	}
	h.depthSubs = make(map[string]*DepthSubscriber)
	h.videoSubs = make(map[string]*VideoSubscriber)
	h.mu.Unlock()

	for _, s := range allDepth {
		s.slot.fail(ErrHubClosed)
	}
	for _, s := range allVideo {
		s.slot.fail(ErrHubClosed)
	}

	_ = h.driver.Close()
	return runErr
}

func (h *Hub) runLoop() error {
	ctx := context.Background()
	if err := h.driver.Open(ctx); err != nil {
		return err
	}

	for {
		h.mu.Lock()
		if h.ledPending != nil {
			state := *h.ledPending
			h.ledPending = nil
			h.mu.Unlock()
			if err := h.driver.SetLED(state); err != nil {
				h.logf("set led: %v", err)
			}
			h.mu.Lock()
		}

		idle := h.updateStreams()
		if idle {
			if !h.keepRunning {
				h.mu.Unlock()
				return nil
			}
			h.cond.Wait()
			h.mu.Unlock()
			continue
		}
		if !h.keepRunning {
			h.mu.Unlock()
			return nil
		}
		h.mu.Unlock()

		err := h.driver.RunLoop(ctx, h.tick)
		if err != nil && !errors.Is(err, device.ErrStopRequested) {
			return err
		}
	}
}

// tick is invoked once per device-loop round. It mirrors the original
// streamer's _body: apply a pending LED change, then re-evaluate stream
// demand, asking the loop to stop when both streams have gone idle or
// shutdown was requested.
func (h *Hub) tick() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ledPending != nil {
		state := *h.ledPending
		h.ledPending = nil
		h.mu.Unlock()
		if err := h.driver.SetLED(state); err != nil {
			h.logf("set led: %v", err)
		}
		h.mu.Lock()
	}

	idle := h.updateStreams()
	if idle || !h.keepRunning {
		return device.ErrStopRequested
	}
	return nil
}
