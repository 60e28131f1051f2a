// Package controller implements the alarm's seven-state lifecycle: disarmed,
// arming, armed, prealarm, notify, alarm, and silenced. It drives the hub's
// LED, starts and stops the motion detector, and fires the external
// notification and sounder side effects, all from one supervising goroutine
// ticking at one-second granularity so operator overrides are observed
// promptly.
package controller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/marcan/kinlarm/internal/device"
	"github.com/marcan/kinlarm/internal/hub"
	"github.com/marcan/kinlarm/internal/motion"
	"github.com/marcan/kinlarm/internal/notify"
	"github.com/marcan/kinlarm/internal/sounder"
)

// Alerter is the notify side effect the "notify" state calls into.
// *notify.Notifier satisfies it.
type Alerter interface {
	Send(subject string) notify.Result
}

// State identifies one of the seven alarm lifecycle states.
type State int

const (
	Disarmed State = iota
	Arming
	Armed
	Prealarm
	Notify
	Alarm
	Silenced
)

func (s State) String() string {
	switch s {
	case Disarmed:
		return "disarmed"
	case Arming:
		return "arming"
	case Armed:
		return "armed"
	case Prealarm:
		return "prealarm"
	case Notify:
		return "notify"
	case Alarm:
		return "alarm"
	case Silenced:
		return "silenced"
	default:
		return "unknown"
	}
}

// ParseState maps a lowercase state name to its State value. Unknown names
// report ok == false; the caller (the HTTP override handler) must silently
// reject them rather than erroring.
func ParseState(name string) (s State, ok bool) {
	for _, candidate := range []State{Disarmed, Arming, Armed, Prealarm, Notify, Alarm, Silenced} {
		if candidate.String() == name {
			return candidate, true
		}
	}
	return 0, false
}

// Timers holds the seconds-granularity durations named in the state table.
type Timers struct {
	ArmTime       int
	PrealarmGrace int
	NotifyTimeout int
}

// ErrUnknownState is never returned to HTTP callers (unknown overrides are
// silently ignored per spec) but is available for programmatic callers.
var ErrUnknownState = errors.New("controller: unknown state")

// Controller runs the alarm lifecycle against a hub, a motion detector
// configuration, a notifier, and a sounder.
type Controller struct {
	hub       *hub.Hub
	notifier  Alerter
	snd       sounder.Sounder
	motionCfg motion.Config
	timers    Timers
	logger    *log.Logger

	mu           sync.Mutex
	current      State
	pending      *State
	onTransition func(State)
}

// New constructs a Controller. logger may be nil.
func New(h *hub.Hub, ntf Alerter, snd sounder.Sounder, motionCfg motion.Config, timers Timers, logger *log.Logger) *Controller {
	return &Controller{
		hub:       h,
		notifier:  ntf,
		snd:       snd,
		motionCfg: motionCfg,
		timers:    timers,
		logger:    logger,
		current:   Disarmed,
	}
}

// OnTransition registers a callback invoked with the new state every time
// the controller transitions. Used by the HTTP surface's /ws push.
func (c *Controller) OnTransition(cb func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTransition = cb
}

// Current returns the currently active state.
func (c *Controller) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SetState requests a transition to s at the next 1-second tick. Unknown
// states are rejected by the caller via ParseState before reaching here; a
// request matching the already-active state is a deliberate no-op, matching
// the original's switch_state short-circuit.
func (c *Controller) SetState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == c.current {
		return
	}
	next := s
	c.pending = &next
}

func (c *Controller) hasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

func (c *Controller) takePending() *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pending
	c.pending = nil
	return p
}

func (c *Controller) setCurrent(s State) {
	c.mu.Lock()
	c.current = s
	cb := c.onTransition
	c.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

func (c *Controller) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Run drives the lifecycle until ctx is canceled. It always starts in
// Disarmed.
func (c *Controller) Run(ctx context.Context) error {
	c.setCurrent(Disarmed)
	state := Disarmed
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logf("state: %s", state)
		next := c.runState(ctx, state)
		if override := c.takePending(); override != nil {
			next = *override
		}
		if next != state {
			c.setCurrent(next)
		}
		state = next
	}
}

func (c *Controller) runState(ctx context.Context, s State) State {
	switch s {
	case Disarmed:
		return c.runDisarmed(ctx)
	case Arming:
		return c.runArming(ctx)
	case Armed:
		return c.runArmed(ctx)
	case Prealarm:
		return c.runPrealarm(ctx)
	case Notify:
		return c.runNotify(ctx)
	case Alarm:
		return c.runAlarm(ctx)
	case Silenced:
		return c.runSilenced(ctx)
	default:
		return Disarmed
	}
}

// wait blocks in 1-second steps until maxSeconds have elapsed (a negative
// value means forever), ctx is canceled, or an operator override has been
// queued. It reports whether it returned early for the latter two reasons.
func (c *Controller) wait(ctx context.Context, maxSeconds int) (interrupted bool) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	elapsed := 0
	for {
		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
			elapsed++
			if c.hasPending() {
				return true
			}
			if maxSeconds >= 0 && elapsed >= maxSeconds {
				return false
			}
		}
	}
}

func (c *Controller) runDisarmed(ctx context.Context) State {
	c.hub.SetLED(device.LEDGreen)
	c.wait(ctx, -1)
	return Disarmed
}

func (c *Controller) runArming(ctx context.Context) State {
	c.hub.SetLED(device.LEDBlinkGreen)
	if interrupted := c.wait(ctx, c.timers.ArmTime); interrupted {
		return Arming
	}
	return Armed
}

func (c *Controller) runArmed(ctx context.Context) State {
	c.hub.SetLED(device.LEDYellow)

	sub, err := c.hub.SubscribeDepth(5)
	if err != nil {
		c.logf("armed: subscribe depth: %v", err)
		c.wait(ctx, -1)
		return Armed
	}
	defer sub.Unsubscribe()

	// Open Question resolution: the reference model is always rebuilt on
	// re-entry into armed, regardless of which state preceded it.
	det := motion.New(sub, c.motionCfg)
	detCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	detDone := make(chan error, 1)
	go func() { detDone <- det.Run(detCtx) }()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return Armed
		case err := <-detDone:
			if err != nil {
				c.logf("armed: detector stopped: %v", err)
			}
			return Armed
		case <-ticker.C:
			if det.Detected() {
				return Prealarm
			}
			if c.hasPending() {
				return Armed
			}
		}
	}
}

func (c *Controller) runPrealarm(ctx context.Context) State {
	c.hub.SetLED(device.LEDBlinkRedYellow)
	if interrupted := c.wait(ctx, c.timers.PrealarmGrace); interrupted {
		return Prealarm
	}
	return Notify
}

func (c *Controller) runNotify(ctx context.Context) State {
	c.hub.SetLED(device.LEDRed)

	res := c.notifier.Send("Motion detected")
	if !res.Sent {
		c.logf("notify: alert failed: %v", res.Err)
		return Alarm
	}

	if interrupted := c.wait(ctx, c.timers.NotifyTimeout); interrupted {
		return Notify
	}
	return Alarm
}

func (c *Controller) runAlarm(ctx context.Context) State {
	c.hub.SetLED(device.LEDRed)
	if _, err := c.snd.Activate(); err != nil {
		c.logf("alarm: sounder activate: %v", err)
	}
	defer func() {
		if err := c.snd.Deactivate(); err != nil {
			c.logf("alarm: sounder deactivate: %v", err)
		}
	}()
	c.wait(ctx, -1)
	return Alarm
}

func (c *Controller) runSilenced(ctx context.Context) State {
	c.hub.SetLED(device.LEDRed)
	c.wait(ctx, -1)
	return Silenced
}
