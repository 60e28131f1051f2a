// Package sounder drives the external audible alarm. Two implementations
// are provided: Process, which shells out to a configured playback command,
// and Serial, which toggles a serial port's DTR line by opening it.
package sounder

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/tarm/serial"
)

// Handle is a small opaque token the controller logs on activate/deactivate.
type Handle struct {
	Kind string // "process" or "serial"
}

// Sounder is the alarm controller's side-effect boundary for the audible alarm.
type Sounder interface {
	Activate() (Handle, error)
	Deactivate() error
}

// Process shells out to a playback command on Activate and terminates it on
// Deactivate, matching the original's subprocess.Popen(shell=True)/terminate
// pair.
type Process struct {
	Command string

	mu    sync.Mutex
	child *exec.Cmd
}

// NewProcess constructs a Process sounder that runs command through the
// shell when activated.
func NewProcess(command string) *Process {
	return &Process{Command: command}
}

// Activate starts the playback command if it is not already running.
func (p *Process) Activate() (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.child != nil {
		return Handle{Kind: "process"}, nil
	}
	cmd := exec.Command("sh", "-c", p.Command)
	if err := cmd.Start(); err != nil {
		return Handle{}, fmt.Errorf("sounder: start playback command: %w", err)
	}
	p.child = cmd
	return Handle{Kind: "process"}, nil
}

// Deactivate terminates the running playback command, if any.
func (p *Process) Deactivate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.child == nil {
		return nil
	}
	err := p.child.Process.Kill()
	_ = p.child.Wait()
	p.child = nil
	if err != nil {
		return fmt.Errorf("sounder: stop playback command: %w", err)
	}
	return nil
}

// Serial triggers an alarm device wired to a serial port's DTR line: opening
// the port asserts DTR, closing it deasserts it. This mirrors the original's
// SerialSounder, which relies entirely on pyserial's open-time DTR behavior.
type Serial struct {
	Port string
	Baud int

	mu   sync.Mutex
	port *serial.Port
}

// NewSerial constructs a Serial sounder against the given device path.
// Baud defaults to 9600 if zero; the value rarely matters since only the
// DTR transition is used.
func NewSerial(devicePath string, baud int) *Serial {
	if baud == 0 {
		baud = 9600
	}
	return &Serial{Port: devicePath, Baud: baud}
}

// Activate opens the serial port, asserting DTR.
func (s *Serial) Activate() (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return Handle{Kind: "serial"}, nil
	}
	cfg := &serial.Config{Name: s.Port, Baud: s.Baud}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return Handle{}, fmt.Errorf("sounder: open %s: %w", s.Port, err)
	}
	s.port = p
	return Handle{Kind: "serial"}, nil
}

// Deactivate closes the serial port, deasserting DTR.
func (s *Serial) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	if err != nil {
		return fmt.Errorf("sounder: close %s: %w", s.Port, err)
	}
	return nil
}
