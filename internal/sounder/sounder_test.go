package sounder

import "testing"

func TestProcessActivateDeactivate(t *testing.T) {
	p := NewProcess("sleep 30")
	h, err := p.Activate()
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if h.Kind != "process" {
		t.Fatalf("Kind = %q, want process", h.Kind)
	}
	if err := p.Deactivate(); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
}

func TestProcessActivateIsIdempotent(t *testing.T) {
	p := NewProcess("sleep 30")
	defer p.Deactivate()

	if _, err := p.Activate(); err != nil {
		t.Fatalf("first Activate: %v", err)
	}
	first := p.child
	if _, err := p.Activate(); err != nil {
		t.Fatalf("second Activate: %v", err)
	}
	if p.child != first {
		t.Fatal("second Activate spawned a new process instead of reusing the running one")
	}
}

func TestProcessDeactivateWithoutActivateIsNoop(t *testing.T) {
	p := NewProcess("sleep 30")
	if err := p.Deactivate(); err != nil {
		t.Fatalf("Deactivate on never-activated sounder: %v", err)
	}
}

func TestSerialActivateFailsOnMissingDevice(t *testing.T) {
	s := NewSerial("/dev/nonexistent-kinlarm-test-port", 0)
	if _, err := s.Activate(); err == nil {
		t.Fatal("Activate against a nonexistent serial device succeeded")
	}
}

func TestSerialDeactivateWithoutActivateIsNoop(t *testing.T) {
	s := NewSerial("/dev/nonexistent-kinlarm-test-port", 0)
	if err := s.Deactivate(); err != nil {
		t.Fatalf("Deactivate on never-activated sounder: %v", err)
	}
}
