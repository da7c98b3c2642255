// Package status holds the session state machine.
package status

import (
	"fmt"
	"slices"
	"sync"
)

// State is the lifecycle state of the WhatsApp session. The string values
// are reported verbatim by the HTTP API.
type State string

const (
	Initializing    State = "initializing"
	AwaitingPairing State = "qr"
	Ready           State = "ready"
	Disconnected    State = "disconnected"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Initializing:    {AwaitingPairing, Ready, Disconnected},
	AwaitingPairing: {Ready, Disconnected},
	Ready:           {Disconnected},
	Disconnected:    {Initializing},
}

// Machine tracks and enforces session state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
}

// NewMachine creates a new state machine starting in Initializing state.
func NewMachine() *Machine {
	return &Machine{current: Initializing}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Moving to the current state is
// a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	m.current = to
	return nil
}
