package status

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/guepardlover77/sms-app/internal/bus"
)

// State describes the daemon's runtime condition.
type State string

const (
	StateBooting  State = "booting"
	StateReady    State = "ready"
	StateDegraded State = "degraded"
	StateError    State = "error"
)

// allowed transitions between states
var transitions = map[State][]State{
	StateBooting:  {StateReady, StateError},
	StateReady:    {StateDegraded, StateError},
	StateDegraded: {StateReady, StateError},
	StateError:    {},
}

// Machine tracks the daemon state and publishes transitions on the bus.
type Machine struct {
	mu     sync.RWMutex
	state  State
	reason string
	bus    *bus.Bus
	logger *zap.Logger
}

func NewMachine(b *bus.Bus, logger *zap.Logger) *Machine {
	return &Machine{
		state:  StateBooting,
		bus:    b,
		logger: logger.Named("status"),
	}
}

// Current returns the current state and the reason for the last transition.
func (m *Machine) Current() (State, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.reason
}

// Transition moves the machine to the target state. Invalid transitions
// are rejected.
func (m *Machine) Transition(to State, reason string) error {
	m.mu.Lock()
	from := m.state
	if from == to {
		m.mu.Unlock()
		return nil
	}
	if !canTransition(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("invalid state transition %s -> %s", from, to)
	}
	m.state = to
	m.reason = reason
	m.mu.Unlock()

	m.logger.Info("state transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason),
	)
	m.bus.Publish(bus.Event{
		Kind:      bus.KindStatusChanged,
		Timestamp: time.Now(),
		Payload: map[string]string{
			"from":   string(from),
			"to":     string(to),
			"reason": reason,
		},
	})
	return nil
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
