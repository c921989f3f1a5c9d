package policy

import "time"

// State is the lifecycle state of a binding on one target.
type State string

const (
	Inactive  State = "Inactive"
	Active    State = "Active"
	Resetting State = "Resetting"
)

// Transition is one state change produced by a tick. NotifyReset is set on
// the transition back to Inactive when the binding requests a reset
// notification.
type Transition struct {
	From        State
	To          State
	At          time.Time
	NotifyReset bool
}

// Machine drives one binding through Inactive/Active/Resetting. It consumes
// the gated predicate result once per tick; duration-window accumulation
// happens upstream in the evaluation engine.
type Machine struct {
	binding     *Binding
	state       State
	activatedAt time.Time

	// suppressed holds off re-triggering after an interval reset completed
	// while the condition was still true and TriggerAgain is off. It clears
	// on the first unsatisfied tick.
	suppressed bool
}

// NewMachine returns a machine in the Inactive state.
func NewMachine(b *Binding) *Machine {
	return &Machine{binding: b, state: Inactive}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Apply advances the machine one tick and returns the transitions produced,
// in order. An Active binding never re-fires; it must pass through Inactive
// first.
func (m *Machine) Apply(satisfied bool, now time.Time) []Transition {
	switch m.state {
	case Inactive:
		if !satisfied {
			m.suppressed = false
			return nil
		}
		if m.suppressed {
			return nil
		}
		m.state = Active
		m.activatedAt = now
		return []Transition{{From: Inactive, To: Active, At: now}}

	case Active:
		ar := m.binding.AutoReset
		if !ar.Enabled {
			return nil
		}
		if ar.WhenNoLongerMet {
			if satisfied {
				return nil
			}
			m.state = Inactive
			return []Transition{{From: Active, To: Inactive, At: now, NotifyReset: ar.NotifyOnReset}}
		}
		// Fixed-interval reset clears after the interval elapses regardless
		// of continued satisfaction.
		if ar.ResetInterval.IsZero() || now.Sub(m.activatedAt) < ar.ResetInterval.Duration() {
			return nil
		}
		m.state = Inactive
		if satisfied && !ar.TriggerAgain {
			m.suppressed = true
		}
		return []Transition{
			{From: Active, To: Resetting, At: now},
			{From: Resetting, To: Inactive, At: now, NotifyReset: ar.NotifyOnReset},
		}
	}
	return nil
}
