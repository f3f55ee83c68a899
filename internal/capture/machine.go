package capture

import "time"

// State is the pose-validity state of a capture session.
type State int

const (
	StateInvalid State = iota
	StateValidating
	StateTriggered
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateTriggered:
		return "triggered"
	default:
		return "invalid"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition is the outcome of feeding one assessment to the Machine.
type Transition struct {
	Status    string
	PoseValid bool
	State     State
	// Trigger is set on the single tick that moves the machine to StateTriggered.
	Trigger bool
}

// Machine is the hold-steady countdown. The anchor is set only while the
// machine is in StateValidating and is cleared on every other transition.
type Machine struct {
	state  State
	anchor time.Time
	hold   time.Duration
}

func NewMachine(hold time.Duration) *Machine {
	if hold <= 0 {
		hold = HoldDuration
	}
	return &Machine{hold: hold}
}

func (m *Machine) State() State { return m.state }

// Anchor returns the time the current validating run started.
func (m *Machine) Anchor() (time.Time, bool) {
	if m.state != StateValidating {
		return time.Time{}, false
	}
	return m.anchor, true
}

// Observe applies one sampling tick observed at now.
func (m *Machine) Observe(a Assessment, now time.Time) Transition {
	if m.state == StateTriggered {
		return Transition{Status: StatusCapturing, PoseValid: true, State: StateTriggered}
	}

	if !a.FullBodyVisible() {
		m.state = StateInvalid
		m.anchor = time.Time{}
		return Transition{Status: a.Guidance(), State: StateInvalid}
	}

	if m.state != StateValidating {
		m.state = StateValidating
		m.anchor = now
		return Transition{Status: StatusHoldSteady, PoseValid: true, State: StateValidating}
	}

	left := m.timeLeft(now.Sub(m.anchor))
	t := Transition{Status: holdSteadyStatus(left), PoseValid: true, State: StateValidating}
	if left == 0 {
		m.state = StateTriggered
		m.anchor = time.Time{}
		t.State = StateTriggered
		t.Trigger = true
	}
	return t
}

// Trigger moves the machine to StateTriggered from any other state. It
// reports false if a capture is already under way.
func (m *Machine) Trigger() bool {
	if m.state == StateTriggered {
		return false
	}
	m.state = StateTriggered
	m.anchor = time.Time{}
	return true
}

// Rearm returns a triggered machine to StateInvalid after a failed capture.
func (m *Machine) Rearm() {
	m.state = StateInvalid
	m.anchor = time.Time{}
}

// timeLeft is the countdown still to run, rounded up to whole seconds. It
// reaches zero exactly when the hold duration has elapsed.
func (m *Machine) timeLeft(elapsed time.Duration) int {
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := m.hold - elapsed
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}
