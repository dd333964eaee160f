package renderer

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// State is the renderer's position in its lifecycle. Once command buffers are
// recorded each DrawFrame walks Acquiring, Submitted and Presented; Dispose
// ends in Idle.
type State int

const (
	StateUninitialized State = iota
	StateRecording
	StateReady
	StateAcquiring
	StateSubmitted
	StatePresented
	StateIdle
)

var stateNames = [...]string{
	StateUninitialized: "Uninitialized",
	StateRecording:     "Recording",
	StateReady:         "Ready",
	StateAcquiring:     "Acquiring",
	StateSubmitted:     "Submitted",
	StatePresented:     "Presented",
	StateIdle:          "Idle",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrDisposed     = errors.New("renderer disposed")
	ErrInvalidState = errors.New("invalid renderer state")
)

func (r *Renderer) expect(op string, allowed ...State) error {
	if r.state == StateIdle {
		return errors.Wrap(ErrDisposed, op)
	}
	for _, s := range allowed {
		if r.state == s {
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidState, "%s in state %s", op, r.state)
}
