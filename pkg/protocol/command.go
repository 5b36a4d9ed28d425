package protocol

import (
	"fmt"
	"strconv"
)

// Kind is the wire tag identifying a Command variant. Tags are part of the
// wire contract: changing or reusing one is a breaking protocol change.
type Kind uint8

const (
	KindSetThrust Kind = 0
	KindHeartbeat Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindSetThrust:
		return "set_thrust"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Command is a control message understood by the control loop.
// The set of variants is closed: only SetThrust and Heartbeat implement it,
// along with their pointer forms. Normalize folds the pointer forms back.
type Command interface {
	Kind() Kind
	String() string
	isCommand()
}

// SetThrust requests an absolute thrust setting.
type SetThrust struct {
	Thrust float32
}

// Heartbeat is a liveness signal with no payload.
type Heartbeat struct{}

func (SetThrust) Kind() Kind { return KindSetThrust }
func (Heartbeat) Kind() Kind { return KindHeartbeat }

// String returns the canonical text form, accepted back by ParseCommand.
func (c SetThrust) String() string {
	return "set_thrust " + strconv.FormatFloat(float64(c.Thrust), 'g', -1, 32)
}

func (Heartbeat) String() string { return "heartbeat" }

func (SetThrust) isCommand() {}
func (Heartbeat) isCommand() {}

// Normalize returns c in value form, so *SetThrust and *Heartbeat behave
// like SetThrust and Heartbeat. A nil pointer becomes the zero value.
func Normalize(c Command) Command {
	switch c := c.(type) {
	case *SetThrust:
		if c == nil {
			return SetThrust{}
		}
		return *c
	case *Heartbeat:
		return Heartbeat{}
	}
	return c
}
