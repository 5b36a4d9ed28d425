package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgument    = errors.New("bad argument")
)

// ParseError reports text that does not describe a Command.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse command %q: %v", e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseCommand converts the text form of a command into a Command.
//
//	heartbeat | ping
//	set_thrust <float> | thrust <float>
//
// Verbs are case-insensitive. Surrounding whitespace is ignored.
func ParseCommand(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, &ParseError{Text: text, Err: ErrEmptyCommand}
	}

	verb, args := strings.ToLower(fields[0]), fields[1:]
	switch verb {
	case "heartbeat", "ping":
		if len(args) != 0 {
			return nil, &ParseError{Text: text, Err: fmt.Errorf("%w: %s takes no arguments", ErrBadArgument, verb)}
		}
		return Heartbeat{}, nil
	case "set_thrust", "thrust":
		if len(args) != 1 {
			return nil, &ParseError{Text: text, Err: fmt.Errorf("%w: %s takes one value", ErrBadArgument, verb)}
		}
		v, err := strconv.ParseFloat(args[0], 32)
		if err != nil {
			return nil, &ParseError{Text: text, Err: fmt.Errorf("%w: thrust %q", ErrBadArgument, args[0])}
		}
		return SetThrust{Thrust: float32(v)}, nil
	default:
		return nil, &ParseError{Text: text, Err: fmt.Errorf("%w %q", ErrUnknownCommand, fields[0])}
	}
}
