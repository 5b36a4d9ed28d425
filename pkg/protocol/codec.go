package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Wire layout, one tag byte followed by the variant payload:
//
//	SetThrust: 0x00 | float32 little-endian
//	Heartbeat: 0x01
//
// This matches bincode's standard configuration for tags below 251.
const (
	tagLen       = 1
	setThrustLen = tagLen + 4
	heartbeatLen = tagLen
)

var (
	ErrTruncated     = errors.New("truncated input")
	ErrUnknownTag    = errors.New("unknown command tag")
	ErrTrailingBytes = errors.New("trailing bytes after command")
)

// DecodeError reports why a byte sequence is not a valid Command.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode command at byte %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode returns the wire form of c. It never fails for a Command value.
func Encode(c Command) []byte {
	switch c := Normalize(c).(type) {
	case SetThrust:
		buf := make([]byte, setThrustLen)
		buf[0] = byte(KindSetThrust)
		binary.LittleEndian.PutUint32(buf[tagLen:], math.Float32bits(c.Thrust))
		return buf
	case Heartbeat:
		return []byte{byte(KindHeartbeat)}
	}
	// Unreachable: Command is sealed.
	panic(fmt.Sprintf("protocol: encode unknown command %T", c))
}

// Decode parses exactly one Command from data.
func Decode(data []byte) (Command, error) {
	if len(data) < tagLen {
		return nil, &DecodeError{Offset: 0, Err: ErrTruncated}
	}

	var (
		cmd  Command
		want int
	)
	switch Kind(data[0]) {
	case KindSetThrust:
		want = setThrustLen
		if len(data) < want {
			return nil, &DecodeError{Offset: len(data), Err: ErrTruncated}
		}
		bits := binary.LittleEndian.Uint32(data[tagLen:setThrustLen])
		cmd = SetThrust{Thrust: math.Float32frombits(bits)}
	case KindHeartbeat:
		want = heartbeatLen
		cmd = Heartbeat{}
	default:
		return nil, &DecodeError{Offset: 0, Err: fmt.Errorf("%w %d", ErrUnknownTag, data[0])}
	}

	if len(data) > want {
		return nil, &DecodeError{Offset: want, Err: ErrTrailingBytes}
	}
	return cmd, nil
}
