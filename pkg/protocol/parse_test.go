package protocol

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want Command
	}{
		{"heartbeat", Heartbeat{}},
		{"ping", Heartbeat{}},
		{"  PING \n", Heartbeat{}},
		{"set_thrust 1.0", SetThrust{Thrust: 1.0}},
		{"thrust 0.5", SetThrust{Thrust: 0.5}},
		{"Set_Thrust -2", SetThrust{Thrust: -2}},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.text)
		if err != nil {
			t.Fatalf("ParseCommand(%q): %v", tt.text, err)
		}
		if got != tt.want {
			t.Fatalf("ParseCommand(%q) = %#v, want %#v", tt.text, got, tt.want)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		text string
		want error
	}{
		{"", ErrEmptyCommand},
		{"   ", ErrEmptyCommand},
		{"Hello", ErrUnknownCommand},
		{"Time: 3", ErrUnknownCommand},
		{"thrust", ErrBadArgument},
		{"thrust fast", ErrBadArgument},
		{"thrust 1 2", ErrBadArgument},
		{"ping now", ErrBadArgument},
	}
	for _, tt := range tests {
		_, err := ParseCommand(tt.text)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("ParseCommand(%q): expected *ParseError, got %v", tt.text, err)
		}
		if !errors.Is(err, tt.want) {
			t.Fatalf("ParseCommand(%q): expected %v, got %v", tt.text, tt.want, err)
		}
	}
}

func TestStringParsesBack(t *testing.T) {
	for _, c := range []Command{Heartbeat{}, SetThrust{Thrust: 0.1}, SetThrust{Thrust: 1e-7}, SetThrust{Thrust: 3}} {
		got, err := ParseCommand(c.String())
		if err != nil {
			t.Fatalf("ParseCommand(%q): %v", c.String(), err)
		}
		if got != c {
			t.Fatalf("ParseCommand(%q) = %#v, want %#v", c.String(), got, c)
		}
	}
}
