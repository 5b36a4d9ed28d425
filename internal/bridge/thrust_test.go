package bridge

import (
	"math"
	"testing"

	"github.com/blucher/blucher/pkg/protocol"
)

func TestThrustLimitsApply(t *testing.T) {
	tests := []struct {
		name    string
		limits  ThrustLimits
		in      float32
		want    float32
		wantErr bool
	}{
		{"clamp within", DefaultThrustLimits(), 0.4, 0.4, false},
		{"clamp high", DefaultThrustLimits(), 1.5, 1, false},
		{"clamp low", DefaultThrustLimits(), -3, 0, false},
		{"clamp nan", DefaultThrustLimits(), float32(math.NaN()), 0, true},
		{"clamp inf", DefaultThrustLimits(), float32(math.Inf(1)), 0, true},
		{"reject within", ThrustLimits{Policy: ThrustReject, Min: -1, Max: 1}, -1, -1, false},
		{"reject outside", ThrustLimits{Policy: ThrustReject, Min: -1, Max: 1}, 1.01, 0, true},
		{"pass outside", ThrustLimits{Policy: ThrustPass, Min: 0, Max: 1}, 42, 42, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.limits.Apply(protocol.SetThrust{Thrust: tt.in})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if got != (protocol.SetThrust{Thrust: tt.want}) {
				t.Fatalf("got %v, want thrust %v", got, tt.want)
			}
		})
	}
}

func TestThrustLimitsApplyPointer(t *testing.T) {
	got, err := DefaultThrustLimits().Apply(&protocol.SetThrust{Thrust: 2})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got != (protocol.SetThrust{Thrust: 1}) {
		t.Fatalf("got %v, want clamped value form", got)
	}
}

func TestThrustLimitsIgnoreHeartbeat(t *testing.T) {
	l := ThrustLimits{Policy: ThrustReject, Min: 5, Max: 6}
	got, err := l.Apply(protocol.Heartbeat{})
	if err != nil || got != (protocol.Heartbeat{}) {
		t.Fatalf("apply heartbeat = %v, %v", got, err)
	}
}

func TestThrustLimitsValidate(t *testing.T) {
	if err := DefaultThrustLimits().Validate(); err != nil {
		t.Fatalf("default limits invalid: %v", err)
	}
	if err := (ThrustLimits{Policy: "wrap"}).Validate(); err == nil {
		t.Fatal("expected error for unknown policy")
	}
	if err := (ThrustLimits{Policy: ThrustClamp, Min: 2, Max: 1}).Validate(); err == nil {
		t.Fatal("expected error for min > max")
	}
}
