package bridge

import (
	"fmt"
	"math"

	"github.com/blucher/blucher/pkg/protocol"
)

// ThrustPolicy decides what happens to a SetThrust outside the limits.
type ThrustPolicy string

const (
	ThrustClamp  ThrustPolicy = "clamp"
	ThrustReject ThrustPolicy = "reject"
	ThrustPass   ThrustPolicy = "pass"
)

// ThrustLimits bounds accepted thrust values.
type ThrustLimits struct {
	Policy ThrustPolicy `mapstructure:"policy"`
	Min    float32      `mapstructure:"min"`
	Max    float32      `mapstructure:"max"`
}

// DefaultThrustLimits clamps to [0, 1].
func DefaultThrustLimits() ThrustLimits {
	return ThrustLimits{Policy: ThrustClamp, Min: 0, Max: 1}
}

// Validate checks the limits are usable.
func (l ThrustLimits) Validate() error {
	switch l.Policy {
	case ThrustClamp, ThrustReject, ThrustPass:
	default:
		return fmt.Errorf("unknown thrust policy %q", l.Policy)
	}
	if l.Min > l.Max {
		return fmt.Errorf("thrust min %v exceeds max %v", l.Min, l.Max)
	}
	return nil
}

// Apply returns cmd adjusted to the limits, or an error if the command
// must be refused. Non-thrust commands pass unchanged.
func (l ThrustLimits) Apply(cmd protocol.Command) (protocol.Command, error) {
	cmd = protocol.Normalize(cmd)
	st, ok := cmd.(protocol.SetThrust)
	if !ok || l.Policy == ThrustPass {
		return cmd, nil
	}

	v := float64(st.Thrust)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("thrust %v is not finite", st.Thrust)
	}
	if st.Thrust >= l.Min && st.Thrust <= l.Max {
		return cmd, nil
	}

	if l.Policy == ThrustReject {
		return nil, fmt.Errorf("thrust %v outside [%v, %v]", st.Thrust, l.Min, l.Max)
	}
	return protocol.SetThrust{Thrust: min(max(st.Thrust, l.Min), l.Max)}, nil
}
