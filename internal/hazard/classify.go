// Package hazard classifies helmet sensor samples as safe or dangerous.
package hazard

import "math"

const (
	// GasThreshold is the MQ-2 reading (ppm) above which a gas leak is reported.
	GasThreshold = 400.0
	// GyroThreshold is the gyro magnitude (g) above which a fall is reported.
	GyroThreshold = 2.5
)

// Danger labels. Combined takes precedence over either single label.
const (
	LabelGasAndFall = "Gas leak + Fall detected"
	LabelGas        = "Gas leak detected"
	LabelFall       = "Fall detected"
)

// Classification is the result of evaluating one sample.
type Classification struct {
	GasAlert      bool
	GyroAlert     bool
	GyroMagnitude float64
	// DangerType is nil when the sample is safe.
	DangerType *string
}

// IsDanger reports whether any rule fired.
func (c Classification) IsDanger() bool {
	return c.GasAlert || c.GyroAlert
}

// Status returns "danger" or "safe".
func (c Classification) Status() string {
	if c.IsDanger() {
		return "danger"
	}
	return "safe"
}

// GyroMagnitude is the Euclidean norm of the three gyro axes.
func GyroMagnitude(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}

// Classify evaluates the gas and fall rules. It has no side effects.
func Classify(gas, gyroX, gyroY, gyroZ float64) Classification {
	mag := GyroMagnitude(gyroX, gyroY, gyroZ)
	c := Classification{
		GasAlert:      gas > GasThreshold,
		GyroAlert:     mag > GyroThreshold,
		GyroMagnitude: mag,
	}

	var label string
	switch {
	case c.GasAlert && c.GyroAlert:
		label = LabelGasAndFall
	case c.GasAlert:
		label = LabelGas
	case c.GyroAlert:
		label = LabelFall
	default:
		return c
	}
	c.DangerType = &label
	return c
}
