// Package units provides shared constants and conversions for rowing speed
// and pace units.
package units

// Unit constants
const (
	MPS   = "mps"
	KMPH  = "kmph"
	MPH   = "mph"
	SPLIT = "split" // seconds per 500 m
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, KMPH, MPH, SPLIT}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, kmph, mph, split"
}

// ConvertSpeed converts a speed in meters per second to the target units.
// SPLIT is seconds per 500 m and is 0 for a stationary boat.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case KMPH:
		return speedMPS * 3.6
	case MPH:
		return speedMPS * 2.2369362920544
	case SPLIT:
		if speedMPS <= 0 {
			return 0
		}
		return SplitDistance / speedMPS
	default:
		return speedMPS
	}
}
