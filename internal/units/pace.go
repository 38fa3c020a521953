package units

import (
	"fmt"
	"math"
	"time"
)

// SplitDistance is the distance a split is quoted over, in meters.
const SplitDistance = 500.0

// powerConstant relates power to pace on air rowers: P = 2.80 / pace³, pace
// in seconds per meter.
const powerConstant = 2.80

// Split returns the time to cover SplitDistance at speedMPS. ok is false for
// a stationary boat.
func Split(speedMPS float64) (d time.Duration, ok bool) {
	if speedMPS <= 0 || math.IsNaN(speedMPS) || math.IsInf(speedMPS, 0) {
		return 0, false
	}
	return time.Duration(SplitDistance / speedMPS * float64(time.Second)), true
}

// FormatSplit renders a split as m:ss.t, for example "1:52.3".
func FormatSplit(d time.Duration) string {
	tenths := int64(math.Round(d.Seconds() * 10))
	return fmt.Sprintf("%d:%02d.%d", tenths/600, tenths/10%60, tenths%10)
}

// FormatDuration renders an elapsed time as h:mm:ss or m:ss.
func FormatDuration(d time.Duration) string {
	s := int64(d.Round(time.Second).Seconds())
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// WattsForSplit returns the power needed to hold a split.
func WattsForSplit(split time.Duration) float64 {
	if split <= 0 {
		return 0
	}
	pace := split.Seconds() / SplitDistance
	return powerConstant / (pace * pace * pace)
}

// SplitForWatts returns the split a power holds.
func SplitForWatts(watts float64) (time.Duration, bool) {
	if watts <= 0 {
		return 0, false
	}
	pace := math.Cbrt(powerConstant / watts)
	return time.Duration(pace * SplitDistance * float64(time.Second)), true
}

// StrokeRate converts a cycle duration in seconds to strokes per minute.
func StrokeRate(cycleSeconds float64) float64 {
	if cycleSeconds <= 0 {
		return 0
	}
	return 60 / cycleSeconds
}
