package config

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidSettings is wrapped by every settings validation failure.
var ErrInvalidSettings = errors.New("invalid rower settings")

// RowerSettings is the resolved, immutable machine description consumed by
// the rowing engine. It is passed by value; the engine keeps its own copy and
// re-applies it on Reset.
type RowerSettings struct {
	// Impulse geometry
	NumOfImpulsesPerRevolution int
	SprocketRadius             float64 // cm
	FlywheelInertia            float64 // kg·m²
	MagicConstant              float64

	// Timing thresholds, seconds
	MinimumTimeBetweenImpulses   float64
	MaximumTimeBetweenImpulses   float64
	MinimumDriveTime             float64
	MinimumRecoveryTime          float64
	MaximumStrokeTimeBeforePause float64

	// Regression windows
	FlankLength int
	Smoothing   int

	// Drag calibration. DragFactor is in the conventional ×1e6 units
	// (e.g. 110 for a Concept2 on damper 4).
	DragFactor           float64
	AutoAdjustDragFactor bool
	MinimumDragQuality   float64
	DragFactorSmoothing  int

	// Stroke detection
	MinimumForceBeforeStroke      float64 // N at the handle
	MinimumStrokeQuality          float64
	MinimumRecoverySlope          float64
	AutoAdjustRecoverySlope       bool
	AutoAdjustRecoverySlopeMargin float64
}

// DefaultProfile describes a generic single magnet air rower. It is the
// baseline when no profile is named.
func DefaultProfile() RowerSettings {
	return RowerSettings{
		NumOfImpulsesPerRevolution: 1,
		SprocketRadius:             3.0,
		FlywheelInertia:            0.5,
		MagicConstant:              2.8,

		MinimumTimeBetweenImpulses:   0.014,
		MaximumTimeBetweenImpulses:   0.5,
		MinimumDriveTime:             0.3,
		MinimumRecoveryTime:          0.8,
		MaximumStrokeTimeBeforePause: 6,

		FlankLength: 3,
		Smoothing:   1,

		DragFactor:           1500,
		AutoAdjustDragFactor: false,
		MinimumDragQuality:   0.83,
		DragFactorSmoothing:  5,

		MinimumForceBeforeStroke:      10,
		MinimumStrokeQuality:          0.6,
		MinimumRecoverySlope:          0,
		AutoAdjustRecoverySlope:       false,
		AutoAdjustRecoverySlopeMargin: 0.15,
	}
}

// Concept2RowErg describes a Concept2 RowErg (model D/E) read through its
// six-magnet pickup.
func Concept2RowErg() RowerSettings {
	return RowerSettings{
		NumOfImpulsesPerRevolution: 6,
		SprocketRadius:             1.4,
		FlywheelInertia:            0.10138,
		MagicConstant:              2.8,

		MinimumTimeBetweenImpulses:   0.005,
		MaximumTimeBetweenImpulses:   0.02,
		MinimumDriveTime:             0.4,
		MinimumRecoveryTime:          0.9,
		MaximumStrokeTimeBeforePause: 6,

		FlankLength: 12,
		Smoothing:   1,

		DragFactor:           110,
		AutoAdjustDragFactor: true,
		MinimumDragQuality:   0.83,
		DragFactorSmoothing:  3,

		MinimumForceBeforeStroke:      11,
		MinimumStrokeQuality:          0.34,
		MinimumRecoverySlope:          0.0007,
		AutoAdjustRecoverySlope:       true,
		AutoAdjustRecoverySlopeMargin: 0.1,
	}
}

var profiles = map[string]func() RowerSettings{
	"default":         DefaultProfile,
	"concept2_rowerg": Concept2RowErg,
}

// ProfileNames returns the known profile names in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile returns the named machine profile.
func Profile(name string) (RowerSettings, error) {
	p, ok := profiles[name]
	if !ok {
		return RowerSettings{}, fmt.Errorf("%w: unknown profile %q (known: %v)", ErrInvalidSettings, name, ProfileNames())
	}
	return p(), nil
}

// Validate checks that the settings describe a usable machine.
func (s RowerSettings) Validate() error {
	switch {
	case s.NumOfImpulsesPerRevolution < 1:
		return fmt.Errorf("%w: num_of_impulses_per_revolution must be at least 1, got %d", ErrInvalidSettings, s.NumOfImpulsesPerRevolution)
	case s.SprocketRadius <= 0:
		return fmt.Errorf("%w: sprocket_radius must be positive, got %f", ErrInvalidSettings, s.SprocketRadius)
	case s.FlywheelInertia <= 0:
		return fmt.Errorf("%w: flywheel_inertia must be positive, got %f", ErrInvalidSettings, s.FlywheelInertia)
	case s.MagicConstant <= 0:
		return fmt.Errorf("%w: magic_constant must be positive, got %f", ErrInvalidSettings, s.MagicConstant)
	case s.MinimumTimeBetweenImpulses <= 0:
		return fmt.Errorf("%w: minimum_time_between_impulses must be positive, got %f", ErrInvalidSettings, s.MinimumTimeBetweenImpulses)
	case s.MaximumTimeBetweenImpulses <= s.MinimumTimeBetweenImpulses:
		return fmt.Errorf("%w: maximum_time_between_impulses (%f) must exceed minimum_time_between_impulses (%f)",
			ErrInvalidSettings, s.MaximumTimeBetweenImpulses, s.MinimumTimeBetweenImpulses)
	case s.MinimumDriveTime < 0:
		return fmt.Errorf("%w: minimum_drive_time must be non-negative, got %f", ErrInvalidSettings, s.MinimumDriveTime)
	case s.MinimumRecoveryTime < 0:
		return fmt.Errorf("%w: minimum_recovery_time must be non-negative, got %f", ErrInvalidSettings, s.MinimumRecoveryTime)
	case s.MaximumStrokeTimeBeforePause <= s.MaximumTimeBetweenImpulses:
		return fmt.Errorf("%w: maximum_stroke_time_before_pause (%f) must exceed maximum_time_between_impulses (%f)",
			ErrInvalidSettings, s.MaximumStrokeTimeBeforePause, s.MaximumTimeBetweenImpulses)
	case s.FlankLength < 3:
		return fmt.Errorf("%w: flank_length must be at least 3, got %d", ErrInvalidSettings, s.FlankLength)
	case s.Smoothing < 1:
		return fmt.Errorf("%w: smoothing must be at least 1, got %d", ErrInvalidSettings, s.Smoothing)
	case s.DragFactor <= 0:
		return fmt.Errorf("%w: drag_factor must be positive, got %f", ErrInvalidSettings, s.DragFactor)
	case s.MinimumDragQuality < 0 || s.MinimumDragQuality > 1:
		return fmt.Errorf("%w: minimum_drag_quality must be between 0 and 1, got %f", ErrInvalidSettings, s.MinimumDragQuality)
	case s.DragFactorSmoothing < 1:
		return fmt.Errorf("%w: drag_factor_smoothing must be at least 1, got %d", ErrInvalidSettings, s.DragFactorSmoothing)
	case s.MinimumForceBeforeStroke < 0:
		return fmt.Errorf("%w: minimum_force_before_stroke must be non-negative, got %f", ErrInvalidSettings, s.MinimumForceBeforeStroke)
	case s.MinimumStrokeQuality < 0 || s.MinimumStrokeQuality > 1:
		return fmt.Errorf("%w: minimum_stroke_quality must be between 0 and 1, got %f", ErrInvalidSettings, s.MinimumStrokeQuality)
	case s.AutoAdjustRecoverySlopeMargin < 0 || s.AutoAdjustRecoverySlopeMargin >= 1:
		return fmt.Errorf("%w: auto_adjust_recovery_slope_margin must be in [0, 1), got %f", ErrInvalidSettings, s.AutoAdjustRecoverySlopeMargin)
	}
	return nil
}
