package rower

import "github.com/banshee-data/rowing.report/internal/rowing/flywheel"

// Snapshot is a value copy of the engine's query surface after an impulse.
// It holds no references into the engine and can be handed to other
// goroutines. Curves are not included; use Rower.Curves.
type Snapshot struct {
	State           State `json:"state"`
	StateChanged    bool  `json:"state_changed"`
	StrokeCompleted bool  `json:"stroke_completed"`

	TotalNumberOfStrokes          int     `json:"total_number_of_strokes"`
	TotalMovingTimeSinceStart     float64 `json:"total_moving_time"`
	TotalLinearDistanceSinceStart float64 `json:"total_linear_distance"`
	DriveLastStartTime            float64 `json:"drive_last_start_time"`

	CycleDuration       Metric `json:"cycle_duration"`
	CycleLinearDistance Metric `json:"cycle_linear_distance"`
	CycleLinearVelocity Metric `json:"cycle_linear_velocity"`
	CyclePower          Metric `json:"cycle_power"`

	DriveDuration           Metric `json:"drive_duration"`
	DriveLinearDistance     Metric `json:"drive_linear_distance"`
	DriveLength             Metric `json:"drive_length"`
	DriveAverageHandleForce Metric `json:"drive_average_handle_force"`
	DrivePeakHandleForce    Metric `json:"drive_peak_handle_force"`

	RecoveryDuration       Metric `json:"recovery_duration"`
	RecoveryLinearDistance Metric `json:"recovery_linear_distance"`
	RecoveryDragFactor     Metric `json:"recovery_drag_factor"`

	InstantHandlePower  float64 `json:"instant_handle_power"`
	InvariantViolations int     `json:"invariant_violations"`

	Flywheel flywheel.State `json:"flywheel"`
}

// Snapshot captures the current query surface.
func (r *Rower) Snapshot() Snapshot {
	return Snapshot{
		State:           r.state,
		StateChanged:    r.stateChanged,
		StrokeCompleted: r.strokeCompleted,

		TotalNumberOfStrokes:          r.totalNumberOfStrokes,
		TotalMovingTimeSinceStart:     r.TotalMovingTimeSinceStart(),
		TotalLinearDistanceSinceStart: r.TotalLinearDistanceSinceStart(),
		DriveLastStartTime:            r.drivePhaseStartTime,

		CycleDuration:       r.CycleDuration(),
		CycleLinearDistance: r.CycleLinearDistance(),
		CycleLinearVelocity: r.CycleLinearVelocity(),
		CyclePower:          r.CyclePower(),

		DriveDuration:           r.DriveDuration(),
		DriveLinearDistance:     r.DriveLinearDistance(),
		DriveLength:             r.DriveLength(),
		DriveAverageHandleForce: r.DriveAverageHandleForce(),
		DrivePeakHandleForce:    r.DrivePeakHandleForce(),

		RecoveryDuration:       r.RecoveryDuration(),
		RecoveryLinearDistance: r.RecoveryLinearDistance(),
		RecoveryDragFactor:     r.RecoveryDragFactor(),

		InstantHandlePower:  r.InstantHandlePower(),
		InvariantViolations: r.invariantViolations,

		Flywheel: r.flywheel.State(),
	}
}
