// Package rowing groups the rowing physics engine.
//
// The engine is split into three layers, leaves first:
//
//   - regression: robust (Theil–Sen style) curve fitting over bounded windows.
//   - flywheel: impulse deltas to angular kinematics, drive/recovery
//     classification and drag factor calibration.
//   - rower: the stroke phase state machine and linear rowing metrics.
//
// Dependency rule: regression depends on nothing in this tree, flywheel may
// depend on regression, rower may depend on flywheel. No I/O happens inside
// any of them; callers feed impulses synchronously from a single goroutine.
//
// The simulate package is a test and tooling aid that produces physically
// plausible impulse traces. It is never imported by the engine itself.
package rowing
