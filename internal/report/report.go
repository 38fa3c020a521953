// Package report analyses recorded impulse traces offline: it replays a
// trace through the engine and tabulates, summarises and plots the strokes.
package report

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/rowing/rower"
	"github.com/banshee-data/rowing.report/internal/units"
)

// Stroke is the engine state at one stroke completion.
type Stroke struct {
	Number   int
	At       float64 // s of moving time
	Snapshot rower.Snapshot
	Curves   *rower.Curves
}

// Report is the result of replaying one trace.
type Report struct {
	Impulses            int
	InvariantViolations int
	Strokes             []Stroke
	Final               rower.Snapshot
}

// Analyze replays deltas through a fresh engine. Invariant violations are
// counted and skipped, as the live runner does.
func Analyze(settings config.RowerSettings, deltas []float64) (Report, error) {
	r, err := rower.New(settings)
	if err != nil {
		return Report{}, err
	}

	var rep Report
	for _, dt := range deltas {
		if err := r.HandleRotationImpulse(dt); err != nil {
			if errors.Is(err, rower.ErrInvariantViolation) {
				rep.InvariantViolations++
				continue
			}
			return rep, err
		}
		rep.Impulses++

		snap := r.Snapshot()
		if !snap.StrokeCompleted {
			continue
		}
		st := Stroke{
			Number:   snap.TotalNumberOfStrokes - 1,
			At:       snap.TotalMovingTimeSinceStart,
			Snapshot: snap,
		}
		if c, ok := r.Curves(); ok {
			st.Curves = &c
		}
		rep.Strokes = append(rep.Strokes, st)
	}
	rep.Final = r.Snapshot()
	return rep, nil
}

// Summary aggregates the credible strokes of a report.
type Summary struct {
	Strokes        int
	Distance       float64 // m
	MovingTime     time.Duration
	MeanPower      float64 // W
	PowerStdDev    float64 // W
	MeanStrokeRate float64 // spm
	DragFactor     rower.Metric
}

// Summarize computes totals and per-stroke statistics.
func (rep Report) Summarize() Summary {
	sum := Summary{
		Strokes:    rep.Final.TotalNumberOfStrokes,
		Distance:   rep.Final.TotalLinearDistanceSinceStart,
		MovingTime: seconds(rep.Final.TotalMovingTimeSinceStart),
		DragFactor: rep.Final.RecoveryDragFactor,
	}

	var power, rate []float64
	for _, st := range rep.Strokes {
		if p, ok := st.Snapshot.CyclePower.Get(); ok {
			power = append(power, p)
		}
		if d, ok := st.Snapshot.CycleDuration.Get(); ok && d > 0 {
			rate = append(rate, units.StrokeRate(d))
		}
	}
	if len(power) > 0 {
		sum.MeanPower, sum.PowerStdDev = stat.MeanStdDev(power, nil)
	}
	if len(rate) > 0 {
		sum.MeanStrokeRate = stat.Mean(rate, nil)
	}
	return sum
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

func metric(m rower.Metric, format string) string {
	if v, ok := m.Get(); ok {
		return fmt.Sprintf(format, v)
	}
	return "-"
}

// WriteTable prints one row per completed stroke with speeds in unit.
func (rep Report) WriteTable(w io.Writer, unit string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "stroke\ttime\tdistance\tsplit\tspeed (%s)\tspm\tpower\tdrive\tpeak force\tdrag\t\n", unit)
	for _, st := range rep.Strokes {
		s := st.Snapshot
		split, speed := "-", "-"
		if v, ok := s.CycleLinearVelocity.Get(); ok {
			speed = fmt.Sprintf("%.2f", units.ConvertSpeed(v, unit))
			if d, ok := units.Split(v); ok {
				split = units.FormatSplit(d)
			}
		}
		spm := "-"
		if d, ok := s.CycleDuration.Get(); ok && d > 0 {
			spm = fmt.Sprintf("%.1f", units.StrokeRate(d))
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			st.Number,
			units.FormatDuration(seconds(st.At)),
			s.TotalLinearDistanceSinceStart,
			split, speed, spm,
			metric(s.CyclePower, "%.0f"),
			metric(s.DriveDuration, "%.2f"),
			metric(s.DrivePeakHandleForce, "%.0f"),
			metric(s.RecoveryDragFactor, "%.1f"),
		)
	}
	return tw.Flush()
}

// WriteSummary prints the session totals.
func (sum Summary) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "strokes:     %d\n", sum.Strokes)
	fmt.Fprintf(w, "distance:    %.1f m\n", sum.Distance)
	fmt.Fprintf(w, "moving time: %s\n", units.FormatDuration(sum.MovingTime))
	if sum.Distance > 0 && sum.MovingTime > 0 {
		if d, ok := units.Split(sum.Distance / sum.MovingTime.Seconds()); ok {
			fmt.Fprintf(w, "avg split:   %s /500m\n", units.FormatSplit(d))
		}
	}
	fmt.Fprintf(w, "avg power:   %.0f W (sd %.0f)\n", sum.MeanPower, sum.PowerStdDev)
	fmt.Fprintf(w, "avg rate:    %.1f spm\n", sum.MeanStrokeRate)
	fmt.Fprintf(w, "drag factor: %s\n", metric(sum.DragFactor, "%.1f"))
}
