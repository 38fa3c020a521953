package publish

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/rowing.report/internal/rowing/rower"
	"github.com/banshee-data/rowing.report/internal/session"
)

const metricPrefix = "rowing_"

// Counters read monotonically increasing totals owned elsewhere.
type Counters struct {
	Impulses            func() float64
	DroppedImpulses     func() float64
	RejectedImpulses    func() float64
	InvariantViolations func() float64
	Stalls              func() float64
}

// Metrics is a session sink keeping Prometheus gauges current. It registers
// into its own registry so tests and multiple runners do not collide.
type Metrics struct {
	registry *prometheus.Registry

	state         *prometheus.GaugeVec
	strokes       prometheus.Gauge
	distance      prometheus.Gauge
	movingTime    prometheus.Gauge
	dragFactor    prometheus.Gauge
	power         prometheus.Gauge
	strokeRate    prometheus.Gauge
	driveDuration prometheus.Gauge
	peakForce     prometheus.Gauge
	updates       *prometheus.CounterVec
}

// NewMetrics builds the collector. Nil counter funcs are skipped.
func NewMetrics(c Counters) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stroke_state",
				Help: "1 for the current stroke phase, 0 otherwise",
			},
			[]string{"state"},
		),
		strokes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "strokes",
			Help: "Strokes since the session started",
		}),
		distance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "distance_meters",
			Help: "Linear distance since the session started",
		}),
		movingTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "moving_time_seconds",
			Help: "Time the flywheel has been spinning since the session started",
		}),
		dragFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "drag_factor",
			Help: "Calibrated drag factor (x1e6), once reliable",
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "cycle_power_watts",
			Help: "Average power of the last credible stroke cycle",
		}),
		strokeRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "stroke_rate_spm",
			Help: "Strokes per minute from the last credible cycle duration",
		}),
		driveDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "drive_duration_seconds",
			Help: "Duration of the last credible drive",
		}),
		peakForce: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "drive_peak_force_newtons",
			Help: "Peak handle force of the last credible drive",
		}),
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "updates_total",
				Help: "Session updates seen by event",
			},
			[]string{"event"},
		),
	}
	m.registry.MustRegister(m.state, m.strokes, m.distance, m.movingTime, m.dragFactor,
		m.power, m.strokeRate, m.driveDuration, m.peakForce, m.updates)

	counterFunc := func(name, help string, f func() float64) {
		if f == nil {
			return
		}
		m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: metricPrefix + name,
			Help: help,
		}, f))
	}
	counterFunc("impulses_total", "Impulses processed by the engine", c.Impulses)
	counterFunc("impulses_dropped_total", "Impulses dropped because the engine fell behind", c.DroppedImpulses)
	counterFunc("impulses_rejected_total", "Sensor edges rejected as bounce or unreadable input", c.RejectedImpulses)
	counterFunc("invariant_violations_total", "Stroke state machine invariant violations", c.InvariantViolations)
	counterFunc("stalls_total", "Strokes paused because impulses stopped", c.Stalls)

	for _, s := range []rower.State{rower.WaitingForDrive, rower.Drive, rower.Recovery, rower.Stopped} {
		m.state.WithLabelValues(s.String()).Set(0)
	}
	return m
}

// Registry returns the registry the collector registers into.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Name() string { return "prometheus" }

func (m *Metrics) Consume(u session.Update) error {
	m.updates.WithLabelValues(string(u.Event)).Inc()

	for _, s := range []rower.State{rower.WaitingForDrive, rower.Drive, rower.Recovery, rower.Stopped} {
		v := 0.0
		if s == u.State {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
	m.strokes.Set(float64(u.TotalNumberOfStrokes))
	m.distance.Set(u.TotalLinearDistanceSinceStart)
	m.movingTime.Set(u.TotalMovingTimeSinceStart)

	setIf := func(g prometheus.Gauge, metric rower.Metric) {
		if metric.Valid {
			g.Set(metric.Value)
		}
	}
	setIf(m.dragFactor, u.RecoveryDragFactor)
	setIf(m.power, u.CyclePower)
	setIf(m.driveDuration, u.DriveDuration)
	setIf(m.peakForce, u.DrivePeakHandleForce)
	if d, ok := u.CycleDuration.Get(); ok && d > 0 {
		m.strokeRate.Set(60 / d)
	}
	return nil
}

func (m *Metrics) Close() error { return nil }
