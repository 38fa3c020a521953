package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/db"
	"github.com/banshee-data/rowing.report/internal/publish"
	"github.com/banshee-data/rowing.report/internal/rowing/rower"
	"github.com/banshee-data/rowing.report/internal/serialmux"
	"github.com/banshee-data/rowing.report/internal/session"
	"github.com/banshee-data/rowing.report/internal/source"
	"github.com/banshee-data/rowing.report/internal/testutil"
)

type fakeEngine struct {
	mu         sync.Mutex
	snap       rower.Snapshot
	curves     *rower.Curves
	commands   []session.Command
	controlErr error
}

func (f *fakeEngine) Snapshot() rower.Snapshot { return f.snap }

func (f *fakeEngine) Curves() (rower.Curves, bool) {
	if f.curves == nil {
		return rower.Curves{}, false
	}
	return *f.curves, true
}

func (f *fakeEngine) Settings() config.RowerSettings { return config.Concept2RowErg() }

func (f *fakeEngine) Stats() session.Stats {
	return session.Stats{Impulses: 4200, Stalls: 1, SinkDrops: map[string]uint64{"mqtt": 2}}
}

func (f *fakeEngine) Control(ctx context.Context, cmd session.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.controlErr != nil {
		return f.controlErr
	}
	f.commands = append(f.commands, cmd)
	return nil
}

func (f *fakeEngine) sent() []session.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Command(nil), f.commands...)
}

func present(v float64) rower.Metric { return rower.Metric{Value: v, Valid: true} }

// rowing returns an engine mid-session holding a 1:52.0 split at 24 spm.
func rowing() *fakeEngine {
	return &fakeEngine{snap: rower.Snapshot{
		State:                         rower.Recovery,
		TotalNumberOfStrokes:          42,
		TotalLinearDistanceSinceStart: 1234.5,
		TotalMovingTimeSinceStart:     305.4,
		CycleDuration:                 present(2.5),
		CycleLinearVelocity:           present(500.0 / 112),
		CyclePower:                    present(250),
		RecoveryDragFactor:            present(118),
	}}
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	return testutil.Serve(h, testutil.LoopbackRequest(http.MethodGet, target, nil))
}

func post(h http.Handler, target string) *httptest.ResponseRecorder {
	return testutil.Serve(h, testutil.LoopbackRequest(http.MethodPost, target, nil))
}

func TestSnapshot(t *testing.T) {
	mux := NewServer(rowing(), Options{}).ServeMux()

	rec := get(mux, "/api/snapshot")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	snap := testutil.DecodeJSON[rower.Snapshot](t, rec)
	assert.Equal(t, rower.Recovery, snap.State)
	assert.Equal(t, 42, snap.TotalNumberOfStrokes)
	assert.Equal(t, present(250), snap.CyclePower)
	assert.False(t, snap.DriveDuration.Valid)

	testutil.AssertStatusCode(t, post(mux, "/api/snapshot").Code, http.StatusMethodNotAllowed)
}

func TestSummary(t *testing.T) {
	mux := NewServer(rowing(), Options{Units: "not-a-unit"}).ServeMux()

	rec := get(mux, "/api/summary")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	sum := testutil.DecodeJSON[Summary](t, rec)
	assert.Equal(t, "Recovery", sum.State)
	assert.Equal(t, "split", sum.Units, "invalid default falls back to split")
	assert.Equal(t, "1:52.0", sum.Split)
	assert.Equal(t, "5:05", sum.Elapsed)
	assert.InDelta(t, 112.0, sum.Speed.Value, 1e-9)
	assert.InDelta(t, 24.0, sum.StrokeRate.Value, 1e-9)
	assert.Equal(t, present(118), sum.DragFactor)

	rec = get(mux, "/api/summary?units=kmph")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	sum = testutil.DecodeJSON[Summary](t, rec)
	assert.InDelta(t, 500.0/112*3.6, sum.Speed.Value, 1e-9)

	rec = get(mux, "/api/summary?units=knots")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	assert.Contains(t, rec.Body.String(), "mps, kmph, mph, split")
}

func TestSummarize_Idle(t *testing.T) {
	sum := Summarize(rower.Snapshot{State: rower.WaitingForDrive}, "mps")
	assert.Equal(t, "WaitingForDrive", sum.State)
	assert.Equal(t, "0:00", sum.Elapsed)
	assert.Empty(t, sum.Split)
	assert.False(t, sum.Speed.Valid)
	assert.False(t, sum.StrokeRate.Valid)
}

func TestCurves(t *testing.T) {
	engine := rowing()
	mux := NewServer(engine, Options{}).ServeMux()

	testutil.AssertStatusCode(t, get(mux, "/api/curves").Code, http.StatusNotFound)

	engine.curves = &rower.Curves{HandleForce: []float64{120, 480, 390}}
	rec := get(mux, "/api/curves")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	curves := testutil.DecodeJSON[rower.Curves](t, rec)
	assert.Equal(t, []float64{120, 480, 390}, curves.HandleForce)
}

func TestSettingsAndStats(t *testing.T) {
	mux := NewServer(rowing(), Options{
		SourceStats: func() source.Stats { return source.Stats{Delivered: 4200, Rejected: 7} },
	}).ServeMux()

	rec := get(mux, "/api/settings")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	settings := testutil.DecodeJSON[config.RowerSettings](t, rec)
	assert.Equal(t, 6, settings.NumOfImpulsesPerRevolution)

	rec = get(mux, "/api/stats")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	stats := testutil.DecodeJSON[Stats](t, rec)
	assert.Equal(t, uint64(4200), stats.Session.Impulses)
	assert.Equal(t, uint64(2), stats.Session.SinkDrops["mqtt"])
	require.NotNil(t, stats.Source)
	assert.Equal(t, uint64(7), stats.Source.Rejected)

	// Without a source the field is omitted.
	rec = get(NewServer(rowing(), Options{}).ServeMux(), "/api/stats")
	assert.NotContains(t, rec.Body.String(), `"source"`)
}

func TestControl(t *testing.T) {
	engine := rowing()
	mux := NewServer(engine, Options{}).ServeMux()

	rec := post(mux, "/api/control/stop")
	testutil.AssertStatusCode(t, rec.Code, http.StatusAccepted)
	assert.JSONEq(t, `{"command":"stop"}`, rec.Body.String())
	testutil.AssertStatusCode(t, post(mux, "/api/control/Start").Code, http.StatusAccepted)
	assert.Equal(t, []session.Command{session.Stop, session.Start}, engine.sent())

	testutil.AssertStatusCode(t, post(mux, "/api/control/row").Code, http.StatusBadRequest)
	testutil.AssertStatusCode(t, get(mux, "/api/control/stop").Code, http.StatusMethodNotAllowed)

	engine.controlErr = context.DeadlineExceeded
	testutil.AssertStatusCode(t, post(mux, "/api/control/reset").Code, http.StatusServiceUnavailable)
}

func TestControl_Runner(t *testing.T) {
	r, err := rower.New(config.Concept2RowErg())
	require.NoError(t, err)
	runner := session.NewRunner(r, session.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	mux := NewServer(runner, Options{}).ServeMux()
	testutil.AssertStatusCode(t, post(mux, "/api/control/stop").Code, http.StatusAccepted)
	require.Eventually(t, func() bool {
		return runner.Snapshot().State == rower.Stopped
	}, 5*time.Second, time.Millisecond)

	testutil.AssertStatusCode(t, post(mux, "/api/control/start").Code, http.StatusAccepted)
	require.Eventually(t, func() bool {
		return runner.Snapshot().State == rower.WaitingForDrive
	}, 5*time.Second, time.Millisecond)
}

func TestSendCommand(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	mux := NewServer(rowing(), Options{Serial: serialmux.NewSerialMux(port)}).ServeMux()

	form := url.Values{"command": {"D=3000"}}
	req := testutil.LoopbackRequest(http.MethodPost, "/api/command", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := testutil.Serve(mux, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "D=3000\n", port.Written())

	testutil.AssertStatusCode(t, post(mux, "/api/command").Code, http.StatusBadRequest)

	// Not mounted without a serial counter.
	testutil.AssertStatusCode(t, post(NewServer(rowing(), Options{}).ServeMux(), "/api/command").Code, http.StatusNotFound)
}

func TestSessions(t *testing.T) {
	database, id := recordedSession(t)
	mux := NewServer(rowing(), Options{DB: database}).ServeMux()

	rec := get(mux, "/api/sessions?limit=5")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	sessions := testutil.DecodeJSON[[]db.Session](t, rec)
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)
	assert.True(t, fixture.startedAt.Equal(sessions[0].StartedAt))
	assert.Equal(t, recordedStrokes+1, sessions[0].TotalStrokes)
	testutil.AssertStatusCode(t, get(mux, "/api/sessions?limit=0").Code, http.StatusBadRequest)

	rec = get(mux, "/api/sessions/"+id+"/strokes")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	strokes := testutil.DecodeJSON[[]db.Stroke](t, rec)
	require.Len(t, strokes, recordedStrokes)
	for i, st := range strokes {
		assert.Equal(t, i+1, st.StrokeNumber)
	}
	assert.Equal(t, present(250), strokes[0].CyclePower)

	testutil.AssertStatusCode(t, get(mux, "/api/sessions/missing/strokes").Code, http.StatusNotFound)
}

func TestMetricsMounted(t *testing.T) {
	metrics := publish.NewMetrics(publish.Counters{Impulses: func() float64 { return 12 }})
	mux := NewServer(rowing(), Options{Metrics: metrics.Handler()}).ServeMux()

	rec := get(mux, "/metrics")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "rowing_impulses_total 12")
}

func TestLoggingMiddleware(t *testing.T) {
	var diag testutil.SyncBuffer
	SetLogWriters(nil, &diag, nil)
	defer SetLogWriters(nil, nil, nil)

	h := LoggingMiddleware(NewServer(rowing(), Options{}).ServeMux())
	get(h, "/api/curves")

	out := diag.String()
	assert.Contains(t, out, "[api] ")
	assert.Contains(t, out, "/api/curves")
	assert.Contains(t, out, colorBoldRed+"404"+colorReset)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"202"+colorReset, statusCodeColor(http.StatusAccepted))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(http.StatusNotModified))
	assert.Equal(t, colorBoldRed+"503"+colorReset, statusCodeColor(http.StatusServiceUnavailable))
	assert.Equal(t, "101", statusCodeColor(http.StatusSwitchingProtocols))
}
