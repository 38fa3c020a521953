package main

import (
	"context"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rowing.report/internal/api"
	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/rowing/simulate"
	"github.com/banshee-data/rowing.report/internal/source"
	"github.com/banshee-data/rowing.report/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

// writeTrace stores n simulated Concept2 strokes as a replay trace.
func writeTrace(t *testing.T, n int) (string, int) {
	t.Helper()
	s := config.Concept2RowErg()
	theta := 2 * math.Pi / float64(s.NumOfImpulsesPerRevolution)
	omega := 40.0
	var deltas []float64
	for i := 0; i < n; i++ {
		d, end := simulate.Accelerate(theta, omega, 40, 60)
		deltas = append(deltas, d...)
		c, end := simulate.Coast(theta, end, s.DragFactor*1e-6, s.FlywheelInertia, 150)
		deltas = append(deltas, c...)
		omega = end
	}

	path := filepath.Join(t.TempDir(), "strokes.trace")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, source.WriteTrace(f, deltas, "simulated concept2 strokes"))
	return path, len(deltas)
}

func TestApp_ReplayRecordsSession(t *testing.T) {
	trace, impulses := writeTrace(t, 6)
	dbPath := filepath.Join(t.TempDir(), "rowing.db")
	cfg := &config.Config{
		Profile:   ptr("concept2_rowerg"),
		Source:    ptr(config.SourceReplay),
		TraceFile: ptr(trace),
		DBPath:    ptr(dbPath),
	}
	require.NoError(t, cfg.Validate())

	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx, "") }()

	require.Eventually(t, func() bool {
		return a.runner.Stats().Impulses == uint64(impulses)
	}, 10*time.Second, 5*time.Millisecond)

	h := a.handler()
	rec := testutil.Serve(h, testutil.LoopbackRequest(http.MethodGet, "/api/summary?units=mps", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	sum := testutil.DecodeJSON[api.Summary](t, rec)
	assert.GreaterOrEqual(t, sum.Strokes, 2)
	assert.Greater(t, sum.Distance, 0.0)

	rec = testutil.Serve(h, testutil.LoopbackRequest(http.MethodGet, "/metrics", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "rowing_impulses_total")

	rec = testutil.Serve(h, testutil.LoopbackRequest(http.MethodGet, "/debug/sessions", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return")
	}

	sessions, err := a.db.Sessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.NotNil(t, sessions[0].EndedAt, "closing the recorder ends the session")
	strokes, err := a.db.Strokes(sessions[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, strokes)
	assert.Equal(t, len(strokes)+1, sessions[0].TotalStrokes)
}

func TestApp_StartupErrors(t *testing.T) {
	trace, _ := writeTrace(t, 2)

	tests := []struct {
		name string
		cfg  *config.Config
		want string
	}{
		{
			name: "missing trace",
			cfg: &config.Config{
				Source:    ptr(config.SourceReplay),
				TraceFile: ptr(filepath.Join(t.TempDir(), "missing.trace")),
				DBPath:    ptr(""),
			},
			want: "missing.trace",
		},
		{
			name: "unknown source",
			cfg:  &config.Config{Source: ptr("carrier-pigeon"), DBPath: ptr("")},
			want: `unknown source "carrier-pigeon"`,
		},
		{
			name: "database after source",
			cfg: &config.Config{
				Source:    ptr(config.SourceReplay),
				TraceFile: ptr(trace),
				DBPath:    ptr(filepath.Join(t.TempDir(), "no-such-dir", "rowing.db")),
			},
			want: "failed to open database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = newApp(tt.cfg) })
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
