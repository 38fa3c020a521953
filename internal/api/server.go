// Package api serves the live engine, stored sessions and metrics over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/db"
	"github.com/banshee-data/rowing.report/internal/httputil"
	"github.com/banshee-data/rowing.report/internal/rowing/rower"
	"github.com/banshee-data/rowing.report/internal/serialmux"
	"github.com/banshee-data/rowing.report/internal/session"
	"github.com/banshee-data/rowing.report/internal/source"
	"github.com/banshee-data/rowing.report/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// controlTimeout bounds how long a control request waits for the engine
// loop to accept the command.
const controlTimeout = 2 * time.Second

// Engine is the part of session.Runner the API serves.
type Engine interface {
	Snapshot() rower.Snapshot
	Curves() (rower.Curves, bool)
	Settings() config.RowerSettings
	Stats() session.Stats
	Control(ctx context.Context, cmd session.Command) error
}

// Options are the optional collaborators of a Server. Routes whose
// collaborator is nil are not mounted.
type Options struct {
	DB          *db.DB
	Serial      serialmux.SerialMuxInterface
	SourceStats func() source.Stats
	Metrics     http.Handler
	Units       string // default display units for /api/summary
}

type Server struct {
	engine Engine
	opts   Options
}

func NewServer(engine Engine, opts Options) *Server {
	if !units.IsValid(opts.Units) {
		opts.Units = units.SPLIT
	}
	return &Server{engine: engine, opts: opts}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		diagf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/snapshot", s.showSnapshot)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/api/curves", s.showCurves)
	mux.HandleFunc("/api/settings", s.showSettings)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/control/", s.controlHandler)
	if s.opts.Serial != nil {
		mux.HandleFunc("/api/command", s.sendCommandHandler)
	}
	if s.opts.DB != nil {
		mux.HandleFunc("/api/sessions", s.listSessions)
		mux.HandleFunc("GET /api/sessions/{id}/strokes", s.listStrokes)
	}
	if s.opts.Metrics != nil {
		mux.Handle("/metrics", s.opts.Metrics)
	}
	return mux
}

func (s *Server) showSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.engine.Snapshot())
}

// Summary is the snapshot as a monitor would display it.
type Summary struct {
	State      string       `json:"state"`
	Strokes    int          `json:"strokes"`
	Distance   float64      `json:"distance"`
	Elapsed    string       `json:"elapsed"`
	Units      string       `json:"units"`
	Speed      rower.Metric `json:"speed"`
	Split      string       `json:"split,omitempty"`
	Power      rower.Metric `json:"power"`
	StrokeRate rower.Metric `json:"stroke_rate"`
	DragFactor rower.Metric `json:"drag_factor"`
}

// Summarize converts a snapshot to display units.
func Summarize(snap rower.Snapshot, unit string) Summary {
	sum := Summary{
		State:      snap.State.String(),
		Strokes:    snap.TotalNumberOfStrokes,
		Distance:   snap.TotalLinearDistanceSinceStart,
		Elapsed:    units.FormatDuration(time.Duration(snap.TotalMovingTimeSinceStart * float64(time.Second))),
		Units:      unit,
		Power:      snap.CyclePower,
		DragFactor: snap.RecoveryDragFactor,
	}
	if v, ok := snap.CycleLinearVelocity.Get(); ok {
		sum.Speed = rower.Metric{Value: units.ConvertSpeed(v, unit), Valid: true}
		if split, ok := units.Split(v); ok {
			sum.Split = units.FormatSplit(split)
		}
	}
	if d, ok := snap.CycleDuration.Get(); ok && d > 0 {
		sum.StrokeRate = rower.Metric{Value: units.StrokeRate(d), Valid: true}
	}
	return sum
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	unit := s.opts.Units
	if u := r.URL.Query().Get("units"); u != "" {
		if !units.IsValid(u) {
			httputil.BadRequest(w, fmt.Sprintf("invalid units %q, valid: %s", u, units.GetValidUnitsString()))
			return
		}
		unit = u
	}
	httputil.WriteJSONOK(w, Summarize(s.engine.Snapshot(), unit))
}

func (s *Server) showCurves(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	curves, ok := s.engine.Curves()
	if !ok {
		httputil.NotFound(w, "no drive recorded yet")
		return
	}
	httputil.WriteJSONOK(w, curves)
}

func (s *Server) showSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.engine.Settings())
}

// Stats combines the engine and impulse source counters.
type Stats struct {
	Session session.Stats `json:"session"`
	Source  *source.Stats `json:"source,omitempty"`
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	stats := Stats{Session: s.engine.Stats()}
	if s.opts.SourceStats != nil {
		src := s.opts.SourceStats()
		stats.Source = &src
	}
	httputil.WriteJSONOK(w, stats)
}

func (s *Server) controlHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	cmd, err := session.ParseCommand(strings.TrimPrefix(r.URL.Path, "/api/control/"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
	defer cancel()
	if err := s.engine.Control(ctx, cmd); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			httputil.ServiceUnavailable(w, "engine is not accepting commands")
			return
		}
		opsf("control %s: %v", cmd, err)
		httputil.InternalServerError(w, err.Error())
		return
	}
	diagf("control %s accepted", cmd)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"command": cmd.String()})
}

// sendCommandHandler forwards a raw command line to the impulse counter.
func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	command := r.FormValue("command")
	if command == "" {
		httputil.BadRequest(w, "missing 'command' parameter")
		return
	}

	if err := s.opts.Serial.SendCommand(command); err != nil {
		opsf("send %q to counter: %v", command, err)
		httputil.InternalServerError(w, "Failed to send command")
		return
	}
	io.WriteString(w, "Command sent successfully")
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}

	sessions, err := s.opts.DB.Sessions(limit)
	if err != nil {
		opsf("list sessions: %v", err)
		httputil.InternalServerError(w, "Failed to retrieve sessions")
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) listStrokes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	strokes, err := s.opts.DB.Strokes(id)
	if err != nil {
		opsf("list strokes for %s: %v", id, err)
		httputil.InternalServerError(w, "Failed to retrieve strokes")
		return
	}
	if len(strokes) == 0 {
		httputil.NotFound(w, fmt.Sprintf("no strokes for session %q", id))
		return
	}
	httputil.WriteJSONOK(w, strokes)
}
