package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/rowing.report/internal/api"
	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/db"
	"github.com/banshee-data/rowing.report/internal/publish"
	"github.com/banshee-data/rowing.report/internal/rowing/flywheel"
	"github.com/banshee-data/rowing.report/internal/rowing/regression"
	"github.com/banshee-data/rowing.report/internal/rowing/rower"
	"github.com/banshee-data/rowing.report/internal/serialmux"
	"github.com/banshee-data/rowing.report/internal/session"
	"github.com/banshee-data/rowing.report/internal/source"
)

// logSetters route the three log streams into every package that has them.
var logSetters = []func(ops, diag, trace io.Writer){
	func(_, diag, _ io.Writer) { regression.SetLogWriters(diag) },
	flywheel.SetLogWriters,
	rower.SetLogWriters,
	source.SetLogWriters,
	session.SetLogWriters,
	api.SetLogWriters,
}

// app is one monitor process: an impulse source feeding a session runner,
// its sinks and the HTTP surface.
type app struct {
	cfg     *config.Config
	runner  *session.Runner
	src     source.Source
	serial  serialmux.SerialMuxInterface
	db      *db.DB
	metrics *publish.Metrics
}

func newApp(cfg *config.Config) (*app, error) {
	settings, err := cfg.RowerSettings()
	if err != nil {
		return nil, err
	}
	r, err := rower.New(settings)
	if err != nil {
		return nil, err
	}

	// Release whatever was opened if a later step fails.
	a := &app{cfg: cfg}
	ready := false
	defer func() {
		if !ready {
			a.close()
		}
	}()

	if a.src, err = a.openSource(); err != nil {
		return nil, err
	}

	a.runner = session.NewRunner(r, session.Options{
		ImpulseBuffer:   cfg.GetImpulseBuffer(),
		PublishInterval: cfg.GetPublishInterval(),
		StallTimeout:    cfg.GetStallTimeout(),
	})

	if path := cfg.GetDBPath(); path != "" {
		if a.db, err = db.NewDB(path); err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.runner.AddSink(db.NewRecorder(a.db, cfg.GetProfile()))
	}

	if broker := cfg.GetMQTTBroker(); broker != "" {
		m, err := publish.ConnectMQTT(broker, cfg.GetMQTTClientID(), cfg.GetMQTTTopicPrefix())
		if err != nil {
			return nil, err
		}
		a.runner.AddSink(m)
	}

	a.metrics = publish.NewMetrics(publish.Counters{
		Impulses:            func() float64 { return float64(a.runner.Stats().Impulses) },
		DroppedImpulses:     func() float64 { return float64(a.src.Stats().Dropped) },
		RejectedImpulses:    func() float64 { return float64(a.src.Stats().Rejected) },
		InvariantViolations: func() float64 { return float64(a.runner.Stats().InvariantViolations) },
		Stalls:              func() float64 { return float64(a.runner.Stats().Stalls) },
	})
	a.runner.AddSink(a.metrics)

	ready = true
	return a, nil
}

func (a *app) openSource() (source.Source, error) {
	switch kind := a.cfg.GetSource(); kind {
	case config.SourceGPIO:
		return source.OpenGPIO(a.cfg.GetGPIOPin(), a.cfg.GetDebounce())

	case config.SourceSerial:
		mux, err := serialmux.NewRealSerialMux(a.cfg.GetSerialPort(), serialmux.PortOptions{
			BaudRate: a.cfg.GetSerialBaudRate(),
		})
		if err != nil {
			return nil, err
		}
		a.serial = mux
		if err := mux.Initialize(a.cfg.GetDebounce()); err != nil {
			return nil, fmt.Errorf("failed to initialize impulse counter: %w", err)
		}
		log.Printf("initialized impulse counter on %s", a.cfg.GetSerialPort())
		return source.NewSerial(mux), nil

	case config.SourceReplay:
		return source.OpenReplay(a.cfg.GetTraceFile(), a.cfg.GetReplayRealtime())

	default:
		return nil, fmt.Errorf("unknown source %q", kind)
	}
}

// handler mounts the API, metrics and debug routes.
func (a *app) handler() http.Handler {
	mux := api.NewServer(a.runner, api.Options{
		DB:          a.db,
		Serial:      a.serial,
		SourceStats: a.src.Stats,
		Metrics:     a.metrics.Handler(),
	}).ServeMux()

	if a.serial != nil {
		a.serial.AttachAdminRoutes(mux)
	}
	if a.db != nil {
		a.db.AttachAdminRoutes(mux)
	}
	return api.LoggingMiddleware(mux)
}

// run blocks until ctx is done. An empty listen address runs without HTTP.
func (a *app) run(ctx context.Context, listen string) error {
	var wg sync.WaitGroup

	if a.serial != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.serial.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial port: %v", err)
			}
			log.Print("monitor routine terminated")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.src.Run(ctx, a.runner.Impulses()); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("impulse source stopped: %v", err)
			return
		}
		log.Printf("impulse source finished: %+v", a.src.Stats())
	}()

	if listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.serveHTTP(ctx, listen)
		}()
	}

	err := a.runner.Run(ctx)
	wg.Wait()
	return err
}

func (a *app) serveHTTP(ctx context.Context, listen string) {
	server := &http.Server{
		Addr:    listen,
		Handler: a.handler(),
	}

	go func() {
		log.Printf("listening on %s", listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
}

func (a *app) close() {
	if a.serial != nil {
		a.serial.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
