package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/db"
	"github.com/banshee-data/rowing.report/internal/monitoring"
	"github.com/banshee-data/rowing.report/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Path to the JSON configuration file")
	listen      = flag.String("listen", "", "Listen address (overrides http_listen)")
	diagLog     = flag.String("log-diag", "", "Diagnostic log file, or - for stderr")
	traceLog    = flag.String("log-trace", "", "Per-impulse trace log file, or - for stderr")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: rower [flags] [command]

Commands:
  (none)     Run the monitor
  migrate    Manage the database schema (see: rower migrate help)
  profiles   List the built-in machine profiles

Flags:
`)
	flag.PrintDefaults()
}

// Main
func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.HTTPListen = listen
	}

	switch cmd := flag.Arg(0); cmd {
	case "":
	case "migrate":
		if err := db.RunMigrateCommand(flag.Args()[1:], cfg.GetDBPath(), os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	case "profiles":
		for _, name := range config.ProfileNames() {
			fmt.Println(name)
		}
		return
	default:
		flag.Usage()
		log.Fatalf("unknown command %q", cmd)
	}

	streams, err := monitoring.OpenStreams(*diagLog, *traceLog)
	if err != nil {
		log.Fatalf("failed to open log streams: %v", err)
	}
	defer streams.Close()
	streams.Apply(logSetters...)

	log.Printf("starting %s", version.String())

	a, err := newApp(cfg)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, cfg.GetHTTPListen()); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("stopped with error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
