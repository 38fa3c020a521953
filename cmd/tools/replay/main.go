// Command replay runs a recorded impulse trace through the engine offline
// and prints a per-stroke table and the session summary.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/report"
	"github.com/banshee-data/rowing.report/internal/rowing/flywheel"
	"github.com/banshee-data/rowing.report/internal/rowing/regression"
	"github.com/banshee-data/rowing.report/internal/rowing/rower"
	"github.com/banshee-data/rowing.report/internal/source"
	"github.com/banshee-data/rowing.report/internal/units"
)

func main() {
	var (
		configPath string
		profile    string
		unit       string
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "", "configuration file (overrides -profile)")
	flag.StringVar(&profile, "profile", "concept2_rowerg", "machine profile")
	flag.StringVar(&unit, "units", units.SPLIT, "speed units: "+units.GetValidUnitsString())
	flag.BoolVar(&verbose, "v", false, "log phase changes and calibration to stderr")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: replay [flags] <trace>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if !units.IsValid(unit) {
		log.Fatalf("invalid units %q, valid: %s", unit, units.GetValidUnitsString())
	}

	if verbose {
		regression.SetLogWriters(os.Stderr)
		flywheel.SetLogWriters(os.Stderr, os.Stderr, nil)
		rower.SetLogWriters(os.Stderr, os.Stderr, nil)
	} else {
		rower.SetLogWriters(os.Stderr, nil, nil)
	}

	settings, err := loadSettings(configPath, profile)
	if err != nil {
		log.Fatal(err)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	deltas, err := source.ReadTrace(f)
	f.Close()
	if err != nil {
		log.Fatalf("read %s: %v", flag.Arg(0), err)
	}

	rep, err := report.Analyze(settings, deltas)
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}
	if err := rep.WriteTable(os.Stdout, unit); err != nil {
		log.Fatal(err)
	}
	fmt.Println()
	rep.Summarize().WriteSummary(os.Stdout)
	if rep.InvariantViolations > 0 {
		fmt.Printf("invariant violations: %d\n", rep.InvariantViolations)
	}
}

func loadSettings(configPath, profile string) (config.RowerSettings, error) {
	if configPath == "" {
		return config.Profile(profile)
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.RowerSettings{}, err
	}
	return cfg.RowerSettings()
}
