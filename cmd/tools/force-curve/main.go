// Command force-curve plots the handle curves of every drive in an impulse
// trace, one line per stroke.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/report"
	"github.com/banshee-data/rowing.report/internal/source"
)

func main() {
	var (
		profile string
		curve   string
		out     string
		last    int
	)
	flag.StringVar(&profile, "profile", "concept2_rowerg", "machine profile")
	flag.StringVar(&curve, "curve", string(report.Force), "curve to plot: force, velocity or power")
	flag.StringVar(&out, "out", "force-curve.png", "output image (.png, .svg or .pdf)")
	flag.IntVar(&last, "last", 10, "plot only the last N strokes (0 for all)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: force-curve [flags] <trace>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	c, err := report.ParseCurve(curve)
	if err != nil {
		log.Fatal(err)
	}
	settings, err := config.Profile(profile)
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
	if last > 0 && len(rep.Strokes) > last {
		rep.Strokes = rep.Strokes[len(rep.Strokes)-last:]
	}
	if err := rep.PlotCurves(c, out); err != nil {
		log.Fatal(err)
	}
	log.Printf("plotted %d strokes to %s", len(rep.Strokes), out)
}
