// Command rowctl queries and controls a running rower over its HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/banshee-data/rowing.report/internal/api"
	"github.com/banshee-data/rowing.report/internal/session"
	"github.com/banshee-data/rowing.report/internal/units"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: rowctl [flags] <command>

Commands:
  status                   Show the live summary
  snapshot                 Print the raw engine snapshot as JSON
  stats                    Print engine and source counters as JSON
  start|pause|stop|reset   Control the session

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	var (
		addr    string
		unit    string
		timeout time.Duration
	)
	flag.StringVar(&addr, "addr", "http://localhost:8080", "rower API address")
	flag.StringVar(&unit, "units", "", "speed units for status: "+units.GetValidUnitsString())
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	c := api.NewClient(addr, nil)

	if err := run(ctx, c, flag.Arg(0), unit); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, c *api.Client, command, unit string) error {
	switch command {
	case "status":
		sum, err := c.Summary(ctx, unit)
		if err != nil {
			return err
		}
		printSummary(sum)
		return nil
	case "snapshot":
		snap, err := c.Snapshot(ctx)
		if err != nil {
			return err
		}
		return printJSON(snap)
	case "stats":
		stats, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)
	}

	cmd, err := session.ParseCommand(command)
	if err != nil {
		return err
	}
	if err := c.Control(ctx, cmd); err != nil {
		return err
	}
	fmt.Printf("%s: ok\n", cmd)
	return nil
}

func printSummary(s api.Summary) {
	fmt.Printf("state:    %s\n", s.State)
	fmt.Printf("strokes:  %d\n", s.Strokes)
	fmt.Printf("distance: %.0f m\n", s.Distance)
	fmt.Printf("time:     %s\n", s.Elapsed)
	if s.Split != "" {
		fmt.Printf("split:    %s /500m\n", s.Split)
	}
	if v, ok := s.Speed.Get(); ok && s.Units != units.SPLIT {
		fmt.Printf("speed:    %.2f %s\n", v, s.Units)
	}
	if v, ok := s.StrokeRate.Get(); ok {
		fmt.Printf("rate:     %.0f spm\n", v)
	}
	if v, ok := s.Power.Get(); ok {
		fmt.Printf("power:    %.0f W\n", v)
	}
	if v, ok := s.DragFactor.Get(); ok {
		fmt.Printf("drag:     %.0f\n", v)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
