// Command gen-trace simulates a rowing session on a named machine profile
// and writes its impulse trace for replay.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/rowing/simulate"
	"github.com/banshee-data/rowing.report/internal/source"
)

func main() {
	var (
		profile  string
		out      string
		strokes  int
		drive    float64
		recovery float64
		torque   float64
		omega    float64
		jitter   float64
		seed     uint64
	)
	flag.StringVar(&profile, "profile", "concept2_rowerg", "machine profile")
	flag.StringVar(&out, "out", "-", "output trace file, or - for stdout")
	flag.IntVar(&strokes, "strokes", 20, "number of strokes")
	flag.Float64Var(&drive, "drive", 0.8, "drive duration in seconds")
	flag.Float64Var(&recovery, "recovery", 1.7, "recovery duration in seconds")
	flag.Float64Var(&torque, "torque", 45, "peak handle torque at the flywheel in N·m")
	flag.Float64Var(&omega, "omega", 20, "initial flywheel velocity in rad/s")
	flag.Float64Var(&jitter, "jitter", 0, "gaussian jitter on each delta in seconds")
	flag.Uint64Var(&seed, "seed", 1, "jitter seed")
	flag.Parse()

	settings, err := config.Profile(profile)
	if err != nil {
		log.Fatalf("profile: %v", err)
	}

	tr, err := simulate.Run(simulate.Config{
		Machine: simulate.Machine{
			Inertia:               settings.FlywheelInertia,
			DragFactor:            settings.DragFactor * 1e-6,
			ImpulsesPerRevolution: settings.NumOfImpulsesPerRevolution,
		},
		InitialVelocity: omega,
		Strokes: simulate.Strokes(strokes, simulate.Stroke{
			DriveDuration:    drive,
			RecoveryDuration: recovery,
			PeakTorque:       torque,
		}),
		Jitter: jitter,
		Seed:   seed,
	})
	if err != nil {
		log.Fatalf("simulate: %v", err)
	}

	w := os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			log.Fatalf("create %s: %v", out, err)
		}
		defer f.Close()
		w = f
	}

	header := []string{
		fmt.Sprintf("simulated %d strokes on %s (drive %.2fs, recovery %.2fs, peak torque %.1f N·m)", strokes, profile, drive, recovery, torque),
		fmt.Sprintf("duration %.3fs, expected distance %.1f m", tr.Duration, tr.DistanceFor(settings.DragFactor*1e-6, settings.MagicConstant)),
	}
	if err := source.WriteTrace(w, tr.Deltas, header...); err != nil {
		log.Fatalf("write trace: %v", err)
	}
	log.Printf("wrote %d impulses (%.1fs)", len(tr.Deltas), tr.Duration)
}
