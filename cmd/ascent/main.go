package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	spacez "github.com/DavaToros/SpaceZ"
	"github.com/DavaToros/SpaceZ/dataio"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// This code reads a scenario, propagates the ascent, and exports its trajectory.

const defaultScenario = "~~unset~~"

var (
	scenario  string
	base      string
	outputDir string
	telemetry string
	exportCSV bool
	plots     bool
	verbose   bool
)

func init() {
	flag.StringVar(&scenario, "scenario", defaultScenario, "scenario file (TOML, YAML or JSON), defaults to $SPACEZ_CONFIG")
	flag.StringVar(&base, "base", "", "built-in scenario when no file is provided: `default` or `scenario-a`")
	flag.StringVar(&outputDir, "out", ".", "output directory")
	flag.StringVar(&telemetry, "telemetry", "", "flight telemetry (t,speed,altitude,accel,mass) to compare with")
	flag.BoolVar(&exportCSV, "csv", true, "export the trajectory as CSV")
	flag.BoolVar(&plots, "plots", false, "render the altitude and speed plots")
	flag.BoolVar(&verbose, "verbose", false, "log every propagation status")
}

func main() {
	flag.Parse()
	if scenario == defaultScenario {
		scenario = os.Getenv("SPACEZ_CONFIG")
	}
	var conf spacez.Config
	switch {
	case scenario != "":
		var err error
		if conf, err = spacez.LoadConfig(scenario); err != nil {
			log.Fatalf("could not load scenario: %s", err)
		}
		if conf.Name == "" || conf.Name == spacez.DefaultConfig().Name {
			conf.Name = strings.TrimSuffix(filepath.Base(scenario), filepath.Ext(scenario))
		}
	case strings.ToLower(base) == "scenario-a":
		conf = spacez.ScenarioA()
	case base == "" || strings.ToLower(base) == "default":
		conf = spacez.DefaultConfig()
	default:
		log.Fatalf("unknown base scenario `%s`", base)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Fatal(err)
	}
	export := spacez.ExportConfig{Filename: conf.Name, OutputDir: outputDir, AsCSV: exportCSV}
	ascent, err := spacez.NewAscent(conf, export)
	if err != nil {
		log.Fatalf("invalid scenario: %s", err)
	}
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	if verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	ascent.SetLogger(logger)
	if verbose {
		log.Printf("[conf] %s", ascent)
	}

	traj, propErr := ascent.Propagate()
	if propErr != nil {
		log.Printf("[WARNING] %s", propErr)
	}
	final := traj.Final()
	fmt.Printf("%s: %s after %d samples\nfinal: %s\n", conf.Name, traj.Status, traj.Len(), final)
	if maxQ := traj.MaxDynamicPressure(); traj.Len() > 0 {
		fmt.Printf("max q: %.0f Pa at t=%.1f s (h=%.0f m)\n", maxQ.DynamicPressure, maxQ.T, maxQ.Altitude)
	}
	if !export.IsUseless() {
		fmt.Printf("trajectory written to %s\n", export.Path())
	}

	var flight []spacez.TelemetryPoint
	if telemetry != "" {
		if flight, err = spacez.LoadTelemetry(telemetry); err != nil {
			log.Fatalf("could not read telemetry: %s", err)
		}
		cmp, err := spacez.CompareTelemetry(traj, flight)
		if err != nil {
			log.Printf("[WARNING] %s", err)
		} else {
			fmt.Printf("telemetry: %s\n", cmp)
		}
	}
	if plots {
		files, err := dataio.SaveAll(outputDir, conf.Name, dataio.Decimate(traj, 2000), flight)
		if err != nil {
			log.Fatalf("could not render plots: %s", err)
		}
		for _, f := range files {
			fmt.Printf("plot written to %s\n", f)
		}
	}
	if propErr != nil {
		os.Exit(1)
	}
}
