// Package dataio renders ascent trajectories, and the flight telemetry they are compared with, as PNG plots.
package dataio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	spacez "github.com/DavaToros/SpaceZ"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Quantity is a plotted time series.
type Quantity uint8

const (
	// Altitude in meters.
	Altitude Quantity = iota + 1
	// Speed in meters per second.
	Speed
	// Mass in kilograms.
	Mass
)

func (q Quantity) String() string {
	switch q {
	case Altitude:
		return "altitude"
	case Speed:
		return "speed"
	case Mass:
		return "mass"
	}
	panic("cannot stringify unknown quantity")
}

func (q Quantity) label() string {
	switch q {
	case Altitude:
		return "altitude (m)"
	case Speed:
		return "speed (m/s)"
	default:
		return "mass (kg)"
	}
}

func (q Quantity) ofSample(s spacez.Sample) float64 {
	switch q {
	case Altitude:
		return s.Altitude
	case Speed:
		return s.Speed
	default:
		return s.State.M
	}
}

func (q Quantity) ofTelemetry(p spacez.TelemetryPoint) float64 {
	switch q {
	case Altitude:
		return p.Altitude
	case Speed:
		return p.Speed
	default:
		return p.Mass
	}
}

// Figure size of the rendered plots.
var (
	Width  = 8 * vg.Inch
	Height = 5 * vg.Inch
)

// NewPlot returns the plot of the quantity for the trajectory, overlaid with the telemetry if any.
func NewPlot(title string, q Quantity, traj spacez.Trajectory, telemetry []spacez.TelemetryPoint) (*plot.Plot, error) {
	if traj.Len() == 0 {
		return nil, fmt.Errorf("no sample to plot %s", q)
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s", title, q)
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = q.label()
	p.Add(plotter.NewGrid())

	model := make(plotter.XYs, traj.Len())
	for i, s := range traj.Samples {
		model[i].X, model[i].Y = s.T, q.ofSample(s)
	}
	series := []interface{}{"model", model}
	if len(telemetry) > 0 {
		flight := make(plotter.XYs, len(telemetry))
		for i, pt := range telemetry {
			flight[i].X, flight[i].Y = pt.T, q.ofTelemetry(pt)
		}
		series = append(series, "telemetry", flight)
	}
	if err := plotutil.AddLines(p, series...); err != nil {
		return nil, err
	}
	return p, nil
}

// WritePNG renders the plot as PNG.
func WritePNG(w io.Writer, p *plot.Plot) error {
	c := vgimg.New(Width, Height)
	p.Draw(draw.New(c))
	bw := bufio.NewWriter(w)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}

// SavePNG renders the plot to the provided file, creating its directory if needed.
func SavePNG(p *plot.Plot, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()
	if err := WritePNG(f, p); err != nil {
		return err
	}
	return f.Close()
}

// SaveAll saves the altitude and speed plots in the directory, and returns their file names.
func SaveAll(dir, name string, traj spacez.Trajectory, telemetry []spacez.TelemetryPoint) ([]string, error) {
	var files []string
	for _, q := range []Quantity{Altitude, Speed} {
		p, err := NewPlot(name, q, traj, telemetry)
		if err != nil {
			return files, err
		}
		filename := filepath.Join(dir, fmt.Sprintf("%s-%s.png", name, q))
		if err := SavePNG(p, filename); err != nil {
			return files, err
		}
		files = append(files, filename)
	}
	return files, nil
}

// Decimate keeps at most n evenly spaced samples of the trajectory, always including the last one.
func Decimate(traj spacez.Trajectory, n int) spacez.Trajectory {
	if n <= 1 || traj.Len() <= n {
		return traj
	}
	out := traj
	out.Samples = make([]spacez.Sample, 0, n)
	stride := float64(traj.Len()-1) / float64(n-1)
	for i := 0; i < n; i++ {
		out.Samples = append(out.Samples, traj.Samples[int(math.Round(float64(i)*stride))])
	}
	return out
}
