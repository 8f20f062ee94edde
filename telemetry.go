package spacez

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TelemetryPoint is one recorded flight data point.
type TelemetryPoint struct {
	T        float64
	Speed    float64
	Altitude float64
	Accel    float64
	Mass     float64
}

// ReadTelemetry parses `t,speed,altitude,accel,mass` records. Blank lines and lines starting with # are skipped.
func ReadTelemetry(r io.Reader) ([]TelemetryPoint, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 5
	cr.TrimLeadingSpace = true
	var points []TelemetryPoint
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		var vals [5]float64
		for i, field := range record {
			if vals[i], err = strconv.ParseFloat(field, 64); err != nil {
				line, _ := cr.FieldPos(i)
				return nil, fmt.Errorf("telemetry line %d: %w", line, err)
			}
		}
		points = append(points, TelemetryPoint{vals[0], vals[1], vals[2], vals[3], vals[4]})
	}
	return points, nil
}

// LoadTelemetry reads the telemetry file at the provided path.
func LoadTelemetry(path string) ([]TelemetryPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTelemetry(f)
}

// TelemetryFromTrajectory converts the trajectory samples into telemetry points.
func TelemetryFromTrajectory(traj Trajectory) []TelemetryPoint {
	points := make([]TelemetryPoint, len(traj.Samples))
	for i, s := range traj.Samples {
		points[i] = TelemetryPoint{s.T, s.Speed, s.Altitude, s.Accel, s.State.M}
	}
	return points
}

// Deviation summarizes the difference between the model and the telemetry for one quantity.
type Deviation struct {
	Mean float64 // model minus telemetry
	RMS  float64
	Max  float64 // largest absolute deviation
}

func (d Deviation) String() string {
	return fmt.Sprintf("mean=%.2f rms=%.2f max=%.2f", d.Mean, d.RMS, d.Max)
}

// Comparison is the result of comparing a trajectory against telemetry.
type Comparison struct {
	Points   int // telemetry points within the trajectory time span
	Altitude Deviation
	Speed    Deviation
}

func (c Comparison) String() string {
	return fmt.Sprintf("%d points, altitude (m): %s, speed (m/s): %s", c.Points, c.Altitude, c.Speed)
}

// CompareTelemetry compares the trajectory, interpolated at the telemetry times, with the telemetry.
// Telemetry points outside of the trajectory time span are ignored.
func CompareTelemetry(traj Trajectory, telemetry []TelemetryPoint) (Comparison, error) {
	var dAlt, dSpeed []float64
	for _, p := range telemetry {
		s, ok := traj.At(p.T)
		if !ok {
			continue
		}
		dAlt = append(dAlt, s.Altitude-p.Altitude)
		dSpeed = append(dSpeed, s.Speed-p.Speed)
	}
	if len(dAlt) == 0 {
		return Comparison{}, ErrNoOverlap
	}
	return Comparison{Points: len(dAlt), Altitude: deviation(dAlt), Speed: deviation(dSpeed)}, nil
}

func deviation(d []float64) Deviation {
	mean := stat.Mean(d, nil)
	rms := floats.Norm(d, 2) / math.Sqrt(float64(len(d)))
	abs := make([]float64, len(d))
	for i, v := range d {
		abs[i] = math.Abs(v)
	}
	return Deviation{Mean: mean, RMS: rms, Max: floats.Max(abs)}
}
