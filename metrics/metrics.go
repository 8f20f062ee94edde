// Package metrics publishes the samples of ascents as prometheus metrics.
package metrics

import (
	spacez "github.com/DavaToros/SpaceZ"
	"github.com/prometheus/client_golang/prometheus"
)

// Sink is a spacez.SampleSink exposing the latest sample of each run as gauges.
type Sink struct {
	altitude  *prometheus.GaugeVec
	velocity  *prometheus.GaugeVec
	accel     *prometheus.GaugeVec
	mass      *prometheus.GaugeVec
	mach      *prometheus.GaugeVec
	dynPress  *prometheus.GaugeVec
	simTime   *prometheus.GaugeVec
	samples   *prometheus.CounterVec
	runs      *prometheus.CounterVec
	collector []prometheus.Collector
}

// NewSink returns a new sink whose metrics are registered on reg.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "spacez", Name: name, Help: help}, []string{"run"})
	}
	s := &Sink{
		altitude: gauge("altitude_meters", "Altitude above the reference radius"),
		velocity: gauge("velocity_mps", "Speed in the launch frame"),
		accel:    gauge("acceleration_mps2", "Norm of the acceleration"),
		mass:     gauge("mass_kg", "Vehicle mass"),
		mach:     gauge("mach", "Mach number"),
		dynPress: gauge("dynamic_pressure_pascals", "Dynamic pressure"),
		simTime:  gauge("time_seconds", "Time since ignition of the latest sample"),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spacez",
			Name:      "samples_total",
			Help:      "Number of samples published",
		}, []string{"run"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spacez",
			Name:      "runs_total",
			Help:      "Number of finished runs per status",
		}, []string{"status"}),
	}
	s.collector = []prometheus.Collector{s.altitude, s.velocity, s.accel, s.mass, s.mach, s.dynPress, s.simTime, s.samples, s.runs}
	for _, c := range s.collector {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Run returns the sample sink of the provided run.
func (s *Sink) Run(name string) spacez.SampleSink {
	return runSink{s, name}
}

// Finished counts a finished run.
func (s *Sink) Finished(status spacez.Status) {
	s.runs.WithLabelValues(status.String()).Inc()
}

// Forget removes the gauges of a run.
func (s *Sink) Forget(name string) {
	for _, g := range []*prometheus.GaugeVec{s.altitude, s.velocity, s.accel, s.mass, s.mach, s.dynPress, s.simTime} {
		g.DeleteLabelValues(name)
	}
	s.samples.DeleteLabelValues(name)
}

type runSink struct {
	*Sink
	name string
}

// Publish implements the spacez.SampleSink interface.
func (r runSink) Publish(sample spacez.Sample) {
	r.altitude.WithLabelValues(r.name).Set(sample.Altitude)
	r.velocity.WithLabelValues(r.name).Set(sample.Speed)
	r.accel.WithLabelValues(r.name).Set(sample.Accel)
	r.mass.WithLabelValues(r.name).Set(sample.State.M)
	r.mach.WithLabelValues(r.name).Set(sample.Mach)
	r.dynPress.WithLabelValues(r.name).Set(sample.DynamicPressure)
	r.simTime.WithLabelValues(r.name).Set(sample.T)
	r.samples.WithLabelValues(r.name).Inc()
}
