package spacez

import (
	"fmt"
	"math"
	"sort"
)

// State is the kinematic and mass state of the vehicle.
type State struct {
	X  float64 // Horizontal range in meters
	Y  float64 // Altitude coordinate above the reference radius in meters
	VX float64 // m/s
	VY float64 // m/s
	M  float64 // kg
}

const stateSize = 5

// Vector returns the state as a slice, in the integration order.
func (s State) Vector() []float64 {
	return []float64{s.X, s.Y, s.VX, s.VY, s.M}
}

// StateFromVector returns a state from its slice representation.
func StateFromVector(v []float64) State {
	return State{v[0], v[1], v[2], v[3], v[4]}
}

// Speed returns the norm of the velocity.
func (s State) Speed() float64 {
	return hypot(s.VX, s.VY)
}

// IsFinite returns whether every component of the state is finite.
func (s State) IsFinite() bool {
	return isFinite(s.X, s.Y, s.VX, s.VY, s.M)
}

// String implements the Stringer interface.
func (s State) String() string {
	return fmt.Sprintf("x=%.3f m y=%.3f m vx=%.3f m/s vy=%.3f m/s m=%.3f kg", s.X, s.Y, s.VX, s.VY, s.M)
}

// Derivative is the time derivative of a State.
type Derivative struct {
	VX, VY float64 // dx/dt, dy/dt
	AX, AY float64 // dvx/dt, dvy/dt
	MDot   float64 // dm/dt
}

// Vector returns the derivative as a slice, in the integration order.
func (d Derivative) Vector() []float64 {
	return []float64{d.VX, d.VY, d.AX, d.AY, d.MDot}
}

func (d Derivative) into(dst []float64) {
	dst[0], dst[1], dst[2], dst[3], dst[4] = d.VX, d.VY, d.AX, d.AY, d.MDot
}

// Accel returns the norm of the acceleration.
func (d Derivative) Accel() float64 {
	return hypot(d.AX, d.AY)
}

// Sample is one emitted point of a trajectory.
type Sample struct {
	T               float64 `json:"t"`
	State           State   `json:"state"`
	Altitude        float64 `json:"altitude"`
	Speed           float64 `json:"speed"`
	Accel           float64 `json:"accel"`
	Mach            float64 `json:"mach"`
	DynamicPressure float64 `json:"q"`
}

// String implements the Stringer interface.
func (s Sample) String() string {
	return fmt.Sprintf("t=%.3f s h=%.2f m v=%.2f m/s a=%.2f m/s^2 m=%.2f kg M=%.3f", s.T, s.Altitude, s.Speed, s.Accel, s.State.M, s.Mach)
}

// Trajectory is the ordered sequence of samples produced by one ascent.
type Trajectory struct {
	Samples []Sample
	Status  Status
	Err     error
}

// Len returns the number of samples.
func (t Trajectory) Len() int {
	return len(t.Samples)
}

// Final returns the last sample of the trajectory.
func (t Trajectory) Final() Sample {
	if len(t.Samples) == 0 {
		return Sample{}
	}
	return t.Samples[len(t.Samples)-1]
}

func (t Trajectory) series(f func(Sample) float64) []float64 {
	s := make([]float64, len(t.Samples))
	for i, sample := range t.Samples {
		s[i] = f(sample)
	}
	return s
}

// Times returns the sample times.
func (t Trajectory) Times() []float64 {
	return t.series(func(s Sample) float64 { return s.T })
}

// Altitudes returns the altitudes above the reference radius.
func (t Trajectory) Altitudes() []float64 {
	return t.series(func(s Sample) float64 { return s.Altitude })
}

// Speeds returns the speeds.
func (t Trajectory) Speeds() []float64 {
	return t.series(func(s Sample) float64 { return s.Speed })
}

// Masses returns the masses.
func (t Trajectory) Masses() []float64 {
	return t.series(func(s Sample) float64 { return s.State.M })
}

// At returns the sample linearly interpolated at time tt, and false if tt is out of the trajectory time span.
func (t Trajectory) At(tt float64) (Sample, bool) {
	n := len(t.Samples)
	if n == 0 || tt < t.Samples[0].T || tt > t.Samples[n-1].T {
		return Sample{}, false
	}
	i := sort.Search(n, func(i int) bool { return t.Samples[i].T > tt }) - 1
	if i == n-1 {
		return t.Samples[i], true
	}
	s0, s1 := t.Samples[i], t.Samples[i+1]
	if s1.T == s0.T {
		return s0, true
	}
	f := (tt - s0.T) / (s1.T - s0.T)
	lerp := func(a, b float64) float64 { return a + f*(b-a) }
	return Sample{
		T: tt,
		State: State{
			lerp(s0.State.X, s1.State.X), lerp(s0.State.Y, s1.State.Y),
			lerp(s0.State.VX, s1.State.VX), lerp(s0.State.VY, s1.State.VY),
			lerp(s0.State.M, s1.State.M),
		},
		Altitude:        lerp(s0.Altitude, s1.Altitude),
		Speed:           lerp(s0.Speed, s1.Speed),
		Accel:           lerp(s0.Accel, s1.Accel),
		Mach:            lerp(s0.Mach, s1.Mach),
		DynamicPressure: lerp(s0.DynamicPressure, s1.DynamicPressure),
	}, true
}

// MaxDynamicPressure returns the sample at which the dynamic pressure is maximal.
func (t Trajectory) MaxDynamicPressure() Sample {
	best := Sample{DynamicPressure: math.Inf(-1)}
	for _, s := range t.Samples {
		if s.DynamicPressure > best.DynamicPressure {
			best = s
		}
	}
	return best
}
