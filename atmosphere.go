package spacez

import (
	"fmt"
	"math"
	"sort"
)

// AtmosphereBand defines one altitude band of the atmosphere.
// The temperature and density at the base of each band are not configurable: they are
// computed from the band below at the shared boundary, which keeps the profile continuous.
type AtmosphereBand struct {
	Base        float64 `mapstructure:"base" json:"base"`                 // Altitude of the band base in meters
	LapseRate   float64 `mapstructure:"lapse_rate" json:"lapse_rate"`     // dT/dh in K/m
	Exponent    float64 `mapstructure:"exponent" json:"exponent"`         // Density exponent of a non isothermal band (derived if zero)
	ScaleHeight float64 `mapstructure:"scale_height" json:"scale_height"` // Scale height of an isothermal band (derived if zero)
}

// AtmosphereSample is the state of the atmosphere at a given altitude.
type AtmosphereSample struct {
	Temperature  float64 // K
	Density      float64 // kg/m^3
	Pressure     float64 // Pa
	SpeedOfSound float64 // m/s
}

// atmoLayer is a band with its resolved base state and law coefficients.
type atmoLayer struct {
	base, lapse, T, ρ float64
	n                 float64 // density exponent when lapse != 0
	H                 float64 // scale height when lapse == 0
}

func (l atmoLayer) temperature(h float64) float64 {
	return l.T + l.lapse*(h-l.base)
}

func (l atmoLayer) density(h float64) float64 {
	if l.lapse == 0 {
		return l.ρ * math.Exp(-(h-l.base)/l.H)
	}
	T := l.temperature(h)
	if T <= 0 {
		return 0
	}
	return l.ρ * math.Pow(T/l.T, l.n)
}

// Atmosphere is a banded analytic atmosphere. It is immutable once created and safe for concurrent use.
// The density is modeled directly and the pressure follows from the ideal gas law.
type Atmosphere struct {
	γ, R   float64
	layers []atmoLayer
	bases  []float64
}

// NewAtmosphere returns a new atmosphere from the sea level conditions and the provided bands.
// The bands are sorted by base altitude; g0 is used to derive the hydrostatic coefficients
// of the bands which do not specify them.
func NewAtmosphere(T0, ρ0, γ, R, g0 float64, bands []AtmosphereBand) (*Atmosphere, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: atmosphere requires at least one band", ErrInvalidConfig)
	}
	if T0 <= 0 || ρ0 <= 0 || γ <= 0 || R <= 0 || g0 <= 0 {
		return nil, fmt.Errorf("%w: atmosphere constants must be positive (T0=%f, ρ0=%f, γ=%f, R=%f, g0=%f)", ErrInvalidConfig, T0, ρ0, γ, R, g0)
	}
	sorted := make([]AtmosphereBand, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Base < sorted[j].Base })

	a := &Atmosphere{γ: γ, R: R, layers: make([]atmoLayer, len(sorted)), bases: make([]float64, len(sorted))}
	T, ρ := T0, ρ0
	for i, band := range sorted {
		if i > 0 {
			if band.Base == sorted[i-1].Base {
				return nil, fmt.Errorf("%w: duplicate atmosphere band at %f m", ErrInvalidConfig, band.Base)
			}
			prev := a.layers[i-1]
			T = prev.temperature(band.Base)
			ρ = prev.density(band.Base)
			if T <= 0 {
				return nil, fmt.Errorf("%w: non positive temperature at the base of band %d (%f m)", ErrInvalidConfig, i, band.Base)
			}
		}
		layer := atmoLayer{base: band.Base, lapse: band.LapseRate, T: T, ρ: ρ}
		if band.LapseRate == 0 {
			layer.H = band.ScaleHeight
			if layer.H == 0 {
				layer.H = R * T / g0
			}
		} else {
			layer.n = band.Exponent
			if layer.n == 0 {
				layer.n = -(g0/(band.LapseRate*R) + 1)
			}
		}
		a.layers[i] = layer
		a.bases[i] = band.Base
	}
	return a, nil
}

// Sample returns the atmosphere at the provided altitude. It never fails: altitudes below
// the first band extrapolate the first band's laws.
func (a *Atmosphere) Sample(h float64) AtmosphereSample {
	return a.sampleLayer(segmentIndex(a.bases, h), h)
}

func (a *Atmosphere) sampleLayer(i int, h float64) AtmosphereSample {
	layer := a.layers[i]
	T := layer.temperature(h)
	if T <= 0 {
		return AtmosphereSample{Temperature: T}
	}
	ρ := layer.density(h)
	return AtmosphereSample{Temperature: T, Density: ρ, Pressure: ρ * a.R * T, SpeedOfSound: math.Sqrt(a.γ * a.R * T)}
}

// Pressure returns the ambient pressure at the provided altitude.
func (a *Atmosphere) Pressure(h float64) float64 {
	return a.Sample(h).Pressure
}

// Boundaries returns the altitudes where the atmosphere laws change.
func (a *Atmosphere) Boundaries() []float64 {
	if len(a.bases) < 2 {
		return nil
	}
	b := make([]float64, len(a.bases)-1)
	copy(b, a.bases[1:])
	return b
}

// String implements the Stringer interface.
func (a *Atmosphere) String() string {
	s := fmt.Sprintf("atmosphere (γ=%.2f, R=%.1f)", a.γ, a.R)
	for _, l := range a.layers {
		s += fmt.Sprintf("\n  h>=%.0f m: T=%.2f K, ρ=%.5f kg/m^3, dT/dh=%.4f K/m", l.base, l.T, l.ρ, l.lapse)
	}
	return s
}
