package spacez

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func defaultAtmosphere(t *testing.T) *Atmosphere {
	conf := DefaultConfig()
	ac := conf.Atmosphere
	atmo, err := NewAtmosphere(ac.SeaLevelTemperature, ac.SeaLevelDensity, ac.Gamma, ac.GasConstant, conf.Planet.G0, ac.Bands)
	if err != nil {
		t.Fatal(err)
	}
	return atmo
}

func TestAtmosphereSeaLevel(t *testing.T) {
	atmo := defaultAtmosphere(t)
	s := atmo.Sample(0)
	if s.Temperature != 288.15 || s.Density != 1.225 {
		t.Fatalf("incorrect sea level: %+v", s)
	}
	if !scalar.EqualWithinAbs(s.Pressure, 1.225*287*288.15, 1e-9) {
		t.Fatalf("incorrect sea level pressure %f", s.Pressure)
	}
	if !scalar.EqualWithinAbs(s.SpeedOfSound, 340.2626, 1e-3) {
		t.Fatalf("incorrect speed of sound %f", s.SpeedOfSound)
	}
	// Troposphere values at 5 km.
	s = atmo.Sample(5000)
	if !scalar.EqualWithinAbs(s.Temperature, 255.65, 1e-9) {
		t.Fatalf("incorrect temperature at 5 km: %f", s.Temperature)
	}
	if !scalar.EqualWithinRel(s.Density, 0.73321, 1e-4) {
		t.Fatalf("incorrect density at 5 km: %f", s.Density)
	}
}

func TestAtmosphereContinuity(t *testing.T) {
	atmo := defaultAtmosphere(t)
	for i, b := range atmo.Boundaries() {
		below := atmo.sampleLayer(i, b)
		above := atmo.sampleLayer(i+1, b)
		for _, pair := range [][2]float64{
			{below.Temperature, above.Temperature},
			{below.Density, above.Density},
			{below.Pressure, above.Pressure},
			{below.SpeedOfSound, above.SpeedOfSound},
		} {
			if !scalar.EqualWithinRel(pair[0], pair[1], 1e-12) {
				t.Fatalf("discontinuity at %f m: %+v != %+v", b, below, above)
			}
		}
		// The upper band owns its base.
		if atmo.Sample(b) != above {
			t.Fatalf("boundary %f m is not evaluated with the upper band", b)
		}
		// And the profile is continuous when approached from either side.
		lo, hi := atmo.Sample(b-1e-6), atmo.Sample(b+1e-6)
		if !scalar.EqualWithinRel(lo.Density, hi.Density, 1e-8) {
			t.Fatalf("density jump across %f m: %f != %f", b, lo.Density, hi.Density)
		}
	}
}

func TestAtmosphereMonotonicDensity(t *testing.T) {
	atmo := defaultAtmosphere(t)
	prev := math.Inf(1)
	for h := 0.; h <= 100000; h += 250 {
		ρ := atmo.Sample(h).Density
		if ρ >= prev || ρ <= 0 {
			t.Fatalf("density not decreasing at %f m: %f", h, ρ)
		}
		prev = ρ
	}
}

func TestAtmosphereIsothermal(t *testing.T) {
	atmo := defaultAtmosphere(t)
	base := atmo.Sample(11000)
	H := 287 * base.Temperature / 9.8665
	s := atmo.Sample(11000 + H)
	if !scalar.EqualWithinAbs(s.Temperature, base.Temperature, 1e-9) {
		t.Fatal("temperature must be constant in the isothermal band")
	}
	if !scalar.EqualWithinRel(s.Density, base.Density/math.E, 1e-12) {
		t.Fatalf("density %f, expected %f", s.Density, base.Density/math.E)
	}
}

func TestAtmosphereNonPositiveTemperature(t *testing.T) {
	// A single band cooling at 10 K/km reaches 0 K at 28.815 km.
	atmo, err := NewAtmosphere(288.15, 1.225, 1.4, 287, 9.8665, []AtmosphereBand{{Base: 0, LapseRate: -0.01}})
	if err != nil {
		t.Fatal(err)
	}
	s := atmo.Sample(30000)
	if s.Density != 0 || s.Pressure != 0 || s.SpeedOfSound != 0 {
		t.Fatalf("expected a vacuum: %+v", s)
	}
	if s.Temperature >= 0 {
		t.Fatalf("temperature should be reported: %f", s.Temperature)
	}
}

func TestAtmosphereBelowSeaLevel(t *testing.T) {
	atmo := defaultAtmosphere(t)
	s := atmo.Sample(-100)
	if s.Temperature <= 288.15 || s.Density <= 1.225 {
		t.Fatalf("below sea level must extrapolate the first band: %+v", s)
	}
}

func TestAtmosphereInvalid(t *testing.T) {
	for name, bands := range map[string][]AtmosphereBand{
		"empty":     nil,
		"duplicate": {{Base: 0, LapseRate: -0.0065}, {Base: 0}},
		"too cold":  {{Base: 0, LapseRate: -0.01}, {Base: 30000}},
	} {
		if _, err := NewAtmosphere(288.15, 1.225, 1.4, 287, 9.8665, bands); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected an invalid configuration, got %v", name, err)
		}
	}
	if _, err := NewAtmosphere(0, 1.225, 1.4, 287, 9.8665, []AtmosphereBand{{}}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatal("zero temperature must be rejected")
	}
}
