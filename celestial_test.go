package spacez

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestPlanetGravity(t *testing.T) {
	if Earth.Gravity(0) != Earth.G0 {
		t.Fatal("gravity at the surface must be g0")
	}
	if g := Earth.Gravity(Earth.Radius); !scalar.EqualWithinRel(g, Earth.G0/4, 1e-15) {
		t.Fatalf("gravity at one radius: %f", g)
	}
	prev := math.Inf(1)
	for h := 0.; h < 500000; h += 10000 {
		g := Earth.Gravity(h)
		if g >= prev {
			t.Fatalf("gravity not decreasing at %f m", h)
		}
		prev = g
	}
	flat := NewPlanet("flat", 6.4e6, 9.8, 0, ConstantGravity)
	for _, h := range []float64{0, 1e3, 1e6} {
		if flat.Gravity(h) != 9.8 {
			t.Fatalf("constant gravity varies at %f m", h)
		}
	}
}

func TestPlanetSurfaceSpeed(t *testing.T) {
	if v := Earth.SurfaceSpeed(0); !scalar.EqualWithinAbs(v, 464.58, 1e-2) {
		t.Fatalf("equatorial speed %f", v)
	}
	if v := Earth.SurfaceSpeed(math.Pi / 2); !scalar.EqualWithinAbs(v, 0, 1e-9) {
		t.Fatalf("polar speed %f", v)
	}
	if Earth.RotationRate() != 7.292115e-5 {
		t.Fatal("incorrect rotation rate")
	}
}

func TestGravityLawFromString(t *testing.T) {
	for _, law := range []GravityLaw{InverseSquare, ConstantGravity} {
		got, err := GravityLawFromString(law.String())
		if err != nil || got != law {
			t.Fatalf("%s: got %s (%v)", law, got, err)
		}
	}
	if _, err := GravityLawFromString("newtonian"); err == nil {
		t.Fatal("unknown law accepted")
	}
}
