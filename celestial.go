package spacez

import (
	"fmt"
	"math"
	"strings"
)

// GravityLaw defines how the gravitational acceleration varies with altitude.
type GravityLaw uint8

const (
	// InverseSquare scales g0 by (R/(R+h))^2.
	InverseSquare GravityLaw = iota + 1
	// ConstantGravity always returns g0.
	ConstantGravity
)

func (l GravityLaw) String() string {
	switch l {
	case InverseSquare:
		return "inverse-square"
	case ConstantGravity:
		return "constant"
	}
	panic("cannot stringify unknown gravity law")
}

// GravityLawFromString returns the gravity law from its name.
func GravityLawFromString(name string) (GravityLaw, error) {
	switch strings.ToLower(name) {
	case "inverse-square", "inverse_square", "":
		return InverseSquare, nil
	case "constant":
		return ConstantGravity, nil
	}
	return 0, fmt.Errorf("unknown gravity law `%s`", name)
}

// Planet defines the central body the vehicle ascends from.
type Planet struct {
	Name   string
	Radius float64 // Reference radius in meters
	G0     float64 // Standard gravity at the reference radius in m/s^2
	ω      float64 // Rotation rate in rad/s
	Law    GravityLaw
}

// NewPlanet returns a new planet.
func NewPlanet(name string, radius, g0, ω float64, law GravityLaw) Planet {
	return Planet{Name: name, Radius: radius, G0: g0, ω: ω, Law: law}
}

// RotationRate returns ω (which is unexported because it's a lowercase letter)
func (p Planet) RotationRate() float64 {
	return p.ω
}

// Gravity returns the gravitational acceleration at the provided altitude.
func (p Planet) Gravity(h float64) float64 {
	if p.Law == ConstantGravity {
		return p.G0
	}
	Rh := p.Radius / (p.Radius + h)
	return p.G0 * Rh * Rh
}

// SurfaceSpeed returns the speed of the surface at the given latitude (in radians) due to rotation.
func (p Planet) SurfaceSpeed(lat float64) float64 {
	return p.ω * p.Radius * math.Cos(lat)
}

// String implements the Stringer interface.
func (p Planet) String() string {
	return fmt.Sprintf("%s (R=%.0f m, g0=%.4f m/s^2, %s)", p.Name, p.Radius, p.G0, p.Law)
}

// Earth is the default launch body.
var Earth = Planet{"Earth", 6371000.0, 9.8665, 7.292115e-5, InverseSquare}
