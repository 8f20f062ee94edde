package spacez

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func buildModel(t *testing.T, conf Config) *ForceModel {
	model, _, err := BuildForceModel(conf)
	if err != nil {
		t.Fatal(err)
	}
	return model
}

func TestLiftoff(t *testing.T) {
	conf := ScenarioA()
	model := buildModel(t, conf)
	pad := State{M: conf.Vehicle.WetMass}
	F := model.Evaluate(0, pad)
	if F.Speed != 0 || F.Heading != 0 || F.Mach != 0 {
		t.Fatalf("vehicle at rest: %+v", F)
	}
	if F.Drag != [2]float64{} {
		t.Fatalf("drag at rest: %v", F.Drag)
	}
	weight := conf.Vehicle.WetMass * 9.8
	thrust := 4e6 - 4*model.Atmosphere().Pressure(0)
	if !scalar.EqualWithinAbs(F.Derivative.AY, (thrust-weight)/conf.Vehicle.WetMass, 1e-9) {
		t.Fatalf("incorrect lift off acceleration %f", F.Derivative.AY)
	}
	if F.Derivative.AY <= 0 {
		t.Fatal("the vehicle should lift off")
	}
	if !scalar.EqualWithinAbs(F.Derivative.AX, 0, 1e-9) {
		t.Fatalf("vertical thrust should not accelerate horizontally: %f", F.Derivative.AX)
	}
	if F.Derivative.MDot >= 0 {
		t.Fatal("mass must decrease while thrusting")
	}

	// Too heavy to lift off.
	conf.Vehicle.WetMass = 5e5
	heavy := buildModel(t, conf)
	if d := heavy.Acceleration(0, State{M: conf.Vehicle.WetMass}); d.AY >= 0 {
		t.Fatalf("an underpowered vehicle lifted off: %f", d.AY)
	}
}

func TestDragOpposesVelocity(t *testing.T) {
	conf := ScenarioA()
	model := buildModel(t, conf)
	s := State{Y: 1000, VX: 200, VY: 200, M: 2e5}
	F := model.Evaluate(50, s)
	if !scalar.EqualWithinAbs(F.Heading, math.Pi/4, 1e-12) {
		t.Fatalf("heading %f", F.Heading)
	}
	if F.Drag[0] <= 0 || !scalar.EqualWithinRel(F.Drag[0], F.Drag[1], 1e-12) {
		t.Fatalf("drag must be along the velocity: %v", F.Drag)
	}
	atmo := model.Atmosphere().Sample(1000)
	q := 0.5 * atmo.Density * s.Speed() * s.Speed()
	if !scalar.EqualWithinRel(hypot(F.Drag[0], F.Drag[1]), q*0.6*2, 1e-9) {
		t.Fatalf("incorrect drag magnitude %f", hypot(F.Drag[0], F.Drag[1]))
	}
	if !scalar.EqualWithinRel(F.Mach, s.Speed()/atmo.SpeedOfSound, 1e-12) {
		t.Fatalf("incorrect Mach %f", F.Mach)
	}
	net := F.Net()
	if !scalar.EqualWithinRel(net[0]/s.M, F.Derivative.AX, 1e-12) || !scalar.EqualWithinRel(net[1]/s.M, F.Derivative.AY, 1e-12) {
		t.Fatal("acceleration is not the net force over the mass")
	}
}

func TestCurvedGravity(t *testing.T) {
	conf := DefaultConfig()
	conf.Rotation.Enabled = false
	model := buildModel(t, conf)
	R := conf.Planet.Radius
	// 1000 km downrange on the surface: the local vertical is tilted backwards.
	s := State{X: 1e6, Y: math.Sqrt(R*R-1e12) - R, M: 1e5}
	F := model.Evaluate(0, s)
	if !scalar.EqualWithinAbs(F.Altitude, 0, 1e-6) {
		t.Fatalf("expected a null altitude, got %f", F.Altitude)
	}
	g := hypot(F.Gravity[0], F.Gravity[1])
	if !scalar.EqualWithinRel(g, s.M*conf.Planet.G0, 1e-9) {
		t.Fatalf("incorrect gravity norm %f", g)
	}
	// Gravity points to the center of the planet at (0, -R).
	toCenter := []float64{-s.X, -(R + s.Y)}
	if !scalar.EqualWithinAbs(math.Atan2(F.Gravity[1], F.Gravity[0]), math.Atan2(toCenter[1], toCenter[0]), 1e-9) {
		t.Fatalf("gravity %v does not point to the center", F.Gravity)
	}
}

func TestInverseSquareGravity(t *testing.T) {
	conf := DefaultConfig()
	conf.Model.Frame = Flat.String()
	conf.Rotation.Enabled = false
	model := buildModel(t, conf)
	R := conf.Planet.Radius
	F := model.Evaluate(0, State{Y: R, M: 1})
	if !scalar.EqualWithinRel(F.Gravity[1], -conf.Planet.G0/4, 1e-12) || F.Gravity[0] != 0 {
		t.Fatalf("gravity at one radius should be a fourth of g0: %v", F.Gravity)
	}
}

func TestRotationForces(t *testing.T) {
	conf := DefaultConfig()
	model := buildModel(t, conf)
	ω := conf.Planet.RotationRate
	lat, az := Deg2rad(conf.Rotation.Latitude), Deg2rad(conf.Rotation.Azimuth)
	s := State{Y: 100, VX: 300, VY: 100, M: 1e5}
	F := model.Evaluate(0, s)
	cf := s.M * ω * ω * conf.Planet.Radius * math.Cos(lat) * math.Cos(lat)
	if !scalar.EqualWithinRel(F.Centrifugal[0], cf*math.Sin(az), 1e-12) || !scalar.EqualWithinRel(F.Centrifugal[1], cf*math.Cos(lat), 1e-12) {
		t.Fatalf("incorrect centrifugal force %v", F.Centrifugal)
	}
	if !scalar.EqualWithinRel(F.Coriolis[0], 2*s.M*ω*s.VY*math.Cos(lat), 1e-12) || !scalar.EqualWithinRel(F.Coriolis[1], -2*s.M*ω*s.VX*math.Cos(lat), 1e-12) {
		t.Fatalf("incorrect Coriolis force %v", F.Coriolis)
	}

	conf.Rotation.Enabled = false
	F = buildModel(t, conf).Evaluate(0, s)
	if F.Centrifugal != [2]float64{} || F.Coriolis != [2]float64{} {
		t.Fatal("rotation forces without rotation")
	}
}

func TestNewForceModelPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("nil collaborators did not panic")
		}
	}()
	NewForceModel(Earth, nil, nil, nil, Flat, 1, RotationConfig{})
}
