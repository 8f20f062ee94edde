package spacez

import (
	"fmt"
	"math"
)

// Forces is the breakdown of the forces acting on the vehicle, in the launch frame and in Newtons.
type Forces struct {
	Command         GuidanceCommand
	Atmosphere      AtmosphereSample
	Altitude        float64 // above the reference radius
	Speed           float64
	Heading         float64 // direction of the velocity, rad
	Mach            float64
	Cx              float64
	DynamicPressure float64 // Pa
	Thrust          [2]float64
	Drag            [2]float64
	Gravity         [2]float64
	Centrifugal     [2]float64
	Coriolis        [2]float64
	Derivative      Derivative
}

// Net returns the sum of all the forces.
func (f Forces) Net() [2]float64 {
	var net [2]float64
	for i := 0; i < 2; i++ {
		net[i] = f.Thrust[i] - f.Drag[i] + f.Gravity[i] + f.Centrifugal[i] + f.Coriolis[i]
	}
	return net
}

// ForceModel computes the equations of motion of the vehicle. It holds no mutable state.
type ForceModel struct {
	planet   Planet
	atmo     *Atmosphere
	drag     *DragCurve
	guidance GuidanceProgram
	frame    Frame
	area     float64
	rotating bool
	sinAz    float64
	cosLat   float64
}

// NewForceModel returns a new force model. The rotation latitude and azimuth are in degrees.
func NewForceModel(planet Planet, atmo *Atmosphere, drag *DragCurve, guidance GuidanceProgram, frame Frame, area float64, rot RotationConfig) *ForceModel {
	if atmo == nil || drag == nil || guidance == nil {
		panic("force model collaborators may not be nil")
	}
	return &ForceModel{
		planet:   planet,
		atmo:     atmo,
		drag:     drag,
		guidance: guidance,
		frame:    frame,
		area:     area,
		rotating: rot.Enabled,
		sinAz:    math.Sin(Deg2rad(rot.Azimuth)),
		cosLat:   math.Cos(Deg2rad(rot.Latitude)),
	}
}

// BuildForceModel builds the force model and all its collaborators from the configuration.
func BuildForceModel(conf Config) (*ForceModel, *Program, error) {
	if err := conf.Validate(); err != nil {
		return nil, nil, err
	}
	law, _ := GravityLawFromString(conf.Planet.Gravity)
	frame, _ := FrameFromString(conf.Model.Frame)
	planet := NewPlanet(conf.Planet.Name, conf.Planet.Radius, conf.Planet.G0, conf.Planet.RotationRate, law)
	ac := conf.Atmosphere
	atmo, err := NewAtmosphere(ac.SeaLevelTemperature, ac.SeaLevelDensity, ac.Gamma, ac.GasConstant, conf.Planet.G0, ac.Bands)
	if err != nil {
		return nil, nil, err
	}
	drag, err := NewDragCurve(conf.Drag.Segments, conf.Drag.Floor)
	if err != nil {
		return nil, nil, err
	}
	program, err := NewProgram(conf.Guidance, conf.Planet.G0, atmo)
	if err != nil {
		return nil, nil, err
	}
	return NewForceModel(planet, atmo, drag, program, frame, conf.Vehicle.Area(), conf.Rotation), program, nil
}

// Planet returns the central body of this model.
func (f *ForceModel) Planet() Planet {
	return f.planet
}

// Atmosphere returns the atmosphere of this model.
func (f *ForceModel) Atmosphere() *Atmosphere {
	return f.atmo
}

// Guidance returns the guidance program of this model.
func (f *ForceModel) Guidance() GuidanceProgram {
	return f.guidance
}

// Altitude returns the altitude of the provided state above the reference radius.
func (f *ForceModel) Altitude(s State) float64 {
	if f.frame == Curved {
		_, r := LocalVertical(s.X, s.Y, f.planet.Radius)
		return r - f.planet.Radius
	}
	return s.Y
}

// Evaluate returns the breakdown of the forces at time t for the provided state.
// The mass is not checked: a non positive mass leads to non finite accelerations.
func (f *ForceModel) Evaluate(t float64, s State) (F Forces) {
	// Geometry.
	α := 0.
	F.Altitude = s.Y
	if f.frame == Curved {
		var r float64
		α, r = LocalVertical(s.X, s.Y, f.planet.Radius)
		F.Altitude = r - f.planet.Radius
	}
	F.Speed = s.Speed()
	F.Heading = heading(s.VX, s.VY)

	// Aerodynamics.
	F.Atmosphere = f.atmo.Sample(F.Altitude)
	if F.Atmosphere.SpeedOfSound > 0 {
		F.Mach = F.Speed / F.Atmosphere.SpeedOfSound
	}
	F.Cx = f.drag.Cx(F.Mach)
	F.DynamicPressure = 0.5 * F.Atmosphere.Density * F.Speed * F.Speed
	drag := F.DynamicPressure * F.Cx * f.area
	sinφ, cosφ := math.Sincos(F.Heading)
	F.Drag = [2]float64{drag * cosφ, drag * sinφ}

	// Gravity.
	weight := s.M * f.planet.Gravity(F.Altitude)
	if f.frame == Curved {
		gVec := Local2Launch(α, []float64{0, -weight})
		F.Gravity = [2]float64{gVec[0], gVec[1]}
	} else {
		F.Gravity = [2]float64{0, -weight}
	}

	// Planet rotation.
	if f.rotating {
		ω := f.planet.RotationRate()
		centrifugal := s.M * ω * ω * f.planet.Radius * f.cosLat * f.cosLat
		F.Centrifugal = [2]float64{centrifugal * f.sinAz, centrifugal * f.cosLat}
		F.Coriolis = [2]float64{2 * s.M * ω * s.VY * f.cosLat, -2 * s.M * ω * s.VX * f.cosLat}
	}

	// Thrust follows the commanded pitch, not the velocity.
	F.Command = f.guidance.Command(t, F.Altitude)
	sinθ, cosθ := math.Sincos(F.Command.Pitch)
	F.Thrust = [2]float64{F.Command.Thrust * cosθ, F.Command.Thrust * sinθ}

	net := F.Net()
	F.Derivative = Derivative{VX: s.VX, VY: s.VY, AX: net[0] / s.M, AY: net[1] / s.M, MDot: -F.Command.MassFlow}
	return
}

// Acceleration returns the time derivative of the state at time t.
func (f *ForceModel) Acceleration(t float64, s State) Derivative {
	return f.Evaluate(t, s).Derivative
}

// sample builds the emitted sample for this state.
func (f *ForceModel) sample(t float64, s State) Sample {
	F := f.Evaluate(t, s)
	return Sample{T: t, State: s, Altitude: F.Altitude, Speed: F.Speed, Accel: F.Derivative.Accel(), Mach: F.Mach, DynamicPressure: F.DynamicPressure}
}

// String implements the Stringer interface.
func (f *ForceModel) String() string {
	return fmt.Sprintf("%s frame about %s, S=%.3f m^2, rotation: %v", f.frame, f.planet, f.area, f.rotating)
}
