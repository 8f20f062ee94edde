package spacez

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Frame defines the geometry of the equations of motion.
type Frame uint8

const (
	// Curved follows the local vertical of a spherical body.
	Curved Frame = iota + 1
	// Flat uses a fixed vertical.
	Flat
)

func (f Frame) String() string {
	switch f {
	case Curved:
		return "curved"
	case Flat:
		return "flat"
	}
	panic("cannot stringify unknown frame")
}

// FrameFromString returns the frame from its name.
func FrameFromString(name string) (Frame, error) {
	switch strings.ToLower(name) {
	case "curved", "":
		return Curved, nil
	case "flat":
		return Flat, nil
	}
	return 0, fmt.Errorf("unknown frame `%s`", name)
}

// PlanetConfig configures the central body.
type PlanetConfig struct {
	Name         string  `mapstructure:"name" json:"name"`
	Radius       float64 `mapstructure:"radius" json:"radius"`
	G0           float64 `mapstructure:"g0" json:"g0"`
	RotationRate float64 `mapstructure:"rotation_rate" json:"rotation_rate"`
	Gravity      string  `mapstructure:"gravity" json:"gravity"` // inverse-square or constant
}

// AtmosphereConfig configures the atmosphere.
type AtmosphereConfig struct {
	SeaLevelTemperature float64          `mapstructure:"sea_level_temperature" json:"sea_level_temperature"`
	SeaLevelDensity     float64          `mapstructure:"sea_level_density" json:"sea_level_density"`
	Gamma               float64          `mapstructure:"gamma" json:"gamma"`
	GasConstant         float64          `mapstructure:"gas_constant" json:"gas_constant"`
	Bands               []AtmosphereBand `mapstructure:"bands" json:"bands"`
}

// VehicleConfig configures the vehicle.
type VehicleConfig struct {
	WetMass  float64 `mapstructure:"wet_mass" json:"wet_mass"`
	DryMass  float64 `mapstructure:"dry_mass" json:"dry_mass"`
	Diameter float64 `mapstructure:"diameter" json:"diameter"` // reference diameter, drives the cross section
}

// Area returns the cross sectional area of the vehicle.
func (v VehicleConfig) Area() float64 {
	return math.Pi * v.Diameter * v.Diameter / 4
}

// DragConfig configures the drag coefficient curve.
type DragConfig struct {
	Segments []DragSegment `mapstructure:"segments" json:"segments"`
	Floor    float64       `mapstructure:"floor" json:"floor"`
}

// GuidanceConfig configures the guidance program.
type GuidanceConfig struct {
	Thrust         []ThrustSegment `mapstructure:"thrust" json:"thrust"`
	PitchTrigger   string          `mapstructure:"pitch_trigger" json:"pitch_trigger"` // time or altitude
	Pitch          []PitchSegment  `mapstructure:"pitch" json:"pitch"`
	Turn           AltitudeTurn    `mapstructure:"turn" json:"turn"`
	MinPitch       float64         `mapstructure:"min_pitch" json:"min_pitch"`               // degrees
	NozzleExitArea float64         `mapstructure:"nozzle_exit_area" json:"nozzle_exit_area"` // m^2
}

// RotationConfig configures the planet rotation pseudo forces.
type RotationConfig struct {
	Enabled         bool    `mapstructure:"enabled" json:"enabled"`
	Latitude        float64 `mapstructure:"latitude" json:"latitude"` // degrees
	Azimuth         float64 `mapstructure:"azimuth" json:"azimuth"`   // degrees
	InheritVelocity bool    `mapstructure:"inherit_velocity" json:"inherit_velocity"`
}

// ModelConfig configures the equations of motion.
type ModelConfig struct {
	Frame string `mapstructure:"frame" json:"frame"` // curved or flat
}

// IntegratorConfig configures the integration scheme.
type IntegratorConfig struct {
	Scheme         string  `mapstructure:"scheme" json:"scheme"` // dopri45, rk4 or euler
	AbsTol         float64 `mapstructure:"abs_tol" json:"abs_tol"`
	RelTol         float64 `mapstructure:"rel_tol" json:"rel_tol"`
	InitialStep    float64 `mapstructure:"initial_step" json:"initial_step"` // zero to let the solver pick
	MinStep        float64 `mapstructure:"min_step" json:"min_step"`
	MaxStep        float64 `mapstructure:"max_step" json:"max_step"` // zero for no limit
	Step           float64 `mapstructure:"step" json:"step"`         // fixed step schemes only
	PitchProjected bool    `mapstructure:"pitch_projected" json:"pitch_projected"`
}

// SimulationConfig configures the simulation span.
type SimulationConfig struct {
	Horizon float64 `mapstructure:"horizon" json:"horizon"` // seconds
	Samples int     `mapstructure:"samples" json:"samples"` // evaluation points over [0, horizon], zero for one per step
}

// Config is the single source of truth for one simulation run. Components copy what they
// need at construction, so a Config may be reused for any number of concurrent runs.
type Config struct {
	Name       string           `mapstructure:"name" json:"name"`
	Planet     PlanetConfig     `mapstructure:"planet" json:"planet"`
	Atmosphere AtmosphereConfig `mapstructure:"atmosphere" json:"atmosphere"`
	Vehicle    VehicleConfig    `mapstructure:"vehicle" json:"vehicle"`
	Drag       DragConfig       `mapstructure:"drag" json:"drag"`
	Guidance   GuidanceConfig   `mapstructure:"guidance" json:"guidance"`
	Rotation   RotationConfig   `mapstructure:"rotation" json:"rotation"`
	Model      ModelConfig      `mapstructure:"model" json:"model"`
	Integrator IntegratorConfig `mapstructure:"integrator" json:"integrator"`
	Simulation SimulationConfig `mapstructure:"simulation" json:"simulation"`
}

// DefaultConfig returns the curved Earth ascent with rotation and an adaptive integrator.
func DefaultConfig() Config {
	return Config{
		Name:   "voskhod",
		Planet: PlanetConfig{Name: Earth.Name, Radius: Earth.Radius, G0: Earth.G0, RotationRate: Earth.RotationRate(), Gravity: InverseSquare.String()},
		Atmosphere: AtmosphereConfig{
			SeaLevelTemperature: 288.15,
			SeaLevelDensity:     1.225,
			Gamma:               1.4,
			GasConstant:         287.0,
			Bands: []AtmosphereBand{
				{Base: 0, LapseRate: -0.0065},
				{Base: 11000, LapseRate: 0},
				{Base: 25000, LapseRate: 0.001},
			},
		},
		Vehicle: VehicleConfig{WetMass: 287000, DryMass: 24500, Diameter: 2.68},
		Drag: DragConfig{
			Segments: []DragSegment{
				{Mach: 0, Value: 0.8},
				{Mach: 0.8, Curvature: 0.3},
				{Mach: 1.2, Slope: -0.1},
			},
			Floor: 0.2,
		},
		Guidance: GuidanceConfig{
			Thrust: []ThrustSegment{
				{Start: 0, Thrust: 4.04e6, Isp: 250},
				{Start: 120, Thrust: 9.41e5, Isp: 280},
				{Start: 200, Thrust: 2.98e5, Isp: 315},
			},
			PitchTrigger: TimeTrigger.String(),
			Pitch: []PitchSegment{
				{Start: 0, Angle: 90},
				{Start: 10, Angle: 90, Rate: -0.5},
				{Start: 120, Angle: 30, Rate: -0.1},
			},
			Turn: AltitudeTurn{Start: 10000, End: 45000, Initial: 90, Final: 0},
		},
		Rotation:   RotationConfig{Enabled: true, Latitude: 45.6, Azimuth: 63, InheritVelocity: true},
		Model:      ModelConfig{Frame: Curved.String()},
		Integrator: IntegratorConfig{Scheme: Dopri45.String(), AbsTol: 1e-8, RelTol: 1e-8, MinStep: 1e-10, Step: 0.1},
		Simulation: SimulationConfig{Horizon: 200, Samples: 1000},
	}
}

// ScenarioA returns the flat, non rotating, fixed step ascent of the pitch projected Euler model.
// The engine table is 4.0e6 N until 100 s and 9.0e5 N after, both at an Isp of 300 s with g0 = 9.8.
// As in that model, the 4 m^2 nozzle exit area reduces the delivered thrust by the ambient pressure
// times the exit area, so the thrust only reaches the table values in vacuum. The mass flow is not affected.
func ScenarioA() Config {
	conf := DefaultConfig()
	conf.Name = "scenario-a"
	conf.Planet = PlanetConfig{Name: "Earth", Radius: 6.4e6, G0: 9.8, Gravity: ConstantGravity.String()}
	conf.Vehicle = VehicleConfig{WetMass: 2.984e5, DryMass: 24500, Diameter: 2 * math.Sqrt(2/math.Pi)}
	conf.Drag = DragConfig{Segments: []DragSegment{{Mach: 0, Value: 0.6}}}
	conf.Guidance = GuidanceConfig{
		Thrust: []ThrustSegment{
			{Start: 0, Thrust: 4.0e6, Isp: 300},
			{Start: 100, Thrust: 9.0e5, Isp: 300},
		},
		PitchTrigger: TimeTrigger.String(),
		Pitch: []PitchSegment{
			{Start: 0, Angle: 90},
			{Start: 10, Angle: 86, Rate: -0.4},
			{Start: 100, Angle: 30},
		},
		NozzleExitArea: 4,
	}
	conf.Rotation = RotationConfig{}
	conf.Model = ModelConfig{Frame: Flat.String()}
	conf.Integrator = IntegratorConfig{Scheme: Euler.String(), Step: 0.1, PitchProjected: true}
	conf.Simulation = SimulationConfig{Horizon: 200}
	return conf
}

// Validate returns all the inconsistencies of this configuration, or nil.
func (c Config) Validate() error {
	var errs []error
	invalid := func(key, format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, key, fmt.Sprintf(format, args...)))
	}
	if c.Planet.Radius <= 0 {
		invalid("planet.radius", "must be positive")
	}
	if c.Planet.G0 <= 0 {
		invalid("planet.g0", "must be positive")
	}
	if _, err := GravityLawFromString(c.Planet.Gravity); err != nil {
		invalid("planet.gravity", "%s", err)
	}
	if c.Vehicle.WetMass <= 0 {
		invalid("vehicle.wet_mass", "must be positive")
	}
	if c.Vehicle.DryMass < 0 || c.Vehicle.DryMass >= c.Vehicle.WetMass {
		invalid("vehicle.dry_mass", "must be within [0, wet_mass)")
	}
	if c.Vehicle.Diameter < 0 {
		invalid("vehicle.diameter", "must not be negative")
	}
	if _, err := FrameFromString(c.Model.Frame); err != nil {
		invalid("model.frame", "%s", err)
	}
	scheme, err := SchemeFromString(c.Integrator.Scheme)
	if err != nil {
		invalid("integrator.scheme", "%s", err)
	}
	switch scheme {
	case Dopri45:
		if c.Integrator.AbsTol <= 0 || c.Integrator.RelTol < 0 {
			invalid("integrator.abs_tol", "tolerances must be positive")
		}
		if c.Integrator.MinStep < 0 || c.Integrator.MaxStep < 0 || c.Integrator.InitialStep < 0 {
			invalid("integrator.min_step", "steps must not be negative")
		}
		if c.Integrator.PitchProjected {
			invalid("integrator.pitch_projected", "only supported by the euler scheme")
		}
	case RK4, Euler:
		if c.Integrator.Step <= 0 {
			invalid("integrator.step", "must be positive")
		}
		if c.Integrator.PitchProjected && scheme != Euler {
			invalid("integrator.pitch_projected", "only supported by the euler scheme")
		}
	}
	if c.Simulation.Horizon <= 0 {
		invalid("simulation.horizon", "must be positive")
	}
	if c.Simulation.Samples < 0 {
		invalid("simulation.samples", "must not be negative")
	}
	if strings.ToLower(c.Guidance.PitchTrigger) == AltitudeTrigger.String() && len(c.Guidance.Pitch) > 0 {
		// Both policies in one run would make the pitch history depend on which one wins.
		invalid("guidance.pitch", "time segments are not allowed with the altitude trigger")
	}
	return errors.Join(errs...)
}

// LoadConfig reads the scenario file at the provided path on top of the default configuration.
// The format is inferred from the extension (TOML, YAML or JSON).
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return unmarshalConfig(v)
}

// ParseConfig reads a scenario of the provided format (toml, yaml or json) on top of the default configuration.
func ParseConfig(in io.Reader, format string) (Config, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(in); err != nil {
		return Config{}, err
	}
	return unmarshalConfig(v)
}

func unmarshalConfig(v *viper.Viper) (Config, error) {
	conf := DefaultConfig()
	if v.IsSet("base") && strings.ToLower(v.GetString("base")) == "scenario-a" {
		conf = ScenarioA()
	}
	// Tables present in the file replace the defaults instead of being merged element-wise.
	if err := v.Unmarshal(&conf, func(dc *mapstructure.DecoderConfig) { dc.ZeroFields = true }); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if strings.ToLower(conf.Guidance.PitchTrigger) == AltitudeTrigger.String() && !v.IsSet("guidance.pitch") {
		conf.Guidance.Pitch = nil
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}
