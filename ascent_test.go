package spacez

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func propagate(t *testing.T, conf Config, sinks ...SampleSink) (Trajectory, error) {
	a, err := NewAscent(conf, ExportConfig{}, sinks...)
	if err != nil {
		t.Fatal(err)
	}
	a.SetLogger(kitlog.NewNopLogger())
	return a.Propagate()
}

func mustPropagate(t *testing.T, conf Config) Trajectory {
	traj, err := propagate(t, conf)
	if err != nil {
		t.Fatal(err)
	}
	if traj.Status != Completed {
		t.Fatalf("unexpected status %s", traj.Status)
	}
	return traj
}

// Reference trace of the fixed step pitch projected ascent (flat frame, constant gravity).
var scenarioAReference = []struct {
	t, altitude, speed, mass, rangeX float64
}{
	{50, 4445.53485052173, 230.2154752821441, 230372.7891156508, 1110.1953409714095},
	{100, 25570.335741297622, 855.7792602322295, 162345.57823130162, 14337.708465124888},
	{150, 52302.00126886596, 1282.498493037801, 147039.45578232233, 60638.3113298107},
	{200, 89756.67178187521, 1714.0917714994343, 131733.33333334303, 125511.70363909438},
}

func TestScenarioA(t *testing.T) {
	traj := mustPropagate(t, ScenarioA())
	if traj.Len() != 2001 {
		t.Fatalf("expected 2001 samples, got %d", traj.Len())
	}
	if traj.Samples[0].T != 0 || traj.Final().T != 200 {
		t.Fatalf("unexpected span [%f, %f]", traj.Samples[0].T, traj.Final().T)
	}
	for _, ref := range scenarioAReference {
		s, ok := traj.At(ref.t)
		if !ok {
			t.Fatalf("no sample at %f", ref.t)
		}
		for _, c := range []struct {
			name     string
			got, exp float64
		}{
			{"altitude", s.Altitude, ref.altitude},
			{"speed", s.Speed, ref.speed},
			{"mass", s.State.M, ref.mass},
			{"range", s.State.X, ref.rangeX},
		} {
			if !scalar.EqualWithinRel(c.got, c.exp, 1e-2) {
				t.Fatalf("t=%.0f: %s=%f expected %f", ref.t, c.name, c.got, c.exp)
			}
		}
	}
}

func TestEulerDeterminism(t *testing.T) {
	conf := ScenarioA()
	first := mustPropagate(t, conf)
	second := mustPropagate(t, conf)
	if first.Len() != second.Len() {
		t.Fatal("different number of samples")
	}
	for i := range first.Samples {
		if first.Samples[i] != second.Samples[i] {
			t.Fatalf("runs differ at sample %d: %s != %s", i, first.Samples[i], second.Samples[i])
		}
	}
}

func TestMassMonotonic(t *testing.T) {
	for _, conf := range []Config{DefaultConfig(), ScenarioA()} {
		traj := mustPropagate(t, conf)
		for i := 1; i < traj.Len(); i++ {
			if traj.Samples[i].State.M > traj.Samples[i-1].State.M {
				t.Fatalf("%s: mass increased at t=%f", conf.Name, traj.Samples[i].T)
			}
		}
	}
}

func TestScenarioBPropellant(t *testing.T) {
	conf := DefaultConfig()
	traj := mustPropagate(t, conf)
	if traj.Len() != conf.Simulation.Samples {
		t.Fatalf("expected %d samples, got %d", conf.Simulation.Samples, traj.Len())
	}
	program, err := NewProgram(conf.Guidance, conf.Planet.G0, nil)
	if err != nil {
		t.Fatal(err)
	}
	expMass := conf.Vehicle.WetMass - program.PropellantUsed(0, conf.Simulation.Horizon)
	final := traj.Final()
	if !scalar.EqualWithinRel(final.State.M, expMass, 1e-9) {
		t.Fatalf("final mass %f expected %f", final.State.M, expMass)
	}
	// 287000 - (120*4.04e6/(250*9.8665) + 80*9.41e5/(280*9.8665))
	if !scalar.EqualWithinAbs(final.State.M, 63206.644, 1e-2) {
		t.Fatalf("final mass %f", final.State.M)
	}
	if final.Altitude <= 0 || final.Speed <= 0 {
		t.Fatalf("the vehicle did not climb: %s", final)
	}
	for _, s := range traj.Samples {
		if !s.State.IsFinite() {
			t.Fatalf("non finite sample %s", s)
		}
	}
}

func TestInheritedVelocity(t *testing.T) {
	conf := DefaultConfig()
	a, err := NewAscent(conf, ExportConfig{})
	if err != nil {
		t.Fatal(err)
	}
	s := a.InitialState()
	exp := Earth.SurfaceSpeed(Deg2rad(45.6)) * math.Sin(Deg2rad(63))
	if !scalar.EqualWithinAbs(s.VX, exp, 1e-9) || s.VY != 0 || s.M != conf.Vehicle.WetMass {
		t.Fatalf("unexpected initial state %s", s)
	}
	conf.Rotation.InheritVelocity = false
	if a, _ = NewAscent(conf, ExportConfig{}); a.InitialState().VX != 0 {
		t.Fatal("velocity inherited without being requested")
	}
}

func TestEvaluationTimes(t *testing.T) {
	conf := ScenarioA()
	conf.Simulation.Horizon = 20
	conf.Simulation.Samples = 21
	traj := mustPropagate(t, conf)
	if !floats.Equal(traj.Times(), EvaluationTimes(0, 20, 21)) {
		t.Fatalf("unexpected times %v", traj.Times())
	}
	// Same number of samples with the adaptive scheme.
	conf.Integrator = IntegratorConfig{Scheme: "dopri45", AbsTol: 1e-6, RelTol: 1e-9}
	traj = mustPropagate(t, conf)
	if !floats.Equal(traj.Times(), EvaluationTimes(0, 20, 21)) {
		t.Fatalf("unexpected adaptive times %v", traj.Times())
	}
}

func TestAdaptiveVsRK4(t *testing.T) {
	conf := ScenarioA()
	conf.Integrator = IntegratorConfig{Scheme: "dopri45", AbsTol: 1e-6, RelTol: 1e-10}
	conf.Simulation.Samples = 201
	ref := mustPropagate(t, conf)
	conf.Integrator = IntegratorConfig{Scheme: "rk4", Step: 0.1}
	rk4 := mustPropagate(t, conf)
	if rk4.Len() != ref.Len() {
		t.Fatalf("rk4 returned %d samples, expected %d", rk4.Len(), ref.Len())
	}
	for _, tt := range []float64{50, 100, 150} {
		exp, _ := ref.At(tt)
		got, _ := rk4.At(tt)
		if !scalar.EqualWithinRel(got.Speed, exp.Speed, 1e-2) || !scalar.EqualWithinRel(got.State.M, exp.State.M, 1e-9) {
			t.Fatalf("t=%f: rk4 %s, dopri45 %s", tt, got, exp)
		}
		if math.Abs(got.Altitude-exp.Altitude) > 0.01*math.Abs(exp.Altitude)+1 {
			t.Fatalf("t=%f: rk4 altitude %f, dopri45 %f", tt, got.Altitude, exp.Altitude)
		}
	}
}

func TestMassDepletion(t *testing.T) {
	for _, scheme := range []IntegratorConfig{
		{Scheme: "euler", Step: 0.1},
		{Scheme: "rk4", Step: 0.1},
		{Scheme: "dopri45", AbsTol: 1e-6, RelTol: 1e-9},
	} {
		conf := ScenarioA()
		conf.Vehicle.DryMass = 2e5
		conf.Integrator = scheme
		var published int
		traj, err := propagate(t, conf, SinkFunc(func(Sample) { published++ }))
		if !errors.Is(err, ErrMassDepleted) {
			t.Fatalf("%s: expected a mass depletion, got %v", scheme.Scheme, err)
		}
		var simErr *SimulationError
		if !errors.As(err, &simErr) {
			t.Fatalf("%s: not a simulation error", scheme.Scheme)
		}
		// 98400 kg at 4e6/(300*9.8) kg/s.
		expT := 98400 / (4e6 / (300 * 9.8))
		if !scalar.EqualWithinAbs(simErr.T, expT, 1e-6) {
			t.Fatalf("%s: depleted at %f expected %f", scheme.Scheme, simErr.T, expT)
		}
		if simErr.Status != Failed || traj.Status != Failed || traj.Err != err {
			t.Fatalf("%s: unexpected status %s", scheme.Scheme, traj.Status)
		}
		if simErr.State.M != conf.Vehicle.DryMass {
			t.Fatalf("%s: depletion state mass %f", scheme.Scheme, simErr.State.M)
		}
		final := traj.Final()
		if final.T > expT+1e-6 || final.T < expT-0.1 {
			t.Fatalf("%s: trajectory ends at %f", scheme.Scheme, final.T)
		}
		if published != traj.Len() {
			t.Fatalf("%s: published %d samples, trajectory has %d", scheme.Scheme, published, traj.Len())
		}
	}
}

func TestStepSizeUnderflow(t *testing.T) {
	for name, ic := range map[string]IntegratorConfig{
		"tolerance":  {Scheme: "dopri45", AbsTol: 1e-300, RelTol: 0, InitialStep: 0.5, MinStep: 0.4},
		"breakpoint": {Scheme: "dopri45", AbsTol: 1e-6, RelTol: 1e-6, InitialStep: 15, MinStep: 15},
	} {
		conf := DefaultConfig()
		conf.Integrator = ic
		traj, err := propagate(t, conf)
		if !errors.Is(err, ErrStepSizeUnderflow) {
			t.Fatalf("%s: expected a step size underflow, got %v", name, err)
		}
		var simErr *SimulationError
		if !errors.As(err, &simErr) || simErr.T != 0 || simErr.State.M != conf.Vehicle.WetMass {
			t.Fatalf("%s: unexpected failure %v", name, err)
		}
		if traj.Status != Failed || traj.Len() != 1 {
			t.Fatalf("%s: the trajectory should only hold the initial sample, got %d", name, traj.Len())
		}
	}
}

// nanThrust commands a non finite thrust, hence every step of the adaptive scheme is rejected.
type nanThrust struct {
	*Program
}

func (nanThrust) Command(t, h float64) GuidanceCommand {
	return GuidanceCommand{Thrust: math.NaN(), Pitch: math.Pi / 2}
}

func TestStepSizeUnderflowWithoutMinStep(t *testing.T) {
	for _, initial := range []float64{0, 1} {
		conf := DefaultConfig()
		conf.Integrator = IntegratorConfig{Scheme: "dopri45", AbsTol: 1e-8, RelTol: 1e-8, InitialStep: initial}
		a, err := NewAscent(conf, ExportConfig{})
		if err != nil {
			t.Fatal(err)
		}
		a.SetLogger(kitlog.NewNopLogger())
		drag, err := NewDragCurve(conf.Drag.Segments, conf.Drag.Floor)
		if err != nil {
			t.Fatal(err)
		}
		m := a.Model()
		a.model = NewForceModel(m.Planet(), m.Atmosphere(), drag, nanThrust{a.program}, Curved, conf.Vehicle.Area(), conf.Rotation)

		done := make(chan error)
		go func() {
			_, err := a.Propagate()
			done <- err
		}()
		select {
		case err = <-done:
		case <-time.After(10 * time.Second):
			t.Fatalf("initial step %f: the step size never underflowed", initial)
		}
		if !errors.Is(err, ErrStepSizeUnderflow) {
			t.Fatalf("initial step %f: expected a step size underflow, got %v", initial, err)
		}
		if a.Status() != Failed {
			t.Fatalf("initial step %f: unexpected status %s", initial, a.Status())
		}
	}
}

func TestAlreadyPropagated(t *testing.T) {
	conf := ScenarioA()
	conf.Simulation.Horizon = 1
	a, err := NewAscent(conf, ExportConfig{})
	if err != nil {
		t.Fatal(err)
	}
	a.SetLogger(kitlog.NewNopLogger())
	if a.Status() != NotStarted {
		t.Fatal("new ascent already started")
	}
	if _, err := a.Propagate(); err != nil {
		t.Fatal(err)
	}
	if a.Status() != Completed {
		t.Fatalf("unexpected status %s", a.Status())
	}
	if _, err := a.Propagate(); !errors.Is(err, ErrAlreadyPropagated) {
		t.Fatalf("expected ErrAlreadyPropagated, got %v", err)
	}
}

func TestInvalidAscent(t *testing.T) {
	conf := ScenarioA()
	conf.Simulation.Horizon = -1
	if _, err := NewAscent(conf, ExportConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected an invalid configuration, got %v", err)
	}
}

func TestSchemeFromString(t *testing.T) {
	for _, s := range []Scheme{Dopri45, RK4, Euler} {
		if got, err := SchemeFromString(s.String()); err != nil || got != s {
			t.Fatalf("%s did not round trip", s)
		}
	}
	if _, err := SchemeFromString("leapfrog"); err == nil {
		t.Fatal("unknown scheme accepted")
	}
}

func TestLogLevels(t *testing.T) {
	conf := ScenarioA()
	conf.Simulation.Horizon = 1
	a, err := NewAscent(conf, ExportConfig{})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	a.SetLogger(level.NewFilter(kitlog.NewLogfmtLogger(&buf), level.AllowInfo()))
	if _, err := a.Propagate(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "level=debug") {
		t.Fatalf("status entries not filtered:\n%s", out)
	}
	if !strings.Contains(out, "level=info") || !strings.Contains(out, "ascent=scenario-a") || !strings.Contains(out, "steps=10") {
		t.Fatalf("summary entry missing:\n%s", out)
	}
}
