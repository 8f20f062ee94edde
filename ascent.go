package spacez

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Status is the lifecycle state of an Ascent.
type Status uint8

const (
	// NotStarted is the status of an ascent which has not been propagated yet.
	NotStarted Status = iota
	// Integrating is the status during the propagation.
	Integrating
	// Completed is the status of an ascent which reached its horizon.
	Completed
	// Failed is the status of an ascent which stopped on an error.
	Failed
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Integrating:
		return "integrating"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	panic("cannot stringify unknown status")
}

// Scheme is an integration scheme.
type Scheme uint8

const (
	// Dopri45 is the adaptive Dormand-Prince 5(4) scheme.
	Dopri45 Scheme = iota + 1
	// RK4 is the classic fixed step Runge-Kutta scheme.
	RK4
	// Euler is the explicit fixed step Euler scheme.
	Euler
)

func (s Scheme) String() string {
	switch s {
	case Dopri45:
		return "dopri45"
	case RK4:
		return "rk4"
	case Euler:
		return "euler"
	}
	panic("cannot stringify unknown scheme")
}

// SchemeFromString returns the integration scheme from its name.
func SchemeFromString(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "dopri45", "":
		return Dopri45, nil
	case "rk4":
		return RK4, nil
	case "euler":
		return Euler, nil
	}
	return 0, fmt.Errorf("unknown scheme `%s`", name)
}

// Ascent integrates one flight from ignition to the horizon. An Ascent may only be propagated once.
type Ascent struct {
	Name     string
	conf     Config
	model    *ForceModel
	program  *Program
	scheme   Scheme
	logger   kitlog.Logger
	sinks    []SampleSink
	export   ExportConfig
	histChan chan Sample
	wg       sync.WaitGroup
	// Integration state, owned by the stepping loop.
	status    Status
	t         float64
	state     State
	step      uint64
	evalTimes []float64
	nextEval  int
	samples   []Sample
	err       error
	floor     float64 // mass below which the vehicle is depleted
	// Fixed step grid.
	dt     float64
	nSteps uint64
}

// NewAscent returns a new Ascent for this configuration. Samples are published to the provided sinks
// as they are produced, and streamed to file when the export configuration requires it.
func NewAscent(conf Config, export ExportConfig, sinks ...SampleSink) (*Ascent, error) {
	model, program, err := BuildForceModel(conf)
	if err != nil {
		return nil, err
	}
	scheme, _ := SchemeFromString(conf.Integrator.Scheme)
	name := conf.Name
	if name == "" {
		name = "ascent"
	}
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	a := &Ascent{
		Name:      name,
		conf:      conf,
		model:     model,
		program:   program,
		scheme:    scheme,
		logger:    kitlog.With(klog, "ascent", name),
		sinks:     sinks,
		export:    export,
		evalTimes: EvaluationTimes(0, conf.Simulation.Horizon, conf.Simulation.Samples),
		floor:     conf.Vehicle.DryMass,
	}
	a.state = a.InitialState()
	if scheme != Dopri45 {
		a.nSteps = uint64(math.Ceil(conf.Simulation.Horizon/conf.Integrator.Step - 1e-9))
		if a.nSteps == 0 {
			a.nSteps = 1
		}
		a.dt = conf.Simulation.Horizon / float64(a.nSteps)
	}
	return a, nil
}

// SetLogger replaces the logger of this ascent. The ascent name is added to every entry.
func (a *Ascent) SetLogger(logger kitlog.Logger) {
	a.logger = kitlog.With(logger, "ascent", a.Name)
}

// Status returns the status of this ascent.
func (a *Ascent) Status() Status {
	return a.status
}

// Model returns the force model used by this ascent.
func (a *Ascent) Model() *ForceModel {
	return a.model
}

// State returns the current time and state.
func (a *Ascent) State() (float64, State) {
	return a.t, a.state
}

// InitialState returns the state at ignition: at rest on the pad, or moving with the surface
// in the launch azimuth when the rotation velocity is inherited.
func (a *Ascent) InitialState() State {
	s := State{M: a.conf.Vehicle.WetMass}
	rot := a.conf.Rotation
	if rot.Enabled && rot.InheritVelocity {
		s.VX = a.model.Planet().SurfaceSpeed(Deg2rad(rot.Latitude)) * math.Sin(Deg2rad(rot.Azimuth))
	}
	return s
}

// LogStatus logs the current state of the propagation.
func (a *Ascent) LogStatus() {
	level.Debug(a.logger).Log("subsys", "astro", "status", a.status, "t", a.t, "h(m)", a.model.Altitude(a.state), "v(m/s)", a.state.Speed(), "mass(kg)", a.state.M)
}

// Propagate integrates the equations of motion until the horizon or a failure. On failure, the
// trajectory up to the failure is returned along with a *SimulationError.
func (a *Ascent) Propagate() (Trajectory, error) {
	if a.status != NotStarted {
		return Trajectory{}, ErrAlreadyPropagated
	}
	a.status = Integrating
	if !a.export.IsUseless() {
		a.histChan = make(chan Sample, 1000) // a 1k entry buffer
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := StreamSamples(a.export, a.histChan); err != nil {
				level.Error(a.logger).Log("subsys", "export", "err", err)
			}
		}()
	}
	a.LogStatus()
	horizon := a.conf.Simulation.Horizon
	if expected := a.state.M - a.program.PropellantUsed(0, horizon); expected < a.floor {
		level.Warn(a.logger).Log("subsys", "prop", "message", "propellant exhausted before horizon", "expected(kg)", expected, "dry(kg)", a.floor)
	}
	start := time.Now()
	initial := a.state

	// Write the first data point.
	if a.evalTimes == nil {
		a.record(0, initial)
	} else {
		a.emitUntil(0, func(float64) State { return initial })
	}
	switch a.scheme {
	case Dopri45:
		a.integrateAdaptive()
	case RK4:
		a.integrateRK4()
	case Euler:
		a.integrateEuler()
	}
	if a.status == Integrating {
		a.status = Completed
	}

	if a.histChan != nil {
		close(a.histChan)
	}
	a.wg.Wait() // Don't return until we're done writing all the files.
	level.Info(a.logger).Log("subsys", "astro", "status", a.status, "steps", a.step, "duration", time.Since(start), "Δv(m/s)", a.state.Speed()-initial.Speed(), "fuel(kg)", initial.M-a.state.M)
	a.LogStatus()
	traj := Trajectory{Samples: a.samples, Status: a.status, Err: a.err}
	if a.err != nil {
		return traj, a.err
	}
	return traj, nil
}

// record stores and publishes one sample.
func (a *Ascent) record(t float64, s State) {
	sample := a.model.sample(t, s)
	a.samples = append(a.samples, sample)
	for _, sink := range a.sinks {
		sink.Publish(sample)
	}
	if a.histChan != nil {
		a.histChan <- sample
	}
}

// emitUntil records the pending evaluation times up to t, with states provided by interp.
func (a *Ascent) emitUntil(t float64, interp func(float64) State) {
	for a.nextEval < len(a.evalTimes) && a.evalTimes[a.nextEval] <= t {
		te := a.evalTimes[a.nextEval]
		a.record(te, interp(te))
		a.nextEval++
	}
}

// depleted returns whether this mass is below the dry mass floor.
func (a *Ascent) depleted(m float64) bool {
	return m <= 0 || m < a.floor
}

// accept checks the step from (t0, s0) to (t1, s1), emits the samples within the step and
// advances the integration state. It returns false if the ascent failed during the step.
func (a *Ascent) accept(t0 float64, s0 State, t1 float64, s1 State, interp func(float64) State) bool {
	if !s1.IsFinite() {
		a.fail(t0, s0, ErrNonFinite)
		return false
	}
	if a.depleted(s1.M) {
		frac := (s0.M - a.floor) / (s0.M - s1.M)
		tDep := t0 + (t1-t0)*math.Min(math.Max(frac, 0), 1)
		sDep := interp(tDep)
		sDep.M = a.floor
		a.emitUntil(tDep, interp)
		if a.evalTimes == nil {
			a.record(tDep, sDep)
		}
		a.fail(tDep, sDep, ErrMassDepleted)
		return false
	}
	a.emitUntil(t1, interp)
	if a.evalTimes == nil {
		a.record(t1, s1)
	}
	a.t, a.state = t1, s1
	a.step++
	return true
}

func (a *Ascent) fail(t float64, s State, err error) {
	a.status = Failed
	a.err = &SimulationError{Status: Failed, T: t, Step: a.step, State: s, Err: err}
	level.Error(a.logger).Log("subsys", "astro", "status", "failed", "t", t, "err", err, "state", s)
}

// linearState returns the linear interpolation of the state between two step ends.
func linearState(t0 float64, s0 State, t1 float64, s1 State) func(float64) State {
	return func(t float64) State {
		if t1 == t0 {
			return s1
		}
		f := (t - t0) / (t1 - t0)
		lerp := func(x0, x1 float64) float64 { return x0 + f*(x1-x0) }
		return State{lerp(s0.X, s1.X), lerp(s0.Y, s1.Y), lerp(s0.VX, s1.VX), lerp(s0.VY, s1.VY), lerp(s0.M, s1.M)}
	}
}

// stepTime returns the time at the end of the k-th fixed step.
func (a *Ascent) stepTime(k uint64) float64 {
	if k >= a.nSteps {
		return a.conf.Simulation.Horizon
	}
	return float64(k) * a.dt
}

// String implements the Stringer interface.
func (a *Ascent) String() string {
	return fmt.Sprintf("%s: %s, %s integration over %.1f s", a.Name, a.model, a.scheme, a.conf.Simulation.Horizon)
}
