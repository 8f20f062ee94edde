package spacez

import "github.com/ChristopherRabotin/ode"

// integrateRK4 propagates with the classic Runge-Kutta scheme on a fixed grid.
func (a *Ascent) integrateRK4() {
	ode.NewRK4(0, a.dt, a).Solve() // Blocking.
}

// Stop implements the stop call of the integrator.
func (a *Ascent) Stop(t float64) bool {
	return a.status != Integrating || a.step >= a.nSteps
}

// GetState returns the state for the integrator.
func (a *Ascent) GetState() []float64 {
	return a.state.Vector()
}

// SetState sets the updated state. The integration time is advanced here and not in Stop, so
// the first step is not skipped.
func (a *Ascent) SetState(t float64, s []float64) {
	t0, s0 := a.t, a.state
	t1 := a.stepTime(a.step + 1)
	s1 := StateFromVector(s)
	a.accept(t0, s0, t1, s1, linearState(t0, s0, t1, s1))
}

// Func is the integration function. The guidance command is held at its value at the start of
// the step, as the time provided by the integrator is not used.
func (a *Ascent) Func(t float64, f []float64) []float64 {
	fDot := make([]float64, stateSize)
	a.model.Acceleration(a.t, StateFromVector(f)).into(fDot)
	return fDot
}
