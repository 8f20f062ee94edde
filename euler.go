package spacez

import "math"

// integrateEuler propagates with the explicit Euler scheme on a fixed grid.
func (a *Ascent) integrateEuler() {
	h := a.dt
	for k := uint64(1); k <= a.nSteps; k++ {
		t0, s0 := a.t, a.state
		t1 := a.stepTime(k)
		var s1 State
		if a.conf.Integrator.PitchProjected {
			s1 = a.pitchProjectedStep(t0, s0, h)
		} else {
			d := a.model.Acceleration(t0, s0)
			s1 = State{
				X:  s0.X + h*d.VX,
				Y:  s0.Y + h*d.VY,
				VX: s0.VX + h*d.AX,
				VY: s0.VY + h*d.AY,
				M:  s0.M + h*d.MDot,
			}
		}
		if !a.accept(t0, s0, t1, s1, linearState(t0, s0, t1, s1)) {
			return
		}
	}
}

// pitchProjectedStep advances the speed by the norm of the acceleration and moves the vehicle along the
// commanded pitch. This is a first order approximation: the flight path angle is assumed to equal the pitch.
func (a *Ascent) pitchProjectedStep(t float64, s State, h float64) State {
	F := a.model.Evaluate(t, s)
	sinθ, cosθ := math.Sincos(F.Command.Pitch)
	v := s.Speed() + F.Derivative.Accel()*h
	return State{
		X:  s.X + v*h*cosθ,
		Y:  s.Y + v*h*sinθ,
		VX: v * cosθ,
		VY: v * sinθ,
		M:  s.M + h*F.Derivative.MDot,
	}
}
