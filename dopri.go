package spacez

import (
	"math"
)

// Dormand-Prince 5(4) coefficients (Hairer, Nørsett and Wanner, Solving ODEs I).
const (
	dpC2 = 1 / 5.
	dpC3 = 3 / 10.
	dpC4 = 4 / 5.
	dpC5 = 8 / 9.

	dpA21 = 1 / 5.
	dpA31 = 3 / 40.
	dpA32 = 9 / 40.
	dpA41 = 44 / 45.
	dpA42 = -56 / 15.
	dpA43 = 32 / 9.
	dpA51 = 19372 / 6561.
	dpA52 = -25360 / 2187.
	dpA53 = 64448 / 6561.
	dpA54 = -212 / 729.
	dpA61 = 9017 / 3168.
	dpA62 = -355 / 33.
	dpA63 = 46732 / 5247.
	dpA64 = 49 / 176.
	dpA65 = -5103 / 18656.
	dpA71 = 35 / 384.
	dpA73 = 500 / 1113.
	dpA74 = 125 / 192.
	dpA75 = -2187 / 6784.
	dpA76 = 11 / 84.

	// Difference between the 5th and the embedded 4th order weights.
	dpE1 = 71 / 57600.
	dpE3 = -71 / 16695.
	dpE4 = 71 / 1920.
	dpE5 = -17253 / 339200.
	dpE6 = 22 / 525.
	dpE7 = -1 / 40.

	// Continuous extension of order 5.
	dpD1 = -12715105075 / 11282082432.
	dpD3 = 87487479700 / 32700410799.
	dpD4 = -10690763975 / 1880347072.
	dpD5 = 701980252875 / 199316789632.
	dpD6 = -1453857185 / 822651844.
	dpD7 = 69997945 / 29380423.

	dpSafety    = 0.9
	dpMinFactor = 0.2
	dpMaxFactor = 5.0
)

// rhsFunc writes the derivative of y at t into dy.
type rhsFunc func(t float64, y, dy []float64)

// dopri is an embedded Runge-Kutta stepper with error control and dense output.
type dopri struct {
	f          rhsFunc
	atol, rtol float64
	n          int
	// Stage buffers, reused between attempts.
	k      [7][]float64
	ytmp   []float64
	y1     []float64
	errVec []float64
	// Dense output of the last accepted step.
	rcont      [5][]float64
	t0, hDense float64
}

func newDopri(f rhsFunc, n int, atol, rtol float64) *dopri {
	d := &dopri{f: f, atol: atol, rtol: rtol, n: n}
	for i := range d.k {
		d.k[i] = make([]float64, n)
	}
	for i := range d.rcont {
		d.rcont[i] = make([]float64, n)
	}
	d.ytmp = make([]float64, n)
	d.y1 = make([]float64, n)
	d.errVec = make([]float64, n)
	return d
}

// attempt performs one step of size h from (t, y), where k1 = f(t, y) has already been stored in k[0].
// When endsOnBreak is set, the stages at the end of the step are evaluated just before t+h so that
// a discontinuity starting at t+h does not leak into the step. It returns the error norm, the new
// state being in y1 and f(t+h, y1) in k[6].
func (d *dopri) attempt(t float64, y []float64, h float64, endsOnBreak bool) float64 {
	k := d.k
	tEnd := t + h
	if endsOnBreak {
		tEnd = math.Nextafter(t+h, t)
	}
	for i := 0; i < d.n; i++ {
		d.ytmp[i] = y[i] + h*dpA21*k[0][i]
	}
	d.f(t+dpC2*h, d.ytmp, k[1])
	for i := 0; i < d.n; i++ {
		d.ytmp[i] = y[i] + h*(dpA31*k[0][i]+dpA32*k[1][i])
	}
	d.f(t+dpC3*h, d.ytmp, k[2])
	for i := 0; i < d.n; i++ {
		d.ytmp[i] = y[i] + h*(dpA41*k[0][i]+dpA42*k[1][i]+dpA43*k[2][i])
	}
	d.f(t+dpC4*h, d.ytmp, k[3])
	for i := 0; i < d.n; i++ {
		d.ytmp[i] = y[i] + h*(dpA51*k[0][i]+dpA52*k[1][i]+dpA53*k[2][i]+dpA54*k[3][i])
	}
	d.f(t+dpC5*h, d.ytmp, k[4])
	for i := 0; i < d.n; i++ {
		d.ytmp[i] = y[i] + h*(dpA61*k[0][i]+dpA62*k[1][i]+dpA63*k[2][i]+dpA64*k[3][i]+dpA65*k[4][i])
	}
	d.f(tEnd, d.ytmp, k[5])
	for i := 0; i < d.n; i++ {
		d.y1[i] = y[i] + h*(dpA71*k[0][i]+dpA73*k[2][i]+dpA74*k[3][i]+dpA75*k[4][i]+dpA76*k[5][i])
	}
	d.f(tEnd, d.y1, k[6])

	// Error estimate, RMS norm scaled by the mixed tolerance.
	sum := 0.
	for i := 0; i < d.n; i++ {
		d.errVec[i] = h * (dpE1*k[0][i] + dpE3*k[2][i] + dpE4*k[3][i] + dpE5*k[4][i] + dpE6*k[5][i] + dpE7*k[6][i])
		sc := d.atol + d.rtol*math.Max(math.Abs(y[i]), math.Abs(d.y1[i]))
		r := d.errVec[i] / sc
		sum += r * r
	}
	return math.Sqrt(sum / float64(d.n))
}

// prepareDense stores the continuous extension of the step which was just accepted.
func (d *dopri) prepareDense(t float64, y []float64, h float64) {
	k := d.k
	for i := 0; i < d.n; i++ {
		ydiff := d.y1[i] - y[i]
		bspl := h*k[0][i] - ydiff
		d.rcont[0][i] = y[i]
		d.rcont[1][i] = ydiff
		d.rcont[2][i] = bspl
		d.rcont[3][i] = ydiff - h*k[6][i] - bspl
		d.rcont[4][i] = h * (dpD1*k[0][i] + dpD3*k[2][i] + dpD4*k[3][i] + dpD5*k[4][i] + dpD6*k[5][i] + dpD7*k[6][i])
	}
	d.t0 = t
	d.hDense = h
}

// dense returns the interpolated state at time t within the last accepted step.
func (d *dopri) dense(t float64) []float64 {
	θ := (t - d.t0) / d.hDense
	θ1 := 1 - θ
	y := make([]float64, d.n)
	for i := 0; i < d.n; i++ {
		y[i] = d.rcont[0][i] + θ*(d.rcont[1][i]+θ1*(d.rcont[2][i]+θ*(d.rcont[3][i]+θ1*d.rcont[4][i])))
	}
	return y
}

// stepFactor returns the step size multiplier for the provided error norm.
func stepFactor(errNorm float64, allowGrowth bool) float64 {
	factor := dpMaxFactor
	if errNorm > 0 {
		factor = dpSafety * math.Pow(errNorm, -1/5.)
	}
	max := dpMaxFactor
	if !allowGrowth {
		max = 1
	}
	return math.Min(max, math.Max(dpMinFactor, factor))
}

// initialStep estimates a first step size (Hairer's algorithm), where f0 = f(t, y).
func initialStep(f rhsFunc, t float64, y, f0 []float64, atol, rtol float64) float64 {
	n := len(y)
	norm := func(v []float64) float64 {
		sum := 0.
		for i := 0; i < n; i++ {
			r := v[i] / (atol + rtol*math.Abs(y[i]))
			sum += r * r
		}
		return math.Sqrt(sum / float64(n))
	}
	d0, d1 := norm(y), norm(f0)
	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	y1 := make([]float64, n)
	for i := 0; i < n; i++ {
		y1[i] = y[i] + h0*f0[i]
	}
	f1 := make([]float64, n)
	f(t+h0, y1, f1)
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		diff[i] = f1[i] - f0[i]
	}
	d2 := norm(diff) / h0
	var h1 float64
	if math.Max(d1, d2) <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/math.Max(d1, d2), 1/5.)
	}
	return math.Min(100*h0, h1)
}

// integrateAdaptive propagates with the Dormand-Prince scheme. Steps never cross a guidance breakpoint,
// and the samples at the evaluation times are taken from the continuous extension.
func (a *Ascent) integrateAdaptive() {
	ic := a.conf.Integrator
	horizon := a.conf.Simulation.Horizon
	f := func(t float64, y, dy []float64) {
		a.model.Acceleration(t, StateFromVector(y)).into(dy)
	}
	stops := make([]float64, 0, 8)
	for _, b := range a.program.Breakpoints() {
		if b < horizon {
			stops = append(stops, b)
		}
	}
	stops = append(stops, horizon)

	solver := newDopri(f, stateSize, ic.AbsTol, ic.RelTol)
	y := a.state.Vector()
	f(a.t, y, solver.k[0])
	h := ic.InitialStep
	if h <= 0 {
		h = initialStep(f, a.t, y, solver.k[0], ic.AbsTol, ic.RelTol)
	}
	h = math.Max(h, ic.MinStep)
	// A step which no longer advances the time is an underflow, whatever the minimum step.
	underflow := func(h float64) bool {
		return !(h >= ic.MinStep) || a.t+h == a.t
	}
	next := 0
	rejected := false
	for a.t < horizon {
		for next < len(stops)-1 && stops[next] <= a.t {
			next++
		}
		stop := stops[next]
		if ic.MaxStep > 0 && h > ic.MaxStep {
			h = ic.MaxStep
		}
		endsOnStop := false
		if a.t+1.01*h >= stop {
			// Stretch or clip the step to land exactly on the breakpoint.
			h = stop - a.t
			endsOnStop = true
		}
		if underflow(h) {
			a.fail(a.t, a.state, ErrStepSizeUnderflow)
			return
		}
		errNorm := solver.attempt(a.t, y, h, endsOnStop)
		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) || errNorm > 1 {
			factor := dpMinFactor
			if !math.IsNaN(errNorm) && !math.IsInf(errNorm, 0) {
				factor = stepFactor(errNorm, false)
			}
			h *= factor
			rejected = true
			if underflow(h) {
				a.fail(a.t, a.state, ErrStepSizeUnderflow)
				return
			}
			continue
		}

		t0, s0 := a.t, a.state
		t1 := t0 + h
		if endsOnStop {
			t1 = stop
		}
		solver.prepareDense(t0, y, h)
		interp := func(t float64) State { return StateFromVector(solver.dense(t)) }
		s1 := StateFromVector(solver.y1)
		if !a.accept(t0, s0, t1, s1, interp) {
			return
		}
		copy(y, solver.y1)
		if endsOnStop {
			// The derivative changes at a breakpoint: the last stage cannot be reused.
			f(a.t, y, solver.k[0])
		} else {
			copy(solver.k[0], solver.k[6])
		}
		h *= stepFactor(errNorm, !rejected)
		rejected = false
	}
}
