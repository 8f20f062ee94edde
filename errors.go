package spacez

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when a configuration cannot describe a simulation.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrMassDepleted is returned when the vehicle mass falls below its dry mass.
	ErrMassDepleted = errors.New("mass depleted")
	// ErrStepSizeUnderflow is returned when the adaptive step would drop below the minimum step.
	ErrStepSizeUnderflow = errors.New("step size underflow")
	// ErrNonFinite is returned when the state is no longer finite.
	ErrNonFinite = errors.New("non finite state")
	// ErrAlreadyPropagated is returned when an ascent is propagated twice.
	ErrAlreadyPropagated = errors.New("ascent already propagated")
	// ErrNoOverlap is returned when telemetry and a trajectory share no time span.
	ErrNoOverlap = errors.New("telemetry does not overlap the trajectory")
)

// SimulationError is a terminal failure of an integration run.
type SimulationError struct {
	Status Status
	T      float64 // Time of the failure (depletion time for ErrMassDepleted)
	Step   uint64  // Number of accepted steps before the failure
	State  State   // Last valid state
	Err    error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("%s: %s at t=%.6f s (step %d, %s)", e.Status, e.Err, e.T, e.Step, e.State)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}
