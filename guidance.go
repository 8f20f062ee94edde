package spacez

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/integrate/quad"
)

// PitchTrigger defines what drives the pitch program.
type PitchTrigger uint8

const (
	// TimeTrigger changes the pitch at fixed times after ignition.
	TimeTrigger PitchTrigger = iota + 1
	// AltitudeTrigger rotates the pitch linearly with the altitude fraction between two altitudes.
	AltitudeTrigger
)

func (p PitchTrigger) String() string {
	switch p {
	case TimeTrigger:
		return "time"
	case AltitudeTrigger:
		return "altitude"
	}
	panic("cannot stringify unknown pitch trigger")
}

// PitchTriggerFromString returns the pitch trigger from its name.
func PitchTriggerFromString(name string) (PitchTrigger, error) {
	switch strings.ToLower(name) {
	case "time", "":
		return TimeTrigger, nil
	case "altitude":
		return AltitudeTrigger, nil
	}
	return 0, fmt.Errorf("unknown pitch trigger `%s`", name)
}

// ThrustSegment defines the propulsion mode from Start (in seconds) until the next segment.
// The mass flow is derived from the thrust and the Isp, so both must be set per segment.
type ThrustSegment struct {
	Start  float64 `mapstructure:"start" json:"start"`
	Thrust float64 `mapstructure:"thrust" json:"thrust"` // N
	Isp    float64 `mapstructure:"isp" json:"isp"`       // s
}

// PitchSegment defines the pitch from Start (in seconds) as Angle + Rate*(t-Start), in degrees.
type PitchSegment struct {
	Start float64 `mapstructure:"start" json:"start"`
	Angle float64 `mapstructure:"angle" json:"angle"`
	Rate  float64 `mapstructure:"rate" json:"rate"`
}

// AltitudeTurn defines a gravity turn from Initial degrees at Start meters to Final degrees at End meters.
type AltitudeTurn struct {
	Start   float64 `mapstructure:"start" json:"start"`
	End     float64 `mapstructure:"end" json:"end"`
	Initial float64 `mapstructure:"initial" json:"initial"`
	Final   float64 `mapstructure:"final" json:"final"`
}

// GuidanceCommand is the output of a guidance program.
type GuidanceCommand struct {
	Thrust   float64 // N, never negative
	MassFlow float64 // kg/s, never negative
	Pitch    float64 // rad, above the local horizontal
}

// GuidanceProgram defines a guidance program interface.
type GuidanceProgram interface {
	// Command returns the command at time t (seconds since ignition) and altitude h (meters).
	Command(t, h float64) GuidanceCommand
	// Breakpoints returns the times where the command is discontinuous.
	Breakpoints() []float64
	// MassFlow returns the propellant mass flow at time t.
	MassFlow(t float64) float64
}

// Program is a table driven GuidanceProgram.
type Program struct {
	trigger      PitchTrigger
	thrust       []ThrustSegment
	thrustStarts []float64
	pitch        []PitchSegment
	pitchStarts  []float64
	turn         AltitudeTurn
	minPitch     float64 // degrees
	nozzleArea   float64 // m^2
	g0           float64
	atmo         *Atmosphere
}

// NewProgram returns a new guidance program. The atmosphere is only required when the nozzle exit
// area is not zero, in which case the thrust is reduced by the ambient pressure on the nozzle exit.
func NewProgram(conf GuidanceConfig, g0 float64, atmo *Atmosphere) (*Program, error) {
	trigger, err := PitchTriggerFromString(conf.PitchTrigger)
	if err != nil {
		return nil, fmt.Errorf("%w: guidance.pitch_trigger: %s", ErrInvalidConfig, err)
	}
	if len(conf.Thrust) == 0 {
		return nil, fmt.Errorf("%w: guidance.thrust requires at least one segment", ErrInvalidConfig)
	}
	if g0 <= 0 {
		return nil, fmt.Errorf("%w: g0 must be positive", ErrInvalidConfig)
	}
	if conf.NozzleExitArea < 0 {
		return nil, fmt.Errorf("%w: guidance.nozzle_exit_area must not be negative", ErrInvalidConfig)
	}
	if conf.NozzleExitArea > 0 && atmo == nil {
		panic("atmosphere may not be nil with a non zero nozzle exit area")
	}
	p := &Program{trigger: trigger, turn: conf.Turn, minPitch: conf.MinPitch, nozzleArea: conf.NozzleExitArea, g0: g0, atmo: atmo}

	p.thrust = make([]ThrustSegment, len(conf.Thrust))
	copy(p.thrust, conf.Thrust)
	sort.SliceStable(p.thrust, func(i, j int) bool { return p.thrust[i].Start < p.thrust[j].Start })
	p.thrustStarts = make([]float64, len(p.thrust))
	for i, seg := range p.thrust {
		if seg.Thrust < 0 || seg.Isp < 0 {
			return nil, fmt.Errorf("%w: guidance.thrust[%d] has a negative thrust or Isp", ErrInvalidConfig, i)
		}
		if seg.Thrust > 0 && seg.Isp == 0 {
			return nil, fmt.Errorf("%w: guidance.thrust[%d] thrusts with a zero Isp", ErrInvalidConfig, i)
		}
		p.thrustStarts[i] = seg.Start
	}

	switch trigger {
	case TimeTrigger:
		if len(conf.Pitch) == 0 {
			return nil, fmt.Errorf("%w: guidance.pitch requires at least one segment", ErrInvalidConfig)
		}
		p.pitch = make([]PitchSegment, len(conf.Pitch))
		copy(p.pitch, conf.Pitch)
		sort.SliceStable(p.pitch, func(i, j int) bool { return p.pitch[i].Start < p.pitch[j].Start })
		p.pitchStarts = make([]float64, len(p.pitch))
		for i, seg := range p.pitch {
			p.pitchStarts[i] = seg.Start
		}
	case AltitudeTrigger:
		if conf.Turn.End <= conf.Turn.Start {
			return nil, fmt.Errorf("%w: guidance.turn must end above its start", ErrInvalidConfig)
		}
	}
	return p, nil
}

// Trigger returns the pitch trigger of this program.
func (p *Program) Trigger() PitchTrigger {
	return p.trigger
}

// MassFlow implements the GuidanceProgram interface.
func (p *Program) MassFlow(t float64) float64 {
	seg := p.thrust[segmentIndex(p.thrustStarts, t)]
	if seg.Isp == 0 {
		return 0
	}
	return seg.Thrust / (seg.Isp * p.g0)
}

// PitchDeg returns the clamped pitch in degrees.
func (p *Program) PitchDeg(t, h float64) float64 {
	var angle float64
	switch p.trigger {
	case TimeTrigger:
		seg := p.pitch[segmentIndex(p.pitchStarts, t)]
		angle = seg.Angle + seg.Rate*(t-seg.Start)
	case AltitudeTrigger:
		frac := math.Min(math.Max((h-p.turn.Start)/(p.turn.End-p.turn.Start), 0), 1)
		angle = p.turn.Initial + (p.turn.Final-p.turn.Initial)*frac
	}
	return math.Max(angle, p.minPitch)
}

// Command implements the GuidanceProgram interface.
func (p *Program) Command(t, h float64) GuidanceCommand {
	thrust := p.thrust[segmentIndex(p.thrustStarts, t)].Thrust
	if p.nozzleArea > 0 && thrust > 0 {
		thrust -= p.nozzleArea * p.atmo.Pressure(h)
	}
	return GuidanceCommand{Thrust: math.Max(thrust, 0), MassFlow: p.MassFlow(t), Pitch: Deg2rad(p.PitchDeg(t, h))}
}

// Breakpoints implements the GuidanceProgram interface.
func (p *Program) Breakpoints() []float64 {
	all := make([]float64, 0, len(p.thrustStarts)+len(p.pitchStarts))
	all = append(all, p.thrustStarts...)
	all = append(all, p.pitchStarts...)
	sort.Float64s(all)
	bps := make([]float64, 0, len(all))
	for _, b := range all {
		if b <= 0 || (len(bps) > 0 && bps[len(bps)-1] == b) {
			continue
		}
		bps = append(bps, b)
	}
	return bps
}

// PropellantUsed returns the propellant mass consumed between t0 and t1, integrated by
// Gauss-Legendre quadrature over each interval between breakpoints.
func (p *Program) PropellantUsed(t0, t1 float64) float64 {
	if t1 <= t0 {
		return 0
	}
	edges := []float64{t0}
	for _, b := range p.Breakpoints() {
		if b > t0 && b < t1 {
			edges = append(edges, b)
		}
	}
	edges = append(edges, t1)
	used := 0.
	for i := 0; i < len(edges)-1; i++ {
		a, b := edges[i], edges[i+1]
		// Evaluating strictly inside the interval avoids picking the next segment at its start.
		used += quad.Fixed(p.MassFlow, a, b, 8, quad.Legendre{}, 0)
	}
	return used
}

// String implements the Stringer interface.
func (p *Program) String() string {
	s := fmt.Sprintf("guidance (pitch trigger: %s)", p.trigger)
	for _, seg := range p.thrust {
		s += fmt.Sprintf("\n  t>=%.1f s: %.0f N @ Isp %.0f s (%.2f kg/s)", seg.Start, seg.Thrust, seg.Isp, p.MassFlow(seg.Start))
	}
	return s
}
