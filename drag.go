package spacez

import (
	"fmt"
	"math"
	"sort"
)

// DragSegment defines the drag coefficient above a Mach breakpoint as
// Cx(M) = Cx(Mach) + Slope*(M-Mach) + Curvature*(M-Mach)^2.
// Only the first segment sets its value; the value at each following breakpoint is the
// previous segment's value there, hence the curve is continuous.
type DragSegment struct {
	Mach      float64 `mapstructure:"mach" json:"mach"`
	Value     float64 `mapstructure:"value" json:"value"` // only used for the first segment
	Slope     float64 `mapstructure:"slope" json:"slope"`
	Curvature float64 `mapstructure:"curvature" json:"curvature"`
}

type dragPiece struct {
	M, c0, c1, c2 float64
}

func (p dragPiece) eval(M float64) float64 {
	δ := M - p.M
	return p.c0 + p.c1*δ + p.c2*δ*δ
}

// DragCurve is a piecewise polynomial drag coefficient as a function of the Mach number.
type DragCurve struct {
	pieces []dragPiece
	machs  []float64
	floor  float64
}

// NewDragCurve returns a new continuous drag curve. The floor is the minimum drag coefficient returned.
func NewDragCurve(segments []DragSegment, floor float64) (*DragCurve, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: drag curve requires at least one segment", ErrInvalidConfig)
	}
	sorted := make([]DragSegment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Mach < sorted[j].Mach })
	c := &DragCurve{pieces: make([]dragPiece, len(sorted)), machs: make([]float64, len(sorted)), floor: floor}
	for i, seg := range sorted {
		c0 := seg.Value
		if i > 0 {
			if seg.Mach == sorted[i-1].Mach {
				return nil, fmt.Errorf("%w: duplicate drag breakpoint at Mach %f", ErrInvalidConfig, seg.Mach)
			}
			c0 = c.pieces[i-1].eval(seg.Mach)
		}
		c.pieces[i] = dragPiece{seg.Mach, c0, seg.Slope, seg.Curvature}
		c.machs[i] = seg.Mach
	}
	return c, nil
}

// Cx returns the drag coefficient at the provided Mach number.
func (c *DragCurve) Cx(M float64) float64 {
	return math.Max(c.pieces[segmentIndex(c.machs, M)].eval(M), c.floor)
}

// Breakpoints returns the Mach numbers where the drag law changes.
func (c *DragCurve) Breakpoints() []float64 {
	if len(c.machs) < 2 {
		return nil
	}
	b := make([]float64, len(c.machs)-1)
	copy(b, c.machs[1:])
	return b
}
