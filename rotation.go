package spacez

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// R2 returns the planar rotation which maps a vector expressed in a frame rotated by θ
// (clockwise, about the out of plane axis) back into the reference frame.
func R2(θ float64) *mat.Dense {
	s, c := math.Sincos(θ)
	return mat.NewDense(2, 2, []float64{c, s, -s, c})
}

// MxV22 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV22(m *mat.Dense, v []float64) []float64 {
	var rVec mat.VecDense
	rVec.MulVec(m, mat.NewVecDense(2, []float64{v[0], v[1]}))
	return []float64{rVec.AtVec(0), rVec.AtVec(1)}
}

// LocalVertical returns the angle α between the launch vertical and the local vertical at
// the provided launch frame position, and the distance r to the center of the body of radius R.
func LocalVertical(x, y, R float64) (α, r float64) {
	return math.Atan2(x, R+y), hypot(x, R+y)
}

// Local2Launch converts a vector expressed in the local horizontal/vertical frame at α into the launch frame.
func Local2Launch(α float64, vLocal []float64) []float64 {
	return MxV22(R2(α), vLocal)
}

// Launch2Local converts a vector expressed in the launch frame into the local horizontal/vertical frame at α.
func Launch2Local(α float64, v []float64) []float64 {
	return MxV22(R2(-α), v)
}
