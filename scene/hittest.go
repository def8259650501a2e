package scene

import (
	"gonum.org/v1/gonum/mat"
)

// hit reports whether canvas point (x, y) falls inside the visible source
// region of n, honouring rotation, flip and zoom.
func hit(n *Node, x, y float64) bool {
	size := n.SourceSize()
	if size.W <= 0 || size.H <= 0 || n.ScaleX == 0 || n.ScaleY == 0 {
		return false
	}

	m := localToCanvas(n)

	fwd := mat.NewDense(3, 3, []float64{
		m[0], m[1], m[2],
		m[3], m[4], m[5],
		0, 0, 1,
	})
	var inv mat.Dense
	if err := inv.Inverse(fwd); err != nil {
		return false
	}

	p := mat.NewVecDense(3, []float64{x, y, 1})
	var src mat.VecDense
	src.MulVec(&inv, p)

	u, v := src.AtVec(0), src.AtVec(1)
	return u >= 0 && u < size.W && v >= 0 && v < size.H
}
