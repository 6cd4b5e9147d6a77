package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// CheckXY validates a training pair: at least one row, y is a column vector
// with one entry per row of X.
func CheckXY(op string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if yRows != rows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	return rows, cols, nil
}

// Column copies column j of m into a new slice.
func Column(m mat.Matrix, j int) []float64 {
	rows, _ := m.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = m.At(i, j)
	}
	return out
}

// Row copies row i of m into dst, allocating when dst is too short.
func Row(m mat.Matrix, i int, dst []float64) []float64 {
	_, cols := m.Dims()
	if cap(dst) < cols {
		dst = make([]float64, cols)
	}
	dst = dst[:cols]
	if rv, ok := m.(mat.RawRowViewer); ok {
		copy(dst, rv.RawRowView(i))
		return dst
	}
	for j := range dst {
		dst[j] = m.At(i, j)
	}
	return dst
}
