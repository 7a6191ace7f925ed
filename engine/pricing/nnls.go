package pricing

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// nnls solves min ||Xb - y|| subject to b >= 0 with the Lawson-Hanson
// active-set method. X is row-major with cols columns. Returns the
// coefficients and whether the active-set loop converged within its
// iteration budget.
func nnls(x []float64, rows, cols int, y []float64) ([]float64, bool) {
	X := mat.NewDense(rows, cols, x)
	yv := mat.NewVecDense(rows, y)

	b := make([]float64, cols)
	passive := make([]bool, cols)

	// Gradient w = X^T (y - Xb).
	grad := func() []float64 {
		res := mat.NewVecDense(rows, nil)
		res.MulVec(X, mat.NewVecDense(cols, b))
		res.SubVec(yv, res)
		w := mat.NewVecDense(cols, nil)
		w.MulVec(X.T(), res)
		return w.RawVector().Data
	}

	const tol = 1e-10
	maxIter := 3 * cols
	for iter := 0; iter < maxIter; iter++ {
		w := grad()
		j, best := -1, tol
		for i := 0; i < cols; i++ {
			if !passive[i] && w[i] > best {
				j, best = i, w[i]
			}
		}
		if j < 0 {
			return b, true
		}
		passive[j] = true

		for {
			z, ok := solvePassive(X, yv, passive)
			if !ok {
				// Rank-deficient passive set: back the variable out.
				passive[j] = false
				return b, true
			}
			neg := false
			alpha := math.Inf(1)
			for i := 0; i < cols; i++ {
				if passive[i] && z[i] <= 0 {
					neg = true
					if a := b[i] / (b[i] - z[i]); a < alpha {
						alpha = a
					}
				}
			}
			if !neg {
				copy(b, z)
				break
			}
			for i := 0; i < cols; i++ {
				if passive[i] {
					b[i] += alpha * (z[i] - b[i])
					if b[i] <= tol {
						b[i] = 0
						passive[i] = false
					}
				}
			}
		}
	}
	return b, false
}

// solvePassive solves unconstrained least squares restricted to the passive
// columns, returning a full-width vector with zeros elsewhere.
func solvePassive(X *mat.Dense, y *mat.VecDense, passive []bool) ([]float64, bool) {
	rows, cols := X.Dims()
	var idx []int
	for i := 0; i < cols; i++ {
		if passive[i] {
			idx = append(idx, i)
		}
	}
	out := make([]float64, cols)
	if len(idx) == 0 {
		return out, true
	}

	sub := mat.NewDense(rows, len(idx), nil)
	for r := 0; r < rows; r++ {
		for c, src := range idx {
			sub.Set(r, c, X.At(r, src))
		}
	}
	var sol mat.Dense
	if err := sol.Solve(sub, y); err != nil {
		return nil, false
	}
	for c, src := range idx {
		out[src] = sol.At(c, 0)
	}
	return out, true
}

// olsClip solves unconstrained least squares and clamps negative
// coefficients to zero. The fallback when the active-set loop stalls.
func olsClip(x []float64, rows, cols int, y []float64) ([]float64, bool) {
	X := mat.NewDense(rows, cols, x)
	var sol mat.Dense
	if err := sol.Solve(X, mat.NewVecDense(rows, y)); err != nil {
		return nil, false
	}
	out := make([]float64, cols)
	for i := 0; i < cols; i++ {
		out[i] = math.Max(0, sol.At(i, 0))
	}
	return out, true
}

// fitStats computes R-squared and RMSE of predictions against observations.
// A constant target fitted exactly scores 1.
func fitStats(y, yhat []float64) (r2, rmse float64) {
	n := float64(len(y))
	if n == 0 {
		return 0, 0
	}
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= n

	var ssRes, ssTot float64
	for i := range y {
		d := y[i] - yhat[i]
		ssRes += d * d
		t := y[i] - mean
		ssTot += t * t
	}
	rmse = math.Sqrt(ssRes / n)
	if ssTot == 0 {
		if ssRes == 0 {
			return 1, 0
		}
		return 0, rmse
	}
	return 1 - ssRes/ssTot, rmse
}
