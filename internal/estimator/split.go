package estimator

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// DefaultSeed and DefaultTestFraction give a reproducible 80/20 split.
const (
	DefaultSeed         = 42
	DefaultTestFraction = 0.2
)

// Split shuffles the indexes [0, n) with a fixed seed and partitions them
// into train and test sets. The test set holds ceil(n*testFraction) rows
// but never every row; with fewer than two rows everything is train.
func Split(n int, testFraction float64, seed int64) (train, test []int) {
	if n <= 0 {
		return nil, nil
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	if n < 2 || testFraction <= 0 {
		return perm, nil
	}

	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest >= n {
		nTest = n - 1
	}
	return perm[nTest:], perm[:nTest]
}

// Rows copies the given rows of x into a new matrix.
func Rows(x mat.Matrix, idx []int) *mat.Dense {
	if len(idx) == 0 {
		return nil
	}
	_, n := x.Dims()
	out := mat.NewDense(len(idx), n, nil)
	for i, r := range idx {
		for j := 0; j < n; j++ {
			out.Set(i, j, x.At(r, j))
		}
	}
	return out
}

// Values returns a single-column matrix of y at the given indexes.
func Values(y []float64, idx []int) *mat.Dense {
	if len(idx) == 0 {
		return nil
	}
	out := mat.NewDense(len(idx), 1, nil)
	for i, r := range idx {
		out.Set(i, 0, y[r])
	}
	return out
}
