// Package estimator fits, scores and persists the regression model that
// maps feature rows to AQI.
package estimator

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultLambda is the L2 penalty used when none is configured.
const DefaultLambda = 1.0

// Ridge is an L2-regularised linear regression with an unpenalised
// intercept. The exported fields are its persisted form.
type Ridge struct {
	Columns   []string  `json:"feature_cols"`
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
	Lambda    float64   `json:"lambda"`
}

// NewRidge returns an unfitted model over the given feature columns.
func NewRidge(columns []string, lambda float64) (*Ridge, error) {
	if lambda < 0 {
		return nil, ErrNegativeLambda
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Ridge{Columns: cols, Lambda: lambda}, nil
}

// Fit solves (XᵀX + λI)β = Xᵀy on mean-centred data, then recovers the
// intercept from the means. y must be a single column.
func (r *Ridge) Fit(x, y mat.Matrix) error {
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}
	if r.Lambda < 0 {
		return ErrNegativeLambda
	}

	m, n := x.Dims()
	if m == 0 || n == 0 {
		return ErrNoTrainingMatrix
	}
	ym, _ := y.Dims()
	if ym != m {
		return fmt.Errorf("training data has %d rows and target has %d rows, %w", m, ym, ErrTargetLenMismatch)
	}
	if len(r.Columns) > 0 && len(r.Columns) != n {
		return fmt.Errorf("training data has %d columns and model declares %d, %w", n, len(r.Columns), ErrFeatureLenMismatch)
	}

	xMean := make([]float64, n)
	for j := 0; j < n; j++ {
		xMean[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	yCol := mat.Col(nil, 0, y)
	yMean := stat.Mean(yCol, nil)

	xc := mat.NewDense(m, n, nil)
	xc.Apply(func(i, j int, v float64) float64 { return v - xMean[j] }, x)
	for i := range yCol {
		yCol[i] -= yMean
	}
	yc := mat.NewVecDense(m, yCol)

	var gram mat.SymDense
	gram.SymOuterK(1, xc.T())
	for j := 0; j < n; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Lambda)
	}

	var rhs mat.VecDense
	rhs.MulVec(xc.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return ErrSingularMatrix
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return fmt.Errorf("unable to solve normal equations, %w", err)
	}

	r.Coef = make([]float64, n)
	r.Intercept = yMean
	for j := 0; j < n; j++ {
		r.Coef[j] = beta.AtVec(j)
		r.Intercept -= r.Coef[j] * xMean[j]
	}
	return nil
}

// Predict returns one estimate per row of x.
func (r *Ridge) Predict(x mat.Matrix) ([]float64, error) {
	if r.Coef == nil {
		return nil, ErrNotFitted
	}
	if x == nil {
		return nil, ErrNoDesignMatrix
	}

	m, n := x.Dims()
	if n != len(r.Coef) {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", n, len(r.Coef), ErrFeatureLenMismatch)
	}

	var res mat.VecDense
	res.MulVec(x, mat.NewVecDense(n, r.Coef))

	out := make([]float64, m)
	for i := range out {
		out[i] = res.AtVec(i) + r.Intercept
	}
	return out, nil
}

// Score returns the coefficient of determination of the predictions on x
// against y.
func (r *Ridge) Score(x, y mat.Matrix) (float64, error) {
	if x == nil {
		return 0.0, ErrNoDesignMatrix
	}
	if y == nil {
		return 0.0, ErrNoTargetMatrix
	}

	m, _ := x.Dims()
	ym, _ := y.Dims()
	if m != ym {
		return 0.0, fmt.Errorf("design matrix has %d rows and target has %d rows, %w", m, ym, ErrTargetLenMismatch)
	}

	res, err := r.Predict(x)
	if err != nil {
		return 0.0, err
	}
	return stat.RSquaredFrom(res, mat.Col(nil, 0, y), nil), nil
}

// FeatureColumns returns the columns the model was trained on, in order.
func (r *Ridge) FeatureColumns() []string {
	c := make([]string, len(r.Columns))
	copy(c, r.Columns)
	return c
}
