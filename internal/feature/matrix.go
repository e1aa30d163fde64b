package feature

import (
	"gonum.org/v1/gonum/mat"
)

// SelectColumns returns the requested columns that exist in the feature
// table, in the requested order. Unknown names are dropped.
func SelectColumns(requested []string) []string {
	cols := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, c := range requested {
		if !IsColumn(c) || seen[c] {
			continue
		}
		seen[c] = true
		cols = append(cols, c)
	}
	return cols
}

// Matrix builds the design matrix for rows over the available subset of
// columns. Missing values are filled with 0. The returned matrix is nil
// when there are no rows or no usable columns.
func Matrix(rows []Row, columns []string) (*mat.Dense, []string) {
	cols := SelectColumns(columns)
	if len(rows) == 0 || len(cols) == 0 {
		return nil, cols
	}

	data := make([]float64, 0, len(rows)*len(cols))
	for i := range rows {
		for _, c := range cols {
			v, _ := rows[i].Value(c)
			data = append(data, v)
		}
	}
	return mat.NewDense(len(rows), len(cols), data), cols
}
