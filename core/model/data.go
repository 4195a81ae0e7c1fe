package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/pkg/errors"
)

// ValidateFitInput は学習データの形状と値を検証し、サンプル数と特徴量数を返す。
//
// 以下の場合にエラーを返す:
//   - X または y が nil、あるいは行数が 0
//   - y が列ベクトルでない
//   - X と y の行数が一致しない
//   - NaN や Inf を含む（欠損値の処理はモデルの責務ではない）
func ValidateFitInput(op string, X, y mat.Matrix) (int, int, error) {
	if X == nil || y == nil {
		return 0, 0, errors.NewValueError(op, "X and y must not be nil")
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector (n_samples × 1)")
	}
	if yRows != n {
		return 0, 0, errors.NewDimensionError(op, n, yRows, 0)
	}
	if err := errors.CheckMatrix(op+".X", X, n, p); err != nil {
		return 0, 0, err
	}
	if err := errors.CheckMatrix(op+".y", y, n, 1); err != nil {
		return 0, 0, err
	}
	return n, p, nil
}

// ValidatePredictInput は予測データを検証し、サンプル数を返す。
// nFeatures は学習時の特徴量数。
func ValidatePredictInput(op string, X mat.Matrix, nFeatures int) (int, error) {
	if X == nil {
		return 0, errors.NewValueError(op, "X must not be nil")
	}
	n, p := X.Dims()
	if n == 0 {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if p != nFeatures {
		return 0, errors.NewDimensionError(op, nFeatures, p, 1)
	}
	if err := errors.CheckMatrix(op+".X", X, n, p); err != nil {
		return 0, err
	}
	return n, nil
}

// Rows は X を行ごとのスライスにコピーする
func Rows(X mat.Matrix) [][]float64 {
	n, p := X.Dims()
	rows := make([][]float64, n)
	backing := make([]float64, n*p)
	for i := 0; i < n; i++ {
		rows[i] = backing[i*p : (i+1)*p : (i+1)*p]
		for j := 0; j < p; j++ {
			rows[i][j] = X.At(i, j)
		}
	}
	return rows
}

// Columns は X を列ごとのスライスにコピーする
func Columns(X mat.Matrix) [][]float64 {
	n, p := X.Dims()
	cols := make([][]float64, p)
	for j := 0; j < p; j++ {
		cols[j] = make([]float64, n)
		for i := 0; i < n; i++ {
			cols[j][i] = X.At(i, j)
		}
	}
	return cols
}

// Targets は列ベクトル y を []float64 にコピーする
func Targets(y mat.Matrix) []float64 {
	n, _ := y.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = y.At(i, 0)
	}
	return out
}

// ColumnVector は v を n × 1 の行列として返す。v はそのまま内部バッファになる。
func ColumnVector(v []float64) *mat.Dense {
	return mat.NewDense(len(v), 1, v)
}

// SelectRows は idx の順に X の行を取り出した新しい行列を返す。idx は空であってはならない。
func SelectRows(X mat.Matrix, idx []int) *mat.Dense {
	_, p := X.Dims()
	out := mat.NewDense(len(idx), p, nil)
	for i, r := range idx {
		for j := 0; j < p; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}

// SelectColumns は cols の順に X の列を取り出した新しい行列を返す
func SelectColumns(X mat.Matrix, cols []int) *mat.Dense {
	n, _ := X.Dims()
	out := mat.NewDense(n, len(cols), nil)
	for i := 0; i < n; i++ {
		for k, c := range cols {
			out.Set(i, k, X.At(i, c))
		}
	}
	return out
}
