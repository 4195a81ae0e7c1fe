// Package metrics は回帰モデルの評価指標を提供する。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/treestack/pkg/errors"
)

// checkPair は2つのベクトルの長さを検証する
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.IsEmpty() {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.IsEmpty() || yPred.Len() != n {
		got := 0
		if !yPred.IsEmpty() {
			got = yPred.Len()
		}
		return 0, errors.NewDimensionError(op, n, got, 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// sumSquares は全変動（TSS）と残差変動（RSS）を返す
func sumSquares(yTrue, yPred *mat.VecDense) (tss, rss float64) {
	t := yTrue.RawVector()
	yMean := meanStrided(t.Data, t.Inc, yTrue.Len())
	for i := 0; i < yTrue.Len(); i++ {
		yt := yTrue.AtVec(i)
		d := yt - yPred.AtVec(i)
		tss += (yt - yMean) * (yt - yMean)
		rss += d * d
	}
	return tss, rss
}

func meanStrided(data []float64, inc, n int) float64 {
	if inc == 1 {
		return stat.Mean(data[:n], nil)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += data[i*inc]
	}
	return s / float64(n)
}

// R2Score は決定係数（R²）を計算する。
// yTrue が定数（全変動が0）の場合、R² は定義できないためエラーを返す。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	if _, err := checkPair("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}
	tss, rss := sumSquares(yTrue, yPred)
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// R2ScoreOrZero は R2Score と同じだが、yTrue が定数の場合にエラーにせず
// 完全一致なら 1、それ以外は 0 を返し、UndefinedMetricWarning を発行する。
// 交差検証の fold が定数ターゲットになる場合に使う。
func R2ScoreOrZero(yTrue, yPred *mat.VecDense) (float64, error) {
	if _, err := checkPair("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}
	tss, rss := sumSquares(yTrue, yPred)
	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("r2", "constant y_true", result))
		return result, nil
	}
	return 1 - rss/tss, nil
}

// MAPE は平均絶対パーセンテージ誤差を計算する。yTrue が0のサンプルは除外する。
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MAPE = (100/n) * Σ|yTrue - yPred|/|yTrue|
	var sum float64
	validCount := 0
	for i := 0; i < n; i++ {
		yt := yTrue.AtVec(i)
		if yt != 0 { // ゼロ除算を避ける
			sum += math.Abs(yt-yPred.AtVec(i)) / math.Abs(yt)
			validCount++
		}
	}
	if validCount == 0 {
		return 0, errors.NewValueError("MAPE", "all yTrue values are zero")
	}
	return (sum / float64(validCount)) * 100, nil
}

// ExplainedVarianceScore は説明分散スコアを計算する
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	t := make([]float64, n)
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		t[i] = yTrue.AtVec(i)
		diff[i] = t[i] - yPred.AtVec(i)
	}
	_, varYTrue := stat.PopMeanVariance(t, nil)
	_, varDiff := stat.PopMeanVariance(diff, nil)
	if varYTrue == 0 {
		return 0, errors.NewValueError("ExplainedVarianceScore", "no variance in yTrue")
	}
	// 説明分散スコア = 1 - Var(yTrue - yPred) / Var(yTrue)
	return 1 - varDiff/varYTrue, nil
}

// toVec は n×1 行列を VecDense に変換する
func toVec(op string, m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	if v, ok := m.(*mat.VecDense); ok {
		return v, nil
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

func matrixPair(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	rTrue, _ := yTrue.Dims()
	rPred, _ := yPred.Dims()
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	t, err := toVec(op, yTrue)
	if err != nil {
		return nil, nil, err
	}
	p, err := toVec(op, yPred)
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

// MSEMatrix は行列形式の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := matrixPair("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// R2Matrix は行列形式の入力に対して R2ScoreOrZero を計算する
func R2Matrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := matrixPair("R2Matrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return R2ScoreOrZero(t, p)
}

// MSESlice は []float64 同士のMSE。長さの検証は呼び出し側で済んでいるものとする。
func MSESlice(yTrue, yPred []float64) float64 {
	d := make([]float64, len(yTrue))
	floats.SubTo(d, yTrue, yPred)
	return floats.Dot(d, d) / float64(len(d))
}
