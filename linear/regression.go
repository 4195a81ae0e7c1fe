// Package linear は閉形式で解く線形回帰モデル（OLS と Ridge）を提供する。
package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/metrics"
	"github.com/YuminosukeSato/treestack/pkg/errors"
)

// LinearRegression は最小二乗法による線形回帰モデル。
// 計画行列の薄い SVD で解くため、ランク落ちした X でもノルム最小解を返す。
type LinearRegression struct {
	model.BaseEstimator

	FitIntercept bool

	coef      []float64
	intercept float64
	rank      int
	singular  []float64
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LinearRegression{FitIntercept: cfg.fitIntercept}
}

// Fit はモデルを訓練データで学習させる
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	_, p, err := model.ValidateFitInput("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}
	lr.Reset()

	design := designMatrix(X, lr.FitIntercept)
	w, rank, singular, err := lstsq("LinearRegression.Fit", design, targetVec(y))
	if err != nil {
		return err
	}

	lr.intercept, lr.coef = splitWeights(w, lr.FitIntercept)
	lr.rank = rank
	lr.singular = singular
	lr.SetFittedWith(p)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}
	if _, err := model.ValidatePredictInput("LinearRegression.Predict", X, lr.NFeatures()); err != nil {
		return nil, err
	}
	return linearPredict(X, lr.coef, lr.intercept), nil
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	if !lr.IsFitted() {
		return 0, errors.NewNotFittedError("LinearRegression", "Score")
	}
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Matrix(y, pred)
}

// Coef は学習された係数のコピーを返す
func (lr *LinearRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept
}

// Rank は計画行列の実効ランクを返す
func (lr *LinearRegression) Rank() int {
	return lr.rank
}

// Singular は計画行列の特異値（降順）を返す
func (lr *LinearRegression) Singular() []float64 {
	return append([]float64(nil), lr.singular...)
}

// Clone implements model.Regressor.
func (lr *LinearRegression) Clone() model.Regressor {
	c := *lr
	c.coef = append([]float64(nil), lr.coef...)
	c.singular = append([]float64(nil), lr.singular...)
	return &c
}

// GetParams returns the model's hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.FitIntercept,
	}
}

// SetParams sets the model's hyperparameters.
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for _, k := range model.SortedKeys(params) {
		switch k {
		case "fit_intercept":
			v, err := model.BoolParam(k, params[k])
			if err != nil {
				return err
			}
			lr.FitIntercept = v
		default:
			return model.UnknownParam(k, params[k])
		}
	}
	return nil
}
