package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/metrics"
	"github.com/YuminosukeSato/treestack/pkg/errors"
)

// Ridge は L2 正則化付き線形回帰。
//
// (XᵀX + αI′) w = Xᵀy を LU 分解で解く。切片を学習する場合 I′ の [0,0] 要素は 0 で、
// 切片には罰則をかけない。
//
// 条件数の大きい系でも学習は失敗しない。近特異なら IllConditionedWarning を出して
// LU の解をそのまま使い、完全に特異なら同じ系の SVD 最小二乗解に切り替える。
type Ridge struct {
	model.BaseEstimator

	Alpha        float64
	FitIntercept bool

	coef      []float64
	intercept float64
}

// NewRidge は新しい Ridge モデルを作成する。既定値は alpha=1, fit_intercept=true。
func NewRidge(opts ...Option) *Ridge {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Ridge{Alpha: cfg.alpha, FitIntercept: cfg.fitIntercept}
}

// Fit はモデルを訓練データで学習させる
func (r *Ridge) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Ridge.Fit")

	if r.Alpha < 0 || math.IsNaN(r.Alpha) || math.IsInf(r.Alpha, 0) {
		return errors.NewValidationError("alpha", "must be a finite non-negative number", r.Alpha)
	}
	_, p, err := model.ValidateFitInput("Ridge.Fit", X, y)
	if err != nil {
		return err
	}
	r.Reset()

	design := designMatrix(X, r.FitIntercept)
	_, k := design.Dims()

	// A = XᵀX + αI′
	var A mat.Dense
	A.Mul(design.T(), design)
	start := 0
	if r.FitIntercept {
		start = 1
	}
	for i := start; i < k; i++ {
		A.Set(i, i, A.At(i, i)+r.Alpha)
	}

	// b = Xᵀy
	var b mat.VecDense
	b.MulVec(design.T(), targetVec(y))

	w, err := solveNormal("Ridge.Fit", &A, &b)
	if err != nil {
		return err
	}

	r.intercept, r.coef = splitWeights(w, r.FitIntercept)
	r.SetFittedWith(p)
	return nil
}

// solveNormal は正方行列 A の系を LU で解く。
// 完全に特異な場合は SVD の最小二乗解に切り替える。
func solveNormal(op string, A *mat.Dense, b *mat.VecDense) (*mat.VecDense, error) {
	var w mat.VecDense
	err := w.SolveVec(A, b)
	if err == nil {
		return &w, nil
	}

	var cond mat.Condition
	if !errors.As(err, &cond) {
		return nil, errors.NewModelError(op, "linear solve failed", err)
	}
	if !math.IsInf(float64(cond), 1) {
		// 近特異: LU の解は計算済み
		errors.Warn(errors.NewIllConditionedWarning(op, float64(cond), ""))
		return &w, nil
	}

	errors.Warn(errors.NewIllConditionedWarning(op, float64(cond), "svd"))
	sol, _, _, err := lstsq(op, A, b)
	if err != nil {
		return nil, err
	}
	return sol, nil
}

// Predict は入力データに対する予測を行う
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("Ridge", "Predict")
	}
	if _, err := model.ValidatePredictInput("Ridge.Predict", X, r.NFeatures()); err != nil {
		return nil, err
	}
	return linearPredict(X, r.coef, r.intercept), nil
}

// Score はモデルの決定係数（R²）を計算する
func (r *Ridge) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Matrix(y, pred)
}

// Coef は学習された係数のコピーを返す
func (r *Ridge) Coef() []float64 {
	return append([]float64(nil), r.coef...)
}

// Intercept は学習された切片を返す
func (r *Ridge) Intercept() float64 {
	return r.intercept
}

// Clone implements model.Regressor.
func (r *Ridge) Clone() model.Regressor {
	c := *r
	c.coef = append([]float64(nil), r.coef...)
	return &c
}

// GetParams returns the model's hyperparameters.
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         r.Alpha,
		"fit_intercept": r.FitIntercept,
	}
}

// SetParams sets the model's hyperparameters.
func (r *Ridge) SetParams(params map[string]interface{}) error {
	for _, k := range model.SortedKeys(params) {
		switch k {
		case "alpha":
			v, err := model.FloatParam(k, params[k])
			if err != nil {
				return err
			}
			if v < 0 {
				return errors.NewValidationError(k, "must be non-negative", v)
			}
			r.Alpha = v
		case "fit_intercept":
			v, err := model.BoolParam(k, params[k])
			if err != nil {
				return err
			}
			r.FitIntercept = v
		default:
			return model.UnknownParam(k, params[k])
		}
	}
	return nil
}
