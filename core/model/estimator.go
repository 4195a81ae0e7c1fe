package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。
	// X は n_samples × n_features、y は n_samples × 1 の列ベクトル。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n × 1 の列ベクトルで返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer は決定係数を計算できるモデルのインターフェース
type Scorer interface {
	// Score は予測の決定係数 R² を返す
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor は回帰モデルの能力契約。
// スタッキングやグリッドサーチは具体的な型ではなくこのインターフェースに依存する。
type Regressor interface {
	Fitter
	Predictor
	Scorer

	// Clone は学習済みの状態も含めた独立したディープコピーを返す。
	// コピーと元のモデルはノードや係数を共有しない。
	Clone() Regressor
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters. Unknown keys and values of
	// the wrong type are reported as validation errors.
	SetParams(params map[string]interface{}) error
}

// Tunable はグリッドサーチで探索できる回帰モデル
type Tunable interface {
	Regressor
	ParameterGetter
	ParameterSetter
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	// Coef は学習された係数を返す
	Coef() []float64
	// Intercept は学習された切片を返す
	Intercept() float64
}
