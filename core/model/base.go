package model

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は全てのモデルの基底となる構造体。
// 学習時の特徴量数も保持し、Predict での次元チェックに使う。
type BaseEstimator struct {
	state     EstimatorState
	nFeatures int
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted はモデルを学習済み状態に設定する
func (e *BaseEstimator) SetFitted() {
	e.state = Fitted
}

// SetFittedWith は特徴量数を記録して学習済み状態に設定する
func (e *BaseEstimator) SetFittedWith(nFeatures int) {
	e.nFeatures = nFeatures
	e.state = Fitted
}

// NFeatures は学習時の特徴量数を返す（未学習なら0）
func (e *BaseEstimator) NFeatures() int {
	return e.nFeatures
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.state = NotFitted
	e.nFeatures = 0
}
