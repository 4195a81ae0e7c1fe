package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/pkg/errors"
)

// Report は回帰モデルの評価結果
type Report struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// Evaluate は学習済みモデルで X を予測し、y に対する評価指標をまとめて返す。
// R² は R2ScoreOrZero で計算するため、定数ターゲットでもエラーにならない。
func Evaluate(m model.Predictor, X, y mat.Matrix) (Report, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return Report{}, errors.Wrap(err, "Evaluate")
	}
	t, p, err := matrixPair("Evaluate", y, pred)
	if err != nil {
		return Report{}, err
	}

	var r Report
	if r.MSE, err = MSE(t, p); err != nil {
		return Report{}, err
	}
	if r.RMSE, err = RMSE(t, p); err != nil {
		return Report{}, err
	}
	if r.MAE, err = MAE(t, p); err != nil {
		return Report{}, err
	}
	if r.R2, err = R2ScoreOrZero(t, p); err != nil {
		return Report{}, err
	}
	return r, nil
}
