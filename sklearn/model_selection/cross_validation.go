package model_selection

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/metrics"
	"github.com/YuminosukeSato/treestack/pkg/errors"
	"github.com/YuminosukeSato/treestack/pkg/log"
)

// FoldScore holds the metrics of one fitted fold.
type FoldScore struct {
	Fold     int     `json:"fold"` // 1-based
	TrainMSE float64 `json:"train_mse"`
	ValMSE   float64 `json:"val_mse"`
	TrainR2  float64 `json:"train_r2"`
	ValR2    float64 `json:"val_r2"`
}

// FoldResult is the outcome of FitFold.
type FoldResult struct {
	Model model.Regressor
	// ValPredictions[k] is the prediction for row fold.TestIndices[k].
	ValPredictions []float64
	Score          FoldScore
}

// FitFold clones est, applies params (if any), fits the clone on the training
// rows of fold and scores it on both sides. est itself is not modified.
func FitFold(est model.Regressor, params map[string]interface{}, X, y mat.Matrix, fold Fold) (*FoldResult, error) {
	m := est.Clone()
	if len(params) > 0 {
		setter, ok := m.(model.ParameterSetter)
		if !ok {
			return nil, errors.NewValidationError("estimator", "does not support SetParams", est)
		}
		if err := setter.SetParams(params); err != nil {
			return nil, err
		}
	}

	XTrain, yTrain := model.SelectRows(X, fold.TrainIndices), model.SelectRows(y, fold.TrainIndices)
	XVal, yVal := model.SelectRows(X, fold.TestIndices), model.SelectRows(y, fold.TestIndices)

	if err := m.Fit(XTrain, yTrain); err != nil {
		return nil, err
	}
	trainPred, err := m.Predict(XTrain)
	if err != nil {
		return nil, err
	}
	valPred, err := m.Predict(XVal)
	if err != nil {
		return nil, err
	}

	var s FoldScore
	if s.TrainMSE, err = metrics.MSEMatrix(yTrain, trainPred); err != nil {
		return nil, err
	}
	if s.ValMSE, err = metrics.MSEMatrix(yVal, valPred); err != nil {
		return nil, err
	}
	if s.TrainR2, err = metrics.R2Matrix(yTrain, trainPred); err != nil {
		return nil, err
	}
	if s.ValR2, err = metrics.R2Matrix(yVal, valPred); err != nil {
		return nil, err
	}

	return &FoldResult{
		Model:          m,
		ValPredictions: model.Targets(valPred),
		Score:          s,
	}, nil
}

// CVResult stores cross-validation results
type CVResult struct {
	Folds  []FoldScore
	Models []model.Regressor // fitted clone per fold

	MeanTrainMSE float64
	MeanValMSE   float64
	MeanTrainR2  float64
	MeanValR2    float64
}

// GetStdScore returns the sample standard deviation of the validation MSE.
func (cv *CVResult) GetStdScore() float64 {
	if len(cv.Folds) <= 1 {
		return 0.0
	}
	vals := make([]float64, len(cv.Folds))
	for i, f := range cv.Folds {
		vals[i] = f.ValMSE
	}
	return stat.StdDev(vals, nil)
}

func (cv *CVResult) summarize() {
	n := float64(len(cv.Folds))
	cv.MeanTrainMSE, cv.MeanValMSE, cv.MeanTrainR2, cv.MeanValR2 = 0, 0, 0, 0
	for _, f := range cv.Folds {
		cv.MeanTrainMSE += f.TrainMSE
		cv.MeanValMSE += f.ValMSE
		cv.MeanTrainR2 += f.TrainR2
		cv.MeanValR2 += f.ValR2
	}
	cv.MeanTrainMSE /= n
	cv.MeanValMSE /= n
	cv.MeanTrainR2 /= n
	cv.MeanValR2 /= n
}

// Option configures CrossValidate and GridSearchCV.
type Option func(*cvConfig)

type cvConfig struct {
	logger log.Logger
	params map[string]interface{}
}

// WithLogger sends per-fold records to logger.
func WithLogger(logger log.Logger) Option {
	return func(c *cvConfig) {
		c.logger = logger
	}
}

// WithParams applies params to every fold clone before fitting.
func WithParams(params map[string]interface{}) Option {
	return func(c *cvConfig) {
		c.params = params
	}
}

// CrossValidate fits a clone of est on every fold of kf and averages the
// fold metrics. Folds run sequentially in fold order.
func CrossValidate(est model.Regressor, X, y mat.Matrix, kf KFold, opts ...Option) (*CVResult, error) {
	cfg := cvConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := log.OrDefault(cfg.logger, "model_selection")

	n, _, err := model.ValidateFitInput("CrossValidate", X, y)
	if err != nil {
		return nil, err
	}
	folds, err := kf.Split(n)
	if err != nil {
		return nil, err
	}

	result := &CVResult{
		Folds:  make([]FoldScore, len(folds)),
		Models: make([]model.Regressor, len(folds)),
	}
	for i, fold := range folds {
		start := time.Now()
		fr, err := FitFold(est, cfg.params, X, y, fold)
		if err != nil {
			return nil, errors.Wrapf(err, "CrossValidate: fold %d/%d", i+1, len(folds))
		}
		fr.Score.Fold = i + 1
		result.Folds[i] = fr.Score
		result.Models[i] = fr.Model

		logger.Debug("Fold finished",
			log.FoldKey, i+1,
			log.NFoldsKey, len(folds),
			log.TrainMSEKey, fr.Score.TrainMSE,
			log.ValMSEKey, fr.Score.ValMSE,
			log.TrainR2Key, fr.Score.TrainR2,
			log.ValR2Key, fr.Score.ValR2,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	result.summarize()

	if math.IsNaN(result.MeanValMSE) {
		return nil, errors.NewNumericalInstabilityError("CrossValidate.val_mse", []float64{result.MeanValMSE}, -1)
	}
	return result, nil
}
