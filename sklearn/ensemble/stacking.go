package ensemble

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/linear"
	"github.com/YuminosukeSato/treestack/metrics"
	"github.com/YuminosukeSato/treestack/pkg/errors"
	"github.com/YuminosukeSato/treestack/pkg/log"
	"github.com/YuminosukeSato/treestack/sklearn/model_selection"
)

// StackingRegressor blends base models through a meta model fitted on their
// out-of-fold predictions.
//
// Fit は各ベースモデルについて shuffled K-fold を回し、検証 fold の予測だけを
// OOF 行列に書き込む。OOF の各セルは、その行を学習に使っていないモデルの予測になる。
// メタモデルは (OOF, y) で学習し、ベースモデルは最後に全データで学習し直す。
type StackingRegressor struct {
	model.BaseEstimator

	BaseModels []model.Regressor
	// MetaModel defaults to Ridge with alpha 1 when nil.
	MetaModel   model.Regressor
	NFolds      int
	RandomState int

	logger log.Logger

	folds            []model_selection.Fold
	oof              *mat.Dense
	foldScores       [][]model_selection.FoldScore
	fittedBaseModels []model.Regressor
	fittedMetaModel  model.Regressor
}

// NewStackingRegressor creates a stacking ensemble with 5 folds.
// meta may be nil.
func NewStackingRegressor(baseModels []model.Regressor, meta model.Regressor, randomState int) *StackingRegressor {
	return &StackingRegressor{
		BaseModels:  baseModels,
		MetaModel:   meta,
		NFolds:      5,
		RandomState: randomState,
	}
}

// WithLogger sets the logger receiving per-fold records.
func (s *StackingRegressor) WithLogger(logger log.Logger) *StackingRegressor {
	s.logger = logger
	return s
}

// WithNFolds sets the number of folds.
func (s *StackingRegressor) WithNFolds(k int) *StackingRegressor {
	s.NFolds = k
	return s
}

func (s *StackingRegressor) metaPrototype() model.Regressor {
	if s.MetaModel != nil {
		return s.MetaModel
	}
	return linear.NewRidge(linear.WithAlpha(1.0))
}

func (s *StackingRegressor) reset() {
	s.Reset()
	s.folds = nil
	s.oof = nil
	s.foldScores = nil
	s.fittedBaseModels = nil
	s.fittedMetaModel = nil
}

// Fit builds the out-of-fold matrix, fits the meta model on it and refits
// every base model on all rows.
func (s *StackingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "StackingRegressor.Fit")

	s.reset()
	if len(s.BaseModels) == 0 {
		return errors.NewValidationError("base_models", "at least one base model is required", 0)
	}
	n, p, err := model.ValidateFitInput("StackingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	kf := model_selection.NewKFold(s.NFolds, true, s.RandomState)
	folds, err := kf.Split(n)
	if err != nil {
		return err
	}

	logger := log.OrDefault(s.logger, "ensemble.stacking").With(log.ModelNameKey, "StackingRegressor")
	start := time.Now()
	logger.Info("Stacking fit started",
		log.SamplesKey, n,
		log.FeaturesKey, p,
		"n_base_models", len(s.BaseModels),
		log.NFoldsKey, len(folds),
	)

	oof := mat.NewDense(n, len(s.BaseModels), nil)
	scores := make([][]model_selection.FoldScore, len(s.BaseModels))

	for i, base := range s.BaseModels {
		scores[i] = make([]model_selection.FoldScore, len(folds))
		for f, fold := range folds {
			fr, err := model_selection.FitFold(base, nil, X, y, fold)
			if err != nil {
				return errors.Wrapf(err, "StackingRegressor.Fit: base model %d, fold %d", i+1, f+1)
			}
			for k, row := range fold.TestIndices {
				oof.Set(row, i, fr.ValPredictions[k])
			}
			fr.Score.Fold = f + 1
			scores[i][f] = fr.Score

			logger.Info("Fold finished",
				log.BaseModelKey, i+1,
				log.FoldKey, f+1,
				log.NFoldsKey, len(folds),
				log.TrainMSEKey, fr.Score.TrainMSE,
				log.ValMSEKey, fr.Score.ValMSE,
				log.TrainR2Key, fr.Score.TrainR2,
				log.ValR2Key, fr.Score.ValR2,
			)
		}
		logMeanScores(logger, i+1, scores[i])
	}

	meta := s.metaPrototype().Clone()
	if err := meta.Fit(oof, y); err != nil {
		return errors.Wrap(err, "StackingRegressor.Fit: meta model")
	}

	fitted := make([]model.Regressor, len(s.BaseModels))
	for i, base := range s.BaseModels {
		m := base.Clone()
		if err := m.Fit(X, y); err != nil {
			return errors.Wrapf(err, "StackingRegressor.Fit: refit base model %d", i+1)
		}
		fitted[i] = m
	}

	s.folds = folds
	s.oof = oof
	s.foldScores = scores
	s.fittedMetaModel = meta
	s.fittedBaseModels = fitted
	s.SetFittedWith(p)

	logger.Info("Stacking fit finished", log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

func logMeanScores(logger log.Logger, baseModel int, scores []model_selection.FoldScore) {
	var trainMSE, valMSE, trainR2, valR2 float64
	for _, sc := range scores {
		trainMSE += sc.TrainMSE
		valMSE += sc.ValMSE
		trainR2 += sc.TrainR2
		valR2 += sc.ValR2
	}
	k := float64(len(scores))
	logger.Info("Base model mean scores",
		log.BaseModelKey, baseModel,
		log.TrainMSEKey, trainMSE/k,
		log.ValMSEKey, valMSE/k,
		log.TrainR2Key, trainR2/k,
		log.ValR2Key, valR2/k,
	)
}

// Predict stacks the refit base model predictions column-wise and feeds them
// to the meta model.
func (s *StackingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StackingRegressor", "Predict")
	}
	n, err := model.ValidatePredictInput("StackingRegressor.Predict", X, s.NFeatures())
	if err != nil {
		return nil, err
	}

	meta := mat.NewDense(n, len(s.fittedBaseModels), nil)
	for i, m := range s.fittedBaseModels {
		pred, err := m.Predict(X)
		if err != nil {
			return nil, errors.Wrapf(err, "StackingRegressor.Predict: base model %d", i+1)
		}
		for r := 0; r < n; r++ {
			meta.Set(r, i, pred.At(r, 0))
		}
	}
	return s.fittedMetaModel.Predict(meta)
}

// Score returns R² of the predictions on X against y.
func (s *StackingRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := s.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Matrix(y, pred)
}

// OOFPredictions returns a copy of the n × len(BaseModels) out-of-fold matrix.
func (s *StackingRegressor) OOFPredictions() *mat.Dense {
	if s.oof == nil {
		return nil
	}
	return mat.DenseCopyOf(s.oof)
}

// Folds returns the folds used by the last Fit.
func (s *StackingRegressor) Folds() []model_selection.Fold {
	out := make([]model_selection.Fold, len(s.folds))
	for i, f := range s.folds {
		out[i] = model_selection.Fold{
			TrainIndices: append([]int(nil), f.TrainIndices...),
			TestIndices:  append([]int(nil), f.TestIndices...),
		}
	}
	return out
}

// FoldScores returns the per-fold metrics, indexed [base model][fold].
func (s *StackingRegressor) FoldScores() [][]model_selection.FoldScore {
	out := make([][]model_selection.FoldScore, len(s.foldScores))
	for i, sc := range s.foldScores {
		out[i] = append([]model_selection.FoldScore(nil), sc...)
	}
	return out
}

// FittedBaseModels returns copies of the base models refit on all rows.
func (s *StackingRegressor) FittedBaseModels() []model.Regressor {
	out := make([]model.Regressor, len(s.fittedBaseModels))
	for i, m := range s.fittedBaseModels {
		out[i] = m.Clone()
	}
	return out
}

// FittedMetaModel returns a copy of the fitted meta model, or nil before Fit.
func (s *StackingRegressor) FittedMetaModel() model.Regressor {
	if s.fittedMetaModel == nil {
		return nil
	}
	return s.fittedMetaModel.Clone()
}

// Clone implements model.Regressor.
func (s *StackingRegressor) Clone() model.Regressor {
	c := *s
	c.BaseModels = make([]model.Regressor, len(s.BaseModels))
	for i, m := range s.BaseModels {
		c.BaseModels[i] = m.Clone()
	}
	if s.MetaModel != nil {
		c.MetaModel = s.MetaModel.Clone()
	}
	c.folds = s.Folds()
	c.oof = s.OOFPredictions()
	c.foldScores = s.FoldScores()
	c.fittedBaseModels = nil
	if s.fittedBaseModels != nil {
		c.fittedBaseModels = s.FittedBaseModels()
	}
	c.fittedMetaModel = s.FittedMetaModel()
	return &c
}

// GetParams returns the model's hyperparameters.
func (s *StackingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_folds":      s.NFolds,
		"random_state": s.RandomState,
	}
}

// SetParams sets the model's hyperparameters.
func (s *StackingRegressor) SetParams(params map[string]interface{}) error {
	nFolds, randomState := s.NFolds, s.RandomState
	for _, k := range model.SortedKeys(params) {
		v, err := model.IntParam(k, params[k])
		switch k {
		case "n_folds":
			if err != nil {
				return err
			}
			if v < 2 {
				return errors.NewValidationError(k, "must be >= 2", v)
			}
			nFolds = v
		case "random_state":
			if err != nil {
				return err
			}
			randomState = v
		default:
			return model.UnknownParam(k, params[k])
		}
	}
	s.NFolds, s.RandomState = nFolds, randomState
	return nil
}
