package model_selection

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/pkg/errors"
	"github.com/YuminosukeSato/treestack/pkg/log"
)

// CandidateResult holds the fold-averaged metrics of one parameter combination.
type CandidateResult struct {
	Params   map[string]interface{} `json:"params"`
	TrainMSE float64                `json:"train_mse"`
	ValMSE   float64                `json:"val_mse"`
	TrainR2  float64                `json:"train_r2"`
	ValR2    float64                `json:"val_r2"`
}

// GridSearchResult is the outcome of GridSearchCV.Fit.
type GridSearchResult struct {
	BestParams map[string]interface{}
	// BestEstimator is a copy of the model fitted on the last fold with BestParams.
	BestEstimator model.Regressor
	BestScore     float64 // mean validation MSE of BestParams
	// Results are sorted by ValMSE ascending; equal scores keep grid order.
	Results []CandidateResult
}

// GridSearchCV evaluates every combination of ParamGrid with K-fold CV.
type GridSearchCV struct {
	Estimator model.Regressor
	ParamGrid ParameterGrid
	CV        KFold
	Logger    log.Logger
}

// NewGridSearchCV creates a search with shuffled 5-fold CV seeded with 42.
func NewGridSearchCV(est model.Regressor, grid ParameterGrid) *GridSearchCV {
	return &GridSearchCV{
		Estimator: est,
		ParamGrid: grid,
		CV:        NewKFold(5, true, 42),
	}
}

// WithLogger sets the logger receiving per-candidate records.
func (gs *GridSearchCV) WithLogger(logger log.Logger) *GridSearchCV {
	gs.Logger = logger
	return gs
}

// Fit runs the search. The combination with the lowest mean validation MSE
// wins; a later combination replaces it only when strictly lower.
func (gs *GridSearchCV) Fit(X, y mat.Matrix) (*GridSearchResult, error) {
	if gs.Estimator == nil {
		return nil, errors.NewValidationError("estimator", "must not be nil", nil)
	}
	if _, ok := gs.Estimator.(model.ParameterSetter); !ok && len(gs.ParamGrid) > 0 {
		return nil, errors.NewValidationError("estimator", "does not support SetParams", gs.Estimator)
	}
	if err := gs.ParamGrid.Validate(); err != nil {
		return nil, err
	}

	logger := log.OrDefault(gs.Logger, "model_selection.grid_search")
	grid := gs.ParamGrid.Combinations()
	logger.Info("Grid search started", "n_candidates", len(grid), log.NFoldsKey, gs.CV.NSplits)

	result := &GridSearchResult{
		BestScore: math.Inf(1),
		Results:   make([]CandidateResult, 0, len(grid)),
	}
	var bestLast model.Regressor

	for i, params := range grid {
		start := time.Now()
		cv, err := CrossValidate(gs.Estimator, X, y, gs.CV,
			WithParams(params),
			WithLogger(logger.With(log.CandidateKey, i+1)),
		)
		if err != nil {
			return nil, errors.Wrapf(err, "GridSearchCV: candidate %d/%d", i+1, len(grid))
		}

		cand := CandidateResult{
			Params:   params,
			TrainMSE: cv.MeanTrainMSE,
			ValMSE:   cv.MeanValMSE,
			TrainR2:  cv.MeanTrainR2,
			ValR2:    cv.MeanValR2,
		}
		result.Results = append(result.Results, cand)

		if cand.ValMSE < result.BestScore {
			result.BestScore = cand.ValMSE
			result.BestParams = params
			bestLast = cv.Models[len(cv.Models)-1]
		}

		logger.Info("Candidate evaluated",
			log.CandidateKey, i+1,
			log.ParamsKey, params,
			log.TrainMSEKey, cand.TrainMSE,
			log.ValMSEKey, cand.ValMSE,
			log.TrainR2Key, cand.TrainR2,
			log.ValR2Key, cand.ValR2,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}

	if bestLast == nil {
		return nil, errors.NewValueError("GridSearchCV", "no candidate produced a finite validation score")
	}
	result.BestEstimator = bestLast.Clone()

	sort.SliceStable(result.Results, func(a, b int) bool {
		return result.Results[a].ValMSE < result.Results[b].ValMSE
	})

	logger.Info("Grid search finished",
		log.ParamsKey, result.BestParams,
		log.ValMSEKey, result.BestScore,
	)
	return result, nil
}
