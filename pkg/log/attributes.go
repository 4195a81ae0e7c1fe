// Standard attribute keys shared by every component. Using the same keys in
// stacking, grid search and boosting logs keeps fold metrics comparable.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the type of model, e.g. "RandomForestRegressor".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed ("fit", "predict").
	OperationKey = "ml.operation"

	// ComponentKey identifies which package emitted the record.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase ("training", "validation").
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
)

// Performance and metrics.
const (
	DurationMsKey = "perf.duration_ms"

	// LossKey records a training loss, e.g. the boosting round MSE.
	LossKey = "metrics.loss"

	R2ScoreKey = "metrics.r2_score"

	TrainMSEKey = "metrics.train_mse"
	ValMSEKey   = "metrics.val_mse"
	TrainR2Key  = "metrics.train_r2"
	ValR2Key    = "metrics.val_r2"

	IterationKey = "training.iteration"
)

// Cross-validation context.
const (
	// FoldKey is the 1-based fold number.
	FoldKey = "cv.fold"

	// NFoldsKey is the total number of folds.
	NFoldsKey = "cv.n_folds"

	// BaseModelKey is the 1-based index of a stacking base model.
	BaseModelKey = "stacking.base_model"

	// CandidateKey is the 1-based index of a grid search parameter set.
	CandidateKey = "search.candidate"

	// ParamsKey holds the hyperparameters of the current candidate.
	ParamsKey = "model.hyperparams"
)

// Error context.
const (
	ErrorTypeKey = "error.type"
	WarningKey   = "warning"
)

// Standard values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
)
