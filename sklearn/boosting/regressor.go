// Package boosting は二乗誤差の勾配ブースティング回帰を提供する。
//
// 2つの木の成長戦略を持つ:
//   - DepthWise: 深さ優先（XGBoost 風）。ノードごとに最良分割を探し、max_depth まで成長する。
//   - LeafWise: 葉優先（LightGBM 風）。全ての葉の中で最もゲインの大きい葉を分割し、max_leaves まで成長する。
//
// どちらも SplitGain と LeafWeight を共有する。予測は
//
//	ŷ(x) = init + η · Σ_t tree_t(x)
//
// で、init は学習データの目的変数の平均。
package boosting

import (
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/metrics"
	"github.com/YuminosukeSato/treestack/pkg/errors"
	"github.com/YuminosukeSato/treestack/pkg/log"
	"github.com/YuminosukeSato/treestack/sklearn/tree"
)

// Strategy selects how each boosting tree is grown.
type Strategy string

const (
	DepthWise Strategy = "depthwise"
	LeafWise  Strategy = "leafwise"
)

// ParseStrategy accepts "depthwise"/"depth_wise"/"xgboost" and
// "leafwise"/"leaf_wise"/"lightgbm", case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "depthwise", "depth_wise", "xgboost":
		return DepthWise, nil
	case "leafwise", "leaf_wise", "lightgbm":
		return LeafWise, nil
	default:
		return "", errors.NewValidationError("strategy", "unknown growth strategy", name)
	}
}

// Regressor is a gradient-boosted tree ensemble for squared error.
//
// Callbacks are shared by clones; stateful callbacks such as
// EarlyStoppingCallback should not be reused across models.
type Regressor struct {
	model.BaseEstimator

	Strategy     Strategy
	NEstimators  int
	LearningRate float64

	// depth-wise
	MaxDepth        int
	MinSamplesSplit int

	// leaf-wise
	MaxLeaves     int
	MinDataInLeaf int

	Lambda float64
	Gamma  float64

	Callbacks []Callback
	Logger    log.Logger

	initPrediction float64
	trees          []*tree.Tree
}

func newRegressor(s Strategy) *Regressor {
	return &Regressor{
		Strategy:        s,
		NEstimators:     50,
		LearningRate:    0.1,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		MaxLeaves:       31,
		MinDataInLeaf:   1,
		Lambda:          1.0,
		Gamma:           0.0,
	}
}

// NewDepthWise creates a depth-wise booster: 50 rounds, η=0.1, max_depth=3,
// min_samples_split=2, λ=1, γ=0.
func NewDepthWise(opts ...Option) *Regressor {
	r := newRegressor(DepthWise)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewLeafWise creates a leaf-wise booster: 50 rounds, η=0.1, max_leaves=31,
// min_data_in_leaf=1, λ=1, γ=0.
func NewLeafWise(opts ...Option) *Regressor {
	r := newRegressor(LeafWise)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Regressor) name() string {
	if r.Strategy == LeafWise {
		return "LeafWiseBooster"
	}
	return "DepthWiseBooster"
}

func (r *Regressor) logger() log.Logger {
	return log.OrDefault(r.Logger, "boosting")
}

func (r *Regressor) validate() error {
	if _, err := ParseStrategy(string(r.Strategy)); err != nil {
		return err
	}
	switch {
	case r.NEstimators < 0:
		return errors.NewValidationError("n_estimators", "must be >= 0", r.NEstimators)
	case math.IsNaN(r.LearningRate) || math.IsInf(r.LearningRate, 0) || r.LearningRate < 0:
		return errors.NewValidationError("learning_rate", "must be a finite non-negative number", r.LearningRate)
	case r.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", r.MaxDepth)
	case r.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", r.MinSamplesSplit)
	case r.MaxLeaves < 1:
		return errors.NewValidationError("max_leaves", "must be >= 1", r.MaxLeaves)
	case r.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be >= 1", r.MinDataInLeaf)
	case math.IsNaN(r.Lambda) || r.Lambda < 0:
		return errors.NewValidationError("lambda", "must be >= 0", r.Lambda)
	case math.IsNaN(r.Gamma) || r.Gamma < 0:
		return errors.NewValidationError("gamma", "must be >= 0", r.Gamma)
	}
	return nil
}

func (r *Regressor) grower() grower {
	s, _ := ParseStrategy(string(r.Strategy))
	if s == LeafWise {
		return &leafWise{
			maxLeaves: r.MaxLeaves,
			params:    splitParams{lambda: r.Lambda, gamma: r.Gamma, minLeaf: r.MinDataInLeaf},
		}
	}
	return &depthWise{
		maxDepth:        r.MaxDepth,
		minSamplesSplit: r.MinSamplesSplit,
		params:          splitParams{lambda: r.Lambda, gamma: r.Gamma, minLeaf: 1},
	}
}

// Fit trains NEstimators rounds, or fewer if a callback stops training.
func (r *Regressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, r.name()+".Fit")

	if err := r.validate(); err != nil {
		return err
	}
	n, p, err := model.ValidateFitInput(r.name()+".Fit", X, y)
	if err != nil {
		return err
	}
	r.Reset()
	r.trees = nil

	logger := r.logger().With(log.ModelNameKey, r.name())
	logger.Debug("Training booster",
		log.SamplesKey, n,
		log.FeaturesKey, p,
		"n_estimators", r.NEstimators,
	)

	cols := model.Columns(X)
	target := model.Targets(y)
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	r.initPrediction = stat.Mean(target, nil)
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = r.initPrediction
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	g := r.grower()
	env := &CallbackEnv{Model: r, EvalResults: map[string]float64{}}

	for round := 0; round < r.NEstimators; round++ {
		begin := time.Now()

		Gradients(target, pred, grad, hess)
		t := g.grow(cols, grad, hess, rows)
		for i := range pred {
			pred[i] += r.LearningRate * predictColumns(t, cols, i)
		}
		r.trees = append(r.trees, t)

		if len(r.Callbacks) == 0 {
			continue
		}
		env.Iteration = round
		env.BeginTime = begin
		env.EndTime = time.Now()
		env.EvalResults = map[string]float64{TrainMSE: metrics.MSESlice(target, pred)}
		for _, cb := range r.Callbacks {
			if err := cb(env); err != nil {
				return errors.Wrapf(err, "%s.Fit: callback at round %d", r.name(), round+1)
			}
		}
		if env.StopTraining {
			break
		}
	}

	r.SetFittedWith(p)
	logger.Debug("Booster trained", "n_trees", len(r.trees))
	return nil
}

// predictColumns は列形式のデータの i 行目に対する木の出力を返す
func predictColumns(t *tree.Tree, cols [][]float64, i int) float64 {
	j := 0
	for {
		n := &t.Nodes[j]
		if n.IsLeaf() {
			return n.Value
		}
		if cols[n.Feature][i] <= n.Threshold {
			j = n.Left
		} else {
			j = n.Right
		}
	}
}

// Predict returns init + η·Σ tree(x) for every row of X.
func (r *Regressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError(r.name(), "Predict")
	}
	n, err := model.ValidatePredictInput(r.name()+".Predict", X, r.NFeatures())
	if err != nil {
		return nil, err
	}
	return tree.PredictMatrix(X, n, r.predictRow), nil
}

func (r *Regressor) predictRow(row []float64) float64 {
	var s float64
	for _, t := range r.trees {
		s += t.PredictRow(row)
	}
	return r.initPrediction + r.LearningRate*s
}

// Score returns R² of the predictions on X against y.
func (r *Regressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Matrix(y, pred)
}

// InitPrediction returns the mean target the ensemble starts from.
func (r *Regressor) InitPrediction() float64 {
	return r.initPrediction
}

// NumTrees returns the number of fitted trees.
func (r *Regressor) NumTrees() int {
	return len(r.trees)
}

// Trees returns copies of the fitted trees.
func (r *Regressor) Trees() []*tree.Tree {
	out := make([]*tree.Tree, len(r.trees))
	for i, t := range r.trees {
		out[i] = t.Clone()
	}
	return out
}

// Clone implements model.Regressor.
func (r *Regressor) Clone() model.Regressor {
	c := *r
	c.Callbacks = append([]Callback(nil), r.Callbacks...)
	c.trees = r.Trees()
	return &c
}

// GetParams returns the model's hyperparameters.
func (r *Regressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"strategy":          string(r.Strategy),
		"n_estimators":      r.NEstimators,
		"learning_rate":     r.LearningRate,
		"max_depth":         r.MaxDepth,
		"min_samples_split": r.MinSamplesSplit,
		"max_leaves":        r.MaxLeaves,
		"min_data_in_leaf":  r.MinDataInLeaf,
		"lambda":            r.Lambda,
		"gamma":             r.Gamma,
	}
}

// SetParams sets the model's hyperparameters. "lam" and "reg_lambda" are
// accepted as aliases of "lambda". On error the booster is left unchanged.
func (r *Regressor) SetParams(params map[string]interface{}) error {
	c := *r
	for _, k := range model.SortedKeys(params) {
		v := params[k]
		var err error
		setInt := func(dst *int) {
			var x int
			if x, err = model.IntParam(k, v); err == nil {
				*dst = x
			}
		}
		setFloat := func(dst *float64) {
			var x float64
			if x, err = model.FloatParam(k, v); err == nil {
				*dst = x
			}
		}

		switch k {
		case "strategy":
			var name string
			var s Strategy
			if name, err = model.StringParam(k, v); err == nil {
				if s, err = ParseStrategy(name); err == nil {
					c.Strategy = s
				}
			}
		case "n_estimators":
			setInt(&c.NEstimators)
		case "learning_rate":
			setFloat(&c.LearningRate)
		case "max_depth":
			setInt(&c.MaxDepth)
		case "min_samples_split":
			setInt(&c.MinSamplesSplit)
		case "max_leaves":
			setInt(&c.MaxLeaves)
		case "min_data_in_leaf":
			setInt(&c.MinDataInLeaf)
		case "lambda", "lam", "reg_lambda":
			setFloat(&c.Lambda)
		case "gamma":
			setFloat(&c.Gamma)
		default:
			err = model.UnknownParam(k, v)
		}
		if err != nil {
			return err
		}
	}
	if err := c.validate(); err != nil {
		return err
	}
	*r = c
	return nil
}
