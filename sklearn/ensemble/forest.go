// Package ensemble provides the random forest and the K-fold stacking
// regressor. Both compose other models through model.Regressor.
package ensemble

import (
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/core/parallel"
	"github.com/YuminosukeSato/treestack/metrics"
	"github.com/YuminosukeSato/treestack/pkg/errors"
	"github.com/YuminosukeSato/treestack/pkg/log"
	"github.com/YuminosukeSato/treestack/sklearn/tree"
)

// Estimator is one fitted forest member together with the columns it saw.
type Estimator struct {
	Tree     *tree.DecisionTreeRegressor
	Features []int // ascending
}

// RandomForestRegressor averages CART trees fitted on bootstrap samples and
// random feature subsets.
type RandomForestRegressor struct {
	model.BaseEstimator

	NEstimators int
	// MaxFeatures is "sqrt", "log2" or an integer count. Any other value
	// means every feature.
	MaxFeatures     interface{}
	MaxDepth        int
	MinSamplesSplit int
	Bootstrap       bool
	RandomState     int

	estimators []Estimator
	logger     log.Logger
}

// ForestOption configures a RandomForestRegressor.
type ForestOption func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.NEstimators = n }
}

// WithMaxFeatures sets the per-tree feature subset rule.
func WithMaxFeatures(v interface{}) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxFeatures = v }
}

// WithForestMaxDepth sets the depth limit of every tree.
func WithForestMaxDepth(depth int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxDepth = depth }
}

// WithForestMinSamplesSplit sets min_samples_split of every tree.
func WithForestMinSamplesSplit(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MinSamplesSplit = n }
}

// WithBootstrap toggles sampling rows with replacement.
func WithBootstrap(b bool) ForestOption {
	return func(rf *RandomForestRegressor) { rf.Bootstrap = b }
}

// WithRandomState sets the seed.
func WithRandomState(seed int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.RandomState = seed }
}

// NewRandomForestRegressor creates a forest of 10 trees, max_features "sqrt",
// max_depth 5, min_samples_split 2, bootstrap on, seed 0.
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		NEstimators:     10,
		MaxFeatures:     "sqrt",
		MaxDepth:        5,
		MinSamplesSplit: 2,
		Bootstrap:       true,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithLogger sets the logger used during Fit.
func (rf *RandomForestRegressor) WithLogger(logger log.Logger) *RandomForestRegressor {
	rf.logger = logger
	return rf
}

// MaxFeaturesCount returns how many features each tree draws out of p.
// "sqrt" and "log2" round up and are at least 1.
func (rf *RandomForestRegressor) MaxFeaturesCount(p int) (int, error) {
	switch v := rf.MaxFeatures.(type) {
	case string:
		switch strings.ToLower(v) {
		case "sqrt":
			return max(1, int(math.Ceil(math.Sqrt(float64(p))))), nil
		case "log2":
			return max(1, int(math.Ceil(math.Log2(float64(p))))), nil
		}
	case int, int64, float64:
		k, err := model.IntParam("max_features", v)
		if err != nil {
			return p, nil
		}
		if k < 1 || k > p {
			return 0, errors.NewValidationError("max_features", "must be in [1, n_features]", v)
		}
		return k, nil
	}
	return p, nil
}

func (rf *RandomForestRegressor) validate() error {
	switch {
	case rf.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.NEstimators)
	case rf.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", rf.MaxDepth)
	case rf.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", rf.MinSamplesSplit)
	}
	return nil
}

func (rf *RandomForestRegressor) newTree() *tree.DecisionTreeRegressor {
	return tree.NewDecisionTreeRegressor(
		tree.WithMaxDepth(rf.MaxDepth),
		tree.WithMinSamplesSplit(rf.MinSamplesSplit),
	)
}

// draw は1本の木のための行と特徴量の抽選結果
type draw struct {
	rows     []int
	features []int
}

// drawAll は全ての木の抽選を木の順に行う。学習前に抽選を済ませるため、
// 並列学習しても同じシードなら同じ森になる。
func (rf *RandomForestRegressor) drawAll(n, p, k int) []draw {
	rng := rand.New(rand.NewPCG(uint64(rf.RandomState), uint64(rf.RandomState)))
	draws := make([]draw, rf.NEstimators)
	for t := range draws {
		rows := make([]int, n)
		for i := range rows {
			if rf.Bootstrap {
				rows[i] = rng.IntN(n)
			} else {
				rows[i] = i
			}
		}

		features := rng.Perm(p)[:k]
		sort.Ints(features)

		draws[t] = draw{rows: rows, features: features}
	}
	return draws
}

// Fit trains NEstimators trees concurrently.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if err := rf.validate(); err != nil {
		return err
	}
	n, p, err := model.ValidateFitInput("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	k, err := rf.MaxFeaturesCount(p)
	if err != nil {
		return err
	}
	rf.Reset()
	rf.estimators = nil

	log.OrDefault(rf.logger, "ensemble.forest").Debug("Training forest",
		log.ModelNameKey, "RandomForestRegressor",
		log.SamplesKey, n,
		log.FeaturesKey, p,
		"n_estimators", rf.NEstimators,
		"max_features", k,
	)

	cols := model.Columns(X)
	target := model.Targets(y)
	draws := rf.drawAll(n, p, k)

	estimators := make([]Estimator, rf.NEstimators)
	err = parallel.ParallelizeErr(rf.NEstimators, 1, func(start, end int) error {
		for t := start; t < end; t++ {
			d := draws[t]
			sub := make([][]float64, len(d.features))
			for j, f := range d.features {
				sub[j] = cols[f]
			}
			dt := rf.newTree()
			if err := dt.FitIndexed(sub, target, d.rows); err != nil {
				return errors.Wrapf(err, "RandomForestRegressor.Fit: tree %d", t)
			}
			estimators[t] = Estimator{Tree: dt, Features: d.features}
		}
		return nil
	})
	if err != nil {
		return err
	}

	rf.estimators = estimators
	rf.SetFittedWith(p)
	return nil
}

// Predict returns the mean of the tree predictions.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	n, err := model.ValidatePredictInput("RandomForestRegressor.Predict", X, rf.NFeatures())
	if err != nil {
		return nil, err
	}

	trees := make([]*tree.Tree, len(rf.estimators))
	for i, e := range rf.estimators {
		trees[i] = e.Tree.Tree()
	}
	return tree.PredictMatrix(X, n, func(row []float64) float64 {
		var s float64
		sub := make([]float64, 0, len(row))
		for i, e := range rf.estimators {
			sub = sub[:0]
			for _, f := range e.Features {
				sub = append(sub, row[f])
			}
			s += trees[i].PredictRow(sub)
		}
		return s / float64(len(trees))
	}), nil
}

// Score returns R² of the predictions on X against y.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Matrix(y, pred)
}

// Estimators returns copies of the fitted trees with their feature subsets.
func (rf *RandomForestRegressor) Estimators() []Estimator {
	out := make([]Estimator, len(rf.estimators))
	for i, e := range rf.estimators {
		out[i] = Estimator{
			Tree:     e.Tree.Clone().(*tree.DecisionTreeRegressor),
			Features: append([]int(nil), e.Features...),
		}
	}
	return out
}

// GetFeatureImportances averages the per-tree importances over all features
// and normalizes them to sum to 1.
func (rf *RandomForestRegressor) GetFeatureImportances() []float64 {
	if !rf.IsFitted() {
		return nil
	}
	imp := make([]float64, rf.NFeatures())
	for _, e := range rf.estimators {
		for j, v := range e.Tree.GetFeatureImportances() {
			imp[e.Features[j]] += v
		}
	}
	var total float64
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp
}

// Clone implements model.Regressor.
func (rf *RandomForestRegressor) Clone() model.Regressor {
	c := *rf
	c.estimators = nil
	if rf.estimators != nil {
		c.estimators = rf.Estimators()
	}
	return &c
}

// GetParams returns the model's hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.NEstimators,
		"max_features":      rf.MaxFeatures,
		"max_depth":         rf.MaxDepth,
		"min_samples_split": rf.MinSamplesSplit,
		"bootstrap":         rf.Bootstrap,
		"random_state":      rf.RandomState,
	}
}

// SetParams sets the model's hyperparameters. The forest is left unchanged
// when any value is rejected.
func (rf *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	c := *rf
	for _, k := range model.SortedKeys(params) {
		v := params[k]
		var err error
		setInt := func(dst *int) {
			var x int
			if x, err = model.IntParam(k, v); err == nil {
				*dst = x
			}
		}

		switch k {
		case "n_estimators":
			setInt(&c.NEstimators)
		case "max_depth":
			setInt(&c.MaxDepth)
		case "min_samples_split":
			setInt(&c.MinSamplesSplit)
		case "random_state":
			setInt(&c.RandomState)
		case "bootstrap":
			var b bool
			if b, err = model.BoolParam(k, v); err == nil {
				c.Bootstrap = b
			}
		case "max_features":
			c.MaxFeatures = v
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
	*rf = c
	return nil
}
