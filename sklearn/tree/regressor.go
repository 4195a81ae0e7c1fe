package tree

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/core/parallel"
	"github.com/YuminosukeSato/treestack/metrics"
	"github.com/YuminosukeSato/treestack/pkg/errors"
)

const predictParallelThreshold = 1000

// DecisionTreeRegressor は二乗誤差を最小化する CART 回帰木。
//
// 各ノードで全特徴量について、ソート済みの相異なる値の中点を閾値候補とし、
// 左右の二乗誤差の和 SSE_L + SSE_R が最小になる分割を選ぶ。
// 損失が等しい候補は (特徴量, 閾値) の昇順で先に見つかったものを採用する。
type DecisionTreeRegressor struct {
	model.BaseEstimator

	MaxDepth        int
	MinSamplesSplit int

	tree *Tree
}

// NewDecisionTreeRegressor creates a tree with max_depth=3 and min_samples_split=2.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		MaxDepth:        3,
		MinSamplesSplit: 2,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeRegressor) validate() error {
	if dt.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", dt.MaxDepth)
	}
	if dt.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.MinSamplesSplit)
	}
	return nil
}

// Fit builds the tree from X and the column vector y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	n, _, err := model.ValidateFitInput("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return dt.FitIndexed(model.Columns(X), model.Targets(y), rows)
}

// FitIndexed builds the tree from column-major data restricted to rows.
// rows may contain duplicates (bootstrap samples). cols and y are not
// retained after the call.
func (dt *DecisionTreeRegressor) FitIndexed(cols [][]float64, y []float64, rows []int) error {
	if err := dt.validate(); err != nil {
		return err
	}
	if len(cols) == 0 || len(rows) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	dt.Reset()

	b := builder{
		cols:            cols,
		y:               y,
		maxDepth:        dt.MaxDepth,
		minSamplesSplit: dt.MinSamplesSplit,
		tree:            &Tree{Nodes: make([]Node, 0, 2*len(rows)-1)},
	}
	b.tree.AddLeaf(Leaf{Value: meanOf(y, rows), NSamples: len(rows)})
	b.grow(0, rows, 0)

	dt.tree = b.tree
	dt.SetFittedWith(len(cols))
	return nil
}

type builder struct {
	cols            [][]float64
	y               []float64
	maxDepth        int
	minSamplesSplit int
	tree            *Tree
}

func (b *builder) grow(node int, rows []int, depth int) {
	if depth >= b.maxDepth || len(rows) < b.minSamplesSplit || allEqual(b.y, rows) {
		return
	}
	c, ok := b.bestSplit(rows)
	if !ok {
		return
	}
	left, right := Partition(b.cols[c.Feature], rows, c.Threshold)
	l, r := b.tree.Split(node, c,
		Leaf{Value: meanOf(b.y, left), NSamples: len(left)},
		Leaf{Value: meanOf(b.y, right), NSamples: len(right)},
	)
	b.grow(l, left, depth+1)
	b.grow(r, right, depth+1)
}

// bestSplit はノードの行について SSE_L + SSE_R を最小にする分割を探す。
// 目的変数はノード平均で中心化してから累積和をとる。
func (b *builder) bestSplit(rows []int) (Candidate, bool) {
	n := len(rows)
	mean := meanOf(b.y, rows)

	var sum, sumSq float64
	for _, r := range rows {
		v := b.y[r] - mean
		sum += v
		sumSq += v * v
	}
	parentSSE := sumSq - sum*sum/float64(n)

	best := Candidate{Feature: -1}
	bestLoss := math.Inf(1)

	for f, col := range b.cols {
		order := SortRows(col, rows)
		if col[order[0]] == col[order[n-1]] {
			continue // 定数の特徴量
		}

		var sumL, sumSqL float64
		for k := 1; k < n; k++ {
			v := b.y[order[k-1]] - mean
			sumL += v
			sumSqL += v * v

			lo, hi := col[order[k-1]], col[order[k]]
			if lo == hi {
				continue
			}
			nL, nR := float64(k), float64(n-k)
			sumR, sumSqR := sum-sumL, sumSq-sumSqL
			loss := (sumSqL - sumL*sumL/nL) + (sumSqR - sumR*sumR/nR)

			if loss < bestLoss {
				bestLoss = loss
				best = Candidate{Feature: f, Threshold: Midpoint(lo, hi), NLeft: k}
			}
		}
	}

	if best.Feature < 0 {
		return best, false
	}
	best.Gain = math.Max(parentSSE-bestLoss, 0)
	return best, true
}

func meanOf(y []float64, rows []int) float64 {
	var s float64
	for _, r := range rows {
		s += y[r]
	}
	return s / float64(len(rows))
}

// Predict returns the leaf mean for every row of X.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	n, err := model.ValidatePredictInput("DecisionTreeRegressor.Predict", X, dt.NFeatures())
	if err != nil {
		return nil, err
	}
	return PredictMatrix(X, n, dt.tree.PredictRow), nil
}

// PredictMatrix evaluates f on every row of X in parallel and returns an n × 1 column.
func PredictMatrix(X mat.Matrix, n int, f func(row []float64) float64) *mat.Dense {
	_, p := X.Dims()
	out := make([]float64, n)
	parallel.ParallelizeWithThreshold(n, predictParallelThreshold, func(start, end int) {
		row := make([]float64, p)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out[i] = f(row)
		}
	})
	return model.ColumnVector(out)
}

// Score returns R² of the predictions on X against y.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Matrix(y, pred)
}

// Tree returns the fitted tree, or nil before Fit.
func (dt *DecisionTreeRegressor) Tree() *Tree {
	return dt.tree
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.Depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.NumLeaves()
}

// GetFeatureImportances returns the total SSE reduction per feature,
// normalized to sum to 1. All zeros if the tree has no split.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	imp := make([]float64, dt.NFeatures())
	if dt.tree == nil {
		return imp
	}
	dt.tree.AddImportances(imp)
	normalize(imp)
	return imp
}

func normalize(v []float64) {
	var total float64
	for _, x := range v {
		total += x
	}
	if total == 0 {
		return
	}
	for i := range v {
		v[i] /= total
	}
}

// Clone implements model.Regressor.
func (dt *DecisionTreeRegressor) Clone() model.Regressor {
	c := *dt
	c.tree = dt.tree.Clone()
	return &c
}

// GetParams returns the model's hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         dt.MaxDepth,
		"min_samples_split": dt.MinSamplesSplit,
	}
}

// SetParams sets the model's hyperparameters. Nothing is assigned unless
// every value is valid.
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	c := *dt
	for _, k := range model.SortedKeys(params) {
		v, err := model.IntParam(k, params[k])
		switch k {
		case "max_depth":
			if err != nil {
				return err
			}
			c.MaxDepth = v
		case "min_samples_split":
			if err != nil {
				return err
			}
			c.MinSamplesSplit = v
		default:
			return model.UnknownParam(k, params[k])
		}
	}
	if err := c.validate(); err != nil {
		return err
	}
	*dt = c
	return nil
}
