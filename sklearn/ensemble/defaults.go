package ensemble

import (
	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/linear"
	"github.com/YuminosukeSato/treestack/sklearn/boosting"
)

// NewDefaultStacking returns the standard blend: Ridge, a depth-wise and a
// leaf-wise booster and a random forest, combined by ordinary least squares.
func NewDefaultStacking(seed int) *StackingRegressor {
	base := []model.Regressor{
		linear.NewRidge(linear.WithAlpha(1.0)),
		boosting.NewDepthWise(
			boosting.WithNEstimators(100),
			boosting.WithLearningRate(0.05),
			boosting.WithMaxDepth(4),
		),
		boosting.NewLeafWise(
			boosting.WithNEstimators(100),
			boosting.WithLearningRate(0.05),
			boosting.WithMaxLeaves(31),
		),
		NewRandomForestRegressor(
			WithNEstimators(100),
			WithForestMaxDepth(8),
			WithRandomState(seed),
		),
	}
	return NewStackingRegressor(base, linear.NewLinearRegression(), seed)
}
