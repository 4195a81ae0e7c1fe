package boosting

import "github.com/YuminosukeSato/treestack/pkg/log"

// Option configures a Regressor.
type Option func(*Regressor)

func WithNEstimators(n int) Option {
	return func(r *Regressor) { r.NEstimators = n }
}

func WithLearningRate(eta float64) Option {
	return func(r *Regressor) { r.LearningRate = eta }
}

// WithMaxDepth sets the depth limit of depth-wise trees.
func WithMaxDepth(depth int) Option {
	return func(r *Regressor) { r.MaxDepth = depth }
}

// WithMinSamplesSplit sets the minimum node size that depth-wise growth splits.
func WithMinSamplesSplit(n int) Option {
	return func(r *Regressor) { r.MinSamplesSplit = n }
}

// WithMaxLeaves sets the leaf budget of leaf-wise trees.
func WithMaxLeaves(n int) Option {
	return func(r *Regressor) { r.MaxLeaves = n }
}

// WithMinDataInLeaf sets the minimum rows each child of a leaf-wise split must have.
func WithMinDataInLeaf(n int) Option {
	return func(r *Regressor) { r.MinDataInLeaf = n }
}

func WithLambda(lambda float64) Option {
	return func(r *Regressor) { r.Lambda = lambda }
}

func WithGamma(gamma float64) Option {
	return func(r *Regressor) { r.Gamma = gamma }
}

// WithCallbacks appends callbacks run after every round.
func WithCallbacks(cbs ...Callback) Option {
	return func(r *Regressor) { r.Callbacks = append(r.Callbacks, cbs...) }
}

// WithLogger sets the logger used during Fit.
func WithLogger(l log.Logger) Option {
	return func(r *Regressor) { r.Logger = l }
}
