package tree

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth sets the maximum depth of the tree.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeRegressor) {
		dt.MaxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of rows required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeRegressor) {
		dt.MinSamplesSplit = n
	}
}
