package tree

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/pkg/errors"
)

func TestTreeArena(t *testing.T) {
	var tr Tree
	root := tr.AddLeaf(Leaf{Value: 5, NSamples: 4})
	require.Equal(t, 0, root)
	assert.Equal(t, 0, tr.Depth())
	assert.Equal(t, 1, tr.NumLeaves())

	l, r := tr.Split(root, Candidate{Feature: 1, Threshold: 2.5, Gain: 3}, Leaf{Value: 1, NSamples: 2}, Leaf{Value: 9, NSamples: 2})
	assert.Equal(t, 1, l)
	assert.Equal(t, 2, r)
	assert.False(t, tr.Nodes[0].IsLeaf())
	assert.Equal(t, 2, tr.NumLeaves())
	assert.Equal(t, 1, tr.Depth())

	// x[1] <= 2.5 は左
	assert.Equal(t, 1, tr.Apply([]float64{100, 2.5}))
	assert.Equal(t, 9.0, tr.PredictRow([]float64{0, 2.6}))

	clone := tr.Clone()
	clone.Nodes[1].Value = -1
	assert.Equal(t, 1.0, tr.Nodes[1].Value)

	imp := make([]float64, 2)
	tr.AddImportances(imp)
	assert.Equal(t, []float64{0, 3}, imp)

	assert.Panics(t, func() { tr.Split(0, Candidate{}, Leaf{}, Leaf{}) })
}

func TestMidpoint(t *testing.T) {
	assert.Equal(t, 2.5, Midpoint(2, 3))
	lo := 1.0
	hi := math.Nextafter(lo, 2)
	m := Midpoint(lo, hi)
	assert.True(t, m >= lo && m < hi)
}

func TestDecisionTreeDepthOneStump(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{1, 1, 9, 9})

	dt := NewDecisionTreeRegressor(WithMaxDepth(1))
	require.NoError(t, dt.Fit(X, y))

	root := dt.Tree().Nodes[0]
	assert.Equal(t, 0, root.Feature)
	assert.Greater(t, root.Threshold, 2.0)
	assert.Less(t, root.Threshold, 3.0)
	assert.InDelta(t, 64.0, root.Gain, 1e-9)

	pred, err := dt.Predict(mat.NewDense(2, 1, []float64{0, 10}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, pred.At(0, 0))
	assert.Equal(t, 9.0, pred.At(1, 0))
}

func TestDecisionTreeTieBreakPrefersFirstFeature(t *testing.T) {
	// 2つの特徴量が同じ分割を与える場合、特徴量 0 を選ぶ
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	dt := NewDecisionTreeRegressor(WithMaxDepth(1))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 0, dt.Tree().Nodes[0].Feature)
}

func TestDecisionTreeStoppingRules(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 7,
		2, 7,
		3, 7,
		4, 7,
	})

	t.Run("constant target", func(t *testing.T) {
		dt := NewDecisionTreeRegressor()
		require.NoError(t, dt.Fit(X, mat.NewDense(4, 1, []float64{3, 3, 3, 3})))
		assert.Equal(t, 1, dt.GetNLeaves())
		assert.Equal(t, 3.0, dt.Tree().Nodes[0].Value)
	})

	t.Run("constant features", func(t *testing.T) {
		Xc := mat.NewDense(3, 1, []float64{5, 5, 5})
		dt := NewDecisionTreeRegressor()
		require.NoError(t, dt.Fit(Xc, mat.NewDense(3, 1, []float64{1, 2, 6})))
		assert.Equal(t, 1, dt.GetNLeaves())
		assert.Equal(t, 3.0, dt.Tree().Nodes[0].Value)
	})

	t.Run("max depth zero", func(t *testing.T) {
		dt := NewDecisionTreeRegressor(WithMaxDepth(0))
		require.NoError(t, dt.Fit(X, mat.NewDense(4, 1, []float64{1, 2, 3, 4})))
		assert.Equal(t, 0, dt.GetDepth())
		assert.Equal(t, 2.5, dt.Tree().Nodes[0].Value)
	})

	t.Run("min samples split", func(t *testing.T) {
		dt := NewDecisionTreeRegressor(WithMaxDepth(10), WithMinSamplesSplit(3))
		require.NoError(t, dt.Fit(X, mat.NewDense(4, 1, []float64{1, 2, 3, 4})))
		for _, n := range dt.Tree().Nodes {
			if !n.IsLeaf() {
				assert.GreaterOrEqual(t, n.NSamples, 3)
			}
		}
	})
}

func randomData(n, p int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, p, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		s := 0.0
		for j := 0; j < p; j++ {
			v := math.Round(rng.Float64()*20) / 2 // 重複値を含める
			X.Set(i, j, v)
			s += float64(j+1) * v
		}
		y.Set(i, 0, s+rng.NormFloat64())
	}
	return X, y
}

func TestDecisionTreeLeavesPartitionRows(t *testing.T) {
	X, y := randomData(120, 3, 7)

	dt := NewDecisionTreeRegressor(WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))
	tr := dt.Tree()

	assert.LessOrEqual(t, tr.Depth(), 5)

	// 各行はちょうど1つの葉に入り、葉の値はその行の平均
	sums := map[int]float64{}
	counts := map[int]int{}
	row := make([]float64, 3)
	for i := 0; i < 120; i++ {
		mat.Row(row, i, X)
		leaf := tr.Apply(row)
		require.True(t, tr.Nodes[leaf].IsLeaf())
		sums[leaf] += y.At(i, 0)
		counts[leaf]++
	}
	total := 0
	for leaf, c := range counts {
		total += c
		assert.Equal(t, tr.Nodes[leaf].NSamples, c)
		assert.InDelta(t, sums[leaf]/float64(c), tr.Nodes[leaf].Value, 1e-9)
	}
	assert.Equal(t, 120, total)

	// 内部ノードの子の行数の和は親の行数に等しい
	for _, n := range tr.Nodes {
		if !n.IsLeaf() {
			assert.Equal(t, n.NSamples, tr.Nodes[n.Left].NSamples+tr.Nodes[n.Right].NSamples)
		}
	}
}

func TestDecisionTreeFeatureImportances(t *testing.T) {
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 10, 10, 10, 10})

	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	imp := dt.GetFeatureImportances()
	require.Len(t, imp, 3)
	assert.InDelta(t, 1.0, imp[0], 1e-12)
	assert.Equal(t, 0.0, imp[1])
}

func TestDecisionTreeParamsAndErrors(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	want := map[string]interface{}{"max_depth": 3, "min_samples_split": 2}
	if diff := cmp.Diff(want, dt.GetParams()); diff != "" {
		t.Errorf("GetParams mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, dt.SetParams(map[string]interface{}{"max_depth": 6.0, "min_samples_split": 4}))
	assert.Equal(t, 6, dt.MaxDepth)
	assert.Equal(t, 4, dt.MinSamplesSplit)

	assert.True(t, errors.IsUsageError(dt.SetParams(map[string]interface{}{"criterion": "mse"})))
	assert.True(t, errors.IsUsageError(dt.SetParams(map[string]interface{}{"min_samples_split": 1})))
	assert.True(t, errors.IsUsageError(dt.SetParams(map[string]interface{}{"max_depth": 2, "min_samples_split": 1})))
	assert.Equal(t, 6, dt.MaxDepth)
	assert.Equal(t, 4, dt.MinSamplesSplit)

	_, err := NewDecisionTreeRegressor().Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = dt.Fit(mat.NewDense(2, 1, []float64{1, math.NaN()}), mat.NewDense(2, 1, []float64{1, 2}))
	assert.True(t, errors.IsShapeError(err))
}

func TestDecisionTreeCloneIsDeep(t *testing.T) {
	X, y := randomData(40, 2, 3)
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	clone := dt.Clone().(*DecisionTreeRegressor)
	before, err := clone.Predict(X)
	require.NoError(t, err)

	dt.Tree().Nodes[0].Threshold = math.Inf(1)
	after, err := clone.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(before, after))
}
