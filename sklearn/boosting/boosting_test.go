package boosting

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/pkg/errors"
	"github.com/YuminosukeSato/treestack/pkg/log"
)

func makeData(n, p int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, p, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		s := 0.0
		for j := 0; j < p; j++ {
			v := rng.Float64()*4 - 2
			X.Set(i, j, v)
			s += math.Sin(float64(j+1) * v)
		}
		y.Set(i, 0, s+0.05*rng.NormFloat64())
	}
	return X, y
}

func TestSplitGainAndLeafWeight(t *testing.T) {
	// G_L=-2,H_L=2,G_R=2,H_R=2, λ=0: 0.5*(4/2 + 4/2 - 0) = 2
	assert.InDelta(t, 2.0, SplitGain(-2, 2, 2, 2, 0, 0), 1e-12)
	assert.InDelta(t, 1.5, SplitGain(-2, 2, 2, 2, 0, 0.5), 1e-12)
	assert.InDelta(t, 4.0/3.0, SplitGain(-2, 2, 2, 2, 1, 0), 1e-12)
	assert.InDelta(t, 1.0, LeafWeight(-3, 2, 1), 1e-12)

	g := make([]float64, 2)
	h := make([]float64, 2)
	Gradients([]float64{1, 2}, []float64{1.5, 1.5}, g, h)
	assert.Equal(t, []float64{0.5, -0.5}, g)
	assert.Equal(t, []float64{1, 1}, h)
}

func TestPredictionIsInitPlusShrunkTreeSum(t *testing.T) {
	X, y := makeData(80, 3, 1)

	for _, r := range []*Regressor{NewDepthWise(WithNEstimators(10)), NewLeafWise(WithNEstimators(10), WithMaxLeaves(6))} {
		require.NoError(t, r.Fit(X, y))
		require.Equal(t, 10, r.NumTrees())

		pred, err := r.Predict(X)
		require.NoError(t, err)

		row := make([]float64, 3)
		for i := 0; i < 80; i++ {
			mat.Row(row, i, X)
			want := r.InitPrediction()
			for _, tr := range r.Trees() {
				want += r.LearningRate * tr.PredictRow(row)
			}
			assert.InDelta(t, want, pred.At(i, 0), 1e-12)
		}
	}
}

func TestZeroLearningRatePredictsMean(t *testing.T) {
	X, y := makeData(30, 2, 2)
	mean := mat.Sum(y) / 30

	r := NewLeafWise(WithLearningRate(0), WithNEstimators(5))
	require.NoError(t, r.Fit(X, y))
	pred, err := r.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		assert.InDelta(t, mean, pred.At(i, 0), 1e-12)
	}
}

func TestGrowthLimits(t *testing.T) {
	X, y := makeData(200, 4, 3)

	lw := NewLeafWise(WithNEstimators(5), WithMaxLeaves(7))
	require.NoError(t, lw.Fit(X, y))
	for _, tr := range lw.Trees() {
		assert.LessOrEqual(t, tr.NumLeaves(), 7)
	}

	dw := NewDepthWise(WithNEstimators(5), WithMaxDepth(2))
	require.NoError(t, dw.Fit(X, y))
	for _, tr := range dw.Trees() {
		assert.LessOrEqual(t, tr.Depth(), 2)
		assert.LessOrEqual(t, tr.NumLeaves(), 4)
	}
}

func TestLeafWiseMinDataInLeaf(t *testing.T) {
	X, y := makeData(60, 2, 4)

	r := NewLeafWise(WithNEstimators(3), WithMinDataInLeaf(8), WithMaxLeaves(31))
	require.NoError(t, r.Fit(X, y))
	for _, tr := range r.Trees() {
		for _, n := range tr.Nodes {
			if n.IsLeaf() {
				assert.GreaterOrEqual(t, n.NSamples, 8)
			}
		}
	}
}

func TestLeafWiseGrowsUnbalanced(t *testing.T) {
	// 目的変数は x<=0 側だけに構造がある: 葉優先成長はそちらを深く分割する
	n := 64
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i) - 32
		X.Set(i, 0, x)
		if x <= 0 {
			y.Set(i, 0, math.Mod(x, 4)*10)
		} else {
			y.Set(i, 0, 100)
		}
	}

	r := NewLeafWise(WithNEstimators(1), WithMaxLeaves(8), WithLearningRate(1), WithLambda(0))
	require.NoError(t, r.Fit(X, y))
	tr := r.Trees()[0]
	assert.Equal(t, 8, tr.NumLeaves())
	assert.Greater(t, tr.Depth(), 3)
}

func TestLeafWiseTieSplitsEarliestLeaf(t *testing.T) {
	// 右半分の勾配は左半分の符号反転なので、根の左右の子の最良ゲインは完全に一致する
	X := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	y := mat.NewDense(8, 1, []float64{45, 55, 45, 55, 155, 145, 155, 145})

	r := NewLeafWise(WithNEstimators(1), WithMaxLeaves(3), WithLambda(0))
	require.NoError(t, r.Fit(X, y))

	tr := r.Trees()[0]
	require.Equal(t, 3, tr.NumLeaves())
	root := tr.Nodes[0]
	assert.InDelta(t, 3.5, root.Threshold, 1e-12)
	assert.False(t, tr.Nodes[root.Left].IsLeaf())
	assert.True(t, tr.Nodes[root.Right].IsLeaf())
}

func TestGammaPreventsSplits(t *testing.T) {
	X, y := makeData(40, 2, 5)
	r := NewDepthWise(WithNEstimators(3), WithGamma(1e9))
	require.NoError(t, r.Fit(X, y))
	for _, tr := range r.Trees() {
		assert.Equal(t, 1, tr.NumLeaves())
	}
}

func TestTrainingLossDecreases(t *testing.T) {
	X, y := makeData(150, 3, 6)
	var history map[string][]float64

	r := NewDepthWise(WithNEstimators(20), WithCallbacks(RecordEvaluation(&history)))
	require.NoError(t, r.Fit(X, y))

	losses := history[TrainMSE]
	require.Len(t, losses, 20)
	for i := 1; i < len(losses); i++ {
		assert.LessOrEqual(t, losses[i], losses[i-1]+1e-12)
	}
}

func TestCallbackStopsTraining(t *testing.T) {
	X, y := makeData(50, 2, 7)
	stopAt := func(env *CallbackEnv) error {
		if env.Iteration == 3 {
			env.StopTraining = true
		}
		return nil
	}

	logger, _ := log.NewTestLogger(log.LevelInfo)
	r := NewLeafWise(WithNEstimators(50), WithCallbacks(stopAt, LogEvaluation(logger, 2)), WithLogger(logger))
	require.NoError(t, r.Fit(X, y))
	assert.Equal(t, 4, r.NumTrees())
	assert.Equal(t, 2, logger.CountMessages("Boosting round finished"))

	pred, err := r.Predict(X)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(pred.At(0, 0)))
}

func TestEarlyStoppingRestartsEveryFit(t *testing.T) {
	X, y := makeData(60, 2, 10)
	r := NewDepthWise(
		WithNEstimators(40),
		WithCallbacks(EarlyStoppingCallback(2, TrainMSE, 0.05)),
	)

	require.NoError(t, r.Fit(X, y))
	first := r.NumTrees()

	require.NoError(t, r.Fit(X, y))
	assert.Equal(t, first, r.NumTrees())

	clone := r.Clone().(*Regressor)
	require.NoError(t, clone.Fit(X, y))
	assert.Equal(t, first, clone.NumTrees())
}

func TestRecordEvaluationKeepsLatestFit(t *testing.T) {
	X, y := makeData(30, 2, 11)
	var history map[string][]float64

	r := NewLeafWise(WithNEstimators(6), WithCallbacks(RecordEvaluation(&history)))
	require.NoError(t, r.Fit(X, y))
	require.NoError(t, r.Clone().Fit(X, y))
	assert.Len(t, history[TrainMSE], 6)
}

func TestTimeLimit(t *testing.T) {
	X, y := makeData(40, 2, 9)

	// 負の上限は最初のラウンド直後に必ず超える
	r := NewDepthWise(WithNEstimators(20), WithCallbacks(TimeLimit(-time.Second)))
	require.NoError(t, r.Fit(X, y))
	assert.Equal(t, 1, r.NumTrees())

	r = NewDepthWise(WithNEstimators(5), WithCallbacks(TimeLimit(time.Hour)))
	require.NoError(t, r.Fit(X, y))
	assert.Equal(t, 5, r.NumTrees())
}

func TestParamsAndErrors(t *testing.T) {
	r := NewDepthWise()
	require.NoError(t, r.SetParams(map[string]interface{}{
		"strategy":      "lightgbm",
		"n_estimators":  20.0,
		"learning_rate": 0.05,
		"max_leaves":    15,
		"lam":           2,
	}))
	assert.Equal(t, LeafWise, r.Strategy)
	assert.Equal(t, 20, r.NEstimators)
	assert.Equal(t, 15, r.MaxLeaves)
	assert.Equal(t, 2.0, r.Lambda)
	assert.Equal(t, "leafwise", r.GetParams()["strategy"])

	assert.True(t, errors.IsUsageError(r.SetParams(map[string]interface{}{"strategy": "breadth"})))
	assert.Equal(t, LeafWise, r.Strategy)
	assert.True(t, errors.IsUsageError(r.SetParams(map[string]interface{}{"subsample": 0.5})))
	assert.True(t, errors.IsUsageError(r.SetParams(map[string]interface{}{"n_estimators": "many"})))
	assert.Equal(t, 20, r.NEstimators)
	assert.True(t, errors.IsUsageError(r.SetParams(map[string]interface{}{"learning_rate": 0.3, "min_samples_split": 1})))
	assert.Equal(t, 0.05, r.LearningRate)
	assert.Equal(t, 2, r.MinSamplesSplit)

	bad := NewDepthWise()
	bad.Strategy = "breadth"
	X, y := makeData(10, 1, 8)
	assert.True(t, errors.IsUsageError(bad.Fit(X, y)))

	_, err := NewDepthWise().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestCloneIsDeep(t *testing.T) {
	X, y := makeData(40, 2, 9)
	r := NewDepthWise(WithNEstimators(5))
	require.NoError(t, r.Fit(X, y))

	clone := r.Clone().(*Regressor)
	before, err := clone.Predict(X)
	require.NoError(t, err)

	require.NoError(t, r.Fit(X, mat.NewDense(40, 1, nil)))
	after, err := clone.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(before, after))
}
