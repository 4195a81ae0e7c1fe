package ensemble

import (
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/linear"
	"github.com/YuminosukeSato/treestack/pkg/errors"
	"github.com/YuminosukeSato/treestack/pkg/log"
	"github.com/YuminosukeSato/treestack/sklearn/boosting"
	"github.com/YuminosukeSato/treestack/sklearn/tree"
)

func friedman(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	src := rand.NewPCG(seed, seed)
	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 0.5, Src: src}

	X := mat.NewDense(n, 5, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 5; j++ {
			X.Set(i, j, u.Rand())
		}
		v := 10*math.Sin(math.Pi*X.At(i, 0)*X.At(i, 1)) + 20*math.Pow(X.At(i, 2)-0.5, 2) + 10*X.At(i, 3) + 5*X.At(i, 4)
		y.Set(i, 0, v+noise.Rand())
	}
	return X, y
}

func TestMaxFeaturesCount(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		p       int
		want    int
		wantErr bool
	}{
		{"sqrt", "sqrt", 10, 4, false},
		{"log2", "log2", 10, 4, false},
		{"log2 single feature", "log2", 1, 1, false},
		{"int", 3, 10, 3, false},
		{"integral float", 3.0, 10, 3, false},
		{"nil means all", nil, 10, 10, false},
		{"other string means all", "auto", 7, 7, false},
		{"zero", 0, 10, 0, true},
		{"too many", 11, 10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf := NewRandomForestRegressor(WithMaxFeatures(tt.value))
			got, err := rf.MaxFeaturesCount(tt.p)
			if tt.wantErr {
				assert.True(t, errors.IsUsageError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestForestSingleTreeEqualsDecisionTree(t *testing.T) {
	X, y := friedman(120, 1)

	rf := NewRandomForestRegressor(
		WithNEstimators(1),
		WithBootstrap(false),
		WithMaxFeatures(nil),
		WithForestMaxDepth(4),
	)
	require.NoError(t, rf.Fit(X, y))

	dt := tree.NewDecisionTreeRegressor(tree.WithMaxDepth(4))
	require.NoError(t, dt.Fit(X, y))

	got, err := rf.Predict(X)
	require.NoError(t, err)
	want, err := dt.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(got, want))
}

func TestForestIsMeanOfTrees(t *testing.T) {
	X, y := friedman(80, 2)
	rf := NewRandomForestRegressor(WithNEstimators(7), WithRandomState(3))
	require.NoError(t, rf.Fit(X, y))

	ests := rf.Estimators()
	require.Len(t, ests, 7)
	k, err := rf.MaxFeaturesCount(5)
	require.NoError(t, err)

	pred, err := rf.Predict(X)
	require.NoError(t, err)

	row := make([]float64, 5)
	for i := 0; i < 80; i++ {
		mat.Row(row, i, X)
		var s float64
		for _, e := range ests {
			sub := make([]float64, len(e.Features))
			for j, f := range e.Features {
				sub[j] = row[f]
			}
			s += e.Tree.Tree().PredictRow(sub)
		}
		assert.InDelta(t, s/7, pred.At(i, 0), 1e-12)
	}

	for _, e := range ests {
		assert.Len(t, e.Features, k)
		assert.True(t, sort.IntsAreSorted(e.Features))
	}
}

func TestForestReproducible(t *testing.T) {
	X, y := friedman(100, 3)

	fit := func(seed int) mat.Matrix {
		rf := NewRandomForestRegressor(WithNEstimators(12), WithRandomState(seed))
		require.NoError(t, rf.Fit(X, y))
		pred, err := rf.Predict(X)
		require.NoError(t, err)
		return pred
	}
	a, b, c := fit(42), fit(42), fit(7)
	assert.True(t, mat.Equal(a, b))
	assert.False(t, mat.Equal(a, c))
}

func TestForestImportancesAndErrors(t *testing.T) {
	X, y := friedman(100, 4)
	rf := NewRandomForestRegressor(WithNEstimators(5))

	_, err := rf.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	assert.Nil(t, rf.GetFeatureImportances())

	require.NoError(t, rf.Fit(X, y))
	assert.InDelta(t, 1.0, floats.Sum(rf.GetFeatureImportances()), 1e-9)

	_, err = rf.Predict(mat.NewDense(3, 4, nil))
	assert.True(t, errors.IsShapeError(err))

	assert.True(t, errors.IsUsageError(rf.SetParams(map[string]interface{}{"n_estimators": 0})))
	assert.True(t, errors.IsUsageError(rf.SetParams(map[string]interface{}{"criterion": "mse"})))
	assert.True(t, errors.IsUsageError(rf.SetParams(map[string]interface{}{"max_depth": 2, "min_samples_split": 1})))
	assert.Equal(t, 5, rf.NEstimators)
	assert.Equal(t, 5, rf.MaxDepth)
	assert.Equal(t, 2, rf.MinSamplesSplit)
	require.NoError(t, rf.SetParams(map[string]interface{}{
		"n_estimators": 3.0,
		"max_features": "log2",
		"bootstrap":    false,
	}))
	assert.Equal(t, 3, rf.NEstimators)
	assert.Equal(t, "log2", rf.GetParams()["max_features"])
}

func TestForestUsesInjectedLogger(t *testing.T) {
	X, y := friedman(30, 11)
	logger, _ := log.NewTestLogger(log.LevelDebug)

	rf := NewRandomForestRegressor(WithNEstimators(2)).WithLogger(logger)
	require.NoError(t, rf.Fit(X, y))
	assert.Equal(t, 1, logger.CountMessages("Training forest"))
}

func TestForestCloneIsDeep(t *testing.T) {
	X, y := friedman(60, 5)
	rf := NewRandomForestRegressor(WithNEstimators(4))
	require.NoError(t, rf.Fit(X, y))

	clone := rf.Clone().(*RandomForestRegressor)
	before, err := clone.Predict(X)
	require.NoError(t, err)

	require.NoError(t, rf.Fit(X, mat.NewDense(60, 1, nil)))
	after, err := clone.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(before, after))
}

// lookupRegressor は学習した行の目的変数を覚え、未知の行には unseen を返す。
// OOF に学習行の値が現れればリークしている。
type lookupRegressor struct {
	seen map[float64]float64
}

const unseen = -1000.0

func (l *lookupRegressor) Fit(X, y mat.Matrix) error {
	n, _ := X.Dims()
	l.seen = make(map[float64]float64, n)
	for i := 0; i < n; i++ {
		l.seen[X.At(i, 0)] = y.At(i, 0)
	}
	return nil
}

func (l *lookupRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		v, ok := l.seen[X.At(i, 0)]
		if !ok {
			v = unseen
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

func (l *lookupRegressor) Score(X, y mat.Matrix) (float64, error) { return 0, nil }

func (l *lookupRegressor) Clone() model.Regressor {
	c := &lookupRegressor{seen: make(map[float64]float64, len(l.seen))}
	for k, v := range l.seen {
		c.seen[k] = v
	}
	return c
}

func TestStackingOOFIsLeakFree(t *testing.T) {
	X, y := friedman(50, 6)
	s := NewStackingRegressor([]model.Regressor{&lookupRegressor{}, linear.NewRidge()}, nil, 11)
	require.NoError(t, s.Fit(X, y))

	oof := s.OOFPredictions()
	r, c := oof.Dims()
	require.Equal(t, 50, r)
	require.Equal(t, 2, c)
	for i := 0; i < 50; i++ {
		assert.Equal(t, unseen, oof.At(i, 0), "row %d was predicted by a model trained on it", i)
	}

	// 各行は自分を含まない fold の学習データで作られたモデルの予測
	for _, f := range s.Folds() {
		train := make(map[int]bool)
		for _, idx := range f.TrainIndices {
			train[idx] = true
		}
		for _, idx := range f.TestIndices {
			assert.False(t, train[idx])
		}
	}

	// 全データで学習し直したモデルは学習行を覚えている
	pred, err := s.FittedBaseModels()[0].Predict(X)
	require.NoError(t, err)
	assert.Equal(t, y.At(3, 0), pred.At(3, 0))
}

func TestStackingPredictionsWithinTargetRange(t *testing.T) {
	X, y := friedman(150, 7)
	logger, _ := log.NewTestLogger(log.LevelInfo)

	s := NewStackingRegressor([]model.Regressor{
		tree.NewDecisionTreeRegressor(tree.WithMaxDepth(4)),
		NewRandomForestRegressor(WithNEstimators(10), WithRandomState(1)),
		linear.NewRidge(),
	}, nil, 42).WithLogger(logger)
	require.NoError(t, s.Fit(X, y))

	pred, err := s.Predict(X)
	require.NoError(t, err)

	yv := model.Targets(y)
	lo, hi := floats.Min(yv), floats.Max(yv)
	margin := 0.1 * (hi - lo)
	for i := 0; i < 150; i++ {
		v := pred.At(i, 0)
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		assert.GreaterOrEqual(t, v, lo-margin)
		assert.LessOrEqual(t, v, hi+margin)
	}

	score, err := s.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.5)

	assert.Equal(t, 15, logger.CountMessages("Fold finished"))
	assert.Equal(t, 3, logger.CountMessages("Base model mean scores"))

	scores := s.FoldScores()
	require.Len(t, scores, 3)
	for _, sc := range scores {
		require.Len(t, sc, 5)
		assert.Equal(t, 5, sc[4].Fold)
	}

	meta, ok := s.FittedMetaModel().(*linear.Ridge)
	require.True(t, ok)
	assert.Equal(t, 1.0, meta.Alpha)
	assert.Len(t, meta.Coef(), 3)
}

func TestStackingRefitResetsState(t *testing.T) {
	X, y := friedman(40, 8)
	s := NewStackingRegressor([]model.Regressor{linear.NewLinearRegression()}, nil, 1).WithNFolds(4)

	require.NoError(t, s.Fit(X, y))
	first, err := s.Predict(X)
	require.NoError(t, err)

	require.NoError(t, s.Fit(X, y))
	second, err := s.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(first, second))
	assert.Len(t, s.FittedBaseModels(), 1)
	assert.Len(t, s.Folds(), 4)
}

func TestStackingRefitMatchesStandaloneBooster(t *testing.T) {
	X, y := friedman(80, 12)
	newBooster := func() *boosting.Regressor {
		return boosting.NewDepthWise(
			boosting.WithNEstimators(30),
			boosting.WithCallbacks(boosting.EarlyStoppingCallback(3, boosting.TrainMSE, 0)),
		)
	}

	standalone := newBooster()
	require.NoError(t, standalone.Fit(X, y))

	// fold ごとの学習で早期終了の状態が引き継がれないこと
	s := NewStackingRegressor([]model.Regressor{newBooster()}, nil, 4).WithNFolds(3)
	require.NoError(t, s.Fit(X, y))
	refit, ok := s.FittedBaseModels()[0].(*boosting.Regressor)
	require.True(t, ok)
	assert.Equal(t, standalone.NumTrees(), refit.NumTrees())

	want, err := standalone.Predict(X)
	require.NoError(t, err)
	got, err := refit.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}

func TestStackingErrorsAndParams(t *testing.T) {
	X, y := friedman(20, 9)

	s := NewStackingRegressor([]model.Regressor{linear.NewRidge()}, nil, 0)
	_, err := s.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	empty := NewStackingRegressor(nil, nil, 0)
	assert.True(t, errors.IsUsageError(empty.Fit(X, y)))

	assert.True(t, errors.IsUsageError(s.SetParams(map[string]interface{}{"n_folds": 1})))
	assert.True(t, errors.IsUsageError(s.SetParams(map[string]interface{}{"meta": "ols"})))
	assert.True(t, errors.IsUsageError(s.SetParams(map[string]interface{}{"n_folds": 4, "random_state": "x"})))
	assert.Equal(t, 5, s.NFolds)
	require.NoError(t, s.SetParams(map[string]interface{}{"n_folds": 3, "random_state": 5}))
	assert.Equal(t, map[string]interface{}{"n_folds": 3, "random_state": 5}, s.GetParams())

	s.NFolds = 30
	assert.True(t, errors.IsUsageError(s.Fit(X, y)))
}

func TestStackingCloneIsDeep(t *testing.T) {
	X, y := friedman(40, 10)
	s := NewStackingRegressor([]model.Regressor{
		tree.NewDecisionTreeRegressor(),
		linear.NewRidge(),
	}, linear.NewLinearRegression(), 3)
	require.NoError(t, s.Fit(X, y))

	clone := s.Clone().(*StackingRegressor)
	before, err := clone.Predict(X)
	require.NoError(t, err)

	require.NoError(t, s.Fit(X, mat.NewDense(40, 1, nil)))
	after, err := clone.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(before, after))
	assert.False(t, mat.Equal(s.OOFPredictions(), clone.OOFPredictions()))
}

func TestDefaultStacking(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping default stacking in short mode")
	}
	X, y := friedman(120, 11)
	s := NewDefaultStacking(42)
	require.Len(t, s.BaseModels, 4)
	_, ok := s.MetaModel.(*linear.LinearRegression)
	require.True(t, ok)

	require.NoError(t, s.Fit(X, y))
	score, err := s.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.7)
}
