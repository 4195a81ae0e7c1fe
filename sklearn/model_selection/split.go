// Package model_selection はクロスバリデーションとハイパーパラメータ探索を提供する。
//
// KFold が行インデックスを分割し、FitFold が1つの fold でモデルを学習・評価する。
// CrossValidate と GridSearchCV はその上に構築され、スタッキングも FitFold を使って
// out-of-fold 予測を作る。
package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/pkg/errors"
)

// Fold represents a single fold in cross-validation
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int) KFold {
	return KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (kf KFold) GetNSplits() int {
	return kf.NSplits
}

// Split partitions the row indices 0..n-1 into NSplits disjoint test folds.
// The first n mod NSplits folds hold one extra row. Train indices are in
// ascending order; test indices keep the (possibly shuffled) fold order.
func (kf KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be >= 2", kf.NSplits)
	}
	if kf.NSplits > n {
		return nil, errors.NewValidationError("n_splits", "cannot be greater than the number of samples", kf.NSplits)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits

	inTest := make([]bool, n)
	current := 0
	for i := range folds {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := make([]int, testSize)
		copy(test, indices[current:current+testSize])

		for _, idx := range test {
			inTest[idx] = true
		}
		train := make([]int, 0, n-testSize)
		for j := 0; j < n; j++ {
			if !inTest[j] {
				train = append(train, j)
			}
		}
		for _, idx := range test {
			inTest[idx] = false
		}

		folds[i] = Fold{TrainIndices: train, TestIndices: test}
		current += testSize
	}
	return folds, nil
}

// TrainTestSplit shuffles the rows with seed and holds out ceil(testSize·n)
// of them. testSize must lie in (0, 1) and leave at least one row on each side.
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed int) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	n, _, err := model.ValidateFitInput("TrainTestSplit", X, y)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		return nil, nil, nil, nil, errors.NewValidationError("test_size", "leaves no training rows", testSize)
	}

	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	perm := r.Perm(n)
	test := append([]int(nil), perm[:nTest]...)
	train := append([]int(nil), perm[nTest:]...)
	sort.Ints(test)
	sort.Ints(train)

	return model.SelectRows(X, train), model.SelectRows(X, test),
		model.SelectRows(y, train), model.SelectRows(y, test), nil
}
