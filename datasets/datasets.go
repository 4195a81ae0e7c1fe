// Package datasets は例とテストで使う合成回帰データを生成する。
// 乱数は全てシードから作る PCG ソースで、同じシードなら同じデータになる。
package datasets

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/treestack/pkg/errors"
)

func validateShape(n, p int) error {
	if n < 1 {
		return errors.NewValidationError("n_samples", "must be >= 1", n)
	}
	if p < 1 {
		return errors.NewValidationError("n_features", "must be >= 1", p)
	}
	return nil
}

// MakeRegression は y = X·coef + 0.5 + ε の線形データを返す。
// X は標準正規分布、coef は [0, 100) の一様分布、ε は標準偏差 noise の正規分布。
func MakeRegression(n, p int, noise float64, seed int) (X, y *mat.Dense, coef []float64, err error) {
	if err := validateShape(n, p); err != nil {
		return nil, nil, nil, err
	}
	if noise < 0 || math.IsNaN(noise) {
		return nil, nil, nil, errors.NewValidationError("noise", "must be >= 0", noise)
	}

	src := rand.NewPCG(uint64(seed), uint64(seed))
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	uniform := distuv.Uniform{Min: 0, Max: 100, Src: src}

	coef = make([]float64, p)
	for j := range coef {
		coef[j] = uniform.Rand()
	}

	X = mat.NewDense(n, p, nil)
	y = mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		v := 0.5
		for j := 0; j < p; j++ {
			x := normal.Rand()
			X.Set(i, j, x)
			v += coef[j] * x
		}
		if noise > 0 {
			v += noise * normal.Rand()
		}
		y.Set(i, 0, v)
	}
	return X, y, coef, nil
}

// MakeFriedman1 は Friedman #1 の非線形データを返す。p は5以上で、6列目以降は目的変数に影響しない。
//
//	y = 10 sin(π x0 x1) + 20 (x2 - 0.5)² + 10 x3 + 5 x4 + ε
func MakeFriedman1(n, p int, noise float64, seed int) (X, y *mat.Dense, err error) {
	if err := validateShape(n, p); err != nil {
		return nil, nil, err
	}
	if p < 5 {
		return nil, nil, errors.NewValidationError("n_features", "must be >= 5", p)
	}
	if noise < 0 || math.IsNaN(noise) {
		return nil, nil, errors.NewValidationError("noise", "must be >= 0", noise)
	}

	src := rand.NewPCG(uint64(seed), uint64(seed))
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	X = mat.NewDense(n, p, nil)
	y = mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			X.Set(i, j, uniform.Rand())
		}
		v := 10*math.Sin(math.Pi*X.At(i, 0)*X.At(i, 1)) +
			20*math.Pow(X.At(i, 2)-0.5, 2) +
			10*X.At(i, 3) + 5*X.At(i, 4)
		if noise > 0 {
			v += noise * normal.Rand()
		}
		y.Set(i, 0, v)
	}
	return X, y, nil
}
