package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/core/parallel"
	"github.com/YuminosukeSato/treestack/pkg/errors"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// designMatrix は fitIntercept が真なら先頭に 1 の列を追加した計画行列を返す
// X_design = [1, X]
func designMatrix(X mat.Matrix, fitIntercept bool) *mat.Dense {
	r, c := X.Dims()
	off := 0
	if fitIntercept {
		off = 1
	}
	design := mat.NewDense(r, c+off, nil)

	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			if fitIntercept {
				design.Set(i, 0, 1.0) // 切片項
			}
			for j := 0; j < c; j++ {
				design.Set(i, j+off, X.At(i, j))
			}
		}
	})
	return design
}

// lstsq は |b - A w|₂ を最小化するノルム最小解を薄い SVD で求める。
// 打ち切りは numpy の rcond=None と同じく eps·max(m, n)·s_max。
// 戻り値は解、実効ランク、A の特異値。
func lstsq(op string, A *mat.Dense, b *mat.VecDense) (*mat.VecDense, int, []float64, error) {
	m, n := A.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDThin); !ok {
		return nil, 0, nil, errors.NewModelError(op, "SVD failed to converge", errors.ErrSingularMatrix)
	}
	singular := svd.Values(nil)

	rcond := eps * float64(max(m, n))
	w := mat.NewVecDense(n, nil)
	if len(singular) == 0 || singular[0] == 0 {
		// A がゼロ行列のとき解はゼロベクトル
		return w, 0, singular, nil
	}
	rank := svd.Rank(rcond)
	svd.SolveVecTo(w, b, rank)
	return w, rank, singular, nil
}

var eps = math.Nextafter(1, 2) - 1

// splitWeights は解ベクトルを切片と係数に分ける
func splitWeights(w *mat.VecDense, fitIntercept bool) (float64, []float64) {
	raw := w.RawVector().Data
	if w.RawVector().Inc != 1 {
		raw = make([]float64, w.Len())
		for i := range raw {
			raw[i] = w.AtVec(i)
		}
	}
	if fitIntercept {
		coef := make([]float64, len(raw)-1)
		copy(coef, raw[1:])
		return raw[0], coef
	}
	coef := make([]float64, len(raw))
	copy(coef, raw)
	return 0, coef
}

// linearPredict は y = X * coef + intercept を計算する
func linearPredict(X mat.Matrix, coef []float64, intercept float64) *mat.Dense {
	r, c := X.Dims()
	predictions := mat.NewDense(r, 1, nil)

	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := intercept
			for j := 0; j < c; j++ {
				pred += X.At(i, j) * coef[j]
			}
			predictions.Set(i, 0, pred)
		}
	})
	return predictions
}

func targetVec(y mat.Matrix) *mat.VecDense {
	n, _ := y.Dims()
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, y.At(i, 0))
	}
	return v
}
