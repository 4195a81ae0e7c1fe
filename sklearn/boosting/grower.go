package boosting

import (
	"github.com/YuminosukeSato/treestack/sklearn/tree"
)

// grower は1ラウンド分の木を勾配とヘッセから成長させる
type grower interface {
	grow(cols [][]float64, grad, hess []float64, rows []int) *tree.Tree
}

type splitParams struct {
	lambda  float64
	gamma   float64
	minLeaf int // 左右の子がそれぞれ持つべき最小行数
}

// bestSplit はゲインが正で最大の分割を探す。
// 同じゲインの候補は (特徴量, 閾値) の昇順で先に見つかったものを採用する。
func bestSplit(cols [][]float64, grad, hess []float64, rows []int, p splitParams) (tree.Candidate, bool) {
	n := len(rows)
	G, H := sums(grad, hess, rows)

	best := tree.Candidate{Feature: -1}
	for f, col := range cols {
		order := tree.SortRows(col, rows)
		if col[order[0]] == col[order[n-1]] {
			continue // 定数の特徴量
		}

		var gL, hL float64
		for k := 1; k < n; k++ {
			gL += grad[order[k-1]]
			hL += hess[order[k-1]]

			lo, hi := col[order[k-1]], col[order[k]]
			if lo == hi {
				continue
			}
			if k < p.minLeaf || n-k < p.minLeaf {
				continue
			}

			gain := SplitGain(gL, hL, G-gL, H-hL, p.lambda, p.gamma)
			if gain > 0 && (best.Feature < 0 || gain > best.Gain) {
				best = tree.Candidate{Feature: f, Threshold: tree.Midpoint(lo, hi), Gain: gain, NLeft: k}
			}
		}
	}
	return best, best.Feature >= 0
}

// splitNode は leaf を c で分割し、子の重みを設定して左右の行を返す
func splitNode(t *tree.Tree, leaf int, c tree.Candidate, cols [][]float64, grad, hess []float64, rows []int, lambda float64) (int, []int, int, []int) {
	left, right := tree.Partition(cols[c.Feature], rows, c.Threshold)
	gL, hL := sums(grad, hess, left)
	gR, hR := sums(grad, hess, right)
	l, r := t.Split(leaf, c,
		tree.Leaf{Value: LeafWeight(gL, hL, lambda), NSamples: len(left)},
		tree.Leaf{Value: LeafWeight(gR, hR, lambda), NSamples: len(right)},
	)
	return l, left, r, right
}

func newRoot(grad, hess []float64, rows []int, lambda float64) *tree.Tree {
	G, H := sums(grad, hess, rows)
	t := &tree.Tree{Nodes: make([]tree.Node, 0, 64)}
	t.AddLeaf(tree.Leaf{Value: LeafWeight(G, H, lambda), NSamples: len(rows)})
	return t
}

// depthWise は XGBoost 風の深さ優先成長。
// 各ノードは depth >= maxDepth か行数が minSamplesSplit 未満で葉になる。
type depthWise struct {
	maxDepth        int
	minSamplesSplit int
	params          splitParams
}

func (d *depthWise) grow(cols [][]float64, grad, hess []float64, rows []int) *tree.Tree {
	t := newRoot(grad, hess, rows, d.params.lambda)
	d.growNode(t, 0, cols, grad, hess, rows, 0)
	return t
}

func (d *depthWise) growNode(t *tree.Tree, node int, cols [][]float64, grad, hess []float64, rows []int, depth int) {
	if depth >= d.maxDepth || len(rows) < d.minSamplesSplit {
		return
	}
	c, ok := bestSplit(cols, grad, hess, rows, d.params)
	if !ok {
		return
	}
	l, left, r, right := splitNode(t, node, c, cols, grad, hess, rows, d.params.lambda)
	d.growNode(t, l, cols, grad, hess, left, depth+1)
	d.growNode(t, r, cols, grad, hess, right, depth+1)
}

// leafWise は LightGBM 風の葉優先（best-first）成長。
// 葉の数が maxLeaves に達するか、正のゲインを持つ分割がなくなるまで、
// 全ての葉の中で最もゲインの大きい葉を分割する。
type leafWise struct {
	maxLeaves int
	params    splitParams
}

type openLeaf struct {
	node      int
	rows      []int
	cand      tree.Candidate
	ok        bool
	evaluated bool
}

func (lw *leafWise) grow(cols [][]float64, grad, hess []float64, rows []int) *tree.Tree {
	t := newRoot(grad, hess, rows, lw.params.lambda)

	// leaves は作成順（ノード番号の昇順）に並ぶ
	leaves := []*openLeaf{{node: 0, rows: rows}}
	for len(leaves) < lw.maxLeaves {
		bestIdx := -1
		for i, l := range leaves {
			if len(l.rows) < 2*lw.params.minLeaf {
				continue
			}
			// ラウンド内では勾配が固定なので葉の最良分割は変わらない
			if !l.evaluated {
				l.cand, l.ok = bestSplit(cols, grad, hess, l.rows, lw.params)
				l.evaluated = true
			}
			if l.ok && (bestIdx < 0 || l.cand.Gain > leaves[bestIdx].cand.Gain) {
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}

		target := leaves[bestIdx]
		l, left, r, right := splitNode(t, target.node, target.cand, cols, grad, hess, target.rows, lw.params.lambda)
		leaves = append(leaves[:bestIdx], leaves[bestIdx+1:]...)
		leaves = append(leaves, &openLeaf{node: l, rows: left}, &openLeaf{node: r, rows: right})
	}
	return t
}
