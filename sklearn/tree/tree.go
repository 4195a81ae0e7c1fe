// Package tree は回帰木の配列表現（アリーナ）と CART 回帰木を提供する。
//
// ノードは Tree.Nodes に格納され、子はインデックスで参照する。ルートは常に 0。
// 同じ表現を勾配ブースティング（sklearn/boosting）も使う。
package tree

// Node is one node of a Tree. A node is a leaf iff Feature == -1, in which
// case Left and Right are -1 too. Rows with x[Feature] <= Threshold go left.
type Node struct {
	Feature   int     // split feature, -1 for a leaf
	Threshold float64 // split threshold
	Gain      float64 // loss reduction of the split (0 for a leaf)
	Value     float64 // prediction of the node
	Left      int     // left child index, -1 for a leaf
	Right     int     // right child index, -1 for a leaf
	NSamples  int     // training rows that reached the node
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Feature < 0
}

// Leaf holds the statistics of a newly created leaf.
type Leaf struct {
	Value    float64
	NSamples int
}

// Candidate is a split proposed by a split search.
type Candidate struct {
	Feature   int
	Threshold float64
	Gain      float64
	NLeft     int // rows going left
}

// Tree is an arena of nodes. The zero value is an empty tree; use AddLeaf to
// create the root.
type Tree struct {
	Nodes []Node
}

// AddLeaf appends a leaf and returns its index.
func (t *Tree) AddLeaf(l Leaf) int {
	t.Nodes = append(t.Nodes, Node{
		Feature:  -1,
		Value:    l.Value,
		Left:     -1,
		Right:    -1,
		NSamples: l.NSamples,
	})
	return len(t.Nodes) - 1
}

// Split turns the leaf at index into an internal node with two new leaves and
// returns the indices of the children. It panics if index is not a leaf.
func (t *Tree) Split(index int, c Candidate, left, right Leaf) (int, int) {
	if !t.Nodes[index].IsLeaf() {
		panic("tree: Split called on an internal node")
	}
	l := t.AddLeaf(left)
	r := t.AddLeaf(right)

	n := &t.Nodes[index]
	n.Feature = c.Feature
	n.Threshold = c.Threshold
	n.Gain = c.Gain
	n.Left = l
	n.Right = r
	return l, r
}

// Apply returns the index of the leaf that row falls into.
func (t *Tree) Apply(row []float64) int {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return i
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// PredictRow returns the value of the leaf that row falls into.
func (t *Tree) PredictRow(row []float64) float64 {
	return t.Nodes[t.Apply(row)].Value
}

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Depth returns the number of edges on the longest root-to-leaf path.
// A single-leaf tree has depth 0; an empty tree has depth -1.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return -1
	}
	type item struct{ node, depth int }
	stack := []item{{0, 0}}
	best := 0
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.Nodes[it.node]
		if n.IsLeaf() {
			best = max(best, it.depth)
			continue
		}
		stack = append(stack, item{n.Left, it.depth + 1}, item{n.Right, it.depth + 1})
	}
	return best
}

// Clone returns a deep copy.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	return &Tree{Nodes: append([]Node(nil), t.Nodes...)}
}

// AddImportances adds each split's gain to dst[feature].
func (t *Tree) AddImportances(dst []float64) {
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if !n.IsLeaf() && n.Feature < len(dst) {
			dst[n.Feature] += n.Gain
		}
	}
}
