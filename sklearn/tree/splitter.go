package tree

import (
	"sort"
)

// SortRows returns a copy of rows ordered by col value, ascending. Rows with
// equal values keep their relative order.
func SortRows(col []float64, rows []int) []int {
	order := append([]int(nil), rows...)
	sort.SliceStable(order, func(a, b int) bool {
		return col[order[a]] < col[order[b]]
	})
	return order
}

// Midpoint returns the threshold between two consecutive distinct sorted
// values lo < hi. The result always satisfies lo <= t < hi, so routing with
// x <= t reproduces the sorted partition.
func Midpoint(lo, hi float64) float64 {
	t := (lo + hi) / 2
	if t >= hi || t < lo {
		// 隣接する浮動小数点数では丸めで hi になり得る
		return lo
	}
	return t
}

// Partition splits rows into those with col <= threshold and the rest,
// preserving order.
func Partition(col []float64, rows []int, threshold float64) (left, right []int) {
	left = make([]int, 0, len(rows))
	right = make([]int, 0, len(rows))
	for _, r := range rows {
		if col[r] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

// allEqual reports whether every y[r] for r in rows is the same value.
func allEqual(y []float64, rows []int) bool {
	for _, r := range rows[1:] {
		if y[r] != y[rows[0]] {
			return false
		}
	}
	return true
}
