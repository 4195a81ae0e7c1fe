package model_selection

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/YuminosukeSato/treestack/pkg/errors"
)

// ParameterGrid maps a hyperparameter name to its candidate values.
type ParameterGrid map[string][]interface{}

// Validate reports a parameter without candidates.
func (g ParameterGrid) Validate() error {
	for _, k := range g.keys() {
		if len(g[k]) == 0 {
			return errors.NewValidationError(k, "parameter grid entry has no candidates", g[k])
		}
	}
	return nil
}

func (g ParameterGrid) keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of combinations.
func (g ParameterGrid) Len() int {
	n := 1
	for _, vs := range g {
		n *= len(vs)
	}
	return n
}

// Combinations enumerates the Cartesian product. Keys are taken in ascending
// order and the last key varies fastest. An empty grid yields a single empty
// combination.
func (g ParameterGrid) Combinations() []map[string]interface{} {
	keys := g.keys()
	total := g.Len()
	out := make([]map[string]interface{}, 0, total)

	idx := make([]int, len(keys))
	for c := 0; c < total; c++ {
		params := make(map[string]interface{}, len(keys))
		for i, k := range keys {
			params[k] = g[k][idx[i]]
		}
		out = append(out, params)

		// 最後のキーから繰り上げる
		for i := len(keys) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g[keys[i]]) {
				break
			}
			idx[i] = 0
		}
	}
	return out
}

// LoadParamGrid reads a JSON object of the form {"max_depth": [2, 4], ...}.
// Numbers decode as float64; integer parameters accept integral floats.
func LoadParamGrid(r io.Reader) (ParameterGrid, error) {
	var grid ParameterGrid
	dec := json.NewDecoder(r)
	if err := dec.Decode(&grid); err != nil {
		return nil, errors.Wrap(err, "LoadParamGrid: decode")
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	return grid, nil
}
