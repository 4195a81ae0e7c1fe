package errors

import (
	"fmt"
	"math"
)

// NumericalInstabilityError reports NaN or Inf values found in an input or
// an intermediate result.
type NumericalInstabilityError struct {
	Operation string    // where the values were found, e.g. "Fit.X"
	Values    []float64 // offending values (at most 10)
	Row       int       // first offending row, -1 if unknown
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("treestack: non-finite values detected in %s at row %d. Values: [%s]",
		e.Operation, e.Row, valStr)
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a stack trace.
func NewNumericalInstabilityError(operation string, values []float64, row int) error {
	return WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Row: row})
}

// CheckScalar checks a single scalar value for NaN or Inf.
func CheckScalar(operation string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, -1)
	}
	return nil
}

// CheckMatrix checks all values in a matrix for NaN or Inf. Models require
// pre-cleaned input, so any such value is reported instead of propagated.
func CheckMatrix(operation string, matrix interface{ At(int, int) float64 }, rows, cols int) error {
	var unstable []float64
	firstRow := -1

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				if firstRow < 0 {
					firstRow = i
				}
				unstable = append(unstable, v)
				if len(unstable) >= 10 {
					break
				}
			}
		}
		if len(unstable) >= 10 {
			break
		}
	}

	if len(unstable) > 0 {
		return NewNumericalInstabilityError(operation, unstable, firstRow)
	}
	return nil
}
