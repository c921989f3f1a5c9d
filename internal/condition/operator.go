package condition

import "fmt"

// Operator is a comparison operator shared across numeric condition variants.
// Not every variant exposes all six; per-variant subsets are enforced at
// validation time.
type Operator string

const (
	OpGTE Operator = ">="
	OpLTE Operator = "<="
	OpLT  Operator = "<"
	OpGT  Operator = ">"
	OpEQ  Operator = "=="
	OpNEQ Operator = "!="
)

// OperatorOptions is the candidate list as presented in the raw document.
const OperatorOptions = ">= / <= / < / > / == / !="

// ParseOperator validates s against the operator candidate list.
func ParseOperator(s string) (Operator, error) {
	switch Operator(s) {
	case OpGTE, OpLTE, OpLT, OpGT, OpEQ, OpNEQ:
		return Operator(s), nil
	}
	return "", fmt.Errorf("operator %q is not one of %q", s, OperatorOptions)
}

// Compare applies the operator to a live sample and a threshold, both already
// normalized to the same unit. EQ and NEQ are exact comparisons even on
// floating-point percentages: the schema exposes == as a first-class
// operator, so no implicit epsilon is applied.
func (op Operator) Compare(sample, threshold float64) bool {
	switch op {
	case OpGTE:
		return sample >= threshold
	case OpLTE:
		return sample <= threshold
	case OpLT:
		return sample < threshold
	case OpGT:
		return sample > threshold
	case OpEQ:
		return sample == threshold
	case OpNEQ:
		return sample != threshold
	}
	return false
}
