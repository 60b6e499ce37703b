package dashboard

import (
	"fmt"
	"strings"
)

// Operation names one dashboard computation.
type Operation string

const (
	LoadRevenue        Operation = "load-revenue"
	LoadRevenueHistory Operation = "load-revenue-history"
	LoadExpense        Operation = "load-expense"
	LoadComparison     Operation = "load-comparison"
)

// Operations lists every operation in menu order.
var Operations = []Operation{LoadRevenue, LoadRevenueHistory, LoadExpense, LoadComparison}

func (o Operation) String() string { return string(o) }

// IsValid reports whether o is a known operation.
func (o Operation) IsValid() bool {
	for _, op := range Operations {
		if op == o {
			return true
		}
	}
	return false
}

// ParseOperation accepts an operation name, ignoring case and padding.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	if !op.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
	}
	return op, nil
}
