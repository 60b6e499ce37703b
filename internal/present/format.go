// Package present renders pipeline results for display: COP strings,
// millions scaling and Spanish column labels.
package present

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"cuipo/internal/core"
)

// Million is the display divisor for amounts shown in millions of pesos.
const Million = 1e6

// Scale selects the unit amounts are displayed in.
type Scale int

const (
	Pesos Scale = iota
	Millions
)

func (s Scale) apply(a core.Amount) core.Amount {
	if s == Millions {
		return a.Div(Million)
	}
	return a
}

// Suffix is the unit caption appended to table titles.
func (s Scale) Suffix() string {
	if s == Millions {
		return "millones de pesos"
	}
	return "pesos"
}

// Comma grouping with a dot decimal, as the upstream dataset and the
// original dashboards render COP.
var printer = message.NewPrinter(language.AmericanEnglish)

// COP renders a peso amount rounded to whole pesos, e.g. "$1,234,568".
// Missing renders as "".
func COP(a core.Amount) string {
	v, ok := a.Get()
	if !ok {
		return ""
	}
	return printer.Sprintf("$%d", int64(math.RoundToEven(v)))
}

// Scaled converts a peso amount to the given scale.
func Scaled(a core.Amount, s Scale) core.Amount {
	return s.apply(a)
}

// ScaledCOP renders a in the given scale.
func ScaledCOP(a core.Amount, s Scale) string {
	return COP(s.apply(a))
}

// InMillions converts a peso amount to millions.
func InMillions(a core.Amount) core.Amount {
	return Millions.apply(a)
}
