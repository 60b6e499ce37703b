// Package derived computes per-capita, inflation-adjusted and comparison
// metrics from aggregated totals.
package derived

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cuipo/internal/core"
	"cuipo/internal/log"
)

// DefaultBaseIndex is the base of the price index series.
const DefaultBaseIndex = 100.0

// ErrLookupMiss is returned when the selected entity has no value to compare.
var ErrLookupMiss = errors.New("entity not found in comparison set")

type Calculator struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Calculator {
	return &Calculator{logger: log.OrDiscard(logger).WithComponent(log.ComponentDerived)}
}

// PerCapita divides each entity total by its population. Entities without a
// population, or with a missing total, are left out of the result and the
// exclusion is logged.
func (c *Calculator) PerCapita(ctx context.Context, totals map[string]core.Amount, populations map[string]float64) map[string]core.Amount {
	out := make(map[string]core.Amount, len(totals))
	var noPopulation, noTotal []string
	for code, total := range totals {
		pop, ok := populations[code]
		if !ok || pop <= 0 {
			noPopulation = append(noPopulation, code)
			continue
		}
		if !total.Valid {
			noTotal = append(noTotal, code)
			continue
		}
		out[code] = total.Div(pop)
	}
	if len(noPopulation) > 0 {
		sort.Strings(noPopulation)
		c.logger.WarnContext(ctx, "Entities excluded from per-capita: no population",
			log.FieldCount, len(noPopulation),
			log.FieldCodes, noPopulation)
	}
	if len(noTotal) > 0 {
		sort.Strings(noTotal)
		c.logger.DebugContext(ctx, "Entities excluded from per-capita: missing total",
			log.FieldCount, len(noTotal),
			log.FieldCodes, noTotal)
	}
	return out
}

// Point is one dated value of a series.
type Point struct {
	Year  int
	Value core.Amount
}

// InflationAdjust converts nominal values to real ones:
// real = nominal / index[year] * base. A year absent from index, or with a
// non-positive index, yields a missing value.
func InflationAdjust(series []Point, index map[int]float64, base float64) []Point {
	out := make([]Point, len(series))
	for i, p := range series {
		out[i] = Point{Year: p.Year, Value: core.Missing}
		idx, ok := index[p.Year]
		if !ok || idx <= 0 {
			continue
		}
		out[i].Value = p.Value.Div(idx).Mul(base)
	}
	return out
}

// Mean is the arithmetic mean of the present values. Missing values do not
// count toward the denominator; no present value yields missing.
func Mean(values []core.Amount) core.Amount {
	var sum float64
	n := 0
	for _, v := range values {
		if f, ok := v.Get(); ok {
			sum += f
			n++
		}
	}
	if n == 0 {
		return core.Missing
	}
	return core.Some(sum / float64(n))
}

// Comparison places one entity's per-capita value against its category and
// the whole country.
type Comparison struct {
	EntityCode   string
	Category     string
	Selected     core.Amount
	CategoryMean core.Amount
	CountryMean  core.Amount
	CategorySize int
	CountrySize  int
}

// CategoryComparison compares the selected entity with the mean of the
// entities sharing its category and with the mean of all entities. The
// selected entity is matched by code and must be present in perCapita.
func CategoryComparison(perCapita map[string]core.Amount, categories map[string]string, selected string) (Comparison, error) {
	sel, ok := perCapita[selected]
	if !ok || !sel.Valid {
		return Comparison{}, fmt.Errorf("%w: %s", ErrLookupMiss, selected)
	}
	cat := categories[selected]

	codes := make([]string, 0, len(perCapita))
	for code := range perCapita {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var all, same []core.Amount
	for _, code := range codes {
		v := perCapita[code]
		all = append(all, v)
		if cat != "" && categories[code] == cat {
			same = append(same, v)
		}
	}
	cmp := Comparison{
		EntityCode:   selected,
		Category:     cat,
		Selected:     sel,
		CategoryMean: Mean(same),
		CountryMean:  Mean(all),
		CategorySize: countPresent(same),
		CountrySize:  countPresent(all),
	}
	return cmp, nil
}

func countPresent(values []core.Amount) int {
	n := 0
	for _, v := range values {
		if v.Valid {
			n++
		}
	}
	return n
}
