package present

import (
	"fmt"
	"time"

	"cuipo/internal/aggregate"
	"cuipo/internal/core"
	"cuipo/internal/derived"
)

// Table is a display-ready grid.
type Table struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	// TotalRow is the index of the TOTAL row, or -1.
	TotalRow int `json:"total_row"`
}

// FromAggregate renders t with labelled headers and scaled COP cells.
// Key columns listed in hide are omitted.
func FromAggregate(title string, t aggregate.Table, s Scale, hide ...string) Table {
	hidden := map[string]bool{}
	for _, h := range hide {
		hidden[h] = true
	}
	out := Table{Title: titled(title, s), TotalRow: -1}
	var keyIdx []int
	for i, k := range t.Keys {
		if !hidden[k] {
			keyIdx = append(keyIdx, i)
			out.Headers = append(out.Headers, Label(k))
		}
	}
	out.Headers = append(out.Headers, Labels(t.Sums)...)

	out.Rows = make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make([]string, 0, len(keyIdx)+len(r.Sums))
		for _, i := range keyIdx {
			row = append(row, r.Keys[i])
		}
		for _, v := range r.Sums {
			row = append(row, ScaledCOP(v, s))
		}
		if r.Total {
			out.TotalRow = len(out.Rows)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func titled(title string, s Scale) string {
	if title == "" {
		return ""
	}
	return fmt.Sprintf("%s (%s)", title, s.Suffix())
}

// ChartRow is one tidy observation of a line chart.
type ChartRow struct {
	Date   string   `json:"date"`
	Series string   `json:"series"`
	Value  *float64 `json:"value"`
	Label  string   `json:"label"`
}

// HistoryPoint is a dated nominal and real pair, both in pesos.
type HistoryPoint struct {
	Date    time.Time
	Nominal core.Amount
	Real    core.Amount
}

// HistoryChart melts the points into a tidy table in millions, nominal
// then real per date. Missing values keep their row with a null value.
func HistoryChart(points []HistoryPoint) []ChartRow {
	out := make([]ChartRow, 0, 2*len(points))
	for _, p := range points {
		date := p.Date.Format(time.DateOnly)
		for _, s := range []struct {
			name string
			v    core.Amount
		}{{SeriesNominal, p.Nominal}, {SeriesReal, p.Real}} {
			m := InMillions(s.v)
			out = append(out, ChartRow{Date: date, Series: s.name, Value: ptr(m), Label: COP(m)})
		}
	}
	return out
}

// ComparisonBar is one bar of the per-capita comparison.
type ComparisonBar struct {
	Name     string   `json:"name"`
	Value    *float64 `json:"value"`
	Label    string   `json:"label"`
	Selected bool     `json:"selected"`
}

// ComparisonBars renders the selected entity, its category mean and the
// country mean.
func ComparisonBars(entityName string, c derived.Comparison) []ComparisonBar {
	return []ComparisonBar{
		{Name: entityName, Value: ptr(c.Selected), Label: COP(c.Selected), Selected: true},
		{Name: fmt.Sprintf(categoryAverage, c.Category), Value: ptr(c.CategoryMean), Label: COP(c.CategoryMean)},
		{Name: CountryAverage, Value: ptr(c.CountryMean), Label: COP(c.CountryMean)},
	}
}

func ptr(a core.Amount) *float64 {
	v, ok := a.Get()
	if !ok {
		return nil
	}
	return &v
}
