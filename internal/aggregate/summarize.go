package aggregate

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"cuipo/internal/core"
)

// TotalLabel marks the synthesized grand-total row.
const TotalLabel = "TOTAL"

type (
	// Row is one grouped line of a Table.
	Row struct {
		Keys  []string
		Sums  []core.Amount
		Total bool
	}

	// Table is a grouped result. When it carries a total, it is the last row.
	Table struct {
		Keys []string
		Sums []string
		Rows []Row
	}

	Options struct {
		// ReservedLabel drops groups whose label equals it, case-insensitively.
		ReservedLabel string
		// LabelField is the key column that carries the TOTAL marker and is
		// compared against ReservedLabel. Defaults to the last key.
		LabelField string
		// NoTotal skips the trailing TOTAL row.
		NoTotal bool
	}
)

// Summarize groups records by keys and sums the sum fields.
//
// Records missing any key are dropped. Missing amounts are excluded from a
// sum; a group with no present contribution keeps a missing sum. Groups are
// ordered by their keys ascending and the TOTAL row, whose keys are blank
// except the label column, is appended last.
func Summarize[R Record](records []R, keys, sums []string, opts Options) Table {
	labelIdx := len(keys) - 1
	if i := slices.Index(keys, opts.LabelField); i >= 0 {
		labelIdx = i
	}

	type group struct {
		keys []string
		acc  []accumulator
	}
	groups := map[string]*group{}
	var order []*group

next:
	for _, r := range records {
		kv := make([]string, len(keys))
		for i, k := range keys {
			v, ok := r.Text(k).Get()
			if !ok {
				continue next
			}
			kv[i] = v
		}
		if opts.ReservedLabel != "" && labelIdx >= 0 && SameLabel(kv[labelIdx], opts.ReservedLabel) {
			continue
		}
		id := strings.Join(kv, "\x1f")
		g, ok := groups[id]
		if !ok {
			g = &group{keys: kv, acc: make([]accumulator, len(sums))}
			groups[id] = g
			order = append(order, g)
		}
		for i, f := range sums {
			g.acc[i].add(r.Amount(f))
		}
	}

	slices.SortStableFunc(order, func(a, b *group) int {
		return slices.Compare(a.keys, b.keys)
	})

	t := Table{Keys: slices.Clone(keys), Sums: slices.Clone(sums)}
	total := make([]accumulator, len(sums))
	for _, g := range order {
		row := Row{Keys: g.keys, Sums: make([]core.Amount, len(sums))}
		for i := range sums {
			row.Sums[i] = g.acc[i].amount()
			total[i].merge(g.acc[i])
		}
		t.Rows = append(t.Rows, row)
	}
	if !opts.NoTotal {
		t.Rows = append(t.Rows, totalRow(len(keys), labelIdx, total, len(order) == 0))
	}
	return t
}

func totalRow(nkeys, labelIdx int, total []accumulator, empty bool) Row {
	row := Row{Keys: make([]string, nkeys), Sums: make([]core.Amount, len(total)), Total: true}
	if labelIdx >= 0 {
		row.Keys[labelIdx] = TotalLabel
	}
	for i, a := range total {
		if empty {
			// The sum over no rows is zero.
			row.Sums[i] = core.Some(0)
			continue
		}
		row.Sums[i] = a.amount()
	}
	return row
}

// accumulator sums present amounts exactly.
type accumulator struct {
	sum     decimal.Decimal
	present bool
}

func (a *accumulator) add(v core.Amount) {
	f, ok := v.Get()
	if !ok {
		return
	}
	a.sum = a.sum.Add(decimal.NewFromFloat(f))
	a.present = true
}

func (a *accumulator) merge(b accumulator) {
	if !b.present {
		return
	}
	a.sum = a.sum.Add(b.sum)
	a.present = true
}

func (a accumulator) amount() core.Amount {
	if !a.present {
		return core.Missing
	}
	return core.Some(a.sum.InexactFloat64())
}

// Body returns the rows without the TOTAL row.
func (t Table) Body() []Row {
	if n := len(t.Rows); n > 0 && t.Rows[n-1].Total {
		return t.Rows[:n-1]
	}
	return t.Rows
}

// TotalRow returns the TOTAL row when present.
func (t Table) TotalRow() (Row, bool) {
	if n := len(t.Rows); n > 0 && t.Rows[n-1].Total {
		return t.Rows[n-1], true
	}
	return Row{}, false
}

// Empty reports whether the table has no grouped rows.
func (t Table) Empty() bool {
	return len(t.Body()) == 0
}

// Sum returns a row's value for a sum field; unknown fields are missing.
func (t Table) Sum(r Row, field string) core.Amount {
	i := slices.Index(t.Sums, field)
	if i < 0 || i >= len(r.Sums) {
		return core.Missing
	}
	return r.Sums[i]
}

// Key returns a row's value for a key field.
func (t Table) Key(r Row, field string) string {
	i := slices.Index(t.Keys, field)
	if i < 0 || i >= len(r.Keys) {
		return ""
	}
	return r.Keys[i]
}

// Find returns the first body row whose field equals label, case-insensitively.
func (t Table) Find(field, label string) (Row, bool) {
	for _, r := range t.Body() {
		if SameLabel(t.Key(r, field), label) {
			return r, true
		}
	}
	return Row{}, false
}
