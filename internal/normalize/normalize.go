// Package normalize turns raw upstream rows into typed revenue and expense
// records. It never fails: unparseable numbers become missing amounts and
// absent columns become missing fields.
package normalize

import (
	"strconv"
	"strings"

	"cuipo/internal/core"
)

var amountReplacer = strings.NewReplacer(
	"$", "",
	"COP", "",
	"cop", "",
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	",", "",
)

// ParseAmount parses a locale-formatted currency string such as "$1,234,567.50",
// "COP 1,000" or "(2,500)". Anything that does not yield a finite number is missing.
func ParseAmount(s string) core.Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Missing
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = amountReplacer.Replace(s)
	if strings.HasPrefix(s, "-") {
		if negative {
			return core.Missing
		}
		negative = true
		s = s[1:]
	}
	if s == "" || s[0] == '+' || s[0] == '-' {
		return core.Missing
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return core.Missing
	}
	if negative {
		v = -v
	}
	return core.Some(v)
}

// Report counts what normalization had to repair in a batch.
type Report struct {
	Rows       int
	Remapped   int            // rows whose budget came from the detail-sector columns
	Unparsable map[string]int // field -> rows where a delivered value did not parse
}

func (r *Report) unparsable(field, raw string, a core.Amount) {
	if a.Valid || strings.TrimSpace(raw) == "" {
		return
	}
	if r.Unparsable == nil {
		r.Unparsable = map[string]int{}
	}
	r.Unparsable[field]++
}

// Revenue normalizes revenue rows.
func Revenue(raws []core.RawRecord) []core.RevenueRecord {
	out, _ := RevenueWithReport(raws)
	return out
}

// RevenueWithReport normalizes revenue rows and reports repairs.
//
// When a row delivers both detail-sector columns and neither canonical budget
// column, the detail-sector columns are read as initial and definitive budget
// and the detail-sector fields are left missing.
func RevenueWithReport(raws []core.RawRecord) ([]core.RevenueRecord, Report) {
	rep := Report{Rows: len(raws)}
	out := make([]core.RevenueRecord, 0, len(raws))
	for _, raw := range raws {
		rec := core.RevenueRecord{
			Period:      text(raw, core.FieldPeriod),
			EntityCode:  text(raw, core.FieldEntityCode),
			EntityName:  text(raw, core.FieldEntityName),
			ScopeCode:   text(raw, core.FieldScopeCode),
			ScopeName:   text(raw, core.FieldScopeName),
			AccountName: text(raw, core.FieldAccountName),
			Value:       amount(raw, core.FieldValue, &rep),
		}
		if Swapped(raw) {
			rec.InitialBudget = amount(raw, core.FieldDetailSectorCode, &rep)
			rec.DefinitiveBudget = amount(raw, core.FieldDetailSectorName, &rep)
			rep.Remapped++
		} else {
			rec.InitialBudget = amount(raw, core.FieldInitialBudget, &rep)
			rec.DefinitiveBudget = amount(raw, core.FieldDefinitiveBudget, &rep)
			rec.DetailSectorCode = text(raw, core.FieldDetailSectorCode)
			rec.DetailSectorName = text(raw, core.FieldDetailSectorName)
		}
		out = append(out, rec)
	}
	return out, rep
}

// Swapped reports whether raw carries the budget amounts in the detail-sector
// columns: both are present and neither budget column is.
func Swapped(raw core.RawRecord) bool {
	return raw.Has(core.FieldDetailSectorCode) && raw.Has(core.FieldDetailSectorName) &&
		!raw.Has(core.FieldInitialBudget) && !raw.Has(core.FieldDefinitiveBudget)
}

// Expense normalizes expense-execution rows.
func Expense(raws []core.RawRecord) []core.ExpenseRecord {
	out, _ := ExpenseWithReport(raws)
	return out
}

func ExpenseWithReport(raws []core.RawRecord) ([]core.ExpenseRecord, Report) {
	rep := Report{Rows: len(raws)}
	out := make([]core.ExpenseRecord, 0, len(raws))
	for _, raw := range raws {
		out = append(out, core.ExpenseRecord{
			Period:       text(raw, core.FieldPeriod),
			EntityCode:   text(raw, core.FieldEntityCode),
			EntityName:   text(raw, core.FieldEntityName),
			AccountCode:  text(raw, core.FieldAccountCode),
			AccountName:  text(raw, core.FieldAccountName),
			FiscalStatus: text(raw, core.FieldFiscalStatus),
			Committed:    amount(raw, core.FieldCommitted, &rep),
			Paid:         amount(raw, core.FieldPaid, &rep),
			Obligated:    amount(raw, core.FieldObligated, &rep),
		})
	}
	return out, rep
}

func text(raw core.RawRecord, field string) core.Text {
	return core.TextOf(strings.TrimSpace(raw[field]))
}

func amount(raw core.RawRecord, field string, rep *Report) core.Amount {
	v := raw[field]
	a := ParseAmount(v)
	rep.unparsable(field, v, a)
	return a
}
