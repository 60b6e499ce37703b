package core

import (
	"sort"
	"time"
)

// Upstream column names of the revenue dataset.
const (
	FieldPeriod           = "periodo"
	FieldEntityCode       = "codigo_entidad"
	FieldEntityName       = "nombre_entidad"
	FieldScopeCode        = "ambito_codigo"
	FieldScopeName        = "ambito_nombre"
	FieldAccountName      = "nombre_cuenta"
	FieldInitialBudget    = "presupuesto_inicial"
	FieldDefinitiveBudget = "presupuesto_definitivo"
	FieldValue            = "valor"
	// The provider sometimes ships initial/definitive budget under these names.
	FieldDetailSectorCode = "cod_detalle_sectorial"
	FieldDetailSectorName = "nom_detalle_sectorial"
)

// Upstream column names of the expense dataset.
const (
	FieldAccountCode  = "cuenta"
	FieldCommitted    = "compromisos"
	FieldPaid         = "pagos"
	FieldObligated    = "obligaciones"
	FieldFiscalStatus = "nom_vigencia_del_gasto"
)

// ExpenseColumns is the fixed projection requested from the expense endpoint.
var ExpenseColumns = []string{
	FieldPeriod, FieldEntityCode, FieldEntityName,
	FieldAccountCode, FieldAccountName, FieldCommitted, FieldPaid, FieldObligated, FieldFiscalStatus,
}

var revenueColumns = []string{
	FieldPeriod, FieldEntityCode, FieldEntityName, FieldScopeCode, FieldScopeName,
	FieldAccountName, FieldInitialBudget, FieldDefinitiveBudget, FieldValue,
	FieldDetailSectorCode, FieldDetailSectorName,
}

// RawRecord is one upstream row as delivered: field name to textual value.
// A field absent from the map was not delivered for this row.
type RawRecord map[string]string

// Has reports whether the column was delivered, even if empty.
func (r RawRecord) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Text returns the field as an optional string.
func (r RawRecord) Text(field string) Text {
	return TextOf(r[field])
}

type (
	// RevenueRecord is a normalized row of the revenue dataset.
	RevenueRecord struct {
		Period           Text
		EntityCode       Text
		EntityName       Text
		ScopeCode        Text
		ScopeName        Text
		AccountName      Text
		DetailSectorCode Text
		DetailSectorName Text
		InitialBudget    Amount
		DefinitiveBudget Amount
		Value            Amount
	}

	// ExpenseRecord is a normalized row of the expense-execution dataset.
	ExpenseRecord struct {
		Period       Text
		EntityCode   Text
		EntityName   Text
		AccountCode  Text
		AccountName  Text
		FiscalStatus Text
		Committed    Amount
		Paid         Amount
		Obligated    Amount
	}
)

// PeriodDate parses the record period; ok is false when absent or malformed.
func (r RevenueRecord) PeriodDate() (time.Time, bool) {
	return periodDate(r.Period)
}

func (r ExpenseRecord) PeriodDate() (time.Time, bool) {
	return periodDate(r.Period)
}

func periodDate(t Text) (time.Time, bool) {
	s, ok := t.Get()
	if !ok {
		return time.Time{}, false
	}
	d, err := ParsePeriodDate(s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Raw renders the record back to upstream columns. Budget columns are always
// emitted so that a second normalization never re-applies the sector remap.
func (r RevenueRecord) Raw() RawRecord {
	out := RawRecord{
		FieldInitialBudget:    r.InitialBudget.String(),
		FieldDefinitiveBudget: r.DefinitiveBudget.String(),
	}
	putText(out, FieldPeriod, r.Period)
	putText(out, FieldEntityCode, r.EntityCode)
	putText(out, FieldEntityName, r.EntityName)
	putText(out, FieldScopeCode, r.ScopeCode)
	putText(out, FieldScopeName, r.ScopeName)
	putText(out, FieldAccountName, r.AccountName)
	putText(out, FieldDetailSectorCode, r.DetailSectorCode)
	putText(out, FieldDetailSectorName, r.DetailSectorName)
	if r.Value.Valid {
		out[FieldValue] = r.Value.String()
	}
	return out
}

func (r ExpenseRecord) Raw() RawRecord {
	out := RawRecord{}
	putText(out, FieldPeriod, r.Period)
	putText(out, FieldEntityCode, r.EntityCode)
	putText(out, FieldEntityName, r.EntityName)
	putText(out, FieldAccountCode, r.AccountCode)
	putText(out, FieldAccountName, r.AccountName)
	putText(out, FieldFiscalStatus, r.FiscalStatus)
	out[FieldCommitted] = r.Committed.String()
	out[FieldPaid] = r.Paid.String()
	out[FieldObligated] = r.Obligated.String()
	return out
}

func putText(out RawRecord, field string, t Text) {
	if v, ok := t.Get(); ok {
		out[field] = v
	}
}

// Columns lists every column seen in records: known upstream columns first in
// dataset order, expense first when the rows look like expense rows, then any
// other column alphabetically.
func Columns(records []RawRecord) []string {
	seen := map[string]bool{}
	for _, r := range records {
		for k := range r {
			seen[k] = true
		}
	}
	order := [][]string{revenueColumns, ExpenseColumns}
	if seen[FieldAccountCode] || seen[FieldFiscalStatus] {
		order = [][]string{ExpenseColumns, revenueColumns}
	}
	var out []string
	for _, known := range order {
		for _, c := range known {
			if seen[c] {
				out = append(out, c)
				delete(seen, c)
			}
		}
	}
	rest := make([]string, 0, len(seen))
	for c := range seen {
		rest = append(rest, c)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Text returns a text column by upstream name; unknown names are missing.
func (r RevenueRecord) Text(field string) Text {
	switch field {
	case FieldPeriod:
		return r.Period
	case FieldEntityCode:
		return r.EntityCode
	case FieldEntityName:
		return r.EntityName
	case FieldScopeCode:
		return r.ScopeCode
	case FieldScopeName:
		return r.ScopeName
	case FieldAccountName:
		return r.AccountName
	case FieldDetailSectorCode:
		return r.DetailSectorCode
	case FieldDetailSectorName:
		return r.DetailSectorName
	}
	return Text{}
}

// Amount returns a numeric column by upstream name; unknown names are missing.
func (r RevenueRecord) Amount(field string) Amount {
	switch field {
	case FieldInitialBudget:
		return r.InitialBudget
	case FieldDefinitiveBudget:
		return r.DefinitiveBudget
	case FieldValue:
		return r.Value
	}
	return Missing
}

func (r ExpenseRecord) Text(field string) Text {
	switch field {
	case FieldPeriod:
		return r.Period
	case FieldEntityCode:
		return r.EntityCode
	case FieldEntityName:
		return r.EntityName
	case FieldAccountCode:
		return r.AccountCode
	case FieldAccountName:
		return r.AccountName
	case FieldFiscalStatus:
		return r.FiscalStatus
	}
	return Text{}
}

func (r ExpenseRecord) Amount(field string) Amount {
	switch field {
	case FieldCommitted:
		return r.Committed
	case FieldPaid:
		return r.Paid
	case FieldObligated:
		return r.Obligated
	}
	return Missing
}
