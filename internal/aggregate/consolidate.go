package aggregate

import (
	"slices"

	"cuipo/internal/core"
)

// Fiscal status labels of the expense dataset.
const (
	StatusCurrent               = "VIGENCIA ACTUAL"
	StatusReserves              = "RESERVAS"
	StatusFutureReserves        = "VIGENCIAS FUTURAS - RESERVAS"
	StatusPayables              = "CUENTAS POR PAGAR"
	StatusFutureCurrentValidity = "VIGENCIAS FUTURAS - VIGENCIA ACTUAL"
)

// Statuses lists the labels shown in the consolidated view, in display order.
var Statuses = []string{
	StatusCurrent,
	StatusReserves,
	StatusFutureReserves,
	StatusPayables,
	StatusFutureCurrentValidity,
}

// ExpenseRollupLabel is the parent account that repeats its children's sums.
const ExpenseRollupLabel = "GASTOS"

// RevenueRollupLabel is the revenue counterpart of ExpenseRollupLabel.
const RevenueRollupLabel = "INGRESOS"

// ExpenseSums are the execution stages summed for expense tables.
var ExpenseSums = []string{core.FieldCommitted, core.FieldPaid, core.FieldObligated}

// RollupDetail groups the rows of the rollup account itself by account code
// and name, without a TOTAL row.
func RollupDetail[R Record](records []R, label string, sums []string) Table {
	return Summarize(
		WithLabel(records, core.FieldAccountName, label),
		[]string{core.FieldAccountCode, core.FieldAccountName},
		sums,
		Options{NoTotal: true},
	)
}

// ConsolidateByStatus sums the expense stages per fiscal status over the
// given status labels, in the order of statuses, followed by a TOTAL row. Only rollup account rows are
// considered when the input has any; otherwise every row is. Status casing
// variants are merged under the label as listed in statuses.
func ConsolidateByStatus[R Record](records []R, statuses []string, rollupLabel string, sums []string) Table {
	scope := records
	if rollupLabel != "" {
		if rollup := WithLabel(records, core.FieldAccountName, rollupLabel); len(rollup) > 0 {
			scope = rollup
		}
	}

	rows := make([]statusRecord, 0, len(scope))
	for _, r := range scope {
		v, ok := r.Text(core.FieldFiscalStatus).Get()
		if !ok {
			continue
		}
		for _, s := range statuses {
			if SameLabel(v, s) {
				rows = append(rows, statusRecord{Record: r, status: s})
				break
			}
		}
	}
	t := Summarize(rows, []string{core.FieldFiscalStatus}, sums, Options{})
	slices.SortStableFunc(t.Body(), func(a, b Row) int {
		return slices.Index(statuses, a.Keys[0]) - slices.Index(statuses, b.Keys[0])
	})
	return t
}

// statusRecord reports the canonical status label in place of the upstream one.
type statusRecord struct {
	Record
	status string
}

func (s statusRecord) Text(field string) core.Text {
	if field == core.FieldFiscalStatus {
		return core.TextOf(s.status)
	}
	return s.Record.Text(field)
}
