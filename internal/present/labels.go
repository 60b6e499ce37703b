package present

import "cuipo/internal/core"

var labels = map[string]string{
	core.FieldPeriod:           "Periodo",
	core.FieldEntityCode:       "Código Entidad",
	core.FieldEntityName:       "Nombre Entidad",
	core.FieldScopeCode:        "Ámbito Código",
	core.FieldScopeName:        "Ámbito Nombre",
	core.FieldAccountName:      "Nombre cuenta",
	core.FieldInitialBudget:    "Presupuesto Inicial",
	core.FieldDefinitiveBudget: "Presupuesto Definitivo",
	core.FieldValue:            "Valor",
	core.FieldAccountCode:      "Cuenta",
	core.FieldCommitted:        "Compromisos",
	core.FieldPaid:             "Pagos",
	core.FieldObligated:        "Obligaciones",
	core.FieldFiscalStatus:     "Vigencia del gasto",
}

// Label returns the display name of an upstream column, or the column itself.
func Label(field string) string {
	if l, ok := labels[field]; ok {
		return l
	}
	return field
}

// Labels maps Label over fields.
func Labels(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = Label(f)
	}
	return out
}

// Series names of the history chart and captions of the comparison.
const (
	SeriesNominal   = "Ingresos Nominales"
	SeriesReal      = "Ingresos Reales"
	CountryAverage  = "Promedio País"
	categoryAverage = "Promedio Cat. (%s)"
)

// Table titles.
const (
	TitleRevenueSummary = "Resumen de ingresos filtrados"
	TitleRevenueTotal   = "Total Presupuesto Definitivo (INGRESOS)"
	TitleRevenueHistory = "Histórico INGRESOS Nominal vs Real"
	TitleExpenseSummary = "Resumen de compromisos, pagos y obligaciones por cuenta"
	TitleExpenseDetail  = "Detalle GASTOS"
	TitleConsolidated   = "Consolidado de GASTOS por tipo de vigencia"
	TitleCommittedAll   = "Total compromisos para todas las vigencias"
	TitleComparison     = "Valores per cápita: media aritmética"
	NoDataMessage       = "No hay datos para esta selección."
)
