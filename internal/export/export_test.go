package export

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"cuipo/internal/aggregate"
	"cuipo/internal/core"
)

func expenseFixture() ([]core.RawRecord, []core.ExpenseRecord) {
	raw := []core.RawRecord{
		{core.FieldPeriod: "20240301", core.FieldAccountCode: "2.1", core.FieldAccountName: "FUNCIONAMIENTO",
			core.FieldCommitted: "1,500,000", core.FieldFiscalStatus: "VIGENCIA ACTUAL", core.FieldPaid: "n/a"},
		{core.FieldPeriod: "20240301", core.FieldAccountCode: "2", core.FieldAccountName: "GASTOS",
			core.FieldCommitted: "1500000", core.FieldFiscalStatus: "VIGENCIA ACTUAL", "extra": "x"},
	}
	recs := []core.ExpenseRecord{
		{AccountCode: core.TextOf("2.1"), AccountName: core.TextOf("FUNCIONAMIENTO"), FiscalStatus: core.TextOf("VIGENCIA ACTUAL"), Committed: core.Some(1500000)},
		{AccountCode: core.TextOf("2"), AccountName: core.TextOf("GASTOS"), FiscalStatus: core.TextOf("VIGENCIA ACTUAL"), Committed: core.Some(1500000)},
	}
	return raw, recs
}

func TestExpenseWorkbook(t *testing.T) {
	raw, recs := expenseFixture()
	summary := aggregate.Summarize(recs, []string{core.FieldAccountCode, core.FieldAccountName}, aggregate.ExpenseSums,
		aggregate.Options{ReservedLabel: aggregate.ExpenseRollupLabel})
	detail := aggregate.RollupDetail(recs, aggregate.ExpenseRollupLabel, aggregate.ExpenseSums)
	cons := aggregate.ConsolidateByStatus(recs, aggregate.Statuses, aggregate.ExpenseRollupLabel, aggregate.ExpenseSums)

	data, err := ExpenseWorkbook(raw, summary, detail, cons)
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	want := []string{SheetRawExpense, SheetSummary, SheetDetail, SheetConsolidated}
	if got := f.GetSheetList(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sheets %v", got)
	}

	rawRows, _ := f.GetRows(SheetRawExpense)
	if len(rawRows) != 3 {
		t.Fatalf("raw rows %d", len(rawRows))
	}
	wantHeader := []string{core.FieldPeriod, core.FieldAccountCode, core.FieldAccountName,
		core.FieldCommitted, core.FieldPaid, core.FieldFiscalStatus, "extra"}
	// Expense rows list their own dataset's columns first.
	if !reflect.DeepEqual(rawRows[0], wantHeader) {
		t.Fatalf("raw header %v", rawRows[0])
	}
	if typ, _ := f.GetCellType(SheetRawExpense, "D2"); typ == excelize.CellTypeSharedString || typ == excelize.CellTypeInlineString {
		t.Fatal("parsable amounts must be written as numbers")
	}
	if v, _ := f.GetCellValue(SheetRawExpense, "E2"); v != "n/a" {
		t.Fatalf("unparsable amounts keep their text, got %q", v)
	}

	sum, _ := f.GetRows(SheetSummary)
	if len(sum) != 3 || sum[0][0] != "Cuenta" || sum[2][1] != aggregate.TotalLabel {
		t.Fatalf("summary %v", sum)
	}
	if v, _ := f.GetCellValue(SheetSummary, "C2", excelize.Options{RawCellValue: true}); v != "1.5" {
		t.Fatalf("summary amount in millions, got %q", v)
	}

	det, _ := f.GetRows(SheetDetail)
	if len(det) != 2 || det[0][0] != "Compromisos" {
		t.Fatalf("detail %v", det)
	}
}

func TestRevenueWorkbook(t *testing.T) {
	raw := []core.RawRecord{{core.FieldScopeCode: "1", core.FieldDefinitiveBudget: "2000000"}}
	recs := []core.RevenueRecord{{ScopeCode: core.TextOf("1"), ScopeName: core.TextOf("INGRESOS"), DefinitiveBudget: core.Some(2000000)}}
	summary := aggregate.Summarize(recs, []string{core.FieldScopeCode, core.FieldScopeName},
		[]string{core.FieldInitialBudget, core.FieldDefinitiveBudget}, aggregate.Options{})

	data, err := RevenueWorkbook(raw, summary)
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{SheetRawRevenue, SheetSummary}) {
		t.Fatalf("sheets %v", got)
	}
	if v, _ := f.GetCellValue(SheetSummary, "C2"); v != "" {
		t.Fatalf("missing amount must leave the cell empty, got %q", v)
	}
}

func TestRawSheetWritesSwappedBudgetsAsNumbers(t *testing.T) {
	raw := []core.RawRecord{
		{core.FieldScopeCode: "1", core.FieldDetailSectorCode: "1,000", core.FieldDetailSectorName: "2,500"},
		{core.FieldScopeCode: "1", core.FieldDetailSectorCode: "17", core.FieldDetailSectorName: "Educación",
			core.FieldDefinitiveBudget: "3,000"},
	}
	s := RawSheet(SheetRawRevenue, raw)
	idx := func(col string) int {
		for i, h := range s.Headers {
			if h == col {
				return i
			}
		}
		t.Fatalf("missing column %s in %v", col, s.Headers)
		return -1
	}
	code, name := idx(core.FieldDetailSectorCode), idx(core.FieldDetailSectorName)

	if s.Rows[0][code] != 1000.0 || s.Rows[0][name] != 2500.0 {
		t.Fatalf("swapped row %v", s.Rows[0])
	}
	if s.Rows[1][code] != "17" || s.Rows[1][name] != "Educación" {
		t.Fatalf("canonical row must keep detail-sector text: %v", s.Rows[1])
	}
	if s.Rows[1][idx(core.FieldDefinitiveBudget)] != 3000.0 {
		t.Fatalf("budget cell %v", s.Rows[1])
	}
}

func TestWriteRequiresSheets(t *testing.T) {
	if err := Write(&bytes.Buffer{}); err == nil {
		t.Fatal("expected error")
	}
}
