package aggregate

import (
	"math"
	"reflect"
	"testing"
	"time"

	"cuipo/internal/core"
)

func expense(code, name, status string, committed, paid, obligated core.Amount) core.ExpenseRecord {
	return core.ExpenseRecord{
		Period:       core.TextOf("20240301"),
		EntityCode:   core.TextOf("210105001"),
		AccountCode:  core.TextOf(code),
		AccountName:  core.TextOf(name),
		FiscalStatus: core.TextOf(status),
		Committed:    committed,
		Paid:         paid,
		Obligated:    obligated,
	}
}

func revenue(period, scope, name string, definitive float64) core.RevenueRecord {
	return core.RevenueRecord{
		Period:           core.TextOf(period),
		EntityCode:       core.TextOf("210105001"),
		ScopeCode:        core.TextOf(scope),
		ScopeName:        core.TextOf(name),
		DefinitiveBudget: core.Some(definitive),
	}
}

func TestFilterByAccounts(t *testing.T) {
	records := []core.ExpenseRecord{
		expense("2.1", "FUNCIONAMIENTO", " vigencia actual ", core.Some(1), core.Missing, core.Missing),
		expense("2.1", "FUNCIONAMIENTO", "RESERVAS", core.Some(2), core.Missing, core.Missing),
		expense("2.3", "INVERSION", "VIGENCIA ACTUAL", core.Some(3), core.Missing, core.Missing),
		expense(" 2.1 ", "FUNCIONAMIENTO", "Vigencia Actual", core.Some(4), core.Missing, core.Missing),
		{AccountCode: core.TextOf("2.1"), Committed: core.Some(5)},
		{FiscalStatus: core.TextOf("VIGENCIA ACTUAL"), Committed: core.Some(6)},
	}
	allowed := NewAccountSet("2.1")

	got := FilterByAccounts(records, allowed, "VIGENCIA ACTUAL")
	if len(got) != 2 || got[0].Committed.Or(0) != 1 || got[1].Committed.Or(0) != 4 {
		t.Fatalf("unexpected filter result %+v", got)
	}

	again := FilterByAccounts(got, allowed, "VIGENCIA ACTUAL")
	if !reflect.DeepEqual(got, again) {
		t.Fatal("filter must be idempotent")
	}
}

func TestRevenueCriteriaIgnoresStatus(t *testing.T) {
	records := []core.RevenueRecord{
		revenue("20240301", "1.1", "INGRESOS CORRIENTES", 1),
		revenue("20240301", "9.9", "OTRO", 2),
		{DefinitiveBudget: core.Some(3)},
	}
	got := Filter(records, RevenueCriteria(NewAccountSet("1", "1.1")))
	if len(got) != 1 || got[0].DefinitiveBudget.Or(0) != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestAccountSetOf(t *testing.T) {
	records := []core.ExpenseRecord{
		expense("2.1", "", "", core.Missing, core.Missing, core.Missing),
		expense("2", "", "", core.Missing, core.Missing, core.Missing),
		{},
	}
	if got := AccountSetOf(records, core.FieldAccountCode).Codes(); !reflect.DeepEqual(got, []string{"2", "2.1"}) {
		t.Fatalf("got %v", got)
	}
}

func TestSummarizeTwoRecordsOneGroup(t *testing.T) {
	records := []core.RevenueRecord{
		revenue("20240301", "1.1.01.01.200", "Impuesto predial unificado", 1000000),
		revenue("20240301", "1.1.01.01.200", "Impuesto predial unificado", 2500000),
	}
	tbl := Summarize(records, []string{core.FieldScopeCode, core.FieldScopeName}, []string{core.FieldDefinitiveBudget}, Options{})

	body := tbl.Body()
	if len(body) != 1 {
		t.Fatalf("expected one group, got %d", len(body))
	}
	if v := tbl.Sum(body[0], core.FieldDefinitiveBudget); v.Or(0) != 3500000 {
		t.Fatalf("group sum %v", v)
	}
	total, ok := tbl.TotalRow()
	if !ok || tbl.Sum(total, core.FieldDefinitiveBudget).Or(0) != 3500000 {
		t.Fatalf("total %+v", total)
	}
	if !reflect.DeepEqual(total.Keys, []string{"", TotalLabel}) {
		t.Fatalf("total keys %q", total.Keys)
	}
	if tbl.Rows[len(tbl.Rows)-1].Total != true {
		t.Fatal("total must be last")
	}
}

func TestSummarizeTotalEqualsSumOfRows(t *testing.T) {
	var records []core.ExpenseRecord
	for i := 0; i < 200; i++ {
		code := []string{"2.1", "2.2", "2.3", "2.4"}[i%4]
		records = append(records, expense(code, "N"+code, StatusCurrent,
			core.Some(float64(i)*1234.56+0.1), core.Some(0.3), core.Missing))
	}
	tbl := Summarize(records, []string{core.FieldAccountCode, core.FieldAccountName}, ExpenseSums, Options{})
	total, _ := tbl.TotalRow()
	for i := range ExpenseSums {
		want := 0.0
		for _, r := range tbl.Body() {
			want += r.Sums[i].Or(0)
		}
		got := total.Sums[i].Or(0)
		if math.Abs(got-want) > 1e-6*math.Max(1, math.Abs(want)) {
			t.Fatalf("%s: total %v != sum %v", ExpenseSums[i], got, want)
		}
	}
	if total.Sums[2].Valid {
		t.Fatal("a column with no present values stays missing")
	}
}

func TestSummarizeReservedLabelOrderAndMissing(t *testing.T) {
	records := []core.ExpenseRecord{
		expense("2.3", "INVERSION", StatusCurrent, core.Some(10), core.Missing, core.Some(1)),
		expense("2", "gastos", StatusCurrent, core.Some(100), core.Some(100), core.Some(100)),
		expense("2.1", "FUNCIONAMIENTO", StatusCurrent, core.Missing, core.Some(5), core.Some(2)),
		expense("2.1", "FUNCIONAMIENTO", StatusCurrent, core.Some(7), core.Missing, core.Missing),
		{AccountName: core.TextOf("SIN CODIGO"), Committed: core.Some(1000)},
	}
	tbl := Summarize(records, []string{core.FieldAccountCode, core.FieldAccountName}, ExpenseSums,
		Options{ReservedLabel: ExpenseRollupLabel})

	body := tbl.Body()
	if len(body) != 2 || body[0].Keys[0] != "2.1" || body[1].Keys[0] != "2.3" {
		t.Fatalf("unexpected groups %+v", body)
	}
	if got := tbl.Sum(body[0], core.FieldCommitted); got.Or(-1) != 7 {
		t.Fatalf("missing must be excluded from sums, got %v", got)
	}
	if tbl.Sum(body[1], core.FieldPaid).Valid {
		t.Fatal("all-missing group stays missing")
	}
	total, _ := tbl.TotalRow()
	if tbl.Sum(total, core.FieldCommitted).Or(0) != 17 || tbl.Sum(total, core.FieldPaid).Or(0) != 5 {
		t.Fatalf("total %+v", total.Sums)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	tbl := Summarize([]core.ExpenseRecord{}, []string{core.FieldAccountCode}, ExpenseSums, Options{})
	if !tbl.Empty() {
		t.Fatal("expected empty body")
	}
	total, ok := tbl.TotalRow()
	if !ok || total.Sums[0].Or(-1) != 0 {
		t.Fatalf("empty total %+v", total)
	}
}

func TestExpenseScenario(t *testing.T) {
	records := []core.ExpenseRecord{
		expense("2.1", "FUNCIONAMIENTO", "VIGENCIA ACTUAL", core.Some(100), core.Missing, core.Missing),
		expense("2.1", "FUNCIONAMIENTO", "RESERVAS", core.Some(50), core.Missing, core.Missing),
	}
	current := Summarize(
		FilterByAccounts(records, AccountSetOf(records, core.FieldAccountCode), StatusCurrent),
		[]string{core.FieldAccountCode, core.FieldAccountName}, ExpenseSums,
		Options{ReservedLabel: ExpenseRollupLabel})
	if body := current.Body(); len(body) != 1 || current.Sum(body[0], core.FieldCommitted).Or(0) != 100 {
		t.Fatalf("current summary %+v", current)
	}

	cons := ConsolidateByStatus(records, Statuses, ExpenseRollupLabel, ExpenseSums)
	body := cons.Body()
	if len(body) != 2 {
		t.Fatalf("expected two status rows, got %+v", body)
	}
	if body[0].Keys[0] != StatusCurrent || body[1].Keys[0] != StatusReserves {
		t.Fatalf("status rows out of display order: %q %q", body[0].Keys[0], body[1].Keys[0])
	}
	total, _ := cons.TotalRow()
	if cons.Sum(total, core.FieldCommitted).Or(0) != 150 || total.Keys[0] != TotalLabel {
		t.Fatalf("consolidated total %+v", total)
	}
}

func TestConsolidatePrefersRollupRows(t *testing.T) {
	records := []core.ExpenseRecord{
		expense("2", "GASTOS", "vigencia actual", core.Some(300), core.Missing, core.Missing),
		expense("2", "GASTOS", "CUENTAS POR PAGAR", core.Some(20), core.Missing, core.Missing),
		expense("2", "GASTOS", "OTRA", core.Some(999), core.Missing, core.Missing),
		expense("2.1", "FUNCIONAMIENTO", "VIGENCIA ACTUAL", core.Some(200), core.Missing, core.Missing),
	}
	cons := ConsolidateByStatus(records, Statuses, ExpenseRollupLabel, ExpenseSums)
	body := cons.Body()
	if len(body) != 2 {
		t.Fatalf("rows %+v", body)
	}
	if body[0].Keys[0] != StatusCurrent || body[1].Keys[0] != StatusPayables {
		t.Fatalf("statuses %q %q", body[0].Keys[0], body[1].Keys[0])
	}
	total, _ := cons.TotalRow()
	if cons.Sum(total, core.FieldCommitted).Or(0) != 320 {
		t.Fatalf("total %v", total.Sums)
	}

	detail := RollupDetail(records, ExpenseRollupLabel, ExpenseSums)
	if len(detail.Rows) != 1 || detail.Rows[0].Total || detail.Sum(detail.Rows[0], core.FieldCommitted).Or(0) != 1319 {
		t.Fatalf("detail %+v", detail)
	}
}

func TestBuildYearSnapshotSeries(t *testing.T) {
	records := []core.RevenueRecord{
		revenue("20210901", "1", "INGRESOS", 1),
		revenue("20220301", "1", "INGRESOS", 2),
		revenue("20221201", "1", "INGRESOS", 3),
		revenue("20221201", "1", "INGRESOS", 33),
		revenue("20230601", "1", "INGRESOS", 4),
		revenue("20240301", "1", "INGRESOS", 5),
		revenue("20240901", "1", "INGRESOS", 6),
		revenue("20240601", "1", "INGRESOS", 7),
		revenue("garbage", "1", "INGRESOS", 8),
		{ScopeName: core.TextOf("INGRESOS"), DefinitiveBudget: core.Some(9)},
	}
	got := BuildYearSnapshotSeries(records)
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %+v", got)
	}
	if got[0].Year != 2022 || got[0].Record.DefinitiveBudget.Or(0) != 3 {
		t.Fatalf("2022 must pick the first 12-01 record, got %+v", got[0])
	}
	want := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	if got[1].Year != 2024 || !got[1].Date.Equal(want) || got[1].Record.DefinitiveBudget.Or(0) != 6 {
		t.Fatalf("latest year must pick its latest record, got %+v", got[1])
	}
}

func TestBuildYearSnapshotSeriesSingleYear(t *testing.T) {
	got := BuildYearSnapshotSeries([]core.RevenueRecord{revenue("20240301", "1", "INGRESOS", 5)})
	if len(got) != 1 || got[0].Year != 2024 {
		t.Fatalf("got %+v", got)
	}
	if len(BuildYearSnapshotSeries([]core.RevenueRecord{})) != 0 {
		t.Fatal("empty input yields empty series")
	}
}
