package core

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func TestParsePeriodDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"20231201", time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), true},
		{" 20240301 ", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2024-06-01T00:00:00.000", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{"2024", time.Time{}, false},
		{"", time.Time{}, false},
		{"abcdefgh", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := ParsePeriodDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want) {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestAmountOptional(t *testing.T) {
	if Some(math.NaN()).Valid || Some(math.Inf(1)).Valid {
		t.Fatalf("non-finite values must be missing")
	}
	if v := Some(10).Div(4); !v.Valid || v.Value != 2.5 {
		t.Fatalf("unexpected div: %+v", v)
	}
	if Some(10).Div(0).Valid {
		t.Fatalf("division by zero must be missing")
	}
	if Missing.Mul(3).Valid {
		t.Fatalf("missing must propagate")
	}
	if Missing.Or(7) != 7 {
		t.Fatalf("Or default not applied")
	}
	if Missing.String() != "" {
		t.Fatalf("missing renders empty")
	}
}

func TestAccountHierarchy(t *testing.T) {
	root := Account{Code: "1", Name: "INGRESOS"}
	leaf := Account{Code: "1.1.01.02.104", Name: "Predial"}
	sibling := Account{Code: "10.1", Name: "Otro"}
	if !root.IsAncestorOf(leaf) {
		t.Fatalf("expected %s ancestor of %s", root.Code, leaf.Code)
	}
	if root.IsAncestorOf(sibling) {
		t.Fatalf("prefix match must respect dots")
	}
	if leaf.IsAncestorOf(root) || root.IsAncestorOf(root) {
		t.Fatalf("unexpected ancestry")
	}
}

func TestRevenueRawAlwaysEmitsBudgetColumns(t *testing.T) {
	r := RevenueRecord{Period: TextOf("20240301"), InitialBudget: Some(5)}
	raw := r.Raw()
	if !raw.Has(FieldInitialBudget) || !raw.Has(FieldDefinitiveBudget) {
		t.Fatalf("budget columns must always be present: %v", raw)
	}
	if raw[FieldDefinitiveBudget] != "" || raw[FieldInitialBudget] != "5" {
		t.Fatalf("unexpected budget rendering: %v", raw)
	}
	if raw.Has(FieldDetailSectorCode) {
		t.Fatalf("missing text fields must not be emitted")
	}
}

func TestColumnsOrder(t *testing.T) {
	records := []RawRecord{
		{"zeta": "1", FieldAccountName: "x", FieldPeriod: "p"},
		{"alpha": "2", FieldEntityCode: "c"},
	}
	got := Columns(records)
	want := []string{FieldPeriod, FieldEntityCode, FieldAccountName, "alpha", "zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("columns: got %v want %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	if err := (Entity{Code: "05001", Name: "Medellín"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Entity{Code: " ", Name: "x"}).Validate(); err != ErrEmptyCode {
		t.Fatalf("expected ErrEmptyCode, got %v", err)
	}
	if err := (Period{Code: "20240301"}).Validate(); err == nil {
		t.Fatalf("expected label error")
	}
	if err := (Account{Code: "1", Name: ""}).Validate(); err == nil {
		t.Fatalf("expected name error")
	}
}

func TestRecordFieldAccessors(t *testing.T) {
	r := RevenueRecord{ScopeCode: TextOf("1.1"), DefinitiveBudget: Some(3)}
	if v, ok := r.Text(FieldScopeCode).Get(); !ok || v != "1.1" {
		t.Fatalf("scope code %q %v", v, ok)
	}
	if r.Text("unknown").Valid || r.Amount(FieldInitialBudget).Valid {
		t.Fatal("absent fields must be missing")
	}
	e := ExpenseRecord{Committed: Some(100), FiscalStatus: TextOf("RESERVAS")}
	if e.Amount(FieldCommitted).Or(0) != 100 || e.Text(FieldFiscalStatus).Or("") != "RESERVAS" {
		t.Fatal("expense accessors")
	}
}

func TestColumnsOrderExpense(t *testing.T) {
	got := Columns([]RawRecord{{FieldAccountName: "x", FieldAccountCode: "2", FieldPeriod: "p", FieldScopeCode: "s"}})
	want := []string{FieldPeriod, FieldAccountCode, FieldAccountName, FieldScopeCode}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("columns: got %v want %v", got, want)
	}
}
