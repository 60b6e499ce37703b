// Package export serializes session tables to xlsx workbooks.
package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"cuipo/internal/aggregate"
	"cuipo/internal/core"
	"cuipo/internal/normalize"
	"cuipo/internal/present"
)

// Sheet names of the generated workbooks.
const (
	SheetRawExpense   = "DatosBrutos"
	SheetRawRevenue   = "Datos Brutos"
	SheetSummary      = "Resumen"
	SheetDetail       = "DetalleGastos"
	SheetConsolidated = "Consolidado"
)

// ContentType is the MIME type of the produced workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const copFormat = `"$"#,##0`

var numericFields = map[string]bool{
	core.FieldInitialBudget:    true,
	core.FieldDefinitiveBudget: true,
	core.FieldValue:            true,
	core.FieldCommitted:        true,
	core.FieldPaid:             true,
	core.FieldObligated:        true,
}

// swappedFields hold budget amounts on rows where normalize.Swapped holds.
var swappedFields = map[string]bool{
	core.FieldDetailSectorCode: true,
	core.FieldDetailSectorName: true,
}

// Sheet is one worksheet. Cells are strings or float64; nil leaves the cell empty.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
	// MoneyFrom is the first column index formatted as currency, or -1.
	MoneyFrom int
}

// RawSheet lists records unfiltered with their upstream columns. Known
// numeric columns are written as numbers when they parse.
func RawSheet(name string, records []core.RawRecord) Sheet {
	cols := core.Columns(records)
	s := Sheet{Name: name, Headers: cols, MoneyFrom: -1}
	for _, r := range records {
		row := make([]any, len(cols))
		swapped := normalize.Swapped(r)
		for i, c := range cols {
			v, ok := r[c]
			if !ok {
				continue
			}
			if numericFields[c] || swapped && swappedFields[c] {
				if f, ok := normalize.ParseAmount(v).Get(); ok {
					row[i] = f
					continue
				}
			}
			row[i] = v
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

// TableSheet writes an aggregate table with labelled headers. Amounts are
// numbers in the given scale. Key columns listed in hide are omitted.
func TableSheet(name string, t aggregate.Table, scale present.Scale, hide ...string) Sheet {
	hidden := map[string]bool{}
	for _, h := range hide {
		hidden[h] = true
	}
	var keyIdx []int
	s := Sheet{Name: name}
	for i, k := range t.Keys {
		if !hidden[k] {
			keyIdx = append(keyIdx, i)
			s.Headers = append(s.Headers, present.Label(k))
		}
	}
	s.MoneyFrom = len(keyIdx)
	s.Headers = append(s.Headers, present.Labels(t.Sums)...)
	for _, r := range t.Rows {
		row := make([]any, 0, len(s.Headers))
		for _, i := range keyIdx {
			row = append(row, r.Keys[i])
		}
		for _, v := range r.Sums {
			if scale == present.Millions {
				v = present.InMillions(v)
			}
			if f, ok := v.Get(); ok {
				row = append(row, f)
			} else {
				row = append(row, nil)
			}
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

// Write serializes the sheets, in order, as one workbook.
func Write(w io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to export")
	}
	f := excelize.NewFile()
	defer f.Close()

	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: ptr(copFormat)})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return fmt.Errorf("rename sheet %s: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.Name, err)
		}
		if err := writeSheet(f, s, money); err != nil {
			return fmt.Errorf("write sheet %s: %w", s.Name, err)
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSheet(f *excelize.File, s Sheet, money int) error {
	header := make([]any, len(s.Headers))
	for i, h := range s.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
		return err
	}
	for i, row := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
			return err
		}
	}
	if s.MoneyFrom < 0 || s.MoneyFrom >= len(s.Headers) || len(s.Rows) == 0 {
		return nil
	}
	start, err := excelize.CoordinatesToCellName(s.MoneyFrom+1, 2)
	if err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(len(s.Headers), len(s.Rows)+1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(s.Name, start, end, money)
}

// ExpenseWorkbook builds the four-sheet expense export.
func ExpenseWorkbook(raw []core.RawRecord, summary, detail, consolidated aggregate.Table) ([]byte, error) {
	var buf bytes.Buffer
	err := Write(&buf,
		RawSheet(SheetRawExpense, raw),
		TableSheet(SheetSummary, summary, present.Millions),
		TableSheet(SheetDetail, detail, present.Millions, core.FieldAccountCode, core.FieldAccountName),
		TableSheet(SheetConsolidated, consolidated, present.Millions),
	)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RevenueWorkbook builds the revenue export: raw rows and the summary.
func RevenueWorkbook(raw []core.RawRecord, summary aggregate.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf,
		RawSheet(SheetRawRevenue, raw),
		TableSheet(SheetSummary, summary, present.Millions),
	); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ptr[T any](v T) *T { return &v }
