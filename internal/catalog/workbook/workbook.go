// Package workbook reads the reference catalog from the "Tablas Control"
// spreadsheet and writes catalog tables back into that layout.
package workbook

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"cuipo/internal/catalog"
)

// Source loads the catalog from an .xlsx file on disk.
type Source struct {
	path string
}

var _ catalog.Source = (*Source)(nil)

func New(path string) *Source {
	return &Source{path: path}
}

func (s *Source) Load(ctx context.Context) (catalog.Tables, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Tables{}, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return catalog.Tables{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a reference workbook. Sheets other than the known ones are ignored.
func Read(r io.Reader) (catalog.Tables, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return catalog.Tables{}, fmt.Errorf("read workbook: %w", err)
	}
	defer f.Close()

	known := map[string]bool{}
	for _, name := range catalog.SheetOrder {
		known[name] = true
	}
	sheets := map[string][][]string{}
	for _, name := range f.GetSheetList() {
		if !known[name] {
			continue
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return catalog.Tables{}, fmt.Errorf("sheet %s: %w", name, err)
		}
		sheets[name] = rows
	}
	return catalog.ParseSheets(sheets)
}

// Write renders t as a reference workbook.
func Write(w io.Writer, t catalog.Tables) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := catalog.Sheets(t)
	first := true
	for _, name := range catalog.SheetOrder {
		rows, ok := sheets[name]
		if !ok {
			continue
		}
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("new sheet %s: %w", name, err)
		}
		for i, row := range rows {
			cells := make([]any, len(row))
			for j, v := range row {
				cells[j] = v
			}
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(name, cell, &cells); err != nil {
				return fmt.Errorf("write %s row %d: %w", name, i+1, err)
			}
		}
	}
	return f.Write(w)
}
