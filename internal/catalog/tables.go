package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cuipo/internal/core"
	"cuipo/internal/normalize"
)

// Sheet names of the reference workbook.
const (
	SheetMunicipalities = "Tablamun"
	SheetGovernorates   = "Tabladep"
	SheetPeriods        = "Periodos"
	SheetAccounts       = "Tablacontrolingresos"
	SheetPriceIndex     = "IPC"
)

// Column headers of the reference workbook.
const (
	colDepartment   = "departamento"
	colEntityCode   = "codigo_entidad"
	colEntityName   = "nombre_entidad"
	colPopulation   = "poblacion"
	colCategory     = "categoria"
	colPeriod       = "periodo"
	colPeriodLabel  = "Personalizado.1"
	colAccountName  = "Nombre de la Cuenta"
	colAccountCode  = "Código Completo"
	colYear         = "año"
	colIndex        = "indice"
	labelHeaderBase = "Personalizado"
)

// ParseSheets builds Tables from sheet name to row matrix, header row first.
// Headers are matched accent- and case-insensitively and columns may appear in
// any order. The price index sheet is optional.
func ParseSheets(sheets map[string][][]string) (Tables, error) {
	var t Tables
	for _, tab := range []struct {
		sheet string
		level core.Level
	}{{SheetMunicipalities, core.Municipality}, {SheetGovernorates, core.Governorate}} {
		rows, ok := sheets[tab.sheet]
		if !ok {
			return Tables{}, fmt.Errorf("missing sheet %s", tab.sheet)
		}
		es, err := parseEntities(rows, tab.level)
		if err != nil {
			return Tables{}, fmt.Errorf("sheet %s: %w", tab.sheet, err)
		}
		t.Entities = append(t.Entities, es...)
	}

	rows, ok := sheets[SheetPeriods]
	if !ok {
		return Tables{}, fmt.Errorf("missing sheet %s", SheetPeriods)
	}
	periods, err := parsePeriods(rows)
	if err != nil {
		return Tables{}, fmt.Errorf("sheet %s: %w", SheetPeriods, err)
	}
	t.Periods = periods

	rows, ok = sheets[SheetAccounts]
	if !ok {
		return Tables{}, fmt.Errorf("missing sheet %s", SheetAccounts)
	}
	accounts, err := parseAccounts(rows)
	if err != nil {
		return Tables{}, fmt.Errorf("sheet %s: %w", SheetAccounts, err)
	}
	t.Accounts = accounts

	if rows, ok := sheets[SheetPriceIndex]; ok {
		idx, err := parsePriceIndex(rows)
		if err != nil {
			return Tables{}, fmt.Errorf("sheet %s: %w", SheetPriceIndex, err)
		}
		t.PriceIndex = idx
	}
	return t, nil
}

type header map[string]int

func newHeader(row []string) header {
	h := header{}
	for i, name := range row {
		key := Fold(name)
		if _, dup := h[key]; dup {
			// Spreadsheet readers suffix repeated headers with ".1"; do the same.
			key = key + ".1"
		}
		h[key] = i
	}
	return h
}

func (h header) index(names ...string) int {
	for _, n := range names {
		if i, ok := h[Fold(n)]; ok {
			return i
		}
	}
	return -1
}

func (h header) require(names ...string) (int, error) {
	if i := h.index(names...); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("missing column %q", names[0])
}

func safeGet(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// cleanCode drops the ".0" suffix numeric cells pick up in spreadsheets.
func cleanCode(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ".0") {
		if _, err := strconv.ParseInt(strings.TrimSuffix(s, ".0"), 10, 64); err == nil {
			return strings.TrimSuffix(s, ".0")
		}
	}
	return s
}

func parseEntities(rows [][]string, level core.Level) ([]core.Entity, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	h := newHeader(rows[0])
	colCode, err := h.require(colEntityCode)
	if err != nil {
		return nil, err
	}
	colName, err := h.require(colEntityName)
	if err != nil {
		return nil, err
	}
	colDept := h.index(colDepartment)
	colPop := h.index(colPopulation)
	colCat := h.index(colCategory)

	var out []core.Entity
	for _, row := range rows[1:] {
		code := cleanCode(safeGet(row, colCode))
		name := safeGet(row, colName)
		if code == "" && name == "" {
			continue
		}
		e := core.Entity{
			Code:       code,
			Name:       name,
			Department: safeGet(row, colDept),
			Population: normalize.ParseAmount(safeGet(row, colPop)),
			Category:   cleanCode(safeGet(row, colCat)),
			Level:      level,
		}
		if level == core.Governorate && e.Department == "" {
			e.Department = e.Name
		}
		out = append(out, e)
	}
	return out, nil
}

func parsePeriods(rows [][]string) ([]core.Period, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	h := newHeader(rows[0])
	colCode, err := h.require(colPeriod)
	if err != nil {
		return nil, err
	}
	colLabel, err := h.require(colPeriodLabel, "periodo_label", labelHeaderBase)
	if err != nil {
		return nil, err
	}
	var out []core.Period
	for _, row := range rows[1:] {
		code := cleanCode(safeGet(row, colCode))
		label := safeGet(row, colLabel)
		if code == "" && label == "" {
			continue
		}
		out = append(out, core.Period{Code: code, Label: label})
	}
	return out, nil
}

func parseAccounts(rows [][]string) ([]core.Account, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	h := newHeader(rows[0])
	colName, err := h.require(colAccountName)
	if err != nil {
		return nil, err
	}
	colCode, err := h.require(colAccountCode)
	if err != nil {
		return nil, err
	}
	var out []core.Account
	for _, row := range rows[1:] {
		a := core.Account{Code: safeGet(row, colCode), Name: safeGet(row, colName)}
		if a.Code == "" && a.Name == "" {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func parsePriceIndex(rows [][]string) (map[int]float64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	h := newHeader(rows[0])
	colY, err := h.require(colYear, "anio", "year")
	if err != nil {
		return nil, err
	}
	colV, err := h.require(colIndex, "ipc")
	if err != nil {
		return nil, err
	}
	out := map[int]float64{}
	for _, row := range rows[1:] {
		ys := cleanCode(safeGet(row, colY))
		if ys == "" {
			continue
		}
		year, err := strconv.Atoi(ys)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", ys)
		}
		v, ok := normalize.ParseAmount(safeGet(row, colV)).Get()
		if !ok {
			return nil, fmt.Errorf("invalid index for %d", year)
		}
		out[year] = v
	}
	return out, nil
}

// Sheets renders Tables back into the workbook layout ParseSheets reads.
func Sheets(t Tables) map[string][][]string {
	out := map[string][][]string{
		SheetMunicipalities: {{colDepartment, colEntityCode, colEntityName, colPopulation, colCategory}},
		SheetGovernorates:   {{colDepartment, colEntityCode, colEntityName, colPopulation, colCategory}},
		SheetPeriods:        {{colPeriod, colPeriodLabel}},
		SheetAccounts:       {{colAccountName, colAccountCode}},
	}
	for _, e := range t.Entities {
		sheet := SheetMunicipalities
		if e.Level == core.Governorate {
			sheet = SheetGovernorates
		}
		out[sheet] = append(out[sheet], []string{e.Department, e.Code, e.Name, e.Population.String(), e.Category})
	}
	for _, p := range t.Periods {
		out[SheetPeriods] = append(out[SheetPeriods], []string{p.Code, p.Label})
	}
	for _, a := range t.Accounts {
		out[SheetAccounts] = append(out[SheetAccounts], []string{a.Name, a.Code})
	}
	if len(t.PriceIndex) > 0 {
		years := make([]int, 0, len(t.PriceIndex))
		for y := range t.PriceIndex {
			years = append(years, y)
		}
		sort.Ints(years)
		rows := [][]string{{colYear, colIndex}}
		for _, y := range years {
			rows = append(rows, []string{strconv.Itoa(y), strconv.FormatFloat(t.PriceIndex[y], 'f', -1, 64)})
		}
		out[SheetPriceIndex] = rows
	}
	return out
}

// SheetOrder is the order sheets are written in.
var SheetOrder = []string{SheetMunicipalities, SheetGovernorates, SheetPeriods, SheetAccounts, SheetPriceIndex}
