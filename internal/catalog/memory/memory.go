// Package memory provides an in-process catalog source with a small seed of
// reference data, used for local development and tests.
package memory

import (
	"context"

	"cuipo/internal/catalog"
	"cuipo/internal/core"
)

// Source serves fixed tables.
type Source struct {
	tables catalog.Tables
}

var _ catalog.Source = (*Source)(nil)

// New returns a source serving t.
func New(t catalog.Tables) *Source {
	return &Source{tables: t}
}

// NewSeeded returns a source serving Seed().
func NewSeeded() *Source {
	return New(Seed())
}

func (s *Source) Load(ctx context.Context) (catalog.Tables, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Tables{}, err
	}
	return s.tables, nil
}

func muni(dept, code, name string, pop float64, cat string) core.Entity {
	return core.Entity{Code: code, Name: name, Department: dept, Population: core.Some(pop), Category: cat, Level: core.Municipality}
}

// Seed returns a handful of municipalities, governorates, periods and the
// revenue accounts the dashboard filters on.
func Seed() catalog.Tables {
	return catalog.Tables{
		Entities: []core.Entity{
			muni("Antioquia", "210105001", "Medellín", 2612958, "ESP"),
			muni("Antioquia", "210105088", "Bello", 570000, "1"),
			muni("Antioquia", "210105266", "Envigado", 242197, "1"),
			muni("Antioquia", "210105615", "Rionegro", 135465, "2"),
			muni("Cundinamarca", "210125175", "Chía", 149570, "1"),
			muni("Cundinamarca", "210125754", "Soacha", 808288, "1"),
			muni("Bogotá, D.C.", "211111001", "Bogotá, D.C.", 7907281, "ESP"),
			{Code: "110505000", Name: "Gobernación de Antioquia", Department: "Antioquia", Population: core.Some(6848925), Category: "ESP", Level: core.Governorate},
			{Code: "112525000", Name: "Gobernación de Cundinamarca", Department: "Cundinamarca", Population: core.Some(3559082), Category: "ESP", Level: core.Governorate},
		},
		Periods: []core.Period{
			{Code: "20231201", Label: "Diciembre 2023"},
			{Code: "20240301", Label: "Marzo 2024"},
			{Code: "20240601", Label: "Junio 2024"},
			{Code: "20240901", Label: "Septiembre 2024"},
			{Code: "20241201", Label: "Diciembre 2024"},
		},
		Accounts: []core.Account{
			{Code: "1", Name: "INGRESOS"},
			{Code: "1.1", Name: "INGRESOS CORRIENTES"},
			{Code: "1.1.01.01.200", Name: "Impuesto predial unificado"},
			{Code: "1.1.01.02.104", Name: "Sobretasa a la gasolina"},
			{Code: "1.1.01.02.200", Name: "Impuesto de industria y comercio"},
			{Code: "1.1.01.02.300", Name: "Impuesto de avisos y tableros"},
			{Code: "1.1.02.06.001", Name: "Sistema General de Participaciones"},
			{Code: "1.2.06", Name: "Recursos del balance"},
			{Code: "1.2.07", Name: "Rendimientos financieros"},
		},
		PriceIndex: map[int]float64{2021: 111.41, 2022: 126.03, 2023: 137.09, 2024: 144.88},
	}
}
