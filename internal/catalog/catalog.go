// Package catalog holds the static reference data the dashboard joins against:
// territorial entities with population and category, reporting periods, the
// revenue account taxonomy and the consumer price index.
//
// A Catalog is built once from Tables delivered by a Source and is read-only
// afterwards, so it is safe for concurrent use.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"cuipo/internal/core"
)

var (
	ErrNotFound      = errors.New("catalog: not found")
	ErrAmbiguous     = errors.New("catalog: ambiguous name")
	ErrInvalidTables = errors.New("catalog: invalid reference tables")
)

// Tables is the raw content of the reference dataset.
type Tables struct {
	Entities   []core.Entity
	Periods    []core.Period
	Accounts   []core.Account
	PriceIndex map[int]float64
}

// Source loads reference tables from a backing store.
type Source interface {
	Load(ctx context.Context) (Tables, error)
}

// Catalog answers lookups over validated reference tables.
type Catalog struct {
	tables        Tables
	byCode        map[string]core.Entity
	periodByCode  map[string]core.Period
	periodByLabel map[string]core.Period
	accountByName map[string]core.Account
}

// Load reads tables from src and builds a Catalog.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	t, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reference tables: %w", err)
	}
	return New(t)
}

// New validates t and indexes it. Entity codes must be unique and the
// period code/label mapping must be a bijection.
func New(t Tables) (*Catalog, error) {
	c := &Catalog{
		tables:        t,
		byCode:        make(map[string]core.Entity, len(t.Entities)),
		periodByCode:  make(map[string]core.Period, len(t.Periods)),
		periodByLabel: make(map[string]core.Period, len(t.Periods)),
		accountByName: make(map[string]core.Account, len(t.Accounts)),
	}

	var errs []error
	for _, e := range t.Entities {
		if err := e.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := c.byCode[e.Code]; dup {
			errs = append(errs, fmt.Errorf("duplicate entity code %s", e.Code))
			continue
		}
		c.byCode[e.Code] = e
	}
	for _, p := range t.Periods {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := p.Date(); err != nil {
			errs = append(errs, fmt.Errorf("period %q: %w", p.Label, err))
			continue
		}
		if _, dup := c.periodByCode[p.Code]; dup {
			errs = append(errs, fmt.Errorf("duplicate period code %s", p.Code))
			continue
		}
		key := Fold(p.Label)
		if _, dup := c.periodByLabel[key]; dup {
			errs = append(errs, fmt.Errorf("duplicate period label %q", p.Label))
			continue
		}
		c.periodByCode[p.Code] = p
		c.periodByLabel[key] = p
	}
	for _, a := range t.Accounts {
		if err := a.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		key := Fold(a.Name)
		if _, ok := c.accountByName[key]; !ok {
			c.accountByName[key] = a
		}
	}
	for year, v := range t.PriceIndex {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("price index for %d must be positive", year))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTables, errors.Join(errs...))
	}
	return c, nil
}

// Entity returns the entity with the given code.
func (c *Catalog) Entity(code string) (core.Entity, error) {
	e, ok := c.byCode[strings.TrimSpace(code)]
	if !ok {
		return core.Entity{}, fmt.Errorf("entity %q: %w", code, ErrNotFound)
	}
	return e, nil
}

// EntityByName resolves an entity name within a department. Names are compared
// accent- and case-insensitively. With an empty department the name must be
// unique across the catalog.
func (c *Catalog) EntityByName(department, name string) (core.Entity, error) {
	dept, key := Fold(department), Fold(name)
	var matches []core.Entity
	for _, e := range c.tables.Entities {
		if Fold(e.Name) != key {
			continue
		}
		if dept != "" && Fold(e.Department) != dept {
			continue
		}
		matches = append(matches, e)
	}
	switch len(matches) {
	case 0:
		return core.Entity{}, fmt.Errorf("entity %q in %q: %w", name, department, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return core.Entity{}, fmt.Errorf("entity %q matches %d entities: %w", name, len(matches), ErrAmbiguous)
	}
}

// Entities returns every entity in table order.
func (c *Catalog) Entities() []core.Entity {
	return append([]core.Entity(nil), c.tables.Entities...)
}

// Departments returns the distinct departments of the municipalities, sorted.
func (c *Catalog) Departments() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range c.tables.Entities {
		if e.Level != core.Municipality || e.Department == "" || seen[e.Department] {
			continue
		}
		seen[e.Department] = true
		out = append(out, e.Department)
	}
	sort.Slice(out, func(i, j int) bool { return Fold(out[i]) < Fold(out[j]) })
	return out
}

// Municipalities returns the municipalities of a department sorted by name.
func (c *Catalog) Municipalities(department string) []core.Entity {
	dept := Fold(department)
	var out []core.Entity
	for _, e := range c.tables.Entities {
		if e.Level == core.Municipality && Fold(e.Department) == dept {
			out = append(out, e)
		}
	}
	sortByName(out)
	return out
}

// Governorates returns every departmental governorate sorted by name.
func (c *Catalog) Governorates() []core.Entity {
	var out []core.Entity
	for _, e := range c.tables.Entities {
		if e.Level == core.Governorate {
			out = append(out, e)
		}
	}
	sortByName(out)
	return out
}

func sortByName(es []core.Entity) {
	sort.SliceStable(es, func(i, j int) bool { return Fold(es[i].Name) < Fold(es[j].Name) })
}

// PeriodByLabel maps a UI label to its period.
func (c *Catalog) PeriodByLabel(label string) (core.Period, error) {
	p, ok := c.periodByLabel[Fold(label)]
	if !ok {
		return core.Period{}, fmt.Errorf("period label %q: %w", label, ErrNotFound)
	}
	return p, nil
}

// PeriodByCode maps an API period code to its period.
func (c *Catalog) PeriodByCode(code string) (core.Period, error) {
	p, ok := c.periodByCode[strings.TrimSpace(code)]
	if !ok {
		return core.Period{}, fmt.Errorf("period code %q: %w", code, ErrNotFound)
	}
	return p, nil
}

// Periods returns the periods in table order.
func (c *Catalog) Periods() []core.Period {
	return append([]core.Period(nil), c.tables.Periods...)
}

// AccountByName maps a revenue account display name to its code. The first
// account with the name wins.
func (c *Catalog) AccountByName(name string) (core.Account, error) {
	a, ok := c.accountByName[Fold(name)]
	if !ok {
		return core.Account{}, fmt.Errorf("account %q: %w", name, ErrNotFound)
	}
	return a, nil
}

// Accounts returns the account taxonomy in table order.
func (c *Catalog) Accounts() []core.Account {
	return append([]core.Account(nil), c.tables.Accounts...)
}

// Subaccounts returns the accounts below code in the dotted hierarchy, in
// catalog order. The parent itself must be in the catalog.
func (c *Catalog) Subaccounts(code string) ([]core.Account, error) {
	code = strings.TrimSpace(code)
	i := slices.IndexFunc(c.tables.Accounts, func(a core.Account) bool { return a.Code == code })
	if i < 0 {
		return nil, fmt.Errorf("account code %q: %w", code, ErrNotFound)
	}
	parent := c.tables.Accounts[i]
	var out []core.Account
	for _, a := range c.tables.Accounts {
		if parent.IsAncestorOf(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Populations returns population by entity code. Entities without a
// population are left out.
func (c *Catalog) Populations() map[string]float64 {
	out := make(map[string]float64, len(c.byCode))
	for code, e := range c.byCode {
		if v, ok := e.Population.Get(); ok && v > 0 {
			out[code] = v
		}
	}
	return out
}

// PriceIndex returns a copy of the year to CPI mapping shipped with the
// reference data, or nil when the tables carry none.
func (c *Catalog) PriceIndex() map[int]float64 {
	if len(c.tables.PriceIndex) == 0 {
		return nil
	}
	out := make(map[int]float64, len(c.tables.PriceIndex))
	for k, v := range c.tables.PriceIndex {
		out[k] = v
	}
	return out
}

// Tables returns the tables the catalog was built from.
func (c *Catalog) Tables() Tables {
	return c.tables
}
