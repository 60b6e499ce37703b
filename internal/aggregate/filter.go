// Package aggregate filters normalized records, groups them into summary
// tables with a trailing TOTAL row and selects year-end snapshot series.
package aggregate

import (
	"sort"
	"strings"

	"cuipo/internal/core"
)

// Record is the field view the engine needs from a normalized record.
type Record interface {
	Text(field string) core.Text
	Amount(field string) core.Amount
}

// AccountSet is a closed allowlist of account codes.
type AccountSet map[string]struct{}

func NewAccountSet(codes ...string) AccountSet {
	s := make(AccountSet, len(codes))
	for _, c := range codes {
		if c = canonical(c); c != "" {
			s[c] = struct{}{}
		}
	}
	return s
}

// AccountSetOf collects every code present in field across records.
func AccountSetOf[R Record](records []R, field string) AccountSet {
	s := AccountSet{}
	for _, r := range records {
		if v, ok := r.Text(field).Get(); ok {
			if v = canonical(v); v != "" {
				s[v] = struct{}{}
			}
		}
	}
	return s
}

func (s AccountSet) Contains(code string) bool {
	_, ok := s[canonical(code)]
	return ok
}

// Codes returns the members sorted.
func (s AccountSet) Codes() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Criteria selects records by account code and, optionally, fiscal status.
type Criteria struct {
	CodeField string
	Allowed   AccountSet
	// StatusField empty disables the status requirement.
	StatusField string
	Status      string
}

// ExpenseCriteria matches expense rows by account code and status label.
func ExpenseCriteria(allowed AccountSet, status string) Criteria {
	return Criteria{
		CodeField:   core.FieldAccountCode,
		Allowed:     allowed,
		StatusField: core.FieldFiscalStatus,
		Status:      status,
	}
}

// RevenueCriteria matches revenue rows by scope code.
func RevenueCriteria(allowed AccountSet) Criteria {
	return Criteria{CodeField: core.FieldScopeCode, Allowed: allowed}
}

// Filter keeps the records satisfying c, in input order. A record lacking
// the code or status column never matches.
func Filter[R Record](records []R, c Criteria) []R {
	out := make([]R, 0, len(records))
	for _, r := range records {
		if c.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// FilterByAccounts keeps expense records whose account code is allowed and
// whose fiscal status equals status, both compared trimmed and case-insensitively.
func FilterByAccounts[R Record](records []R, allowed AccountSet, status string) []R {
	return Filter(records, ExpenseCriteria(allowed, status))
}

func (c Criteria) matches(r Record) bool {
	code, ok := r.Text(c.CodeField).Get()
	if !ok || !c.Allowed.Contains(code) {
		return false
	}
	if c.StatusField == "" {
		return true
	}
	status, ok := r.Text(c.StatusField).Get()
	return ok && SameLabel(status, c.Status)
}

// WithLabel keeps records whose field equals label, compared trimmed and
// case-insensitively.
func WithLabel[R Record](records []R, field, label string) []R {
	out := make([]R, 0)
	for _, r := range records {
		if v, ok := r.Text(field).Get(); ok && SameLabel(v, label) {
			out = append(out, r)
		}
	}
	return out
}

// SameLabel compares upstream labels, whose casing and padding drift.
func SameLabel(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
