// Package memory provides an in-process upstream used by tests and offline runs.
package memory

import (
	"context"
	"sync"

	"cuipo/internal/core"
	"cuipo/internal/upstream"
)

// Fetcher filters preloaded rows the same way the remote datasets do.
type Fetcher struct {
	mu      sync.Mutex
	revenue []core.RawRecord
	expense []core.RawRecord
	err     error
	calls   map[string]int
}

var _ upstream.Fetcher = (*Fetcher)(nil)

func New() *Fetcher {
	return &Fetcher{calls: map[string]int{}}
}

// AddRevenue appends rows to the revenue dataset.
func (f *Fetcher) AddRevenue(rows ...core.RawRecord) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revenue = append(f.revenue, rows...)
	return f
}

// AddExpense appends rows to the expense dataset.
func (f *Fetcher) AddExpense(rows ...core.RawRecord) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expense = append(f.expense, rows...)
	return f
}

// FailWith makes every subsequent fetch return a FetchError wrapping err.
// A nil err restores normal behaviour.
func (f *Fetcher) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns how many times op was invoked.
func (f *Fetcher) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Fetcher) FetchRevenue(ctx context.Context, entityCode, periodCode string) ([]core.RawRecord, error) {
	match := map[string]string{core.FieldEntityCode: entityCode}
	if periodCode != "" {
		match[core.FieldPeriod] = periodCode
	}
	return f.query(ctx, upstream.OpRevenue, f.revenueRows, match, nil)
}

func (f *Fetcher) FetchExpense(ctx context.Context, entityCode, periodCode string) ([]core.RawRecord, error) {
	match := map[string]string{core.FieldEntityCode: entityCode, core.FieldPeriod: periodCode}
	return f.query(ctx, upstream.OpExpense, f.expenseRows, match, core.ExpenseColumns)
}

func (f *Fetcher) FetchByScope(ctx context.Context, periodCode, scopeCode string) ([]core.RawRecord, error) {
	match := map[string]string{core.FieldPeriod: periodCode, core.FieldScopeCode: scopeCode}
	return f.query(ctx, upstream.OpScope, f.revenueRows, match, nil)
}

func (f *Fetcher) revenueRows() []core.RawRecord { return f.revenue }
func (f *Fetcher) expenseRows() []core.RawRecord { return f.expense }

func (f *Fetcher) query(ctx context.Context, op string, rows func() []core.RawRecord, match map[string]string, projection []string) ([]core.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if err := ctx.Err(); err != nil {
		return nil, &upstream.FetchError{Op: op, URL: "memory://" + op, Err: err}
	}
	if f.err != nil {
		return nil, &upstream.FetchError{Op: op, URL: "memory://" + op, Err: f.err}
	}

	out := []core.RawRecord{}
	for _, r := range rows() {
		if !matches(r, match) {
			continue
		}
		out = append(out, project(r, projection))
	}
	return out, nil
}

func matches(r core.RawRecord, match map[string]string) bool {
	for k, v := range match {
		got, ok := r[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// project copies r; with a projection only the listed columns survive.
func project(r core.RawRecord, cols []string) core.RawRecord {
	out := make(core.RawRecord, len(r))
	if cols == nil {
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}
