// Package dashboard runs the named dashboard operations: it resolves a
// selection against the reference catalog, fetches and normalizes upstream
// rows, and builds the aggregated and derived results.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cuipo/internal/aggregate"
	"cuipo/internal/catalog"
	"cuipo/internal/core"
	"cuipo/internal/derived"
	"cuipo/internal/log"
	"cuipo/internal/normalize"
	"cuipo/internal/upstream"
)

var (
	// ErrNoData is returned when the upstream answered with zero rows.
	ErrNoData = errors.New("no data for this selection")
	// ErrUnknownOperation is returned for names outside Operations.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrInvalidSelection is returned when a selection lacks a required part.
	ErrInvalidSelection = errors.New("invalid selection")
)

// DefaultRevenueScopes is the revenue allowlist used when the catalog has no
// account table.
var DefaultRevenueScopes = []string{
	"1", "1.1", "1.1.01.01.200", "1.1.01.02.104", "1.1.01.02.200",
	"1.1.01.02.300", "1.1.02.06.001", "1.2.06", "1.2.07",
}

// Selection identifies what an operation runs on. Entities and periods may be
// given by code or by name/label; codes win when both are set.
type Selection struct {
	SessionID   string
	EntityCode  string
	Department  string
	EntityName  string
	PeriodCode  string
	PeriodLabel string
	AccountName string
}

type (
	RevenueResult struct {
		Entity  core.Entity
		Period  core.Period
		Raw     []core.RawRecord
		Summary aggregate.Table
		// Headline is the definitive budget of the INGRESOS rollup, or the
		// summary total when the rollup row is absent.
		Headline core.Amount
		Report   normalize.Report
	}

	HistoryPoint struct {
		Date    time.Time
		Nominal core.Amount
		Real    core.Amount
	}

	HistoryResult struct {
		Entity core.Entity
		Points []HistoryPoint
	}

	ExpenseResult struct {
		Entity       core.Entity
		Period       core.Period
		Raw          []core.RawRecord
		Summary      aggregate.Table
		Detail       aggregate.Table
		Consolidated aggregate.Table
		// CommittedAllStatuses is the consolidated committed total.
		CommittedAllStatuses core.Amount
		Report               normalize.Report
	}

	ComparisonResult struct {
		Entity     core.Entity
		Period     core.Period
		Account    core.Account
		Comparison derived.Comparison
		// Compared counts the entities with a per-capita value.
		Compared int
	}

	// Result is the outcome of one operation; exactly one payload is set.
	Result struct {
		Operation  Operation
		At         time.Time
		Revenue    *RevenueResult
		History    *HistoryResult
		Expense    *ExpenseResult
		Comparison *ComparisonResult
	}
)

type Config struct {
	// ExpenseAccounts restricts the expense summary. Empty means every code
	// present in the fetched rows.
	ExpenseAccounts []string
	// PriceIndex is used when the catalog carries none.
	PriceIndex map[int]float64
}

type handler func(ctx context.Context, sel Selection) (Result, error)

// Service dispatches operations.
type Service struct {
	catalog  *catalog.Catalog
	fetcher  upstream.Fetcher
	calc     *derived.Calculator
	sessions *Sessions
	cfg      Config
	logger   *log.Logger
	now      func() time.Time
	handlers map[Operation]handler
}

// New wires a Service. sessions may be nil when results need not be kept.
func New(cat *catalog.Catalog, fetcher upstream.Fetcher, sessions *Sessions, cfg Config, logger *log.Logger) *Service {
	logger = log.OrDiscard(logger)
	s := &Service{
		catalog:  cat,
		fetcher:  fetcher,
		calc:     derived.New(logger),
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.WithComponent(log.ComponentDashboard),
		now:      time.Now,
	}
	s.handlers = map[Operation]handler{
		LoadRevenue:        s.loadRevenue,
		LoadRevenueHistory: s.loadRevenueHistory,
		LoadExpense:        s.loadExpense,
		LoadComparison:     s.loadComparison,
	}
	return s
}

// Catalog exposes the reference catalog the service resolves against.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Sessions exposes the session store, or nil.
func (s *Service) Sessions() *Sessions { return s.sessions }

// Dispatch runs op. On success the result replaces the session's previous
// result for op when sel carries a session ID.
func (s *Service) Dispatch(ctx context.Context, op Operation, sel Selection) (Result, error) {
	h, ok := s.handlers[op]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}

	start := s.now()
	res, err := h(ctx, sel)
	if err != nil {
		level := s.logger.WarnContext
		if errors.Is(err, ErrNoData) {
			level = s.logger.InfoContext
		}
		level(ctx, "Operation failed",
			log.FieldOperation, op.String(),
			log.FieldSession, sel.SessionID,
			"upstream", upstream.IsFetchError(err),
			log.FieldError, err.Error())
		return Result{}, err
	}
	res.Operation = op
	res.At = start

	if s.sessions != nil && sel.SessionID != "" {
		s.sessions.Put(sel.SessionID, res)
	}
	fields := log.NewFields().WithOperation(op.String()).WithSelection(sel.EntityCode, sel.PeriodCode)
	fields[log.FieldSession] = sel.SessionID
	fields[log.FieldDuration] = s.now().Sub(start).Milliseconds()
	s.logger.InfoContext(ctx, "Operation completed", fields.ToSlice()...)
	return res, nil
}

func (s *Service) resolveEntity(sel Selection) (core.Entity, error) {
	if sel.EntityCode != "" {
		return s.catalog.Entity(sel.EntityCode)
	}
	if sel.EntityName == "" {
		return core.Entity{}, fmt.Errorf("%w: entity is required", ErrInvalidSelection)
	}
	return s.catalog.EntityByName(sel.Department, sel.EntityName)
}

func (s *Service) resolvePeriod(sel Selection) (core.Period, error) {
	if sel.PeriodCode != "" {
		return s.catalog.PeriodByCode(sel.PeriodCode)
	}
	if sel.PeriodLabel == "" {
		return core.Period{}, fmt.Errorf("%w: period is required", ErrInvalidSelection)
	}
	return s.catalog.PeriodByLabel(sel.PeriodLabel)
}

func (s *Service) revenueScopes() aggregate.AccountSet {
	accounts := s.catalog.Accounts()
	if len(accounts) == 0 {
		return aggregate.NewAccountSet(DefaultRevenueScopes...)
	}
	codes := make([]string, len(accounts))
	for i, a := range accounts {
		codes[i] = a.Code
	}
	return aggregate.NewAccountSet(codes...)
}

func (s *Service) priceIndex() map[int]float64 {
	if idx := s.catalog.PriceIndex(); len(idx) > 0 {
		return idx
	}
	return s.cfg.PriceIndex
}

func (s *Service) logReport(ctx context.Context, op Operation, rep normalize.Report) {
	if rep.Remapped == 0 && len(rep.Unparsable) == 0 {
		return
	}
	s.logger.WithComponent(log.ComponentNormalize).InfoContext(ctx, "Normalization repaired rows",
		log.FieldOperation, op.String(),
		log.FieldRows, rep.Rows,
		"remapped", rep.Remapped,
		"unparsable", rep.Unparsable)
}

func noData(op Operation, sel string) error {
	return fmt.Errorf("%s %s: %w", op, sel, ErrNoData)
}
