package dashboard

import (
	"context"
	"fmt"

	"cuipo/internal/aggregate"
	"cuipo/internal/core"
	"cuipo/internal/derived"
	"cuipo/internal/log"
	"cuipo/internal/normalize"
)

var (
	revenueKeys = []string{core.FieldScopeCode, core.FieldScopeName}
	revenueSums = []string{core.FieldInitialBudget, core.FieldDefinitiveBudget}
	expenseKeys = []string{core.FieldAccountCode, core.FieldAccountName}
)

func (s *Service) loadRevenue(ctx context.Context, sel Selection) (Result, error) {
	entity, err := s.resolveEntity(sel)
	if err != nil {
		return Result{}, err
	}
	period, err := s.resolvePeriod(sel)
	if err != nil {
		return Result{}, err
	}

	raw, err := s.fetcher.FetchRevenue(ctx, entity.Code, period.Code)
	if err != nil {
		return Result{}, fmt.Errorf("fetch revenue: %w", err)
	}
	if len(raw) == 0 {
		return Result{}, noData(LoadRevenue, entity.Code+"/"+period.Code)
	}

	records, rep := normalize.RevenueWithReport(raw)
	s.logReport(ctx, LoadRevenue, rep)

	filtered := aggregate.Filter(records, aggregate.RevenueCriteria(s.revenueScopes()))
	summary := aggregate.Summarize(filtered, revenueKeys, revenueSums,
		aggregate.Options{ReservedLabel: aggregate.RevenueRollupLabel, LabelField: core.FieldScopeName})

	headline := core.Missing
	if total, ok := summary.TotalRow(); ok {
		headline = summary.Sum(total, core.FieldDefinitiveBudget)
	}
	if rollup := aggregate.WithLabel(filtered, core.FieldScopeName, aggregate.RevenueRollupLabel); len(rollup) > 0 {
		t := aggregate.Summarize(rollup, nil, revenueSums, aggregate.Options{})
		if total, ok := t.TotalRow(); ok {
			headline = t.Sum(total, core.FieldDefinitiveBudget)
		}
	}

	s.logger.DebugContext(ctx, "Revenue summarized",
		log.FieldEntityCode, entity.Code,
		log.FieldPeriodCode, period.Code,
		log.FieldRows, len(raw),
		log.FieldCount, len(filtered))
	return Result{Revenue: &RevenueResult{
		Entity:   entity,
		Period:   period,
		Raw:      raw,
		Summary:  summary,
		Headline: headline,
		Report:   rep,
	}}, nil
}

func (s *Service) loadRevenueHistory(ctx context.Context, sel Selection) (Result, error) {
	entity, err := s.resolveEntity(sel)
	if err != nil {
		return Result{}, err
	}

	raw, err := s.fetcher.FetchRevenue(ctx, entity.Code, "")
	if err != nil {
		return Result{}, fmt.Errorf("fetch revenue history: %w", err)
	}
	records, rep := normalize.RevenueWithReport(raw)
	s.logReport(ctx, LoadRevenueHistory, rep)

	series := aggregate.BuildYearSnapshotSeries(
		aggregate.WithLabel(records, core.FieldScopeName, aggregate.RevenueRollupLabel))
	if len(series) == 0 {
		return Result{}, noData(LoadRevenueHistory, entity.Code)
	}

	nominal := make([]derived.Point, len(series))
	for i, p := range series {
		nominal[i] = derived.Point{Year: p.Year, Value: p.Record.DefinitiveBudget}
	}
	adjusted := derived.InflationAdjust(nominal, s.priceIndex(), derived.DefaultBaseIndex)

	points := make([]HistoryPoint, len(series))
	for i, p := range series {
		points[i] = HistoryPoint{Date: p.Date, Nominal: nominal[i].Value, Real: adjusted[i].Value}
	}
	return Result{History: &HistoryResult{Entity: entity, Points: points}}, nil
}

func (s *Service) loadExpense(ctx context.Context, sel Selection) (Result, error) {
	entity, err := s.resolveEntity(sel)
	if err != nil {
		return Result{}, err
	}
	period, err := s.resolvePeriod(sel)
	if err != nil {
		return Result{}, err
	}

	raw, err := s.fetcher.FetchExpense(ctx, entity.Code, period.Code)
	if err != nil {
		return Result{}, fmt.Errorf("fetch expense: %w", err)
	}
	if len(raw) == 0 {
		return Result{}, noData(LoadExpense, entity.Code+"/"+period.Code)
	}

	records, rep := normalize.ExpenseWithReport(raw)
	s.logReport(ctx, LoadExpense, rep)

	allowed := aggregate.NewAccountSet(s.cfg.ExpenseAccounts...)
	if len(allowed) == 0 {
		allowed = aggregate.AccountSetOf(records, core.FieldAccountCode)
	}
	current := aggregate.FilterByAccounts(records, allowed, aggregate.StatusCurrent)

	summary := aggregate.Summarize(current, expenseKeys, aggregate.ExpenseSums,
		aggregate.Options{ReservedLabel: aggregate.ExpenseRollupLabel, LabelField: core.FieldAccountName})
	detail := aggregate.RollupDetail(current, aggregate.ExpenseRollupLabel, aggregate.ExpenseSums)
	consolidated := aggregate.ConsolidateByStatus(records, aggregate.Statuses,
		aggregate.ExpenseRollupLabel, aggregate.ExpenseSums)

	committed := core.Missing
	if total, ok := consolidated.TotalRow(); ok {
		committed = consolidated.Sum(total, core.FieldCommitted)
	}
	return Result{Expense: &ExpenseResult{
		Entity:               entity,
		Period:               period,
		Raw:                  raw,
		Summary:              summary,
		Detail:               detail,
		Consolidated:         consolidated,
		CommittedAllStatuses: committed,
		Report:               rep,
	}}, nil
}

func (s *Service) loadComparison(ctx context.Context, sel Selection) (Result, error) {
	entity, err := s.resolveEntity(sel)
	if err != nil {
		return Result{}, err
	}
	period, err := s.resolvePeriod(sel)
	if err != nil {
		return Result{}, err
	}
	if sel.AccountName == "" {
		return Result{}, fmt.Errorf("%w: account is required", ErrInvalidSelection)
	}
	account, err := s.catalog.AccountByName(sel.AccountName)
	if err != nil {
		return Result{}, err
	}

	raw, err := s.fetcher.FetchByScope(ctx, period.Code, account.Code)
	if err != nil {
		return Result{}, fmt.Errorf("fetch by scope: %w", err)
	}
	if len(raw) == 0 {
		return Result{}, noData(LoadComparison, period.Code+"/"+account.Code)
	}

	records, rep := normalize.RevenueWithReport(raw)
	s.logReport(ctx, LoadComparison, rep)

	byEntity := aggregate.Summarize(records, []string{core.FieldEntityCode},
		[]string{core.FieldDefinitiveBudget}, aggregate.Options{NoTotal: true})
	totals := make(map[string]core.Amount, len(byEntity.Rows))
	for _, r := range byEntity.Rows {
		totals[r.Keys[0]] = r.Sums[0]
	}

	perCapita := s.calc.PerCapita(ctx, totals, s.catalog.Populations())
	categories := make(map[string]string)
	for _, e := range s.catalog.Entities() {
		categories[e.Code] = e.Category
	}
	cmp, err := derived.CategoryComparison(perCapita, categories, entity.Code)
	if err != nil {
		return Result{}, err
	}
	return Result{Comparison: &ComparisonResult{
		Entity:     entity,
		Period:     period,
		Account:    account,
		Comparison: cmp,
		Compared:   len(perCapita),
	}}, nil
}
