package http

import (
	"cuipo/internal/core"
	"cuipo/internal/dashboard"
	"cuipo/internal/present"
)

type entityView struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Department string   `json:"department"`
	Category   string   `json:"category,omitempty"`
	Level      string   `json:"level"`
	Population *float64 `json:"population"`
}

type periodView struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type accountView struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type metricView struct {
	Label string   `json:"label"`
	Value *float64 `json:"value"`
	Text  string   `json:"text"`
}

type revenueView struct {
	Entity   entityView    `json:"entity"`
	Period   periodView    `json:"period"`
	Rows     int           `json:"rows"`
	Headline metricView    `json:"headline"`
	Summary  present.Table `json:"summary"`
}

type historyView struct {
	Entity entityView         `json:"entity"`
	Title  string             `json:"title"`
	Chart  []present.ChartRow `json:"chart"`
}

type expenseView struct {
	Entity       entityView    `json:"entity"`
	Period       periodView    `json:"period"`
	Rows         int           `json:"rows"`
	Summary      present.Table `json:"summary"`
	Detail       present.Table `json:"detail"`
	Consolidated present.Table `json:"consolidated"`
	Committed    metricView    `json:"committed_all_statuses"`
}

type comparisonView struct {
	Entity   entityView              `json:"entity"`
	Period   periodView              `json:"period"`
	Account  accountView             `json:"account"`
	Title    string                  `json:"title"`
	Compared int                     `json:"compared"`
	Bars     []present.ComparisonBar `json:"bars"`
}

func newEntityView(e core.Entity) entityView {
	v := entityView{Code: e.Code, Name: e.Name, Department: e.Department, Category: e.Category, Level: string(e.Level)}
	if p, ok := e.Population.Get(); ok {
		v.Population = &p
	}
	return v
}

func entityViews(es []core.Entity) []entityView {
	out := make([]entityView, len(es))
	for i, e := range es {
		out[i] = newEntityView(e)
	}
	return out
}

func periodViews(ps []core.Period) []periodView {
	out := make([]periodView, len(ps))
	for i, p := range ps {
		out[i] = periodView{Code: p.Code, Label: p.Label}
	}
	return out
}

func accountViews(as []core.Account) []accountView {
	out := make([]accountView, len(as))
	for i, a := range as {
		out[i] = accountView{Code: a.Code, Name: a.Name}
	}
	return out
}

func newMetricView(label string, a core.Amount, s present.Scale) metricView {
	m := metricView{Label: label, Text: present.ScaledCOP(a, s)}
	if v, ok := present.Scaled(a, s).Get(); ok {
		m.Value = &v
	}
	return m
}

// resultView renders an operation result for the JSON API.
func resultView(res dashboard.Result, s present.Scale) any {
	switch {
	case res.Revenue != nil:
		r := res.Revenue
		return revenueView{
			Entity:   newEntityView(r.Entity),
			Period:   periodView{Code: r.Period.Code, Label: r.Period.Label},
			Rows:     len(r.Raw),
			Headline: newMetricView(present.TitleRevenueTotal, r.Headline, s),
			Summary:  present.FromAggregate(present.TitleRevenueSummary, r.Summary, s),
		}
	case res.History != nil:
		h := res.History
		points := make([]present.HistoryPoint, len(h.Points))
		for i, p := range h.Points {
			points[i] = present.HistoryPoint{Date: p.Date, Nominal: p.Nominal, Real: p.Real}
		}
		return historyView{
			Entity: newEntityView(h.Entity),
			Title:  present.TitleRevenueHistory,
			Chart:  present.HistoryChart(points),
		}
	case res.Expense != nil:
		e := res.Expense
		return expenseView{
			Entity:       newEntityView(e.Entity),
			Period:       periodView{Code: e.Period.Code, Label: e.Period.Label},
			Rows:         len(e.Raw),
			Summary:      present.FromAggregate(present.TitleExpenseSummary, e.Summary, s),
			Detail:       present.FromAggregate(present.TitleExpenseDetail, e.Detail, s, core.FieldAccountCode, core.FieldAccountName),
			Consolidated: present.FromAggregate(present.TitleConsolidated, e.Consolidated, s),
			Committed:    newMetricView(present.TitleCommittedAll, e.CommittedAllStatuses, s),
		}
	case res.Comparison != nil:
		c := res.Comparison
		return comparisonView{
			Entity:   newEntityView(c.Entity),
			Period:   periodView{Code: c.Period.Code, Label: c.Period.Label},
			Account:  accountView{Code: c.Account.Code, Name: c.Account.Name},
			Title:    present.TitleComparison,
			Compared: c.Compared,
			Bars:     present.ComparisonBars(c.Entity.Name, c.Comparison),
		}
	}
	return nil
}
