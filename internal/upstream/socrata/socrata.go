// Package socrata implements the upstream ports against the datos.gov.co
// Socrata Open Data API.
package socrata

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cuipo/internal/core"
	"cuipo/internal/log"
	"cuipo/internal/upstream"
)

// Result caps per query. Rows beyond the cap are dropped by the server.
const (
	RevenueLimit = 50000
	ExpenseLimit = 10000
)

const (
	DefaultBaseURL        = "https://www.datos.gov.co/resource"
	DefaultRevenueDataset = "22ah-ddsj"
	DefaultExpenseDataset = "4f7r-epif"
	DefaultTimeout        = 30 * time.Second
)

type Config struct {
	BaseURL        string
	RevenueDataset string
	ExpenseDataset string
	// AppToken is sent as X-App-Token when set; it only raises throttling limits.
	AppToken string
	Timeout  time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *log.Logger
}

var _ upstream.Fetcher = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *log.Logger) Option {
	return func(cl *Client) { cl.logger = log.OrDiscard(l).WithComponent(log.ComponentUpstream) }
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RevenueDataset == "" {
		cfg.RevenueDataset = DefaultRevenueDataset
	}
	if cfg.ExpenseDataset == "" {
		cfg.ExpenseDataset = DefaultExpenseDataset
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		cfg:    cfg,
		http:   newHTTPClient(cfg.Timeout),
		logger: log.Discard().WithComponent(log.ComponentUpstream),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// FetchRevenue implements upstream.RevenueFetcher.
func (c *Client) FetchRevenue(ctx context.Context, entityCode, periodCode string) ([]core.RawRecord, error) {
	where := []condition{{core.FieldEntityCode, entityCode}}
	if periodCode != "" {
		where = append(where, condition{core.FieldPeriod, periodCode})
	}
	q := url.Values{}
	q.Set("$where", whereClause(where))
	q.Set("$limit", strconv.Itoa(RevenueLimit))
	return c.fetch(ctx, upstream.OpRevenue, c.cfg.RevenueDataset, c.datasetURL(c.cfg.RevenueDataset, "json", q), RevenueLimit, decodeJSON)
}

// FetchExpense implements upstream.ExpenseFetcher.
func (c *Client) FetchExpense(ctx context.Context, entityCode, periodCode string) ([]core.RawRecord, error) {
	q := url.Values{}
	q.Set("$select", strings.Join(core.ExpenseColumns, ","))
	q.Set("$where", whereClause([]condition{
		{core.FieldEntityCode, entityCode},
		{core.FieldPeriod, periodCode},
	}))
	q.Set("$limit", strconv.Itoa(ExpenseLimit))
	return c.fetch(ctx, upstream.OpExpense, c.cfg.ExpenseDataset, c.datasetURL(c.cfg.ExpenseDataset, "csv", q), ExpenseLimit, decodeCSV)
}

// FetchByScope implements upstream.ScopeFetcher.
func (c *Client) FetchByScope(ctx context.Context, periodCode, scopeCode string) ([]core.RawRecord, error) {
	q := url.Values{}
	q.Set("$where", whereClause([]condition{
		{core.FieldPeriod, periodCode},
		{core.FieldScopeCode, scopeCode},
	}))
	q.Set("$limit", strconv.Itoa(RevenueLimit))
	return c.fetch(ctx, upstream.OpScope, c.cfg.RevenueDataset, c.datasetURL(c.cfg.RevenueDataset, "json", q), RevenueLimit, decodeJSON)
}

func (c *Client) datasetURL(dataset, format string, q url.Values) string {
	return fmt.Sprintf("%s/%s.%s?%s", c.cfg.BaseURL, dataset, format, q.Encode())
}

type decodeFunc func(io.Reader) ([]core.RawRecord, error)

func (c *Client) fetch(ctx context.Context, op, dataset, target string, limit int, decode decodeFunc) ([]core.RawRecord, error) {
	start := time.Now()
	fail := func(status int, err error) ([]core.RawRecord, error) {
		c.logger.WarnContext(ctx, "Upstream fetch failed",
			log.FieldOperation, op,
			log.FieldDataset, dataset,
			log.FieldURL, target,
			log.FieldStatusCode, status,
			log.FieldError, err.Error(),
			log.FieldDuration, time.Since(start).Milliseconds())
		return nil, &upstream.FetchError{Op: op, URL: target, Status: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fail(0, err)
	}
	if c.cfg.AppToken != "" {
		req.Header.Set("X-App-Token", c.cfg.AppToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fail(resp.StatusCode, errors.New(msg))
	}

	rows, err := decode(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	fields := log.NewFields().WithOperation(op).WithFetch(dataset, target, len(rows))
	fields[log.FieldDuration] = time.Since(start).Milliseconds()
	c.logger.DebugContext(ctx, "Upstream fetch completed", fields.ToSlice()...)
	if len(rows) >= limit {
		c.logger.WarnContext(ctx, "Upstream result reached the row cap and may be truncated",
			log.FieldOperation, op,
			log.FieldURL, target,
			log.FieldLimit, limit)
	}
	return rows, nil
}

type condition struct {
	field string
	value string
}

// whereClause renders a SoQL AND of equality constraints. Single quotes in
// values are doubled.
func whereClause(conds []condition) string {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		parts = append(parts, fmt.Sprintf("%s='%s'", c.field, strings.ReplaceAll(c.value, "'", "''")))
	}
	return strings.Join(parts, " AND ")
}

// decodeJSON reads a row-oriented JSON array. Every value is rendered to
// text; null values keep the column present with an empty value.
func decodeJSON(r io.Reader) ([]core.RawRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	out := make([]core.RawRecord, 0, len(rows))
	for _, row := range rows {
		rec := make(core.RawRecord, len(row))
		for k, v := range row {
			rec[k] = textValue(v)
		}
		out = append(out, rec)
	}
	return out, nil
}

func textValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// decodeCSV reads a header-first CSV payload. Short rows leave the trailing
// columns absent.
// utf8BOM precedes the header of some dataset exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decodeCSV(r io.Reader) ([]core.RawRecord, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []core.RawRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	out := []core.RawRecord{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec := make(core.RawRecord, len(header))
		for i, v := range row {
			if i < len(header) {
				rec[header[i]] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
