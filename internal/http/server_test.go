package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"cuipo/internal/cache"
	"cuipo/internal/catalog"
	"cuipo/internal/catalog/memory"
	"cuipo/internal/core"
	"cuipo/internal/dashboard"
	"cuipo/internal/derived"
	"cuipo/internal/export"
	"cuipo/internal/upstream"
	upmem "cuipo/internal/upstream/memory"
)

const medellin = "210105001"

func rev(scope, name, definitive string) core.RawRecord {
	return core.RawRecord{
		core.FieldPeriod: "20240301", core.FieldEntityCode: medellin,
		core.FieldScopeCode: scope, core.FieldScopeName: name,
		core.FieldInitialBudget: "0", core.FieldDefinitiveBudget: definitive,
	}
}

func exp(code, name, status, committed string) core.RawRecord {
	return core.RawRecord{
		core.FieldPeriod: "20240301", core.FieldEntityCode: medellin,
		core.FieldAccountCode: code, core.FieldAccountName: name,
		core.FieldFiscalStatus: status, core.FieldCommitted: committed,
		core.FieldPaid: "0", core.FieldObligated: "0",
	}
}

func newTestServer(t *testing.T, f *upmem.Fetcher) *Server {
	t.Helper()
	cat, err := catalog.Load(context.Background(), memory.NewSeeded())
	if err != nil {
		t.Fatal(err)
	}
	sessions := dashboard.NewSessions(cache.NewLRUCache[dashboard.WorkingSet](8, time.Hour))
	srv := NewServer(":0", dashboard.New(cat, f, sessions, dashboard.Config{}, nil), nil)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, upmem.New())

	rr := do(t, srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	for _, want := range []string{"Conciliación presupuestal", "Antioquia", "Marzo 2024", "/static/app.js"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" || rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("security headers missing: %v", rr.Header())
	}

	for _, path := range []string{"/healthz", "/readyz", "/static/app.css"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
	if rr := do(t, srv, http.MethodGet, "/nope", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t, upmem.New())

	depts := decode[[]string](t, do(t, srv, http.MethodGet, "/api/catalog/departments", ""))
	if len(depts) != 3 || depts[0] != "Antioquia" {
		t.Fatalf("departments %v", depts)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 9},
		{"?department=Antioquia", 4},
		{"?department=cundinamarca&level=municipio", 2},
		{"?level=gobernacion", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, "/api/catalog/entities"+tt.query, "")
			got := decode[[]entityView](t, rr)
			if len(got) != tt.want {
				t.Fatalf("got %d entities, want %d", len(got), tt.want)
			}
		})
	}
	if rr := do(t, srv, http.MethodGet, "/api/catalog/entities?level=vereda", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown level status=%d", rr.Code)
	}

	periods := decode[[]periodView](t, do(t, srv, http.MethodGet, "/api/catalog/periods", ""))
	accounts := decode[[]accountView](t, do(t, srv, http.MethodGet, "/api/catalog/accounts", ""))
	if len(periods) != 5 || len(accounts) != 9 {
		t.Fatalf("periods %d accounts %d", len(periods), len(accounts))
	}

	subs := decode[[]accountView](t, do(t, srv, http.MethodGet, "/api/catalog/accounts?parent=1", ""))
	if len(subs) != 8 {
		t.Fatalf("subaccounts of 1: %d", len(subs))
	}
	if rr := do(t, srv, http.MethodGet, "/api/catalog/accounts?parent=7.7", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown parent status=%d", rr.Code)
	}
}

func TestRevenueLoadAndExport(t *testing.T) {
	f := upmem.New().AddRevenue(
		rev("1", "INGRESOS", "9,000,000"),
		rev("1.1.01.01.200", "Impuesto predial unificado", "1,000,000"),
		rev("1.1.01.01.200", "Impuesto predial unificado", "2,500,000"),
		rev("9.9", "FUERA DE LISTA", "7"),
	)
	srv := newTestServer(t, f)

	rr := do(t, srv, http.MethodPost, "/api/revenue",
		`{"department":"Antioquia","entity":"Medellín","period":"Marzo 2024"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	v := decode[revenueView](t, rr)
	if v.Headline.Text != "$9,000,000" || v.Rows != 4 {
		t.Fatalf("headline %+v rows %d", v.Headline, v.Rows)
	}
	if v.Summary.TotalRow != 1 || v.Summary.Rows[1][len(v.Summary.Rows[1])-1] != "$3,500,000" {
		t.Fatalf("summary %+v", v.Summary)
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookie || !dashboard.ValidID(cookies[0].Value) {
		t.Fatalf("session cookie %v", cookies)
	}

	rr = do(t, srv, http.MethodGet, "/api/export/revenue.xlsx", "", cookies...)
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != export.ContentType {
		t.Fatalf("export status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "ingresos_210105001_20240301.xlsx") {
		t.Fatalf("disposition %q", rr.Header().Get("Content-Disposition"))
	}
	wb, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()
	if got := wb.GetSheetList(); len(got) != 2 || got[0] != export.SheetRawRevenue {
		t.Fatalf("sheets %v", got)
	}

	// The expense export has nothing to serve for this session yet.
	if rr := do(t, srv, http.MethodGet, "/api/export/expense.xlsx", "", cookies...); rr.Code != http.StatusNotFound {
		t.Fatalf("expense export status=%d", rr.Code)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/session", "", cookies...); rr.Code != http.StatusNoContent {
		t.Fatalf("reset status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/export/revenue.xlsx", "", cookies...); rr.Code != http.StatusNotFound {
		t.Fatalf("export after reset status=%d", rr.Code)
	}
}

func TestExpenseLoadInMillions(t *testing.T) {
	f := upmem.New().AddExpense(
		exp("2", "GASTOS", "VIGENCIA ACTUAL", "3000000"),
		exp("2.1", "FUNCIONAMIENTO", "VIGENCIA ACTUAL", "1000000"),
		exp("2.1", "FUNCIONAMIENTO", "RESERVAS", "500000"),
		exp("2.3", "INVERSION", "VIGENCIA ACTUAL", "2000000"),
	)
	srv := newTestServer(t, f)

	body := "entity_code=" + medellin + "&period_code=20240301&millions=on"
	req := httptest.NewRequest(http.MethodPost, "/api/expense", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}

	v := decode[expenseView](t, rr)
	if !strings.Contains(v.Summary.Title, "millones de pesos") {
		t.Fatalf("title %q", v.Summary.Title)
	}
	if len(v.Summary.Rows) != 3 || v.Summary.TotalRow != 2 {
		t.Fatalf("summary rows %+v", v.Summary.Rows)
	}
	if got := v.Summary.Rows[2][2]; got != "$3" {
		t.Fatalf("total committed in millions = %q", got)
	}
	if len(v.Detail.Headers) != 3 {
		t.Fatalf("detail must hide the account columns: %v", v.Detail.Headers)
	}
	if v.Committed.Value == nil || *v.Committed.Value != 3 {
		t.Fatalf("committed %+v", v.Committed)
	}
}

func TestOperationErrors(t *testing.T) {
	f := upmem.New()
	srv := newTestServer(t, f)

	rr := do(t, srv, http.MethodPost, "/api/expense", `{"entity_code":"`+medellin+`","period_code":"20240301"}`)
	empty := decode[emptyBody](t, rr)
	if rr.Code != http.StatusOK || !empty.Empty || empty.Message == "" {
		t.Fatalf("empty result: %d %+v", rr.Code, empty)
	}

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown entity", "/api/revenue", `{"entity_code":"999","period_code":"20240301"}`, http.StatusNotFound},
		{"missing entity", "/api/revenue", `{"period_code":"20240301"}`, http.StatusUnprocessableEntity},
		{"unknown period", "/api/expense", `{"entity_code":"` + medellin + `","period":"Enero 1990"}`, http.StatusNotFound},
		{"malformed body", "/api/revenue", `{"entity_code":`, http.StatusBadRequest},
		{"unknown operation", "/api/operations/load-everything", `{}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, http.MethodPost, tt.path, tt.body); rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}

	f.FailWith(errors.New("503 Service Unavailable"))
	rr = do(t, srv, http.MethodPost, "/api/operations/load-expense", `{"entity_code":"`+medellin+`","period_code":"20240301"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("fetch failure status=%d", rr.Code)
	}
	if msg := decode[errorBody](t, rr).Error; !strings.Contains(msg, "503 Service Unavailable") {
		t.Fatalf("fetch failure must be surfaced verbatim, got %q", msg)
	}
}

func TestExportWithoutSession(t *testing.T) {
	srv := newTestServer(t, upmem.New())
	if rr := do(t, srv, http.MethodGet, "/api/export/expense.xlsx", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	bogus := &http.Cookie{Name: sessionCookie, Value: "../../etc"}
	if rr := do(t, srv, http.MethodGet, "/api/export/revenue.xlsx", "", bogus); rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestRateLimitedLoads(t *testing.T) {
	srv := newTestServer(t, upmem.New())
	srv.rateLimiter.limit = 2

	body := `{"entity_code":"` + medellin + `","period_code":"20240301"}`
	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/api/revenue", body); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/api/revenue", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("status=%d", rr.Code)
	}
	// Reads are not limited.
	if rr := do(t, srv, http.MethodGet, "/api/catalog/periods", ""); rr.Code != http.StatusOK {
		t.Fatalf("catalog status=%d", rr.Code)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(1)
	defer rl.stop()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	m := &securityMetrics{}

	if !rl.allow("10.0.0.1", m) || rl.allow("10.0.0.1", m) {
		t.Fatal("second request in the window must be rejected")
	}
	if !rl.allow("10.0.0.2", m) {
		t.Fatal("clients are limited independently")
	}
	now = now.Add(time.Minute)
	if !rl.allow("10.0.0.1", m) {
		t.Fatal("a new window must reset the count")
	}
	if m.snapshot()["rate_limit_hits"] != 1 {
		t.Fatalf("metrics %v", m.snapshot())
	}

	now = now.Add(11 * time.Minute)
	if removed := rl.cleanupStaleEntries(); removed != 2 {
		t.Fatalf("removed %d stale clients", removed)
	}
}

func TestResponseForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&upstream.FetchError{Op: upstream.OpRevenue, Err: errors.New("timeout")}, http.StatusBadGateway},
		{fmt.Errorf("load: %w", dashboard.ErrNoData), http.StatusOK},
		{fmt.Errorf("x: %w", catalog.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", derived.ErrLookupMiss), http.StatusNotFound},
		{fmt.Errorf("x: %w", catalog.ErrAmbiguous), http.StatusUnprocessableEntity},
		{dashboard.ErrInvalidSelection, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		ResponseForError(tt.err).Write(rr)
		if rr.Code != tt.want {
			t.Errorf("%v: status=%d want %d", tt.err, rr.Code, tt.want)
		}
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.7:5000", "", "203.0.113.7"},
		{"untrusted proxy header ignored", "203.0.113.7:5000", "198.51.100.1", "203.0.113.7"},
		{"trusted proxy", "10.0.0.5:5000", "198.51.100.1, 10.0.0.5", "198.51.100.1"},
		{"invalid forwarded ip", "10.0.0.5:5000", "not-an-ip", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestSuspiciousReason(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   string
	}{
		{"plain load", http.MethodPost, "/api/revenue", "curl/8.0", ""},
		{"traversal", http.MethodGet, "/static/../.env", "", "pattern ../"},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", "agent sqlmap"},
		{"trace", "TRACE", "/", "", "method TRACE"},
	}
	m := &securityMetrics{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/", nil)
			r.URL.Path = tt.target
			r.Header.Set("User-Agent", tt.agent)
			if got := suspiciousReason(r, m); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
	if m.snapshot()["suspicious_requests"] != 3 {
		t.Fatalf("metrics %v", m.snapshot())
	}
}
