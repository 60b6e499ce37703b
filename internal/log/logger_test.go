package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewJSONFormatCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentUpstream, Output: &buf})
	l.Info("fetched", NewFields().WithFetch("22ah-ddsj", "http://x", 3).ToSlice()...)

	out := buf.String()
	for _, want := range []string{`"component":"upstream"`, `"rows":3`, `"dataset":"22ah-ddsj"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})
	l.LogError(context.Background(), "fetch failed", errors.New("boom"), OpFetch, NewFields().WithSelection("05001", ""))
	out := buf.String()
	if !strings.Contains(out, "error=boom") || !strings.Contains(out, "entity_code=05001") {
		t.Fatalf("unexpected output %s", out)
	}
	if strings.Contains(out, FieldPeriodCode) {
		t.Fatalf("empty period must be omitted: %s", out)
	}
}

func TestMiddlewareStoresLoggerAndLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})
	h := Middleware(l, func(*http.Request) string { return "10.0.0.1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) != l {
			t.Errorf("logger not stored in context")
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/revenue", nil))

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "status_code=502") || !strings.Contains(out, "client_ip=10.0.0.1") {
		t.Fatalf("unexpected log line %s", out)
	}
}
