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

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentHTTP, Output: &buf})

	l.Info("hello", FieldQuery, "mercado")
	l.WithComponent(ComponentStore).Debug("fetched")

	out := buf.String()
	if !strings.Contains(out, "component=http") || !strings.Contains(out, "query=mercado") {
		t.Errorf("missing http fields: %s", out)
	}
	if !strings.Contains(out, "component=store") {
		t.Errorf("missing store component: %s", out)
	}
	if strings.Count(out, "component=") != 2 {
		t.Errorf("component must appear once per line: %s", out)
	}
}

func TestMiddlewareAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Component: ComponentHTTP, Output: &buf})

	h := Middleware(base, func(*http.Request) string { return "req-1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Errorf("request id not logged: %s", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("FromContext() = %+v", l)
	}
}

func TestFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentSession).
		WithOperation(OpSearch).
		WithSearch("casa", 3, 2).
		WithError(errors.New("boom")).
		WithError(nil)

	if len(f.ToSlice()) != 2*len(f) {
		t.Fatalf("ToSlice() length mismatch")
	}
	if f[FieldError] != "boom" || f[FieldVersion] != uint64(3) {
		t.Errorf("fields = %v", f)
	}
}
