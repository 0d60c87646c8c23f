package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"dtmoney/internal/core"
	applog "dtmoney/internal/log"
	"dtmoney/internal/session"
	"dtmoney/internal/sources"
	"dtmoney/internal/sources/memory"
)

// flakySource fails searches for one query and delegates everything else.
type flakySource struct {
	*memory.Store
	failQuery string
}

func (f flakySource) Search(ctx context.Context, query string) ([]core.Transaction, error) {
	if query == f.failQuery {
		return nil, errors.New("upstream unavailable")
	}
	return f.Store.Search(ctx, query)
}

// slowSource holds searches for one query until they are cancelled.
type slowSource struct {
	*memory.Store
	slowQuery string
	started   chan struct{}
}

func (s slowSource) Search(ctx context.Context, query string) ([]core.Transaction, error) {
	if query == s.slowQuery {
		s.started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.Store.Search(ctx, query)
}

func newTestServer(t *testing.T, perMinute int) *Server {
	t.Helper()
	return newTestServerWithSource(t, flakySource{Store: memory.New(memory.DefaultSeed()), failQuery: "boom"}, perMinute)
}

func newTestServerWithSource(t *testing.T, src sources.Source, perMinute int) *Server {
	t.Helper()
	mgr := session.NewManager(src, 10, time.Minute)
	t.Cleanup(func() { _ = mgr.Close() })

	srv := NewServer(":0", mgr, Options{
		Logger:             applog.New(applog.Config{Output: io.Discard}),
		RateLimitPerMinute: perMinute,
		Ready:              func(context.Context) error { return nil },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

// client carries the session cookie between requests like a browser.
type client struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	req.RemoteAddr = "203.0.113.7:4242"
	rr := httptest.NewRecorder()
	c.srv.Handler.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck
		}
	}
	return rr
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return c.do(req)
}

func TestIndexAndHealth(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, 100)}

	rr := c.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"dt.money", "Desenvolvimento de site", "R$ 17.400,00", "R$ 1.259,00", "R$ 16.141,00"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if c.cookie == nil || !c.cookie.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %+v", c.cookie)
	}
	if rr.Header().Get("Content-Security-Policy") == "" || rr.Header().Get("X-Request-ID") == "" {
		t.Error("security and trace headers should be set")
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/static/style.css"} {
		if rr := c.get(path); rr.Code != http.StatusOK {
			t.Errorf("%s status=%d", path, rr.Code)
		}
	}
	if rr := c.get("/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown path status=%d, want 404", rr.Code)
	}
}

func TestSearchUpdatesTableAndSummary(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, 100)}
	c.get("/")

	rr := c.postForm("/ui/search", url.Values{"query": {"ALUG"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("search status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Aluguel do apartamento") || strings.Contains(rr.Body.String(), "Hamburguer") {
		t.Errorf("search partial has wrong rows: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventTransactionsUpdated) {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}

	rr = c.get("/ui/summary")
	body := rr.Body.String()
	if !strings.Contains(body, "-R$ 1.200,00") || !strings.Contains(body, "negative") {
		t.Errorf("summary should reflect the last search: %s", body)
	}
}

func TestSearchFailureKeepsPreviousList(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, 100)}
	c.get("/")
	c.postForm("/ui/search", url.Values{"query": {"venda"}})

	rr := c.postForm("/ui/search", url.Values{"query": {"boom"}})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("failed search status=%d, want 502", rr.Code)
	}
	if rr.Header().Get("HX-Retarget") != "#flash" {
		t.Errorf("error partial should target the flash area")
	}

	rr = c.get("/ui/transactions")
	if !strings.Contains(rr.Body.String(), "Computador") || strings.Contains(rr.Body.String(), "Hamburguer") {
		t.Errorf("previous list should survive a failed fetch: %s", rr.Body.String())
	}
}

func TestCreateTransactionForm(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, 100)}
	c.get("/")

	rr := c.postForm("/ui/transactions", url.Values{"description": {""}, "price": {"abc"}, "category": {"Casa"}, "type": {"outcome"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid create status=%d, want 422", rr.Code)
	}
	for _, want := range []string{"Informe a descrição.", "Informe um preço válido.", `value="Casa"`} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("form partial missing %q", want)
		}
	}

	rr = c.postForm("/ui/transactions", url.Values{"description": {"Mercado"}, "price": {"250,90"}, "category": {"Alimentação"}, "type": {"outcome"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{EventTransactionCreated, EventTransactionsUpdated, EventFormReset} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %q: %s", want, trigger)
		}
	}

	rr = c.get("/ui/transactions")
	if !strings.Contains(rr.Body.String(), "Mercado") || !strings.Contains(rr.Body.String(), "- R$ 250,90") {
		t.Errorf("created transaction should be listed: %s", rr.Body.String())
	}
}

func TestAPI(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, 100)}

	rr := c.get("/api/transactions?query=venda")
	if rr.Code != http.StatusOK {
		t.Fatalf("search status=%d", rr.Code)
	}
	var list apiTransactions
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Query != "venda" || len(list.Transactions) != 2 || list.Version == 0 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list.Transactions[0].Description != "Computador" {
		t.Errorf("results should be newest first, got %q", list.Transactions[0].Description)
	}

	rr = c.get("/api/summary")
	for _, want := range []string{`"income":"17400"`, `"outcome":"0"`, `"total":"17400"`} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("summary %s missing %s", rr.Body.String(), want)
		}
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"created", `{"description":"Freela","type":"income","category":"Venda","price":10.5}`, http.StatusCreated},
		{"string price", `{"description":"Freela","type":"income","category":"Venda","price":"1.234,56"}`, http.StatusCreated},
		{"malformed", `{"description":`, http.StatusBadRequest},
		{"invalid type", `{"description":"x","type":"transfer","category":"y","price":1}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := c.do(req)
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr = c.get("/api/transactions?query=freela")
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Transactions) != 2 {
		t.Errorf("expected the two created transactions, got %d", len(list.Transactions))
	}
}

func TestRateLimitAppliesToPOST(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, 1)}
	c.get("/")
	c.get("/")

	if rr := c.postForm("/ui/search", url.Values{"query": {"a"}}); rr.Code != http.StatusOK {
		t.Fatalf("first POST status=%d", rr.Code)
	}
	rr := c.postForm("/ui/search", url.Values{"query": {"b"}})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After should be set")
	}
}

func TestSupersededSearch(t *testing.T) {
	tests := []struct {
		name     string
		request  func(query string) *http.Request
		wantCode int
	}{
		{"html search answers no content", func(query string) *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/ui/search", strings.NewReader(url.Values{"query": {query}}.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("HX-Request", "true")
			return req
		}, http.StatusNoContent},
		{"api search answers conflict", func(query string) *http.Request {
			return httptest.NewRequest(http.MethodGet, "/api/transactions?query="+url.QueryEscape(query), nil)
		}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := slowSource{Store: memory.New(memory.DefaultSeed()), slowQuery: "lento", started: make(chan struct{}, 1)}
			c := &client{t: t, srv: newTestServerWithSource(t, src, 100)}
			c.get("/")

			slow := tt.request("lento")
			slow.AddCookie(c.cookie)
			slow.RemoteAddr = "203.0.113.7:4242"
			done := make(chan *httptest.ResponseRecorder, 1)
			go func() {
				rr := httptest.NewRecorder()
				c.srv.Handler.ServeHTTP(rr, slow)
				done <- rr
			}()
			<-src.started

			if rr := c.do(tt.request("ALUG")); rr.Code != http.StatusOK {
				t.Fatalf("newer search status=%d", rr.Code)
			}
			rr := <-done
			if rr.Code != tt.wantCode {
				t.Fatalf("superseded search status=%d, want %d", rr.Code, tt.wantCode)
			}

			table := c.get("/ui/transactions").Body.String()
			if !strings.Contains(table, "Aluguel") || strings.Contains(table, "Desenvolvimento de site") {
				t.Errorf("table should show the newer search, got %s", table)
			}
		})
	}
}
