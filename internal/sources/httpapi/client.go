// Package httpapi talks to a REST transactions backend in json-server shape:
//
//	GET  /transactions?_sort=createdAt&_order=desc&q=<query>
//	POST /transactions
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dtmoney/internal/core"
	"dtmoney/internal/sources"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	now     func() time.Time
}

var _ sources.Source = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    newHTTPClient(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          50,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 30 * time.Second,
	}
}

func (c *Client) endpoint(params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/transactions"
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) Search(ctx context.Context, query string) ([]core.Transaction, error) {
	params := url.Values{
		"_sort":  {"createdAt"},
		"_order": {"desc"},
	}
	if q := strings.TrimSpace(query); q != "" {
		params.Set("q", q)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(params), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var records []sources.Record
	if err := c.do(req, &records); err != nil {
		return nil, err
	}

	out := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		tx, err := r.ToCore()
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed transaction from API", "error", err)
			continue
		}
		out = append(out, tx)
	}
	// The backend's q matches every field; narrow to the shared semantics.
	return sources.FilterAndSort(out, query), nil
}

func (c *Client) Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	tx, err := in.Build(c.now())
	if err != nil {
		return core.Transaction{}, err
	}

	body, err := json.Marshal(sources.RecordFromCore(tx))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("marshal transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(nil), bytes.NewReader(body))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var saved sources.Record
	if err := c.do(req, &saved); err != nil {
		return core.Transaction{}, err
	}
	// Prefer what the backend stored, but keep our ID if it assigned its own.
	if stored, err := saved.ToCore(); err == nil && saved.ID == sources.RecordID(tx.ID.String()) {
		tx = stored
	}

	slog.InfoContext(ctx, "Transaction posted to API", "id", tx.ID, "url", c.baseURL.Redacted())
	return tx, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method: req.Method,
			URL:    req.URL.Path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
