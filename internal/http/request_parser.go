// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Form posts from htmx and JSON bodies from API clients go through the same
// parser so both surfaces validate new transactions identically.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"dtmoney/internal/core"
)

const (
	maxBodyBytes   = 1 << 20
	maxQueryLength = 200
)

var errBodyTooLarge = errors.New("request body too large")

// ValueGetter is satisfied by url.Values and *RequestBodyParser.
type ValueGetter interface {
	Get(key string) string
}

// ParseSearchQuery returns the sanitized free-text query, capped in length.
func ParseSearchQuery(values ValueGetter) string {
	q := sanitizeInput(values.Get("query"))
	if utf8.RuneCountInString(q) > maxQueryLength {
		q = string([]rune(q)[:maxQueryLength])
	}
	return q
}

// ParseNewTransaction builds a validated NewTransaction from request values.
// Problems are joined so a form can show all of them at once; each one
// matches its core sentinel with errors.Is.
func ParseNewTransaction(values ValueGetter) (core.NewTransaction, error) {
	in := core.NewTransaction{
		Description: sanitizeInput(values.Get("description")),
		Category:    sanitizeInput(values.Get("category")),
	}

	var errs []error
	if t, err := core.ParseTransactionType(values.Get("type")); err != nil {
		errs = append(errs, err)
	} else {
		in.Type = t
	}
	if p, err := core.ParsePrice(values.Get("price")); err != nil {
		errs = append(errs, err)
	} else {
		in.Price = p
	}

	if err := in.Validate(); err != nil && !containsError(errs, err) {
		errs = append(errs, err)
	}
	return in, errors.Join(errs...)
}

func containsError(errs []error, target error) bool {
	for _, err := range errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxBodyBytes of the request body once.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	trimmed := strings.TrimSpace(string(p.body))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = fmt.Errorf("decode JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
