package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"dtmoney/internal/core"
	applog "dtmoney/internal/log"
	"dtmoney/internal/session"
	"dtmoney/internal/store"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	} else {
		checks["backend"] = "not_configured"
	}

	checks["sessions"] = map[string]any{"active": s.sessions.Len(), "status": "ok"}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients(), "status": "ok"}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.traceMiddleware.GetMetrics()

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP transactions_created_total Transactions created through this instance\n")
	fmt.Fprintf(w, "# TYPE transactions_created_total counter\n")
	fmt.Fprintf(w, "transactions_created_total %d\n\n", s.created.Load())

	fmt.Fprintf(w, "# HELP active_sessions Currently live sessions\n")
	fmt.Fprintf(w, "# TYPE active_sessions gauge\n")
	fmt.Fprintf(w, "active_sessions %d\n\n", s.sessions.Len())

	fmt.Fprintf(w, "# HELP rate_limit_rejections_total Requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE rate_limit_rejections_total counter\n")
	fmt.Fprintf(w, "rate_limit_rejections_total %d\n\n", s.rateLimiter.Rejected())

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", s.securityDetector.SuspiciousRequests())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			"path", r.URL.Path,
			applog.FieldComponent, applog.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	sess := s.sessionFor(w, r)
	snap, sum := sess.Summary.Current()
	data := pageView{
		Table:   newTableView(snap),
		Summary: newSummaryView(sum, snap.Version),
		Form:    formView{Type: "income"},
	}
	s.render(w, r, NewHTMXResponse(), "index.html", data)
}

// handleSearch runs a fetch for the submitted query and returns the table.
// A fetch overtaken by a newer one answers 204 so htmx leaves the page to
// the newer response.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Formato de requisição inválido").Write(w)
		return
	}
	query := ParseSearchQuery(r.Form)
	sess := s.sessionFor(w, r)
	logger := applog.FromContext(r.Context()).With(applog.FieldSessionID, sess.ID.String())

	if err := sess.Search(r.Context(), query); err != nil {
		switch {
		case errors.Is(err, store.ErrSuperseded), errors.Is(err, context.Canceled):
			logger.DebugContext(r.Context(), "Search superseded", applog.FieldQuery, query)
			w.WriteHeader(http.StatusNoContent)
		default:
			logger.ErrorContext(r.Context(), "Search failed", applog.FieldQuery, query, applog.FieldError, err)
			s.renderError(w, r, http.StatusBadGateway, "Não foi possível carregar as transações.")
		}
		return
	}

	snap := sess.Store.Snapshot()
	logger.InfoContext(r.Context(), "Search completed",
		applog.NewFields().WithSearch(snap.Query, snap.Version, len(snap.Transactions)).ToSlice()...)

	s.render(w, r,
		NewHTMXResponse().TriggerTransactionsUpdated(snap.Version, snap.Query),
		"table", newTableView(snap))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	snap, sum := sess.Summary.Current()
	s.render(w, r, NewHTMXResponse(), "summary", newSummaryView(sum, snap.Version))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	s.render(w, r, NewHTMXResponse(), "table", newTableView(sess.Store.Snapshot()))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Formato de requisição inválido").Write(w)
		return
	}

	form := newFormView(r.Form)
	in, err := ParseNewTransaction(r.Form)
	if err != nil {
		form.Errors = userMessages(err)
		s.render(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "form", form)
		return
	}

	sess := s.sessionFor(w, r)
	tx, err := s.create(r.Context(), sess, in)
	switch {
	case err == nil:
	case isValidationError(err):
		form.Errors = userMessages(err)
		s.render(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "form", form)
		return
	case errors.Is(err, errRefreshAfterCreate):
		// Saved; the list catches up on the next fetch.
	default:
		form.Errors = []string{"Não foi possível salvar a transação."}
		s.render(w, r, NewHTMXResponse().Status(http.StatusBadGateway), "form", form)
		return
	}

	snap := sess.Store.Snapshot()
	b := NewHTMXResponse().
		TriggerTransactionCreated(tx.ID.String()).
		TriggerTransactionsUpdated(snap.Version, snap.Query).
		TriggerFormReset().
		TriggerSuccessNotification("Transação cadastrada")
	s.render(w, r, b, "form", formView{Type: "income", Success: "Transação cadastrada: " + tx.Description})
}

// render executes a template into a buffer first so a failing template
// never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			applog.FieldError, err)
		InternalServerError("Erro ao renderizar a página").Write(w)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}

// renderError shows message in the page's flash area, leaving the
// request's own target untouched.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	b := NewHTMXResponse().Status(status).Retarget("#flash", "innerHTML")
	if s.templates == nil {
		ErrorResponse(status, message).Retarget("#flash", "innerHTML").Write(w)
		return
	}
	s.render(w, r, b, "error", message)
}

var errRefreshAfterCreate = errors.New("refresh after create")

// create wraps Session.Create, separating "saved but not reloaded" from
// "not saved".
func (s *Server) create(ctx context.Context, sess *session.Session, in core.NewTransaction) (core.Transaction, error) {
	tx, err := sess.Create(ctx, in)
	logger := applog.FromContext(ctx).With(applog.FieldSessionID, sess.ID.String())
	if err != nil {
		if tx.ID == uuid.Nil {
			if !isValidationError(err) {
				logger.ErrorContext(ctx, "Transaction create failed", applog.FieldError, err)
			}
			return tx, err
		}
		logger.WarnContext(ctx, "Transaction created but refresh failed",
			applog.FieldTxID, tx.ID.String(),
			applog.FieldError, err)
		s.created.Add(1)
		return tx, fmt.Errorf("%w: %w", errRefreshAfterCreate, err)
	}

	s.created.Add(1)
	logger.InfoContext(ctx, "Transaction created",
		applog.FieldTxID, tx.ID.String(),
		applog.FieldTxType, tx.Type.String(),
		applog.FieldTxCategory, tx.Category,
		applog.FieldTxPrice, tx.Price.StringFixed(2))
	return tx, nil
}
