package http

import (
	"context"
	"errors"
	"net/http"

	applog "dtmoney/internal/log"
	"dtmoney/internal/sources"
	"dtmoney/internal/store"
)

// handleAPISearch fetches ?query= into the caller's session and returns
// the published snapshot.
func (s *Server) handleAPISearch(w http.ResponseWriter, r *http.Request) {
	query := ParseSearchQuery(r.URL.Query())
	sess := s.sessionFor(w, r)

	if err := sess.Search(r.Context(), query); err != nil {
		switch {
		case errors.Is(err, store.ErrSuperseded), errors.Is(err, context.Canceled):
			writeJSONError(w, http.StatusConflict, "search superseded by a newer request")
		default:
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "API search failed",
				applog.FieldSessionID, sess.ID.String(),
				applog.FieldQuery, query,
				applog.FieldError, err)
			writeJSONError(w, http.StatusBadGateway, "failed to load transactions")
		}
		return
	}

	writeJSON(w, http.StatusOK, newAPITransactions(sess.Store.Snapshot()))
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	snap, sum := sess.Summary.Current()
	writeJSON(w, http.StatusOK, apiSummary{
		Income:  sum.Income,
		Outcome: sum.Outcome,
		Total:   sum.Total,
		Version: snap.Version,
	})
}

func (s *Server) handleAPICreate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	in, err := ParseNewTransaction(p)
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rejected API transaction",
			"json", p.IsJSON(),
			applog.FieldError, err)
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid transaction", userMessages(err)...)
		return
	}

	sess := s.sessionFor(w, r)
	tx, err := s.create(r.Context(), sess, in)
	switch {
	case err == nil, errors.Is(err, errRefreshAfterCreate):
		writeJSON(w, http.StatusCreated, sources.RecordFromCore(tx))
	case isValidationError(err):
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid transaction", userMessages(err)...)
	default:
		writeJSONError(w, http.StatusBadGateway, "failed to save transaction")
	}
}
