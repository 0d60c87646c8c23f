package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dtmoney/internal/core"
	"dtmoney/internal/sources"
	"dtmoney/internal/store"
)

var brazil = time.FixedZone("BRT", -3*60*60)

var templateFuncs = template.FuncMap{
	"brl": core.FormatBRL,
}

type transactionRow struct {
	ID          string
	Description string
	Category    string
	Price       string
	Date        string
	Income      bool
}

type tableView struct {
	Query   string
	Version uint64
	Rows    []transactionRow
}

type summaryView struct {
	Income   decimal.Decimal
	Outcome  decimal.Decimal
	Total    decimal.Decimal
	Negative bool
	Version  uint64
}

type formView struct {
	Description string
	Type        string
	Category    string
	Price       string
	Errors      []string
	Success     string
}

type pageView struct {
	Table   tableView
	Summary summaryView
	Form    formView
}

func newTableView(snap *store.Snapshot) tableView {
	view := tableView{Query: snap.Query, Version: snap.Version}
	view.Rows = make([]transactionRow, 0, len(snap.Transactions))
	for _, t := range snap.Transactions {
		price := core.FormatBRL(t.Price)
		if t.Type == core.Outcome {
			price = "- " + price
		}
		view.Rows = append(view.Rows, transactionRow{
			ID:          t.ID.String(),
			Description: t.Description,
			Category:    t.Category,
			Price:       price,
			Date:        formatDate(t.CreatedAt),
			Income:      t.Type == core.Income,
		})
	}
	return view
}

func newSummaryView(sum core.Summary, version uint64) summaryView {
	return summaryView{
		Income:   sum.Income,
		Outcome:  sum.Outcome,
		Total:    sum.Total,
		Negative: sum.Total.IsNegative(),
		Version:  version,
	}
}

// newFormView echoes the submitted values back so a rejected form keeps them.
func newFormView(values ValueGetter) formView {
	return formView{
		Description: sanitizeInput(values.Get("description")),
		Type:        sanitizeInput(values.Get("type")),
		Category:    sanitizeInput(values.Get("category")),
		Price:       sanitizeInput(values.Get("price")),
	}
}

// formatDate renders a timestamp as dd/mm/yyyy in Brasília time.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(brazil).Format("02/01/2006")
}

var validationMessages = []struct {
	err error
	msg string
}{
	{core.ErrEmptyDescription, "Informe a descrição."},
	{core.ErrDescriptionTooLong, "A descrição deve ter no máximo 200 caracteres."},
	{core.ErrInvalidType, "Escolha entrada ou saída."},
	{core.ErrEmptyCategory, "Informe a categoria."},
	{core.ErrInvalidPrice, "Informe um preço válido."},
}

func isValidationError(err error) bool {
	for _, v := range validationMessages {
		if errors.Is(err, v.err) {
			return true
		}
	}
	return false
}

// userMessages maps validation errors to messages shown next to the form.
func userMessages(err error) []string {
	var out []string
	for _, v := range validationMessages {
		if errors.Is(err, v.err) {
			out = append(out, v.msg)
		}
	}
	if len(out) == 0 && err != nil {
		out = append(out, "Dados inválidos.")
	}
	return out
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

type apiTransactions struct {
	Query        string           `json:"query"`
	Version      uint64           `json:"version"`
	Transactions []sources.Record `json:"transactions"`
}

type apiSummary struct {
	Income  decimal.Decimal `json:"income"`
	Outcome decimal.Decimal `json:"outcome"`
	Total   decimal.Decimal `json:"total"`
	Version uint64          `json:"version"`
}

type apiError struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func newAPITransactions(snap *store.Snapshot) apiTransactions {
	out := apiTransactions{
		Query:        snap.Query,
		Version:      snap.Version,
		Transactions: make([]sources.Record, 0, len(snap.Transactions)),
	}
	for _, t := range snap.Transactions {
		out.Transactions = append(out.Transactions, sources.RecordFromCore(t))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string, details ...string) {
	writeJSON(w, status, apiError{Error: message, Details: details})
}
