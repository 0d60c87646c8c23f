package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"dtmoney/internal/core"
)

// rowNamespace derives stable IDs for rows typed by hand without one.
var rowNamespace = uuid.MustParse("6f1c8a52-3b7e-4d1a-9a0c-2e5b7d9f4c31")

var columnNames = []string{"id", "description", "type", "category", "price", "created_at"}

// parseRows converts a Values matrix into transactions. A first row whose
// cells name the columns is used as the header, so columns may be reordered.
// Rows that cannot be read are skipped and counted.
func parseRows(values [][]interface{}) ([]core.Transaction, int) {
	if len(values) == 0 {
		return nil, 0
	}

	cols := []int{0, 1, 2, 3, 4, 5}
	start := 0
	if header := toStrings(values[0]); isHeader(header) {
		for i, name := range columnNames {
			cols[i] = indexOf(header, name)
		}
		start = 1
	}

	var (
		out     []core.Transaction
		skipped int
	)
	for _, raw := range values[start:] {
		row := toStrings(raw)
		if isBlank(row) {
			continue
		}
		tx, err := parseRow(row, cols)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, tx)
	}
	return out, skipped
}

func parseRow(row []string, cols []int) (core.Transaction, error) {
	desc := safeGet(row, cols[1])
	if desc == "" {
		return core.Transaction{}, core.ErrEmptyDescription
	}
	typ, err := core.ParseTransactionType(safeGet(row, cols[2]))
	if err != nil {
		return core.Transaction{}, err
	}
	price, err := core.ParsePrice(safeGet(row, cols[4]))
	if err != nil {
		return core.Transaction{}, err
	}
	createdAt, err := parseTime(safeGet(row, cols[5]))
	if err != nil {
		return core.Transaction{}, err
	}

	id, err := uuid.Parse(safeGet(row, cols[0]))
	if err != nil {
		id = uuid.NewSHA1(rowNamespace, []byte(strings.Join(row, "\x1f")))
	}

	return core.Transaction{
		ID:          id,
		Description: desc,
		Type:        typ,
		Category:    safeGet(row, cols[3]),
		Price:       price,
		CreatedAt:   createdAt,
	}, nil
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02", "02/01/2006"}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func isHeader(row []string) bool {
	return indexOf(row, "description") >= 0 && indexOf(row, "price") >= 0
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
