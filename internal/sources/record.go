package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dtmoney/internal/core"
)

// Record is the JSON shape of a transaction in the REST backend and in seed
// files: camelCase fields, and an id that may be a number or a string.
type Record struct {
	ID          RecordID        `json:"id,omitempty"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type RecordID string

func (id *RecordID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("record id: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

// recordNamespace derives UUIDs for records whose id is not one.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("dtmoney:record"))

// ToCore validates the record's type and maps it to a Transaction.
func (r Record) ToCore() (core.Transaction, error) {
	typ, err := core.ParseTransactionType(r.Type)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record %q: %w", r.ID, err)
	}
	id, err := uuid.Parse(string(r.ID))
	if err != nil {
		id = uuid.NewSHA1(recordNamespace, []byte(r.ID))
	}
	return core.Transaction{
		ID:          id,
		Description: r.Description,
		Type:        typ,
		Category:    r.Category,
		Price:       r.Price,
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}

func RecordFromCore(t core.Transaction) Record {
	return Record{
		ID:          RecordID(t.ID.String()),
		Description: t.Description,
		Type:        t.Type.String(),
		Category:    t.Category,
		Price:       t.Price,
		CreatedAt:   t.CreatedAt.UTC(),
	}
}
