package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RoutingKeyTransactionCreated is the routing key every instance binds its
// queue to, so each instance receives its own copy of the event.
const RoutingKeyTransactionCreated = "transaction.created"

// TransactionCreatedMessage announces that a transaction was written.
// It carries only the ID; receivers re-read their data from the source.
type TransactionCreatedMessage struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Origin    string    `json:"origin"`
}

func NewTransactionCreatedMessage(id uuid.UUID, createdAt time.Time, origin string) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		ID:        id,
		CreatedAt: createdAt.UTC(),
		Origin:    origin,
	}
}

func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
