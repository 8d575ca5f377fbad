package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionAddedMessage announces that the primary data set grew to Count
// transactions. It carries no transaction content; consumers reload the
// store.
type TransactionAddedMessage struct {
	ID        uuid.UUID `json:"id"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionAddedMessage(count int) *TransactionAddedMessage {
	return &TransactionAddedMessage{
		ID:        uuid.New(),
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

func (m *TransactionAddedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionAddedMessageFromJSON(data []byte) (*TransactionAddedMessage, error) {
	var msg TransactionAddedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
