package amqp

import (
	"encoding/json"
	"time"

	"tally/internal/core"
)

const (
	OpCreated = "created"
	OpDeleted = "deleted"
)

// ExportMessage asks the worker to append one transaction event to the
// backup sheet. For created events only the ID travels; the worker reads
// the row from the database. Deleted events carry the full row because it
// no longer exists by the time the worker runs.
type ExportMessage struct {
	Op          string    `json:"op"`
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Type        string    `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewCreatedMessage(id int64) *ExportMessage {
	return &ExportMessage{Op: OpCreated, ID: id, Timestamp: time.Now()}
}

func NewDeletedMessage(t core.Transaction) *ExportMessage {
	return &ExportMessage{
		Op:          OpDeleted,
		ID:          t.ID,
		UserID:      t.UserID,
		AmountCents: t.Amount.Cents,
		Type:        string(t.Type),
		Description: t.Description,
		Date:        t.Date,
		Timestamp:   time.Now(),
	}
}

func (m *ExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExportMessageFromJSON(data []byte) (*ExportMessage, error) {
	var msg ExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
