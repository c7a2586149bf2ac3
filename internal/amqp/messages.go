package amqp

import (
	"encoding/json"
	"time"
)

// Message types, carried in the AMQP "type" property.
const (
	TypeMemoryUpdated    = "memory.updated"
	TypeExpensesIngested = "expenses.ingested"
)

// MemoryUpdatedMessage announces a new or changed category memory entry.
// Description is already normalized.
type MemoryUpdatedMessage struct {
	UserID      int64     `json:"user_id"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Timestamp   time.Time `json:"timestamp"`
}

// ExpensesIngestedMessage lists the expenses inserted by one batch. The
// worker fetches the rows from storage. UserID is nil for ownerless uploads.
type ExpensesIngestedMessage struct {
	UserID     *int64    `json:"user_id"`
	ExpenseIDs []int64   `json:"expense_ids"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewMemoryUpdatedMessage(userID int64, description, category string) *MemoryUpdatedMessage {
	return &MemoryUpdatedMessage{
		UserID:      userID,
		Description: description,
		Category:    category,
		Timestamp:   time.Now(),
	}
}

func NewExpensesIngestedMessage(userID *int64, ids []int64) *ExpensesIngestedMessage {
	return &ExpensesIngestedMessage{
		UserID:     userID,
		ExpenseIDs: ids,
		Timestamp:  time.Now(),
	}
}

func (m *MemoryUpdatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *ExpensesIngestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
