package amqp

import (
	"encoding/json"
	"time"

	"famfin/internal/core"
)

// TransactionRecordedMessage announces a committed transaction.
// It carries only identifiers; consumers load the record from the store.
type TransactionRecordedMessage struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(id, familyID string) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		ID:        id,
		FamilyID:  familyID,
		Version:   1,
		Timestamp: time.Now(),
	}
}

func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReminderDueMessage is published once per due occurrence of a reminder.
type ReminderDueMessage struct {
	ID        string     `json:"id"`
	FamilyID  string     `json:"family_id"`
	Title     string     `json:"title"`
	Amount    core.Money `json:"amount"`
	DueDate   time.Time  `json:"due_date"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewReminderDueMessage(r core.Reminder) *ReminderDueMessage {
	return &ReminderDueMessage{
		ID:        r.ID,
		FamilyID:  r.FamilyID,
		Title:     r.Title,
		Amount:    r.Amount,
		DueDate:   r.NextDueDate,
		Timestamp: time.Now(),
	}
}

func (m *ReminderDueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderDueMessageFromJSON(data []byte) (*ReminderDueMessage, error) {
	var msg ReminderDueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
