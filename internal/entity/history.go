package entity

import (
	"time"

	"github.com/google/uuid"
)

// TimeWindow is an inclusive [From, To] range.
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// HistoryRecord is one prior transaction of a user.
type HistoryRecord struct {
	ExpenseID  uuid.UUID
	Fields     ParsedFields
	RecordedAt time.Time
}

// OccurredAt is the transaction date when known, else the time it was recorded.
func (r HistoryRecord) OccurredAt() time.Time {
	if r.Fields.Date != nil {
		return *r.Fields.Date
	}
	return r.RecordedAt
}

// HistoryWindow is a read-only snapshot of a user's prior transactions.
type HistoryWindow struct {
	Window  TimeWindow
	Records []HistoryRecord
}

// Len returns the number of records in the window.
func (h HistoryWindow) Len() int { return len(h.Records) }
