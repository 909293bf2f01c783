package entity

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-reconciler/constants"
)

// TransactionRef points at an existing expense a candidate duplicates.
type TransactionRef struct {
	ExpenseID uuid.UUID `json:"expense_id"`
	Score     float64   `json:"score"`
}

// AnomalySet is the set of anomaly flags raised for a candidate.
type AnomalySet map[constants.AnomalyKind]struct{}

func (s AnomalySet) Add(k constants.AnomalyKind) { s[k] = struct{}{} }

func (s AnomalySet) Has(k constants.AnomalyKind) bool {
	_, ok := s[k]
	return ok
}

// Sorted returns the flags in a stable order.
func (s AnomalySet) Sorted() []constants.AnomalyKind {
	out := make([]constants.AnomalyKind, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (s AnomalySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *AnomalySet) UnmarshalJSON(b []byte) error {
	var kinds []constants.AnomalyKind
	if err := json.Unmarshal(b, &kinds); err != nil {
		return err
	}
	*s = make(AnomalySet, len(kinds))
	for _, k := range kinds {
		s.Add(k)
	}
	return nil
}

// Diagnostics carries non-fatal detail about how a candidate was produced.
type Diagnostics struct {
	OriginName        string        `json:"origin_name,omitempty"`
	Pages             int           `json:"pages,omitempty"`
	ExtractionElapsed time.Duration `json:"extraction_elapsed_ns"`
	HistorySize       int           `json:"history_size"`
	NearestMerchant   string        `json:"nearest_merchant,omitempty"`
	Warnings          []string      `json:"warnings,omitempty"`
}

// TransactionCandidate is the unit assembled per upload. It is persisted as an
// Expense if the caller accepts it and discarded otherwise.
type TransactionCandidate struct {
	ID            uuid.UUID          `json:"id"`
	UserID        uuid.UUID          `json:"user_id"`
	Parsed        ParsedFields       `json:"parsed"`
	Confidence    float64            `json:"confidence"`
	Strategy      constants.Strategy `json:"strategy"`
	ParseStrategy string             `json:"parse_strategy"`
	DuplicateOf   *TransactionRef    `json:"duplicate_of,omitempty"`
	Anomalies     AnomalySet         `json:"anomalies"`
	Diagnostics   Diagnostics        `json:"diagnostics"`
	CreatedAt     time.Time          `json:"created_at"`
}

// RejectedEntry is a per-entry failure inside a batch.
type RejectedEntry struct {
	EntryName string                  `json:"entry_name"`
	Reason    constants.FailureReason `json:"reason"`
	Message   string                  `json:"message,omitempty"`
}

// BatchReport aggregates the independent outcomes of an archive's entries.
type BatchReport struct {
	TotalEntries int                    `json:"total_entries"`
	Accepted     []TransactionCandidate `json:"accepted"`
	Rejected     []RejectedEntry        `json:"rejected"`
}
