package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense is a persisted, accepted candidate.
type Expense struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             uuid.UUID       `json:"user_id"`
	Amount             decimal.Decimal `json:"amount"`
	TxDate             *time.Time      `json:"tx_date,omitempty"`
	TxTime             *ClockTime      `json:"tx_time,omitempty"`
	MerchantName       string          `json:"merchant_name,omitempty"`
	CounterpartyHandle string          `json:"counterparty_handle,omitempty"`
	TransactionRef     string          `json:"transaction_ref,omitempty"`
	Description        string          `json:"description,omitempty"`
	Strategy           string          `json:"strategy"`
	Confidence         float64         `json:"confidence"`
	DuplicateOf        *uuid.UUID      `json:"duplicate_of,omitempty"`
	OriginName         string          `json:"origin_name,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// UsageStats are per-user processing counters.
type UsageStats struct {
	UserID    uuid.UUID `json:"user_id"`
	Processed int64     `json:"processed"`
	Accepted  int64     `json:"accepted"`
	Rejected  int64     `json:"rejected"`
}
