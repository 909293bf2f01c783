package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Field names a ParsedFields slot.
type Field string

const (
	FieldAmount       Field = "amount"
	FieldDate         Field = "date"
	FieldTime         Field = "time"
	FieldHandle       Field = "counterparty_handle"
	FieldTxnRef       Field = "transaction_ref"
	FieldMerchantName Field = "merchant_name"
	FieldNote         Field = "note"
)

// ClockTime is a wall-clock time of day without a date or zone.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// ParseClockTime parses the "15:04:05" form produced by String.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse(time.TimeOnly, s)
	if err != nil {
		return ClockTime{}, err
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

// ParsedFields are the typed slots pulled out of extracted text.
// Every populated slot has an entry in Sources naming the rule that produced it.
type ParsedFields struct {
	Amount             *decimal.Decimal `json:"amount,omitempty"`
	Date               *time.Time       `json:"date,omitempty"` // UTC midnight
	Time               *ClockTime       `json:"time,omitempty"`
	CounterpartyHandle string           `json:"counterparty_handle,omitempty"`
	TransactionRef     string           `json:"transaction_ref,omitempty"`
	MerchantName       string           `json:"merchant_name,omitempty"`
	Note               string           `json:"note,omitempty"`
	RawText            string           `json:"raw_text"`
	Sources            map[Field]string `json:"sources,omitempty"`
}

// HasAmount reports whether an amount was recognized.
func (p ParsedFields) HasAmount() bool { return p.Amount != nil }

// SetSource records the rule that populated field.
func (p *ParsedFields) SetSource(field Field, rule string) {
	if p.Sources == nil {
		p.Sources = make(map[Field]string)
	}
	p.Sources[field] = rule
}

// DateOnly truncates t to UTC midnight of its calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
