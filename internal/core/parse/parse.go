// Package parse pulls typed transaction fields out of noisy text with ordered,
// named pattern rules.
package parse

import (
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

// Strategy is a named, ordered rule table. Within a strategy the first
// acceptable match wins per field and fields are independent.
type Strategy struct {
	Name  string
	Rules []Rule
}

// Strategy names, reported as the candidate's parse strategy.
const (
	StrategyUPI           = "upi"
	StrategyGenericAmount = "generic_amount"
	StrategyQR            = "qr"
)

var (
	// UPI is the full field table for payment-app SMS, receipts and statements.
	UPI = Strategy{Name: StrategyUPI, Rules: []Rule{
		ruleAmountMarker,
		ruleDateDMY,
		ruleDateYMD,
		ruleClock,
		ruleHandle,
		ruleTxnRef,
		ruleMerchant,
	}}

	// GenericAmount only looks for a currency-amount token.
	GenericAmount = Strategy{Name: StrategyGenericAmount, Rules: []Rule{
		ruleAmountSuffix,
		ruleAmountKeyword,
	}}
)

// Strategies is the fallback order used by ParseWithFallback.
var Strategies = []Strategy{UPI, GenericAmount}

// Parse applies the strategy's rules to text. It never fails; unmatched fields stay empty.
func (s Strategy) Parse(text string) entity.ParsedFields {
	p := entity.ParsedFields{RawText: text}
	for _, r := range s.Rules {
		if populated(&p, r.Field) {
			continue
		}
		for _, m := range r.re.FindAllStringSubmatch(text, -1) {
			if r.apply(m, &p) {
				p.SetSource(r.Field, r.Name)
				break
			}
		}
	}
	return p
}

// Parse runs the UPI strategy.
func Parse(text string) entity.ParsedFields {
	return UPI.Parse(text)
}

// ParseWithFallback runs the strategies in order until one yields an amount.
// Later strategies only contribute the amount. The returned name is the
// strategy that produced the amount, or "" when none did.
func ParseWithFallback(text string) (entity.ParsedFields, string) {
	p := Strategies[0].Parse(text)
	if p.HasAmount() {
		return p, Strategies[0].Name
	}
	for _, s := range Strategies[1:] {
		alt := s.Parse(text)
		if !alt.HasAmount() {
			continue
		}
		p.Amount = alt.Amount
		p.SetSource(entity.FieldAmount, alt.Sources[entity.FieldAmount])
		return p, s.Name
	}
	return p, ""
}
