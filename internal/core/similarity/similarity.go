// Package similarity scores how alike two parsed transactions are in [0,1].
package similarity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

// Component weights; they sum to 1.
const (
	WeightAmount   = 0.3
	WeightText     = 0.3
	WeightMerchant = 0.3
	WeightDate     = 0.1
)

// Similarity is the weighted blend of amount, free-text, merchant and date
// similarity. It is symmetric.
func Similarity(a, b entity.ParsedFields) float64 {
	s := WeightAmount*AmountSimilarity(a.Amount, b.Amount) +
		WeightText*Jaccard(a.RawText, b.RawText) +
		WeightMerchant*Jaccard(a.MerchantName, b.MerchantName) +
		WeightDate*DateProximity(a.Date, b.Date)
	return min(max(s, 0), 1)
}

// AmountSimilarity is 1 - |a-b|/max(a,b), floored at 0. Missing on either side is 0.
func AmountSimilarity(a, b *decimal.Decimal) float64 {
	if a == nil || b == nil {
		return 0
	}
	x, y := a.Abs(), b.Abs()
	if x.Equal(y) {
		return 1
	}
	hi := decimal.Max(x, y)
	ratio, _ := x.Sub(y).Abs().Div(hi).Float64()
	return max(1-ratio, 0)
}

// Jaccard compares lower-cased whitespace tokens. Two empty inputs score 0.
func Jaccard(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

// DateProximity decays with the calendar-day distance between two dates.
func DateProximity(a, b *time.Time) float64 {
	if a == nil || b == nil {
		return 0
	}
	days := int(entity.DateOnly(*a).Sub(entity.DateOnly(*b)).Hours() / 24)
	if days < 0 {
		days = -days
	}
	switch {
	case days == 0:
		return 1
	case days == 1:
		return 0.8
	case days <= 3:
		return 0.6
	case days <= 7:
		return 0.4
	case days <= 30:
		return 0.2
	}
	return 0
}
