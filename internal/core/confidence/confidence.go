// Package confidence assigns a 0-100 heuristic trust score to an extraction and its parse.
package confidence

import (
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/expense-reconciler/constants"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/ocr"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

const (
	BaseOCR      = 50.0
	BaseDocument = 95.0

	BonusAmount = 20.0
	BonusDate   = 15.0
	BonusHandle = 10.0
	BonusRef    = 5.0

	ShortTextPenalty = 20.0
	ShortTextRunes   = 20
)

// Score rates how trustworthy the parsed fields are. Empty extractions score 0.
// Adding a field never lowers the score.
func Score(res ocr.ExtractionResult, parsed entity.ParsedFields) float64 {
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return 0
	}
	return ScoreFields(res.Strategy, text, parsed)
}

// ScoreFields scores parsed against the cleaned text read with strategy.
func ScoreFields(strategy constants.Strategy, text string, parsed entity.ParsedFields) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	score := BaseOCR
	if strategy.IsDocument() {
		score = BaseDocument
	}
	if parsed.Amount != nil {
		score += BonusAmount
	}
	if parsed.Date != nil {
		score += BonusDate
	}
	if parsed.CounterpartyHandle != "" {
		score += BonusHandle
	}
	if parsed.TransactionRef != "" {
		score += BonusRef
	}
	if utf8.RuneCountInString(text) < ShortTextRunes {
		score -= ShortTextPenalty
	}
	return clamp(score)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
