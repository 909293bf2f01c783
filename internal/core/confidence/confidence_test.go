package confidence

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/expense-reconciler/constants"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/ocr"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

const longText = "Paid Rs 500 to merchant@upi on 01/02/2024"

func TestScore(t *testing.T) {
	amt := decimal.NewFromInt(500)
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		res    ocr.ExtractionResult
		parsed entity.ParsedFields
		want   float64
	}{
		{"empty text", ocr.ExtractionResult{Strategy: constants.StrategyOCR}, entity.ParsedFields{Amount: &amt}, 0},
		{"ocr base", ocr.ExtractionResult{Text: longText, Strategy: constants.StrategyOCR}, entity.ParsedFields{}, 50},
		{"ocr amount+date", ocr.ExtractionResult{Text: longText, Strategy: constants.StrategyOCRFallback}, entity.ParsedFields{Amount: &amt, Date: &day}, 85},
		{"ocr all fields", ocr.ExtractionResult{Text: longText, Strategy: constants.StrategyOCR},
			entity.ParsedFields{Amount: &amt, Date: &day, CounterpartyHandle: "m@upi", TransactionRef: "123456"}, 100},
		{"document clamps", ocr.ExtractionResult{Text: longText, Strategy: constants.StrategyEmbeddedText}, entity.ParsedFields{Amount: &amt}, 100},
		{"short text penalty", ocr.ExtractionResult{Text: "Rs 500", Strategy: constants.StrategyOCR}, entity.ParsedFields{Amount: &amt}, 50},
		{"qr is a document", ocr.ExtractionResult{Text: "upi://pay?am=5", Strategy: constants.StrategyQR}, entity.ParsedFields{}, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.res, tt.parsed))
		})
	}
}

func TestScore_Bounds(t *testing.T) {
	amt := decimal.NewFromInt(1)
	for _, s := range []constants.Strategy{constants.StrategyOCR, constants.StrategyPassthrough, constants.StrategyEmbeddedText} {
		for _, text := range []string{"x", "ab", longText} {
			got := Score(ocr.ExtractionResult{Text: text, Strategy: s}, entity.ParsedFields{Amount: &amt, CounterpartyHandle: "a@b"})
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		}
	}
}

func TestScore_DateNeverLowers(t *testing.T) {
	amt := decimal.NewFromInt(9)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []constants.Strategy{constants.StrategyOCR, constants.StrategyEmbeddedText, constants.StrategyPassthrough} {
		for _, text := range []string{"Rs 9", longText} {
			for _, base := range []entity.ParsedFields{{}, {Amount: &amt}, {Amount: &amt, CounterpartyHandle: "a@b", TransactionRef: "123456"}} {
				res := ocr.ExtractionResult{Text: text, Strategy: s}
				withDate := base
				withDate.Date = &day
				assert.GreaterOrEqual(t, Score(res, withDate), Score(res, base))
			}
		}
	}
}
