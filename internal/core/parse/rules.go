package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

// Rule extracts one field from the first acceptable regexp match.
type Rule struct {
	Name  string
	Field entity.Field
	re    *regexp.Regexp
	// apply stores the value from a submatch; false rejects the match.
	apply func(m []string, p *entity.ParsedFields) bool
}

// number is a decimal with optional thousands separators (Western or Indian grouping).
const number = `([0-9]{1,3}(?:,[0-9]{2,3})+(?:\.[0-9]+)?|[0-9]+(?:\.[0-9]+)?)`

var (
	reAmountMarker  = regexp.MustCompile(`(?i)(?:\b(?:rs\.?|inr)|₹|\bamount:)\s*` + number)
	reAmountSuffix  = regexp.MustCompile(`(?i)\b` + number + `\s*(?:inr\b|rs\b\.?|₹|/-)`)
	reAmountKeyword = regexp.MustCompile(`(?i)\b(?:total|amt|debited by|credited by|paid)\b\s*[:.]?\s*` + number)
	reDateDMY       = regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4}|\d{2})\b`)
	reDateYMD       = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})\b`)
	reClock         = regexp.MustCompile(`(?i)\b([01]?\d|2[0-3]):([0-5]\d)(?::([0-5]\d))?(?:\s*([ap])\.?m\b)?`)
	reHandle        = regexp.MustCompile(`\b([A-Za-z0-9][A-Za-z0-9._-]*)@([A-Za-z][A-Za-z0-9-]*(?:\.[A-Za-z0-9-]+)*)`)
	reTxnRef        = regexp.MustCompile(`(?i)\b(?:txn|transaction|ref|reference|id)\b\.?\s*(?:(?:no|number|id)\b\.?)?\s*[:#-]?\s*([A-Za-z0-9]{6,})`)
	reMerchant      = regexp.MustCompile(`(?i)(?:\bto:|\bpaid to\b|\breceived from\b|\bmerchant\b)\s*:?\s*([\w .&'-]{3,30})`)
	reMerchantTail  = regexp.MustCompile(`(?i)\s+(?:(?:on|via|ref|rs\.?|inr)\b|₹|[0-9]).*$`)
	reHasDigit      = regexp.MustCompile(`[0-9]`)
)

const minMerchantRunes = 3

func amountRule(name string, re *regexp.Regexp) Rule {
	return Rule{Name: name, Field: entity.FieldAmount, re: re, apply: func(m []string, p *entity.ParsedFields) bool {
		d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			return false
		}
		p.Amount = &d
		return true
	}}
}

var (
	ruleAmountMarker  = amountRule("amount.currency_marker", reAmountMarker)
	ruleAmountSuffix  = amountRule("amount.currency_suffix", reAmountSuffix)
	ruleAmountKeyword = amountRule("amount.keyword", reAmountKeyword)

	ruleDateDMY = Rule{Name: "date.dmy", Field: entity.FieldDate, re: reDateDMY, apply: func(m []string, p *entity.ParsedFields) bool {
		return setDate(p, m[3], m[2], m[1])
	}}
	ruleDateYMD = Rule{Name: "date.ymd", Field: entity.FieldDate, re: reDateYMD, apply: func(m []string, p *entity.ParsedFields) bool {
		return setDate(p, m[1], m[2], m[3])
	}}

	ruleClock = Rule{Name: "time.clock", Field: entity.FieldTime, re: reClock, apply: func(m []string, p *entity.ParsedFields) bool {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		s := 0
		if m[3] != "" {
			s, _ = strconv.Atoi(m[3])
		}
		switch strings.ToLower(m[4]) {
		case "a":
			if h > 12 || h == 0 {
				return false
			}
			if h == 12 {
				h = 0
			}
		case "p":
			if h > 12 || h == 0 {
				return false
			}
			if h < 12 {
				h += 12
			}
		}
		p.Time = &entity.ClockTime{Hour: h, Minute: mi, Second: s}
		return true
	}}

	ruleHandle = Rule{Name: "handle.upi", Field: entity.FieldHandle, re: reHandle, apply: func(m []string, p *entity.ParsedFields) bool {
		p.CounterpartyHandle = m[1] + "@" + m[2]
		return true
	}}

	ruleTxnRef = Rule{Name: "ref.labelled", Field: entity.FieldTxnRef, re: reTxnRef, apply: func(m []string, p *entity.ParsedFields) bool {
		if !reHasDigit.MatchString(m[1]) {
			return false
		}
		p.TransactionRef = m[1]
		return true
	}}

	ruleMerchant = Rule{Name: "merchant.labelled", Field: entity.FieldMerchantName, re: reMerchant, apply: func(m []string, p *entity.ParsedFields) bool {
		name := strings.TrimSpace(reMerchantTail.ReplaceAllString(m[1], ""))
		name = strings.Trim(name, " .-'&")
		if len([]rune(name)) < minMerchantRunes {
			return false
		}
		p.MerchantName = name
		return true
	}}
)

func setDate(p *entity.ParsedFields, ys, ms, ds string) bool {
	y, err1 := strconv.Atoi(ys)
	mo, err2 := strconv.Atoi(ms)
	d, err3 := strconv.Atoi(ds)
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	if len(ys) == 2 {
		y += 2000
	}
	if y < 1900 || y > 2100 {
		return false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (31/02 -> 03/03); reject those
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return false
	}
	p.Date = &t
	return true
}

// populated reports whether p already has a value for f.
func populated(p *entity.ParsedFields, f entity.Field) bool {
	switch f {
	case entity.FieldAmount:
		return p.Amount != nil
	case entity.FieldDate:
		return p.Date != nil
	case entity.FieldTime:
		return p.Time != nil
	case entity.FieldHandle:
		return p.CounterpartyHandle != ""
	case entity.FieldTxnRef:
		return p.TransactionRef != ""
	case entity.FieldMerchantName:
		return p.MerchantName != ""
	case entity.FieldNote:
		return p.Note != ""
	}
	return false
}
