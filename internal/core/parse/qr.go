package parse

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

var (
	ErrMalformedQR = errors.New("malformed qr payload")
	ErrQRNoAmount  = errors.New("qr payload has no amount")
)

var reQRPayload = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://pay\?`)

// qrKeys maps payment URI query keys to fields.
var qrKeys = map[string]entity.Field{
	"pa": entity.FieldHandle,
	"pn": entity.FieldMerchantName,
	"am": entity.FieldAmount,
	"tn": entity.FieldNote,
	"tr": entity.FieldTxnRef,
}

// IsQRPayload reports whether s looks like a scheme://pay?... payment string.
func IsQRPayload(s string) bool {
	return reQRPayload.MatchString(strings.TrimSpace(s))
}

// ParseQR parses a scheme://pay?key=value&... payment string. Unknown keys are ignored.
func ParseQR(payload string) (entity.ParsedFields, error) {
	payload = strings.TrimSpace(payload)
	p := entity.ParsedFields{RawText: payload}

	u, err := url.Parse(payload)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformedQR, err)
	}
	if u.Scheme == "" || !strings.EqualFold(u.Host, "pay") || u.Opaque != "" {
		return p, fmt.Errorf("%w: expected scheme://pay?...", ErrMalformedQR)
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformedQR, err)
	}

	for key, field := range qrKeys {
		v := strings.TrimSpace(q.Get(key))
		if v == "" {
			continue
		}
		switch field {
		case entity.FieldAmount:
			d, err := decimal.NewFromString(v)
			if err != nil || d.IsNegative() {
				return p, fmt.Errorf("%w: bad amount %q", ErrMalformedQR, v)
			}
			p.Amount = &d
		case entity.FieldHandle:
			p.CounterpartyHandle = v
		case entity.FieldMerchantName:
			p.MerchantName = v
		case entity.FieldNote:
			p.Note = v
		case entity.FieldTxnRef:
			p.TransactionRef = v
		}
		p.SetSource(field, "qr:"+key)
	}

	if p.Amount == nil {
		return p, ErrQRNoAmount
	}
	return p, nil
}
