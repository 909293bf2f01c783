package parse

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestParse_AmountRoundTrip(t *testing.T) {
	p := Parse("Paid Rs. 1,234.50 to merchant@upi")

	require.NotNil(t, p.Amount)
	assert.True(t, p.Amount.Equal(dec(t, "1234.50")), "got %s", p.Amount)
	assert.Equal(t, "merchant@upi", p.CounterpartyHandle)
	assert.Equal(t, "amount.currency_marker", p.Sources[entity.FieldAmount])
	assert.Equal(t, "handle.upi", p.Sources[entity.FieldHandle])
	assert.Equal(t, "Paid Rs. 1,234.50 to merchant@upi", p.RawText)
}

func TestParse_UPISMS(t *testing.T) {
	text := "Rs.2,500.00 debited from A/c XX1234 on 15/01/2024 14:05:33. Paid to Big Bazaar on UPI. UPI Ref No 412345678901. shop.bb@okaxis"
	p := Parse(text)

	require.NotNil(t, p.Amount)
	assert.True(t, p.Amount.Equal(dec(t, "2500")))
	require.NotNil(t, p.Date)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *p.Date)
	require.NotNil(t, p.Time)
	assert.Equal(t, entity.ClockTime{Hour: 14, Minute: 5, Second: 33}, *p.Time)
	assert.Equal(t, "412345678901", p.TransactionRef)
	assert.Equal(t, "Big Bazaar", p.MerchantName)
	assert.Equal(t, "shop.bb@okaxis", p.CounterpartyHandle)

	for _, f := range []entity.Field{entity.FieldAmount, entity.FieldDate, entity.FieldTime, entity.FieldTxnRef, entity.FieldMerchantName, entity.FieldHandle} {
		assert.NotEmpty(t, p.Sources[f], "field %s has no source rule", f)
	}
}

func TestParse_Amount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"rupee sign", "Total ₹500", "500"},
		{"inr", "INR 99.5 spent", "99.5"},
		{"indian grouping", "Rs 1,23,456.75 credited", "123456.75"},
		{"amount label", "Amount: 42", "42"},
		{"no space", "rs.75", "75"},
		{"label without number falls through", "Amount: Rs 300", "300"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.text)
			require.NotNil(t, p.Amount)
			assert.True(t, p.Amount.Equal(dec(t, tt.want)), "got %s", p.Amount)
		})
	}

	assert.Nil(t, Parse("hours spent: 500").Amount, "rs inside a word is not a marker")
	assert.Nil(t, Parse("nothing here").Amount)
}

func TestParse_Date(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *time.Time
		rule string
	}{
		{"dmy slash", "on 05/03/2024", ptrDate(2024, 3, 5), "date.dmy"},
		{"dmy two digit year", "on 05-03-24", ptrDate(2024, 3, 5), "date.dmy"},
		{"ymd", "dated 2023-12-31", ptrDate(2023, 12, 31), "date.ymd"},
		{"invalid calendar date skipped", "31/02/2024 then 01/03/2024", ptrDate(2024, 3, 1), "date.dmy"},
		{"month thirteen rejected", "on 10/13/2024", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.text)
			if tt.want == nil {
				assert.Nil(t, p.Date)
				return
			}
			require.NotNil(t, p.Date)
			assert.Equal(t, *tt.want, *p.Date)
			assert.Equal(t, tt.rule, p.Sources[entity.FieldDate])
		})
	}
}

func ptrDate(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestParse_Time(t *testing.T) {
	tests := []struct {
		text string
		want entity.ClockTime
	}{
		{"at 9:15", entity.ClockTime{Hour: 9, Minute: 15}},
		{"at 09:15 PM", entity.ClockTime{Hour: 21, Minute: 15}},
		{"at 12:00 am", entity.ClockTime{Hour: 0}},
		{"at 12:30 p.m.", entity.ClockTime{Hour: 12, Minute: 30}},
		{"at 23:59:59", entity.ClockTime{Hour: 23, Minute: 59, Second: 59}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p := Parse(tt.text)
			require.NotNil(t, p.Time)
			assert.Equal(t, tt.want, *p.Time)
		})
	}
}

func TestParse_TransactionRef(t *testing.T) {
	assert.Equal(t, "T24011512345", Parse("Transaction ID: T24011512345").TransactionRef)
	assert.Equal(t, "987654", Parse("txn #987654").TransactionRef)
	assert.Empty(t, Parse("Ref: ABCDEFGH").TransactionRef, "token needs a digit")
	assert.Empty(t, Parse("ref 12345").TransactionRef, "token too short")
}

func TestParse_Merchant(t *testing.T) {
	assert.Equal(t, "Cafe Coffee Day", Parse("Received from Cafe Coffee Day via UPI").MerchantName)
	assert.Equal(t, "Star Stores", Parse("To: Star Stores\nRs 20").MerchantName)
	assert.Empty(t, Parse("paid to ab").MerchantName)
	assert.Equal(t, "John Doe", Parse("Received from John Doe Rs 1,500 Txn ID: ABC123XYZ").MerchantName)
	assert.Equal(t, "Metro Mart", Parse("paid to Metro Mart ₹ 99").MerchantName)
	assert.Equal(t, "Star Stores", Parse("Merchant: Star Stores 42 items").MerchantName)
}

func TestParse_Idempotent(t *testing.T) {
	text := "Rs 310 paid to Metro Mart on 02/02/2024 10:10 Ref 4455667788 metro@hdfc"
	assert.Equal(t, Parse(text), Parse(text))
	a, sa := ParseWithFallback(text)
	b, sb := ParseWithFallback(text)
	assert.Equal(t, a, b)
	assert.Equal(t, sa, sb)
}

func TestParseWithFallback(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		amount   string
		strategy string
		rule     string
	}{
		{"upi wins", "Paid Rs 10 to x@upi", "10", StrategyUPI, "amount.currency_marker"},
		{"suffix", "You spent 450 INR at store on 01/01/2024", "450", StrategyGenericAmount, "amount.currency_suffix"},
		{"slash dash", "Bill 1,200/- cleared", "1200", StrategyGenericAmount, "amount.currency_suffix"},
		{"keyword", "TOTAL 88.20", "88.20", StrategyGenericAmount, "amount.keyword"},
		{"debited by", "A/c debited by 75.00", "75", StrategyGenericAmount, "amount.keyword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, s := ParseWithFallback(tt.text)
			require.NotNil(t, p.Amount)
			assert.True(t, p.Amount.Equal(dec(t, tt.amount)), "got %s", p.Amount)
			assert.Equal(t, tt.strategy, s)
			assert.Equal(t, tt.rule, p.Sources[entity.FieldAmount])
		})
	}

	p, s := ParseWithFallback("hello world on 01/01/2024")
	assert.Nil(t, p.Amount)
	assert.Empty(t, s)
	assert.NotNil(t, p.Date, "first strategy fields are kept")
}

func TestGenericAmount_OnlyAmount(t *testing.T) {
	p := GenericAmount.Parse("Total 99 on 01/01/2024 to x@upi")
	require.NotNil(t, p.Amount)
	assert.Nil(t, p.Date)
	assert.Empty(t, p.CounterpartyHandle)
}

func TestParseQR(t *testing.T) {
	p, err := ParseQR("upi://pay?pa=shop@okicici&pn=Corner%20Shop&am=149.00&tn=Snacks&tr=ORD12345&cu=INR")
	require.NoError(t, err)

	require.NotNil(t, p.Amount)
	assert.True(t, p.Amount.Equal(dec(t, "149")))
	assert.Equal(t, "shop@okicici", p.CounterpartyHandle)
	assert.Equal(t, "Corner Shop", p.MerchantName)
	assert.Equal(t, "Snacks", p.Note)
	assert.Equal(t, "ORD12345", p.TransactionRef)
	assert.Equal(t, "qr:am", p.Sources[entity.FieldAmount])
	assert.Len(t, p.Sources, 5, "unknown keys are ignored")
}

func TestParseQR_Failures(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		err     error
	}{
		{"no amount", "upi://pay?pa=a@b&pn=X", ErrQRNoAmount},
		{"bad amount", "upi://pay?pa=a@b&am=ten", ErrMalformedQR},
		{"negative amount", "upi://pay?am=-5", ErrMalformedQR},
		{"wrong host", "upi://collect?am=5", ErrMalformedQR},
		{"not a uri", "just text", ErrMalformedQR},
		{"bad escape", "upi://pay?am=5&pn=%zz", ErrMalformedQR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQR(tt.payload)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestIsQRPayload(t *testing.T) {
	assert.True(t, IsQRPayload("  upi://pay?pa=a@b&am=1 "))
	assert.True(t, IsQRPayload("PhonePe://pay?am=1"))
	assert.False(t, IsQRPayload("Paid Rs 10 via upi://pay"))
	assert.False(t, IsQRPayload("upi://collect?am=1"))
}
