package features

import (
	"testing"
	"time"

	"github.com/apsieve/invoice-sieve-service/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func inv(total string, date time.Time, mut func(*store.Invoice)) *store.Invoice {
	i := &store.Invoice{
		TenantID:          "t1",
		InvoiceID:         "inv-a",
		VendorID:          "v1",
		InvoiceNumberNorm: "123",
		InvoiceDate:       date,
		Currency:          "EUR",
		Total:             decimal.RequireFromString(total),
		TaxTotal:          decimal.Zero,
	}
	if mut != nil {
		mut(i)
	}
	return i
}

func line(desc string, qty, up, amount float64) LineInput {
	return LineInput{DescNorm: desc, Qty: qty, UnitPrice: up, Amount: amount}
}

func TestHeaderFeaturesIdenticalPair(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	a := inv("100.00", date, nil)
	b := inv("100.00", date, func(i *store.Invoice) { i.InvoiceID = "inv-b" })

	v := Extract(a, b, nil, nil)
	assert.Zero(t, v.AbsTotalDiffPct)
	assert.Zero(t, v.DaysDiff)
	assert.Equal(t, 1.0, v.SameCurrency)
	assert.Equal(t, 1.0, v.SameTaxTotal)
	assert.Zero(t, v.InvnumEdit)
	assert.Zero(t, v.SamePO)
	assert.Zero(t, v.BankChangeFlag)
	assert.Zero(t, v.PayeeNameChangeFlag)
}

func TestHeaderFeaturesDiffs(t *testing.T) {
	a := inv("100.00", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), func(i *store.Invoice) {
		i.PONumber = strPtr("PO-1")
		i.RemitAccountHash = strPtr("aaaa")
		i.RemitName = strPtr("ACME GmbH")
	})
	b := inv("150.00", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), func(i *store.Invoice) {
		i.InvoiceID = "inv-b"
		i.PONumber = strPtr("PO-1")
		i.RemitAccountHash = strPtr("bbbb")
		i.Currency = "USD"
	})

	v := Extract(a, b, nil, nil)
	assert.InDelta(t, 0.5, v.AbsTotalDiffPct, 1e-9)
	assert.Equal(t, 5.0, v.DaysDiff)
	assert.Equal(t, 1.0, v.SamePO)
	assert.Zero(t, v.SameCurrency)
	assert.Equal(t, 1.0, v.BankChangeFlag)
	assert.Equal(t, 1.0, v.PayeeNameChangeFlag)
}

func TestLineFeaturesIdenticalLists(t *testing.T) {
	a := []LineInput{line("paper a4", 10, 10, 100)}
	b := []LineInput{line("paper a4", 10, 10, 100)}

	var v Vector
	lineAssignFeatures(&v, a, b)
	assert.GreaterOrEqual(t, v.LineCoveragePct, 0.99)
	assert.LessOrEqual(t, v.UnmatchedAmountFrac, 0.01)
	assert.Zero(t, v.CountNewItems)
	assert.Zero(t, v.MedianUnitPriceDiff)
}

func TestLineFeaturesCoverageBounds(t *testing.T) {
	cases := [][2][]LineInput{
		{{line("paper a4", 10, 10, 100)}, {line("toner", 1, 50, 50)}},
		{{line("a", 1, 1, 1), line("b", 2, 2, 4)}, {line("a", 1, 1, 1)}},
		{{line("x", 1, 3, 3)}, {line("x", 1, 3, 3), line("y", 1, 4, 4)}},
	}
	for _, tc := range cases {
		var v Vector
		lineAssignFeatures(&v, tc[0], tc[1])
		assert.GreaterOrEqual(t, v.LineCoveragePct, 0.0)
		assert.LessOrEqual(t, v.LineCoveragePct, 1.0)
		assert.LessOrEqual(t, v.LineCoveragePct+v.UnmatchedAmountFrac, 1.0+1e-9)
	}
}

func TestLineFeaturesExtraBaseLine(t *testing.T) {
	a := []LineInput{line("paper a4", 10, 10, 100), line("stapler", 1, 20, 20)}
	b := []LineInput{line("paper a4", 10, 10, 100)}

	var v Vector
	lineAssignFeatures(&v, a, b)
	assert.Equal(t, 1.0, v.CountNewItems)
	assert.InDelta(t, 20.0/120.0, v.UnmatchedAmountFrac, 1e-9)
}

func TestLineFeaturesEmptySides(t *testing.T) {
	a := []LineInput{line("paper a4", 10, 10, 100)}

	var v Vector
	lineAssignFeatures(&v, a, nil)
	assert.Zero(t, v.LineCoveragePct)
	assert.Equal(t, 1.0, v.UnmatchedAmountFrac)
	assert.Equal(t, 1.0, v.CountNewItems)
	assert.Equal(t, 100.0, v.MedianUnitPriceDiff)

	var v2 Vector
	lineAssignFeatures(&v2, nil, a)
	assert.Zero(t, v2.LineCoveragePct)
	assert.Equal(t, 1.0, v2.UnmatchedAmountFrac)
	assert.Zero(t, v2.CountNewItems)
	assert.Zero(t, v2.MedianUnitPriceDiff)
}

func TestVectorOrderAndMap(t *testing.T) {
	v := Vector{AbsTotalDiffPct: 0.1, TextCosine: 0.9}
	vals := v.Values()
	require.Len(t, Order, 13)
	assert.Equal(t, 0.1, vals[0])
	assert.Equal(t, 0.9, vals[12])

	m := v.Map()
	assert.Equal(t, 0.1, m["abs_total_diff_pct"])
	assert.Equal(t, 0.9, m["text_cosine"])
	assert.Len(t, m, 13)
}

func TestNewLineInputsNormalizesDesc(t *testing.T) {
	lines := []store.Line{{
		LineNo:    1,
		Desc:      "Printer Ink, Black!!!",
		Qty:       decimal.NewFromInt(2),
		UnitPrice: decimal.RequireFromString("9.99"),
		Amount:    decimal.RequireFromString("19.98"),
	}}
	inputs := NewLineInputs(lines)
	require.Len(t, inputs, 1)
	assert.Equal(t, "printer ink black", inputs[0].DescNorm)
	assert.InDelta(t, 9.99, inputs[0].UnitPrice, 1e-9)
}
