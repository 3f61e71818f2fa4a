// Package features turns a (base, candidate) invoice pair into the fixed
// 13-feature vector consumed by the duplicate model: header similarity,
// optimal line-assignment aggregates and a trigram text proxy.
package features

import (
	"math"
	"sort"
	"strings"

	"github.com/apsieve/invoice-sieve-service/internal/assign"
	"github.com/apsieve/invoice-sieve-service/internal/normalize"
	"github.com/apsieve/invoice-sieve-service/internal/store"
	"github.com/apsieve/invoice-sieve-service/internal/textsim"
)

// Cost weights for the line-assignment matrix.
const (
	descWeight = 0.7
	unitWeight = 0.2
	qtyWeight  = 0.1

	termCap = 5.0
)

// Vector is the fixed feature layout. Field order matches the duplicate
// model's expected input order; unknown features are impossible by
// construction and absent ones stay at their zero value.
type Vector struct {
	AbsTotalDiffPct     float64 `json:"abs_total_diff_pct"`
	DaysDiff            float64 `json:"days_diff"`
	SamePO              float64 `json:"same_po"`
	SameCurrency        float64 `json:"same_currency"`
	SameTaxTotal        float64 `json:"same_tax_total"`
	BankChangeFlag      float64 `json:"bank_change_flag"`
	PayeeNameChangeFlag float64 `json:"payee_name_change_flag"`
	InvnumEdit          float64 `json:"invnum_edit"`
	LineCoveragePct     float64 `json:"line_coverage_pct"`
	UnmatchedAmountFrac float64 `json:"unmatched_amount_frac"`
	CountNewItems       float64 `json:"count_new_items"`
	MedianUnitPriceDiff float64 `json:"median_unit_price_diff"`
	TextCosine          float64 `json:"text_cosine"`
}

// Order lists the feature names in model input order.
var Order = []string{
	"abs_total_diff_pct",
	"days_diff",
	"same_po",
	"same_currency",
	"same_tax_total",
	"bank_change_flag",
	"payee_name_change_flag",
	"invnum_edit",
	"line_coverage_pct",
	"unmatched_amount_frac",
	"count_new_items",
	"median_unit_price_diff",
	"text_cosine",
}

// Values returns the vector in model input order.
func (v Vector) Values() [13]float64 {
	return [13]float64{
		v.AbsTotalDiffPct, v.DaysDiff, v.SamePO, v.SameCurrency, v.SameTaxTotal,
		v.BankChangeFlag, v.PayeeNameChangeFlag, v.InvnumEdit, v.LineCoveragePct,
		v.UnmatchedAmountFrac, v.CountNewItems, v.MedianUnitPriceDiff, v.TextCosine,
	}
}

// Map returns the named feature values, keyed as serialized.
func (v Vector) Map() map[string]float64 {
	vals := v.Values()
	m := make(map[string]float64, len(Order))
	for i, name := range Order {
		m[name] = vals[i]
	}
	return m
}

// LineInput is one invoice line reduced to the fields feature math needs.
type LineInput struct {
	DescNorm  string
	Qty       float64
	UnitPrice float64
	Amount    float64
}

// NewLineInputs normalizes persisted lines for feature extraction.
func NewLineInputs(lines []store.Line) []LineInput {
	inputs := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, LineInput{
			DescNorm:  normalize.Description(line.Desc),
			Qty:       line.Qty.InexactFloat64(),
			UnitPrice: line.UnitPrice.InexactFloat64(),
			Amount:    line.Amount.InexactFloat64(),
		})
	}
	return inputs
}

// Extract computes the full feature vector for a base/candidate pair.
func Extract(base, cand *store.Invoice, baseLines, candLines []LineInput) Vector {
	v := headerFeatures(base, cand)
	lineAssignFeatures(&v, baseLines, candLines)
	v.TextCosine = textsim.TrigramCosine(joinedDesc(baseLines), joinedDesc(candLines))
	return v
}

func headerFeatures(a, b *store.Invoice) Vector {
	var v Vector

	totalA := a.Total.InexactFloat64()
	totalB := b.Total.InexactFloat64()
	v.AbsTotalDiffPct = math.Abs(totalA-totalB) / math.Max(math.Abs(totalA), 1)

	v.DaysDiff = math.Abs(math.Round(a.InvoiceDate.Sub(b.InvoiceDate).Hours() / 24))

	if strVal(a.PONumber) != "" && strVal(a.PONumber) == strVal(b.PONumber) {
		v.SamePO = 1
	}
	if a.Currency == b.Currency {
		v.SameCurrency = 1
	}
	if a.TaxTotal.Round(2).Equal(b.TaxTotal.Round(2)) {
		v.SameTaxTotal = 1
	}
	if a.RemitAccountHash != nil && b.RemitAccountHash != nil && *a.RemitAccountHash != *b.RemitAccountHash {
		v.BankChangeFlag = 1
	}
	if strVal(a.RemitName) != strVal(b.RemitName) {
		v.PayeeNameChangeFlag = 1
	}
	v.InvnumEdit = textsim.Distance(a.InvoiceNumberNorm, b.InvoiceNumberNorm)

	return v
}

func lineAssignFeatures(v *Vector, aLines, bLines []LineInput) {
	totalAmount := 0.0
	for _, line := range aLines {
		totalAmount += line.Amount
	}

	if len(aLines) == 0 || len(bLines) == 0 {
		v.LineCoveragePct = 0
		if totalAmount != 0 {
			v.UnmatchedAmountFrac = totalAmount / math.Max(totalAmount, 1)
		} else {
			v.UnmatchedAmountFrac = 1
		}
		v.CountNewItems = float64(len(aLines))
		v.MedianUnitPriceDiff = totalAmount
		return
	}

	cost := make([][]float64, len(aLines))
	for i, a := range aLines {
		cost[i] = make([]float64, len(bLines))
		for j, b := range bLines {
			descCost := textsim.Distance(a.DescNorm, b.DescNorm)
			upTerm := math.Min(math.Abs(a.UnitPrice-b.UnitPrice)/math.Max(math.Abs(a.UnitPrice), 1), termCap)
			qtyTerm := math.Min(math.Abs(a.Qty-b.Qty)/math.Max(math.Abs(a.Qty), 1), termCap)
			cost[i][j] = descWeight*descCost + unitWeight*upTerm + qtyWeight*qtyTerm
		}
	}

	pairs := assign.MinCost(cost)

	matchedAmount := 0.0
	diffs := make([]float64, 0, len(pairs))
	for _, p := range pairs {
		matchedAmount += aLines[p.Row].Amount
		diffs = append(diffs, math.Abs(aLines[p.Row].UnitPrice-bLines[p.Col].UnitPrice))
	}

	unmatched := math.Max(totalAmount-matchedAmount, 0)
	if totalAmount != 0 {
		v.UnmatchedAmountFrac = unmatched / math.Max(totalAmount, 1)
	} else {
		v.UnmatchedAmountFrac = 1
	}
	v.LineCoveragePct = 1 - v.UnmatchedAmountFrac
	v.CountNewItems = math.Max(0, float64(len(aLines)-len(pairs)))
	v.MedianUnitPriceDiff = median(diffs)
}

func joinedDesc(lines []LineInput) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, line.DescNorm)
	}
	return strings.Join(parts, " ")
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
