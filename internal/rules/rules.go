// Package rules evaluates the deterministic reason-code rules against the
// top duplicate candidate. Rules are total functions; missing optional
// fields simply make a rule not fire.
package rules

import (
	"github.com/shopspring/decimal"

	"github.com/apsieve/invoice-sieve-service/internal/features"
	"github.com/apsieve/invoice-sieve-service/internal/store"
)

// Reason codes emitted by the rule engine and the anomaly scorer.
const (
	ReasonExactInvnum      = "EXACT_INVNUM"
	ReasonSamePONearTotal  = "SAME_PO_NEAR_TOTAL"
	ReasonPDFNearDup       = "PDF_NEAR_DUP"
	ReasonBankChange       = "BANK_CHANGE"
	ReasonUnitPriceOutlier = "UNIT_PRICE_OUTLIER"
)

// Defaults for the PO near-total rule.
const (
	poTotalTolerance = 0.005
	poWindowDays     = 30
	shingleThreshold = 0.9
)

// SameInvoiceNumberNorm fires when both normalized invoice numbers are
// present and equal.
func SameInvoiceNumberNorm(a, b string) bool {
	return a != "" && b != "" && a == b
}

// SamePONearTotal fires when the PO numbers match, the totals agree
// within pctTol of the larger-or-one base total, and the invoices fall
// within the day window.
func SamePONearTotal(poA, poB *string, totalA, totalB decimal.Decimal, dateGapDays int, pctTol float64, windowDays int) bool {
	if poA == nil || poB == nil || *poA == "" || *poA != *poB {
		return false
	}
	a := totalA.InexactFloat64()
	b := totalB.InexactFloat64()
	base := a
	if base < 0 {
		base = -base
	}
	if base < 1 {
		base = 1
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff > pctTol*base {
		return false
	}
	return dateGapDays <= windowDays
}

// PDFNearDup fires on equal pdf hashes, or a provided shingle Jaccard at
// or above 0.9.
func PDFNearDup(hashA, hashB *string, shingleJaccard float64) bool {
	if hashA != nil && hashB != nil && *hashA != "" && *hashA == *hashB {
		return true
	}
	return shingleJaccard >= shingleThreshold
}

// Context carries everything the rules see for one (invoice, candidate)
// pair.
type Context struct {
	Invoice    *store.Invoice
	Candidate  *store.Invoice
	Features   features.Vector
	BankChange bool
	// ShingleJaccard is optional; zero means not computed.
	ShingleJaccard float64
}

// Apply evaluates the rules in order and returns the triggered reason
// codes. The caller de-duplicates while preserving first-seen order.
func Apply(ctx Context) []string {
	var reasons []string

	if ctx.Invoice != nil && ctx.Candidate != nil {
		if SameInvoiceNumberNorm(ctx.Invoice.InvoiceNumberNorm, ctx.Candidate.InvoiceNumberNorm) {
			reasons = append(reasons, ReasonExactInvnum)
		}
		if SamePONearTotal(
			ctx.Invoice.PONumber, ctx.Candidate.PONumber,
			ctx.Invoice.Total, ctx.Candidate.Total,
			int(ctx.Features.DaysDiff), poTotalTolerance, poWindowDays,
		) {
			reasons = append(reasons, ReasonSamePONearTotal)
		}
		if PDFNearDup(ctx.Invoice.PDFHash, ctx.Candidate.PDFHash, ctx.ShingleJaccard) {
			reasons = append(reasons, ReasonPDFNearDup)
		}
	}

	if ctx.BankChange {
		reasons = append(reasons, ReasonBankChange)
	}

	return reasons
}
