package store

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a persisted invoice header row.
type Invoice struct {
	TenantID               string          `json:"tenant_id"`
	InvoiceID              string          `json:"invoice_id"`
	VendorID               string          `json:"vendor_id"`
	VendorName             string          `json:"vendor_name"`
	InvoiceNumber          string          `json:"invoice_number"`
	InvoiceNumberNorm      string          `json:"invoice_number_norm"`
	InvoiceDate            time.Time       `json:"invoice_date"`
	Currency               string          `json:"currency"`
	Total                  decimal.Decimal `json:"total"`
	TaxTotal               decimal.Decimal `json:"tax_total"`
	PONumber               *string         `json:"po_number"`
	RemitBankAccountMasked *string         `json:"remit_bank_account_masked"`
	RemitAccountHash       *string         `json:"remit_account_hash"`
	RemitName              *string         `json:"remit_name"`
	PDFHash                *string         `json:"pdf_hash"`
	Terms                  *string         `json:"terms"`
	PayloadHash            string          `json:"payload_hash"`
	RawJSON                []byte          `json:"-"`
}

// Line is a persisted invoice line row. Lines are replaced wholesale on
// re-submission of the same invoice_id.
type Line struct {
	LineNo     int             `json:"line_no"`
	SKU        *string         `json:"sku"`
	Desc       string          `json:"desc"`
	Qty        decimal.Decimal `json:"qty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Amount     decimal.Decimal `json:"amount"`
	GLCode     *string         `json:"gl_code"`
	CostCenter *string         `json:"cost_center"`
}

// Baseline is the offline-maintained per-vendor amount distribution.
type Baseline struct {
	MeanTotal   decimal.Decimal
	StdTotal    decimal.Decimal
	SampleCount int
}

// RemitAccount is one observed (vendor, remit account hash) pairing.
// FirstSeen is immutable after insert; LastSeen moves on every upsert.
type RemitAccount struct {
	RemitName *string
	FirstSeen time.Time
	LastSeen  time.Time
}

// DecisionRecord is a decision row to append.
type DecisionRecord struct {
	DecisionID     string
	InvoiceID      string
	ModelID        string
	ModelVersion   string
	RulesetVersion string
	RiskScore      float64
	Decision       string
	ReasonCodes    []string
	TopMatches     []byte
	Explanations   []byte
}

// DecisionRow is the effective (latest) decision read back for an invoice.
type DecisionRow struct {
	RiskScore    float64         `json:"risk_score"`
	Decision     string          `json:"decision"`
	ReasonCodes  []string        `json:"reason_codes"`
	TopMatches   json.RawMessage `json:"top_matches"`
	Explanations json.RawMessage `json:"explanations"`
}
