package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoLineItems is returned when a submission carries an empty line_items array.
var ErrNoLineItems = errors.New("line_items required")

// ErrNegativeTotal is returned when a submission carries a negative total.
var ErrNegativeTotal = errors.New("total must be >= 0")

// Date is a day-precision date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid invoice_date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// LineItemIn is a single invoice line as submitted by the caller.
type LineItemIn struct {
	Desc       string          `json:"desc"`
	Qty        decimal.Decimal `json:"qty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Amount     decimal.Decimal `json:"amount"`
	SKU        *string         `json:"sku,omitempty"`
	GLCode     *string         `json:"gl_code,omitempty"`
	CostCenter *string         `json:"cost_center,omitempty"`
}

// InvoiceIn is the scoring request body.
type InvoiceIn struct {
	InvoiceID               string           `json:"invoice_id"`
	VendorID                string           `json:"vendor_id"`
	VendorName              string           `json:"vendor_name"`
	InvoiceNumber           string           `json:"invoice_number"`
	InvoiceDate             Date             `json:"invoice_date"`
	Currency                string           `json:"currency"`
	Total                   decimal.Decimal  `json:"total"`
	TaxTotal                *decimal.Decimal `json:"tax_total,omitempty"`
	PONumber                *string          `json:"po_number,omitempty"`
	RemitBankIBANOrAccount  *string          `json:"remit_bank_iban_or_account,omitempty"`
	RemitName               *string          `json:"remit_name,omitempty"`
	PDFHash                 *string          `json:"pdf_hash,omitempty"`
	Terms                   *string          `json:"terms,omitempty"`
	LineItems               []LineItemIn     `json:"line_items"`
}

// Validate enforces the request-level invariants. It reports the first
// violation; persistence never runs on an invalid submission.
func (in *InvoiceIn) Validate() error {
	if len(in.LineItems) == 0 {
		return ErrNoLineItems
	}
	if in.Total.IsNegative() {
		return ErrNegativeTotal
	}
	return nil
}

// TopMatch is one ranked candidate in the scoring response.
type TopMatch struct {
	InvoiceID  string             `json:"invoice_id"`
	Similarity float64            `json:"similarity"`
	Features   map[string]float64 `json:"features"`
}

// Explanation is a single named feature value from the top match.
type Explanation struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// ScoreResponse is the result of a scoring call.
type ScoreResponse struct {
	RiskScore    float64       `json:"risk_score"`
	Decision     string        `json:"decision"`
	ReasonCodes  []string      `json:"reason_codes"`
	TopMatches   []TopMatch    `json:"top_matches"`
	Explanations []Explanation `json:"explanations"`
}
