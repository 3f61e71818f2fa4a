// Package normalize holds the pure canonicalization functions applied to
// every incoming invoice before retrieval and feature extraction.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/apsieve/invoice-sieve-service/internal/models"
)

var (
	invPrefix  = regexp.MustCompile(`^(INVOICE|INV|BILL)`)
	spacePunct = regexp.MustCompile(`[\s\-_/]`)
	nonWord    = regexp.MustCompile(`[^a-z0-9\s]`)
	multiSpace = regexp.MustCompile(`\s+`)
	nonDigit   = regexp.MustCompile(`\D`)
)

// InvoiceNumber canonicalizes an invoice number: upper-case, strip
// whitespace and separator punctuation, drop one leading INVOICE/INV/BILL
// token and any leading zeros. Never returns an empty string.
func InvoiceNumber(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	v = spacePunct.ReplaceAllString(v, "")
	if loc := invPrefix.FindStringIndex(v); loc != nil {
		v = v[loc[1]:]
	}
	v = strings.TrimLeft(v, "0")
	if v == "" {
		return "0"
	}
	return v
}

// Description canonicalizes free text for similarity comparison. The
// result contains only [a-z0-9 ] with single spaces and no outer padding.
func Description(value string) string {
	v := strings.ToLower(value)
	v = nonWord.ReplaceAllString(v, " ")
	v = multiSpace.ReplaceAllString(v, " ")
	return strings.TrimSpace(v)
}

// MaskAccountLast4 produces the display form of a bank account. A nil or
// empty account stays nil; an account without digits masks completely.
func MaskAccountLast4(account *string) *string {
	if account == nil || *account == "" {
		return nil
	}
	digits := nonDigit.ReplaceAllString(*account, "")
	masked := "****"
	if len(digits) >= 4 {
		masked = "****" + digits[len(digits)-4:]
	} else if digits != "" {
		masked = "****" + digits
	}
	return &masked
}

// HashAccount returns the 64-hex SHA-256 of the raw account string, used
// for equality comparison without storing plaintext.
func HashAccount(account *string) *string {
	if account == nil || *account == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(*account))
	h := hex.EncodeToString(sum[:])
	return &h
}

// TextBlob concatenates vendor, PO, terms and line text into the
// lower-cased blob used for search indexing.
func TextBlob(in *models.InvoiceIn) string {
	parts := make([]string, 0, 3+2*len(in.LineItems))
	appendPart := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}
	appendPart(in.VendorName)
	if in.PONumber != nil {
		appendPart(*in.PONumber)
	}
	if in.Terms != nil {
		appendPart(*in.Terms)
	}
	for _, line := range in.LineItems {
		if line.SKU != nil {
			appendPart(*line.SKU)
		}
		appendPart(line.Desc)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// PayloadHash returns a stable SHA-256 over the key-sorted canonical JSON
// of the payload. Two payloads hash equal iff their JSON forms are equal.
func PayloadHash(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	// encoding/json emits map keys in sorted order, which makes the
	// round-tripped form canonical regardless of struct field order.
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("marshal canonical payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
