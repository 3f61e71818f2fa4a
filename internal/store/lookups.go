package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
)

// VendorInvoiceCount counts prior invoices of a vendor, excluding the
// invoice being scored.
func (s *Store) VendorInvoiceCount(ctx context.Context, tenantID, vendorID, excludeInvoiceID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM invoices
		WHERE tenant_id = $1 AND vendor_id = $2 AND invoice_id != $3
	`, tenantID, vendorID, excludeInvoiceID).Scan(&count)
	return count, err
}

// VendorBaseline loads the offline amount baseline for a vendor, or nil
// when none has been computed yet.
func (s *Store) VendorBaseline(ctx context.Context, tenantID, vendorID string) (*Baseline, error) {
	var b Baseline
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(mean_total, 0), COALESCE(std_total, 0), sample_count
		FROM vendor_amount_baselines
		WHERE tenant_id = $1 AND vendor_id = $2
	`, tenantID, vendorID).Scan(&b.MeanTotal, &b.StdTotal, &b.SampleCount)
	if err != nil {
		if errors.Is(mapNoRows(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// RemitAccount looks up one observed (vendor, remit hash) pairing, or nil
// when the account has never been seen.
func (s *Store) RemitAccount(ctx context.Context, tenantID, vendorID, accountHash string) (*RemitAccount, error) {
	var acct RemitAccount
	err := s.pool.QueryRow(ctx, `
		SELECT remit_name, first_seen, last_seen
		FROM vendor_remit_accounts
		WHERE tenant_id = $1 AND vendor_id = $2 AND remit_account_hash = $3
	`, tenantID, vendorID, accountHash).Scan(&acct.RemitName, &acct.FirstSeen, &acct.LastSeen)
	if err != nil {
		if errors.Is(mapNoRows(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &acct, nil
}

// ConfigFloat reads a numeric per-tenant override from the configs table.
// The jsonb value may be a bare number, an object {"value": n} or a
// numeric string; a missing row or an unparseable value yields the
// default without error.
func (s *Store) ConfigFloat(ctx context.Context, tenantID, key string, def float64) (float64, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM configs
		WHERE tenant_id = $1 AND scope = 'global' AND key = $2
	`, tenantID, key).Scan(&raw)
	if err != nil {
		if errors.Is(mapNoRows(err), ErrNotFound) {
			return def, nil
		}
		return def, err
	}
	return parseConfigFloat(raw, def), nil
}

func parseConfigFloat(raw []byte, def float64) float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return def
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num
	}
	var obj struct {
		Value *json.Number `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Value != nil {
		if v, err := obj.Value.Float64(); err == nil {
			return v
		}
		return def
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, err := strconv.ParseFloat(str, 64); err == nil {
			return v
		}
	}
	return def
}
