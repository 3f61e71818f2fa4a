package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UpsertInvoice persists one invoice submission atomically: vendor
// upsert, header upsert (last-write-wins per invoice_id), full line
// replacement and, when a remit hash is present, the remit-account
// upsert. A transient failure is retried once; on any failure nothing
// takes effect.
func (s *Store) UpsertInvoice(ctx context.Context, inv *Invoice, lines []Line) error {
	return withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin invoice transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		_, err = tx.Exec(ctx, `
			INSERT INTO vendors (tenant_id, vendor_id, vendor_name)
			VALUES ($1, $2, $3)
			ON CONFLICT (tenant_id, vendor_id) DO UPDATE SET vendor_name = EXCLUDED.vendor_name
		`, inv.TenantID, inv.VendorID, inv.VendorName)
		if err != nil {
			return fmt.Errorf("upsert vendor: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO invoices (
			    tenant_id, invoice_id, payload_hash, vendor_id, invoice_number,
			    invoice_number_norm, invoice_date, currency, total, tax_total, po_number,
			    remit_bank_account_masked, remit_account_hash, remit_name, pdf_hash, terms, raw_json
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT (tenant_id, invoice_id) DO UPDATE
			  SET payload_hash = EXCLUDED.payload_hash,
			      invoice_number = EXCLUDED.invoice_number,
			      invoice_number_norm = EXCLUDED.invoice_number_norm,
			      invoice_date = EXCLUDED.invoice_date,
			      currency = EXCLUDED.currency,
			      total = EXCLUDED.total,
			      tax_total = EXCLUDED.tax_total,
			      po_number = EXCLUDED.po_number,
			      remit_bank_account_masked = EXCLUDED.remit_bank_account_masked,
			      remit_account_hash = EXCLUDED.remit_account_hash,
			      remit_name = EXCLUDED.remit_name,
			      pdf_hash = EXCLUDED.pdf_hash,
			      terms = EXCLUDED.terms,
			      raw_json = EXCLUDED.raw_json
		`, inv.TenantID, inv.InvoiceID, inv.PayloadHash, inv.VendorID, inv.InvoiceNumber,
			inv.InvoiceNumberNorm, inv.InvoiceDate, inv.Currency, inv.Total, inv.TaxTotal, inv.PONumber,
			inv.RemitBankAccountMasked, inv.RemitAccountHash, inv.RemitName, inv.PDFHash, inv.Terms, inv.RawJSON)
		if err != nil {
			return fmt.Errorf("upsert invoice header: %w", err)
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM invoice_lines WHERE tenant_id = $1 AND invoice_id = $2`,
			inv.TenantID, inv.InvoiceID)
		if err != nil {
			return fmt.Errorf("delete invoice lines: %w", err)
		}

		for idx, line := range lines {
			_, err = tx.Exec(ctx, `
				INSERT INTO invoice_lines (
				    tenant_id, invoice_id, line_no, sku, "desc", qty, unit_price, amount, gl_code, cost_center
				)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			`, inv.TenantID, inv.InvoiceID, idx+1, line.SKU, line.Desc,
				line.Qty, line.UnitPrice, line.Amount, line.GLCode, line.CostCenter)
			if err != nil {
				return fmt.Errorf("insert invoice line %d: %w", idx+1, err)
			}
		}

		if inv.RemitAccountHash != nil {
			_, err = tx.Exec(ctx, `
				INSERT INTO vendor_remit_accounts (tenant_id, vendor_id, remit_account_hash, remit_name)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (tenant_id, vendor_id, remit_account_hash)
				  DO UPDATE SET last_seen = NOW(), remit_name = EXCLUDED.remit_name
			`, inv.TenantID, inv.VendorID, *inv.RemitAccountHash, inv.RemitName)
			if err != nil {
				return fmt.Errorf("upsert remit account: %w", err)
			}
		}

		return tx.Commit(ctx)
	})
}

// GetInvoice reads one persisted header; ErrNotFound when absent.
func (s *Store) GetInvoice(ctx context.Context, tenantID, invoiceID string) (*Invoice, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT i.tenant_id, i.invoice_id, i.vendor_id, COALESCE(v.vendor_name, ''),
		       i.invoice_number, i.invoice_number_norm, i.invoice_date, i.currency,
		       i.total, COALESCE(i.tax_total, 0), i.po_number, i.remit_bank_account_masked,
		       i.remit_account_hash, i.remit_name, i.pdf_hash, i.terms, i.payload_hash
		FROM invoices i
		LEFT JOIN vendors v ON v.tenant_id = i.tenant_id AND v.vendor_id = i.vendor_id
		WHERE i.tenant_id = $1 AND i.invoice_id = $2
	`, tenantID, invoiceID)

	var inv Invoice
	err := row.Scan(
		&inv.TenantID, &inv.InvoiceID, &inv.VendorID, &inv.VendorName,
		&inv.InvoiceNumber, &inv.InvoiceNumberNorm, &inv.InvoiceDate, &inv.Currency,
		&inv.Total, &inv.TaxTotal, &inv.PONumber, &inv.RemitBankAccountMasked,
		&inv.RemitAccountHash, &inv.RemitName, &inv.PDFHash, &inv.Terms, &inv.PayloadHash,
	)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &inv, nil
}

// GetInvoiceLines reads the lines of an invoice ordered by line_no.
func (s *Store) GetInvoiceLines(ctx context.Context, tenantID, invoiceID string) ([]Line, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT line_no, sku, "desc", COALESCE(qty, 0), COALESCE(unit_price, 0),
		       COALESCE(amount, 0), gl_code, cost_center
		FROM invoice_lines
		WHERE tenant_id = $1 AND invoice_id = $2
		ORDER BY line_no
	`, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(
			&line.LineNo, &line.SKU, &line.Desc, &line.Qty, &line.UnitPrice,
			&line.Amount, &line.GLCode, &line.CostCenter,
		); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// DefaultCandidateCap bounds the blocking query result size.
const DefaultCandidateCap = 200

// Candidates runs the blocking query: prior invoices of the same vendor
// matching any of (cents-equal total in the same month, equal po_number,
// equal invoice_number_norm, equal remit_account_hash). Order is
// unspecified; the caller ranks by model score.
func (s *Store) Candidates(ctx context.Context, base *Invoice, cap int) ([]Invoice, error) {
	if cap <= 0 {
		cap = DefaultCandidateCap
	}
	rows, err := s.pool.Query(ctx, `
		WITH base AS (
		  SELECT i.tenant_id, i.invoice_id, i.vendor_id, COALESCE(v.vendor_name, '') AS vendor_name,
		         i.invoice_number, i.invoice_number_norm, i.invoice_date, i.currency,
		         i.total, COALESCE(i.tax_total, 0) AS tax_total, i.po_number, i.remit_bank_account_masked,
		         i.remit_account_hash, i.remit_name, i.pdf_hash, i.terms, i.payload_hash
		  FROM invoices i
		  LEFT JOIN vendors v ON v.tenant_id = i.tenant_id AND v.vendor_id = i.vendor_id
		  WHERE i.tenant_id = $1 AND i.vendor_id = $2 AND i.invoice_id != $3
		)
		SELECT * FROM base
		 WHERE (
		   round(total, 2) = round($4::numeric, 2)
		   AND date_trunc('month', invoice_date) = date_trunc('month', $5::date)
		 )
		 OR (po_number IS NOT NULL AND po_number = $6)
		 OR (invoice_number_norm = $7)
		 OR (remit_account_hash IS NOT NULL AND remit_account_hash = $8)
		LIMIT $9
	`, base.TenantID, base.VendorID, base.InvoiceID,
		base.Total, base.InvoiceDate, base.PONumber, base.InvoiceNumberNorm,
		base.RemitAccountHash, cap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(
			&inv.TenantID, &inv.InvoiceID, &inv.VendorID, &inv.VendorName,
			&inv.InvoiceNumber, &inv.InvoiceNumberNorm, &inv.InvoiceDate, &inv.Currency,
			&inv.Total, &inv.TaxTotal, &inv.PONumber, &inv.RemitBankAccountMasked,
			&inv.RemitAccountHash, &inv.RemitName, &inv.PDFHash, &inv.Terms, &inv.PayloadHash,
		); err != nil {
			return nil, err
		}
		candidates = append(candidates, inv)
	}
	return candidates, rows.Err()
}
