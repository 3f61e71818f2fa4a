package store

import (
	"context"
	"fmt"
)

// AppendDecision appends one decision row in its own transaction-scoped
// statement. Decisions are append-only; the latest by created_at is the
// effective one. Transient failures are retried once.
func (s *Store) AppendDecision(ctx context.Context, tenantID string, rec *DecisionRecord) error {
	return withRetry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO decisions (
			    tenant_id, decision_id, invoice_id, model_id, model_version, ruleset_version,
			    risk_score, decision, reason_codes, top_matches, explanations
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, tenantID, rec.DecisionID, rec.InvoiceID, rec.ModelID, rec.ModelVersion, rec.RulesetVersion,
			rec.RiskScore, rec.Decision, rec.ReasonCodes, rec.TopMatches, rec.Explanations)
		if err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}
		return nil
	})
}

// LatestDecision returns the most recent decision for an invoice;
// ErrNotFound when the invoice has never been scored.
func (s *Store) LatestDecision(ctx context.Context, tenantID, invoiceID string) (*DecisionRow, error) {
	var row DecisionRow
	err := s.pool.QueryRow(ctx, `
		SELECT risk_score, decision, reason_codes, top_matches, explanations
		FROM decisions
		WHERE tenant_id = $1 AND invoice_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, tenantID, invoiceID).Scan(
		&row.RiskScore, &row.Decision, &row.ReasonCodes, &row.TopMatches, &row.Explanations,
	)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &row, nil
}
