package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CaseSLA is the manual-review deadline applied to new and refreshed cases.
const CaseSLA = 48 * time.Hour

var caseOpenDecisions = map[string]struct{}{"HOLD": {}, "REVIEW": {}}

func newCaseID() string {
	return "case_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// UpsertCase opens or refreshes the manual-review case for an invoice
// when the decision requires one. The existing case_id is reused so
// repeated scoring never spawns duplicate cases. Returns the case id, or
// "" when the decision does not open a case.
func (s *Store) UpsertCase(ctx context.Context, tenantID, invoiceID, decision string) (string, error) {
	if _, ok := caseOpenDecisions[decision]; !ok {
		return "", nil
	}

	var caseID string
	err := withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin case transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		err = tx.QueryRow(ctx, `
			SELECT case_id FROM cases
			WHERE tenant_id = $1 AND invoice_id = $2
		`, tenantID, invoiceID).Scan(&caseID)
		if err != nil {
			if mapNoRows(err) != ErrNotFound {
				return fmt.Errorf("lookup existing case: %w", err)
			}
			caseID = newCaseID()
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO cases (tenant_id, case_id, invoice_id, status, sla_due, created_at, updated_at)
			VALUES ($1, $2, $3, 'OPEN', $4, NOW(), NOW())
			ON CONFLICT (tenant_id, case_id)
			DO UPDATE SET status = EXCLUDED.status, sla_due = EXCLUDED.sla_due, updated_at = NOW()
		`, tenantID, caseID, invoiceID, time.Now().UTC().Add(CaseSLA))
		if err != nil {
			return fmt.Errorf("upsert case: %w", err)
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return "", err
	}
	return caseID, nil
}
