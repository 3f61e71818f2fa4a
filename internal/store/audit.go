package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// AppendAudit writes one append-only audit row for an action performed by
// an authenticated actor.
func (s *Store) AppendAudit(ctx context.Context, tenantID, actor, action, entity, entityID string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_log (tenant_id, actor, action, entity, entity_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tenantID, actor, action, entity, entityID, raw)
	if err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}
