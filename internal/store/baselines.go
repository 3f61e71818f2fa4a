package store

import (
	"context"
	"fmt"
)

// RecomputeBaselines rebuilds vendor_amount_baselines for a tenant from
// the persisted invoice totals. Run offline (cmd/baseline); the scoring
// path only reads baselines. Returns the number of vendors refreshed.
func (s *Store) RecomputeBaselines(ctx context.Context, tenantID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO vendor_amount_baselines (tenant_id, vendor_id, mean_total, std_total, sample_count, updated_at)
		SELECT tenant_id, vendor_id, AVG(total), COALESCE(STDDEV_SAMP(total), 0), COUNT(*), NOW()
		FROM invoices
		WHERE tenant_id = $1
		GROUP BY tenant_id, vendor_id
		ON CONFLICT (tenant_id, vendor_id)
		DO UPDATE SET mean_total = EXCLUDED.mean_total,
		              std_total = EXCLUDED.std_total,
		              sample_count = EXCLUDED.sample_count,
		              updated_at = EXCLUDED.updated_at
	`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("recompute vendor baselines: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
