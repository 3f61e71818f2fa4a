// Package anomaly scores how unusual an invoice looks for its vendor:
// amount deviation against the offline baseline plus a first-seen
// heuristic on the remit account.
package anomaly

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/apsieve/invoice-sieve-service/internal/rules"
	"github.com/apsieve/invoice-sieve-service/internal/store"
)

// Store is the read surface the scorer needs.
type Store interface {
	VendorInvoiceCount(ctx context.Context, tenantID, vendorID, excludeInvoiceID string) (int, error)
	VendorBaseline(ctx context.Context, tenantID, vendorID string) (*store.Baseline, error)
	RemitAccount(ctx context.Context, tenantID, vendorID, accountHash string) (*store.RemitAccount, error)
}

const (
	outlierZ         = 2.5
	bankChangeBoost  = 0.25
	coldVendorFactor = 0.8
	coldVendorCutoff = 5
	// An existing remit row still counts as a bank change while its
	// first and last sighting are within this window. Scoring runs after
	// the remit upsert, so an account seen for the first time has
	// first_seen == last_seen and always trips this. The window also
	// catches any upsert cluster inside one minute; kept deliberately to
	// match the established behavior.
	firstSeenWindow = time.Minute
)

// Scorer computes the anomaly probability for a persisted invoice.
type Scorer struct {
	store Store
}

// NewScorer builds an anomaly scorer over the given read store.
func NewScorer(s Store) *Scorer {
	return &Scorer{store: s}
}

// Score returns the anomaly probability in [0,1] plus any reason codes
// (BANK_CHANGE, UNIT_PRICE_OUTLIER). vendorHistCount may carry a
// precomputed prior-invoice count; pass nil to have it queried.
func (s *Scorer) Score(ctx context.Context, inv *store.Invoice, vendorHistCount *int) (float64, []string, error) {
	var reasons []string

	histCount := 0
	if vendorHistCount != nil {
		histCount = *vendorHistCount
	} else {
		n, err := s.store.VendorInvoiceCount(ctx, inv.TenantID, inv.VendorID, inv.InvoiceID)
		if err != nil {
			return 0, nil, fmt.Errorf("vendor history count: %w", err)
		}
		histCount = n
	}

	baseline, err := s.store.VendorBaseline(ctx, inv.TenantID, inv.VendorID)
	if err != nil {
		return 0, nil, fmt.Errorf("vendor baseline: %w", err)
	}

	bankChange := false
	if inv.RemitAccountHash != nil {
		acct, err := s.store.RemitAccount(ctx, inv.TenantID, inv.VendorID, *inv.RemitAccountHash)
		if err != nil {
			return 0, nil, fmt.Errorf("remit account lookup: %w", err)
		}
		if acct == nil {
			bankChange = true
		} else {
			bankChange = acct.LastSeen.Sub(acct.FirstSeen) <= firstSeenWindow
		}
	}
	if bankChange {
		reasons = append(reasons, rules.ReasonBankChange)
	}

	amountZ := 0.0
	if baseline != nil {
		total := inv.Total.InexactFloat64()
		mean := baseline.MeanTotal.InexactFloat64()
		std := baseline.StdTotal.InexactFloat64()
		switch {
		case std > 0:
			amountZ = math.Abs(total-mean) / std
		case baseline.SampleCount > 10:
			// MAD-like fallback when the stored deviation is degenerate.
			amountZ = math.Abs(total-mean) / math.Max(math.Abs(mean), 1)
		}
	}

	if amountZ >= outlierZ {
		reasons = append(reasons, rules.ReasonUnitPriceOutlier)
	}

	prob := 0.1 + math.Min(amountZ/5, 0.6)
	if bankChange {
		prob += bankChangeBoost
	}
	if histCount < coldVendorCutoff {
		prob *= coldVendorFactor
	}

	return math.Min(prob, 1), reasons, nil
}
