package anomaly

import (
	"context"
	"testing"
	"time"

	"github.com/apsieve/invoice-sieve-service/internal/rules"
	"github.com/apsieve/invoice-sieve-service/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	histCount int
	baseline  *store.Baseline
	remit     *store.RemitAccount
}

func (f *fakeStore) VendorInvoiceCount(context.Context, string, string, string) (int, error) {
	return f.histCount, nil
}

func (f *fakeStore) VendorBaseline(context.Context, string, string) (*store.Baseline, error) {
	return f.baseline, nil
}

func (f *fakeStore) RemitAccount(context.Context, string, string, string) (*store.RemitAccount, error) {
	return f.remit, nil
}

func strPtr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func invoice(total string, remitHash *string) *store.Invoice {
	return &store.Invoice{
		TenantID:         "t1",
		InvoiceID:        "inv-1",
		VendorID:         "v1",
		Total:            dec(total),
		RemitAccountHash: remitHash,
	}
}

func intPtr(n int) *int { return &n }

func TestScoreOutlierCapped(t *testing.T) {
	s := NewScorer(&fakeStore{baseline: &store.Baseline{
		MeanTotal: dec("100"), StdTotal: dec("10"), SampleCount: 50,
	}})

	prob, reasons, err := s.Score(context.Background(), invoice("200", nil), intPtr(50))
	require.NoError(t, err)
	// z = 10: capped contribution keeps the probability at 0.1 + 0.6.
	assert.InDelta(t, 0.7, prob, 1e-9)
	assert.Contains(t, reasons, rules.ReasonUnitPriceOutlier)
	assert.NotContains(t, reasons, rules.ReasonBankChange)
}

func TestScoreColdVendorDampening(t *testing.T) {
	s := NewScorer(&fakeStore{baseline: &store.Baseline{
		MeanTotal: dec("100"), StdTotal: dec("10"), SampleCount: 50,
	}})

	// z = 3 => 0.1 + 0.6; two prior invoices dampen by 0.8.
	prob, _, err := s.Score(context.Background(), invoice("130", nil), intPtr(2))
	require.NoError(t, err)
	assert.InDelta(t, 0.56, prob, 1e-9)
}

func TestScoreMADFallback(t *testing.T) {
	s := NewScorer(&fakeStore{baseline: &store.Baseline{
		MeanTotal: dec("100"), StdTotal: decimal.Zero, SampleCount: 20,
	}})

	prob, reasons, err := s.Score(context.Background(), invoice("400", nil), intPtr(20))
	require.NoError(t, err)
	// z = |400-100|/100 = 3 -> 0.1 + 0.6
	assert.InDelta(t, 0.7, prob, 1e-9)
	assert.Contains(t, reasons, rules.ReasonUnitPriceOutlier)
}

func TestScoreNoBaseline(t *testing.T) {
	s := NewScorer(&fakeStore{})
	prob, reasons, err := s.Score(context.Background(), invoice("5000", nil), intPtr(10))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, prob, 1e-9)
	assert.Empty(t, reasons)
}

func TestScoreSmallSampleNoFallback(t *testing.T) {
	s := NewScorer(&fakeStore{baseline: &store.Baseline{
		MeanTotal: dec("100"), StdTotal: decimal.Zero, SampleCount: 5,
	}})
	prob, reasons, err := s.Score(context.Background(), invoice("5000", nil), intPtr(10))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, prob, 1e-9)
	assert.Empty(t, reasons)
}

func TestScoreBankChangeUnknownAccount(t *testing.T) {
	s := NewScorer(&fakeStore{})
	prob, reasons, err := s.Score(context.Background(), invoice("100", strPtr("h2")), intPtr(10))
	require.NoError(t, err)
	assert.Contains(t, reasons, rules.ReasonBankChange)
	assert.InDelta(t, 0.35, prob, 1e-9)
}

func TestScoreBankChangeFreshAccount(t *testing.T) {
	now := time.Now()
	s := NewScorer(&fakeStore{remit: &store.RemitAccount{
		FirstSeen: now, LastSeen: now.Add(30 * time.Second),
	}})
	_, reasons, err := s.Score(context.Background(), invoice("100", strPtr("h2")), intPtr(10))
	require.NoError(t, err)
	assert.Contains(t, reasons, rules.ReasonBankChange)
}

func TestScoreEstablishedAccountNoBankChange(t *testing.T) {
	now := time.Now()
	s := NewScorer(&fakeStore{remit: &store.RemitAccount{
		FirstSeen: now.Add(-24 * time.Hour), LastSeen: now,
	}})
	_, reasons, err := s.Score(context.Background(), invoice("100", strPtr("h2")), intPtr(10))
	require.NoError(t, err)
	assert.NotContains(t, reasons, rules.ReasonBankChange)
}

func TestScoreClampedToOne(t *testing.T) {
	s := NewScorer(&fakeStore{baseline: &store.Baseline{
		MeanTotal: dec("100"), StdTotal: dec("1"), SampleCount: 50,
	}})
	prob, _, err := s.Score(context.Background(), invoice("10000", strPtr("h9")), intPtr(100))
	require.NoError(t, err)
	// 0.1 + 0.6 + 0.25 = 0.95; with bank change from the unknown account.
	assert.LessOrEqual(t, prob, 1.0)
	assert.InDelta(t, 0.95, prob, 1e-9)
}
