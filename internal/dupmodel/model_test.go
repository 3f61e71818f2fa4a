package dupmodel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apsieve/invoice-sieve-service/internal/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFallbackPredictRange(t *testing.T) {
	m := Fallback()
	vectors := []features.Vector{
		{}, // all zero
		{LineCoveragePct: 1, TextCosine: 1, SamePO: 1, SameCurrency: 1, SameTaxTotal: 1},
		{UnmatchedAmountFrac: 1, InvnumEdit: 1, AbsTotalDiffPct: 5, DaysDiff: 365, CountNewItems: 20},
		{MedianUnitPriceDiff: 1e6},
	}
	for _, v := range vectors {
		p := Predict(m, v)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestFallbackOrdering(t *testing.T) {
	m := Fallback()
	near := features.Vector{
		SameCurrency: 1, SameTaxTotal: 1, LineCoveragePct: 1, TextCosine: 1,
	}
	far := features.Vector{
		SameCurrency: 1, InvnumEdit: 1, UnmatchedAmountFrac: 1, AbsTotalDiffPct: 2,
	}
	assert.Greater(t, Predict(m, near), Predict(m, far))
	// A strong match dominates the negative bias.
	assert.Greater(t, Predict(m, near), 0.9)
}

func TestLoaderUsesArtifactFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup_model.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"weights":[0,0,0,0,0,0,0,0,0,0,0,0,0],"bias":2.0}`), 0o644))

	l := NewLoader(path, nil, "", zap.NewNop())
	m := l.Model(context.Background())
	// sigmoid(2.0) regardless of input
	assert.InDelta(t, 0.8808, Predict(m, features.Vector{TextCosine: 1}), 1e-3)
}

func TestLoaderFallsBackOnBadArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup_model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"weights":[1,2],"bias":0}`), 0o644))

	l := NewLoader(path, nil, "", zap.NewNop())
	m := l.Model(context.Background())
	assert.InDelta(t, Predict(Fallback(), features.Vector{}), Predict(m, features.Vector{}), 1e-12)
}

func TestLoaderFallsBackWhenMissing(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "absent.json"), nil, "", zap.NewNop())
	m := l.Model(context.Background())
	assert.NotNil(t, m)
	assert.InDelta(t, Predict(Fallback(), features.Vector{}), Predict(m, features.Vector{}), 1e-12)
}

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) FetchArtifact(_ context.Context, _ string) ([]byte, error) {
	return f.data, f.err
}

func TestLoaderFetchesFromObjectStore(t *testing.T) {
	fetch := &fakeFetcher{data: []byte(`{"weights":[0,0,0,0,0,0,0,0,0,0,0,0,0],"bias":-2.0}`)}
	l := NewLoader("", fetch, "models/dup_model.json", zap.NewNop())
	m := l.Model(context.Background())
	assert.InDelta(t, 0.1192, Predict(m, features.Vector{}), 1e-3)
}

func TestLoaderCachesModel(t *testing.T) {
	l := NewLoader("", nil, "", zap.NewNop())
	m1 := l.Model(context.Background())
	m2 := l.Model(context.Background())
	assert.Same(t, m1.(*logisticModel), m2.(*logisticModel))
}
