// Package dupmodel scores a feature vector into a duplicate probability.
// A trained artifact (JSON weights) is used when one can be loaded;
// otherwise a built-in logistic fallback applies. The loaded model is an
// immutable process-wide cache, safe for concurrent reads.
package dupmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/apsieve/invoice-sieve-service/internal/features"
)

// FeatureCount is the fixed model input width.
const FeatureCount = 13

// Model predicts a duplicate probability from an ordered feature vector.
type Model interface {
	PredictProba(x [FeatureCount]float64) float64
}

// fallbackWeights approximate a trained logistic regression and are used
// when no artifact is available.
var fallbackWeights = [FeatureCount]float64{
	-1.2,  // abs_total_diff_pct
	-0.03, // days_diff
	0.8,   // same_po
	0.3,   // same_currency
	0.2,   // same_tax_total
	-0.4,  // bank_change_flag
	-0.1,  // payee_name_change_flag
	-1.5,  // invnum_edit
	1.6,   // line_coverage_pct
	-1.8,  // unmatched_amount_frac
	-0.4,  // count_new_items
	-0.05, // median_unit_price_diff
	2.2,   // text_cosine
}

const fallbackBias = -0.3

// logisticModel is a linear model squashed through a sigmoid. Both the
// fallback and loaded artifacts take this shape.
type logisticModel struct {
	weights [FeatureCount]float64
	bias    float64
}

func (m *logisticModel) PredictProba(x [FeatureCount]float64) float64 {
	logit := m.bias
	for i, w := range m.weights {
		logit += w * x[i]
	}
	return 1 / (1 + math.Exp(-logit))
}

// Fallback returns the built-in heuristic model.
func Fallback() Model {
	return &logisticModel{weights: fallbackWeights, bias: fallbackBias}
}

// artifact is the serialized form of a trained model.
type artifact struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func modelFromArtifact(raw []byte) (Model, error) {
	var a artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if len(a.Weights) != FeatureCount {
		return nil, fmt.Errorf("model artifact has %d weights, want %d", len(a.Weights), FeatureCount)
	}
	m := &logisticModel{bias: a.Bias}
	copy(m.weights[:], a.Weights)
	return m, nil
}

// ArtifactFetcher retrieves a named artifact from remote object storage.
type ArtifactFetcher interface {
	FetchArtifact(ctx context.Context, object string) ([]byte, error)
}

// Loader resolves the model once and caches it for the process lifetime.
// Resolution order: local path, then object storage, then fallback.
type Loader struct {
	path   string
	fetch  ArtifactFetcher
	object string
	log    *zap.Logger

	once  sync.Once
	model Model
}

// NewLoader builds a lazy model loader. fetch may be nil when no object
// store is configured.
func NewLoader(path string, fetch ArtifactFetcher, object string, log *zap.Logger) *Loader {
	return &Loader{path: path, fetch: fetch, object: object, log: log}
}

// Model returns the cached model, resolving it on first use. Resolution
// never fails the caller: an unusable artifact degrades to the fallback.
func (l *Loader) Model(ctx context.Context) Model {
	l.once.Do(func() {
		l.model = l.resolve(ctx)
	})
	return l.model
}

func (l *Loader) resolve(ctx context.Context) Model {
	if l.path != "" {
		raw, err := os.ReadFile(l.path)
		if err == nil {
			if m, err := modelFromArtifact(raw); err == nil {
				l.log.Info("duplicate model loaded from file", zap.String("path", l.path))
				return m
			} else {
				l.log.Warn("unusable duplicate model file, using fallback",
					zap.String("path", l.path), zap.Error(err))
				return Fallback()
			}
		}
		if !os.IsNotExist(err) {
			l.log.Warn("failed to read duplicate model file", zap.String("path", l.path), zap.Error(err))
		}
	}

	if l.fetch != nil && l.object != "" {
		raw, err := l.fetch.FetchArtifact(ctx, l.object)
		if err == nil {
			if m, err := modelFromArtifact(raw); err == nil {
				l.log.Info("duplicate model loaded from object store", zap.String("object", l.object))
				return m
			}
		}
	}

	l.log.Info("no duplicate model artifact, using logistic fallback")
	return Fallback()
}

// Predict runs the model over a feature vector and clamps the output to
// [0,1]. Total over well-formed inputs; it never errors.
func Predict(m Model, v features.Vector) float64 {
	p := m.PredictProba(v.Values())
	return math.Max(0, math.Min(1, p))
}
