// Package scoring runs the end-to-end pipeline for one invoice
// submission: normalize, persist, retrieve candidates, score duplicates
// and anomalies, fuse, decide, and persist the outcome.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/apsieve/invoice-sieve-service/internal/anomaly"
	"github.com/apsieve/invoice-sieve-service/internal/blobstore"
	"github.com/apsieve/invoice-sieve-service/internal/decision"
	"github.com/apsieve/invoice-sieve-service/internal/dupmodel"
	"github.com/apsieve/invoice-sieve-service/internal/features"
	"github.com/apsieve/invoice-sieve-service/internal/models"
	"github.com/apsieve/invoice-sieve-service/internal/normalize"
	"github.com/apsieve/invoice-sieve-service/internal/rules"
	"github.com/apsieve/invoice-sieve-service/internal/search"
	"github.com/apsieve/invoice-sieve-service/internal/store"
)

// Model/ruleset identifiers stamped onto every decision row.
const (
	modelID        = "dup_model"
	modelVersion   = "v1"
	rulesetVersion = "r1"
)

// Config keys for the per-tenant threshold overrides.
const (
	cfgHoldKey   = "T_hold"
	cfgReviewKey = "T_review"
)

// Store is the persistence surface the orchestrator needs. *store.Store
// satisfies it.
type Store interface {
	anomaly.Store

	UpsertInvoice(ctx context.Context, inv *store.Invoice, lines []store.Line) error
	GetInvoice(ctx context.Context, tenantID, invoiceID string) (*store.Invoice, error)
	GetInvoiceLines(ctx context.Context, tenantID, invoiceID string) ([]store.Line, error)
	Candidates(ctx context.Context, base *store.Invoice, cap int) ([]store.Invoice, error)
	ConfigFloat(ctx context.Context, tenantID, key string, def float64) (float64, error)
	UpsertCase(ctx context.Context, tenantID, invoiceID, decision string) (string, error)
	AppendDecision(ctx context.Context, tenantID string, rec *store.DecisionRecord) error
	AppendAudit(ctx context.Context, tenantID, actor, action, entity, entityID string, payload map[string]any) error
}

// Config carries the per-deployment scoring settings.
type Config struct {
	TenantID               string
	HoldThresholdDefault   float64
	ReviewThresholdDefault float64
}

// Scorer is the request-scoped entrypoint of the pipeline. Safe for
// concurrent use; it holds no mutable state between calls.
type Scorer struct {
	st     Store
	anom   *anomaly.Scorer
	loader *dupmodel.Loader
	idx    *search.Indexer
	blobs  *blobstore.Store
	cfg    Config
	log    *zap.Logger
}

// New wires the pipeline. idx and blobs may be nil; their calls are
// best-effort no-ops then.
func New(st Store, loader *dupmodel.Loader, idx *search.Indexer, blobs *blobstore.Store, cfg Config, log *zap.Logger) *Scorer {
	if cfg.HoldThresholdDefault == 0 {
		cfg.HoldThresholdDefault = decision.DefaultHoldThreshold
	}
	if cfg.ReviewThresholdDefault == 0 {
		cfg.ReviewThresholdDefault = decision.DefaultReviewThreshold
	}
	return &Scorer{
		st:     st,
		anom:   anomaly.NewScorer(st),
		loader: loader,
		idx:    idx,
		blobs:  blobs,
		cfg:    cfg,
		log:    log,
	}
}

// scoredCandidate pairs a retrieved candidate with its feature vector
// and model score.
type scoredCandidate struct {
	inv  *store.Invoice
	vec  features.Vector
	prob float64
}

// ScoreInvoice runs the full pipeline for one submission and returns
// the persisted decision.
func (s *Scorer) ScoreInvoice(ctx context.Context, in *models.InvoiceIn, actor string) (*models.ScoreResponse, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	inv, lines, err := s.normalized(in)
	if err != nil {
		return nil, err
	}

	if err := s.st.UpsertInvoice(ctx, inv, lines); err != nil {
		return nil, fmt.Errorf("persist invoice: %w", err)
	}

	// Outside the transaction, both best-effort.
	s.blobs.ArchivePayload(ctx, s.cfg.TenantID, inv.InvoiceID, inv.RawJSON)
	s.idx.IndexInvoice(ctx, search.Document{
		TenantID:  s.cfg.TenantID,
		VendorID:  inv.VendorID,
		InvoiceID: inv.InvoiceID,
		TextBlob:  normalize.TextBlob(in),
	})

	// Re-read so scoring sees exactly what was persisted.
	base, err := s.st.GetInvoice(ctx, s.cfg.TenantID, inv.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("read persisted invoice: %w", err)
	}
	baseLines, err := s.st.GetInvoiceLines(ctx, s.cfg.TenantID, inv.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("read persisted lines: %w", err)
	}

	top, err := s.rankCandidates(ctx, base, baseLines)
	if err != nil {
		return nil, err
	}

	dupProb := 0.0
	if len(top) > 0 {
		dupProb = top[0].prob
	}
	textDupProb := 0.0
	for _, c := range top {
		textDupProb = math.Max(textDupProb, c.vec.TextCosine)
	}

	anomProb, anomReasons, err := s.anom.Score(ctx, base, nil)
	if err != nil {
		return nil, fmt.Errorf("anomaly score: %w", err)
	}
	bankChange := containsReason(anomReasons, rules.ReasonBankChange)

	riskScore := decision.FuseScores(dupProb, anomProb, bankChange, textDupProb)

	reasons := []string{}
	if len(top) > 0 {
		reasons = rules.Apply(rules.Context{
			Invoice:    base,
			Candidate:  top[0].inv,
			Features:   top[0].vec,
			BankChange: bankChange,
		})
	}
	if len(reasons) == 0 && bankChange {
		reasons = append(reasons, rules.ReasonBankChange)
	}
	reasons = dedupeReasons(reasons)
	for _, code := range anomReasons {
		if !containsReason(reasons, code) {
			reasons = append(reasons, code)
		}
	}

	holdT, err := s.st.ConfigFloat(ctx, s.cfg.TenantID, cfgHoldKey, s.cfg.HoldThresholdDefault)
	if err != nil {
		return nil, fmt.Errorf("load hold threshold: %w", err)
	}
	reviewT, err := s.st.ConfigFloat(ctx, s.cfg.TenantID, cfgReviewKey, s.cfg.ReviewThresholdDefault)
	if err != nil {
		return nil, fmt.Errorf("load review threshold: %w", err)
	}

	disposition, err := decision.Decide(riskScore, reviewT, holdT)
	if err != nil {
		return nil, err
	}

	if _, err := s.st.UpsertCase(ctx, s.cfg.TenantID, base.InvoiceID, disposition); err != nil {
		return nil, fmt.Errorf("upsert case: %w", err)
	}

	topMatches := make([]models.TopMatch, 0, len(top))
	for _, c := range top {
		topMatches = append(topMatches, models.TopMatch{
			InvoiceID:  c.inv.InvoiceID,
			Similarity: c.prob,
			Features:   c.vec.Map(),
		})
	}

	if err := s.persistDecision(ctx, base.InvoiceID, riskScore, disposition, reasons, topMatches); err != nil {
		return nil, err
	}

	if err := s.st.AppendAudit(ctx, s.cfg.TenantID, actor, "score", "invoice", base.InvoiceID,
		map[string]any{"risk_score": riskScore, "decision": disposition}); err != nil {
		return nil, fmt.Errorf("append audit: %w", err)
	}

	explanations := []models.Explanation{}
	if len(top) > 0 {
		vals := top[0].vec.Values()
		for i, name := range features.Order {
			explanations = append(explanations, models.Explanation{Feature: name, Value: vals[i]})
		}
	}

	return &models.ScoreResponse{
		RiskScore:    math.Round(riskScore*100) / 100,
		Decision:     disposition,
		ReasonCodes:  reasons,
		TopMatches:   topMatches,
		Explanations: explanations,
	}, nil
}

// normalized turns a validated submission into the persistable header
// and line rows, with the derived fields filled in.
func (s *Scorer) normalized(in *models.InvoiceIn) (*store.Invoice, []store.Line, error) {
	invnumNorm := normalize.InvoiceNumber(in.InvoiceNumber)
	masked := normalize.MaskAccountLast4(in.RemitBankIBANOrAccount)
	accountHash := normalize.HashAccount(in.RemitBankIBANOrAccount)

	// The payload hash and the archived raw form both cover the derived
	// fields, so resubmissions hash equal only when everything matches.
	hashable := struct {
		*models.InvoiceIn
		InvoiceNumberNorm      string  `json:"invoice_number_norm"`
		RemitBankAccountMasked *string `json:"remit_bank_account_masked"`
		RemitAccountHash       *string `json:"remit_account_hash"`
	}{in, invnumNorm, masked, accountHash}

	payloadHash, err := normalize.PayloadHash(hashable)
	if err != nil {
		return nil, nil, fmt.Errorf("hash payload: %w", err)
	}
	rawJSON, err := json.Marshal(hashable)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}

	taxTotal := decimal.Zero
	if in.TaxTotal != nil {
		taxTotal = *in.TaxTotal
	}

	inv := &store.Invoice{
		TenantID:               s.cfg.TenantID,
		InvoiceID:              in.InvoiceID,
		VendorID:               in.VendorID,
		VendorName:             in.VendorName,
		InvoiceNumber:          in.InvoiceNumber,
		InvoiceNumberNorm:      invnumNorm,
		InvoiceDate:            in.InvoiceDate.Time,
		Currency:               in.Currency,
		Total:                  in.Total,
		TaxTotal:               taxTotal,
		PONumber:               in.PONumber,
		RemitBankAccountMasked: masked,
		RemitAccountHash:       accountHash,
		RemitName:              in.RemitName,
		PDFHash:                in.PDFHash,
		Terms:                  in.Terms,
		PayloadHash:            payloadHash,
		RawJSON:                rawJSON,
	}

	lines := make([]store.Line, 0, len(in.LineItems))
	for i, item := range in.LineItems {
		lines = append(lines, store.Line{
			LineNo:     i + 1,
			SKU:        item.SKU,
			Desc:       item.Desc,
			Qty:        item.Qty,
			UnitPrice:  item.UnitPrice,
			Amount:     item.Amount,
			GLCode:     item.GLCode,
			CostCenter: item.CostCenter,
		})
	}
	return inv, lines, nil
}

// rankCandidates retrieves the blocking candidates, scores each against
// the base invoice and returns the top 3 by duplicate probability.
// Ties keep retrieval order.
func (s *Scorer) rankCandidates(ctx context.Context, base *store.Invoice, baseLines []store.Line) ([]scoredCandidate, error) {
	candidates, err := s.st.Candidates(ctx, base, store.DefaultCandidateCap)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}

	baseInputs := features.NewLineInputs(baseLines)
	model := s.loader.Model(ctx)

	scored := make([]scoredCandidate, 0, len(candidates))
	for i := range candidates {
		cand := &candidates[i]
		candLines, err := s.st.GetInvoiceLines(ctx, s.cfg.TenantID, cand.InvoiceID)
		if err != nil {
			return nil, fmt.Errorf("read candidate lines %s: %w", cand.InvoiceID, err)
		}
		vec := features.Extract(base, cand, baseInputs, features.NewLineInputs(candLines))
		scored = append(scored, scoredCandidate{
			inv:  cand,
			vec:  vec,
			prob: dupmodel.Predict(model, vec),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].prob > scored[j].prob })
	if len(scored) > 3 {
		scored = scored[:3]
	}
	return scored, nil
}

func newDecisionID() string {
	return "dec_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *Scorer) persistDecision(ctx context.Context, invoiceID string, riskScore float64, disposition string, reasons []string, top []models.TopMatch) error {
	topJSON, err := json.Marshal(top)
	if err != nil {
		return fmt.Errorf("marshal top matches: %w", err)
	}
	explanations := map[string]float64{}
	if len(top) > 0 {
		explanations = top[0].Features
	}
	explJSON, err := json.Marshal(explanations)
	if err != nil {
		return fmt.Errorf("marshal explanations: %w", err)
	}

	rec := &store.DecisionRecord{
		DecisionID:     newDecisionID(),
		InvoiceID:      invoiceID,
		ModelID:        modelID,
		ModelVersion:   modelVersion,
		RulesetVersion: rulesetVersion,
		RiskScore:      riskScore,
		Decision:       disposition,
		ReasonCodes:    reasons,
		TopMatches:     topJSON,
		Explanations:   explJSON,
	}
	if err := s.st.AppendDecision(ctx, s.cfg.TenantID, rec); err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

func containsReason(reasons []string, code string) bool {
	for _, r := range reasons {
		if r == code {
			return true
		}
	}
	return false
}

func dedupeReasons(reasons []string) []string {
	seen := make(map[string]struct{}, len(reasons))
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
