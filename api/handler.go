// Package api exposes the scoring pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/apsieve/invoice-sieve-service/internal/auth"
	"github.com/apsieve/invoice-sieve-service/internal/decision"
	"github.com/apsieve/invoice-sieve-service/internal/models"
	"github.com/apsieve/invoice-sieve-service/internal/store"
)

// Scorer runs the scoring pipeline. *scoring.Scorer satisfies it.
type Scorer interface {
	ScoreInvoice(ctx context.Context, in *models.InvoiceIn, actor string) (*models.ScoreResponse, error)
}

// DecisionReader reads back persisted decisions. *store.Store satisfies it.
type DecisionReader interface {
	LatestDecision(ctx context.Context, tenantID, invoiceID string) (*store.DecisionRow, error)
}

// Handler handles HTTP requests for invoice scoring.
type Handler struct {
	scorer    Scorer
	decisions DecisionReader
	tenantID  string
	log       *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(scorer Scorer, decisions DecisionReader, tenantID string, log *zap.Logger) *Handler {
	return &Handler{scorer: scorer, decisions: decisions, tenantID: tenantID, log: log}
}

// SetupRoutes configures the HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/scoreInvoice", h.ScoreInvoice).Methods("POST")
	router.HandleFunc("/invoice/{id}/decision", h.GetDecision).Methods("GET")
	router.HandleFunc("/healthz", h.Healthz).Methods("GET")

	return router
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// ScoreInvoice handles POST /scoreInvoice.
func (h *Handler) ScoreInvoice(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in models.InvoiceIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp, err := h.scorer.ScoreInvoice(r.Context(), &in, claims.Subject)
	if err != nil {
		switch {
		case errors.Is(err, decision.ErrInvalidThresholds):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.Error("scoring failed", zap.String("invoice_id", in.InvoiceID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "scoring failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetDecision handles GET /invoice/{id}/decision.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.GetClaimsFromContext(r.Context()); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	invoiceID := mux.Vars(r)["id"]
	row, err := h.decisions.LatestDecision(r.Context(), h.tenantID, invoiceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "decision not found")
			return
		}
		h.log.Error("decision lookup failed", zap.String("invoice_id", invoiceID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "decision lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, row)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "tenant": h.tenantID})
}
