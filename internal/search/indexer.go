// Package search maintains the best-effort invoice_text index. Index
// writes happen outside the persistence transaction and never fail a
// scoring request.
package search

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Document is one indexed invoice text blob.
type Document struct {
	TenantID  string
	VendorID  string
	InvoiceID string
	TextBlob  string
}

// Indexer writes invoice text documents into Redis hashes keyed
// invoice_text:{tenant}:{invoice_id}. A nil Indexer is a valid no-op.
type Indexer struct {
	rdb *redis.Client
	log *zap.Logger
}

// Connect builds an indexer and verifies the Redis connection.
func Connect(ctx context.Context, addr string, log *zap.Logger) (*Indexer, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &Indexer{rdb: rdb, log: log}, nil
}

// Close releases the Redis client.
func (ix *Indexer) Close() error {
	if ix == nil {
		return nil
	}
	return ix.rdb.Close()
}

func docKey(tenantID, invoiceID string) string {
	return fmt.Sprintf("invoice_text:%s:%s", tenantID, invoiceID)
}

// IndexInvoice upserts the document. Failures are logged and swallowed;
// indexing is best-effort by contract.
func (ix *Indexer) IndexInvoice(ctx context.Context, doc Document) {
	if ix == nil {
		return
	}
	err := ix.rdb.HSet(ctx, docKey(doc.TenantID, doc.InvoiceID), map[string]any{
		"tenant_id":  doc.TenantID,
		"vendor_id":  doc.VendorID,
		"invoice_id": doc.InvoiceID,
		"text_blob":  doc.TextBlob,
	}).Err()
	if err != nil {
		ix.log.Warn("invoice text indexing failed",
			zap.String("invoice_id", doc.InvoiceID), zap.Error(err))
	}
}
