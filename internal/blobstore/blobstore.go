// Package blobstore wraps the MinIO bucket used for raw invoice payload
// archival and for fetching trained model artifacts.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Store is a handle over one bucket. A nil Store is a valid no-op for
// archival.
type Store struct {
	client *minio.Client
	bucket string
	log    *zap.Logger
}

// Options carries the object-store connection settings.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Connect builds the client and verifies the bucket exists.
func Connect(ctx context.Context, opts Options, log *zap.Logger) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(checkCtx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", opts.Bucket)
	}

	return &Store{client: client, bucket: opts.Bucket, log: log}, nil
}

// ArchivePayload stores the raw invoice JSON under
// {tenant}/{invoice_id}.json. Best-effort: failures are logged and
// swallowed, mirroring the search index contract.
func (s *Store) ArchivePayload(ctx context.Context, tenantID, invoiceID string, raw []byte) {
	if s == nil {
		return
	}
	objectName := fmt.Sprintf("%s/%s.json", tenantID, invoiceID)
	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		s.log.Warn("payload archival failed",
			zap.String("invoice_id", invoiceID), zap.Error(err))
	}
}

// FetchArtifact reads one object fully; used for model artifacts.
func (s *Store) FetchArtifact(ctx context.Context, object string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artifact %s: %w", object, err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", object, err)
	}
	return raw, nil
}
