package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/apsieve/invoice-sieve-service/api"
	"github.com/apsieve/invoice-sieve-service/internal/auth"
	"github.com/apsieve/invoice-sieve-service/internal/blobstore"
	"github.com/apsieve/invoice-sieve-service/internal/config"
	"github.com/apsieve/invoice-sieve-service/internal/dupmodel"
	"github.com/apsieve/invoice-sieve-service/internal/scoring"
	"github.com/apsieve/invoice-sieve-service/internal/search"
	"github.com/apsieve/invoice-sieve-service/internal/store"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	st, err := store.Connect(ctx, cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer st.Close()
	if cfg.InitSchema {
		if err := st.InitSchema(ctx); err != nil {
			log.Fatal("failed to initialize schema", zap.Error(err))
		}
	}

	// Search indexing is optional; scoring degrades to no indexing.
	var indexer *search.Indexer
	if cfg.RedisAddr != "" {
		indexer, err = search.Connect(ctx, cfg.RedisAddr, log)
		if err != nil {
			log.Warn("search index not available", zap.Error(err))
			indexer = nil
		} else {
			defer func() { _ = indexer.Close() }()
		}
	}

	// Object storage is optional; archival and remote model loading are
	// skipped without it.
	var blobs *blobstore.Store
	if cfg.Minio.Endpoint != "" {
		blobs, err = blobstore.Connect(ctx, blobstore.Options{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		}, log)
		if err != nil {
			log.Warn("object storage not available", zap.Error(err))
			blobs = nil
		}
	}

	var fetcher dupmodel.ArtifactFetcher
	if blobs != nil {
		fetcher = blobs
	}
	loader := dupmodel.NewLoader(cfg.DupModelPath, fetcher, cfg.DupModelObject, log)

	scorer := scoring.New(st, loader, indexer, blobs, scoring.Config{
		TenantID:               cfg.TenantID,
		HoldThresholdDefault:   cfg.HoldThresholdDefault,
		ReviewThresholdDefault: cfg.ReviewThresholdDefault,
	}, log)

	handler := api.NewHandler(scorer, st, cfg.TenantID, log)
	router := handler.SetupRoutes()

	verifier := auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.Audience, cfg.JWT.Issuer)
	protected := verifier.Middleware(router)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.Info("starting invoice sieve service",
		zap.String("addr", addr),
		zap.String("tenant", cfg.TenantID),
		zap.Bool("search", indexer != nil),
		zap.Bool("blobstore", blobs != nil))

	if err := http.ListenAndServe(addr, protected); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}
