// Command baseline recomputes the per-vendor amount baselines used by
// the anomaly scorer. Run it on a schedule; the service only reads the
// results.
package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/apsieve/invoice-sieve-service/internal/config"
	"github.com/apsieve/invoice-sieve-service/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	st, err := store.Connect(ctx, cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer st.Close()

	refreshed, err := st.RecomputeBaselines(ctx, cfg.TenantID)
	if err != nil {
		log.Fatal("failed to recompute baselines", zap.Error(err))
	}

	log.Info("vendor baselines recomputed",
		zap.String("tenant", cfg.TenantID),
		zap.Int("vendors", refreshed))
}
