// Package main implements the quote engine API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/swiftfab/quote-engine/engine/feature"
	"github.com/swiftfab/quote-engine/engine/kernel"
	"github.com/swiftfab/quote-engine/engine/pricing"
	"github.com/swiftfab/quote-engine/engine/quotes"
	"github.com/swiftfab/quote-engine/engine/similar"
	"github.com/swiftfab/quote-engine/pkg/metrics"
	"github.com/swiftfab/quote-engine/pkg/mid"
	"github.com/swiftfab/quote-engine/pkg/natsutil"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	KernelURL    string
	Neo4jURL     string
	Neo4jUser    string
	Neo4jPass    string
	QdrantURL    string
	Collection   string
	NatsURL      string
	SnapshotPath string
	CORSOrigin   string
	Workers      int
	MetricsPort  int
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		KernelURL:    envOr("KERNEL_URL", "http://localhost:9000"),
		Neo4jURL:     envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:    envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:    envOr("NEO4J_PASS", "password"),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "parts"),
		NatsURL:      envOr("NATS_URL", nats.DefaultURL),
		SnapshotPath: envOr("COEFFS_SNAPSHOT", "coeffs.json"),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		Workers:      envInt("EXTRACT_WORKERS", 4),
		MetricsPort:  envInt("METRICS_PORT", 9090),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	met.CollectRuntime("quote_api", 15*time.Second)
	met.ServeAsync(cfg.MetricsPort)

	// --- CAD kernel sidecar ---
	cad := kernel.New(kernel.DefaultOpts(cfg.KernelURL), logger)

	// --- Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)
	store := quotes.NewStore(driver)

	// --- Qdrant ---
	vectors, err := similar.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectors.Close()
	if err := vectors.EnsureCollection(ctx); err != nil {
		logger.Warn("qdrant collection not ready, similarity search degraded", "err", err)
	}

	// --- NATS ---
	nc, err := nats.Connect(cfg.NatsURL, nats.Name("quote-api"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	// --- Coefficients ---
	coeffs := pricing.NewStore()
	if tbl, err := pricing.LoadSnapshot(cfg.SnapshotPath); err != nil {
		logger.Warn("no coefficient snapshot, pricing unavailable until trained",
			"path", cfg.SnapshotPath, "err", err)
	} else {
		coeffs.Swap(tbl)
		logger.Info("coefficient snapshot loaded", "version", tbl.Version)
	}
	// The trainer announces new snapshots; swap them in without a restart.
	sub, err := natsutil.Subscribe(nc, quotes.SubjectCoeffsUpdated, func(_ context.Context, ev quotes.CoeffsUpdated) {
		tbl, err := pricing.LoadSnapshot(ev.SnapshotPath)
		if err != nil {
			logger.Error("coefficient reload failed", "version", ev.Version, "err", err)
			return
		}
		coeffs.Swap(tbl)
		logger.Info("coefficient table swapped", "version", tbl.Version)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", quotes.SubjectCoeffsUpdated, err)
	}
	defer sub.Unsubscribe()

	srvc := &server{
		cfg:       cfg,
		log:       logger,
		cad:       cad,
		store:     store,
		vectors:   vectors,
		nc:        nc,
		coeffs:    coeffs,
		extractor: feature.NewExtractor(feature.DefaultTolerances(), logger),
		met:       newAPIMetrics(met),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srvc.handleHealth)
	mux.HandleFunc("GET /api/materials", srvc.handleMaterials)
	mux.HandleFunc("POST /api/quotes", srvc.handleCreateQuote)
	mux.HandleFunc("POST /api/quotes/async", srvc.handleCreateQuoteAsync)
	mux.HandleFunc("GET /api/quotes", srvc.handleListQuotes)
	mux.HandleFunc("GET /api/quotes/{id}", srvc.handleGetQuote)
	mux.HandleFunc("DELETE /api/quotes/{id}", srvc.handleDeleteQuote)
	mux.HandleFunc("PATCH /api/quotes/{id}/parts/{part}", srvc.handleUpdatePart)
	mux.HandleFunc("GET /api/quotes/{id}/parts/{part}/similar", srvc.handleSimilarParts)

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("quote-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
