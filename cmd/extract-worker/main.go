// Command extract-worker consumes queued CAD extraction jobs from NATS,
// parses the uploads through the kernel sidecar and persists the resulting
// quotes into Neo4j and the part-similarity index.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/swiftfab/quote-engine/engine/feature"
	"github.com/swiftfab/quote-engine/engine/kernel"
	"github.com/swiftfab/quote-engine/engine/quotes"
	"github.com/swiftfab/quote-engine/engine/similar"
	"github.com/swiftfab/quote-engine/engine/worker"
	"github.com/swiftfab/quote-engine/pkg/metrics"
)

var met = metrics.New()

func main() {
	var (
		natsURL     = flag.String("nats", nats.DefaultURL, "NATS server URL")
		kernelURL   = flag.String("kernel", "http://localhost:9000", "CAD kernel base URL")
		neo4jURL    = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL")
		neo4jUser   = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", "swiftfab123", "Neo4j password")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "parts", "Qdrant collection name")
		workers     = flag.Int("workers", 4, "parallel feature extraction workers")
		metricsPort = flag.Int("metrics-port", 9091, "Prometheus metrics port")
	)
	flag.Parse()

	met.CollectRuntime("swiftfab_worker", 15*time.Second)
	met.ServeAsync(*metricsPort)

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err != nil {
		log.Error("neo4j connect failed", "error", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Error("neo4j verify failed", "error", err)
		os.Exit(1)
	}
	store := quotes.NewStore(driver)
	log.Info("connected to Neo4j")

	vs, err := similar.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", *collection)

	nc, err := nats.Connect(*natsURL, nats.Name("quote-extract-worker"))
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()

	deps := worker.Deps{
		Kernel:    kernel.New(kernel.DefaultOpts(*kernelURL), log),
		Store:     store,
		Indexer:   vs,
		Extractor: feature.NewExtractor(feature.DefaultTolerances(), log),
		Workers:   *workers,
		Logger:    log,
	}
	sub, err := worker.StartConsumer(nc, deps)
	if err != nil {
		log.Error("consumer start failed", "error", err)
		os.Exit(1)
	}

	log.Info("extract worker running", "subject", quotes.SubjectExtract, "workers", *workers)
	<-ctx.Done()
	log.Info("shutting down")
	_ = sub.Drain()
}
