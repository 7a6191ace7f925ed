// Command trainer fits pricing coefficients from historical quote data and
// writes a snapshot file. Running services pick up the new coefficients via a
// NATS notification without a restart.
//
// Training rows come either from a CSV export (-csv) or straight from the
// quote store (-from-db), using every part that carries a confirmed price.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/swiftfab/quote-engine/engine/pricing"
	"github.com/swiftfab/quote-engine/engine/quotes"
	"github.com/swiftfab/quote-engine/pkg/natsutil"
)

func main() {
	var (
		csvPath   = flag.String("csv", "", "training rows CSV (mutually exclusive with -from-db)")
		fromDB    = flag.Bool("from-db", false, "export training rows from the quote store")
		neo4jURL  = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL")
		neo4jUser = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass = flag.String("neo4j-pass", "swiftfab123", "Neo4j password")
		snapshot  = flag.String("snapshot", "coeffs.json", "coefficient snapshot path")
		natsURL   = flag.String("nats", "", "NATS URL to announce the new snapshot (empty = skip)")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	if (*csvPath != "") == *fromDB {
		log.Error("exactly one of -csv or -from-db is required")
		os.Exit(2)
	}

	var (
		rows []pricing.Row
		err  error
	)
	if *csvPath != "" {
		rows, err = pricing.LoadRowsCSV(*csvPath)
		if err != nil {
			log.Error("load csv failed", "path", *csvPath, "error", err)
			os.Exit(1)
		}
	} else {
		driver, derr := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
		if derr != nil {
			log.Error("neo4j connect failed", "error", derr)
			os.Exit(1)
		}
		defer driver.Close(ctx)
		rows, err = quotes.NewStore(driver).ExportTrainingRows(ctx)
		if err != nil {
			log.Error("export training rows failed", "error", err)
			os.Exit(1)
		}
	}
	log.Info("training rows loaded", "rows", len(rows))

	opts := pricing.DefaultFitOptions()
	opts.Log = log
	table, err := pricing.Fit(rows, opts)
	if err != nil {
		// Leave any existing snapshot untouched; services keep the old table.
		log.Error("fit failed", "error", err)
		os.Exit(1)
	}
	log.Info("fit complete",
		"version", table.Version,
		"materials", len(table.Materials),
		"finishes", len(table.Finishes))

	if err := pricing.SaveSnapshot(*snapshot, table); err != nil {
		log.Error("snapshot write failed", "path", *snapshot, "error", err)
		os.Exit(1)
	}
	log.Info("snapshot written", "path", *snapshot)

	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL, nats.Name("quote-trainer"))
		if err != nil {
			log.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		defer nc.Drain()
		notice := quotes.CoeffsUpdated{Version: table.Version, SnapshotPath: *snapshot}
		if err := natsutil.Publish(ctx, nc, quotes.SubjectCoeffsUpdated, notice); err != nil {
			log.Error("coeffs announce failed", "error", err)
			os.Exit(1)
		}
		log.Info("coefficients announced", "subject", quotes.SubjectCoeffsUpdated, "version", table.Version)
	}
}
