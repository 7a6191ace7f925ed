// Package worker consumes queued extraction jobs from NATS: it parses the
// uploaded file through the CAD kernel, extracts part features, persists the
// quote and indexes the parts for similarity search. Failures are retried a
// bounded number of times and then parked on a dead letter subject.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/swiftfab/quote-engine/engine/domain"
	"github.com/swiftfab/quote-engine/engine/feature"
	"github.com/swiftfab/quote-engine/engine/kernel"
	"github.com/swiftfab/quote-engine/engine/quotes"
)

const (
	// MaxRetries before a job goes to the DLQ.
	MaxRetries = 3
	// retryHeader carries the attempt count across redeliveries.
	retryHeader = "X-Retry-Count"
)

// QuoteSaver persists extracted quotes.
type QuoteSaver interface {
	SaveQuote(ctx context.Context, q quotes.Quote) error
}

// PartIndexer feeds the similarity index. Optional.
type PartIndexer interface {
	IndexPart(ctx context.Context, partID, quoteID string, rec feature.Record) error
}

// Deps wires the worker's collaborators.
type Deps struct {
	Kernel    *kernel.Client
	Store     QuoteSaver
	Indexer   PartIndexer
	Extractor *feature.Extractor
	Workers   int
	Logger    *slog.Logger
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Job     quotes.ExtractJob `json:"job"`
	Error   string            `json:"error"`
	Retries int               `json:"retries"`
}

// StartConsumer subscribes to the extraction subject and processes jobs
// until the subscription is drained.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	if deps.Kernel == nil || deps.Store == nil || deps.Extractor == nil {
		return nil, errors.New("worker: kernel, store and extractor are required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(quotes.SubjectExtract, func(msg *nats.Msg) {
		var job quotes.ExtractJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			log.Error("worker: unmarshal failed", "error", err)
			return
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		ctx := context.Background()
		err := Process(ctx, deps, job)
		if err == nil {
			log.Info("worker: quote extracted", "quote", job.QuoteID, "file", job.FileName)
			if msg.Reply != "" {
				_ = msg.Ack()
			}
			return
		}

		// A file the kernel rejected will never succeed; park it directly.
		permanent := errors.Is(err, kernel.ErrParseRejected)
		retries++
		log.Error("worker: job failed",
			"quote", job.QuoteID, "file", job.FileName,
			"error", err, "retry", retries, "permanent", permanent)

		if permanent || retries >= MaxRetries {
			dlq := dlqMessage{Job: job, Error: err.Error(), Retries: retries}
			data, _ := json.Marshal(dlq)
			if err := nc.Publish(quotes.SubjectExtractDLQ, data); err != nil {
				log.Error("worker: DLQ publish failed", "error", err)
			}
		} else {
			retryMsg := nats.NewMsg(quotes.SubjectExtract)
			retryMsg.Data = msg.Data
			retryMsg.Header = nats.Header{}
			retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
			if err := nc.PublishMsg(retryMsg); err != nil {
				log.Error("worker: retry publish failed", "error", err)
			}
		}
		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}

// Process runs one job end to end.
func Process(ctx context.Context, deps Deps, job quotes.ExtractJob) error {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	solids, err := deps.Kernel.ParseSTEP(ctx, job.FileName, job.Data)
	if err != nil {
		return err
	}

	q := quotes.Quote{
		ID:        job.QuoteID,
		Number:    fmt.Sprintf("Q-%s", time.Now().UTC().Format("20060102-150405")),
		SessionID: job.SessionID,
		FileName:  job.FileName,
		CreatedAt: time.Now().UTC(),
	}
	results := deps.Extractor.ExtractAll(ctx, solids, deps.Workers)
	for _, res := range results {
		rec, err := res.Unwrap()
		if err != nil {
			log.Warn("worker: part skipped", "file", job.FileName, "err", err)
			continue
		}
		q.Parts = append(q.Parts, quotes.Part{
			ID:       job.QuoteID + "/" + rec.Name,
			Name:     rec.Name,
			Config:   domain.DefaultPartConfig(rec.BBox.Height),
			Features: rec,
		})
	}
	if len(q.Parts) == 0 {
		return fmt.Errorf("no usable parts in %s", job.FileName)
	}

	if err := deps.Store.SaveQuote(ctx, q); err != nil {
		return fmt.Errorf("save quote %s: %w", q.ID, err)
	}
	if deps.Indexer != nil {
		for _, p := range q.Parts {
			if err := deps.Indexer.IndexPart(ctx, p.ID, q.ID, p.Features); err != nil {
				log.Warn("worker: similarity indexing failed", "part", p.ID, "err", err)
				break
			}
		}
	}
	return nil
}
