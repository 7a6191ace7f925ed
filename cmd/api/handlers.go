package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"

	"github.com/swiftfab/quote-engine/engine/domain"
	"github.com/swiftfab/quote-engine/engine/feature"
	"github.com/swiftfab/quote-engine/engine/kernel"
	"github.com/swiftfab/quote-engine/engine/pricing"
	"github.com/swiftfab/quote-engine/engine/quotes"
	"github.com/swiftfab/quote-engine/engine/similar"
	"github.com/swiftfab/quote-engine/engine/topo"
	"github.com/swiftfab/quote-engine/pkg/metrics"
	"github.com/swiftfab/quote-engine/pkg/natsutil"
)

// maxUploadBytes bounds one STEP upload.
const maxUploadBytes = 64 << 20

type apiMetrics struct {
	uploads       *metrics.Counter
	uploadErrors  *metrics.Counter
	partsOK       *metrics.Counter
	partsFailed   *metrics.Counter
	priceRequests *metrics.Counter
	priceMissing  *metrics.Counter
	extractTime   *metrics.Histogram
}

func newAPIMetrics(m *metrics.Registry) *apiMetrics {
	return &apiMetrics{
		uploads:       m.Counter("quote_api_uploads_total", "STEP files received"),
		uploadErrors:  m.Counter("quote_api_upload_errors_total", "uploads that failed outright"),
		partsOK:       m.Counter("quote_api_parts_extracted_total", "parts extracted successfully"),
		partsFailed:   m.Counter("quote_api_parts_failed_total", "parts skipped for bad geometry"),
		priceRequests: m.Counter("quote_api_price_requests_total", "pricing attempts"),
		priceMissing:  m.Counter("quote_api_price_missing_total", "pricing attempts with no coefficients"),
		extractTime:   m.Histogram("quote_api_extract_seconds", "upload to saved quote", nil),
	}
}

// quoteStore is the slice of quotes.Store the handlers touch.
type quoteStore interface {
	SaveQuote(ctx context.Context, q quotes.Quote) error
	GetQuote(ctx context.Context, id string) (quotes.Quote, error)
	ListQuotes(ctx context.Context, sessionID string, offset, limit int) ([]quotes.Quote, error)
	DeleteQuote(ctx context.Context, id string) error
	UpdatePart(ctx context.Context, p quotes.Part) error
}

type server struct {
	cfg       Config
	log       *slog.Logger
	cad       *kernel.Client
	store     quoteStore
	vectors   *similar.VectorStore
	nc        *nats.Conn
	coeffs    *pricing.Store
	extractor *feature.Extractor
	met       *apiMetrics
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sessionID scopes quotes to a browser session. Absent header means an
// anonymous shared bucket.
func sessionID(r *http.Request) string {
	if s := r.Header.Get("X-Session-ID"); s != "" {
		return s
	}
	return "anonymous"
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	kernelStatus := "ok"
	if err := s.cad.Healthy(r.Context()); err != nil {
		kernelStatus = err.Error()
	}
	version := ""
	if t := s.coeffs.Current(); t != nil {
		version = t.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "ok",
		"kernel":         kernelStatus,
		"kernel_breaker": s.cad.BreakerState().String(),
		"coefficients":   version,
	})
}

func (s *server) handleMaterials(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"materials": domain.Materials,
		"finishes":  domain.Finishes,
	})
}

// readUpload pulls the STEP file out of a multipart request.
func readUpload(r *http.Request) (name string, data []byte, err error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("missing file field: %w", err)
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}
	return hdr.Filename, data, nil
}

func (s *server) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	s.met.uploads.Inc()
	start := time.Now()

	name, data, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	solids, err := s.cad.ParseSTEP(r.Context(), name, data)
	switch {
	case errors.Is(err, kernel.ErrParseRejected):
		s.met.uploadErrors.Inc()
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, kernel.ErrKernelUnavailable):
		s.met.uploadErrors.Inc()
		writeError(w, http.StatusServiceUnavailable, "geometry service unavailable, try async upload")
		return
	case err != nil:
		s.met.uploadErrors.Inc()
		s.log.Error("kernel parse failed", "file", name, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	q, skipped := s.buildQuote(r, name, solids)
	if len(q.Parts) == 0 {
		s.met.uploadErrors.Inc()
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("no usable parts in %s (%d skipped)", name, skipped))
		return
	}

	if err := s.store.SaveQuote(r.Context(), q); err != nil {
		s.log.Error("quote save failed", "quote", q.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.indexParts(r, q)

	s.met.extractTime.Since(start)
	writeJSON(w, http.StatusCreated, quoteResponse{Quote: q, SkippedParts: skipped})
}

// buildQuote extracts features for every solid on the worker pool and
// assembles the quote. Bad solids are counted and skipped, not fatal.
func (s *server) buildQuote(r *http.Request, fileName string, solids []topo.Solid) (quotes.Quote, int) {
	q := quotes.Quote{
		ID:        nuid.Next(),
		Number:    fmt.Sprintf("Q-%s", time.Now().UTC().Format("20060102-150405")),
		SessionID: sessionID(r),
		FileName:  fileName,
		CreatedAt: time.Now().UTC(),
	}

	results := s.extractor.ExtractAll(r.Context(), solids, s.cfg.Workers)
	skipped := 0
	for _, res := range results {
		rec, err := res.Unwrap()
		if err != nil {
			skipped++
			s.met.partsFailed.Inc()
			s.log.Warn("part skipped", "file", fileName, "err", err)
			continue
		}
		s.met.partsOK.Inc()
		cfg := domain.DefaultPartConfig(rec.BBox.Height)
		// The default grade may not fit the part; config changes can fix
		// that, so the part stays on the quote.
		if err := domain.ValidatePartSize(cfg.MaterialType, cfg.Grade,
			rec.BBox.Length, rec.BBox.Width, rec.MinFeature()); err != nil {
			s.log.Warn("part outside default grade limits", "part", rec.Name, "err", err)
		}
		q.Parts = append(q.Parts, quotes.Part{
			ID:       nuid.Next(),
			Name:     rec.Name,
			Config:   cfg,
			Features: rec,
		})
	}
	return q, skipped
}

// indexParts pushes feature vectors into the similarity index. Indexing is
// best-effort; a down Qdrant never fails an upload.
func (s *server) indexParts(r *http.Request, q quotes.Quote) {
	for _, p := range q.Parts {
		if err := s.vectors.IndexPart(r.Context(), p.ID, q.ID, p.Features); err != nil {
			s.log.Warn("similarity indexing failed", "part", p.ID, "err", err)
			return
		}
	}
}

func (s *server) handleCreateQuoteAsync(w http.ResponseWriter, r *http.Request) {
	s.met.uploads.Inc()
	name, data, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := quotes.ExtractJob{
		QuoteID:   nuid.Next(),
		SessionID: sessionID(r),
		FileName:  name,
		Data:      data,
	}
	if err := natsutil.Publish(r.Context(), s.nc, quotes.SubjectExtract, job); err != nil {
		s.log.Error("extract job publish failed", "file", name, "err", err)
		writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"quote_id": job.QuoteID})
}

func (s *server) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	qs, err := s.store.ListQuotes(r.Context(), sessionID(r), 0, 100)
	if err != nil {
		s.log.Error("quote list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": qs})
}

func (s *server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.store.GetQuote(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "quote not found")
		return
	}
	if q.SessionID != sessionID(r) {
		writeError(w, http.StatusNotFound, "quote not found")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *server) handleDeleteQuote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q, err := s.store.GetQuote(r.Context(), id)
	if err != nil || q.SessionID != sessionID(r) {
		writeError(w, http.StatusNotFound, "quote not found")
		return
	}
	if err := s.store.DeleteQuote(r.Context(), id); err != nil {
		s.log.Error("quote delete failed", "quote", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.vectors.DeleteByQuote(r.Context(), id); err != nil {
		s.log.Warn("similarity cleanup failed", "quote", id, "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// quoteResponse is a saved quote plus upload bookkeeping.
type quoteResponse struct {
	quotes.Quote
	SkippedParts int `json:"skipped_parts,omitempty"`
}

// partUpdate is the PATCH body for a part's configuration.
type partUpdate struct {
	Config domain.PartConfig `json:"config"`
}

// priceError names the coefficient set a part cannot be priced without, so a
// client can distinguish "not priced yet" from "retrain before this combination
// prices".
type priceError struct {
	Error        string `json:"error"`
	MaterialType string `json:"material_type,omitempty"`
	Grade        string `json:"grade,omitempty"`
	Finish       string `json:"finish,omitempty"`
}

// pricedPart is a part with its fresh price attached, or the reason it has none.
type pricedPart struct {
	quotes.Part
	Price      *pricing.Quote `json:"price,omitempty"`
	PriceError *priceError    `json:"price_error,omitempty"`
}

func (s *server) handleUpdatePart(w http.ResponseWriter, r *http.Request) {
	q, err := s.store.GetQuote(r.Context(), r.PathValue("id"))
	if err != nil || q.SessionID != sessionID(r) {
		writeError(w, http.StatusNotFound, "quote not found")
		return
	}
	var part *quotes.Part
	for i := range q.Parts {
		if q.Parts[i].ID == r.PathValue("part") {
			part = &q.Parts[i]
			break
		}
	}
	if part == nil {
		writeError(w, http.StatusNotFound, "part not found")
		return
	}

	var upd partUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := upd.Config.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := domain.ValidatePartSize(upd.Config.MaterialType, upd.Config.Grade,
		part.Features.BBox.Length, part.Features.BBox.Width, part.Features.MinFeature()); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	part.Config = upd.Config

	resp := pricedPart{Part: *part}
	s.met.priceRequests.Inc()
	pq, err := pricing.Price(pricing.Request{
		MaterialType: part.Config.MaterialType,
		Grade:        part.Config.Grade,
		Finish:       part.Config.Finish,
		ThicknessIn:  part.Config.ThicknessIn,
		MatUseSqIn:   part.Features.MaterialUseArea,
		SurfSqIn:     part.Features.SurfaceArea,
		NumCuts:      part.Features.NumCuts(),
	}, s.coeffs.Current())
	var missing *pricing.MissingCoefficientsError
	switch {
	case errors.As(err, &missing):
		// The config change still sticks; the part just has no price, and
		// the response names the coefficient set that is absent.
		s.met.priceMissing.Inc()
		part.UnitPrice = nil
		part.PriceR2 = 0
		part.PricedWith = ""
		resp.PriceError = &priceError{
			Error:        missing.Error(),
			MaterialType: missing.MaterialType,
			Grade:        missing.Grade,
			Finish:       missing.Finish,
		}
	case err != nil:
		s.log.Error("pricing failed", "part", part.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	default:
		part.UnitPrice = &pq.UnitPrice
		part.PriceR2 = pq.Confidence.MaterialR2
		part.PricedWith = pq.Version
		resp.Price = &pq
	}

	if err := s.store.UpdatePart(r.Context(), *part); err != nil {
		s.log.Error("part update failed", "part", part.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	resp.Part = *part
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleSimilarParts(w http.ResponseWriter, r *http.Request) {
	q, err := s.store.GetQuote(r.Context(), r.PathValue("id"))
	if err != nil || q.SessionID != sessionID(r) {
		writeError(w, http.StatusNotFound, "quote not found")
		return
	}
	for _, p := range q.Parts {
		if p.ID != r.PathValue("part") {
			continue
		}
		matches, err := s.vectors.Search(r.Context(), p.Features, 5)
		if err != nil {
			s.log.Error("similarity search failed", "part", p.ID, "err", err)
			writeError(w, http.StatusServiceUnavailable, "similarity search unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
		return
	}
	writeError(w, http.StatusNotFound, "part not found")
}
