package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/swiftfab/quote-engine/engine/domain"
	"github.com/swiftfab/quote-engine/engine/feature"
	"github.com/swiftfab/quote-engine/engine/holes"
	"github.com/swiftfab/quote-engine/engine/pricing"
	"github.com/swiftfab/quote-engine/engine/quotes"
	"github.com/swiftfab/quote-engine/pkg/metrics"
)

type fakeQuoteStore struct {
	quote       quotes.Quote
	getErr      error
	updatedPart *quotes.Part
}

func (f *fakeQuoteStore) SaveQuote(_ context.Context, q quotes.Quote) error { f.quote = q; return nil }
func (f *fakeQuoteStore) GetQuote(_ context.Context, _ string) (quotes.Quote, error) {
	return f.quote, f.getErr
}
func (f *fakeQuoteStore) ListQuotes(_ context.Context, _ string, _, _ int) ([]quotes.Quote, error) {
	return []quotes.Quote{f.quote}, nil
}
func (f *fakeQuoteStore) DeleteQuote(_ context.Context, _ string) error { return nil }
func (f *fakeQuoteStore) UpdatePart(_ context.Context, p quotes.Part) error {
	f.updatedPart = &p
	return nil
}

func storedQuote() quotes.Quote {
	return quotes.Quote{
		ID:        "q-1",
		SessionID: "anonymous",
		Parts: []quotes.Part{{
			ID:   "p-1",
			Name: "bracket",
			Config: domain.PartConfig{
				MaterialType: "Aluminum", Grade: "5052-H32",
				Finish: domain.BaselineFinish, ThicknessIn: 0.125, Quantity: 1,
			},
			Features: feature.Record{
				Name:            "bracket",
				BBox:            feature.Dims{Length: 10, Width: 5, Height: 0.125},
				SurfaceArea:     104,
				MaterialUseArea: 50,
				TotalCutLength:  33.1,
				Holes:           []holes.Hole{{Kind: holes.KindThrough, Shape: holes.ShapeCircular, Diameter: 0.5}},
			},
		}},
	}
}

func fittedTable() *pricing.Table {
	return &pricing.Table{
		Version:        "v-test",
		BaselineFinish: domain.BaselineFinish,
		Materials: map[pricing.MaterialKey]pricing.MaterialCoeffs{
			{Type: "Aluminum", Grade: "5052-H32"}: {
				BaseCost: 5, AreaThicknessRate: 2, CutRate: 0.5,
				Fit:              pricing.FitQuality{R2: 0.98, Samples: 20},
				MaxAreaThickness: 100, MaxCuts: 40,
			},
		},
		Finishes: map[string]pricing.FinishCoeffs{
			domain.BaselineFinish: {Metric: domain.MetricMaterialUse, Fit: pricing.FitQuality{R2: 1}},
		},
	}
}

func newTestServer(store quoteStore, table *pricing.Table) *server {
	coeffs := pricing.NewStore()
	if table != nil {
		coeffs.Swap(table)
	}
	return &server{
		log:    slog.Default(),
		store:  store,
		coeffs: coeffs,
		met:    newAPIMetrics(metrics.New()),
	}
}

func patchPart(t *testing.T, s *server, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PATCH", "/api/quotes/q-1/parts/p-1", bytes.NewBufferString(body))
	req.SetPathValue("id", "q-1")
	req.SetPathValue("part", "p-1")
	s.handleUpdatePart(rec, req)
	return rec
}

func TestUpdatePartPrices(t *testing.T) {
	store := &fakeQuoteStore{quote: storedQuote()}
	s := newTestServer(store, fittedTable())

	rec := patchPart(t, s, `{"config":{"material_type":"Aluminum","grade":"5052-H32","finish":"No Deburring","thickness_in":0.125,"quantity":1}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp pricedPart
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Price == nil || resp.PriceError != nil {
		t.Fatalf("price = %+v, price_error = %+v", resp.Price, resp.PriceError)
	}
	// base 5 + 2*(50*0.125) + 0.5*2 cuts
	if want := 5 + 2*6.25 + 0.5*2; resp.Price.UnitPrice != want {
		t.Fatalf("unit price = %v, want %v", resp.Price.UnitPrice, want)
	}
	if store.updatedPart == nil || store.updatedPart.UnitPrice == nil {
		t.Fatalf("persisted part = %+v", store.updatedPart)
	}
}

func TestUpdatePartMissingCoefficientsSurfaced(t *testing.T) {
	store := &fakeQuoteStore{quote: storedQuote()}
	s := newTestServer(store, fittedTable())

	// A36 has no fitted coefficients in the table.
	rec := patchPart(t, s, `{"config":{"material_type":"Steel","grade":"A36","finish":"No Deburring","thickness_in":0.125,"quantity":1}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp pricedPart
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Price != nil {
		t.Fatalf("unexpected price %+v", resp.Price)
	}
	if resp.PriceError == nil || resp.PriceError.MaterialType != "Steel" || resp.PriceError.Grade != "A36" {
		t.Fatalf("price_error = %+v", resp.PriceError)
	}
	// Config change persists even though the price does not.
	if store.updatedPart == nil || store.updatedPart.Config.Grade != "A36" || store.updatedPart.UnitPrice != nil {
		t.Fatalf("persisted part = %+v", store.updatedPart)
	}
}

func TestUpdatePartRejectsOversizedPart(t *testing.T) {
	q := storedQuote()
	q.Parts[0].Features.BBox = feature.Dims{Length: 60, Width: 50, Height: 0.125}
	store := &fakeQuoteStore{quote: q}
	s := newTestServer(store, fittedTable())

	// 7075-T6 stock tops out at 48x48.
	rec := patchPart(t, s, `{"config":{"material_type":"Aluminum","grade":"7075-T6","finish":"No Deburring","thickness_in":0.125,"quantity":1}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if store.updatedPart != nil {
		t.Fatalf("oversized config persisted: %+v", store.updatedPart)
	}
}

func TestUpdatePartRejectsInvalidConfig(t *testing.T) {
	store := &fakeQuoteStore{quote: storedQuote()}
	s := newTestServer(store, fittedTable())

	rec := patchPart(t, s, `{"config":{"material_type":"Aluminum","grade":"nope","finish":"No Deburring","thickness_in":0.125,"quantity":1}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestUpdatePartUnknownQuote(t *testing.T) {
	store := &fakeQuoteStore{getErr: errors.New("not found")}
	s := newTestServer(store, nil)

	rec := patchPart(t, s, `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
