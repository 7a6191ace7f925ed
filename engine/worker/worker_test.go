package worker

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/swiftfab/quote-engine/engine/feature"
	"github.com/swiftfab/quote-engine/engine/kernel"
	"github.com/swiftfab/quote-engine/engine/quotes"
)

// kernelStub serves one canned parse response.
func kernelStub(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

// plateJSON is a 254x127x3.175mm plate with top and bottom faces, no holes.
const plateJSON = `{"solids":[{
	"name":"plate",
	"volume":102419.0,
	"surface_area":66876.7,
	"bbox":{"min":{"x":0,"y":0,"z":0},"max":{"x":254,"y":127,"z":3.175}},
	"faces":[
		{"id":1,"normal":{"x":0,"y":0,"z":1},"planar":true,"wires":[{"points":[
			{"x":0,"y":0,"z":3.175},{"x":254,"y":0,"z":3.175},{"x":254,"y":127,"z":3.175},{"x":0,"y":127,"z":3.175}]}]},
		{"id":2,"normal":{"x":0,"y":0,"z":-1},"planar":true,"wires":[{"points":[
			{"x":0,"y":0,"z":0},{"x":254,"y":0,"z":0},{"x":254,"y":127,"z":0},{"x":0,"y":127,"z":0}]}]}
	]
}]}`

type fakeStore struct {
	saved   []quotes.Quote
	saveErr error
}

func (f *fakeStore) SaveQuote(_ context.Context, q quotes.Quote) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, q)
	return nil
}

type fakeIndexer struct {
	indexed []string
}

func (f *fakeIndexer) IndexPart(_ context.Context, partID, _ string, _ feature.Record) error {
	f.indexed = append(f.indexed, partID)
	return nil
}

func testDeps(t *testing.T, kernelURL string, store *fakeStore, idx *fakeIndexer) Deps {
	t.Helper()
	opts := kernel.DefaultOpts(kernelURL)
	opts.RPS = 1000
	opts.Burst = 1000
	opts.Timeout = 2 * time.Second
	d := Deps{
		Kernel:    kernel.New(opts, nil),
		Store:     store,
		Extractor: feature.NewExtractor(feature.DefaultTolerances(), nil),
		Workers:   2,
	}
	if idx != nil {
		d.Indexer = idx
	}
	return d
}

func TestProcessEndToEnd(t *testing.T) {
	srv := kernelStub(t, http.StatusOK, plateJSON)
	defer srv.Close()

	store := &fakeStore{}
	idx := &fakeIndexer{}
	deps := testDeps(t, srv.URL, store, idx)

	job := quotes.ExtractJob{
		QuoteID: "q-1", SessionID: "sess", FileName: "plate.step", Data: []byte("ISO-10303-21;"),
	}
	if err := Process(context.Background(), deps, job); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("saved quotes = %d", len(store.saved))
	}
	q := store.saved[0]
	if q.ID != "q-1" || q.SessionID != "sess" || len(q.Parts) != 1 {
		t.Fatalf("quote = %+v", q)
	}
	p := q.Parts[0]
	if math.Abs(p.Features.BBox.Length-10) > 1e-9 || math.Abs(p.Features.BBox.Height-0.125) > 1e-9 {
		t.Fatalf("features = %+v", p.Features.BBox)
	}
	if math.Abs(p.Config.ThicknessIn-0.125) > 1e-9 {
		t.Fatalf("default config thickness = %v", p.Config.ThicknessIn)
	}
	if len(idx.indexed) != 1 {
		t.Fatalf("indexed = %v", idx.indexed)
	}
}

func TestProcessRejectedFile(t *testing.T) {
	srv := kernelStub(t, http.StatusUnprocessableEntity, "not a STEP file")
	defer srv.Close()

	deps := testDeps(t, srv.URL, &fakeStore{}, nil)
	err := Process(context.Background(), deps, quotes.ExtractJob{QuoteID: "q", FileName: "junk.bin"})
	if err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Fatalf("err = %v, want rejection", err)
	}
}

func TestProcessNoUsableParts(t *testing.T) {
	// Kernel answers with a faceless solid; extraction fails every part.
	srv := kernelStub(t, http.StatusOK, `{"solids":[{"name":"ghost","bbox":{"min":{},"max":{}}}]}`)
	defer srv.Close()

	deps := testDeps(t, srv.URL, &fakeStore{}, nil)
	err := Process(context.Background(), deps, quotes.ExtractJob{QuoteID: "q", FileName: "ghost.step"})
	if err == nil || !strings.Contains(err.Error(), "no usable parts") {
		t.Fatalf("err = %v", err)
	}
}

func TestProcessSaveFailure(t *testing.T) {
	srv := kernelStub(t, http.StatusOK, plateJSON)
	defer srv.Close()

	store := &fakeStore{saveErr: fmt.Errorf("neo4j down")}
	deps := testDeps(t, srv.URL, store, nil)
	err := Process(context.Background(), deps, quotes.ExtractJob{QuoteID: "q", FileName: "plate.step"})
	if err == nil || !strings.Contains(err.Error(), "save quote") {
		t.Fatalf("err = %v", err)
	}
}
