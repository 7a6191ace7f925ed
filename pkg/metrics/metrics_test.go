package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounterIncAdd(t *testing.T) {
	r := New()
	c := r.Counter("extract_total", "Total extractions")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Fatalf("counter = %d, want 5", c.Value())
	}
	// Same name returns the same counter.
	if r.Counter("extract_total", "") != c {
		t.Fatal("Counter should return the existing instance")
	}
}

func TestGauge(t *testing.T) {
	r := New()
	g := r.Gauge("active_parts", "")
	g.Set(3)
	g.Inc()
	g.Dec()
	if g.Value() != 3 {
		t.Fatalf("gauge = %d, want 3", g.Value())
	}
	g.SetFloat(1.5)
	if g.FloatValue() != 1.5 {
		t.Fatalf("float gauge = %g, want 1.5", g.FloatValue())
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := New()
	h := r.Histogram("extract_seconds", "", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(100) // beyond all buckets, counted only in +Inf

	out := r.Render()
	if !strings.Contains(out, `extract_seconds_bucket{le="0.1"} 1`) {
		t.Errorf("missing 0.1 bucket line:\n%s", out)
	}
	if !strings.Contains(out, `extract_seconds_bucket{le="1"} 2`) {
		t.Errorf("buckets should be cumulative:\n%s", out)
	}
	if !strings.Contains(out, `extract_seconds_bucket{le="+Inf"} 3`) {
		t.Errorf("missing +Inf bucket:\n%s", out)
	}
	if !strings.Contains(out, "extract_seconds_count 3") {
		t.Errorf("missing count:\n%s", out)
	}
}

func TestHistogramSince(t *testing.T) {
	r := New()
	h := r.Histogram("dur", "", nil)
	h.Since(time.Now().Add(-time.Millisecond))
	_, _, sum, count := h.snapshot()
	if count != 1 || sum <= 0 {
		t.Fatalf("snapshot = sum %g count %d", sum, count)
	}
}

func TestWithLabels(t *testing.T) {
	tests := []struct {
		name string
		kvs  []string
		want string
	}{
		{"jobs", []string{"stage", "walk"}, `jobs{stage="walk"}`},
		{"jobs", []string{"a", "1", "b", "2"}, `jobs{a="1",b="2"}`},
		{"jobs", nil, "jobs"},
		{"jobs", []string{"odd"}, "jobs"},
	}
	for _, tt := range tests {
		if got := WithLabels(tt.name, tt.kvs...); got != tt.want {
			t.Errorf("WithLabels(%q, %v) = %q, want %q", tt.name, tt.kvs, got, tt.want)
		}
	}
}

func TestRenderLabeledCounters(t *testing.T) {
	r := New()
	r.Counter(WithLabels("errors_total", "stage", "walk"), "Errors by stage").Inc()
	r.Counter(WithLabels("errors_total", "stage", "merge"), "").Add(2)

	out := r.Render()
	if !strings.Contains(out, "# TYPE errors_total counter") {
		t.Errorf("TYPE line should use the base name:\n%s", out)
	}
	if !strings.Contains(out, `errors_total{stage="merge"} 2`) {
		t.Errorf("missing merge label line:\n%s", out)
	}
	if !strings.Contains(out, `errors_total{stage="walk"} 1`) {
		t.Errorf("missing walk label line:\n%s", out)
	}
	if strings.Count(out, "# TYPE errors_total") != 1 {
		t.Errorf("base name should be typed once:\n%s", out)
	}
}

func TestHandlerServesText(t *testing.T) {
	r := New()
	r.Counter("hits", "Hits").Inc()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
}
