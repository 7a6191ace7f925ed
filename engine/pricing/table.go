package pricing

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/swiftfab/quote-engine/engine/domain"
)

// MaterialKey identifies one fitted material coefficient set.
type MaterialKey struct {
	Type  string
	Grade string
}

// MarshalText encodes the key as "type/grade" so it can serve as a JSON map key.
func (k MaterialKey) MarshalText() ([]byte, error) {
	return []byte(k.Type + "/" + k.Grade), nil
}

// UnmarshalText parses "type/grade".
func (k *MaterialKey) UnmarshalText(b []byte) error {
	parts := strings.SplitN(string(b), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("bad material key %q", b)
	}
	k.Type, k.Grade = parts[0], parts[1]
	return nil
}

// FitQuality describes how well one coefficient set explains its samples.
type FitQuality struct {
	R2      float64 `json:"r2"`
	RMSE    float64 `json:"rmse"`
	Samples int     `json:"samples"`
	// Clipped marks coefficients from the clamped least squares fallback
	// rather than a converged non-negative fit.
	Clipped bool `json:"clipped,omitempty"`
}

// MaterialCoeffs prices the as-cut part: a fixed setup cost, a rate per
// square-inch-of-stock times thickness, and a rate per pierce-and-cut.
type MaterialCoeffs struct {
	BaseCost          float64    `json:"base_cost"`
	AreaThicknessRate float64    `json:"area_thickness_rate"`
	CutRate           float64    `json:"cut_rate"`
	Fit               FitQuality `json:"fit"`
	// Observed training maxima, the trust region for extrapolation checks.
	MaxAreaThickness float64 `json:"max_area_thickness"`
	MaxCuts          int     `json:"max_cuts"`
}

// FinishCoeffs prices a finish as a delta above the baseline finish.
type FinishCoeffs struct {
	BaseCost    float64              `json:"base_cost"`
	SurfaceRate float64              `json:"surface_rate"`
	Metric      domain.SurfaceMetric `json:"metric"`
	Fit         FitQuality           `json:"fit"`
	MaxSurface  float64              `json:"max_surface"`
}

// Table is one immutable fitted coefficient snapshot. Readers never see a
// partially updated table: the Store swaps whole tables atomically.
type Table struct {
	Version        string                         `json:"version"`
	FittedAt       time.Time                      `json:"fitted_at"`
	BaselineFinish string                         `json:"baseline_finish"`
	Materials      map[MaterialKey]MaterialCoeffs `json:"materials"`
	Finishes       map[string]FinishCoeffs        `json:"finishes"`
}

// Store holds the current coefficient table behind an atomic pointer.
// Pricing reads whatever snapshot is current; the trainer swaps in a new one
// only after a full successful fit.
type Store struct {
	cur atomic.Pointer[Table]
}

// NewStore returns an empty store. Current returns nil until the first Swap.
func NewStore() *Store { return &Store{} }

// Current returns the live table, or nil when nothing has been fitted yet.
func (s *Store) Current() *Table { return s.cur.Load() }

// Swap installs a new snapshot.
func (s *Store) Swap(t *Table) { s.cur.Store(t) }

// SaveSnapshot writes the table as JSON, replacing the target atomically via
// rename so a crashed writer never leaves a torn file.
func SaveSnapshot(path string, t *Table) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadSnapshot reads a table previously written by SaveSnapshot.
func LoadSnapshot(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &t, nil
}
