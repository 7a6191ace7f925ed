package pricing

import (
	"errors"
	"fmt"

	"github.com/swiftfab/quote-engine/engine/domain"
)

// ErrMissingCoefficients is the sentinel matched by errors.Is against any
// MissingCoefficientsError.
var ErrMissingCoefficients = errors.New("missing coefficients")

// MissingCoefficientsError reports which coefficient set the table lacks,
// so the API can tell the buyer exactly what cannot be priced yet.
type MissingCoefficientsError struct {
	MaterialType string
	Grade        string
	Finish       string
}

func (e *MissingCoefficientsError) Error() string {
	if e.Finish != "" {
		return fmt.Sprintf("missing coefficients for finish %q", e.Finish)
	}
	return fmt.Sprintf("missing coefficients for material %s %s", e.MaterialType, e.Grade)
}

func (e *MissingCoefficientsError) Is(target error) bool {
	return target == ErrMissingCoefficients
}

// extrapolationFactor bounds how far past the training maxima a request may
// reach before the quote is flagged as extrapolated.
const extrapolationFactor = 2.0

// Request is one priced configuration of one part.
type Request struct {
	MaterialType string
	Grade        string
	Finish       string
	ThicknessIn  float64
	MatUseSqIn   float64
	SurfSqIn     float64
	NumCuts      int
}

// Breakdown itemizes a unit price.
type Breakdown struct {
	MaterialCost float64 `json:"material_cost"`
	CutCost      float64 `json:"cut_cost"`
	FinishCost   float64 `json:"finish_cost"`
}

// Confidence carries the fit quality behind a price.
type Confidence struct {
	MaterialR2 float64 `json:"material_r2"`
	FinishR2   float64 `json:"finish_r2"`
	// Extrapolated marks a request far outside the training data's range;
	// the price is still computed but should be reviewed by a human.
	Extrapolated bool `json:"extrapolated,omitempty"`
}

// Quote is one computed unit price.
type Quote struct {
	UnitPrice  float64    `json:"unit_price"`
	Breakdown  Breakdown  `json:"breakdown"`
	Confidence Confidence `json:"confidence"`
	Version    string     `json:"coefficients_version"`
}

// Price computes a unit price for the request against the table. Missing
// coefficient sets produce a typed MissingCoefficientsError, never a guess.
func Price(req Request, t *Table) (Quote, error) {
	if t == nil {
		return Quote{}, &MissingCoefficientsError{MaterialType: req.MaterialType, Grade: req.Grade}
	}
	mc, ok := t.Materials[MaterialKey{Type: req.MaterialType, Grade: req.Grade}]
	if !ok {
		return Quote{}, &MissingCoefficientsError{MaterialType: req.MaterialType, Grade: req.Grade}
	}
	fc, ok := t.Finishes[req.Finish]
	if !ok {
		return Quote{}, &MissingCoefficientsError{Finish: req.Finish}
	}

	at := req.MatUseSqIn * req.ThicknessIn
	matCost := mc.BaseCost + mc.AreaThicknessRate*at
	cutCost := mc.CutRate * float64(req.NumCuts)

	surf := req.SurfSqIn
	if fc.Metric == domain.MetricMaterialUse {
		surf = req.MatUseSqIn
	}
	finishCost := 0.0
	if req.Finish != t.BaselineFinish {
		finishCost = fc.BaseCost + fc.SurfaceRate*surf
	}

	q := Quote{
		UnitPrice: matCost + cutCost + finishCost,
		Breakdown: Breakdown{MaterialCost: matCost, CutCost: cutCost, FinishCost: finishCost},
		Confidence: Confidence{
			MaterialR2: mc.Fit.R2,
			FinishR2:   fc.Fit.R2,
		},
		Version: t.Version,
	}
	if at > extrapolationFactor*mc.MaxAreaThickness ||
		float64(req.NumCuts) > extrapolationFactor*float64(mc.MaxCuts) ||
		(req.Finish != t.BaselineFinish && surf > extrapolationFactor*fc.MaxSurface) {
		q.Confidence.Extrapolated = true
	}
	return q, nil
}
