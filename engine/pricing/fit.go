package pricing

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/swiftfab/quote-engine/engine/domain"
	"github.com/swiftfab/quote-engine/pkg/fn"
)

// ErrNoFits means not a single material group had enough samples to fit.
var ErrNoFits = errors.New("no coefficient set could be fitted")

// FitOptions controls a training pass.
type FitOptions struct {
	// BaselineFinish anchors both passes: material coefficients fit on its
	// rows only, finish coefficients fit on deltas against it.
	BaselineFinish string
	// MinSamples is the smallest group worth fitting. Groups below it are
	// skipped and stay unavailable in the table.
	MinSamples int
	Log        *slog.Logger
}

// DefaultFitOptions returns the trainer defaults.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		BaselineFinish: domain.BaselineFinish,
		MinSamples:     3,
	}
}

// Fit runs both regression passes over the rows and returns a fresh table.
// It fails only when no group at all could be fitted; sparse groups are
// skipped individually and logged.
func Fit(rows []Row, opts FitOptions) (*Table, error) {
	if opts.BaselineFinish == "" {
		opts.BaselineFinish = domain.BaselineFinish
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = 3
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	now := time.Now().UTC()
	t := &Table{
		Version:        now.Format("20060102T150405Z"),
		FittedAt:       now,
		BaselineFinish: opts.BaselineFinish,
		Materials:      fitMaterials(rows, opts, log),
		Finishes:       fitFinishes(rows, opts, log),
	}
	// The baseline finish is free and exact by construction.
	t.Finishes[opts.BaselineFinish] = FinishCoeffs{
		Metric: domain.MetricMaterialUse,
		Fit:    FitQuality{R2: 1, Samples: len(rows)},
	}
	if len(t.Materials) == 0 {
		return nil, fmt.Errorf("%w: %d rows", ErrNoFits, len(rows))
	}
	return t, nil
}

// fitMaterials fits base/area-thickness/cut coefficients per material grade
// on the baseline finish rows.
func fitMaterials(rows []Row, opts FitOptions, log *slog.Logger) map[MaterialKey]MaterialCoeffs {
	groups := fn.GroupBy(
		fn.Filter(rows, func(r Row) bool { return r.Finish == opts.BaselineFinish }),
		func(r Row) MaterialKey { return MaterialKey{Type: r.MaterialType, Grade: r.Grade} })

	out := map[MaterialKey]MaterialCoeffs{}
	for _, k := range sortedMaterialKeys(groups) {
		g := groups[k]
		if len(g) < opts.MinSamples {
			log.Warn("skipping material fit, too few samples",
				"material", k.Type, "grade", k.Grade, "samples", len(g), "min", opts.MinSamples)
			continue
		}

		const cols = 3
		x := make([]float64, 0, len(g)*cols)
		y := make([]float64, 0, len(g))
		mc := MaterialCoeffs{}
		for _, r := range g {
			at := r.MatUseSqIn * r.ThicknessIn
			x = append(x, 1, at, float64(r.NumCuts))
			y = append(y, r.Price)
			if at > mc.MaxAreaThickness {
				mc.MaxAreaThickness = at
			}
			if r.NumCuts > mc.MaxCuts {
				mc.MaxCuts = r.NumCuts
			}
		}

		b, converged := nnls(x, len(g), cols, y)
		clipped := false
		if !converged {
			var ok bool
			if b, ok = olsClip(x, len(g), cols, y); !ok {
				log.Warn("material fit failed outright", "material", k.Type, "grade", k.Grade)
				continue
			}
			clipped = true
		}

		yhat := make([]float64, len(g))
		for i := 0; i < len(g); i++ {
			yhat[i] = b[0] + b[1]*x[i*cols+1] + b[2]*x[i*cols+2]
		}
		r2, rmse := fitStats(y, yhat)

		mc.BaseCost, mc.AreaThicknessRate, mc.CutRate = b[0], b[1], b[2]
		mc.Fit = FitQuality{R2: r2, RMSE: rmse, Samples: len(g), Clipped: clipped}
		out[k] = mc
		log.Info("fitted material coefficients",
			"material", k.Type, "grade", k.Grade, "samples", len(g), "r2", r2, "clipped", clipped)
	}
	return out
}

// fitFinishes fits each non-baseline finish as a delta regression: rows are
// matched to the baseline row of the same part, material, grade and
// thickness, and the price difference is regressed on the finish's billed
// surface metric.
func fitFinishes(rows []Row, opts FitOptions, log *slog.Logger) map[string]FinishCoeffs {
	type matchKey struct {
		part, mat, grade string
		thickness        float64
	}
	baseline := map[matchKey]Row{}
	for _, r := range rows {
		if r.Finish == opts.BaselineFinish {
			baseline[matchKey{r.PartNumber, r.MaterialType, r.Grade, r.ThicknessIn}] = r
		}
	}

	groups := fn.GroupBy(
		fn.Filter(rows, func(r Row) bool { return r.Finish != opts.BaselineFinish }),
		func(r Row) string { return r.Finish })

	out := map[string]FinishCoeffs{}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		metric := domain.MetricTrueSurface
		if f, err := domain.FindFinish(name); err == nil {
			metric = f.Metric
		}

		var x, y []float64
		fc := FinishCoeffs{Metric: metric}
		matched := 0
		for _, r := range groups[name] {
			base, ok := baseline[matchKey{r.PartNumber, r.MaterialType, r.Grade, r.ThicknessIn}]
			if !ok {
				continue
			}
			surf := r.SurfSqIn
			if metric == domain.MetricMaterialUse {
				surf = r.MatUseSqIn
			}
			x = append(x, 1, surf)
			y = append(y, r.Price-base.Price)
			if surf > fc.MaxSurface {
				fc.MaxSurface = surf
			}
			matched++
		}
		if matched < opts.MinSamples {
			log.Warn("skipping finish fit, too few matched samples",
				"finish", name, "matched", matched, "min", opts.MinSamples)
			continue
		}

		const cols = 2
		b, converged := nnls(x, matched, cols, y)
		clipped := false
		if !converged {
			var ok bool
			if b, ok = olsClip(x, matched, cols, y); !ok {
				log.Warn("finish fit failed outright", "finish", name)
				continue
			}
			clipped = true
		}

		yhat := make([]float64, matched)
		for i := 0; i < matched; i++ {
			yhat[i] = b[0] + b[1]*x[i*cols+1]
		}
		r2, rmse := fitStats(y, yhat)

		fc.BaseCost, fc.SurfaceRate = b[0], b[1]
		fc.Fit = FitQuality{R2: r2, RMSE: rmse, Samples: matched, Clipped: clipped}
		out[name] = fc
		log.Info("fitted finish coefficients", "finish", name, "samples", matched, "r2", r2)
	}
	return out
}

func sortedMaterialKeys(m map[MaterialKey][]Row) []MaterialKey {
	keys := make([]MaterialKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].Grade < keys[j].Grade
	})
	return keys
}
