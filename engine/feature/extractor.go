package feature

import (
	"context"
	"log/slog"

	"github.com/swiftfab/quote-engine/engine/holes"
	"github.com/swiftfab/quote-engine/engine/topo"
	"github.com/swiftfab/quote-engine/pkg/fn"
)

// Tolerances bundles the knobs of a full extraction pass.
type Tolerances struct {
	Detect holes.DetectTolerances
	Merge  holes.MergeTolerances
}

// DefaultTolerances returns the shop defaults.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Detect: holes.DefaultDetectTolerances(),
		Merge:  holes.DefaultMergeTolerances(),
	}
}

// Extractor runs the walk/detect/merge/aggregate pipeline for solids.
type Extractor struct {
	tol Tolerances
	log *slog.Logger
}

// NewExtractor builds an Extractor. A nil logger falls back to the default.
func NewExtractor(tol Tolerances, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{tol: tol, log: log}
}

// walked pairs a solid with its face wire sets between pipeline stages.
type walked struct {
	solid topo.Solid
	sets  []topo.FaceWireSet
}

// detected adds face profiles and the merged inventory.
type detected struct {
	walked
	profiles []holes.FaceProfile
	holes    []holes.Hole
}

// stage builds the per-solid pipeline. Each step is traced so a slow or
// failing model shows up as a span, not a mystery.
func (e *Extractor) stage() fn.Stage[topo.Solid, Record] {
	walk := fn.TracedStage("feature.walk", func(_ context.Context, s topo.Solid) fn.Result[walked] {
		sets, err := topo.Walk(s)
		if err != nil {
			return fn.Err[walked](err)
		}
		return fn.Ok(walked{solid: s, sets: sets})
	})

	detect := fn.TracedStage("feature.detect", func(_ context.Context, w walked) fn.Result[detected] {
		d := detected{walked: w}
		var cands []holes.Candidate
		for _, set := range w.sets {
			p := holes.Detect(set, e.tol.Detect)
			d.profiles = append(d.profiles, p)
			cands = append(cands, p.Candidates...)
		}
		d.holes = holes.Merge(cands, w.solid.BBox, e.tol.Merge)
		return fn.Ok(d)
	})

	aggregate := fn.TracedStage("feature.aggregate", func(_ context.Context, d detected) fn.Result[Record] {
		return fn.Ok(Aggregate(d.solid, d.profiles, d.holes))
	})

	logged := fn.TapStage(func(_ context.Context, r Record) {
		e.log.Debug("part features aggregated",
			"part", r.Name,
			"holes", len(r.Holes),
			"cut_length_in", r.TotalCutLength)
	})

	return fn.Then(fn.Then(fn.Then(walk, detect), aggregate), logged)
}

// Extract runs the pipeline for one solid.
func (e *Extractor) Extract(ctx context.Context, s topo.Solid) fn.Result[Record] {
	return e.stage()(ctx, s)
}

// ExtractAll processes solids on a bounded worker pool. Results come back in
// input order; one part's geometry error never aborts its siblings.
func (e *Extractor) ExtractAll(ctx context.Context, solids []topo.Solid, workers int) []fn.Result[Record] {
	if workers <= 0 {
		workers = 4
	}
	stage := e.stage()
	return fn.ParMapResult(solids, workers, func(s topo.Solid) fn.Result[Record] {
		return stage(ctx, s)
	})
}
