// Package feature aggregates walked topology and detected holes into the
// per-part record that drives pricing and similarity search.
package feature

import (
	"math"

	"github.com/swiftfab/quote-engine/engine/holes"
	"github.com/swiftfab/quote-engine/engine/topo"
)

// Dims is a part's sorted bounding box: length >= width >= height, where
// height is the sheet thickness.
type Dims struct {
	Length float64 `json:"length_in"`
	Width  float64 `json:"width_in"`
	Height float64 `json:"height_in"`
}

// Record is one part's extracted feature set. Built once per extraction and
// never mutated afterwards; re-pricing reads it, it does not write it.
type Record struct {
	Name        string       `json:"name"`
	BBox        Dims         `json:"bbox"`
	Volume      float64      `json:"volume_cuin"`
	SurfaceArea float64      `json:"surface_area_sqin"`
	Holes       []holes.Hole `json:"holes"`
	// TotalCutLength is the laser path: the part's outer profile plus
	// every hole's perimeter.
	TotalCutLength float64 `json:"total_cut_length_in"`
	// MaterialUseArea is the flat stock rectangle consumed, length x width.
	MaterialUseArea float64 `json:"material_use_sqin"`
}

// NumCuts counts pierce-and-cut operations: one per hole plus the outer
// profile.
func (r Record) NumCuts() int { return len(r.Holes) + 1 }

// MinFeature returns the smallest cut dimension on the part: the tightest
// hole diameter or slot/rectangle width. Zero when the part has no interior
// cuts.
func (r Record) MinFeature() float64 {
	min := 0.0
	for _, h := range r.Holes {
		d := h.Diameter
		if h.Width > 0 && (h.Width < d || d == 0) {
			d = h.Width
		}
		if h.Height > 0 && h.Height < d {
			d = h.Height
		}
		if d > 0 && (min == 0 || d < min) {
			min = d
		}
	}
	return min
}

// NumThrough counts through holes.
func (r Record) NumThrough() int {
	n := 0
	for _, h := range r.Holes {
		if h.Kind == holes.KindThrough {
			n++
		}
	}
	return n
}

// Aggregate combines a solid's measured properties, its face profiles and
// the merged hole inventory into a Record. The outer profile length is taken
// from the face with the largest outer area, the part's primary face.
func Aggregate(s topo.Solid, profiles []holes.FaceProfile, inventory []holes.Hole) Record {
	l, w, h := s.BBox.Dims()

	var outer float64
	var bestArea float64
	for _, p := range profiles {
		if p.OuterArea > bestArea {
			bestArea = p.OuterArea
			outer = p.OuterPerimeter
		}
	}

	cut := outer
	for _, hole := range inventory {
		cut += hole.Perimeter
	}

	return Record{
		Name:            s.Name,
		BBox:            Dims{Length: l, Width: w, Height: h},
		Volume:          s.Volume,
		SurfaceArea:     s.SurfaceArea,
		Holes:           inventory,
		TotalCutLength:  cut,
		MaterialUseArea: l * w,
	}
}

// VectorDims is the embedding size produced by Vector.
const VectorDims = 10

// Vector flattens a record into the similarity-search embedding. Values are
// log-compressed so a large plate does not drown out hole structure under
// cosine distance.
func Vector(r Record) []float32 {
	var sumD float64
	for _, h := range r.Holes {
		sumD += h.Diameter
	}
	avgD := 0.0
	if len(r.Holes) > 0 {
		avgD = sumD / float64(len(r.Holes))
	}
	raw := []float64{
		r.BBox.Length,
		r.BBox.Width,
		r.BBox.Height,
		r.Volume,
		r.SurfaceArea,
		r.MaterialUseArea,
		r.TotalCutLength,
		float64(len(r.Holes)),
		float64(r.NumThrough()),
		avgD,
	}
	out := make([]float32, VectorDims)
	for i, v := range raw {
		out[i] = float32(math.Log1p(v))
	}
	return out
}
