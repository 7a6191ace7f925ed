package holes

import (
	"math"

	"github.com/swiftfab/quote-engine/engine/topo"
)

// Kind says whether a hole goes all the way through the sheet.
type Kind string

const (
	KindThrough Kind = "through"
	KindBlind   Kind = "blind"
)

// Hole is one physical hole in the part, after front/back merging.
type Hole struct {
	Kind      Kind      `json:"kind"`
	Shape     Shape     `json:"shape"`
	Diameter  float64   `json:"diameter_in"`
	Width     float64   `json:"width_in"`
	Height    float64   `json:"height_in"`
	Perimeter float64   `json:"perimeter_in"`
	Centroid  topo.Vec3 `json:"centroid"`
	// Depth is only meaningful when DepthKnown is true. A blind hole whose
	// floor face was not seen in the walk has unknown depth.
	Depth      float64 `json:"depth_in"`
	DepthKnown bool    `json:"depth_known"`
}

// MergeTolerances controls front/back opening matching.
type MergeTolerances struct {
	// Position is the maximum in-plane centroid distance between matched
	// openings, in inches.
	Position float64
	// DiameterRel is the maximum relative difference between matched
	// equivalent diameters.
	DiameterRel float64
	// MinFaceSeparation is the minimum distance along the thickness axis
	// between two openings for them to be a front/back pair rather than
	// coincident profiles on one face.
	MinFaceSeparation float64
}

// DefaultMergeTolerances matches openings the way a machinist would eyeball
// them on a typical sheet part.
func DefaultMergeTolerances() MergeTolerances {
	return MergeTolerances{
		Position:          0.01,
		DiameterRel:       0.02,
		MinFaceSeparation: 0.05,
	}
}

// Merge pairs openings on opposite faces of the sheet into through holes and
// leaves the rest as blind. The thickness axis is the smallest bounding box
// extent; candidates split into front and back by centroid position along it.
//
// Matching is greedy nearest-neighbor: fronts in deterministic order each
// claim the closest unclaimed back opening that agrees in position and
// diameter. Greedy matching is stable under re-runs of identical input,
// which keeps extraction idempotent.
func Merge(cands []Candidate, bbox topo.BoundingBox, tol MergeTolerances) []Hole {
	if len(cands) == 0 {
		return nil
	}
	axis := bbox.ThicknessAxis()
	mid := bbox.Center().Axis(axis)
	frontPlane := bbox.Max.Axis(axis)
	backPlane := bbox.Min.Axis(axis)

	var front, back []Candidate
	for _, c := range cands {
		if c.Centroid.Axis(axis) >= mid {
			front = append(front, c)
		} else {
			back = append(back, c)
		}
	}
	SortCandidates(front)
	SortCandidates(back)

	claimed := make([]bool, len(back))
	var holes []Hole
	for _, f := range front {
		best, bestDist := -1, math.Inf(1)
		for i, b := range back {
			if claimed[i] {
				continue
			}
			if !matches(f, b, axis, tol) {
				continue
			}
			if d := planarDist(f.Centroid, b.Centroid, axis); d < bestDist {
				best, bestDist = i, d
			}
		}
		if best < 0 {
			holes = append(holes, blind(f, axis, frontPlane, backPlane, tol))
			continue
		}
		b := back[best]
		claimed[best] = true
		holes = append(holes, Hole{
			Kind:  KindThrough,
			Shape: f.Shape,
			// Opposite openings of one hole can measure slightly apart;
			// average rather than prefer a side.
			Diameter:  (f.Diameter + b.Diameter) / 2,
			Width:     (f.Width + b.Width) / 2,
			Height:    (f.Height + b.Height) / 2,
			Perimeter: (f.Perimeter + b.Perimeter) / 2,
			Centroid:  f.Centroid.Add(b.Centroid).Scale(0.5),
			Depth:     bbox.Extent(axis),
			DepthKnown: true,
		})
	}
	for i, b := range back {
		if !claimed[i] {
			holes = append(holes, blind(b, axis, frontPlane, backPlane, tol))
		}
	}
	return holes
}

func matches(a, b Candidate, axis int, tol MergeTolerances) bool {
	if a.Shape != b.Shape && a.Shape != ShapeIrregular && b.Shape != ShapeIrregular {
		return false
	}
	if planarDist(a.Centroid, b.Centroid, axis) > tol.Position {
		return false
	}
	max := math.Max(a.Diameter, b.Diameter)
	if max <= 0 {
		return false
	}
	if math.Abs(a.Diameter-b.Diameter)/max > tol.DiameterRel {
		return false
	}
	return math.Abs(a.Centroid.Axis(axis)-b.Centroid.Axis(axis)) > tol.MinFaceSeparation
}

// planarDist is the centroid distance projected onto the sheet plane.
func planarDist(a, b topo.Vec3, axis int) float64 {
	au, av := a.ProjectUV(axis)
	bu, bv := b.ProjectUV(axis)
	du, dv := au-bu, av-bv
	return math.Sqrt(du*du + dv*dv)
}

// blind builds a blind hole from an unmatched opening. Depth is known only
// when the opening sits strictly between the sheet's outer planes, meaning
// the wire lies on a pocket floor: depth is then the offset to the nearer
// outer plane.
func blind(c Candidate, axis int, frontPlane, backPlane float64, tol MergeTolerances) Hole {
	h := Hole{
		Kind:      KindBlind,
		Shape:     c.Shape,
		Diameter:  c.Diameter,
		Width:     c.Width,
		Height:    c.Height,
		Perimeter: c.Perimeter,
		Centroid:  c.Centroid,
	}
	at := c.Centroid.Axis(axis)
	toFront := math.Abs(frontPlane - at)
	toBack := math.Abs(at - backPlane)
	if toFront > tol.MinFaceSeparation && toBack > tol.MinFaceSeparation {
		h.Depth = math.Min(toFront, toBack)
		h.DepthKnown = true
	}
	return h
}
