// Package holes turns face wire sets into a hole inventory: it identifies
// each face's outer boundary, classifies the inner cut profiles, and merges
// the openings on opposite faces of the sheet into through and blind holes.
package holes

import (
	"math"
	"sort"

	"github.com/swiftfab/quote-engine/engine/topo"
)

// Shape classifies a cut profile.
type Shape string

const (
	ShapeCircular    Shape = "circular"
	ShapeRectangular Shape = "rectangular"
	ShapeSlot        Shape = "slot"
	ShapeIrregular   Shape = "irregular"
)

// OuterPick records which strategy identified a face's outer wire, for
// debugging odd models.
type OuterPick string

const (
	// OuterSingle: the face had exactly one wire.
	OuterSingle OuterPick = "single"
	// OuterContainsAll: exactly one wire's projected bounds contain every
	// other wire's.
	OuterContainsAll OuterPick = "contains_all"
	// OuterMostContained: the wire whose bounds contain the most siblings,
	// breaking ties by area.
	OuterMostContained OuterPick = "most_contained"
	// OuterLargestArea: last resort, the largest enclosed area.
	OuterLargestArea OuterPick = "largest_area"
)

// Candidate is one inner wire's profile on a single face, before merging.
type Candidate struct {
	FaceID    int
	WireIndex int
	Shape     Shape
	// Diameter is the equivalent diameter 2*sqrt(area/pi), comparable
	// across shapes.
	Diameter  float64
	Width     float64
	Height    float64
	Area      float64
	Perimeter float64
	Centroid  topo.Vec3
	Normal    topo.Vec3
}

// FaceProfile is one face's detection result.
type FaceProfile struct {
	FaceID         int
	OuterIndex     int
	OuterPick      OuterPick
	OuterPerimeter float64
	OuterArea      float64
	Candidates     []Candidate
}

// DetectTolerances controls outer wire picking and shape classification.
type DetectTolerances struct {
	// ContainSlack expands projected bounds during containment tests, in
	// inches, so profiles touching the boundary still register.
	ContainSlack float64
	// CircularityBand is the allowed relative spread of centroid-to-vertex
	// radii for a circular call.
	CircularityBand float64
	// SlotAspectMin is the minimum width/height aspect for a slot call.
	SlotAspectMin float64
	// ShapeBand is the allowed relative error against the ideal perimeter
	// identity for slot and rectangle calls.
	ShapeBand float64
}

// DefaultDetectTolerances fits parts drawn in inches at typical sheet scale.
func DefaultDetectTolerances() DetectTolerances {
	return DetectTolerances{
		ContainSlack:    0.001,
		CircularityBand: 0.10,
		SlotAspectMin:   2.0,
		ShapeBand:       0.05,
	}
}

// Detect identifies the outer wire of one face and classifies the rest as
// hole candidates. A face with a single wire has no holes.
func Detect(fws topo.FaceWireSet, tol DetectTolerances) FaceProfile {
	axis := dominantAxis(fws.Normal)

	outer, pick := pickOuter(fws.Wires, axis, tol.ContainSlack)
	p := FaceProfile{
		FaceID:         fws.FaceID,
		OuterIndex:     outer,
		OuterPick:      pick,
		OuterPerimeter: fws.Wires[outer].Perimeter(),
		OuterArea:      fws.Wires[outer].Area(),
	}
	for wi, w := range fws.Wires {
		if wi == outer {
			continue
		}
		p.Candidates = append(p.Candidates, classify(fws, wi, w, axis, tol))
	}
	return p
}

// dominantAxis returns the axis the face normal is most aligned with, the
// projection axis for that face's wires.
func dominantAxis(n topo.Vec3) int {
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	switch {
	case ax >= ay && ax >= az:
		return 0
	case ay >= az:
		return 1
	default:
		return 2
	}
}

// pickOuter runs the strategy chain: perfect containment, most contained
// with area tiebreak, then largest area.
func pickOuter(wires []topo.Wire, axis int, slack float64) (int, OuterPick) {
	if len(wires) == 1 {
		return 0, OuterSingle
	}

	rects := make([]topo.Rect, len(wires))
	for i, w := range wires {
		rects[i] = w.ProjectRect(axis)
	}

	counts := make([]int, len(wires))
	perfect := -1
	for i := range wires {
		all := true
		for j := range wires {
			if i == j {
				continue
			}
			if rects[i].Contains(rects[j], slack) {
				counts[i]++
			} else {
				all = false
			}
		}
		if all {
			if perfect >= 0 {
				// Two wires each contain everything: coincident bounds,
				// fall through to the area tiebreak.
				perfect = -2
			} else if perfect == -1 {
				perfect = i
			}
		}
	}
	if perfect >= 0 {
		return perfect, OuterContainsAll
	}

	best, bestCount := -1, 0
	for i, c := range counts {
		switch {
		case c > bestCount:
			best, bestCount = i, c
		case c == bestCount && c > 0 && wires[i].Area() > wires[best].Area():
			best = i
		}
	}
	if best >= 0 {
		return best, OuterMostContained
	}

	largest := 0
	for i := 1; i < len(wires); i++ {
		if wires[i].Area() > wires[largest].Area() {
			largest = i
		}
	}
	return largest, OuterLargestArea
}

func classify(fws topo.FaceWireSet, wi int, w topo.Wire, axis int, tol DetectTolerances) Candidate {
	area := w.Area()
	perim := w.Perimeter()
	r := w.ProjectRect(axis)
	width := r.MaxU - r.MinU
	height := r.MaxV - r.MinV
	c := Candidate{
		FaceID:    fws.FaceID,
		WireIndex: wi,
		Diameter:  2 * math.Sqrt(area/math.Pi),
		Width:     width,
		Height:    height,
		Area:      area,
		Perimeter: perim,
		Centroid:  w.Centroid(),
		Normal:    fws.Normal,
	}

	switch {
	case isCircular(w, c.Centroid, tol.CircularityBand):
		c.Shape = ShapeCircular
	case isSlot(area, perim, width, height, tol):
		c.Shape = ShapeSlot
	case isRectangular(area, perim, width, height, tol):
		c.Shape = ShapeRectangular
	default:
		c.Shape = ShapeIrregular
	}
	return c
}

// isCircular calls a wire circular when every vertex sits within the band
// of the mean centroid distance.
func isCircular(w topo.Wire, centroid topo.Vec3, band float64) bool {
	if len(w.Points) < 6 {
		return false
	}
	var mean float64
	radii := make([]float64, len(w.Points))
	for i, p := range w.Points {
		radii[i] = p.Dist(centroid)
		mean += radii[i]
	}
	mean /= float64(len(radii))
	if mean <= 0 {
		return false
	}
	for _, r := range radii {
		if math.Abs(r-mean)/mean > band {
			return false
		}
	}
	return true
}

// isSlot calls an elongated stadium: aspect over the threshold and area and
// perimeter matching a rectangle with semicircular ends.
func isSlot(area, perim, width, height float64, tol DetectTolerances) bool {
	long, short := width, height
	if short > long {
		long, short = short, long
	}
	if short <= 0 || long/short < tol.SlotAspectMin {
		return false
	}
	r := short / 2
	straight := long - short
	idealArea := straight*short + math.Pi*r*r
	idealPerim := 2*straight + 2*math.Pi*r
	return relErr(area, idealArea) <= tol.ShapeBand && relErr(perim, idealPerim) <= tol.ShapeBand
}

// isRectangular checks the profile against its projected bounds: a true
// rectangle fills them exactly in both area and perimeter.
func isRectangular(area, perim, width, height float64, tol DetectTolerances) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	return relErr(area, width*height) <= tol.ShapeBand &&
		relErr(perim, 2*(width+height)) <= tol.ShapeBand
}

func relErr(got, want float64) float64 {
	if want == 0 {
		return math.Inf(1)
	}
	return math.Abs(got-want) / want
}

// SortCandidates orders candidates deterministically: by face, then wire
// index. Merge results must not depend on map or goroutine ordering.
func SortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].FaceID != cs[j].FaceID {
			return cs[i].FaceID < cs[j].FaceID
		}
		return cs[i].WireIndex < cs[j].WireIndex
	})
}
