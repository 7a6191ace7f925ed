package holes

import (
	"math"
	"testing"

	"github.com/swiftfab/quote-engine/engine/topo"
)

func circle(z, cx, cy, r float64, n int) topo.Wire {
	w := topo.Wire{}
	for i := 0; i < n; i++ {
		t := 2 * math.Pi * float64(i) / float64(n)
		w.Points = append(w.Points, topo.Vec3{X: cx + r*math.Cos(t), Y: cy + r*math.Sin(t), Z: z})
	}
	return w
}

func rect(z, x0, y0, x1, y1 float64) topo.Wire {
	return topo.Wire{Points: []topo.Vec3{
		{X: x0, Y: y0, Z: z}, {X: x1, Y: y0, Z: z}, {X: x1, Y: y1, Z: z}, {X: x0, Y: y1, Z: z},
	}}
}

func slot(z, cx, cy, long, short float64, n int) topo.Wire {
	// Stadium: two semicircle caps joined by straight runs.
	r := short / 2
	half := (long - short) / 2
	w := topo.Wire{}
	for i := 0; i <= n/2; i++ {
		t := -math.Pi/2 + math.Pi*float64(i)/float64(n/2)
		w.Points = append(w.Points, topo.Vec3{X: cx + half + r*math.Cos(t), Y: cy + r*math.Sin(t), Z: z})
	}
	for i := 0; i <= n/2; i++ {
		t := math.Pi/2 + math.Pi*float64(i)/float64(n/2)
		w.Points = append(w.Points, topo.Vec3{X: cx - half + r*math.Cos(t), Y: cy + r*math.Sin(t), Z: z})
	}
	return w
}

func faceSet(id int, nz float64, wires ...topo.Wire) topo.FaceWireSet {
	return topo.FaceWireSet{FaceID: id, Normal: topo.Vec3{Z: nz}, Wires: wires}
}

func TestDetectSingleWire(t *testing.T) {
	p := Detect(faceSet(1, 1, rect(0, 0, 0, 10, 5)), DefaultDetectTolerances())
	if p.OuterPick != OuterSingle || p.OuterIndex != 0 {
		t.Fatalf("pick = %v idx=%d, want single/0", p.OuterPick, p.OuterIndex)
	}
	if len(p.Candidates) != 0 {
		t.Fatalf("single wire face produced %d candidates", len(p.Candidates))
	}
	if math.Abs(p.OuterPerimeter-30) > 1e-9 {
		t.Fatalf("outer perimeter = %v", p.OuterPerimeter)
	}
}

func TestDetectOuterByContainment(t *testing.T) {
	// Inner wires listed first: index must not matter.
	p := Detect(faceSet(1, 1,
		circle(0, 2, 2, 0.25, 32),
		rect(0, 6, 1, 7, 2),
		rect(0, 0, 0, 10, 5),
	), DefaultDetectTolerances())
	if p.OuterIndex != 2 || p.OuterPick != OuterContainsAll {
		t.Fatalf("outer = %d via %v, want 2 via contains_all", p.OuterIndex, p.OuterPick)
	}
	if len(p.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(p.Candidates))
	}
}

func TestDetectOuterLargestAreaFallback(t *testing.T) {
	// Two disjoint profiles: nothing contains anything, largest area wins.
	p := Detect(faceSet(1, 1,
		rect(0, 0, 0, 1, 1),
		rect(0, 5, 0, 9, 3),
	), DefaultDetectTolerances())
	if p.OuterIndex != 1 || p.OuterPick != OuterLargestArea {
		t.Fatalf("outer = %d via %v, want 1 via largest_area", p.OuterIndex, p.OuterPick)
	}
}

func TestClassifyShapes(t *testing.T) {
	tol := DefaultDetectTolerances()
	p := Detect(faceSet(1, 1,
		rect(0, 0, 0, 20, 10),
		circle(0, 2, 2, 0.5, 48),
		rect(0, 5, 5, 6, 6.5),
		slot(0, 12, 3, 2.0, 0.5, 48),
		topo.Wire{Points: []topo.Vec3{ // L-profile
			{X: 15, Y: 5}, {X: 18, Y: 5}, {X: 18, Y: 6}, {X: 16, Y: 6}, {X: 16, Y: 8}, {X: 15, Y: 8},
		}},
	), tol)

	want := map[int]Shape{1: ShapeCircular, 2: ShapeRectangular, 3: ShapeSlot, 4: ShapeIrregular}
	if len(p.Candidates) != len(want) {
		t.Fatalf("candidates = %d, want %d", len(p.Candidates), len(want))
	}
	for _, c := range p.Candidates {
		if c.Shape != want[c.WireIndex] {
			t.Errorf("wire %d: shape = %v, want %v", c.WireIndex, c.Shape, want[c.WireIndex])
		}
	}

	// Equivalent diameter of the 0.5in-radius circle is ~1in.
	for _, c := range p.Candidates {
		if c.WireIndex == 1 && math.Abs(c.Diameter-1.0) > 0.01 {
			t.Errorf("circle equivalent diameter = %v, want ~1.0", c.Diameter)
		}
	}
}

func plateBBox(thickness float64) topo.BoundingBox {
	return topo.BoundingBox{Max: topo.Vec3{X: 10, Y: 5, Z: thickness}}
}

func TestMergeThroughHole(t *testing.T) {
	tol := DefaultMergeTolerances()
	top := Detect(faceSet(1, 1, rect(0.125, 0, 0, 10, 5), circle(0.125, 2, 2, 0.25, 32)), DefaultDetectTolerances())
	bot := Detect(faceSet(2, -1, rect(0, 0, 0, 10, 5), circle(0, 2, 2, 0.25, 32)), DefaultDetectTolerances())

	holes := Merge(append(top.Candidates, bot.Candidates...), plateBBox(0.125), tol)
	if len(holes) != 1 {
		t.Fatalf("holes = %d, want 1", len(holes))
	}
	h := holes[0]
	if h.Kind != KindThrough || h.Shape != ShapeCircular {
		t.Fatalf("hole = %+v", h)
	}
	if !h.DepthKnown || math.Abs(h.Depth-0.125) > 1e-9 {
		t.Fatalf("through depth = %v known=%v, want sheet thickness", h.Depth, h.DepthKnown)
	}
}

func TestMergeKeepsDistinctHolesApart(t *testing.T) {
	// Two holes on each side, offset beyond the position tolerance from
	// each other: must produce two through holes, not cross-matches.
	tol := DefaultMergeTolerances()
	cands := []Candidate{}
	for _, fs := range []topo.FaceWireSet{
		faceSet(1, 1, rect(0.125, 0, 0, 10, 5), circle(0.125, 2, 2, 0.25, 32), circle(0.125, 8, 2, 0.25, 32)),
		faceSet(2, -1, rect(0, 0, 0, 10, 5), circle(0, 2, 2, 0.25, 32), circle(0, 8, 2, 0.25, 32)),
	} {
		p := Detect(fs, DefaultDetectTolerances())
		cands = append(cands, p.Candidates...)
	}
	holes := Merge(cands, plateBBox(0.125), tol)
	if len(holes) != 2 {
		t.Fatalf("holes = %d, want 2", len(holes))
	}
	for _, h := range holes {
		if h.Kind != KindThrough {
			t.Fatalf("hole not through: %+v", h)
		}
	}
}

func TestMergeDiameterMismatchStaysBlind(t *testing.T) {
	tol := DefaultMergeTolerances()
	top := Detect(faceSet(1, 1, rect(0.125, 0, 0, 10, 5), circle(0.125, 2, 2, 0.25, 32)), DefaultDetectTolerances())
	bot := Detect(faceSet(2, -1, rect(0, 0, 0, 10, 5), circle(0, 2, 2, 0.40, 32)), DefaultDetectTolerances())

	holes := Merge(append(top.Candidates, bot.Candidates...), plateBBox(0.125), tol)
	if len(holes) != 2 {
		t.Fatalf("holes = %d, want 2 unmatched blinds", len(holes))
	}
	for _, h := range holes {
		if h.Kind != KindBlind {
			t.Fatalf("mismatched diameters merged: %+v", h)
		}
		// Openings sit on the outer planes, so depth is unknowable from
		// the wires alone.
		if h.DepthKnown {
			t.Fatalf("blind on outer plane claims known depth: %+v", h)
		}
	}
}

func TestMergeThinSheetBelowSeparation(t *testing.T) {
	// Sheet thinner than MinFaceSeparation: openings cannot be told apart
	// from coincident wires, so nothing merges.
	tol := DefaultMergeTolerances()
	top := Detect(faceSet(1, 1, rect(0.02, 0, 0, 10, 5), circle(0.02, 2, 2, 0.25, 32)), DefaultDetectTolerances())
	bot := Detect(faceSet(2, -1, rect(0, 0, 0, 10, 5), circle(0, 2, 2, 0.25, 32)), DefaultDetectTolerances())

	holes := Merge(append(top.Candidates, bot.Candidates...), plateBBox(0.02), tol)
	for _, h := range holes {
		if h.Kind == KindThrough {
			t.Fatalf("merged across %v sheet below separation %v", 0.02, tol.MinFaceSeparation)
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	tol := DefaultMergeTolerances()
	var cands []Candidate
	for _, fs := range []topo.FaceWireSet{
		faceSet(1, 1, rect(0.125, 0, 0, 10, 5), circle(0.125, 2, 2, 0.25, 32), circle(0.125, 5, 3, 0.5, 32)),
		faceSet(2, -1, rect(0, 0, 0, 10, 5), circle(0, 5, 3, 0.5, 32), circle(0, 2, 2, 0.25, 32)),
	} {
		p := Detect(fs, DefaultDetectTolerances())
		cands = append(cands, p.Candidates...)
	}
	a := Merge(cands, plateBBox(0.125), tol)
	b := Merge(cands, plateBBox(0.125), tol)
	if len(a) != len(b) {
		t.Fatalf("runs disagree: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("hole %d differs between runs:\n%+v\n%+v", i, a[i], b[i])
		}
	}
}
