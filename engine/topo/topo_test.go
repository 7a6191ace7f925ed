package topo

import (
	"errors"
	"math"
	"testing"
)

func rectWire(axis int, at, minU, minV, maxU, maxV float64) Wire {
	lift := func(u, v float64) Vec3 {
		switch axis {
		case 0:
			return Vec3{at, u, v}
		case 1:
			return Vec3{u, at, v}
		default:
			return Vec3{u, v, at}
		}
	}
	return Wire{Points: []Vec3{
		lift(minU, minV), lift(maxU, minV), lift(maxU, maxV), lift(minU, maxV),
	}}
}

func circleWire(axis int, at, cu, cv, r float64, n int) Wire {
	lift := func(u, v float64) Vec3 {
		switch axis {
		case 0:
			return Vec3{at, u, v}
		case 1:
			return Vec3{u, at, v}
		default:
			return Vec3{u, v, at}
		}
	}
	w := Wire{}
	for i := 0; i < n; i++ {
		t := 2 * math.Pi * float64(i) / float64(n)
		w.Points = append(w.Points, lift(cu+r*math.Cos(t), cv+r*math.Sin(t)))
	}
	return w
}

func TestWirePerimeterAndArea(t *testing.T) {
	w := rectWire(2, 0, 0, 0, 10, 5)
	if got := w.Perimeter(); math.Abs(got-30) > 1e-9 {
		t.Fatalf("perimeter = %v, want 30", got)
	}
	if got := w.Area(); math.Abs(got-50) > 1e-9 {
		t.Fatalf("area = %v, want 50", got)
	}

	// Circle approximations converge from below.
	c := circleWire(2, 0, 3, 3, 1, 128)
	if got := c.Perimeter(); math.Abs(got-2*math.Pi) > 0.01 {
		t.Fatalf("circle perimeter = %v, want ~%v", got, 2*math.Pi)
	}
	if got := c.Area(); math.Abs(got-math.Pi) > 0.01 {
		t.Fatalf("circle area = %v, want ~%v", got, math.Pi)
	}
}

func TestWireAreaOffPrincipalPlane(t *testing.T) {
	// Unit square tilted 45 degrees about X: area must not change.
	s := math.Sqrt2 / 2
	w := Wire{Points: []Vec3{
		{0, 0, 0}, {1, 0, 0}, {1, s, s}, {0, s, s},
	}}
	if got := w.Area(); math.Abs(got-1) > 1e-9 {
		t.Fatalf("tilted area = %v, want 1", got)
	}
}

func TestBoundingBoxDims(t *testing.T) {
	b := BoundingBox{Min: Vec3{0, 0, 0}, Max: Vec3{0.125, 10, 5}}
	l, w, h := b.Dims()
	if l != 10 || w != 5 || h != 0.125 {
		t.Fatalf("dims = %v %v %v, want 10 5 0.125", l, w, h)
	}
	if axis := b.ThicknessAxis(); axis != 0 {
		t.Fatalf("thickness axis = %d, want 0", axis)
	}
}

func TestRectContains(t *testing.T) {
	outer := Rect{0, 0, 10, 5}
	inner := Rect{2, 2, 3, 3}
	if !outer.Contains(inner, 0) {
		t.Fatal("outer should contain inner")
	}
	if inner.Contains(outer, 0) {
		t.Fatal("inner should not contain outer")
	}
	// Slack admits boundary-touching profiles.
	edge := Rect{-0.0005, 0, 3, 3}
	if outer.Contains(edge, 0) {
		t.Fatal("edge rect outside without slack")
	}
	if !outer.Contains(edge, 0.001) {
		t.Fatal("edge rect inside with slack")
	}
}

func TestWalkPlateWithHole(t *testing.T) {
	top := Face{ID: 1, Normal: Vec3{0, 0, 1}, Planar: true, Wires: []Wire{
		rectWire(2, 0.125, 0, 0, 10, 5),
		circleWire(2, 0.125, 2, 2, 0.25, 32),
	}}
	side := Face{ID: 2, Normal: Vec3{1, 0, 0}, Planar: false, Wires: []Wire{
		rectWire(0, 10, 0, 0, 5, 0.125),
	}}
	s := Solid{
		Name:  "plate",
		Faces: []Face{top, side},
		BBox:  BoundingBox{Max: Vec3{10, 5, 0.125}},
	}
	sets, err := Walk(s)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("got %d face wire sets, want 1 (non-planar face skipped)", len(sets))
	}
	if sets[0].FaceID != 1 || len(sets[0].Wires) != 2 {
		t.Fatalf("unexpected set %+v", sets[0])
	}
}

func TestWalkErrors(t *testing.T) {
	_, err := Walk(Solid{Name: "empty"})
	if !errors.Is(err, ErrUnsupportedGeometry) {
		t.Fatalf("no faces: err = %v, want ErrUnsupportedGeometry", err)
	}

	flat := Solid{
		Name:  "flat",
		Faces: []Face{{ID: 1, Planar: true, Wires: []Wire{rectWire(2, 0, 0, 0, 1, 1)}}},
		BBox:  BoundingBox{Max: Vec3{1, 1, 0}},
	}
	if _, err := Walk(flat); !errors.Is(err, ErrUnsupportedGeometry) {
		t.Fatalf("collapsed bbox: err = %v, want ErrUnsupportedGeometry", err)
	}

	// A turned or molded part has valid wires but no planar face to cut.
	round := Solid{
		Name: "round",
		Faces: []Face{{ID: 3, Normal: Vec3{1, 0, 0}, Planar: false, Wires: []Wire{
			circleWire(0, 1, 0.5, 0.5, 0.5, 32),
		}}},
		BBox: BoundingBox{Max: Vec3{1, 1, 1}},
	}
	if _, err := Walk(round); !errors.Is(err, ErrUnsupportedGeometry) {
		t.Fatalf("no planar faces: err = %v, want ErrUnsupportedGeometry", err)
	}

	deg := Solid{
		Name: "deg",
		Faces: []Face{{ID: 7, Planar: true, Wires: []Wire{
			{Points: []Vec3{{0, 0, 0}, {1, 0, 0}, {1, 0, 0}}},
		}}},
		BBox: BoundingBox{Max: Vec3{1, 1, 1}},
	}
	_, err = Walk(deg)
	if !errors.Is(err, ErrDegenerateWire) {
		t.Fatalf("degenerate: err = %v, want ErrDegenerateWire", err)
	}
	var ge *GeometryError
	if !errors.As(err, &ge) || ge.FaceID != 7 || ge.WireIdx != 0 {
		t.Fatalf("location not carried: %v", err)
	}
}
