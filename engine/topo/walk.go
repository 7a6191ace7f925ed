package topo

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedGeometry marks a solid the walker cannot traverse:
	// no faces, no planar face with a closed wire, or a degenerate
	// bounding box. The part is skipped, never guessed at.
	ErrUnsupportedGeometry = errors.New("unsupported geometry")

	// ErrDegenerateWire marks a wire with fewer than three distinct
	// vertices, which cannot bound a cut profile.
	ErrDegenerateWire = errors.New("degenerate wire")
)

// degenerateEps is the distance below which two wire vertices are the same
// point for degeneracy checks.
const degenerateEps = 1e-6

// GeometryError wraps a walker error with the face and wire it occurred on.
type GeometryError struct {
	Solid    string
	FaceID   int
	WireIdx  int
	Err      error
}

func (e *GeometryError) Error() string {
	if e.WireIdx >= 0 {
		return fmt.Sprintf("solid %q face %d wire %d: %v", e.Solid, e.FaceID, e.WireIdx, e.Err)
	}
	return fmt.Sprintf("solid %q: %v", e.Solid, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }

// Walk traverses every planar face of the solid and returns one FaceWireSet
// per face that carries at least one wire. Non-planar faces (fillets, bent
// flanges) contribute no wire sets but do not fail the walk; their area still
// counts through the solid's surface properties.
//
// The walk fails the whole part on the first structural defect: a solid with
// no faces, a collapsed bounding box, or no planar face carrying a wire at
// all is unsupported, and any wire with fewer than three distinct vertices
// is degenerate.
func Walk(s Solid) ([]FaceWireSet, error) {
	if len(s.Faces) == 0 {
		return nil, &GeometryError{Solid: s.Name, FaceID: -1, WireIdx: -1,
			Err: fmt.Errorf("%w: solid has no faces", ErrUnsupportedGeometry)}
	}
	l, w, h := s.BBox.Dims()
	if l <= 0 || w <= 0 || h <= 0 {
		return nil, &GeometryError{Solid: s.Name, FaceID: -1, WireIdx: -1,
			Err: fmt.Errorf("%w: collapsed bounding box %.4gx%.4gx%.4g", ErrUnsupportedGeometry, l, w, h)}
	}

	var sets []FaceWireSet
	for _, f := range s.Faces {
		for wi, wire := range f.Wires {
			if wire.DistinctPoints(degenerateEps) < 3 {
				return nil, &GeometryError{Solid: s.Name, FaceID: f.ID, WireIdx: wi,
					Err: fmt.Errorf("%w: %d distinct vertices", ErrDegenerateWire, wire.DistinctPoints(degenerateEps))}
			}
		}
		if !f.Planar || len(f.Wires) == 0 {
			continue
		}
		sets = append(sets, FaceWireSet{FaceID: f.ID, Normal: f.Normal, Wires: f.Wires})
	}
	// A solid with no planar face carrying a closed wire is not sheet-like
	// and cannot yield a cut profile.
	if len(sets) == 0 {
		return nil, &GeometryError{Solid: s.Name, FaceID: -1, WireIdx: -1,
			Err: fmt.Errorf("%w: no planar faces with closed wires", ErrUnsupportedGeometry)}
	}
	return sets, nil
}
