// Package topo defines the topology graph handed over by the CAD kernel
// sidecar (solids, faces, wires) and the walker that turns it into per-face
// wire sets for hole detection. All traversal is read-only; no geometry is
// constructed here.
package topo

import "math"

// Vec3 is a point or direction in 3D space, in inches.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns the cross product.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Dist returns the distance between two points.
func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Norm() }

// Axis returns the coordinate along the given axis (0=X, 1=Y, 2=Z).
func (v Vec3) Axis(axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// ProjectUV drops the given axis and returns the remaining two coordinates,
// projecting the point onto the plane orthogonal to that axis.
func (v Vec3) ProjectUV(axis int) (u, v2 float64) {
	switch axis {
	case 0:
		return v.Y, v.Z
	case 1:
		return v.X, v.Z
	default:
		return v.X, v.Y
	}
}

// BoundingBox is an axis-aligned extent.
type BoundingBox struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// Extent returns the size along the given axis.
func (b BoundingBox) Extent(axis int) float64 {
	return b.Max.Axis(axis) - b.Min.Axis(axis)
}

// Dims returns the three extents sorted descending (length, width, height).
// For a sheet part height is the thickness.
func (b BoundingBox) Dims() (length, width, height float64) {
	d := [3]float64{b.Extent(0), b.Extent(1), b.Extent(2)}
	if d[0] < d[1] {
		d[0], d[1] = d[1], d[0]
	}
	if d[1] < d[2] {
		d[1], d[2] = d[2], d[1]
	}
	if d[0] < d[1] {
		d[0], d[1] = d[1], d[0]
	}
	return d[0], d[1], d[2]
}

// ThicknessAxis returns the axis (0, 1 or 2) with the smallest extent —
// the axis orthogonal to the two largest faces of a sheet part.
func (b BoundingBox) ThicknessAxis() int {
	axis := 0
	min := b.Extent(0)
	for a := 1; a < 3; a++ {
		if e := b.Extent(a); e < min {
			min = e
			axis = a
		}
	}
	return axis
}

// Center returns the box center.
func (b BoundingBox) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Rect is a 2D bounding box in a projection plane.
type Rect struct {
	MinU, MinV, MaxU, MaxV float64
}

// Contains reports whether r contains o, expanded by slack on every edge.
func (r Rect) Contains(o Rect, slack float64) bool {
	return r.MinU <= o.MinU+slack && r.MaxU >= o.MaxU-slack &&
		r.MinV <= o.MinV+slack && r.MaxV >= o.MaxV-slack
}

// NearEqual reports whether the two rects coincide within slack.
func (r Rect) NearEqual(o Rect, slack float64) bool {
	return math.Abs(r.MinU-o.MinU) <= slack && math.Abs(r.MaxU-o.MaxU) <= slack &&
		math.Abs(r.MinV-o.MinV) <= slack && math.Abs(r.MaxV-o.MaxV) <= slack
}

// Wire is a closed boundary loop on a face, given as an ordered point
// sequence. The loop is implicitly closed: the last point connects back to
// the first.
type Wire struct {
	Points []Vec3 `json:"points"`
}

// Face is a single face of a solid with its bounding wires. The first wire
// is not assumed to be the outer boundary; identifying the outer wire is the
// hole detector's job.
type Face struct {
	ID     int    `json:"id"`
	Normal Vec3   `json:"normal"`
	Planar bool   `json:"planar"`
	Wires  []Wire `json:"wires"`
}

// Solid is one body of an uploaded model, with properties queried once from
// the kernel.
type Solid struct {
	Name        string      `json:"name"`
	Faces       []Face      `json:"faces"`
	Volume      float64     `json:"volume"`
	SurfaceArea float64     `json:"surface_area"`
	BBox        BoundingBox `json:"bbox"`
}

// FaceWireSet is one planar face's wires, produced by Walk and owned by the
// extraction pass for one part. Not persisted.
type FaceWireSet struct {
	FaceID int
	Normal Vec3
	Wires  []Wire
}
