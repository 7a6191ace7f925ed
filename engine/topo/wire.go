package topo

import "math"

// Perimeter returns the total length of the closed loop, including the
// closing edge from the last point back to the first.
func (w Wire) Perimeter() float64 {
	n := len(w.Points)
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += w.Points[i].Dist(w.Points[(i+1)%n])
	}
	return sum
}

// Centroid returns the mean of the loop's points. For the near-regular
// profiles cut in sheet parts this is close enough to the true area centroid
// for matching front and back openings.
func (w Wire) Centroid() Vec3 {
	if len(w.Points) == 0 {
		return Vec3{}
	}
	var c Vec3
	for _, p := range w.Points {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(w.Points)))
}

// Area returns the enclosed planar area via Newell's method. Works for any
// planar polygon regardless of orientation in space.
func (w Wire) Area() float64 {
	n := len(w.Points)
	if n < 3 {
		return 0
	}
	var acc Vec3
	for i := 0; i < n; i++ {
		acc = acc.Add(w.Points[i].Cross(w.Points[(i+1)%n]))
	}
	return acc.Norm() / 2
}

// BBox returns the loop's axis-aligned 3D bounds.
func (w Wire) BBox() BoundingBox {
	if len(w.Points) == 0 {
		return BoundingBox{}
	}
	b := BoundingBox{Min: w.Points[0], Max: w.Points[0]}
	for _, p := range w.Points[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Min.Z = math.Min(b.Min.Z, p.Z)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
		b.Max.Z = math.Max(b.Max.Z, p.Z)
	}
	return b
}

// ProjectRect projects the loop onto the plane orthogonal to axis and
// returns its 2D bounds there.
func (w Wire) ProjectRect(axis int) Rect {
	r := Rect{MinU: math.Inf(1), MinV: math.Inf(1), MaxU: math.Inf(-1), MaxV: math.Inf(-1)}
	for _, p := range w.Points {
		u, v := p.ProjectUV(axis)
		r.MinU = math.Min(r.MinU, u)
		r.MinV = math.Min(r.MinV, v)
		r.MaxU = math.Max(r.MaxU, u)
		r.MaxV = math.Max(r.MaxV, v)
	}
	return r
}

// DistinctPoints returns the number of points that are pairwise further
// apart than eps. A loop needs at least three to bound any area.
func (w Wire) DistinctPoints(eps float64) int {
	var kept []Vec3
	for _, p := range w.Points {
		dup := false
		for _, q := range kept {
			if p.Dist(q) <= eps {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, p)
		}
	}
	return len(kept)
}
