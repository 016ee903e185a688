package step

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Simplici0/costcalc/internal/geometry"
)

var (
	ErrNoSolid     = errors.New("no solid body in model")
	ErrBadInstance = errors.New("malformed entity instance")
)

// Solid is the transferred boundary representation of every solid body in a
// file. Only planar faces bounded by straight edges are supported.
type Solid struct {
	shells []shell
}

type shell struct {
	faces []face
	void  bool
}

type face struct {
	bounds    []bound
	normal    r3.Vec
	hasNormal bool
}

type bound struct {
	points []r3.Vec
	outer  bool
}

// Transfer resolves the solid bodies (MANIFOLD_SOLID_BREP, FACETED_BREP,
// BREP_WITH_VOIDS) of f down to vertex coordinates.
func Transfer(f *File) (*Solid, error) {
	r := &resolver{file: f, points: make(map[int]r3.Vec), visiting: make(map[int]bool)}

	ids := make([]int, 0, len(f.Instances))
	for id := range f.Instances {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	solid := &Solid{}
	for _, id := range ids {
		rec, ok := f.Instances[id].Simple()
		if !ok {
			continue
		}
		switch rec.Type {
		case "MANIFOLD_SOLID_BREP", "FACETED_BREP", "BREP_WITH_VOIDS":
		default:
			continue
		}

		outerRef, err := refParam(rec, 1)
		if err != nil {
			return nil, r.wrap(id, err)
		}
		outer, err := r.closedShell(outerRef)
		if err != nil {
			return nil, err
		}
		solid.shells = append(solid.shells, outer)

		if rec.Type != "BREP_WITH_VOIDS" {
			continue
		}
		voids, err := listParam(rec, 2)
		if err != nil {
			return nil, r.wrap(id, err)
		}
		for _, v := range voids {
			if v.Kind != KindRef {
				return nil, r.wrap(id, fmt.Errorf("void is not a reference"))
			}
			sh, err := r.closedShell(v.Ref)
			if err != nil {
				return nil, err
			}
			sh.void = true
			solid.shells = append(solid.shells, sh)
		}
	}

	if len(solid.shells) == 0 {
		return nil, ErrNoSolid
	}
	return solid, nil
}

// Volume integrates over every closed shell with the divergence theorem.
// Voids are subtracted. Units are those of the file.
func (s *Solid) Volume() (float64, error) {
	total := 0.0
	for _, sh := range s.shells {
		v := 0.0
		for _, f := range sh.faces {
			v += f.volume()
		}
		v = math.Abs(v)
		if sh.void {
			total -= v
		} else {
			total += v
		}
	}
	return total, nil
}

// volume is this face's share of (1/3)∮ p·n dA.
func (f face) volume() float64 {
	sum := 0.0
	for _, b := range f.bounds {
		if len(b.points) < 3 {
			continue
		}
		s := loopVolume(b.points)
		if f.hasNormal {
			d := r3.Dot(newell(b.points), f.normal)
			if (b.outer && d < 0) || (!b.outer && d > 0) {
				s = -s
			}
		}
		sum += s
	}
	return sum
}

func loopVolume(pts []r3.Vec) float64 {
	p0 := pts[0]
	v := 0.0
	for i := 1; i+1 < len(pts); i++ {
		v += r3.Dot(p0, r3.Cross(pts[i], pts[i+1]))
	}
	return v / 6
}

// newell returns twice the vector area of a planar loop.
func newell(pts []r3.Vec) r3.Vec {
	var n r3.Vec
	for i := range pts {
		n = r3.Add(n, r3.Cross(pts[i], pts[(i+1)%len(pts)]))
	}
	return n
}

type resolver struct {
	file   *File
	points map[int]r3.Vec
	// visiting holds the instances on the current resolution path.
	visiting map[int]bool
}

// enter marks id as being resolved. The returned func must be called once
// resolution of id is done.
func (r *resolver) enter(id int) (func(), error) {
	if r.visiting[id] {
		return nil, fmt.Errorf("%w: reference cycle through #%d", ErrBadInstance, id)
	}
	r.visiting[id] = true
	return func() { delete(r.visiting, id) }, nil
}

func (r *resolver) wrap(id int, err error) error {
	if errors.Is(err, geometry.ErrUnsupportedGeometry) || errors.Is(err, ErrBadInstance) {
		return err
	}
	return fmt.Errorf("%w: #%d: %v", ErrBadInstance, id, err)
}

func (r *resolver) lookup(id int, types ...string) (Record, error) {
	inst, ok := r.file.Instances[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: unresolved reference #%d", ErrBadInstance, id)
	}
	rec, ok := inst.Simple()
	if !ok {
		return Record{}, fmt.Errorf("%w: #%d is a complex instance", geometry.ErrUnsupportedGeometry, id)
	}
	for _, t := range types {
		if rec.Type == t {
			return rec, nil
		}
	}
	return rec, fmt.Errorf("%w: #%d is %s, want one of %v", ErrBadInstance, id, rec.Type, types)
}

func (r *resolver) closedShell(id int) (shell, error) {
	leave, err := r.enter(id)
	if err != nil {
		return shell{}, err
	}
	defer leave()

	rec, err := r.lookup(id, "CLOSED_SHELL", "ORIENTED_CLOSED_SHELL")
	if err != nil {
		return shell{}, err
	}
	if rec.Type == "ORIENTED_CLOSED_SHELL" {
		inner, err := refParam(rec, 2)
		if err != nil {
			return shell{}, r.wrap(id, err)
		}
		return r.closedShell(inner)
	}

	refs, err := listParam(rec, 1)
	if err != nil {
		return shell{}, r.wrap(id, err)
	}
	var sh shell
	for _, v := range refs {
		if v.Kind != KindRef {
			return shell{}, r.wrap(id, fmt.Errorf("face is not a reference"))
		}
		f, err := r.face(v.Ref, false)
		if err != nil {
			return shell{}, err
		}
		sh.faces = append(sh.faces, f)
	}
	return sh, nil
}

func (r *resolver) face(id int, flip bool) (face, error) {
	leave, err := r.enter(id)
	if err != nil {
		return face{}, err
	}
	defer leave()

	rec, err := r.lookup(id, "ADVANCED_FACE", "FACE_SURFACE", "FACE", "ORIENTED_FACE")
	if err != nil {
		return face{}, err
	}

	if rec.Type == "ORIENTED_FACE" {
		inner, err := refParam(rec, 2)
		if err != nil {
			return face{}, r.wrap(id, err)
		}
		orientation, err := boolParam(rec, 3)
		if err != nil {
			return face{}, r.wrap(id, err)
		}
		return r.face(inner, flip != !orientation)
	}

	var f face
	if rec.Type != "FACE" {
		surface, err := refParam(rec, 2)
		if err != nil {
			return face{}, r.wrap(id, err)
		}
		sameSense, err := boolParam(rec, 3)
		if err != nil {
			return face{}, r.wrap(id, err)
		}
		n, err := r.planeNormal(surface)
		if err != nil {
			return face{}, err
		}
		if !sameSense {
			n = r3.Scale(-1, n)
		}
		if flip {
			n = r3.Scale(-1, n)
		}
		f.normal, f.hasNormal = n, true
	}

	bounds, err := listParam(rec, 1)
	if err != nil {
		return face{}, r.wrap(id, err)
	}
	hasOuter := false
	for _, v := range bounds {
		if v.Kind != KindRef {
			return face{}, r.wrap(id, fmt.Errorf("bound is not a reference"))
		}
		b, err := r.bound(v.Ref)
		if err != nil {
			return face{}, err
		}
		if !f.hasNormal && flip {
			reverse(b.points)
		}
		hasOuter = hasOuter || b.outer
		f.bounds = append(f.bounds, b)
	}

	if !hasOuter && len(f.bounds) > 0 {
		largest, area := 0, -1.0
		for i, b := range f.bounds {
			if len(b.points) < 3 {
				continue
			}
			if a := r3.Norm(newell(b.points)); a > area {
				largest, area = i, a
			}
		}
		f.bounds[largest].outer = true
	}

	return f, nil
}

func (r *resolver) bound(id int) (bound, error) {
	rec, err := r.lookup(id, "FACE_OUTER_BOUND", "FACE_BOUND")
	if err != nil {
		return bound{}, err
	}
	loopRef, err := refParam(rec, 1)
	if err != nil {
		return bound{}, r.wrap(id, err)
	}
	orientation, err := boolParam(rec, 2)
	if err != nil {
		return bound{}, r.wrap(id, err)
	}

	pts, err := r.loop(loopRef)
	if err != nil {
		return bound{}, err
	}
	if !orientation {
		reverse(pts)
	}
	return bound{points: pts, outer: rec.Type == "FACE_OUTER_BOUND"}, nil
}

func (r *resolver) loop(id int) ([]r3.Vec, error) {
	rec, err := r.lookup(id, "POLY_LOOP", "EDGE_LOOP", "VERTEX_LOOP")
	if err != nil {
		return nil, err
	}

	switch rec.Type {
	case "VERTEX_LOOP":
		return nil, nil

	case "POLY_LOOP":
		refs, err := listParam(rec, 1)
		if err != nil {
			return nil, r.wrap(id, err)
		}
		pts := make([]r3.Vec, 0, len(refs))
		for _, v := range refs {
			if v.Kind != KindRef {
				return nil, r.wrap(id, fmt.Errorf("polygon vertex is not a reference"))
			}
			p, err := r.point(v.Ref)
			if err != nil {
				return nil, err
			}
			pts = append(pts, p)
		}
		return pts, nil
	}

	edges, err := listParam(rec, 1)
	if err != nil {
		return nil, r.wrap(id, err)
	}
	var pts []r3.Vec
	for _, v := range edges {
		if v.Kind != KindRef {
			return nil, r.wrap(id, fmt.Errorf("edge is not a reference"))
		}
		seg, err := r.orientedEdge(v.Ref)
		if err != nil {
			return nil, err
		}
		// Consecutive edges share their joint vertex.
		pts = append(pts, seg[:len(seg)-1]...)
	}
	return pts, nil
}

func (r *resolver) orientedEdge(id int) ([]r3.Vec, error) {
	rec, err := r.lookup(id, "ORIENTED_EDGE")
	if err != nil {
		return nil, err
	}
	edgeRef, err := refParam(rec, 3)
	if err != nil {
		return nil, r.wrap(id, err)
	}
	orientation, err := boolParam(rec, 4)
	if err != nil {
		return nil, r.wrap(id, err)
	}

	pts, err := r.edgeCurve(edgeRef)
	if err != nil {
		return nil, err
	}
	if !orientation {
		reverse(pts)
	}
	return pts, nil
}

// edgeCurve returns the points of an edge from its start to its end vertex.
func (r *resolver) edgeCurve(id int) ([]r3.Vec, error) {
	rec, err := r.lookup(id, "EDGE_CURVE")
	if err != nil {
		return nil, err
	}
	startRef, err := refParam(rec, 1)
	if err != nil {
		return nil, r.wrap(id, err)
	}
	endRef, err := refParam(rec, 2)
	if err != nil {
		return nil, r.wrap(id, err)
	}
	curveRef, err := refParam(rec, 3)
	if err != nil {
		return nil, r.wrap(id, err)
	}

	start, err := r.vertex(startRef)
	if err != nil {
		return nil, err
	}
	end, err := r.vertex(endRef)
	if err != nil {
		return nil, err
	}

	return r.curve(curveRef, start, end)
}

func (r *resolver) curve(id int, start, end r3.Vec) ([]r3.Vec, error) {
	leave, err := r.enter(id)
	if err != nil {
		return nil, err
	}
	defer leave()

	inst, ok := r.file.Instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: unresolved reference #%d", ErrBadInstance, id)
	}
	rec, ok := inst.Simple()
	if !ok {
		return nil, fmt.Errorf("%w: complex curve #%d", geometry.ErrUnsupportedGeometry, id)
	}

	switch rec.Type {
	case "LINE":
		return []r3.Vec{start, end}, nil

	case "POLYLINE":
		refs, err := listParam(rec, 1)
		if err != nil {
			return nil, r.wrap(id, err)
		}
		pts := make([]r3.Vec, 0, len(refs))
		for _, v := range refs {
			p, err := r.point(v.Ref)
			if err != nil {
				return nil, err
			}
			pts = append(pts, p)
		}
		if len(pts) < 2 {
			return nil, r.wrap(id, fmt.Errorf("polyline with %d points", len(pts)))
		}
		if r3.Norm(r3.Sub(pts[0], start)) > r3.Norm(r3.Sub(pts[len(pts)-1], start)) {
			reverse(pts)
		}
		pts[0], pts[len(pts)-1] = start, end
		return pts, nil

	case "SURFACE_CURVE", "SEAM_CURVE", "INTERSECTION_CURVE":
		inner, err := refParam(rec, 1)
		if err != nil {
			return nil, r.wrap(id, err)
		}
		return r.curve(inner, start, end)

	case "TRIMMED_CURVE":
		basis, err := refParam(rec, 1)
		if err != nil {
			return nil, r.wrap(id, err)
		}
		return r.curve(basis, start, end)
	}

	return nil, fmt.Errorf("%w: %s edge #%d", geometry.ErrUnsupportedGeometry, rec.Type, id)
}

func (r *resolver) planeNormal(id int) (r3.Vec, error) {
	inst, ok := r.file.Instances[id]
	if !ok {
		return r3.Vec{}, fmt.Errorf("%w: unresolved reference #%d", ErrBadInstance, id)
	}
	rec, ok := inst.Simple()
	if !ok || rec.Type != "PLANE" {
		name := "complex"
		if ok {
			name = rec.Type
		}
		return r3.Vec{}, fmt.Errorf("%w: %s surface #%d", geometry.ErrUnsupportedGeometry, name, id)
	}

	placementRef, err := refParam(rec, 1)
	if err != nil {
		return r3.Vec{}, r.wrap(id, err)
	}
	placement, err := r.lookup(placementRef, "AXIS2_PLACEMENT_3D")
	if err != nil {
		return r3.Vec{}, err
	}

	axis := r3.Vec{Z: 1}
	if len(placement.Params) > 2 && placement.Params[2].Kind == KindRef {
		dir, err := r.lookup(placement.Params[2].Ref, "DIRECTION")
		if err != nil {
			return r3.Vec{}, err
		}
		axis, err = vecParam(dir, 1)
		if err != nil {
			return r3.Vec{}, r.wrap(placement.Params[2].Ref, err)
		}
	}
	if r3.Norm(axis) == 0 {
		return r3.Vec{}, r.wrap(placementRef, fmt.Errorf("zero axis"))
	}
	return r3.Unit(axis), nil
}

func (r *resolver) vertex(id int) (r3.Vec, error) {
	rec, err := r.lookup(id, "VERTEX_POINT")
	if err != nil {
		return r3.Vec{}, err
	}
	pointRef, err := refParam(rec, 1)
	if err != nil {
		return r3.Vec{}, r.wrap(id, err)
	}
	return r.point(pointRef)
}

func (r *resolver) point(id int) (r3.Vec, error) {
	if p, ok := r.points[id]; ok {
		return p, nil
	}
	rec, err := r.lookup(id, "CARTESIAN_POINT")
	if err != nil {
		return r3.Vec{}, err
	}
	p, err := vecParam(rec, 1)
	if err != nil {
		return r3.Vec{}, r.wrap(id, err)
	}
	r.points[id] = p
	return p, nil
}

func refParam(rec Record, i int) (int, error) {
	if i >= len(rec.Params) || rec.Params[i].Kind != KindRef {
		return 0, fmt.Errorf("%s: parameter %d is not a reference", rec.Type, i+1)
	}
	return rec.Params[i].Ref, nil
}

func listParam(rec Record, i int) ([]Value, error) {
	if i >= len(rec.Params) || rec.Params[i].Kind != KindList {
		return nil, fmt.Errorf("%s: parameter %d is not a list", rec.Type, i+1)
	}
	return rec.Params[i].List, nil
}

func boolParam(rec Record, i int) (bool, error) {
	if i >= len(rec.Params) || rec.Params[i].Kind != KindEnum {
		return false, fmt.Errorf("%s: parameter %d is not a logical", rec.Type, i+1)
	}
	switch rec.Params[i].Str {
	case "T":
		return true, nil
	case "F":
		return false, nil
	}
	return false, fmt.Errorf("%s: parameter %d is .%s.", rec.Type, i+1, rec.Params[i].Str)
}

func vecParam(rec Record, i int) (r3.Vec, error) {
	coords, err := listParam(rec, i)
	if err != nil {
		return r3.Vec{}, err
	}
	if len(coords) < 2 || len(coords) > 3 {
		return r3.Vec{}, fmt.Errorf("%s: %d coordinates", rec.Type, len(coords))
	}
	var xyz [3]float64
	for j, c := range coords {
		if c.Kind != KindNumber {
			return r3.Vec{}, fmt.Errorf("%s: coordinate %d is not numeric", rec.Type, j+1)
		}
		xyz[j] = c.Num
	}
	return r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func reverse(pts []r3.Vec) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}
