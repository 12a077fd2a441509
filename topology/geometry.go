package topology

import (
	"errors"
	"fmt"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/twpayne/go-geos"
)

var ErrUnsupportedGeometry = errors.New("unsupported geometry type")

// guard runs a GEOS operation and turns the panic go-geos raises on topology
// exceptions into an error.
func guard[T any](op string, fn func() T) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", op, r)
		}
	}()
	return fn(), nil
}

func predicate(op string, fn func() bool) bool {
	ok, err := guard(op, fn)
	return err == nil && ok
}

func validPair(a, b *geos.Geom) bool {
	return a != nil && b != nil && !a.IsEmpty() && !b.IsEmpty()
}

// Intersects and the other predicates answer false when either side is
// empty or GEOS cannot evaluate them.
func Intersects(a, b *geos.Geom) bool {
	return validPair(a, b) && predicate("intersects", func() bool { return a.Intersects(b) })
}

func Touches(a, b *geos.Geom) bool {
	return validPair(a, b) && predicate("touches", func() bool { return a.Touches(b) })
}

func Overlaps(a, b *geos.Geom) bool {
	return validPair(a, b) && predicate("overlaps", func() bool { return a.Overlaps(b) })
}

func Contains(a, b *geos.Geom) bool {
	return validPair(a, b) && predicate("contains", func() bool { return a.Contains(b) })
}

func Within(a, b *geos.Geom) bool {
	return validPair(a, b) && predicate("within", func() bool { return a.Within(b) })
}

func Intersection(a, b *geos.Geom) (*geos.Geom, error) {
	if !validPair(a, b) {
		return emptyCollection(), nil
	}
	return guard("intersection", func() *geos.Geom { return a.Intersection(b) })
}

func Difference(a, b *geos.Geom) (*geos.Geom, error) {
	if a == nil || a.IsEmpty() {
		return emptyCollection(), nil
	}
	if b == nil || b.IsEmpty() {
		return a.Clone(), nil
	}
	return guard("difference", func() *geos.Geom { return a.Difference(b) })
}

func ConvexHull(g *geos.Geom) (*geos.Geom, error) {
	if g == nil || g.IsEmpty() {
		return emptyCollection(), nil
	}
	return guard("convex hull", func() *geos.Geom { return g.ConvexHull() })
}

func Buffer(g *geos.Geom, distance float64, segments int) (*geos.Geom, error) {
	if g == nil || g.IsEmpty() {
		return emptyCollection(), nil
	}
	return guard("buffer", func() *geos.Geom { return g.Buffer(distance, segments) })
}

func emptyCollection() *geos.Geom {
	return geos.NewEmptyCollection(geos.TypeIDGeometryCollection)
}

// collect builds a collection of typeID from clones of geoms, so the inputs
// stay owned by their callers.
func collect(typeID geos.TypeID, geoms []*geos.Geom) *geos.Geom {
	if len(geoms) == 0 {
		return geos.NewEmptyCollection(typeID)
	}
	clones := make([]*geos.Geom, 0, len(geoms))
	for _, g := range geoms {
		clones = append(clones, g.Clone())
	}
	return geos.NewCollection(typeID, clones)
}

// Collect gathers geometries into the narrowest multi type that holds them
// all, flattening multi inputs. It returns nil for no input.
func Collect(geoms []*geos.Geom) *geos.Geom {
	parts := make([]*geos.Geom, 0, len(geoms))
	kind := layer.KindNull
	mixed := false
	for _, g := range geoms {
		for _, part := range Parts(g) {
			k := layer.KindOf(part)
			if kind == layer.KindNull {
				kind = k
			} else if k != kind {
				mixed = true
			}
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return nil
	}

	typeID := geos.TypeIDGeometryCollection
	if !mixed {
		switch kind {
		case layer.KindPoint:
			typeID = geos.TypeIDMultiPoint
		case layer.KindLine:
			typeID = geos.TypeIDMultiLineString
		case layer.KindPolygon:
			typeID = geos.TypeIDMultiPolygon
		}
	}
	for i, part := range parts {
		if part.TypeID() == geos.TypeIDLinearRing {
			parts[i] = ringToLine(part)
		}
	}
	return collect(typeID, parts)
}

// Parts flattens multi geometries and collections, recursively, into their
// single non-empty members.
func Parts(g *geos.Geom) []*geos.Geom {
	if g == nil || g.IsEmpty() {
		return nil
	}
	switch g.TypeID() {
	case geos.TypeIDMultiPoint, geos.TypeIDMultiLineString, geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		out := make([]*geos.Geom, 0, g.NumGeometries())
		for i := range g.NumGeometries() {
			out = append(out, Parts(g.Geometry(i))...)
		}
		return out
	default:
		return []*geos.Geom{g}
	}
}

// ExtractByType returns the single parts of g whose kind is one of kinds.
// Members of other kinds are dropped.
func ExtractByType(g *geos.Geom, kinds ...layer.Kind) []*geos.Geom {
	out := make([]*geos.Geom, 0)
	for _, part := range Parts(g) {
		k := layer.KindOf(part)
		for _, want := range kinds {
			if k == want {
				out = append(out, part)
				break
			}
		}
	}
	return out
}

// IsLineResult reports whether an intersection result is a line geometry, the
// only outcome that classifies a plot/boundary pair.
func IsLineResult(g *geos.Geom) bool {
	if g == nil || g.IsEmpty() {
		return false
	}
	switch g.TypeID() {
	case geos.TypeIDLineString, geos.TypeIDLinearRing, geos.TypeIDMultiLineString:
		return true
	default:
		return false
	}
}

func describe(g *geos.Geom) string {
	if g == nil {
		return "null"
	}
	if g.IsEmpty() {
		return "empty " + g.Type()
	}
	return g.Type()
}

// polygonsOf returns the single polygons of a Polygon or MultiPolygon.
func polygonsOf(g *geos.Geom) ([]*geos.Geom, error) {
	if g == nil || g.IsEmpty() {
		return nil, nil
	}
	switch g.TypeID() {
	case geos.TypeIDPolygon:
		return []*geos.Geom{g}, nil
	case geos.TypeIDMultiPolygon:
		out := make([]*geos.Geom, 0, g.NumGeometries())
		for i := range g.NumGeometries() {
			out = append(out, g.Geometry(i))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a polygon", ErrUnsupportedGeometry, g.Type())
	}
}

// HasInnerRings is true iff the polygon, or any part of a multipolygon, has at
// least one interior ring.
func HasInnerRings(g *geos.Geom) bool {
	polygons, err := polygonsOf(g)
	if err != nil {
		return false
	}
	for _, polygon := range polygons {
		if polygon.NumInteriorRings() > 0 {
			return true
		}
	}
	return false
}

// Rings splits a (multi)polygon into its exterior and interior rings as line
// strings.
func Rings(g *geos.Geom) (outer, inner []*geos.Geom, err error) {
	polygons, err := polygonsOf(g)
	if err != nil {
		return nil, nil, err
	}
	for _, polygon := range polygons {
		if polygon.IsEmpty() {
			continue
		}
		outer = append(outer, ringToLine(polygon.ExteriorRing()))
		for j := range polygon.NumInteriorRings() {
			inner = append(inner, ringToLine(polygon.InteriorRing(j)))
		}
	}
	return outer, inner, nil
}

// BoundaryOf returns all rings of a (multi)polygon as one line geometry.
func BoundaryOf(g *geos.Geom) (*geos.Geom, error) {
	outer, inner, err := Rings(g)
	if err != nil {
		return nil, err
	}
	return collect(geos.TypeIDMultiLineString, append(outer, inner...)), nil
}

func ringToLine(ring *geos.Geom) *geos.Geom {
	return geos.NewLineString(ring.CoordSeq().ToCoords())
}

// rectPolygon returns the polygon of g's bounding box.
func rectPolygon(g *geos.Geom) *geos.Geom {
	b := g.Bounds()
	return geos.NewPolygon([][][]float64{{
		{b.MinX, b.MinY},
		{b.MaxX, b.MinY},
		{b.MaxX, b.MaxY},
		{b.MinX, b.MaxY},
		{b.MinX, b.MinY},
	}})
}

// lineCoords returns the vertex lists of the parts of a line geometry.
func lineCoords(g *geos.Geom) ([][][]float64, error) {
	if g == nil || g.IsEmpty() {
		return nil, nil
	}
	switch g.TypeID() {
	case geos.TypeIDLineString, geos.TypeIDLinearRing:
		return [][][]float64{g.CoordSeq().ToCoords()}, nil
	case geos.TypeIDMultiLineString:
		out := make([][][]float64, 0, g.NumGeometries())
		for i := range g.NumGeometries() {
			out = append(out, g.Geometry(i).CoordSeq().ToCoords())
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a line", ErrUnsupportedGeometry, g.Type())
	}
}
