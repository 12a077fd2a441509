package processing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/twpayne/go-geos"
)

// Explode splits every line part of input into two-vertex segments with ids
// 1..n in input order. Segments keep their feature's attributes plus
// SourceField. Zero-length pieces are dropped.
func Explode(input *layer.Layer) (*layer.Layer, error) {
	return Run(ExplodeLines, Params{"INPUT": input})
}

func runExplodeLines(params Params) (*layer.Layer, error) {
	input, err := params.layer("INPUT")
	if err != nil {
		return nil, err
	}

	out := layer.New(input.Name()+"_segments", layer.KindLine)
	for _, f := range input.Features() {
		parts, err := linePartCoords(f.Geom)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", f.ID, err)
		}
		for _, coords := range parts {
			for i := 0; i+1 < len(coords); i++ {
				a, b := coords[i], coords[i+1]
				if a[0] == b[0] && a[1] == b[1] {
					continue
				}
				out.AddGeometry(geos.NewLineString([][]float64{{a[0], a[1]}, {b[0], b[1]}}), derivedAttributes(f))
			}
		}
	}
	return out, nil
}

func linePartCoords(g *geos.Geom) ([][][]float64, error) {
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
		return nil, fmt.Errorf("cannot explode %s", g.Type())
	}
}

// DeleteDuplicates keeps the first feature of every group of equal
// geometries. Two-vertex lines are equal whatever their direction.
func DeleteDuplicates(input *layer.Layer) (*layer.Layer, error) {
	return Run(DeleteDuplicateGeometries, Params{"INPUT": input})
}

func runDeleteDuplicateGeometries(params Params) (*layer.Layer, error) {
	input, err := params.layer("INPUT")
	if err != nil {
		return nil, err
	}

	out := layer.New(input.Name(), input.GeometryKind())
	seen := make(map[string]struct{}, input.FeatureCount())
	for _, f := range input.Features() {
		key := geometryKey(f.Geom)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if err := out.Add(&layer.Feature{ID: f.ID, Geom: f.Geom, Attributes: copyAttributes(f)}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// geometryKey identifies a geometry up to vertex order of two-vertex lines
// and ring start of normalized geometries.
func geometryKey(g *geos.Geom) string {
	if g == nil || g.IsEmpty() {
		return "EMPTY"
	}
	if g.TypeID() == geos.TypeIDLineString && g.NumPoints() == 2 {
		coords := g.CoordSeq().ToCoords()
		a, b := coords[0], coords[1]
		if b[0] < a[0] || (b[0] == a[0] && b[1] < a[1]) {
			a, b = b, a
		}
		return fmt.Sprintf("S %v %v %v %v", a[0], a[1], b[0], b[1])
	}
	normalized := g.Clone()
	normalized.Normalize()
	return normalized.ToWKT()
}

// SplitMultipart emits one feature per part of every multi geometry.
func SplitMultipart(input *layer.Layer) (*layer.Layer, error) {
	return Run(MultipartToSingleparts, Params{"INPUT": input})
}

func runMultipartToSingleparts(params Params) (*layer.Layer, error) {
	input, err := params.layer("INPUT")
	if err != nil {
		return nil, err
	}

	out := layer.New(input.Name()+"_single", input.GeometryKind())
	for _, f := range input.Features() {
		g := f.Geom
		if g == nil || g.IsEmpty() {
			continue
		}
		switch g.TypeID() {
		case geos.TypeIDMultiPoint, geos.TypeIDMultiLineString, geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
			for i := range g.NumGeometries() {
				out.AddGeometry(g.Geometry(i).Clone(), derivedAttributes(f))
			}
		default:
			out.AddGeometry(g, derivedAttributes(f))
		}
	}
	return out, nil
}

// PolygonRings converts every polygon to the line geometry of its rings.
func PolygonRings(input *layer.Layer) (*layer.Layer, error) {
	return Run(PolygonsToLines, Params{"INPUT": input})
}

func runPolygonsToLines(params Params) (*layer.Layer, error) {
	input, err := params.layer("INPUT")
	if err != nil {
		return nil, err
	}

	out := layer.New(input.Name()+"_lines", layer.KindLine)
	for _, f := range input.Features() {
		g := f.Geom
		if g == nil || g.IsEmpty() {
			continue
		}
		var polygons []*geos.Geom
		switch g.TypeID() {
		case geos.TypeIDPolygon:
			polygons = []*geos.Geom{g}
		case geos.TypeIDMultiPolygon:
			for i := range g.NumGeometries() {
				polygons = append(polygons, g.Geometry(i))
			}
		default:
			return nil, fmt.Errorf("feature %d: %s is not a polygon", f.ID, g.Type())
		}

		rings := make([]*geos.Geom, 0)
		for _, polygon := range polygons {
			if polygon.IsEmpty() {
				continue
			}
			rings = append(rings, geos.NewLineString(polygon.ExteriorRing().CoordSeq().ToCoords()))
			for j := range polygon.NumInteriorRings() {
				rings = append(rings, geos.NewLineString(polygon.InteriorRing(j).CoordSeq().ToCoords()))
			}
		}

		var lines *geos.Geom
		if len(rings) == 1 {
			lines = rings[0]
		} else {
			lines = geos.NewCollection(geos.TypeIDMultiLineString, rings)
		}
		if err := out.Add(&layer.Feature{ID: f.ID, Geom: lines, Attributes: copyAttributes(f)}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ExtractVertices emits the vertices at the given indices ("0,-1" for first
// and last) of every line part. Negative indices count from the end. Each
// point carries its feature's attributes and a vertex_index attribute.
func ExtractVertices(input *layer.Layer, vertices string) (*layer.Layer, error) {
	return Run(ExtractSpecificVertices, Params{"INPUT": input, "VERTICES": vertices})
}

func runExtractSpecificVertices(params Params) (*layer.Layer, error) {
	input, err := params.layer("INPUT")
	if err != nil {
		return nil, err
	}
	indices, err := parseIndices(params.str("VERTICES"))
	if err != nil {
		return nil, err
	}

	out := layer.New(input.Name()+"_vertices", layer.KindPoint)
	for _, f := range input.Features() {
		parts, err := vertexParts(f.Geom)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", f.ID, err)
		}
		for _, coords := range parts {
			n := len(coords)
			for _, idx := range indices {
				i := idx
				if i < 0 {
					i += n
				}
				if i < 0 || i >= n {
					continue
				}
				attrs := derivedAttributes(f)
				attrs["vertex_index"] = i
				out.AddGeometry(geos.NewPoint(coords[i]), attrs)
			}
		}
	}
	return out, nil
}

func vertexParts(g *geos.Geom) ([][][]float64, error) {
	if g == nil || g.IsEmpty() {
		return nil, nil
	}
	switch g.TypeID() {
	case geos.TypeIDPoint:
		return [][][]float64{{{g.X(), g.Y()}}}, nil
	case geos.TypeIDPolygon:
		return [][][]float64{g.ExteriorRing().CoordSeq().ToCoords()}, nil
	case geos.TypeIDMultiPoint, geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		out := make([][][]float64, 0)
		for i := range g.NumGeometries() {
			part, err := vertexParts(g.Geometry(i))
			if err != nil {
				return nil, err
			}
			out = append(out, part...)
		}
		return out, nil
	default:
		return linePartCoords(g)
	}
}

func parseIndices(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("missing parameter VERTICES")
	}
	out := make([]int, 0)
	seen := make(map[int]struct{})
	for _, field := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("vertex index %q: %w", field, err)
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		// non-negative indices first, in the order given
		return out[i] >= 0 && out[j] < 0
	})
	return out, nil
}
