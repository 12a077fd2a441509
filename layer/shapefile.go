package layer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geos"
)

// ReadShapefile loads a shapefile into a layer. Feature ids are the 1-based
// record numbers. Numeric DBF fields become int64 or float64 attributes;
// values are trimmed of the NUL padding go-shp writes.
func ReadShapefile(path string) (*Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer reader.Close()

	fields := reader.Fields()
	l := New(strings.TrimSuffix(path, ".shp"), KindUnknown)

	for reader.Next() {
		n, shape := reader.Shape()
		g, err := shapeToGeom(shape)
		if err != nil {
			return nil, fmt.Errorf("shapefile %s record %d: %w", path, n, err)
		}

		attrs := make(map[string]any, len(fields))
		for i, field := range fields {
			attrs[field.String()] = parseAttribute(field, reader.ReadAttribute(n, i))
		}

		if err := l.Add(&Feature{ID: int64(n) + 1, Geom: g, Attributes: attrs}); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func parseAttribute(field shp.Field, raw string) any {
	raw = strings.Trim(raw, " \x00")
	switch field.Fieldtype {
	case 'N':
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return nil
	case 'F':
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return nil
	default:
		return raw
	}
}

func shapeToGeom(shape shp.Shape) (*geos.Geom, error) {
	switch s := shape.(type) {
	case *shp.Null:
		return nil, nil
	case *shp.Point:
		return geos.NewPoint([]float64{s.X, s.Y}), nil
	case *shp.MultiPoint:
		points := make([]*geos.Geom, 0, len(s.Points))
		for _, p := range s.Points {
			points = append(points, geos.NewPoint([]float64{p.X, p.Y}))
		}
		return geos.NewCollection(geos.TypeIDMultiPoint, points), nil
	case *shp.PolyLine:
		parts := splitParts(s.Parts, s.Points)
		if len(parts) == 1 {
			return geos.NewLineString(parts[0]), nil
		}
		lines := make([]*geos.Geom, 0, len(parts))
		for _, part := range parts {
			lines = append(lines, geos.NewLineString(part))
		}
		return geos.NewCollection(geos.TypeIDMultiLineString, lines), nil
	case *shp.Polygon:
		return ringsToPolygons(splitParts(s.Parts, s.Points))
	default:
		return nil, fmt.Errorf("unsupported shape %T", shape)
	}
}

func splitParts(parts []int32, points []shp.Point) [][][]float64 {
	out := make([][][]float64, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		coords := make([][]float64, 0, end-start)
		for _, p := range points[start:end] {
			coords = append(coords, []float64{p.X, p.Y})
		}
		out = append(out, coords)
	}
	return out
}

// ringsToPolygons assembles shapefile rings: clockwise rings are shells,
// counter-clockwise rings are holes of the first shell containing them.
func ringsToPolygons(rings [][][]float64) (*geos.Geom, error) {
	type shell struct {
		ring  [][]float64
		holes [][][]float64
		geom  *geos.Geom
	}

	shells := make([]*shell, 0)
	holes := make([][][]float64, 0)
	for _, ring := range rings {
		if len(ring) < 4 {
			continue
		}
		if ringArea(ring) <= 0 {
			shells = append(shells, &shell{ring: ring, geom: geos.NewPolygon([][][]float64{ring})})
		} else {
			holes = append(holes, ring)
		}
	}
	if len(shells) == 0 {
		return nil, fmt.Errorf("polygon without shell")
	}

	for _, hole := range holes {
		firstVertex := geos.NewPoint(hole[0])
		for _, s := range shells {
			if s.geom.Intersects(firstVertex) {
				s.holes = append(s.holes, hole)
				break
			}
		}
	}

	polygons := make([]*geos.Geom, 0, len(shells))
	for _, s := range shells {
		polygons = append(polygons, geos.NewPolygon(append([][][]float64{s.ring}, s.holes...)))
	}
	if len(polygons) == 1 {
		return polygons[0], nil
	}
	return geos.NewCollection(geos.TypeIDMultiPolygon, polygons), nil
}

func ringArea(ring [][]float64) float64 {
	area := 0.0
	for i := 0; i+1 < len(ring); i++ {
		area += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return area / 2
}
