package utils

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geos"
)

// TruncateGeometry rounds every coordinate of geom to precision decimals.
// Polygon rings left with fewer than four coordinates are dropped; a polygon
// whose exterior ring collapses is dropped from its collection.
func TruncateGeometry(geom *geos.Geom, precision int) (*geos.Geom, error) {
	if geom == nil {
		return nil, fmt.Errorf(`geometry is nil`)
	}
	if geom.IsEmpty() {
		return geom.Clone(), nil
	}

	switch geom.TypeID() {
	case geos.TypeIDPoint:
		x, y := truncateCoordinates(geom.X(), geom.Y(), precision)
		return geos.NewPoint([]float64{x, y}), nil
	case geos.TypeIDLineString, geos.TypeIDLinearRing:
		return geos.NewLineString(truncateCoords(geom.CoordSeq().ToCoords(), precision)), nil
	case geos.TypeIDPolygon:
		polygon := TruncateSinglePolygon(geom, precision)
		if polygon == nil {
			return nil, fmt.Errorf("polygon collapsed after truncation")
		}
		return polygon, nil
	case geos.TypeIDMultiPoint, geos.TypeIDMultiLineString, geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		parts := make([]*geos.Geom, 0, geom.NumGeometries())
		for i := range geom.NumGeometries() {
			part, err := TruncateGeometry(geom.Geometry(i), precision)
			if err != nil {
				continue
			}
			parts = append(parts, part)
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("all parts collapsed after truncation")
		}
		return geos.NewCollection(geom.TypeID(), parts), nil
	default:
		return nil, fmt.Errorf("cannot truncate geometry of type %s", geom.Type())
	}
}

func TruncateSinglePolygon(polygon *geos.Geom, precision int) *geos.Geom {
	exterior := polygon.ExteriorRing()
	if exterior == nil || exterior.CoordSeq().Size() <= 3 {
		return nil
	}

	rings := [][][]float64{truncateCoords(exterior.CoordSeq().ToCoords(), precision)}
	for r := range polygon.NumInteriorRings() {
		ring := polygon.InteriorRing(r)
		if ring.CoordSeq().Size() <= 3 {
			continue
		}
		ringCoords := truncateCoords(ring.CoordSeq().ToCoords(), precision)
		testPolygon := geos.NewPolygon([][][]float64{ringCoords})
		if testPolygon.IsValid() {
			rings = append(rings, ringCoords)
		}
	}

	return geos.NewPolygon(rings)
}

func truncateCoords(coords [][]float64, precision int) [][]float64 {
	out := make([][]float64, len(coords))
	for i, coord := range coords {
		x, y := truncateCoordinates(coord[0], coord[1], precision)
		out[i] = []float64{x, y}
	}
	return out
}

func truncateCoordinates(x float64, y float64, precision int) (float64, float64) {
	return roundFloat(x, uint(precision)), roundFloat(y, uint(precision))
}

func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
