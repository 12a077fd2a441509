package topology

import (
	"errors"
	"testing"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/twpayne/go-geos"
)

func TestPredicates(t *testing.T) {
	square := "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))"
	tests := []struct {
		name       string
		a, b       string
		intersects bool
		touches    bool
		overlaps   bool
	}{
		{"adjacent", square, "POLYGON ((10 0, 20 0, 20 10, 10 10, 10 0))", true, true, false},
		{"overlapping", square, "POLYGON ((5 5, 15 5, 15 15, 5 15, 5 5))", true, false, true},
		{"disjoint", square, "POLYGON ((20 20, 30 20, 30 30, 20 30, 20 20))", false, false, false},
		{"corner", square, "POLYGON ((10 10, 20 10, 20 20, 10 20, 10 10))", true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := mustWKT(t, tt.a), mustWKT(t, tt.b)
			if got := Intersects(a, b); got != tt.intersects {
				t.Errorf("intersects: expected %v, got %v", tt.intersects, got)
			}
			if got := Touches(a, b); got != tt.touches {
				t.Errorf("touches: expected %v, got %v", tt.touches, got)
			}
			if got := Overlaps(a, b); got != tt.overlaps {
				t.Errorf("overlaps: expected %v, got %v", tt.overlaps, got)
			}
		})
	}
}

func TestPredicatesOnNil(t *testing.T) {
	square := mustWKT(t, "POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0))")
	if Intersects(nil, square) || Contains(square, nil) || Within(nil, nil) {
		t.Error("expected predicates on nil geometries to be false")
	}
}

func TestIsLineResult(t *testing.T) {
	tests := []struct {
		wkt      string
		expected bool
	}{
		{"LINESTRING (0 0, 1 0)", true},
		{"MULTILINESTRING ((0 0, 1 0), (2 0, 3 0))", true},
		{"POINT (0 0)", false},
		{"GEOMETRYCOLLECTION (POINT (0 0), LINESTRING (0 0, 1 0))", false},
		{"LINESTRING EMPTY", false},
	}

	for _, tt := range tests {
		t.Run(tt.wkt, func(t *testing.T) {
			if got := IsLineResult(mustWKT(t, tt.wkt)); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRings(t *testing.T) {
	holed := mustWKT(t, "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0), (4 4, 6 4, 6 6, 4 6, 4 4))")
	outer, inner, err := Rings(holed)
	if err != nil {
		t.Fatal(err)
	}
	if len(outer) != 1 || len(inner) != 1 {
		t.Fatalf("expected 1 outer and 1 inner ring, got %d and %d", len(outer), len(inner))
	}
	if !HasInnerRings(holed) {
		t.Error("expected the polygon to have inner rings")
	}
	if inner[0].Length() != 8 {
		t.Errorf("expected inner ring length 8, got %v", inner[0].Length())
	}

	if _, _, err := Rings(mustWKT(t, "LINESTRING (0 0, 1 1)")); !errors.Is(err, ErrUnsupportedGeometry) {
		t.Errorf("expected ErrUnsupportedGeometry, got %v", err)
	}
}

func TestCollect(t *testing.T) {
	if Collect(nil) != nil {
		t.Error("expected nil for no geometries")
	}

	lines := Collect([]*geos.Geom{
		mustWKT(t, "LINESTRING (0 0, 1 0)"),
		mustWKT(t, "MULTILINESTRING ((2 0, 3 0), (4 0, 5 0))"),
	})
	if lines.TypeID() != geos.TypeIDMultiLineString || lines.NumGeometries() != 3 {
		t.Errorf("expected a MultiLineString of 3 parts, got %s of %d", lines.Type(), lines.NumGeometries())
	}

	mixed := Collect([]*geos.Geom{mustWKT(t, "POINT (0 0)"), mustWKT(t, "LINESTRING (0 0, 1 0)")})
	if mixed.TypeID() != geos.TypeIDGeometryCollection {
		t.Errorf("expected a GeometryCollection, got %s", mixed.Type())
	}
}

func TestExtractByType(t *testing.T) {
	g := mustWKT(t, "GEOMETRYCOLLECTION (POINT (0 0), LINESTRING (0 0, 1 0), POLYGON ((0 0, 1 0, 1 1, 0 0)))")
	if n := len(ExtractByType(g, layer.KindPolygon)); n != 1 {
		t.Errorf("expected 1 polygon, got %d", n)
	}
	if n := len(ExtractByType(g, layer.KindPoint, layer.KindLine)); n != 2 {
		t.Errorf("expected 2 points and lines, got %d", n)
	}
}

func TestCombine(t *testing.T) {
	merged, err := Combine([]*geos.Geom{
		mustWKT(t, "LINESTRING (0 0, 1 0)"),
		mustWKT(t, "LINESTRING (1 0, 2 0)"),
		mustWKT(t, "LINESTRING (3 0, 2 0)"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if merged.TypeID() != geos.TypeIDLineString {
		t.Fatalf("expected a LineString, got %s", merged.Type())
	}
	if merged.Length() != 3 {
		t.Errorf("expected length 3, got %v", merged.Length())
	}
}

func TestUnionEmpty(t *testing.T) {
	union, err := Union(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !union.IsEmpty() {
		t.Errorf("expected an empty union, got %s", union.ToWKT())
	}
}
