package utils

import (
	"reflect"
	"testing"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/twpayne/go-geos"
)

func mustWKT(t *testing.T, wkt string) *geos.Geom {
	t.Helper()
	g, err := geos.NewGeomFromWKT(wkt)
	if err != nil {
		t.Fatalf("parse %q: %v", wkt, err)
	}
	return g
}

func rect(x0, y0, x1, y1 float64) r2.Rect {
	return r2.Rect{X: r1.Interval{Lo: x0, Hi: x1}, Y: r1.Interval{Lo: y0, Hi: y1}}
}

func TestSpatialIndexQuery(t *testing.T) {
	si := BuildSpatialIndex([]int64{1, 2, 3}, []*geos.Geom{
		mustWKT(t, "POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0))"),
		mustWKT(t, "POLYGON ((5 5, 6 5, 6 6, 5 6, 5 5))"),
		nil,
	})
	if si.Len() != 2 {
		t.Fatalf("expected 2 indexed geometries, got %d", si.Len())
	}

	tests := []struct {
		name     string
		box      r2.Rect
		expected []int64
	}{
		{"touching corners", rect(0.5, 0.5, 5, 5), []int64{1, 2}},
		{"nothing", rect(2, 2, 3, 3), []int64{}},
		{"degenerate box", rect(5.5, 5.5, 5.5, 5.5), []int64{2}},
		{"everything", rect(-1e6, -1e6, 1e6, 1e6), []int64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := si.Query(tt.box)
			if got == nil {
				got = []int64{}
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}

	if got := si.Query(r2.EmptyRect()); len(got) != 0 {
		t.Errorf("expected no ids for an empty box, got %v", got)
	}
}

func TestSpatialIndexOversized(t *testing.T) {
	si := NewSpatialIndex(1)
	si.AddGeometry(1, mustWKT(t, "POINT (1 1)"))
	si.AddGeometry(2, mustWKT(t, "LINESTRING (0 0, 10000 10000)"))
	si.AddGeometry(3, mustWKT(t, "POINT EMPTY"))

	if len(si.oversized) != 1 {
		t.Fatalf("expected 1 oversized entry, got %d", len(si.oversized))
	}
	if got := si.Query(rect(5000, 5000, 5000, 5000)); !reflect.DeepEqual(got, []int64{2}) {
		t.Errorf("expected [2], got %v", got)
	}
	if got := si.Query(rect(0.5, 0.5, 1.5, 1.5)); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Errorf("expected [1 2], got %v", got)
	}
}

func TestFindNeighbors(t *testing.T) {
	geoms := []*geos.Geom{
		mustWKT(t, "POINT (0 0)"),
		mustWKT(t, "POINT (1 0)"),
		mustWKT(t, "POINT (5 0)"),
	}
	si := BuildSpatialIndex([]int64{1, 2, 3}, geoms)

	neighbors := si.FindNeighbors(geoms[0], 1.5)
	if len(neighbors) != 1 || neighbors[0].ID != 2 {
		t.Errorf("expected only neighbor 2, got %v", neighbors)
	}
	if got := si.FindNeighbors(nil, 10); len(got) != 0 {
		t.Errorf("expected no neighbors for nil, got %v", got)
	}
}

func TestScaleRect(t *testing.T) {
	got := ScaleRect(rect(0, 0, 2, 2), 2)
	if expected := rect(-1, -1, 3, 3); got != expected {
		t.Errorf("expected %v, got %v", expected, got)
	}
	if !ScaleRect(r2.EmptyRect(), 2).IsEmpty() {
		t.Error("expected an empty box to stay empty")
	}
}

func TestGeomRect(t *testing.T) {
	got := GeomRect(mustWKT(t, "LINESTRING (1 2, 3 -4)"))
	if expected := rect(1, -4, 3, 2); got != expected {
		t.Errorf("expected %v, got %v", expected, got)
	}
	if !GeomRect(nil).IsEmpty() {
		t.Error("expected an empty box for nil")
	}
}
