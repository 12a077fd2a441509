package topology

import (
	"reflect"
	"testing"

	"github.com/bsaid97/go-ladm-topology/layer"
)

func TestPlotBoundaryPairs(t *testing.T) {
	e := testEngine()
	plots := newLayer(t, "plots", layer.KindPolygon,
		"POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))",
		"POLYGON ((20 0, 30 0, 30 10, 20 10, 20 0), (24 4, 26 4, 26 6, 24 6, 24 4))",
	)
	boundaries := newLayer(t, "boundaries", layer.KindLine,
		"LINESTRING (0 0, 10 0)",
		"LINESTRING (10 10, 15 15)",
		"LINESTRING (24 4, 26 4)",
		"LINESTRING (20 10, 30 10)",
	)

	result := e.PlotBoundaryPairs(boundaries, plots, false)

	more := []Pair{{A: 1, B: 1}, {A: 2, B: 4}}
	if !reflect.DeepEqual(result.More, more) {
		t.Errorf("expected more pairs %v, got %v", more, result.More)
	}
	less := []Pair{{A: 2, B: 3}}
	if !reflect.DeepEqual(result.Less, less) {
		t.Errorf("expected less pairs %v, got %v", less, result.Less)
	}
	// the corner touch on plot 1, and each ring of plot 2 the other boundary
	// does not run along
	if len(result.Issues) != 3 {
		t.Errorf("expected 3 issues, got %d: %v", len(result.Issues), result.Issues)
	}
	for _, issue := range result.Issues {
		if issue.Kind != IssueClassificationMismatch {
			t.Errorf("expected classification mismatch, got %s", issue.Kind)
		}
	}
}

func TestPlotBoundaryPairsUsesSelection(t *testing.T) {
	e := testEngine()
	plots := newLayer(t, "plots", layer.KindPolygon,
		"POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))",
		"POLYGON ((10 0, 20 0, 20 10, 10 10, 10 0))",
	)
	boundaries := newLayer(t, "boundaries", layer.KindLine, "LINESTRING (10 0, 10 10)")
	plots.Select(2)

	result := e.PlotBoundaryPairs(boundaries, plots, true)
	expected := []Pair{{A: 2, B: 1}}
	if !reflect.DeepEqual(result.More, expected) {
		t.Errorf("expected %v, got %v", expected, result.More)
	}
}

func TestPlotBoundaryPairsEmptyBoundaries(t *testing.T) {
	e := testEngine()
	plots := newLayer(t, "plots", layer.KindPolygon, "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))")
	result := e.PlotBoundaryPairs(layer.New("boundaries", layer.KindLine), plots, false)
	if len(result.More) != 0 || len(result.Less) != 0 {
		t.Errorf("expected no pairs, got %v and %v", result.More, result.Less)
	}
}

func TestBoundaryPointPairs(t *testing.T) {
	e := testEngine()
	boundaries := newLayer(t, "boundaries", layer.KindLine,
		"LINESTRING (0 0, 5 0, 10 0)",
		"MULTILINESTRING ((0 5, 0 10), (20 0, 20 5))",
	)
	points := newLayer(t, "points", layer.KindPoint,
		"POINT (0 0)",
		"POINT (5 0)",
		"POINT (10 0)",
		"POINT (20 5)",
		"POINT (3 3)",
	)

	pairs, issues := e.BoundaryPointPairs(boundaries, points, false)
	expected := []Pair{{A: 1, B: 1}, {A: 1, B: 3}, {A: 2, B: 4}}
	if !reflect.DeepEqual(pairs, expected) {
		t.Errorf("expected %v, got %v", expected, pairs)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestOverlappingPolygons(t *testing.T) {
	tests := []struct {
		name     string
		wkts     []string
		expected [][2]int64
	}{
		{
			name: "adjacent squares",
			wkts: []string{
				"POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))",
				"POLYGON ((10 0, 20 0, 20 10, 10 10, 10 0))",
			},
			expected: [][2]int64{},
		},
		{
			name: "overlap and containment",
			wkts: []string{
				"POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))",
				"POLYGON ((5 5, 15 5, 15 15, 5 15, 5 5))",
				"POLYGON ((1 1, 2 1, 2 2, 1 2, 1 1))",
			},
			expected: [][2]int64{{1, 2}, {1, 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			polygons := newLayer(t, "polygons", layer.KindPolygon, tt.wkts...)
			got := testEngine().OverlappingPolygons(polygons)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestOverlappingPolygonsIgnoresLines(t *testing.T) {
	lines := newLayer(t, "lines", layer.KindLine, "LINESTRING (0 0, 1 1)", "LINESTRING (0 1, 1 0)")
	if got := testEngine().OverlappingPolygons(lines); len(got) != 0 {
		t.Errorf("expected no pairs, got %v", got)
	}
}

func TestIntersectionPolygons(t *testing.T) {
	e := testEngine()
	polygons := newLayer(t, "polygons", layer.KindPolygon,
		"POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))",
		"POLYGON ((5 5, 15 5, 15 15, 5 15, 5 5))",
	)

	g, err := e.IntersectionPolygons(polygons, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if g == nil || g.Area() != 25 {
		t.Errorf("expected an intersection of area 25, got %v", g)
	}

	if _, err := e.IntersectionPolygons(polygons, 1, 9); err == nil {
		t.Error("expected an error for an unknown id")
	}
}

func TestInnerIntersectionsBetweenPolygons(t *testing.T) {
	e := testEngine()
	first := newLayer(t, "plots", layer.KindPolygon,
		"POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))",
		"POLYGON ((20 0, 30 0, 30 10, 20 10, 20 0))",
	)
	second := newLayer(t, "buildings", layer.KindPolygon,
		"POLYGON ((8 2, 12 2, 12 4, 8 4, 8 2))",
		"POLYGON ((10 5, 20 5, 20 6, 10 6, 10 5))",
	)

	result := e.InnerIntersectionsBetweenPolygons(first, second)
	expected := [][2]int64{{1, 1}}
	if !reflect.DeepEqual(result.Pairs, expected) {
		t.Errorf("expected %v, got %v", expected, result.Pairs)
	}
	if result.Geometry == nil || result.Geometry.Area() != 4 {
		t.Errorf("expected intersections of area 4, got %v", result.Geometry)
	}
}

func TestInnerIntersectionsOnePairPerFeatures(t *testing.T) {
	e := testEngine()
	first := newLayer(t, "plots", layer.KindPolygon, "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))")
	// a U crossing the square in two disjoint strips
	second := newLayer(t, "buildings", layer.KindPolygon,
		"POLYGON ((2 -5, 8 -5, 8 15, 6 15, 6 -3, 4 -3, 4 15, 2 15, 2 -5))",
	)

	result := e.InnerIntersectionsBetweenPolygons(first, second)
	expected := [][2]int64{{1, 1}}
	if !reflect.DeepEqual(result.Pairs, expected) {
		t.Errorf("expected %v, got %v", expected, result.Pairs)
	}
	if len(result.Parts) != 1 {
		t.Fatalf("expected 1 geometry per pair, got %d", len(result.Parts))
	}
	if n := result.Parts[0].NumGeometries(); n != 2 {
		t.Errorf("expected the pair's geometry to hold 2 strips, got %d", n)
	}
	if area := result.Geometry.Area(); area != 40 {
		t.Errorf("expected area 40, got %v", area)
	}
}
