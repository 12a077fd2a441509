package topology

import (
	"testing"

	"github.com/bsaid97/go-ladm-topology/layer"
)

func TestInnerRingsLayer(t *testing.T) {
	plots := newLayer(t, "plots", layer.KindPolygon,
		"POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))",
		"POLYGON ((20 0, 30 0, 30 10, 20 10, 20 0), (21 1, 23 1, 23 3, 21 3, 21 1), (25 5, 27 5, 27 7, 25 7, 25 5))",
		"MULTIPOLYGON (((40 0, 50 0, 50 10, 40 10, 40 0), (44 4, 46 4, 46 6, 44 6, 44 4)))",
	)

	tests := []struct {
		name         string
		selected     []int64
		useSelection bool
		expected     []int64
	}{
		{"all plots", nil, false, []int64{2, 2, 3}},
		{"selection", []int64{3}, true, []int64{3}},
		{"selection without holes", []int64{1}, true, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plots.RemoveSelection()
			plots.Select(tt.selected...)

			rings, issues := testEngine().InnerRingsLayer(plots, tt.useSelection)
			if len(issues) != 0 {
				t.Fatalf("expected no issues, got %v", issues)
			}
			if rings.FeatureCount() != len(tt.expected) {
				t.Fatalf("expected %d rings, got %d", len(tt.expected), rings.FeatureCount())
			}
			for i, f := range rings.Features() {
				if got := layer.IDValue(f, "t_id"); got != tt.expected[i] {
					t.Errorf("ring %d: expected plot %d, got %d", i, tt.expected[i], got)
				}
				if !f.Geom.IsClosed() {
					t.Errorf("ring %d: expected a closed line", i)
				}
			}
		})
	}
}

func TestDissolve(t *testing.T) {
	polygons := newLayer(t, "plots", layer.KindPolygon, grid("1,1")...)
	union, issues := testEngine().Dissolve(polygons)
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
	if union.Area() != 800 {
		t.Errorf("expected area 800, got %v", union.Area())
	}
	if !HasInnerRings(union) {
		t.Error("expected the missing cell to remain a hole")
	}
}

func TestDissolveRepairsInvalidPolygons(t *testing.T) {
	polygons := newLayer(t, "plots", layer.KindPolygon,
		"POLYGON ((0 0, 10 10, 10 0, 0 10, 0 0))",
		"POLYGON ((20 0, 30 0, 30 10, 20 10, 20 0))",
	)
	union, issues := testEngine().Dissolve(polygons)
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
	if union == nil || union.IsEmpty() {
		t.Fatal("expected a dissolved geometry")
	}
}
