package processing

import (
	"reflect"
	"testing"

	"github.com/bsaid97/go-ladm-topology/layer"
)

func TestJoinByLocation(t *testing.T) {
	points := newLayer(t, "points", layer.KindPoint, "POINT (1 1)", "POINT (15 15)", "POINT (5 5)")
	plots := newLayer(t, "plots", layer.KindPolygon,
		"POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))",
		"POLYGON ((4 4, 6 4, 6 6, 4 6, 4 4))",
	)
	for _, f := range plots.Features() {
		f.Attributes["name"] = "plot"
	}

	tests := []struct {
		name     string
		opts     JoinOptions
		expected []any
	}{
		{
			name:     "one feature per match",
			opts:     JoinOptions{Predicate: PredicateWithin, Fields: []string{"t_id"}},
			expected: []any{int64(1), nil, int64(1), int64(2)},
		},
		{
			name:     "one to one",
			opts:     JoinOptions{Predicate: PredicateWithin, Fields: []string{"t_id"}, OneToOne: true},
			expected: []any{int64(1), nil, int64(1)},
		},
		{
			name:     "discard non matching",
			opts:     JoinOptions{Predicate: PredicateIntersects, Fields: []string{"t_id"}, DiscardNonMatching: true},
			expected: []any{int64(1), int64(1), int64(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := JoinByLocation(points, plots, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			got := make([]any, 0, out.FeatureCount())
			for _, f := range out.Features() {
				got = append(got, f.Attribute("t_id_2"))
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestJoinByLocationPrefix(t *testing.T) {
	points := newLayer(t, "points", layer.KindPoint, "POINT (1 1)")
	plots := newLayer(t, "plots", layer.KindPolygon, "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))")

	out, err := JoinByLocation(points, plots, JoinOptions{Predicate: PredicateIntersects, Prefix: "plot_"})
	if err != nil {
		t.Fatal(err)
	}
	f := out.Features()[0]
	if f.Attribute("plot_t_id") != int64(1) {
		t.Errorf("expected plot_t_id 1, got %v", f.Attribute("plot_t_id"))
	}
	if f.Attribute("t_id") != int64(1) {
		t.Errorf("expected the point's own t_id kept, got %v", f.Attribute("t_id"))
	}
}

func TestJoinByLocationUnknownPredicate(t *testing.T) {
	l := newLayer(t, "points", layer.KindPoint, "POINT (1 1)")
	if _, err := JoinByLocation(l, l, JoinOptions{Predicate: "crosses-ish"}); err == nil {
		t.Error("expected an error for an unknown predicate")
	}
}

func TestSubtract(t *testing.T) {
	input := newLayer(t, "lines", layer.KindLine,
		"LINESTRING (0 0, 10 0)",
		"LINESTRING (0 5, 4 5)",
		"LINESTRING (20 0, 30 0)",
	)
	overlay := newLayer(t, "boundaries", layer.KindLine,
		"LINESTRING (0 0, 4 0)",
		"LINESTRING (0 5, 4 5)",
	)

	out, err := Subtract(input, overlay)
	if err != nil {
		t.Fatal(err)
	}
	if out.FeatureCount() != 2 {
		t.Fatalf("expected 2 features left, got %d", out.FeatureCount())
	}
	first, err := out.GetFeature(1)
	if err != nil {
		t.Fatal(err)
	}
	if first.Geom.Length() != 6 {
		t.Errorf("expected length 6 left, got %v", first.Geom.Length())
	}
	if _, err := out.GetFeature(2); err == nil {
		t.Error("expected the covered line dropped")
	}
	third, err := out.GetFeature(3)
	if err != nil {
		t.Fatal(err)
	}
	if third.Attribute("t_id") != int64(3) {
		t.Errorf("expected attributes kept, got %v", third.Attributes)
	}
}
