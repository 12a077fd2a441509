package layer

import (
	"errors"
	"reflect"
	"testing"

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

func TestKindOf(t *testing.T) {
	tests := []struct {
		wkt      string
		expected Kind
	}{
		{"POINT (0 0)", KindPoint},
		{"MULTIPOINT ((0 0), (1 1))", KindPoint},
		{"LINESTRING (0 0, 1 1)", KindLine},
		{"MULTILINESTRING ((0 0, 1 1))", KindLine},
		{"POLYGON ((0 0, 1 0, 1 1, 0 0))", KindPolygon},
		{"MULTIPOLYGON (((0 0, 1 0, 1 1, 0 0)))", KindPolygon},
		{"GEOMETRYCOLLECTION (POINT (0 0))", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.wkt, func(t *testing.T) {
			if got := KindOf(mustWKT(t, tt.wkt)); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
	if KindOf(nil) != KindNull {
		t.Error("expected nil to be KindNull")
	}
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected int64
		ok       bool
	}{
		{"int", 3, 3, true},
		{"int64", int64(4), 4, true},
		{"whole float", float64(5), 5, true},
		{"fractional float", 5.5, 5, false},
		{"string", "42", 42, true},
		{"bytes", []byte("7"), 7, true},
		{"bad string", "x", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsInt64(tt.value)
			if ok != tt.ok || (ok && got != tt.expected) {
				t.Errorf("expected %d/%v, got %d/%v", tt.expected, tt.ok, got, ok)
			}
		})
	}
}

func TestLayerAddAndLookup(t *testing.T) {
	l := New("plots", KindPolygon)
	first := l.AddGeometry(mustWKT(t, "POINT (0 0)"), nil)
	if first.ID != 1 {
		t.Errorf("expected id 1, got %d", first.ID)
	}
	if err := l.Add(&Feature{ID: 10, Geom: mustWKT(t, "POINT (1 1)")}); err != nil {
		t.Fatal(err)
	}
	if next := l.AddGeometry(nil, nil); next.ID != 11 {
		t.Errorf("expected id 11 after 10, got %d", next.ID)
	}
	if err := l.Add(&Feature{ID: 10}); err == nil {
		t.Error("expected an error for a duplicate id")
	}

	if _, err := l.GetFeature(99); !errors.Is(err, ErrFeatureNotFound) {
		t.Errorf("expected ErrFeatureNotFound, got %v", err)
	}
	if l.FeatureCount() != 3 {
		t.Errorf("expected 3 features, got %d", l.FeatureCount())
	}
}

func TestLayerSelection(t *testing.T) {
	l := New("boundaries", KindLine)
	for range 4 {
		l.AddGeometry(mustWKT(t, "LINESTRING (0 0, 1 1)"), map[string]any{"t_id": 1, "name": "x"})
	}

	l.Select(3, 1, 99)
	if !reflect.DeepEqual(l.SelectedIDs(), []int64{1, 3}) {
		t.Errorf("expected [1 3], got %v", l.SelectedIDs())
	}
	selected := l.GetFeatures([]string{"t_id"}, true)
	if len(selected) != 2 {
		t.Fatalf("expected 2 selected features, got %d", len(selected))
	}
	if _, ok := selected[0].Attributes["name"]; ok {
		t.Error("expected only the requested attributes")
	}

	l.Delete(3)
	if !reflect.DeepEqual(l.SelectedIDs(), []int64{1}) {
		t.Errorf("expected [1] after delete, got %v", l.SelectedIDs())
	}
	l.SelectAll()
	if len(l.SelectedFeatures()) != 3 {
		t.Errorf("expected 3 selected, got %d", len(l.SelectedFeatures()))
	}
	l.RemoveSelection()
	if len(l.SelectedIDs()) != 0 {
		t.Errorf("expected an empty selection, got %v", l.SelectedIDs())
	}
}

func TestLayerClone(t *testing.T) {
	l := New("plots", KindPolygon)
	l.AddGeometry(mustWKT(t, "POINT (0 0)"), map[string]any{"t_id": 1})
	l.SelectAll()

	clone := l.Clone("copy")
	clone.Features()[0].Attributes["t_id"] = 2
	if l.Features()[0].Attributes["t_id"] != 1 {
		t.Error("expected the clone's attributes to be independent")
	}
	if len(clone.SelectedIDs()) != 0 {
		t.Error("expected the clone to have no selection")
	}
}

func TestGeometryKindFromFeatures(t *testing.T) {
	l := New("unknown", KindUnknown)
	l.AddGeometry(nil, nil)
	l.AddGeometry(mustWKT(t, "LINESTRING (0 0, 1 1)"), nil)
	if l.GeometryKind() != KindLine {
		t.Errorf("expected line, got %v", l.GeometryKind())
	}
}

func TestIDValue(t *testing.T) {
	f := &Feature{ID: 5, Attributes: map[string]any{"t_id": float64(12)}}
	if got := IDValue(f, "t_id"); got != 12 {
		t.Errorf("expected 12, got %d", got)
	}
	if got := IDValue(f, "missing"); got != 5 {
		t.Errorf("expected the feature id 5, got %d", got)
	}
}

func TestAddGeometryAfterDelete(t *testing.T) {
	l := New("plots", KindPolygon)
	if err := l.Add(&Feature{ID: 5}); err != nil {
		t.Fatal(err)
	}
	l.Delete(5)
	if f := l.AddGeometry(nil, nil); f.ID != 6 {
		t.Errorf("expected fresh id 6, got %d", f.ID)
	}
	if err := l.Add(&Feature{ID: 5}); err != nil {
		t.Errorf("expected a deleted id to be reusable, got %v", err)
	}
	if l.FeatureCount() != 2 {
		t.Errorf("expected 2 features, got %d", l.FeatureCount())
	}
}

func TestDeleteKeepsEarlierSlices(t *testing.T) {
	l := New("boundaries", KindLine)
	for range 3 {
		l.AddGeometry(nil, nil)
	}
	before := l.Features()
	l.Delete(1)

	ids := make([]int64, 0, len(before))
	for _, f := range before {
		ids = append(ids, f.ID)
	}
	if !reflect.DeepEqual(ids, []int64{1, 2, 3}) {
		t.Errorf("expected the earlier slice to stay [1 2 3], got %v", ids)
	}
	if l.FeatureCount() != 2 {
		t.Errorf("expected 2 features left, got %d", l.FeatureCount())
	}
}
