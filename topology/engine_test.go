package topology

import (
	"io"
	"log/slog"
	"testing"

	"github.com/bsaid97/go-ladm-topology/layer"
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

// newLayer builds a layer whose features get ids 1..n and the same value in
// the t_id attribute.
func newLayer(t *testing.T, name string, kind layer.Kind, wkts ...string) *layer.Layer {
	t.Helper()
	l := layer.New(name, kind)
	for i, wkt := range wkts {
		id := int64(i + 1)
		f := &layer.Feature{ID: id, Geom: mustWKT(t, wkt), Attributes: map[string]any{"t_id": id}}
		if err := l.Add(f); err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func testEngine() *Engine {
	return NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)), DefaultOptions())
}

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(nil, Options{IDField: "id"})
	opts := e.Options()
	def := DefaultOptions()

	if opts.IDField != "id" {
		t.Errorf("expected id field id, got %q", opts.IDField)
	}
	if opts.BBoxScale != def.BBoxScale {
		t.Errorf("expected bbox scale %v, got %v", def.BBoxScale, opts.BBoxScale)
	}
	if opts.GapBufferDistance != def.GapBufferDistance || opts.GapBufferSegments != def.GapBufferSegments {
		t.Errorf("expected gap buffer %v/%d, got %v/%d",
			def.GapBufferDistance, def.GapBufferSegments, opts.GapBufferDistance, opts.GapBufferSegments)
	}
}

func TestIssueString(t *testing.T) {
	issue := Issue{Kind: IssueGeometryError, Operation: "gaps", FeatureIDs: []int64{3}, Message: "boom"}
	expected := "gaps (geometry-error) [3]: boom"
	if issue.String() != expected {
		t.Errorf("expected %q, got %q", expected, issue.String())
	}
}
