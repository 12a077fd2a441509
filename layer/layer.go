// Package layer holds the feature collections the topology engine reads:
// features with an id, a GEOS geometry and attributes, grouped in layers that
// support selection and lookup by id.
package layer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/twpayne/go-geos"
)

var ErrFeatureNotFound = errors.New("feature not found")

// Kind is the dimension class of a geometry, regardless of multi-ness.
type Kind int

const (
	KindUnknown Kind = iota
	KindPoint
	KindLine
	KindPolygon
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindPolygon:
		return "polygon"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// KindOf classifies g. Geometry collections are unknown, like empty input.
func KindOf(g *geos.Geom) Kind {
	if g == nil {
		return KindNull
	}
	switch g.TypeID() {
	case geos.TypeIDPoint, geos.TypeIDMultiPoint:
		return KindPoint
	case geos.TypeIDLineString, geos.TypeIDLinearRing, geos.TypeIDMultiLineString:
		return KindLine
	case geos.TypeIDPolygon, geos.TypeIDMultiPolygon:
		return KindPolygon
	default:
		return KindUnknown
	}
}

type Feature struct {
	ID         int64
	Geom       *geos.Geom
	Attributes map[string]any
}

// Attribute returns the named attribute or nil.
func (f *Feature) Attribute(name string) any {
	if f.Attributes == nil {
		return nil
	}
	return f.Attributes[name]
}

// IDValue returns the numeric value of the idField attribute, falling back to
// the feature id when the attribute is missing or not numeric.
func IDValue(f *Feature, idField string) int64 {
	if idField == "" {
		return f.ID
	}
	if v, ok := AsInt64(f.Attribute(idField)); ok {
		return v
	}
	return f.ID
}

// AsInt64 converts the numeric kinds produced by JSON, DBF and SQL drivers.
func AsInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float32:
		return int64(v), float64(v) == math.Trunc(float64(v))
	case float64:
		return int64(v), v == math.Trunc(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Source is what the engine needs from a layer.
type Source interface {
	Name() string
	GetFeatures(attributes []string, selectionOnly bool) []*Feature
	FeatureCount() int
	GetFeature(id int64) (*Feature, error)
	GeometryKind() Kind
}

// Layer is an in-memory feature collection. Feature order is insertion order.
type Layer struct {
	name     string
	kind     Kind
	features []*Feature
	byID     map[int64]*Feature
	selected map[int64]struct{}
	nextID   int64
}

func New(name string, kind Kind) *Layer {
	return &Layer{
		name:     name,
		kind:     kind,
		features: make([]*Feature, 0),
		byID:     make(map[int64]*Feature),
		selected: make(map[int64]struct{}),
		nextID:   1,
	}
}

func (l *Layer) Name() string { return l.name }

// GeometryKind returns the declared kind, or the kind of the first feature
// when the layer was created without one.
func (l *Layer) GeometryKind() Kind {
	if l.kind != KindUnknown {
		return l.kind
	}
	for _, f := range l.features {
		if k := KindOf(f.Geom); k != KindNull {
			return k
		}
	}
	return KindUnknown
}

// Add appends a feature. A zero id gets the next free id; a duplicate id is an
// error.
func (l *Layer) Add(f *Feature) error {
	if f.ID == 0 {
		f.ID = l.nextID
	}
	if _, ok := l.byID[f.ID]; ok {
		return fmt.Errorf("layer %s: duplicate feature id %d", l.name, f.ID)
	}
	l.insert(f)
	return nil
}

// AddGeometry appends a feature with a fresh id and returns it. Fresh ids are
// above every id the layer has held, so this never collides.
func (l *Layer) AddGeometry(g *geos.Geom, attributes map[string]any) *Feature {
	f := &Feature{ID: l.nextID, Geom: g, Attributes: attributes}
	l.insert(f)
	return f
}

func (l *Layer) insert(f *Feature) {
	if f.Attributes == nil {
		f.Attributes = make(map[string]any)
	}
	l.features = append(l.features, f)
	l.byID[f.ID] = f
	if f.ID >= l.nextID {
		l.nextID = f.ID + 1
	}
}

func (l *Layer) FeatureCount() int { return len(l.features) }

func (l *Layer) GetFeature(id int64) (*Feature, error) {
	f, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("layer %s: id %d: %w", l.name, id, ErrFeatureNotFound)
	}
	return f, nil
}

// GetFeatures returns the features, or only the selected ones. When
// attributes is non-nil the returned features carry only those attributes;
// geometries are shared, never copied.
func (l *Layer) GetFeatures(attributes []string, selectionOnly bool) []*Feature {
	out := make([]*Feature, 0, len(l.features))
	for _, f := range l.features {
		if selectionOnly {
			if _, ok := l.selected[f.ID]; !ok {
				continue
			}
		}
		if attributes == nil {
			out = append(out, f)
			continue
		}
		subset := make(map[string]any, len(attributes))
		for _, name := range attributes {
			if v, ok := f.Attributes[name]; ok {
				subset[name] = v
			}
		}
		out = append(out, &Feature{ID: f.ID, Geom: f.Geom, Attributes: subset})
	}
	return out
}

// Features returns all features in insertion order.
func (l *Layer) Features() []*Feature {
	return l.features
}

// Select adds ids to the selection, ignoring unknown ids.
func (l *Layer) Select(ids ...int64) {
	for _, id := range ids {
		if _, ok := l.byID[id]; ok {
			l.selected[id] = struct{}{}
		}
	}
}

func (l *Layer) SelectAll() {
	for id := range l.byID {
		l.selected[id] = struct{}{}
	}
}

func (l *Layer) RemoveSelection() {
	l.selected = make(map[int64]struct{})
}

// SelectedIDs returns the selection in ascending order.
func (l *Layer) SelectedIDs() []int64 {
	ids := make([]int64, 0, len(l.selected))
	for id := range l.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (l *Layer) SelectedFeatures() []*Feature {
	return l.GetFeatures(nil, true)
}

// Delete removes features by id and drops them from the selection. Slices
// returned by Features before the call are left untouched.
func (l *Layer) Delete(ids ...int64) {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
		delete(l.byID, id)
		delete(l.selected, id)
	}
	kept := make([]*Feature, 0, len(l.features))
	for _, f := range l.features {
		if _, ok := drop[f.ID]; !ok {
			kept = append(kept, f)
		}
	}
	l.features = kept
}

// Clone returns a layer with the same features and no selection.
func (l *Layer) Clone(name string) *Layer {
	out := New(name, l.kind)
	for _, f := range l.features {
		attrs := make(map[string]any, len(f.Attributes))
		for k, v := range f.Attributes {
			attrs[k] = v
		}
		_ = out.Add(&Feature{ID: f.ID, Geom: f.Geom, Attributes: attrs})
	}
	return out
}
