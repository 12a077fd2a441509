package processing

import (
	"fmt"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/bsaid97/go-ladm-topology/utils"
	"github.com/twpayne/go-geos"
)

// Spatial predicates understood by JoinByLocation.
const (
	PredicateIntersects = "intersects"
	PredicateTouches    = "touches"
	PredicateContains   = "contains"
	PredicateWithin     = "within"
	PredicateEquals     = "equals"
)

// JoinOptions configures JoinByLocation.
type JoinOptions struct {
	Predicate string
	// Fields of the join layer to copy; empty copies all of them.
	Fields    []string
	Prefix    string

	// OneToOne keeps only the first match instead of one feature per match.
	OneToOne           bool
	DiscardNonMatching bool
}

// JoinByLocation copies attributes of join features onto the input features
// they satisfy the predicate with.
func JoinByLocation(input, join *layer.Layer, opts JoinOptions) (*layer.Layer, error) {
	return Run(JoinAttributesByLocation, Params{
		"INPUT":               input,
		"JOIN":                join,
		"PREDICATE":           opts.Predicate,
		"JOIN_FIELDS":         opts.Fields,
		"PREFIX":              opts.Prefix,
		"ONE_TO_ONE":          opts.OneToOne,
		"DISCARD_NONMATCHING": opts.DiscardNonMatching,
	})
}

func runJoinAttributesByLocation(params Params) (*layer.Layer, error) {
	input, err := params.layer("INPUT")
	if err != nil {
		return nil, err
	}
	join, err := params.layer("JOIN")
	if err != nil {
		return nil, err
	}
	predicate := params.str("PREDICATE")
	if predicate == "" {
		predicate = PredicateIntersects
	}
	test, err := spatialPredicate(predicate)
	if err != nil {
		return nil, err
	}
	fields := params.strings("JOIN_FIELDS")
	prefix := params.str("PREFIX")
	oneToOne := params.boolean("ONE_TO_ONE")
	discard := params.boolean("DISCARD_NONMATCHING")

	index := indexLayer(join)
	out := layer.New(input.Name()+"_joined", input.GeometryKind())
	for _, f := range input.Features() {
		matched := false
		if f.Geom != nil && !f.Geom.IsEmpty() {
			for _, id := range index.Query(utils.GeomRect(f.Geom)) {
				candidate, err := join.GetFeature(id)
				if err != nil || !test(f.Geom, candidate.Geom) {
					continue
				}
				matched = true
				attrs := copyAttributes(f)
				for name, value := range joinedAttributes(candidate, fields) {
					key := prefix + name
					if _, clash := f.Attributes[key]; clash {
						key += "_2"
					}
					attrs[key] = value
				}
				out.AddGeometry(f.Geom, attrs)
				if oneToOne {
					break
				}
			}
		}
		if !matched && !discard {
			out.AddGeometry(f.Geom, copyAttributes(f))
		}
	}
	return out, nil
}

func joinedAttributes(f *layer.Feature, fields []string) map[string]any {
	if len(fields) == 0 {
		return f.Attributes
	}
	out := make(map[string]any, len(fields))
	for _, name := range fields {
		out[name] = f.Attribute(name)
	}
	return out
}

func spatialPredicate(name string) (func(a, b *geos.Geom) bool, error) {
	var fn func(a, b *geos.Geom) bool
	switch name {
	case PredicateIntersects:
		fn = func(a, b *geos.Geom) bool { return a.Intersects(b) }
	case PredicateTouches:
		fn = func(a, b *geos.Geom) bool { return a.Touches(b) }
	case PredicateContains:
		fn = func(a, b *geos.Geom) bool { return a.Contains(b) }
	case PredicateWithin:
		fn = func(a, b *geos.Geom) bool { return a.Within(b) }
	case PredicateEquals:
		fn = func(a, b *geos.Geom) bool { return a.Equals(b) }
	default:
		return nil, fmt.Errorf("unknown predicate %q", name)
	}
	return func(a, b *geos.Geom) (ok bool) {
		if a == nil || b == nil || a.IsEmpty() || b.IsEmpty() {
			return false
		}
		defer func() {
			if recover() != nil {
				ok = false
			}
		}()
		return fn(a, b)
	}, nil
}

func indexLayer(l *layer.Layer) *utils.SpatialIndex {
	features := l.Features()
	ids := make([]int64, 0, len(features))
	geoms := make([]*geos.Geom, 0, len(features))
	for _, f := range features {
		ids = append(ids, f.ID)
		geoms = append(geoms, f.Geom)
	}
	return utils.BuildSpatialIndex(ids, geoms)
}

// Subtract removes from every input feature the parts covered by the overlay
// layer. Features left empty are dropped; the rest keep their id and
// attributes.
func Subtract(input, overlay *layer.Layer) (*layer.Layer, error) {
	return Run(Difference, Params{"INPUT": input, "OVERLAY": overlay})
}

func runDifference(params Params) (*layer.Layer, error) {
	input, err := params.layer("INPUT")
	if err != nil {
		return nil, err
	}
	overlay, err := params.layer("OVERLAY")
	if err != nil {
		return nil, err
	}

	index := indexLayer(overlay)
	out := layer.New(input.Name()+"_difference", input.GeometryKind())
	for _, f := range input.Features() {
		if f.Geom == nil || f.Geom.IsEmpty() {
			continue
		}
		result := f.Geom
		for _, id := range index.Query(utils.GeomRect(f.Geom)) {
			other, err := overlay.GetFeature(id)
			if err != nil || other.Geom == nil || other.Geom.IsEmpty() {
				continue
			}
			result, err = subtractGeom(result, other.Geom)
			if err != nil {
				return nil, fmt.Errorf("feature %d minus %d: %w", f.ID, id, err)
			}
			if result.IsEmpty() {
				break
			}
		}
		if result.IsEmpty() {
			continue
		}
		if err := out.Add(&layer.Feature{ID: f.ID, Geom: result, Attributes: copyAttributes(f)}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func subtractGeom(a, b *geos.Geom) (result *geos.Geom, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("difference: %v", r)
		}
	}()
	if !a.Intersects(b) {
		return a, nil
	}
	return a.Difference(b), nil
}
