// Package processing runs the named layer algorithms the topology checks
// depend on. Each algorithm takes layers and parameters and returns a new
// layer; inputs are never modified.
package processing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bsaid97/go-ladm-topology/layer"
)

const (
	ExplodeLines              = "native:explodelines"
	DeleteDuplicateGeometries = "qgis:deleteduplicategeometries"
	MultipartToSingleparts    = "native:multiparttosingleparts"
	PolygonsToLines           = "ladm_col:polygonstolines"
	ExtractSpecificVertices   = "qgis:extractspecificvertices"
	JoinAttributesByLocation  = "qgis:joinattributesbylocation"
	Difference                = "native:difference"
)

// SourceField is the attribute in which derived features record the id of
// the feature they come from.
const SourceField = "source_fid"

var ErrUnknownAlgorithm = errors.New("unknown processing algorithm")

// Params are the inputs of one algorithm run, keyed like the algorithm's
// parameter names (INPUT, OVERLAY, JOIN, VERTICES, JOIN_FIELDS,
// DISCARD_NONMATCHING).
type Params map[string]any

type Algorithm func(params Params) (*layer.Layer, error)

var registry = map[string]Algorithm{
	ExplodeLines:              runExplodeLines,
	DeleteDuplicateGeometries: runDeleteDuplicateGeometries,
	MultipartToSingleparts:    runMultipartToSingleparts,
	PolygonsToLines:           runPolygonsToLines,
	ExtractSpecificVertices:   runExtractSpecificVertices,
	JoinAttributesByLocation:  runJoinAttributesByLocation,
	Difference:                runDifference,
}

// Run executes the algorithm registered under name.
func Run(name string, params Params) (*layer.Layer, error) {
	algorithm, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
	out, err := algorithm(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Algorithms lists the registered algorithm names.
func Algorithms() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p Params) layer(key string) (*layer.Layer, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("missing parameter %s", key)
	}
	l, ok := v.(*layer.Layer)
	if !ok || l == nil {
		return nil, fmt.Errorf("parameter %s: expected *layer.Layer, got %T", key, v)
	}
	return l, nil
}

func (p Params) strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	default:
		return nil
	}
}

func (p Params) boolean(key string) bool {
	v, _ := p[key].(bool)
	return v
}

func (p Params) str(key string) string {
	v, _ := p[key].(string)
	return v
}

func copyAttributes(f *layer.Feature) map[string]any {
	attrs := make(map[string]any, len(f.Attributes)+1)
	for k, v := range f.Attributes {
		attrs[k] = v
	}
	return attrs
}

// derivedAttributes copies f's attributes and records its id.
func derivedAttributes(f *layer.Feature) map[string]any {
	attrs := copyAttributes(f)
	attrs[SourceField] = f.ID
	return attrs
}
