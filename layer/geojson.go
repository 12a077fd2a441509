package layer

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bsaid97/go-ladm-topology/utils"
	"github.com/twpayne/go-geos"
)

type geoJSONFeature struct {
	Type       string          `json:"type"`
	ID         any             `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type geoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

// ParseOptions controls GeoJSON loading.
type ParseOptions struct {
	// Precision rounds coordinates to this many decimals; 0 keeps them.
	Precision int
	Workers   int
	Logger    *slog.Logger
}

type parsedFeature struct {
	feature *Feature
	err     error
}

// FromGeoJSON parses a FeatureCollection into a layer. Features whose geometry
// cannot be parsed are skipped and logged; features with a null geometry are
// kept with a nil geometry.
func FromGeoJSON(name string, payload []byte, opts ParseOptions) (*Layer, error) {
	var collection geoJSONFeatureCollection
	if err := json.Unmarshal(payload, &collection); err != nil {
		return nil, fmt.Errorf("failed to parse feature collection %s: %w", name, err)
	}
	if collection.Type != "" && collection.Type != "FeatureCollection" {
		return nil, fmt.Errorf("layer %s: expected FeatureCollection, got %s", name, collection.Type)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	results := utils.ProcessBatch(opts.Workers, collection.Features, func(raw geoJSONFeature) parsedFeature {
		f, err := parseFeature(raw, opts.Precision)
		return parsedFeature{feature: f, err: err}
	}, "parsing "+name)

	l := New(name, KindUnknown)
	pending := make([]*Feature, 0)
	for i, res := range results {
		if res.err != nil {
			logger.Warn("skipping feature", "layer", name, "index", i, "error", res.err)
			continue
		}
		if res.feature.ID == 0 {
			pending = append(pending, res.feature)
			continue
		}
		if err := l.Add(res.feature); err != nil {
			logger.Warn("reassigning feature id", "layer", name, "index", i, "error", err)
			res.feature.ID = 0
			pending = append(pending, res.feature)
		}
	}
	for _, f := range pending {
		if err := l.Add(f); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func parseFeature(raw geoJSONFeature, precision int) (*Feature, error) {
	f := &Feature{Attributes: raw.Properties}
	if id, ok := AsInt64(raw.ID); ok {
		f.ID = id
	}

	if len(raw.Geometry) == 0 || string(raw.Geometry) == "null" {
		return f, nil
	}

	g, err := geos.NewGeomFromGeoJSON(string(raw.Geometry))
	if err != nil {
		return nil, fmt.Errorf("error creating geometry: %w", err)
	}
	if precision > 0 {
		truncated, err := utils.TruncateGeometry(g, precision)
		if err != nil {
			return nil, err
		}
		g = truncated
	}
	f.Geom = g
	return f, nil
}

// ToGeoJSON encodes the layer as a FeatureCollection.
func ToGeoJSON(l *Layer) ([]byte, error) {
	collection := geoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]geoJSONFeature, 0, l.FeatureCount()),
	}
	for _, f := range l.Features() {
		geometry := json.RawMessage("null")
		if f.Geom != nil {
			geometry = json.RawMessage(f.Geom.ToGeoJSON(-1))
		}
		properties := f.Attributes
		if properties == nil {
			properties = map[string]any{}
		}
		collection.Features = append(collection.Features, geoJSONFeature{
			Type:       "Feature",
			ID:         f.ID,
			Geometry:   geometry,
			Properties: properties,
		})
	}
	return json.Marshal(collection)
}

// ShapeRecords adapts the layer to the shapefile exporter.
func ShapeRecords(l *Layer) []utils.ShapeRecord {
	records := make([]utils.ShapeRecord, 0, l.FeatureCount())
	for _, f := range l.Features() {
		records = append(records, utils.ShapeRecord{Geom: f.Geom, Properties: f.Attributes})
	}
	return records
}
