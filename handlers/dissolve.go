package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/bsaid97/go-ladm-topology/topology"
	"github.com/twpayne/go-geos"
)

// geometryLayer wraps loose geometries in a layer so they can be encoded.
func geometryLayer(name string, kind layer.Kind, geoms []*geos.Geom) *layer.Layer {
	l := layer.New(name, kind)
	for _, g := range geoms {
		if g == nil {
			continue
		}
		l.AddGeometry(g, nil)
	}
	return l
}

// dissolve unions the "polygons" layer into a single feature.
func (s *Server) dissolve(w http.ResponseWriter, req *request) error {
	polygons, err := req.layer("polygons")
	if err != nil {
		return err
	}
	union, issues := s.engine.Dissolve(polygons)
	out := geometryLayer("dissolved", layer.KindPolygon, []*geos.Geom{union})

	collection, err := geojson(out)
	if err != nil {
		return err
	}
	return s.sendLayer(w, req, out, struct {
		Dissolved json.RawMessage  `json:"dissolved"`
		Issues    []topology.Issue `json:"issues"`
	}{collection, issues})
}
