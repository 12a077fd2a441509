package topology

import (
	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/twpayne/go-geos"
)

// InnerRingsLayer returns a line layer holding one feature per interior ring
// of the plots, tagged in the id field with the id of the plot it belongs to.
// Plots without holes contribute nothing.
func (e *Engine) InnerRingsLayer(plots layer.Source, useSelection bool) (*layer.Layer, []Issue) {
	log := e.newIssues("inner-rings")
	idField := e.opts.IDField
	rings := layer.New("rings", layer.KindLine)

	for _, plot := range plots.GetFeatures([]string{idField}, useSelection) {
		if !HasInnerRings(plot.Geom) {
			continue
		}
		_, inner, err := Rings(plot.Geom)
		if err != nil {
			log.add(IssueUnsupportedType, err.Error(), plot.ID)
			continue
		}
		plotID := layer.IDValue(plot, idField)
		for _, ring := range inner {
			rings.AddGeometry(ring, map[string]any{idField: plotID})
		}
	}
	return rings, log.list
}

// Dissolve unions the polygons of a layer into one geometry. Invalid
// polygons are repaired with a zero-width buffer first.
func (e *Engine) Dissolve(polygons layer.Source) (*geos.Geom, []Issue) {
	log := e.newIssues("dissolve")
	geoms := make([]*geos.Geom, 0, polygons.FeatureCount())
	for _, f := range polygons.GetFeatures([]string{}, false) {
		if f.Geom == nil || f.Geom.IsEmpty() {
			continue
		}
		g := f.Geom
		if valid, err := guard("is valid", g.IsValid); err != nil || !valid {
			repaired, err := Buffer(g, 0, 0)
			if err != nil {
				log.add(IssueInvalidGeometry, err.Error(), f.ID)
				continue
			}
			g = repaired
		}
		geoms = append(geoms, g)
	}
	union, err := Union(geoms)
	if err != nil {
		log.add(IssueGeometryError, err.Error())
		return nil, log.list
	}
	return union, log.list
}
