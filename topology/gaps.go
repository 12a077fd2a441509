package topology

import (
	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/twpayne/go-geos"
)

// Gaps finds the uncovered regions enclosed by a polygon mosaic. Regions that
// open onto the mosaic's bounding box are roads; they are skipped unless
// includeRoads is set. It returns nil when there are no gaps.
//
// The mosaic's bounding box is buffered by GapBufferDistance; the frame
// between that buffer and the box, and whatever the mosaic covers, are
// removed from the buffer. What is left, clipped to the mosaic's convex hull,
// are the gaps.
func (e *Engine) Gaps(polygons layer.Source, includeRoads bool) ([]*geos.Geom, []Issue) {
	log := e.newIssues("gaps")

	collection := make([]*geos.Geom, 0, polygons.FeatureCount())
	for _, f := range polygons.GetFeatures([]string{}, false) {
		if f.Geom == nil || f.Geom.IsEmpty() {
			continue
		}
		valid, err := guard("is valid", f.Geom.IsValid)
		if err != nil || !valid {
			continue
		}
		if f.Geom.TypeID() == geos.TypeIDMultiPolygon {
			for i := range f.Geom.NumGeometries() {
				collection = append(collection, f.Geom.Geometry(i))
			}
			continue
		}
		collection = append(collection, f.Geom)
	}
	if len(collection) == 0 {
		return nil, log.list
	}

	union, err := Union(collection)
	if err != nil {
		log.add(IssueGeometryError, err.Error())
		return nil, log.list
	}
	hull, err := ConvexHull(union)
	if err != nil {
		log.add(IssueGeometryError, err.Error())
		return nil, log.list
	}

	extent := rectPolygon(union)
	bufferExtent, err := Buffer(extent, e.opts.GapBufferDistance, e.opts.GapBufferSegments)
	if err != nil {
		log.add(IssueGeometryError, err.Error())
		return nil, log.list
	}
	frame, err := Difference(bufferExtent, extent)
	if err != nil {
		log.add(IssueGeometryError, err.Error())
		return nil, log.list
	}
	uncovered, err := Difference(bufferExtent, union)
	if err != nil {
		log.add(IssueGeometryError, err.Error())
		return nil, log.list
	}
	diff, err := Difference(uncovered, frame)
	if err != nil {
		log.add(IssueGeometryError, err.Error())
		return nil, log.list
	}
	if diff.IsEmpty() {
		return nil, log.list
	}

	opensOntoFrame := func(g *geos.Geom) bool {
		return Touches(g, union) && Intersects(g, frame)
	}

	if diff.TypeID() == geos.TypeIDPolygon && includeRoads && opensOntoFrame(diff) {
		return nil, log.list
	}

	unionIsMulti := union.TypeID() == geos.TypeIDMultiPolygon || union.TypeID() == geos.TypeIDGeometryCollection
	conflicts := make([]*geos.Geom, 0)
	for _, candidate := range ExtractByType(diff, layer.KindPolygon) {
		if !includeRoads && opensOntoFrame(candidate) {
			continue
		}
		if !unionIsMulti && opensOntoFrame(candidate) {
			continue
		}
		conflicts = append(conflicts, candidate)
	}
	if len(conflicts) == 0 {
		return nil, log.list
	}

	clean, err := Intersection(collect(geos.TypeIDMultiPolygon, conflicts), hull)
	if err != nil {
		log.add(IssueGeometryError, err.Error())
		return nil, log.list
	}
	gaps := ExtractByType(clean, layer.KindPolygon)
	if len(gaps) == 0 {
		return nil, log.list
	}
	return gaps, log.list
}
