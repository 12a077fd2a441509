package topology

import (
	"math"
	"sort"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/bsaid97/go-ladm-topology/processing"
	"github.com/bsaid97/go-ladm-topology/utils"
	"github.com/twpayne/go-geos"
)

// OverlappingPoints groups the ids of points sharing their exact location,
// e.g. [[1 3] [19 2 8]]. Each point is reported at most once.
func (e *Engine) OverlappingPoints(points layer.Source) [][]int64 {
	groups := make([][]int64, 0)
	if points.FeatureCount() == 0 {
		return groups
	}

	features := make([]*layer.Feature, 0, points.FeatureCount())
	ids := make([]int64, 0, points.FeatureCount())
	geoms := make([]*geos.Geom, 0, points.FeatureCount())
	for _, f := range points.GetFeatures([]string{}, false) {
		if f.Geom == nil || f.Geom.IsEmpty() || f.Geom.TypeID() != geos.TypeIDPoint {
			continue
		}
		features = append(features, f)
		ids = append(ids, f.ID)
		geoms = append(geoms, f.Geom)
	}
	index := utils.BuildSpatialIndex(ids, geoms)

	reported := make(map[int64]struct{})
	for _, f := range features {
		if _, ok := reported[f.ID]; ok {
			continue
		}
		group := []int64{f.ID}
		for _, n := range index.FindNeighbors(f.Geom, 0) {
			group = append(group, n.ID)
		}
		if len(group) < 2 {
			continue
		}
		for _, id := range group {
			reported[id] = struct{}{}
		}
		groups = append(groups, group)
	}
	return groups
}

// LongSegment is a piece of a line between consecutive vertices.
type LongSegment struct {
	Geom   *geos.Geom
	Length float64
}

// TooLongSegments returns the pieces of line, between consecutive vertices,
// longer than tolerance.
func TooLongSegments(line *geos.Geom, tolerance float64) ([]LongSegment, error) {
	parts, err := lineCoords(line)
	if err != nil {
		return nil, err
	}
	out := make([]LongSegment, 0)
	for _, coords := range parts {
		for i := 0; i+1 < len(coords); i++ {
			a, b := coords[i], coords[i+1]
			length := math.Hypot(b[0]-a[0], b[1]-a[1])
			if length > tolerance {
				out = append(out, LongSegment{
					Geom:   geos.NewLineString([][]float64{{a[0], a[1]}, {b[0], b[1]}}),
					Length: length,
				})
			}
		}
	}
	return out, nil
}

// BeginEndVertices returns the distinct first and last vertices of the lines
// as a point layer.
func BeginEndVertices(lines *layer.Layer) (*layer.Layer, error) {
	vertices, err := processing.ExtractVertices(lines, "0,-1")
	if err != nil {
		return nil, err
	}
	return processing.DeleteDuplicates(vertices)
}

// BoundariesConnectedToSingleBoundary returns the boundaries having an end
// vertex shared with exactly one other boundary: a vertex where the
// adjacency does not change. Features come back in ascending id order.
func (e *Engine) BoundariesConnectedToSingleBoundary(boundaries *layer.Layer) ([]*layer.Feature, error) {
	points, err := BeginEndVertices(boundaries)
	if err != nil {
		return nil, err
	}
	lines := boundaries.GetFeatures([]string{e.opts.IDField}, false)
	index := buildFeatureIndex(lines)

	connected := make(map[int64]struct{})
	for _, point := range points.Features() {
		touching := make([]int64, 0, 2)
		for _, candidate := range index.candidates(point.Geom, 1) {
			if Intersects(candidate.Geom, point.Geom) {
				touching = append(touching, candidate.ID)
			}
		}
		if len(touching) == 2 {
			for _, id := range touching {
				connected[id] = struct{}{}
			}
		}
	}

	out := make([]*layer.Feature, 0, len(connected))
	for _, id := range sortedIDs(connected) {
		out = append(out, index.byID[id])
	}
	return out, nil
}

// MultipartGeometries returns the parts of every feature that is a multi
// geometry of more than one part, with the id of the feature each part
// comes from.
func (e *Engine) MultipartGeometries(source layer.Source) ([]*geos.Geom, []int64) {
	parts := make([]*geos.Geom, 0)
	ids := make([]int64, 0)
	for _, f := range source.GetFeatures([]string{}, false) {
		g := f.Geom
		if g == nil || g.IsEmpty() {
			continue
		}
		switch g.TypeID() {
		case geos.TypeIDMultiPoint, geos.TypeIDMultiLineString, geos.TypeIDMultiPolygon:
		default:
			continue
		}
		if g.NumGeometries() < 2 {
			continue
		}
		for i := range g.NumGeometries() {
			parts = append(parts, g.Geometry(i).Clone())
			ids = append(ids, f.ID)
		}
	}
	return parts, ids
}

// GeometryCheck is an invalid feature and the reason GEOS gives.
type GeometryCheck struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// CheckGeometry reports the features GEOS considers invalid and why.
func (e *Engine) CheckGeometry(source layer.Source) []GeometryCheck {
	out := make([]GeometryCheck, 0)
	for _, f := range source.GetFeatures([]string{}, false) {
		if f.Geom == nil {
			out = append(out, GeometryCheck{ID: f.ID, Reason: "null geometry"})
			continue
		}
		valid, err := guard("is valid", f.Geom.IsValid)
		if err != nil {
			out = append(out, GeometryCheck{ID: f.ID, Reason: err.Error()})
			continue
		}
		if valid {
			continue
		}
		reason, err := guard("is valid reason", f.Geom.IsValidReason)
		if err != nil {
			reason = err.Error()
		}
		out = append(out, GeometryCheck{ID: f.ID, Reason: reason})
	}
	return out
}

// JoinBoundaryPointsWithBoundary tags every boundary point with the id of
// the boundaries it intersects, one feature per match. Points on no boundary
// are dropped.
func (e *Engine) JoinBoundaryPointsWithBoundary(points, boundaries *layer.Layer) (*layer.Layer, error) {
	return processing.JoinByLocation(points, boundaries, processing.JoinOptions{
		Predicate:          processing.PredicateIntersects,
		Fields:             []string{e.opts.IDField},
		DiscardNonMatching: true,
	})
}

// vertexTolerance is how far, relative to the segment length, a vertex may
// sit from a segment and still be inserted into it.
const vertexTolerance = 1e-9

// AddTopologicalVertices returns a copy of target in which every vertex of
// the source geometries that lies on a target segment, without being a
// target vertex already, is inserted into that segment. Polygon sources are
// used through their rings and multipart sources part by part.
func AddTopologicalVertices(target, source *layer.Layer) (*layer.Layer, error) {
	var err error
	if source.GeometryKind() == layer.KindPolygon {
		if source, err = processing.PolygonRings(source); err != nil {
			return nil, err
		}
	}
	if source, err = processing.SplitMultipart(source); err != nil {
		return nil, err
	}

	index := indexSource(source)
	out := layer.New(target.Name(), target.GeometryKind())
	for _, f := range target.Features() {
		g := f.Geom
		if g != nil && !g.IsEmpty() && layer.KindOf(g) == layer.KindLine {
			extra := make([][]float64, 0)
			for _, id := range index.Query(utils.ScaleRect(utils.GeomRect(g), 1.001)) {
				candidate, err := source.GetFeature(id)
				if err != nil {
					continue
				}
				coords, err := vertexCoords(candidate.Geom)
				if err != nil {
					continue
				}
				extra = append(extra, coords...)
			}
			if len(extra) > 0 {
				snapped, err := insertVertices(g, extra)
				if err != nil {
					return nil, err
				}
				g = snapped
			}
		}
		attrs := make(map[string]any, len(f.Attributes))
		for k, v := range f.Attributes {
			attrs[k] = v
		}
		if err := out.Add(&layer.Feature{ID: f.ID, Geom: g, Attributes: attrs}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func indexSource(source *layer.Layer) *utils.SpatialIndex {
	index := utils.NewSpatialIndex(0)
	for _, f := range source.Features() {
		index.AddGeometry(f.ID, f.Geom)
	}
	return index
}

func vertexCoords(g *geos.Geom) ([][]float64, error) {
	if g == nil || g.IsEmpty() {
		return nil, nil
	}
	if g.TypeID() == geos.TypeIDPoint {
		return [][]float64{{g.X(), g.Y()}}, nil
	}
	parts, err := lineCoords(g)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, 0)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, nil
}

// insertVertices rebuilds the line parts of g with the points that fall in
// the interior of one of its segments added in order along that segment.
func insertVertices(g *geos.Geom, points [][]float64) (*geos.Geom, error) {
	parts, err := lineCoords(g)
	if err != nil {
		return nil, err
	}
	changed := false
	rebuilt := make([]*geos.Geom, 0, len(parts))
	for _, coords := range parts {
		existing := make(map[vertex]struct{}, len(coords))
		for _, c := range coords {
			existing[vertex{c[0], c[1]}] = struct{}{}
		}

		out := make([][]float64, 0, len(coords))
		for i := 0; i+1 < len(coords); i++ {
			a, b := coords[i], coords[i+1]
			out = append(out, a)

			type onSegment struct {
				t     float64
				coord []float64
			}
			inserted := make([]onSegment, 0)
			seen := make(map[vertex]struct{})
			for _, p := range points {
				v := vertex{p[0], p[1]}
				if _, ok := existing[v]; ok {
					continue
				}
				if _, ok := seen[v]; ok {
					continue
				}
				if t, ok := projectOnSegment(a, b, p); ok {
					seen[v] = struct{}{}
					inserted = append(inserted, onSegment{t: t, coord: []float64{p[0], p[1]}})
				}
			}
			sort.Slice(inserted, func(i, j int) bool { return inserted[i].t < inserted[j].t })
			for _, s := range inserted {
				out = append(out, s.coord)
			}
			changed = changed || len(inserted) > 0
		}
		out = append(out, coords[len(coords)-1])
		rebuilt = append(rebuilt, geos.NewLineString(out))
	}

	if !changed {
		return g, nil
	}
	if len(rebuilt) == 1 && g.TypeID() != geos.TypeIDMultiLineString {
		return rebuilt[0], nil
	}
	return geos.NewCollection(geos.TypeIDMultiLineString, rebuilt), nil
}

// projectOnSegment returns the position of p along a-b, in (0, 1), when p
// lies on the segment's interior.
func projectOnSegment(a, b, p []float64) (float64, bool) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length2 := dx*dx + dy*dy
	if length2 == 0 {
		return 0, false
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / length2
	if t <= 0 || t >= 1 {
		return 0, false
	}
	cross := (p[0]-a[0])*dy - (p[1]-a[1])*dx
	if math.Abs(cross) > vertexTolerance*length2 {
		return 0, false
	}
	return t, true
}

// DifferenceFeature is a piece of geometry left by a difference, with the id
// of the feature it comes from.
type DifferenceFeature struct {
	Geometry *geos.Geom
	ID       int64
}

// DifferencePlotBoundary returns the parts of the plot lines not covered by
// boundaries. Boundary vertices missing from the plot lines are added
// between two difference passes, so pieces ending on such vertices are
// removed too.
func (e *Engine) DifferencePlotBoundary(plotLines, boundaries *layer.Layer) ([]DifferenceFeature, error) {
	approx, err := processing.Subtract(plotLines, boundaries)
	if err != nil {
		return nil, err
	}
	approx, err = AddTopologicalVertices(approx, boundaries)
	if err != nil {
		return nil, err
	}
	diff, err := processing.Subtract(approx, boundaries)
	if err != nil {
		return nil, err
	}
	return e.differenceFeatures(diff), nil
}

// DifferenceBoundaryPlot returns the parts of the boundaries not covered by
// plot lines, the counterpart of DifferencePlotBoundary.
func (e *Engine) DifferenceBoundaryPlot(boundaries, plotLines *layer.Layer) ([]DifferenceFeature, error) {
	approx, err := processing.Subtract(boundaries, plotLines)
	if err != nil {
		return nil, err
	}
	snappedPlots, err := AddTopologicalVertices(plotLines, approx)
	if err != nil {
		return nil, err
	}
	diff, err := processing.Subtract(approx, snappedPlots)
	if err != nil {
		return nil, err
	}
	return e.differenceFeatures(diff), nil
}

func (e *Engine) differenceFeatures(diff *layer.Layer) []DifferenceFeature {
	out := make([]DifferenceFeature, 0, diff.FeatureCount())
	for _, f := range diff.Features() {
		out = append(out, DifferenceFeature{Geometry: f.Geom, ID: layer.IDValue(f, e.opts.IDField)})
	}
	return out
}
