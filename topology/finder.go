package topology

import (
	"fmt"
	"sort"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/twpayne/go-geos"
)

// Pair is two feature ids in a detected relationship.
type Pair struct {
	A int64 `json:"a"`
	B int64 `json:"b"`
}

// Sorted returns the pair with the smaller id first.
func (p Pair) Sorted() Pair {
	if p.B < p.A {
		return Pair{A: p.B, B: p.A}
	}
	return p
}

// pairSet keeps pairs in discovery order without duplicates.
type pairSet struct {
	seen map[Pair]struct{}
	list []Pair
}

func newPairSet() *pairSet {
	return &pairSet{seen: make(map[Pair]struct{}), list: make([]Pair, 0)}
}

func (s *pairSet) add(p Pair) bool {
	if _, ok := s.seen[p]; ok {
		return false
	}
	s.seen[p] = struct{}{}
	s.list = append(s.list, p)
	return true
}

// eachCandidate indexes right, then calls visit for every feature of left and
// every right feature whose scaled box intersects its box.
func (e *Engine) eachCandidate(left, right []*layer.Feature, scale float64, visit func(f, candidate *layer.Feature)) {
	index := buildFeatureIndex(right)
	for _, f := range left {
		if f.Geom == nil || f.Geom.IsEmpty() {
			continue
		}
		for _, candidate := range index.candidates(f.Geom, scale) {
			visit(f, candidate)
		}
	}
}

// PlotBoundaryPairs classifies how boundaries relate to plots.
type PlotBoundaryPairs struct {
	// More pairs (plot id, boundary id) whose intersection with the plot's
	// outer ring is a line.
	More []Pair `json:"more"`
	// Less pairs (plot id, boundary id) whose intersection with an inner ring
	// of the plot is a line.
	Less   []Pair  `json:"less"`
	Issues []Issue `json:"issues"`
}

// PlotBoundaryPairs finds, for every plot, the boundaries running along its
// rings. Plots without holes test their whole boundary; plots with holes test
// outer and inner rings separately. Intersections that are not lines are
// reported as issues and produce no pair. Ids are read from the id field.
func (e *Engine) PlotBoundaryPairs(boundaries, plots layer.Source, useSelection bool) PlotBoundaryPairs {
	log := e.newIssues("plot-boundary-pairs")
	result := PlotBoundaryPairs{More: make([]Pair, 0), Less: make([]Pair, 0)}
	if boundaries.FeatureCount() == 0 {
		result.Issues = log.list
		return result
	}

	idField := e.opts.IDField
	attrs := []string{idField}
	polygons := plots.GetFeatures(attrs, useSelection)
	lines := boundaries.GetFeatures(attrs, false)

	e.eachCandidate(polygons, lines, e.opts.BBoxScale, func(plot, boundary *layer.Feature) {
		if !Intersects(plot.Geom, boundary.Geom) {
			return
		}
		plotID := layer.IDValue(plot, idField)
		boundaryID := layer.IDValue(boundary, idField)
		pair := Pair{A: plotID, B: boundaryID}

		outer, inner, err := Rings(plot.Geom)
		if err != nil {
			log.add(IssueUnsupportedType, err.Error(), plotID, boundaryID)
			return
		}

		classify := func(category string, rings []*geos.Geom, dst *[]Pair) {
			ringGeom := collect(geos.TypeIDMultiLineString, rings)
			intersection, err := Intersection(ringGeom, boundary.Geom)
			if err != nil {
				log.add(IssueGeometryError, err.Error(), plotID, boundaryID)
				return
			}
			if IsLineResult(intersection) {
				*dst = append(*dst, pair)
				return
			}
			log.add(IssueClassificationMismatch,
				fmt.Sprintf("(%s) Intersection between plot (%s=%d) and boundary (%s=%d) is a geometry of type: %s",
					category, idField, plotID, idField, boundaryID, describe(intersection)),
				plotID, boundaryID)
		}

		if len(inner) > 0 {
			classify("MoreBFS", outer, &result.More)
			classify("Less", inner, &result.Less)
			return
		}
		classify("MoreBFS", outer, &result.More)
	})

	result.Issues = log.list
	return result
}

// BoundaryPointPairs finds (boundary id, point id) pairs where the point lies
// exactly on an end vertex of the boundary line, or of one of its parts.
func (e *Engine) BoundaryPointPairs(boundaries, points layer.Source, useSelection bool) ([]Pair, []Issue) {
	log := e.newIssues("boundary-point-pairs")
	pairs := newPairSet()
	if points.FeatureCount() == 0 {
		return pairs.list, log.list
	}

	idField := e.opts.IDField
	attrs := []string{idField}
	lines := boundaries.GetFeatures(attrs, useSelection)
	candidates := points.GetFeatures(attrs, false)

	endpoints := make(map[int64][][]float64, len(lines))
	for _, line := range lines {
		coords, err := lineCoords(line.Geom)
		if err != nil {
			log.add(IssueUnsupportedType, err.Error(), line.ID)
			continue
		}
		for _, part := range coords {
			if len(part) == 0 {
				continue
			}
			endpoints[line.ID] = append(endpoints[line.ID], part[0], part[len(part)-1])
		}
	}

	e.eachCandidate(lines, candidates, e.opts.BBoxScale, func(line, point *layer.Feature) {
		if point.Geom.TypeID() != geos.TypeIDPoint {
			return
		}
		x, y := point.Geom.X(), point.Geom.Y()
		for _, vertex := range endpoints[line.ID] {
			if vertex[0] == x && vertex[1] == y {
				pairs.add(Pair{A: layer.IDValue(line, idField), B: layer.IDValue(point, idField)})
				return
			}
		}
	})

	return pairs.list, log.list
}

// OverlappingPolygons returns ascending-sorted id pairs of polygons of one
// layer that overlap, contain or are within each other. Touching polygons do
// not overlap. Non-polygon layers give no pairs.
func (e *Engine) OverlappingPolygons(polygons layer.Source) [][2]int64 {
	out := make([][2]int64, 0)
	if polygons.GeometryKind() != layer.KindPolygon || polygons.FeatureCount() == 0 {
		return out
	}

	features := polygons.GetFeatures([]string{}, false)
	pairs := newPairSet()
	e.eachCandidate(features, features, e.opts.BBoxScale, func(f, candidate *layer.Feature) {
		if f.ID == candidate.ID {
			return
		}
		if Overlaps(f.Geom, candidate.Geom) || Contains(f.Geom, candidate.Geom) || Within(f.Geom, candidate.Geom) {
			pairs.add(Pair{A: f.ID, B: candidate.ID}.Sorted())
		}
	})

	for _, p := range pairs.list {
		out = append(out, [2]int64{p.A, p.B})
	}
	return out
}

// IntersectionPolygons returns the polygon parts of the intersection of two
// features of a layer, collected, or nil when there are none.
func (e *Engine) IntersectionPolygons(polygons layer.Source, polygonID, overlappingID int64) (*geos.Geom, error) {
	a, err := polygons.GetFeature(polygonID)
	if err != nil {
		return nil, err
	}
	b, err := polygons.GetFeature(overlappingID)
	if err != nil {
		return nil, err
	}
	intersection, err := Intersection(a.Geom, b.Geom)
	if err != nil {
		return nil, err
	}
	return Collect(ExtractByType(intersection, layer.KindPolygon)), nil
}

// InnerIntersections holds the polygon intersections between two layers.
type InnerIntersections struct {
	// Pairs are (first layer id, second layer id), one entry per intersecting
	// feature pair.
	Pairs [][2]int64 `json:"pairs"`
	// Geometry collects every polygon part, nil when there is none.
	Geometry *geos.Geom `json:"-"`
	// Parts holds the polygon intersection of each pair, Pairs[i] owning
	// Parts[i]. Disjoint overlaps of one pair come as a MultiPolygon.
	Parts  []*geos.Geom `json:"-"`
	Issues []Issue      `json:"issues"`
}

// InnerIntersectionsBetweenPolygons finds polygons of the first layer that
// intersect polygons of the second in more than their boundaries. Only the
// polygon parts of each intersection are kept.
func (e *Engine) InnerIntersectionsBetweenPolygons(first, second layer.Source) InnerIntersections {
	log := e.newIssues("inner-intersections")
	result := InnerIntersections{Pairs: make([][2]int64, 0), Parts: make([]*geos.Geom, 0)}

	left := first.GetFeatures([]string{}, false)
	right := second.GetFeatures([]string{}, false)
	e.eachCandidate(left, right, e.opts.BBoxScale, func(f, candidate *layer.Feature) {
		if !Intersects(f.Geom, candidate.Geom) || Touches(f.Geom, candidate.Geom) {
			return
		}
		intersection, err := Intersection(f.Geom, candidate.Geom)
		if err != nil {
			log.add(IssueGeometryError, err.Error(), f.ID, candidate.ID)
			return
		}
		polygons := ExtractByType(intersection, layer.KindPolygon)
		if len(polygons) == 0 {
			return
		}
		result.Pairs = append(result.Pairs, [2]int64{f.ID, candidate.ID})
		result.Parts = append(result.Parts, Collect(polygons))
	})

	result.Geometry = Collect(result.Parts)
	result.Issues = log.list
	return result
}

func sortedIDs(ids map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
