package topology

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/bsaid97/go-ladm-topology/processing"
	"github.com/twpayne/go-geos"
)

var ErrTraversalExhausted = errors.New("boundary traversal exhausted")

// Traversal directions: from the start vertex or from the end vertex of the
// seed segment.
const (
	FromStart = 1
	FromEnd   = -1
)

type vertex [2]float64

type segment struct {
	id         int64
	start, end vertex
}

// side returns the vertex a traversal in direction leaves the segment by.
func (s *segment) side(direction int) vertex {
	if direction == FromEnd {
		return s.end
	}
	return s.start
}

// opposite returns the vertex of s that is not v.
func (s *segment) opposite(v vertex) vertex {
	if v == s.start {
		return s.end
	}
	return s.start
}

// SegmentGraph connects segments through their shared end vertices. Vertices
// match by exact coordinate equality.
type SegmentGraph struct {
	segments map[int64]*segment
	ids      []int64
	incident map[vertex][]int64
	maxSteps int
}

// NewSegmentGraph builds the graph of line features. Each feature contributes
// its first and last vertex; features that are not single line strings are
// rejected.
func NewSegmentGraph(features []*layer.Feature) (*SegmentGraph, error) {
	g := &SegmentGraph{
		segments: make(map[int64]*segment, len(features)),
		ids:      make([]int64, 0, len(features)),
		incident: make(map[vertex][]int64),
	}
	for _, f := range features {
		if f.Geom == nil || f.Geom.IsEmpty() {
			continue
		}
		if f.Geom.TypeID() != geos.TypeIDLineString {
			return nil, fmt.Errorf("segment %d: %w: %s", f.ID, ErrUnsupportedGeometry, f.Geom.Type())
		}
		coords := f.Geom.CoordSeq().ToCoords()
		if len(coords) < 2 {
			continue
		}
		first, last := coords[0], coords[len(coords)-1]
		s := &segment{id: f.ID, start: vertex{first[0], first[1]}, end: vertex{last[0], last[1]}}
		if _, ok := g.segments[s.id]; ok {
			return nil, fmt.Errorf("duplicate segment id %d", s.id)
		}
		g.segments[s.id] = s
		g.ids = append(g.ids, s.id)
		g.incident[s.start] = append(g.incident[s.start], s.id)
		if s.end != s.start {
			g.incident[s.end] = append(g.incident[s.end], s.id)
		}
	}
	// A walk visits each segment at most once, then spends at most one
	// reversal and one stopping revisit, so it ends within n+2 steps. The
	// bound only trips on a graph whose incidence lists were corrupted.
	g.maxSteps = len(g.ids) + 2
	return g, nil
}

func (g *SegmentGraph) Len() int { return len(g.ids) }

// IDs returns the segment ids in insertion order.
func (g *SegmentGraph) IDs() []int64 { return g.ids }

// neighbors returns the segments other than exclude that touch v.
func (g *SegmentGraph) neighbors(v vertex, exclude int64) []int64 {
	out := make([]int64, 0, 2)
	for _, id := range g.incident[v] {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

// traversal is the state of one directional walk.
type traversal struct {
	current   int64
	direction int
	vertex    vertex
	visited   []int64
	seen      map[int64]struct{}
	reversals int
}

// Walk follows the chain leaving seed in direction for as long as exactly one
// other segment touches the active vertex. A segment met a second time
// flips the direction once, which traces closed loops whatever their
// digitizing direction; the next revisit ends the walk. The seed itself is
// only in the result when the chain loops back to it.
func (g *SegmentGraph) Walk(seed int64, direction int) ([]int64, error) {
	s, ok := g.segments[seed]
	if !ok {
		return nil, fmt.Errorf("segment %d: %w", seed, layer.ErrFeatureNotFound)
	}
	t := traversal{
		current:   seed,
		direction: direction,
		vertex:    s.side(direction),
		visited:   make([]int64, 0),
		seen:      make(map[int64]struct{}),
	}

	for step := 0; ; step++ {
		if step > g.maxSteps {
			return t.visited, fmt.Errorf("%w: seed %d, direction %d, %d steps", ErrTraversalExhausted, seed, direction, step)
		}
		touching := g.neighbors(t.vertex, t.current)
		if len(touching) != 1 {
			// free end or branch point
			return t.visited, nil
		}
		next := touching[0]
		if _, visited := t.seen[next]; !visited {
			t.seen[next] = struct{}{}
			t.visited = append(t.visited, next)
		} else if t.reversals < 1 {
			t.reversals++
			t.direction = -t.direction
		} else {
			return t.visited, nil
		}
		t.vertex = g.segments[next].opposite(t.vertex)
		t.current = next
	}
}

// Boundary returns the sorted ids of the maximal chain seed belongs to: the
// walks from both of its ends plus the seed.
func (g *SegmentGraph) Boundary(seed int64) ([]int64, error) {
	ids := map[int64]struct{}{}
	for _, direction := range []int{FromStart, FromEnd} {
		walked, err := g.Walk(seed, direction)
		if err != nil {
			return nil, err
		}
		for _, id := range walked {
			ids[id] = struct{}{}
		}
	}
	ids[seed] = struct{}{}
	return sortedIDs(ids), nil
}

// BoundaryFix is the outcome of a boundary reconstruction: the geometries to
// add and the ids of the original boundaries they replace.
type BoundaryFix struct {
	Geometries []*geos.Geom `json:"-"`
	// Chains holds the segment ids behind each geometry, in the same order.
	Chains    [][]int64 `json:"chains"`
	DeleteIDs []int64   `json:"deleteIds"`
	// Leftovers counts the trailing geometries that are single segments of
	// deleted boundaries no chain absorbed.
	Leftovers int          `json:"leftovers"`
	Segments  *layer.Layer `json:"-"`
	Issues    []Issue      `json:"issues"`
}

// ApplyTo deletes the replaced boundaries from l and adds the new geometries.
// It returns the ids given to the new features.
func (fix BoundaryFix) ApplyTo(l *layer.Layer) []int64 {
	l.Delete(fix.DeleteIDs...)
	added := make([]int64, 0, len(fix.Geometries))
	for _, g := range fix.Geometries {
		added = append(added, l.AddGeometry(g, nil).ID)
	}
	return added
}

// lineBoundaries returns the line features of boundaries. Features of any
// other type are recorded as unsupported and left out.
func lineBoundaries(boundaries *layer.Layer, log *issues) *layer.Layer {
	lines := layer.New(boundaries.Name(), layer.KindLine)
	for _, f := range boundaries.Features() {
		if k := layer.KindOf(f.Geom); k != layer.KindLine && k != layer.KindNull {
			log.add(IssueUnsupportedType, fmt.Sprintf("boundary %d is a %s, skipped", f.ID, f.Geom.Type()), f.ID)
			continue
		}
		if err := lines.Add(f); err != nil {
			log.add(IssueGeometryError, err.Error(), f.ID)
		}
	}
	return lines
}

// segmentsOf explodes boundaries into two-vertex segments and drops
// duplicated segments, whatever their direction.
func segmentsOf(boundaries *layer.Layer) (*layer.Layer, error) {
	exploded, err := processing.Explode(boundaries)
	if err != nil {
		return nil, err
	}
	return processing.DeleteDuplicates(exploded)
}

// partition runs Boundary from seeds not yet assigned and returns disjoint
// chains. Seeds whose traversal fails are reported and their chains omitted.
func (e *Engine) partition(graph *SegmentGraph, seeds []int64, assigned map[int64]struct{}, log *issues) [][]int64 {
	chains := make([][]int64, 0)
	for _, seed := range seeds {
		if _, ok := assigned[seed]; ok {
			continue
		}
		chain, err := graph.Boundary(seed)
		if err != nil {
			log.add(IssueTraversalExhausted, err.Error(), seed)
			continue
		}
		fresh := make([]int64, 0, len(chain))
		for _, id := range chain {
			if _, ok := assigned[id]; ok {
				continue
			}
			assigned[id] = struct{}{}
			fresh = append(fresh, id)
		}
		if len(fresh) > 0 {
			chains = append(chains, fresh)
		}
	}
	return chains
}

// merge combines the segments of every chain into one geometry. Chains that
// fail to merge are reported and skipped.
func (e *Engine) merge(segments *layer.Layer, chains [][]int64, fix *BoundaryFix, log *issues) {
	for _, chain := range chains {
		geoms := make([]*geos.Geom, 0, len(chain))
		for _, id := range chain {
			f, err := segments.GetFeature(id)
			if err != nil {
				continue
			}
			geoms = append(geoms, f.Geom)
		}
		merged, err := Combine(geoms)
		if err != nil {
			log.add(IssueGeometryError, err.Error(), chain...)
			continue
		}
		fix.Geometries = append(fix.Geometries, merged)
		fix.Chains = append(fix.Chains, chain)
	}
}

// FixBoundaries rebuilds a boundary layer from its segments: every maximal
// chain between branch points becomes one geometry, and every original
// boundary is marked for deletion.
func (e *Engine) FixBoundaries(boundaries *layer.Layer) (BoundaryFix, error) {
	log := e.newIssues("fix-boundaries")
	fix := BoundaryFix{Geometries: make([]*geos.Geom, 0), Chains: make([][]int64, 0), DeleteIDs: make([]int64, 0)}

	lines := lineBoundaries(boundaries, log)
	segments, err := segmentsOf(lines)
	if err != nil {
		return fix, err
	}
	graph, err := NewSegmentGraph(segments.Features())
	if err != nil {
		return fix, err
	}
	fix.Segments = segments

	chains := e.partition(graph, graph.IDs(), make(map[int64]struct{}, graph.Len()), log)
	e.merge(segments, chains, &fix, log)

	for _, f := range lines.Features() {
		fix.DeleteIDs = append(fix.DeleteIDs, f.ID)
	}
	e.logger.Info("boundaries rebuilt",
		"boundaries", boundaries.FeatureCount(),
		"segments", graph.Len(),
		"chains", len(fix.Geometries),
		"issues", len(log.list))
	fix.Issues = log.list
	return fix, nil
}

// FixSelectedBoundaries rebuilds only the chains running through the selected
// boundaries. With no ids, the layer's selection is used. Chains identical to
// an existing boundary are left alone; every boundary sharing a segment with
// a rebuilt chain is deleted, and its segments no chain absorbed come back as
// single-segment geometries.
func (e *Engine) FixSelectedBoundaries(boundaries *layer.Layer, selectedIDs []int64) (BoundaryFix, error) {
	log := e.newIssues("fix-selected-boundaries")
	fix := BoundaryFix{Geometries: make([]*geos.Geom, 0), Chains: make([][]int64, 0), DeleteIDs: make([]int64, 0)}

	if len(selectedIDs) == 0 {
		selectedIDs = boundaries.SelectedIDs()
	}
	if len(selectedIDs) == 0 {
		fix.Issues = log.list
		return fix, nil
	}

	segments, err := segmentsOf(lineBoundaries(boundaries, log))
	if err != nil {
		return fix, err
	}
	graph, err := NewSegmentGraph(segments.Features())
	if err != nil {
		return fix, err
	}
	fix.Segments = segments

	boundarySegments := make(map[int64][]int64)
	for _, s := range segments.Features() {
		source, ok := layer.AsInt64(s.Attribute(processing.SourceField))
		if !ok {
			continue
		}
		boundarySegments[source] = append(boundarySegments[source], s.ID)
	}
	boundaryIDs := make([]int64, 0, len(boundarySegments))
	for id, ids := range boundarySegments {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		boundaryIDs = append(boundaryIDs, id)
	}
	sort.Slice(boundaryIDs, func(i, j int) bool { return boundaryIDs[i] < boundaryIDs[j] })

	assigned := make(map[int64]struct{})
	chains := make([][]int64, 0)
	for _, id := range selectedIDs {
		chains = append(chains, e.partition(graph, boundarySegments[id], assigned, log)...)
	}

	rebuilt := make([][]int64, 0, len(chains))
	for _, chain := range chains {
		unchanged := false
		for _, id := range boundaryIDs {
			if slices.Equal(chain, boundarySegments[id]) {
				unchanged = true
				break
			}
		}
		if !unchanged {
			rebuilt = append(rebuilt, chain)
		}
	}

	deleted := make(map[int64]struct{})
	candidates := make(map[int64]struct{})
	for _, chain := range rebuilt {
		members := make(map[int64]struct{}, len(chain))
		for _, id := range chain {
			members[id] = struct{}{}
		}
		for _, id := range boundaryIDs {
			if _, ok := deleted[id]; ok {
				continue
			}
			for _, s := range boundarySegments[id] {
				if _, ok := members[s]; ok {
					deleted[id] = struct{}{}
					for _, c := range boundarySegments[id] {
						candidates[c] = struct{}{}
					}
					break
				}
			}
		}
	}

	e.merge(segments, rebuilt, &fix, log)

	for _, id := range sortedIDs(candidates) {
		if _, ok := assigned[id]; ok {
			continue
		}
		f, err := segments.GetFeature(id)
		if err != nil {
			continue
		}
		fix.Geometries = append(fix.Geometries, f.Geom.Clone())
		fix.Chains = append(fix.Chains, []int64{id})
		fix.Leftovers++
	}
	fix.DeleteIDs = sortedIDs(deleted)

	e.logger.Info("selected boundaries rebuilt",
		"selected", len(selectedIDs),
		"chains", len(fix.Geometries)-fix.Leftovers,
		"leftovers", fix.Leftovers,
		"deleted", len(fix.DeleteIDs))
	fix.Issues = log.list
	return fix, nil
}
