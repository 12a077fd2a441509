package utils

import (
	"math"
	"sort"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/twpayne/go-geos"
)

// maxQueryCells caps the number of grid cells a single query may visit before
// the index falls back to a linear scan over all boxes.
const maxQueryCells = 4096

type SpatialIndex struct {
	entries   []*IndexedGeometry
	byID      map[int64]*IndexedGeometry
	cellSize  float64
	grid      map[cellKey][]int
	// oversized holds entries spanning more than maxQueryCells cells; every
	// query checks them.
	oversized []int
}

type IndexedGeometry struct {
	ID   int64
	Box  r2.Rect
	Geom *geos.Geom
}

type cellKey struct {
	x, y int
}

// NewSpatialIndex creates an empty grid index. A cellSize <= 0 lets
// BuildSpatialIndex pick one from the data.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		entries:  make([]*IndexedGeometry, 0),
		byID:     make(map[int64]*IndexedGeometry),
		cellSize: cellSize,
		grid:     make(map[cellKey][]int),
	}
}

// BuildSpatialIndex indexes the bounding boxes of geoms keyed by ids. Nil and
// empty geometries are not indexed.
func BuildSpatialIndex(ids []int64, geoms []*geos.Geom) *SpatialIndex {
	boxes := make([]r2.Rect, len(geoms))
	sumSize := 0.0
	counted := 0
	for i, geom := range geoms {
		boxes[i] = GeomRect(geom)
		if boxes[i].IsEmpty() {
			continue
		}
		size := boxes[i].Size()
		sumSize += math.Max(size.X, size.Y)
		counted++
	}

	cellSize := 1.0
	if counted > 0 && sumSize > 0 {
		cellSize = sumSize / float64(counted)
	}

	si := NewSpatialIndex(cellSize)
	for i, geom := range geoms {
		if boxes[i].IsEmpty() {
			continue
		}
		si.add(&IndexedGeometry{ID: ids[i], Box: boxes[i], Geom: geom})
	}
	return si
}

func (si *SpatialIndex) AddGeometry(id int64, geom *geos.Geom) {
	box := GeomRect(geom)
	if box.IsEmpty() {
		return
	}
	if si.cellSize <= 0 {
		size := box.Size()
		si.cellSize = math.Max(math.Max(size.X, size.Y), 1e-9)
	}
	si.add(&IndexedGeometry{ID: id, Box: box, Geom: geom})
}

func (si *SpatialIndex) add(entry *IndexedGeometry) {
	pos := len(si.entries)
	si.entries = append(si.entries, entry)
	si.byID[entry.ID] = entry

	minCellX, minCellY, maxCellX, maxCellY := si.cellRange(entry.Box)
	if (float64(maxCellX-minCellX)+1)*(float64(maxCellY-minCellY)+1) > maxQueryCells {
		si.oversized = append(si.oversized, pos)
		return
	}
	for x := minCellX; x <= maxCellX; x++ {
		for y := minCellY; y <= maxCellY; y++ {
			key := cellKey{x, y}
			si.grid[key] = append(si.grid[key], pos)
		}
	}
}

func (si *SpatialIndex) cellRange(box r2.Rect) (int, int, int, int) {
	return int(math.Floor(box.X.Lo / si.cellSize)),
		int(math.Floor(box.Y.Lo / si.cellSize)),
		int(math.Floor(box.X.Hi / si.cellSize)),
		int(math.Floor(box.Y.Hi / si.cellSize))
}

// Len returns the number of indexed geometries.
func (si *SpatialIndex) Len() int {
	return len(si.entries)
}

// Query returns, in ascending order, the ids whose bounding boxes intersect
// box. Boxes that merely touch count as intersecting. The result is a superset
// of the true geometric intersectors.
func (si *SpatialIndex) Query(box r2.Rect) []int64 {
	if box.IsEmpty() || len(si.entries) == 0 {
		return nil
	}

	seen := make(map[int]struct{})
	ids := make([]int64, 0)
	visit := func(pos int) {
		if _, ok := seen[pos]; ok {
			return
		}
		seen[pos] = struct{}{}
		if si.entries[pos].Box.Intersects(box) {
			ids = append(ids, si.entries[pos].ID)
		}
	}

	minCellX, minCellY, maxCellX, maxCellY := si.cellRange(box)
	cells := (float64(maxCellX-minCellX) + 1) * (float64(maxCellY-minCellY) + 1)
	if cells > maxQueryCells {
		for pos := range si.entries {
			visit(pos)
		}
	} else {
		for x := minCellX; x <= maxCellX; x++ {
			for y := minCellY; y <= maxCellY; y++ {
				for _, pos := range si.grid[cellKey{x, y}] {
					visit(pos)
				}
			}
		}
		for _, pos := range si.oversized {
			visit(pos)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FindNeighbors returns the indexed geometries within distance of geom,
// excluding geom itself, in ascending id order. A zero distance finds the
// geometries touching or coinciding with geom.
func (si *SpatialIndex) FindNeighbors(geom *geos.Geom, distance float64) []*IndexedGeometry {
	box := GeomRect(geom)
	if box.IsEmpty() {
		return []*IndexedGeometry{}
	}
	box = box.ExpandedByMargin(distance)

	neighbors := make([]*IndexedGeometry, 0)
	for _, id := range si.Query(box) {
		candidate := si.byID[id]
		if candidate.Geom == nil || candidate.Geom == geom {
			continue
		}
		if geom.Distance(candidate.Geom) <= distance {
			neighbors = append(neighbors, candidate)
		}
	}
	return neighbors
}

// GeomRect returns the bounding rectangle of geom, or an empty rectangle for
// nil or empty geometries.
func GeomRect(geom *geos.Geom) r2.Rect {
	if geom == nil || geom.IsEmpty() {
		return r2.EmptyRect()
	}
	bounds := geom.Bounds()
	if bounds == nil {
		return r2.EmptyRect()
	}
	return r2.Rect{
		X: r1.Interval{Lo: bounds.MinX, Hi: bounds.MaxX},
		Y: r1.Interval{Lo: bounds.MinY, Hi: bounds.MaxY},
	}
}

// ScaleRect grows or shrinks box around its center by factor.
func ScaleRect(box r2.Rect, factor float64) r2.Rect {
	if box.IsEmpty() {
		return box
	}
	return r2.RectFromCenterSize(box.Center(), box.Size().Mul(factor))
}
