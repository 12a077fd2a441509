// Package topology computes spatial relationships over cadastral layers:
// boundary/plot and boundary/point pairs, overlapping and intersecting
// polygons, gaps in a plot mosaic, inner rings, and the reconstruction of
// boundaries from their segments.
//
// Every operation builds its own spatial index, runs to completion on the
// caller's goroutine and returns the problems it met as Issues next to its
// results. Nothing here is fatal: bad geometries are skipped.
package topology

import (
	"fmt"
	"log/slog"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/bsaid97/go-ladm-topology/utils"
	"github.com/twpayne/go-geos"
)

// IssueKind classifies recoverable problems.
type IssueKind string

const (
	IssueClassificationMismatch IssueKind = "classification-mismatch"
	IssueInvalidGeometry        IssueKind = "invalid-geometry"
	IssueUnsupportedType        IssueKind = "unsupported-type"
	IssueTraversalExhausted     IssueKind = "traversal-exhausted"
	IssueGeometryError          IssueKind = "geometry-error"
)

// Issue is a problem met while processing one item. The item is skipped.
type Issue struct {
	Kind       IssueKind `json:"kind"`
	Operation  string    `json:"operation"`
	FeatureIDs []int64   `json:"featureIds,omitempty"`
	Message    string    `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s (%s) %v: %s", i.Operation, i.Kind, i.FeatureIDs, i.Message)
}

// Options are the tunables shared by all operations.
type Options struct {
	IDField           string
	BBoxScale         float64
	GapBufferDistance float64
	GapBufferSegments int
}

func DefaultOptions() Options {
	return Options{
		IDField:           "t_id",
		BBoxScale:         1.001,
		GapBufferDistance: 2,
		GapBufferSegments: 3,
	}
}

// OptionsFromConfig maps the engine section of the service config.
func OptionsFromConfig(cfg utils.EngineConfig) Options {
	opts := DefaultOptions()
	if cfg.IDField != "" {
		opts.IDField = cfg.IDField
	}
	if cfg.BBoxScale > 0 {
		opts.BBoxScale = cfg.BBoxScale
	}
	if cfg.GapBufferDistance > 0 {
		opts.GapBufferDistance = cfg.GapBufferDistance
	}
	if cfg.GapBufferSegments > 0 {
		opts.GapBufferSegments = cfg.GapBufferSegments
	}
	return opts
}

// Engine carries the logger and options into every operation. It holds no
// per-call state and may be shared.
type Engine struct {
	logger *slog.Logger
	opts   Options
}

func NewEngine(logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.BBoxScale <= 0 {
		opts.BBoxScale = def.BBoxScale
	}
	if opts.GapBufferDistance <= 0 {
		opts.GapBufferDistance = def.GapBufferDistance
	}
	if opts.GapBufferSegments <= 0 {
		opts.GapBufferSegments = def.GapBufferSegments
	}
	return &Engine{logger: logger, opts: opts}
}

func (e *Engine) Options() Options { return e.opts }

// issues collects the problems of one operation call.
type issues struct {
	logger    *slog.Logger
	operation string
	list      []Issue
}

func (e *Engine) newIssues(operation string) *issues {
	return &issues{logger: e.logger, operation: operation, list: make([]Issue, 0)}
}

func (c *issues) add(kind IssueKind, message string, ids ...int64) {
	issue := Issue{Kind: kind, Operation: c.operation, FeatureIDs: ids, Message: message}
	c.logger.Warn(message, "operation", c.operation, "kind", string(kind), "ids", ids)
	c.list = append(c.list, issue)
}

// featureIndex is the per-call spatial index over one side of a finder and
// the id lookup resolving its candidates.
type featureIndex struct {
	index *utils.SpatialIndex
	byID  map[int64]*layer.Feature
}

func buildFeatureIndex(features []*layer.Feature) *featureIndex {
	ids := make([]int64, 0, len(features))
	geoms := make([]*geos.Geom, 0, len(features))
	byID := make(map[int64]*layer.Feature, len(features))
	for _, f := range features {
		if f.Geom == nil {
			continue
		}
		ids = append(ids, f.ID)
		geoms = append(geoms, f.Geom)
		byID[f.ID] = f
	}
	return &featureIndex{index: utils.BuildSpatialIndex(ids, geoms), byID: byID}
}

// candidates returns the indexed features whose boxes intersect the box of
// g scaled by scale.
func (fi *featureIndex) candidates(g *geos.Geom, scale float64) []*layer.Feature {
	box := utils.GeomRect(g)
	if box.IsEmpty() {
		return nil
	}
	if scale > 0 && scale != 1 {
		box = utils.ScaleRect(box, scale)
	}
	ids := fi.index.Query(box)
	out := make([]*layer.Feature, 0, len(ids))
	for _, id := range ids {
		out = append(out, fi.byID[id])
	}
	return out
}
