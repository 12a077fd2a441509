// Command ladm-topology runs the topology engine over GeoJSON or shapefile
// layers from the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/bsaid97/go-ladm-topology/processing"
	"github.com/bsaid97/go-ladm-topology/rules"
	"github.com/bsaid97/go-ladm-topology/topology"
	"github.com/bsaid97/go-ladm-topology/utils"
	"github.com/tj/go-spin"
	"github.com/twpayne/go-geos"
)

const usage = `usage: ladm-topology [flags] <command>

commands:
  check-geometry           -layer
  dissolve                 -polygons
  plot-boundary-pairs      -boundaries -plots
  boundary-point-pairs     -boundaries -points
  overlapping-polygons     -polygons
  inner-intersections      -first -second
  gaps                     -polygons
  inner-rings              -plots
  fix-boundaries           -boundaries
  fix-selected-boundaries  -boundaries -select
  overlapping-points       -points
  too-long-segments        -boundaries -tolerance
  begin-end-vertices       -boundaries
  single-connected         -boundaries
  multipart-geometries     -layer
  add-topological-vertices -target -source
  difference-plot-boundary -plots -boundaries
  difference-boundary-plot -boundaries -plots

database commands:
  logic-checks
  parcel-rights
  duplicate-records        -table -fields
  fractions-not-summing-one

flags:
`

type cli struct {
	engine       *topology.Engine
	checker      *rules.Checker
	database     utils.DatabaseConfig
	parse        layer.ParseOptions
	paths        map[string]*string
	selected     string
	useSelection bool
	includeRoads bool
	tolerance    float64
	table        string
	fields       string
	out          string
}

func main() {
	c := &cli{paths: make(map[string]*string)}
	for _, name := range []string{"layer", "polygons", "boundaries", "plots", "points", "first", "second", "target", "source"} {
		c.paths[name] = flag.String(name, "", "path of the "+name+" layer (.geojson, .json or .shp)")
	}
	configPath := flag.String("config", "", "path to the YAML config")
	flag.StringVar(&c.selected, "select", "", "comma separated feature ids to select in the input layers")
	flag.BoolVar(&c.useSelection, "use-selection", false, "only process the selected features")
	flag.BoolVar(&c.includeRoads, "include-roads", false, "report gaps between plots that may be roads")
	flag.Float64Var(&c.tolerance, "tolerance", 0, "segment length above which too-long-segments reports a segment")
	flag.StringVar(&c.table, "table", "", "table searched by duplicate-records")
	flag.StringVar(&c.fields, "fields", "", "comma separated fields compared by duplicate-records")
	flag.StringVar(&c.out, "out", "", "write the resulting layer here (.geojson or .zip)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := utils.SetupLogger(cfg.Log)
	c.engine = topology.NewEngine(logger, topology.OptionsFromConfig(cfg.Engine))
	c.checker = rules.NewChecker(logger)
	c.database = cfg.Database
	c.parse = layer.ParseOptions{Precision: cfg.Engine.Precision, Workers: cfg.Engine.Workers, Logger: logger}

	command := flag.Arg(0)
	var result any
	err = spinWhile(os.Stderr, command, func() error {
		var err error
		result, err = c.run(command)
		return err
	})
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
}

// spinWhile runs fn and animates a spinner on w until it returns.
func spinWhile(w io.Writer, label string, fn func() error) error {
	s := spin.New()
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				fmt.Fprintf(w, "\r%s done\n", label)
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %s", label, s.Next())
			}
		}
	}()
	err := fn()
	done <- struct{}{}
	return err
}

func (c *cli) run(command string) (any, error) {
	switch command {
	case "check-geometry":
		l, err := c.load("layer")
		if err != nil {
			return nil, err
		}
		return c.engine.CheckGeometry(l), nil

	case "dissolve":
		polygons, err := c.load("polygons")
		if err != nil {
			return nil, err
		}
		union, issues := c.engine.Dissolve(polygons)
		out := layer.New("dissolved", layer.KindPolygon)
		if union != nil {
			out.AddGeometry(union, nil)
		}
		return map[string]any{"issues": issues}, c.write(out)

	case "plot-boundary-pairs":
		boundaries, plots, err := c.loadPair("boundaries", "plots")
		if err != nil {
			return nil, err
		}
		return c.engine.PlotBoundaryPairs(boundaries, plots, c.useSelection), nil

	case "boundary-point-pairs":
		boundaries, points, err := c.loadPair("boundaries", "points")
		if err != nil {
			return nil, err
		}
		pairs, issues := c.engine.BoundaryPointPairs(boundaries, points, c.useSelection)
		return map[string]any{"pairs": pairs, "issues": issues}, nil

	case "overlapping-polygons":
		polygons, err := c.load("polygons")
		if err != nil {
			return nil, err
		}
		return map[string]any{"pairs": c.engine.OverlappingPolygons(polygons)}, nil

	case "inner-intersections":
		first, second, err := c.loadPair("first", "second")
		if err != nil {
			return nil, err
		}
		result := c.engine.InnerIntersectionsBetweenPolygons(first, second)
		return result, c.write(geometries("inner_intersections", result.Parts))

	case "gaps":
		polygons, err := c.load("polygons")
		if err != nil {
			return nil, err
		}
		gaps, issues := c.engine.Gaps(polygons, c.includeRoads)
		return map[string]any{"gaps": len(gaps), "issues": issues}, c.write(geometries("gaps", gaps))

	case "inner-rings":
		plots, err := c.load("plots")
		if err != nil {
			return nil, err
		}
		rings, issues := c.engine.InnerRingsLayer(plots, c.useSelection)
		return map[string]any{"rings": rings.FeatureCount(), "issues": issues}, c.write(rings)

	case "fix-boundaries", "fix-selected-boundaries":
		boundaries, err := c.load("boundaries")
		if err != nil {
			return nil, err
		}
		var fix topology.BoundaryFix
		if command == "fix-boundaries" {
			fix, err = c.engine.FixBoundaries(boundaries)
		} else {
			fix, err = c.engine.FixSelectedBoundaries(boundaries, boundaries.SelectedIDs())
		}
		if err != nil {
			return nil, err
		}
		fix.ApplyTo(boundaries)
		return fix, c.write(boundaries)

	case "overlapping-points":
		points, err := c.load("points")
		if err != nil {
			return nil, err
		}
		return map[string]any{"groups": c.engine.OverlappingPoints(points)}, nil

	case "too-long-segments":
		if c.tolerance <= 0 {
			return nil, fmt.Errorf("-tolerance must be positive")
		}
		boundaries, err := c.load("boundaries")
		if err != nil {
			return nil, err
		}
		out := layer.New("too_long_segments", layer.KindLine)
		for _, f := range boundaries.Features() {
			if layer.KindOf(f.Geom) != layer.KindLine {
				continue
			}
			segments, err := topology.TooLongSegments(f.Geom, c.tolerance)
			if err != nil {
				return nil, err
			}
			for _, seg := range segments {
				out.AddGeometry(seg.Geom, map[string]any{"boundary_id": f.ID, "length": seg.Length})
			}
		}
		return map[string]any{"segments": out.FeatureCount()}, c.write(out)

	case "begin-end-vertices":
		boundaries, err := c.load("boundaries")
		if err != nil {
			return nil, err
		}
		vertices, err := topology.BeginEndVertices(boundaries)
		if err != nil {
			return nil, err
		}
		return map[string]any{"vertices": vertices.FeatureCount()}, c.write(vertices)

	case "single-connected":
		boundaries, err := c.load("boundaries")
		if err != nil {
			return nil, err
		}
		features, err := c.engine.BoundariesConnectedToSingleBoundary(boundaries)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(features))
		for _, f := range features {
			ids = append(ids, f.ID)
		}
		return map[string]any{"ids": ids}, nil

	case "multipart-geometries":
		source, err := c.load("layer")
		if err != nil {
			return nil, err
		}
		parts, ids := c.engine.MultipartGeometries(source)
		out := layer.New("multipart_parts", source.GeometryKind())
		for i, part := range parts {
			out.AddGeometry(part, map[string]any{"feature_id": ids[i]})
		}
		return map[string]any{"parts": len(parts), "ids": ids}, c.write(out)

	case "add-topological-vertices":
		target, source, err := c.loadPair("target", "source")
		if err != nil {
			return nil, err
		}
		out, err := topology.AddTopologicalVertices(target, source)
		if err != nil {
			return nil, err
		}
		return map[string]any{"features": out.FeatureCount()}, c.write(out)

	case "difference-plot-boundary", "difference-boundary-plot":
		plots, boundaries, err := c.loadPair("plots", "boundaries")
		if err != nil {
			return nil, err
		}
		if plots.GeometryKind() == layer.KindPolygon {
			if plots, err = processing.PolygonRings(plots); err != nil {
				return nil, err
			}
		}
		var diff []topology.DifferenceFeature
		if command == "difference-plot-boundary" {
			diff, err = c.engine.DifferencePlotBoundary(plots, boundaries)
		} else {
			diff, err = c.engine.DifferenceBoundaryPlot(boundaries, plots)
		}
		if err != nil {
			return nil, err
		}
		out := layer.New("difference", layer.KindLine)
		ids := make([]int64, 0, len(diff))
		for _, f := range diff {
			out.AddGeometry(f.Geometry, map[string]any{c.engine.Options().IDField: f.ID})
			ids = append(ids, f.ID)
		}
		return map[string]any{"ids": ids}, c.write(out)

	case "logic-checks", "parcel-rights", "duplicate-records", "fractions-not-summing-one":
		return c.runDatabase(command)
	}
	return nil, fmt.Errorf("unknown command %q", command)
}

// runDatabase runs a command against the configured database.
func (c *cli) runDatabase(command string) (any, error) {
	if !c.database.Enabled {
		return nil, fmt.Errorf("%s needs a database, set database.enabled in the config", command)
	}
	conn, err := utils.OpenPostgres(c.database)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	db := rules.NewPostgres(conn, c.database.Schema)
	ctx := context.Background()

	switch command {
	case "logic-checks":
		return c.checker.RunAll(ctx, db)
	case "parcel-rights":
		noRight, repeatedDomain, err := rules.ParcelRightRelationshipErrors(ctx, db)
		if err != nil {
			return nil, err
		}
		return map[string][]int64{"noRight": noRight, "repeatedDomainRight": repeatedDomain}, nil
	case "duplicate-records":
		if c.table == "" || c.fields == "" {
			return nil, fmt.Errorf("duplicate-records needs -table and -fields")
		}
		return rules.DuplicateRecordsInTable(ctx, db, c.table, strings.Split(c.fields, ","))
	default:
		return rules.FractionsWhichSumIsNotOne(ctx, db)
	}
}

func geometries(name string, geoms []*geos.Geom) *layer.Layer {
	l := layer.New(name, layer.KindPolygon)
	for _, g := range geoms {
		l.AddGeometry(g, nil)
	}
	return l
}

func (c *cli) loadPair(a, b string) (*layer.Layer, *layer.Layer, error) {
	first, err := c.load(a)
	if err != nil {
		return nil, nil, err
	}
	second, err := c.load(b)
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

// load reads the layer given by the named flag and applies -select to it.
func (c *cli) load(name string) (*layer.Layer, error) {
	path := *c.paths[name]
	if path == "" {
		return nil, fmt.Errorf("missing -%s", name)
	}

	var l *layer.Layer
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		var err error
		if l, err = layer.ReadShapefile(path); err != nil {
			return nil, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if l, err = layer.FromGeoJSON(name, data, c.parse); err != nil {
			return nil, err
		}
	}

	if c.selected != "" {
		ids, err := parseIDs(c.selected)
		if err != nil {
			return nil, err
		}
		l.Select(ids...)
	}
	return l, nil
}

func parseIDs(s string) ([]int64, error) {
	fields := strings.Split(s, ",")
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q in -select", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// write saves l to -out, if given, as GeoJSON or as a zip with a shapefile.
func (c *cli) write(l *layer.Layer) error {
	if c.out == "" {
		return nil
	}
	data, err := layer.ToGeoJSON(l)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(c.out), ".zip") {
		name := strings.TrimSuffix(filepath.Base(c.out), filepath.Ext(c.out))
		if data, err = utils.GenerateShapefileZip(name, data, layer.ShapeRecords(l)); err != nil {
			return err
		}
	}
	return os.WriteFile(c.out, data, 0644)
}
