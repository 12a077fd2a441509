package handlers

import (
	"fmt"
	"net/http"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/bsaid97/go-ladm-topology/processing"
	"github.com/bsaid97/go-ladm-topology/rules"
	"github.com/bsaid97/go-ladm-topology/topology"
)

// layerResponse sends out embedded under key, or as a zip when asked.
func (s *Server) layerResponse(w http.ResponseWriter, req *request, key string, out *layer.Layer, extra map[string]any) error {
	collection, err := geojson(out)
	if err != nil {
		return err
	}
	body := map[string]any{key: collection}
	for k, v := range extra {
		body[k] = v
	}
	return s.sendLayer(w, req, out, body)
}

func (s *Server) overlappingPoints(w http.ResponseWriter, req *request) error {
	points, err := req.layer("points")
	if err != nil {
		return err
	}
	return sendJSON(w, map[string]any{"groups": s.engine.OverlappingPoints(points)})
}

// tooLongSegments cuts out the boundary segments longer than the tolerance
// option.
func (s *Server) tooLongSegments(w http.ResponseWriter, req *request) error {
	if req.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance must be positive", errBadRequest)
	}
	boundaries, err := req.layer("boundaries")
	if err != nil {
		return err
	}
	out := layer.New("too_long_segments", layer.KindLine)
	for _, f := range boundaries.Features() {
		if layer.KindOf(f.Geom) != layer.KindLine {
			continue
		}
		segments, err := topology.TooLongSegments(f.Geom, req.Tolerance)
		if err != nil {
			return err
		}
		for _, seg := range segments {
			out.AddGeometry(seg.Geom, map[string]any{"boundary_id": f.ID, "length": seg.Length})
		}
	}
	return s.layerResponse(w, req, "segments", out, nil)
}

func (s *Server) beginEndVertices(w http.ResponseWriter, req *request) error {
	boundaries, err := req.layer("boundaries")
	if err != nil {
		return err
	}
	vertices, err := topology.BeginEndVertices(boundaries)
	if err != nil {
		return err
	}
	return s.layerResponse(w, req, "vertices", vertices, nil)
}

func (s *Server) boundariesConnectedToSingleBoundary(w http.ResponseWriter, req *request) error {
	boundaries, err := req.layer("boundaries")
	if err != nil {
		return err
	}
	features, err := s.engine.BoundariesConnectedToSingleBoundary(boundaries)
	if err != nil {
		return err
	}
	out := layer.New("connected_boundaries", layer.KindLine)
	ids := make([]int64, 0, len(features))
	for _, f := range features {
		ids = append(ids, f.ID)
		if err := out.Add(&layer.Feature{ID: f.ID, Geom: f.Geom, Attributes: f.Attributes}); err != nil {
			return err
		}
	}
	return s.layerResponse(w, req, "boundaries", out, map[string]any{"ids": ids})
}

// multipartGeometries splits the multipart features of "layer" into their
// parts, each tagged with the feature it comes from.
func (s *Server) multipartGeometries(w http.ResponseWriter, req *request) error {
	source, err := req.layer("layer")
	if err != nil {
		return err
	}
	parts, ids := s.engine.MultipartGeometries(source)
	out := layer.New("multipart_parts", source.GeometryKind())
	for i, part := range parts {
		out.AddGeometry(part, map[string]any{"feature_id": ids[i]})
	}
	return s.layerResponse(w, req, "parts", out, nil)
}

func (s *Server) addTopologicalVertices(w http.ResponseWriter, req *request) error {
	target, err := req.layer("target")
	if err != nil {
		return err
	}
	source, err := req.layer("source")
	if err != nil {
		return err
	}
	out, err := topology.AddTopologicalVertices(target, source)
	if err != nil {
		return err
	}
	return s.layerResponse(w, req, "target", out, nil)
}

// plotLines returns the "plots" layer as lines, outlining polygon plots.
func plotLines(req *request) (*layer.Layer, error) {
	plots, err := req.layer("plots")
	if err != nil {
		return nil, err
	}
	if plots.GeometryKind() == layer.KindPolygon {
		return processing.PolygonRings(plots)
	}
	return plots, nil
}

func (s *Server) differencePlotBoundary(w http.ResponseWriter, req *request) error {
	return s.lineDifference(w, req, s.engine.DifferencePlotBoundary, true)
}

func (s *Server) differenceBoundaryPlot(w http.ResponseWriter, req *request) error {
	return s.lineDifference(w, req, s.engine.DifferenceBoundaryPlot, false)
}

// lineDifference runs diff with the plot lines first when plotsFirst is set,
// the boundaries first otherwise.
func (s *Server) lineDifference(w http.ResponseWriter, req *request, diff func(a, b *layer.Layer) ([]topology.DifferenceFeature, error), plotsFirst bool) error {
	plots, err := plotLines(req)
	if err != nil {
		return err
	}
	boundaries, err := req.layer("boundaries")
	if err != nil {
		return err
	}
	a, b := boundaries, plots
	if plotsFirst {
		a, b = plots, boundaries
	}
	features, err := diff(a, b)
	if err != nil {
		return err
	}
	out := layer.New("difference", layer.KindLine)
	for _, f := range features {
		out.AddGeometry(f.Geometry, map[string]any{s.engine.Options().IDField: f.ID})
	}
	return s.layerResponse(w, req, "difference", out, nil)
}

func (s *Server) database() (rules.Database, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: no database configured", errBadRequest)
	}
	return s.db, nil
}

func (s *Server) parcelRights(w http.ResponseWriter, req *request) error {
	db, err := s.database()
	if err != nil {
		return err
	}
	noRight, repeatedDomain, err := rules.ParcelRightRelationshipErrors(req.ctx, db)
	if err != nil {
		return err
	}
	return sendJSON(w, map[string][]int64{"noRight": noRight, "repeatedDomainRight": repeatedDomain})
}

// duplicateRecords groups the records of the table option equal in every
// one of the fields option.
func (s *Server) duplicateRecords(w http.ResponseWriter, req *request) error {
	db, err := s.database()
	if err != nil {
		return err
	}
	if req.Table == "" || len(req.Fields) == 0 {
		return fmt.Errorf("%w: table and fields are required", errBadRequest)
	}
	records, err := rules.DuplicateRecordsInTable(req.ctx, db, req.Table, req.Fields)
	if err != nil {
		return err
	}
	return sendJSON(w, map[string]any{"duplicates": records})
}

func (s *Server) fractionsNotSummingOne(w http.ResponseWriter, req *request) error {
	db, err := s.database()
	if err != nil {
		return err
	}
	rows, err := rules.FractionsWhichSumIsNotOne(req.ctx, db)
	if err != nil {
		return err
	}
	return sendJSON(w, map[string]any{"fractions": rows})
}

// logicCheckCounts runs every rule and answers with the error count of each.
func (s *Server) logicCheckCounts(w http.ResponseWriter, req *request) error {
	db, err := s.database()
	if err != nil {
		return err
	}
	counts, err := s.checker.RunAll(req.ctx, db)
	if err != nil {
		return err
	}
	return sendJSON(w, map[string]any{"counts": counts})
}
