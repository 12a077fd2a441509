package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/bsaid97/go-ladm-topology/topology"
)

func (s *Server) plotBoundaryPairs(w http.ResponseWriter, req *request) error {
	boundaries, err := req.layer("boundaries")
	if err != nil {
		return err
	}
	plots, err := req.layer("plots")
	if err != nil {
		return err
	}
	return sendJSON(w, s.engine.PlotBoundaryPairs(boundaries, plots, req.UseSelection))
}

func (s *Server) boundaryPointPairs(w http.ResponseWriter, req *request) error {
	boundaries, err := req.layer("boundaries")
	if err != nil {
		return err
	}
	points, err := req.layer("points")
	if err != nil {
		return err
	}
	pairs, issues := s.engine.BoundaryPointPairs(boundaries, points, req.UseSelection)
	return sendJSON(w, map[string]any{"pairs": pairs, "issues": issues})
}

// overlappingPolygons lists the overlapping pairs of the "polygons" layer and
// the polygon area each pair shares.
func (s *Server) overlappingPolygons(w http.ResponseWriter, req *request) error {
	polygons, err := req.layer("polygons")
	if err != nil {
		return err
	}
	pairs := s.engine.OverlappingPolygons(polygons)
	out := layer.New("overlaps", layer.KindPolygon)
	for _, p := range pairs {
		g, err := s.engine.IntersectionPolygons(polygons, p[0], p[1])
		if err != nil {
			return err
		}
		if g == nil || g.IsEmpty() {
			continue
		}
		out.AddGeometry(g, map[string]any{"polygon_id": p[0], "overlapping_id": p[1]})
	}

	collection, err := geojson(out)
	if err != nil {
		return err
	}
	return s.sendLayer(w, req, out, struct {
		Pairs    [][2]int64      `json:"pairs"`
		Overlaps json.RawMessage `json:"overlaps"`
	}{pairs, collection})
}

func (s *Server) innerIntersections(w http.ResponseWriter, req *request) error {
	first, err := req.layer("first")
	if err != nil {
		return err
	}
	second, err := req.layer("second")
	if err != nil {
		return err
	}
	result := s.engine.InnerIntersectionsBetweenPolygons(first, second)
	out := layer.New("inner_intersections", layer.KindPolygon)
	for i, part := range result.Parts {
		out.AddGeometry(part, map[string]any{"first_id": result.Pairs[i][0], "second_id": result.Pairs[i][1]})
	}

	collection, err := geojson(out)
	if err != nil {
		return err
	}
	return s.sendLayer(w, req, out, struct {
		Pairs         [][2]int64       `json:"pairs"`
		Intersections json.RawMessage  `json:"intersections"`
		Issues        []topology.Issue `json:"issues"`
	}{result.Pairs, collection, result.Issues})
}

func (s *Server) gaps(w http.ResponseWriter, req *request) error {
	polygons, err := req.layer("polygons")
	if err != nil {
		return err
	}
	geoms, issues := s.engine.Gaps(polygons, req.IncludeRoads)
	out := geometryLayer("gaps", layer.KindPolygon, geoms)

	collection, err := geojson(out)
	if err != nil {
		return err
	}
	return s.sendLayer(w, req, out, struct {
		Gaps   json.RawMessage  `json:"gaps"`
		Issues []topology.Issue `json:"issues"`
	}{collection, issues})
}

func (s *Server) innerRings(w http.ResponseWriter, req *request) error {
	plots, err := req.layer("plots")
	if err != nil {
		return err
	}
	rings, issues := s.engine.InnerRingsLayer(plots, req.UseSelection)

	collection, err := geojson(rings)
	if err != nil {
		return err
	}
	return s.sendLayer(w, req, rings, struct {
		Rings  json.RawMessage  `json:"rings"`
		Issues []topology.Issue `json:"issues"`
	}{collection, issues})
}

type boundaryFixResponse struct {
	topology.BoundaryFix
	Added      []int64         `json:"added"`
	Boundaries json.RawMessage `json:"boundaries"`
}

// sendBoundaryFix applies fix to the boundaries and answers with the edited
// layer.
func (s *Server) sendBoundaryFix(w http.ResponseWriter, req *request, boundaries *layer.Layer, fix topology.BoundaryFix) error {
	added := fix.ApplyTo(boundaries)
	collection, err := geojson(boundaries)
	if err != nil {
		return err
	}
	return s.sendLayer(w, req, boundaries, boundaryFixResponse{BoundaryFix: fix, Added: added, Boundaries: collection})
}

func (s *Server) fixBoundaries(w http.ResponseWriter, req *request) error {
	boundaries, err := req.layer("boundaries")
	if err != nil {
		return err
	}
	fix, err := s.engine.FixBoundaries(boundaries)
	if err != nil {
		return err
	}
	return s.sendBoundaryFix(w, req, boundaries, fix)
}

// fixSelectedBoundaries rebuilds the boundaries selected in the request,
// under selected.boundaries.
func (s *Server) fixSelectedBoundaries(w http.ResponseWriter, req *request) error {
	boundaries, err := req.layer("boundaries")
	if err != nil {
		return err
	}
	fix, err := s.engine.FixSelectedBoundaries(boundaries, boundaries.SelectedIDs())
	if err != nil {
		return err
	}
	return s.sendBoundaryFix(w, req, boundaries, fix)
}
