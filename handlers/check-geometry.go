package handlers

import (
	"net/http"

	"github.com/bsaid97/go-ladm-topology/topology"
)

// Error is one invalid feature of a checked layer.
type Error struct {
	Ref          int64  `json:"ref"`
	ErrorMessage string `json:"errorMessage"`
}

// CheckGeometry turns the engine's validity report into the response rows.
func CheckGeometry(checks []topology.GeometryCheck) []Error {
	errors := make([]Error, 0, len(checks))
	for _, c := range checks {
		errors = append(errors, Error{Ref: c.ID, ErrorMessage: c.Reason})
	}
	return errors
}

// checkGeometry validates every feature of the "layer" layer.
func (s *Server) checkGeometry(w http.ResponseWriter, req *request) error {
	l, err := req.layer("layer")
	if err != nil {
		return err
	}
	errors := CheckGeometry(s.engine.CheckGeometry(l))
	return sendJSON(w, map[string]any{
		"features": l.FeatureCount(),
		"errors":   errors,
	})
}
