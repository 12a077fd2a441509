// Package handlers exposes the topology engine and the logic rules over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bsaid97/go-ladm-topology/layer"
	"github.com/bsaid97/go-ladm-topology/rules"
	"github.com/bsaid97/go-ladm-topology/topology"
	"github.com/bsaid97/go-ladm-topology/utils"
)

var (
	errBadRequest = errors.New("bad request")
	errTooLarge   = errors.New("request body too large")
)

// DefaultMaxBodyBytes caps request bodies, layers included.
const DefaultMaxBodyBytes = 256 << 20

type Server struct {
	engine  *topology.Engine
	checker *rules.Checker
	db      rules.Database
	parse   layer.ParseOptions
	// outputDir receives saved results; empty disables saving.
	outputDir string
	maxBody   int64
}

// NewServer wires the handlers. db may be nil, which disables the logic
// checks.
func NewServer(engine *topology.Engine, checker *rules.Checker, db rules.Database, parse layer.ParseOptions, outputDir string) *Server {
	return &Server{engine: engine, checker: checker, db: db, parse: parse, outputDir: outputDir, maxBody: DefaultMaxBodyBytes}
}

// Register adds every endpoint to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/check-geometry", s.handle("check-geometry", s.checkGeometry))
	mux.HandleFunc("/dissolve", s.handle("dissolve", s.dissolve))
	mux.HandleFunc("/plot-boundary-pairs", s.handle("plot-boundary-pairs", s.plotBoundaryPairs))
	mux.HandleFunc("/boundary-point-pairs", s.handle("boundary-point-pairs", s.boundaryPointPairs))
	mux.HandleFunc("/overlapping-polygons", s.handle("overlapping-polygons", s.overlappingPolygons))
	mux.HandleFunc("/inner-intersections", s.handle("inner-intersections", s.innerIntersections))
	mux.HandleFunc("/gaps", s.handle("gaps", s.gaps))
	mux.HandleFunc("/inner-rings", s.handle("inner-rings", s.innerRings))
	mux.HandleFunc("/fix-boundaries", s.handle("fix-boundaries", s.fixBoundaries))
	mux.HandleFunc("/fix-selected-boundaries", s.handle("fix-selected-boundaries", s.fixSelectedBoundaries))
	mux.HandleFunc("/overlapping-points", s.handle("overlapping-points", s.overlappingPoints))
	mux.HandleFunc("/too-long-segments", s.handle("too-long-segments", s.tooLongSegments))
	mux.HandleFunc("/begin-end-vertices", s.handle("begin-end-vertices", s.beginEndVertices))
	mux.HandleFunc("/boundaries-connected-to-single-boundary",
		s.handle("boundaries-connected-to-single-boundary", s.boundariesConnectedToSingleBoundary))
	mux.HandleFunc("/multipart-geometries", s.handle("multipart-geometries", s.multipartGeometries))
	mux.HandleFunc("/add-topological-vertices", s.handle("add-topological-vertices", s.addTopologicalVertices))
	mux.HandleFunc("/difference-plot-boundary", s.handle("difference-plot-boundary", s.differencePlotBoundary))
	mux.HandleFunc("/difference-boundary-plot", s.handle("difference-boundary-plot", s.differenceBoundaryPlot))
	mux.HandleFunc("/logic-checks", s.handle("logic-checks", s.logicChecks))
	mux.HandleFunc("/logic-check-counts", s.handle("logic-check-counts", s.logicCheckCounts))
	mux.HandleFunc("/parcel-rights", s.handle("parcel-rights", s.parcelRights))
	mux.HandleFunc("/duplicate-records", s.handle("duplicate-records", s.duplicateRecords))
	mux.HandleFunc("/fractions-not-summing-one", s.handle("fractions-not-summing-one", s.fractionsNotSummingOne))
}

// handle turns an endpoint into a handler: POST only, panics recovered, and
// errors answered as plain text.
func (s *Server) handle(name string, endpoint func(w http.ResponseWriter, req *request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("PANIC recovered in %s: %v", name, rec)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()

		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method, only POST allowed", http.StatusMethodNotAllowed)
			return
		}

		log.Printf("=== %s request received ===", name)
		req, err := s.readRequest(w, r)
		if err == nil {
			err = endpoint(w, req)
		}
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, errTooLarge):
				status = http.StatusRequestEntityTooLarge
			case errors.Is(err, errBadRequest), errors.Is(err, rules.ErrUnknownRule):
				status = http.StatusBadRequest
			}
			log.Printf("%s failed: %v", name, err)
			http.Error(w, fmt.Sprintf("ERROR: %v", err), status)
		}
	}
}

// options are the request parameters besides the layers.
type options struct {
	// Selected holds, per layer name, the ids to select in that layer.
	Selected     map[string][]int64 `json:"selected"`
	UseSelection bool               `json:"useSelection"`
	IncludeRoads bool               `json:"includeRoads"`
	Rules        []string           `json:"rules"`
	Format       string             `json:"format"`
	SaveFile     bool               `json:"saveFile"`
	FilePath     string             `json:"filepath"`
	Tolerance    float64            `json:"tolerance"`
	Table        string             `json:"table"`
	Fields       []string           `json:"fields"`
}

type request struct {
	options
	ctx    context.Context
	layers map[string][]byte
	parse  layer.ParseOptions
}

// readRequest accepts a JSON body {"layers": {name: FeatureCollection}, ...}
// or a multipart form whose files are the layers and whose options field
// holds the rest. The format query parameter overrides the body's.
func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (*request, error) {
	req := &request{ctx: r.Context(), layers: make(map[string][]byte), parse: s.parse}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		form, err := utils.ReadMultiPartForm(r)
		if err != nil {
			return nil, bodyError(err)
		}
		if form.Properties.Options != "" {
			if err := json.Unmarshal([]byte(form.Properties.Options), &req.options); err != nil {
				return nil, fmt.Errorf("%w: options: %v", errBadRequest, err)
			}
		}
		req.layers = form.Files
		req.SaveFile = req.SaveFile || form.Properties.SaveFile
		if form.Properties.FilePath != "" {
			req.FilePath = form.Properties.FilePath
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, bodyError(err)
		}
		defer r.Body.Close()
		var payload struct {
			options
			Layers map[string]json.RawMessage `json:"layers"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		req.options = payload.options
		for name, raw := range payload.Layers {
			req.layers[name] = raw
		}
	}

	if format := r.URL.Query().Get("format"); format != "" {
		req.Format = format
	}
	return req, nil
}

// bodyError classifies a failure to read the request body.
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", errTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

// layer parses the named layer and applies its selection.
func (req *request) layer(name string) (*layer.Layer, error) {
	payload, ok := req.layers[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing layer %q", errBadRequest, name)
	}
	l, err := layer.FromGeoJSON(name, payload, req.parse)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if ids := req.Selected[name]; len(ids) > 0 {
		l.Select(ids...)
	}
	return l, nil
}

func sendJSON(w http.ResponseWriter, value any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(value)
}

func sendZipResponse(w http.ResponseWriter, name string, zipData []byte) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))
	w.WriteHeader(http.StatusOK)
	w.Write(zipData)
}

// sendLayer answers with the layer as a zip of GeoJSON and shapefile when
// the zip format is asked for, or saves it when saveFile is set. Otherwise it
// sends body, which should embed the layer.
func (s *Server) sendLayer(w http.ResponseWriter, req *request, l *layer.Layer, body any) error {
	if req.Format != "zip" && !req.SaveFile {
		return sendJSON(w, body)
	}

	jsonData, err := layer.ToGeoJSON(l)
	if err != nil {
		return err
	}
	zipData, err := utils.GenerateShapefileZip(l.Name(), jsonData, layer.ShapeRecords(l))
	if err != nil {
		return fmt.Errorf("failed to generate shapefile zip: %w", err)
	}

	if req.SaveFile {
		path, err := s.saveZipFile(req.FilePath, l.Name(), zipData)
		if err != nil {
			return err
		}
		return sendJSON(w, map[string]string{"saved": path})
	}
	sendZipResponse(w, l.Name(), zipData)
	return nil
}

func (s *Server) saveZipFile(filePath, name string, zipData []byte) (string, error) {
	if s.outputDir == "" {
		return "", fmt.Errorf("%w: saving results is disabled", errBadRequest)
	}
	base := filepath.Base(filePath)
	if base == "." || base == string(filepath.Separator) {
		base = name
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	filename := filepath.Join(s.outputDir, base+"_PROCESSED.zip")

	if err := os.WriteFile(filename, zipData, 0644); err != nil {
		return "", fmt.Errorf("error saving zip file: %w", err)
	}
	log.Printf("Zip file saved to %s", filename)
	return filename, nil
}

// geojson embeds an encoded layer in a JSON response.
func geojson(l *layer.Layer) (json.RawMessage, error) {
	data, err := layer.ToGeoJSON(l)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
