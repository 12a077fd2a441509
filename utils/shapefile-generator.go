package utils

import (
	"archive/zip"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// ShapeRecord is one row of an exported layer.
type ShapeRecord struct {
	Geom       *geos.Geom
	Properties map[string]any
}

// GenerateShapefileZip creates a zip file containing the GeoJSON document and
// a shapefile named after baseName.
func GenerateShapefileZip(baseName string, jsonData []byte, records []ShapeRecord) ([]byte, error) {
	var zipBuffer bytes.Buffer
	zipWriter := zip.NewWriter(&zipBuffer)

	jsonFile, err := zipWriter.Create(baseName + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON file in zip: %w", err)
	}
	if _, err = jsonFile.Write(jsonData); err != nil {
		return nil, fmt.Errorf("failed to write JSON data to zip: %w", err)
	}

	if len(records) > 0 {
		if err := addShapefileToZip(zipWriter, baseName, records); err != nil {
			return nil, fmt.Errorf("failed to add shapefile to zip: %w", err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip writer: %w", err)
	}

	return zipBuffer.Bytes(), nil
}

func addShapefileToZip(zipWriter *zip.Writer, baseName string, records []ShapeRecord) error {
	tempDir, err := os.MkdirTemp("", "shapefile_")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	shapefilePath := filepath.Join(tempDir, baseName+".shp")
	if err := WriteShapefile(shapefilePath, records); err != nil {
		return err
	}

	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		filePath := filepath.Join(tempDir, baseName+ext)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			continue
		}

		fileContent, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read shapefile component %s: %w", ext, err)
		}

		zipFile, err := zipWriter.Create(baseName + ext)
		if err != nil {
			return fmt.Errorf("failed to create %s file in zip: %w", ext, err)
		}
		if _, err = zipFile.Write(fileContent); err != nil {
			return fmt.Errorf("failed to write %s data to zip: %w", ext, err)
		}
	}

	return nil
}

// WriteShapefile writes records to a shapefile at path. The shape type comes
// from the first record with a geometry; records of another kind are skipped.
func WriteShapefile(path string, records []ShapeRecord) error {
	shapeType, err := shapeTypeOf(records)
	if err != nil {
		return err
	}

	writer, err := shp.Create(path, shapeType)
	if err != nil {
		return fmt.Errorf("failed to create shapefile: %w", err)
	}
	defer writer.Close()

	fields, names := createFieldsFromProperties(records)
	writer.SetFields(fields)

	row := 0
	for i, record := range records {
		shape, err := toShape(record.Geom, shapeType)
		if err != nil {
			slog.Warn("skipping record in shapefile export", "record", i, "error", err)
			continue
		}
		writer.Write(shape)

		for f, field := range fields {
			writeAttribute(writer, row, f, field, record.Properties[names[f]])
		}
		row++
	}

	return nil
}

func shapeTypeOf(records []ShapeRecord) (shp.ShapeType, error) {
	for _, record := range records {
		if record.Geom == nil || record.Geom.IsEmpty() {
			continue
		}
		switch record.Geom.TypeID() {
		case geos.TypeIDPoint:
			return shp.POINT, nil
		case geos.TypeIDMultiPoint:
			return shp.MULTIPOINT, nil
		case geos.TypeIDLineString, geos.TypeIDLinearRing, geos.TypeIDMultiLineString:
			return shp.POLYLINE, nil
		case geos.TypeIDPolygon, geos.TypeIDMultiPolygon:
			return shp.POLYGON, nil
		default:
			return 0, fmt.Errorf("unsupported geometry type: %s", record.Geom.Type())
		}
	}
	return shp.NULL, nil
}

// createFieldsFromProperties derives DBF fields from the union of all record
// properties, in name order. It also returns the source property name of each
// field since DBF names are truncated to 10 characters.
func createFieldsFromProperties(records []ShapeRecord) ([]shp.Field, []string) {
	kinds := make(map[string]byte)
	for _, record := range records {
		for key, value := range record.Properties {
			kind := fieldKind(value)
			if prev, ok := kinds[key]; ok && prev != kind {
				kind = 'C'
			}
			kinds[key] = kind
		}
	}

	names := make([]string, 0, len(kinds))
	for key := range kinds {
		names = append(names, key)
	}
	sort.Strings(names)

	fields := make([]shp.Field, 0, len(names))
	for _, key := range names {
		fieldName := key
		if len(fieldName) > 10 {
			fieldName = fieldName[:10]
		}
		switch kinds[key] {
		case 'N':
			fields = append(fields, shp.NumberField(fieldName, 15))
		case 'F':
			fields = append(fields, shp.FloatField(fieldName, 19, 8))
		default:
			fields = append(fields, shp.StringField(fieldName, 254))
		}
	}

	if len(fields) == 0 {
		fields = append(fields, shp.NumberField("ID", 10))
		names = append(names, "")
	}

	return fields, names
}

func fieldKind(value any) byte {
	switch value.(type) {
	case int, int32, int64:
		return 'N'
	case float32, float64:
		return 'F'
	default:
		return 'C'
	}
}

func writeAttribute(writer *shp.Writer, row, index int, field shp.Field, value any) {
	if value == nil {
		if field.Fieldtype == 'N' && string(bytes.TrimRight(field.Name[:], "\x00")) == "ID" {
			writer.WriteAttribute(row, index, strconv.Itoa(row+1))
			return
		}
		writer.WriteAttribute(row, index, "")
		return
	}

	switch v := value.(type) {
	case int:
		writer.WriteAttribute(row, index, v)
	case int32:
		writer.WriteAttribute(row, index, int(v))
	case int64:
		writer.WriteAttribute(row, index, int(v))
	case float32:
		writer.WriteAttribute(row, index, float64(v))
	case float64:
		writer.WriteAttribute(row, index, v)
	default:
		writer.WriteAttribute(row, index, fmt.Sprintf("%v", v))
	}
}

// toShape converts a GEOS geometry to a shapefile shape through WKB and go-geom.
func toShape(g *geos.Geom, shapeType shp.ShapeType) (shp.Shape, error) {
	if g == nil || g.IsEmpty() {
		return &shp.Null{}, nil
	}

	t, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, fmt.Errorf("decode WKB: %w", err)
	}

	switch shapeType {
	case shp.POINT:
		point, ok := t.(*geom.Point)
		if !ok {
			return nil, fmt.Errorf("expected point, got %T", t)
		}
		return &shp.Point{X: point.X(), Y: point.Y()}, nil
	case shp.MULTIPOINT:
		multiPoint, ok := t.(*geom.MultiPoint)
		if !ok {
			return nil, fmt.Errorf("expected multipoint, got %T", t)
		}
		points := make([]shp.Point, 0, multiPoint.NumPoints())
		for i := range multiPoint.NumPoints() {
			p := multiPoint.Point(i)
			points = append(points, shp.Point{X: p.X(), Y: p.Y()})
		}
		return &shp.MultiPoint{Box: shp.BBoxFromPoints(points), NumPoints: int32(len(points)), Points: points}, nil
	case shp.POLYLINE:
		parts, err := lineParts(t)
		if err != nil {
			return nil, err
		}
		return shp.NewPolyLine(parts), nil
	case shp.POLYGON:
		parts, err := polygonParts(t)
		if err != nil {
			return nil, err
		}
		polyline := shp.NewPolyLine(parts)
		polygon := shp.Polygon(*polyline)
		return &polygon, nil
	default:
		return nil, fmt.Errorf("unsupported shape type %d", shapeType)
	}
}

func lineParts(t geom.T) ([][]shp.Point, error) {
	switch v := t.(type) {
	case *geom.LineString:
		return [][]shp.Point{toShpPoints(v.Coords())}, nil
	case *geom.LinearRing:
		return [][]shp.Point{toShpPoints(v.Coords())}, nil
	case *geom.MultiLineString:
		parts := make([][]shp.Point, 0, v.NumLineStrings())
		for i := range v.NumLineStrings() {
			parts = append(parts, toShpPoints(v.LineString(i).Coords()))
		}
		return parts, nil
	default:
		return nil, fmt.Errorf("expected line geometry, got %T", t)
	}
}

// polygonParts lists rings with shells clockwise and holes counter-clockwise,
// as the shapefile format requires.
func polygonParts(t geom.T) ([][]shp.Point, error) {
	var polygons []*geom.Polygon
	switch v := t.(type) {
	case *geom.Polygon:
		polygons = []*geom.Polygon{v}
	case *geom.MultiPolygon:
		for i := range v.NumPolygons() {
			polygons = append(polygons, v.Polygon(i))
		}
	default:
		return nil, fmt.Errorf("expected polygon geometry, got %T", t)
	}

	parts := make([][]shp.Point, 0)
	for _, polygon := range polygons {
		for r := range polygon.NumLinearRings() {
			points := toShpPoints(polygon.LinearRing(r).Coords())
			clockwise := signedArea(points) < 0
			if (r == 0) != clockwise {
				reversePoints(points)
			}
			parts = append(parts, points)
		}
	}
	return parts, nil
}

func toShpPoints(coords []geom.Coord) []shp.Point {
	points := make([]shp.Point, len(coords))
	for i, c := range coords {
		points[i] = shp.Point{X: c.X(), Y: c.Y()}
	}
	return points
}

func signedArea(points []shp.Point) float64 {
	area := 0.0
	for i := 0; i+1 < len(points); i++ {
		area += points[i].X*points[i+1].Y - points[i+1].X*points[i].Y
	}
	return area / 2
}

func reversePoints(points []shp.Point) {
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
}
