// Package rules validates LADM_COL records against the logic rules of the
// cadastral model. Each rule runs a query returning pre-aggregated rows and
// turns every row into an error row with a description of what is wrong.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bsaid97/go-ladm-topology/layer"
)

const (
	ColPartyTypeNatural                   = "col_party_type_natural"
	ColPartyTypeNoNatural                 = "col_party_type_no_natural"
	ParcelTypeAnd22PositionOfParcelNumber = "parcel_type_and_22_position_of_parcel_number"
	UebaunitParcel                        = "uebaunit_parcel"
)

// Model field and table names the rules read.
const (
	IDField                = "t_id"
	PartyBusinessNameField = "razon_social"
	PartyLegalPartyField   = "tipo_interesado_juridico"
	PartySurnameField      = "primer_apellido"
	PartyFirstNameField    = "primer_nombre"
	PartyDocTypeField      = "tipo_documento"
	ParcelTypeField        = "tipo"
	ParcelTable            = "predio"
	PlotCountField         = "sum_t"
	BuildingCountField     = "sum_c"
	BuildingUnitCountField = "sum_uc"
)

var ErrUnknownRule = errors.New("unknown logic rule")

// Row is one record returned by a rule query, keyed by column name.
type Row map[string]any

// ErrorRow is one record failing a rule. The counts are only set by the
// uebaunit_parcel rule.
type ErrorRow struct {
	ID                      int64  `json:"id"`
	AssociatedParcels       *int64 `json:"associated_parcels,omitempty"`
	AssociatedBuildings     *int64 `json:"associated_buildings,omitempty"`
	AssociatedBuildingUnits *int64 `json:"associated_building_units,omitempty"`
	Description             string `json:"desc_error"`
}

// Validate describes every row of a rule query. It returns the number of
// rows and one error row per input row, in input order.
func Validate(rows []Row, ruleID string) (int, []ErrorRow, error) {
	describe, ok := validators[ruleID]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", ErrUnknownRule, ruleID)
	}
	out := make([]ErrorRow, 0, len(rows))
	for _, row := range rows {
		id, _ := layer.AsInt64(row[IDField])
		errorRow := ErrorRow{ID: id}
		describe(row, &errorRow)
		out = append(out, errorRow)
	}
	return len(rows), out, nil
}

type validator func(row Row, out *ErrorRow)

var validators = map[string]validator{
	ColPartyTypeNatural:                   validatePartyTypeNatural,
	ColPartyTypeNoNatural:                 validatePartyTypeNoNatural,
	ParcelTypeAnd22PositionOfParcelNumber: validateParcelNumberPosition,
	UebaunitParcel:                        validateUebaunitParcel,
}

// Rules lists the known rule ids.
func Rules() []string {
	return []string{ColPartyTypeNatural, ColPartyTypeNoNatural, ParcelTypeAnd22PositionOfParcelNumber, UebaunitParcel}
}

// flagged reports whether a counter column of the row is positive.
func flagged(row Row, field string) bool {
	n, ok := layer.AsInt64(row[field])
	return ok && n > 0
}

func validatePartyTypeNatural(row Row, out *ErrorRow) {
	var errs []string
	if flagged(row, PartyBusinessNameField) {
		errs = append(errs, fmt.Sprintf("%s must be NULL", PartyBusinessNameField))
	}
	if flagged(row, PartyLegalPartyField) {
		errs = append(errs, fmt.Sprintf("%s must be NULL", PartyLegalPartyField))
	}
	if flagged(row, PartySurnameField) {
		errs = append(errs, fmt.Sprintf("%s must not be NULL and It must be filled in", PartySurnameField))
	}
	if flagged(row, PartyFirstNameField) {
		errs = append(errs, fmt.Sprintf("%s must not be NULL and It must be filled in", PartyFirstNameField))
	}
	if flagged(row, PartyDocTypeField) {
		errs = append(errs, fmt.Sprintf("%s must be different from NIT", PartyDocTypeField))
	}
	out.Description = strings.Join(errs, ", ")
}

func validatePartyTypeNoNatural(row Row, out *ErrorRow) {
	var errs []string
	if flagged(row, PartyBusinessNameField) {
		errs = append(errs, fmt.Sprintf("%s must not be NULL and It must be filled in", PartyBusinessNameField))
	}
	if flagged(row, PartyLegalPartyField) {
		errs = append(errs, fmt.Sprintf("%s must not be NULL and It must be filled in", PartyLegalPartyField))
	}
	if flagged(row, PartySurnameField) {
		errs = append(errs, fmt.Sprintf("%s must be NULL", PartySurnameField))
	}
	if flagged(row, PartyFirstNameField) {
		errs = append(errs, fmt.Sprintf("%s must be NULL", PartyFirstNameField))
	}
	if flagged(row, PartyDocTypeField) {
		errs = append(errs, fmt.Sprintf("%s must be equal to NIT or Secuencial_IGAC or Secuencial_SNR", PartyDocTypeField))
	}
	out.Description = strings.Join(errs, ", ")
}

func parcelType(row Row) string {
	switch v := row[ParcelTypeField].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func validateParcelNumberPosition(row Row, out *ErrorRow) {
	value := parcelType(row)
	position := func(digit int) string {
		return fmt.Sprintf("When the %s of %s is %s the 22nd position of the property code must be %d",
			ParcelTypeField, ParcelTable, value, digit)
	}
	switch {
	case value == "NPH":
		out.Description = position(0)
	case strings.Contains(value, "PropiedadHorizontal."):
		out.Description = position(9)
	case strings.Contains(value, "Condominio."):
		out.Description = position(8)
	case strings.Contains(value, "ParqueCementerio."):
		out.Description = position(7)
	case value == "Mejora":
		out.Description = position(5)
	case value == "Via":
		out.Description = position(4)
	case value == "BienUsoPublico":
		out.Description = position(3)
	}
}

// expected plot, building and building unit counts per parcel type; -1
// leaves a count out of the message.
type unitExpectation struct {
	plots, buildings, buildingUnits int
}

var uebaunitExpectations = map[string]unitExpectation{
	"NPH":                               {1, -1, 0},
	"PropiedadHorizontal.Matriz":        {1, -1, 0},
	"Condominio.Matriz":                 {1, -1, 0},
	"ParqueCementerio.Matriz":           {1, -1, 0},
	"BienUsoPublico":                    {1, -1, 0},
	"Condominio.UnidadPredial":          {1, -1, 0},
	"Via":                               {1, 0, 0},
	"ParqueCementerio.UnidadPrivada":    {1, 0, 0},
	"PropiedadHorizontal.UnidadPredial": {0, 0, -1},
	"Mejora":                            {0, 1, 0},
}

func validateUebaunitParcel(row Row, out *ErrorRow) {
	count := func(field string) *int64 {
		n, ok := layer.AsInt64(row[field])
		if !ok {
			return nil
		}
		return &n
	}
	out.AssociatedParcels = count(PlotCountField)
	out.AssociatedBuildings = count(BuildingCountField)
	out.AssociatedBuildingUnits = count(BuildingUnitCountField)

	value := parcelType(row)
	expected, ok := uebaunitExpectations[value]
	if !ok {
		return
	}

	show := func(n *int64) string {
		if n == nil {
			return "None"
		}
		return fmt.Sprint(*n)
	}
	var should, have []string
	add := func(want int, noun string, got *int64) {
		if want < 0 {
			return
		}
		should = append(should, fmt.Sprintf("%d %s", want, noun))
		have = append(have, fmt.Sprintf("%s %s(s)", show(got), noun))
	}
	add(expected.plots, "plot", out.AssociatedParcels)
	add(expected.buildings, "building", out.AssociatedBuildings)
	add(expected.buildingUnits, "building unit", out.AssociatedBuildingUnits)

	out.Description = fmt.Sprintf("When the %s of %s is '%s' you should have %s but you have %s",
		ParcelTypeField, ParcelTable, value, strings.Join(should, " and "), strings.Join(have, " and "))
}

// ErrorTable accumulates the error rows of one rule across runs.
type ErrorTable struct {
	Name   string     `json:"name"`
	RuleID string     `json:"rule"`
	Rows   []ErrorRow `json:"rows"`
}

func NewErrorTable(name, ruleID string) *ErrorTable {
	return &ErrorTable{Name: name, RuleID: ruleID, Rows: make([]ErrorRow, 0)}
}

// Columns returns the column names of the table, which depend on the rule.
func (t *ErrorTable) Columns() []string {
	if t.RuleID == UebaunitParcel {
		return []string{"id", "associated_parcels", "associated_buildings", "associated_building_units", "desc_error"}
	}
	return []string{"id", "desc_error"}
}

func (t *ErrorTable) Append(rows ...ErrorRow) {
	t.Rows = append(t.Rows, rows...)
}

func (t *ErrorTable) Len() int { return len(t.Rows) }
