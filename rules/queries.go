package rules

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Query is the SQL behind a rule and the name of the table its errors go to.
type Query struct {
	SQL       string
	TableName string
}

// queries are written against the LADM_COL model; {schema} is replaced by
// the configured schema.
var queries = map[string]Query{
	ColPartyTypeNatural: {
		TableName: "col_party_type_natural",
		SQL: `SELECT i.t_id,
       CASE WHEN i.razon_social IS NOT NULL THEN 1 ELSE 0 END AS razon_social,
       CASE WHEN i.tipo_interesado_juridico IS NOT NULL THEN 1 ELSE 0 END AS tipo_interesado_juridico,
       CASE WHEN i.primer_apellido IS NULL OR length(trim(i.primer_apellido)) = 0 THEN 1 ELSE 0 END AS primer_apellido,
       CASE WHEN i.primer_nombre IS NULL OR length(trim(i.primer_nombre)) = 0 THEN 1 ELSE 0 END AS primer_nombre,
       CASE WHEN i.tipo_documento = 'NIT' THEN 1 ELSE 0 END AS tipo_documento
FROM {schema}.interesado_natural AS i
WHERE i.razon_social IS NOT NULL
   OR i.tipo_interesado_juridico IS NOT NULL
   OR i.primer_apellido IS NULL OR length(trim(i.primer_apellido)) = 0
   OR i.primer_nombre IS NULL OR length(trim(i.primer_nombre)) = 0
   OR i.tipo_documento = 'NIT'
ORDER BY i.t_id`,
	},
	ColPartyTypeNoNatural: {
		TableName: "col_party_type_no_natural",
		SQL: `SELECT i.t_id,
       CASE WHEN i.razon_social IS NULL OR length(trim(i.razon_social)) = 0 THEN 1 ELSE 0 END AS razon_social,
       CASE WHEN i.tipo_interesado_juridico IS NULL THEN 1 ELSE 0 END AS tipo_interesado_juridico,
       CASE WHEN i.primer_apellido IS NOT NULL THEN 1 ELSE 0 END AS primer_apellido,
       CASE WHEN i.primer_nombre IS NOT NULL THEN 1 ELSE 0 END AS primer_nombre,
       CASE WHEN i.tipo_documento NOT IN ('NIT', 'Secuencial_IGAC', 'Secuencial_SNR') THEN 1 ELSE 0 END AS tipo_documento
FROM {schema}.interesado_juridico AS i
WHERE i.razon_social IS NULL OR length(trim(i.razon_social)) = 0
   OR i.tipo_interesado_juridico IS NULL
   OR i.primer_apellido IS NOT NULL
   OR i.primer_nombre IS NOT NULL
   OR i.tipo_documento NOT IN ('NIT', 'Secuencial_IGAC', 'Secuencial_SNR')
ORDER BY i.t_id`,
	},
	ParcelTypeAnd22PositionOfParcelNumber: {
		TableName: "parcel_type_and_22_position_of_parcel_number",
		SQL: `SELECT p.t_id, p.tipo
FROM {schema}.predio AS p
WHERE (p.tipo = 'NPH' AND substring(p.numero_predial, 22, 1) <> '0')
   OR (p.tipo LIKE 'PropiedadHorizontal.%' AND substring(p.numero_predial, 22, 1) <> '9')
   OR (p.tipo LIKE 'Condominio.%' AND substring(p.numero_predial, 22, 1) <> '8')
   OR (p.tipo LIKE 'ParqueCementerio.%' AND substring(p.numero_predial, 22, 1) <> '7')
   OR (p.tipo = 'Mejora' AND substring(p.numero_predial, 22, 1) <> '5')
   OR (p.tipo = 'Via' AND substring(p.numero_predial, 22, 1) <> '4')
   OR (p.tipo = 'BienUsoPublico' AND substring(p.numero_predial, 22, 1) <> '3')
ORDER BY p.t_id`,
	},
	UebaunitParcel: {
		TableName: "uebaunit_parcel",
		SQL: `WITH counts AS (
    SELECT p.t_id, p.tipo,
           count(u.ue_terreno) AS sum_t,
           count(u.ue_construccion) AS sum_c,
           count(u.ue_unidadconstruccion) AS sum_uc
    FROM {schema}.predio AS p
    LEFT JOIN {schema}.uebaunit AS u ON u.baunit_predio = p.t_id
    GROUP BY p.t_id, p.tipo
)
SELECT t_id, tipo, sum_t, sum_c, sum_uc
FROM counts
WHERE (tipo IN ('NPH', 'PropiedadHorizontal.Matriz', 'Condominio.Matriz', 'ParqueCementerio.Matriz',
                'BienUsoPublico', 'Condominio.UnidadPredial') AND (sum_t <> 1 OR sum_uc <> 0))
   OR (tipo IN ('Via', 'ParqueCementerio.UnidadPrivada') AND (sum_t <> 1 OR sum_c <> 0 OR sum_uc <> 0))
   OR (tipo = 'PropiedadHorizontal.UnidadPredial' AND (sum_t <> 0 OR sum_c <> 0))
   OR (tipo = 'Mejora' AND (sum_t <> 0 OR sum_c <> 1 OR sum_uc <> 0))
ORDER BY t_id`,
	},
}

// QueryFor returns the rule's query for schema.
func QueryFor(ruleID, schema string) (Query, error) {
	q, ok := queries[ruleID]
	if !ok {
		return Query{}, fmt.Errorf("%w: %s", ErrUnknownRule, ruleID)
	}
	if schema == "" {
		schema = "public"
	}
	q.SQL = strings.ReplaceAll(q.SQL, "{schema}", pq.QuoteIdentifier(schema))
	return q, nil
}
