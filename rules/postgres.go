package rules

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Postgres is the Database backed by a LADM_COL PostgreSQL schema.
type Postgres struct {
	db     *sql.DB
	schema string
}

func NewPostgres(db *sql.DB, schema string) *Postgres {
	if schema == "" {
		schema = "public"
	}
	return &Postgres{db: db, schema: schema}
}

func (p *Postgres) Schema() string { return p.schema }

func (p *Postgres) table(name string) string {
	return pq.QuoteIdentifier(p.schema) + "." + pq.QuoteIdentifier(name)
}

var _ Database = (*Postgres)(nil)

// ExecuteSQLQuery runs query and returns its rows keyed by column name.
// Text columns come back as strings.
func (p *Postgres) ExecuteSQLQuery(ctx context.Context, query string) ([]Row, error) {
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, name := range columns {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (p *Postgres) ParcelsWithNoRight(ctx context.Context) ([]Row, error) {
	query := fmt.Sprintf(`SELECT p.t_id
FROM %s AS p
LEFT JOIN %s AS d ON d.unidad_predio = p.t_id
WHERE d.t_id IS NULL
ORDER BY p.t_id`, p.table("predio"), p.table("col_derecho"))
	return p.ExecuteSQLQuery(ctx, query)
}

func (p *Postgres) ParcelsWithRepeatedDomainRight(ctx context.Context) ([]Row, error) {
	query := fmt.Sprintf(`SELECT d.unidad_predio AS t_id, count(*) AS domain_rights
FROM %s AS d
WHERE d.tipo = 'Dominio'
GROUP BY d.unidad_predio
HAVING count(*) > 1
ORDER BY d.unidad_predio`, p.table("col_derecho"))
	return p.ExecuteSQLQuery(ctx, query)
}

func (p *Postgres) DuplicateRecordsInTable(ctx context.Context, table string, fields []string) ([]Row, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("duplicate records in %s: no fields to compare", table)
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, pq.QuoteIdentifier(f))
	}
	columns := strings.Join(quoted, ", ")
	query := fmt.Sprintf(`SELECT string_agg(t_id::text, ',' ORDER BY t_id) AS duplicate_ids, count(*) AS duplicate_total
FROM %s
GROUP BY %s
HAVING count(*) > 1
ORDER BY duplicate_ids`, p.table(table), columns)
	return p.ExecuteSQLQuery(ctx, query)
}

func (p *Postgres) FractionsWhichSumIsNotOne(ctx context.Context) ([]Row, error) {
	query := fmt.Sprintf(`SELECT m.agrupacion AS t_id, sum(f.numerador::float / f.denominador) AS suma_fracciones
FROM %s AS f
JOIN %s AS m ON f.miembros_participacion = m.t_id
WHERE f.denominador <> 0
GROUP BY m.agrupacion
HAVING abs(sum(f.numerador::float / f.denominador) - 1) > 1e-9
ORDER BY m.agrupacion`, p.table("fraccion"), p.table("miembros"))
	return p.ExecuteSQLQuery(ctx, query)
}
