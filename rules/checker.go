package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bsaid97/go-ladm-topology/layer"
)

// Database is what the rules need from the LADM_COL database.
type Database interface {
	Schema() string
	ExecuteSQLQuery(ctx context.Context, query string) ([]Row, error)
	// ParcelsWithNoRight returns rows whose first column is a parcel id.
	ParcelsWithNoRight(ctx context.Context) ([]Row, error)
	ParcelsWithRepeatedDomainRight(ctx context.Context) ([]Row, error)
	// DuplicateRecordsInTable returns one row per group of records sharing
	// fields, with the group's ids and size.
	DuplicateRecordsInTable(ctx context.Context, table string, fields []string) ([]Row, error)
	FractionsWhichSumIsNotOne(ctx context.Context) ([]Row, error)
}

// Checker runs logic rules and keeps one error table per rule.
type Checker struct {
	logger *slog.Logger
	tables map[string]*ErrorTable
}

func NewChecker(logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{logger: logger, tables: make(map[string]*ErrorTable)}
}

// Run executes the rule's query, validates the rows and appends them to
// table. A nil table uses the checker's table for the rule, created on first
// use. It returns the number of rows and the table written to.
func (c *Checker) Run(ctx context.Context, db Database, ruleID string, table *ErrorTable) (int, *ErrorTable, error) {
	query, err := QueryFor(ruleID, db.Schema())
	if err != nil {
		return 0, nil, err
	}
	if table == nil {
		table = c.Table(ruleID)
	}

	rows, err := db.ExecuteSQLQuery(ctx, query.SQL)
	if err != nil {
		return 0, table, fmt.Errorf("rule %s: %w", ruleID, err)
	}
	count, errorRows, err := Validate(rows, ruleID)
	if err != nil {
		return 0, table, err
	}
	table.Append(errorRows...)

	c.logger.Info("logic rule checked", "rule", ruleID, "table", table.Name, "errors", count)
	return count, table, nil
}

// Table returns the checker's error table for ruleID.
func (c *Checker) Table(ruleID string) *ErrorTable {
	if t, ok := c.tables[ruleID]; ok {
		return t
	}
	name := ruleID
	if q, ok := queries[ruleID]; ok {
		name = q.TableName
	}
	t := NewErrorTable(name, ruleID)
	c.tables[ruleID] = t
	return t
}

// RunAll runs every known rule and stops at the first failing query.
func (c *Checker) RunAll(ctx context.Context, db Database) (map[string]int, error) {
	counts := make(map[string]int, len(queries))
	for _, ruleID := range Rules() {
		count, _, err := c.Run(ctx, db, ruleID, nil)
		if err != nil {
			return counts, err
		}
		counts[ruleID] = count
	}
	return counts, nil
}

// ParcelRightRelationshipErrors returns the ids of parcels without any right
// and of parcels with more than one domain right.
func ParcelRightRelationshipErrors(ctx context.Context, db Database) (noRight, repeatedDomain []int64, err error) {
	rows, err := db.ParcelsWithNoRight(ctx)
	if err != nil {
		return nil, nil, err
	}
	noRight = firstColumnIDs(rows)

	rows, err = db.ParcelsWithRepeatedDomainRight(ctx)
	if err != nil {
		return nil, nil, err
	}
	return noRight, firstColumnIDs(rows), nil
}

func firstColumnIDs(rows []Row) []int64 {
	out := make([]int64, 0, len(rows))
	for _, row := range rows {
		if id, ok := layer.AsInt64(row[IDField]); ok {
			out = append(out, id)
		}
	}
	return out
}

// DuplicateRecord is a group of records with equal values in the compared
// fields.
type DuplicateRecord struct {
	IDs   string `json:"ids"`
	Count int64  `json:"count"`
}

func DuplicateRecordsInTable(ctx context.Context, db Database, table string, fields []string) ([]DuplicateRecord, error) {
	rows, err := db.DuplicateRecordsInTable(ctx, table, fields)
	if err != nil {
		return nil, err
	}
	out := make([]DuplicateRecord, 0, len(rows))
	for _, row := range rows {
		count, _ := layer.AsInt64(row["duplicate_total"])
		out = append(out, DuplicateRecord{IDs: fmt.Sprint(row["duplicate_ids"]), Count: count})
	}
	return out, nil
}

// FractionsWhichSumIsNotOne passes the rows through: one per group whose
// member fractions do not add up to one.
func FractionsWhichSumIsNotOne(ctx context.Context, db Database) ([]Row, error) {
	return db.FractionsWhichSumIsNotOne(ctx)
}
