package rules

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

type fakeDatabase struct {
	schema     string
	rows       map[string][]Row
	queries    []string
	err        error
	noRight    []Row
	repeated   []Row
	duplicates []Row
	fractions  []Row
}

func (db *fakeDatabase) Schema() string { return db.schema }

// ExecuteSQLQuery answers with the rows registered under the first key the
// query contains.
func (db *fakeDatabase) ExecuteSQLQuery(_ context.Context, query string) ([]Row, error) {
	db.queries = append(db.queries, query)
	if db.err != nil {
		return nil, db.err
	}
	for key, rows := range db.rows {
		if strings.Contains(query, key) {
			return rows, nil
		}
	}
	return []Row{}, nil
}

func (db *fakeDatabase) ParcelsWithNoRight(context.Context) ([]Row, error) { return db.noRight, nil }

func (db *fakeDatabase) ParcelsWithRepeatedDomainRight(context.Context) ([]Row, error) {
	return db.repeated, nil
}

func (db *fakeDatabase) DuplicateRecordsInTable(context.Context, string, []string) ([]Row, error) {
	return db.duplicates, nil
}

func (db *fakeDatabase) FractionsWhichSumIsNotOne(context.Context) ([]Row, error) {
	return db.fractions, nil
}

func testChecker() *Checker {
	return NewChecker(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCheckerRun(t *testing.T) {
	db := &fakeDatabase{
		schema: "ladm",
		rows: map[string][]Row{
			"interesado_natural": {
				{IDField: int64(1), PartyBusinessNameField: int64(1)},
				{IDField: int64(2), PartyDocTypeField: int64(1)},
			},
		},
	}
	c := testChecker()

	count, table, err := c.Run(context.Background(), db, ColPartyTypeNatural, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 || table.Len() != 2 {
		t.Fatalf("expected 2 errors, got %d/%d", count, table.Len())
	}
	if table.Name != "col_party_type_natural" {
		t.Errorf("expected table col_party_type_natural, got %s", table.Name)
	}
	if !strings.Contains(db.queries[0], `"ladm".interesado_natural`) {
		t.Errorf("expected the query to use the schema, got %s", db.queries[0])
	}

	// a second run appends to the same table
	if _, again, err := c.Run(context.Background(), db, ColPartyTypeNatural, nil); err != nil || again != table || table.Len() != 4 {
		t.Errorf("expected the rows appended to the same table, got %d rows (err %v)", table.Len(), err)
	}
}

func TestCheckerRunErrors(t *testing.T) {
	c := testChecker()
	if _, _, err := c.Run(context.Background(), &fakeDatabase{}, "no_such_rule", nil); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("expected ErrUnknownRule, got %v", err)
	}

	boom := errors.New("connection refused")
	if _, _, err := c.Run(context.Background(), &fakeDatabase{err: boom}, UebaunitParcel, nil); !errors.Is(err, boom) {
		t.Errorf("expected the query error, got %v", err)
	}
}

func TestCheckerRunAll(t *testing.T) {
	db := &fakeDatabase{
		rows: map[string][]Row{
			"uebaunit": {{IDField: int64(9), ParcelTypeField: "Via", PlotCountField: int64(0)}},
		},
	}
	counts, err := testChecker().RunAll(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	expected := map[string]int{
		ColPartyTypeNatural:                   0,
		ColPartyTypeNoNatural:                 0,
		ParcelTypeAnd22PositionOfParcelNumber: 0,
		UebaunitParcel:                        1,
	}
	if !reflect.DeepEqual(counts, expected) {
		t.Errorf("expected %v, got %v", expected, counts)
	}
}

func TestParcelRightRelationshipErrors(t *testing.T) {
	db := &fakeDatabase{
		noRight:  []Row{{IDField: int64(4)}, {IDField: "5"}},
		repeated: []Row{{IDField: int64(8), "domain_rights": int64(2)}},
	}
	noRight, repeated, err := ParcelRightRelationshipErrors(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(noRight, []int64{4, 5}) {
		t.Errorf("expected [4 5], got %v", noRight)
	}
	if !reflect.DeepEqual(repeated, []int64{8}) {
		t.Errorf("expected [8], got %v", repeated)
	}
}

func TestDuplicateRecordsInTable(t *testing.T) {
	db := &fakeDatabase{duplicates: []Row{{"duplicate_ids": "3,7", "duplicate_total": int64(2)}}}
	records, err := DuplicateRecordsInTable(context.Background(), db, "predio", []string{"numero_predial"})
	if err != nil {
		t.Fatal(err)
	}
	expected := []DuplicateRecord{{IDs: "3,7", Count: 2}}
	if !reflect.DeepEqual(records, expected) {
		t.Errorf("expected %v, got %v", expected, records)
	}
}
