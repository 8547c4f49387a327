package mutation

import (
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"nestql/internal/entitymeta"
)

// testModel declares a small commerce-shaped model covering every
// relationship kind: Customer 1:N Order, Customer 1:1 Profile,
// Order N:1 Customer, Customer M:N Tag through customer_tags.
func testModel(t *testing.T) *entitymeta.Model {
	t.Helper()

	model, err := entitymeta.Build([]entitymeta.Definition{
		{
			Name:  "Customer",
			Table: "customers",
			Columns: []entitymeta.Column{
				{Name: "id", IsPrimaryKey: true, IsAutoIncrement: true},
				{Name: "name"},
				{Name: "status"},
				{Name: "owner_id", IsNullable: true},
			},
			Relationships: []entitymeta.RelationshipDefinition{
				{
					Name:         "orders",
					Cardinality:  entitymeta.CardinalityMany,
					TargetEntity: "Order",
					TargetFields: []string{"customer_id"},
				},
				{
					Name:         "profile",
					Cardinality:  entitymeta.CardinalityOne,
					TargetEntity: "Profile",
					TargetFields: []string{"customer_id"},
				},
				{
					Name:                "tags",
					TargetEntity:        "Tag",
					LinkingObject:       "customer_tags",
					LinkingSourceFields: []string{"customer_id"},
					LinkingTargetFields: []string{"tag_id"},
				},
			},
		},
		{
			Name:  "Order",
			Table: "orders",
			Columns: []entitymeta.Column{
				{Name: "id", IsPrimaryKey: true, IsAutoIncrement: true},
				{Name: "customer_id"},
				{Name: "total"},
			},
			Relationships: []entitymeta.RelationshipDefinition{
				{
					Name:         "customer",
					Cardinality:  entitymeta.CardinalityOne,
					TargetEntity: "Customer",
					SourceFields: []string{"customer_id"},
				},
			},
		},
		{
			Name:  "Profile",
			Table: "profiles",
			Columns: []entitymeta.Column{
				{Name: "id", IsPrimaryKey: true, IsAutoIncrement: true},
				{Name: "customer_id"},
				{Name: "bio", IsNullable: true},
			},
		},
		{
			Name:  "Tag",
			Table: "tags",
			Columns: []entitymeta.Column{
				{Name: "id", IsPrimaryKey: true, IsAutoIncrement: true},
				{Name: "label"},
			},
		},
	})
	require.NoError(t, err)
	return model
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return db, mock
}

func expectQuery(t *testing.T, mock sqlmock.Sqlmock, sql string, args []interface{}, rows *sqlmock.Rows) {
	t.Helper()

	query := regexp.QuoteMeta(sql)
	expectation := mock.ExpectQuery(query)
	if len(args) > 0 {
		expectation = expectation.WithArgs(toDriverValues(args)...)
	}
	expectation.WillReturnRows(rows)
}

func toDriverValues(args []interface{}) []driver.Value {
	values := make([]driver.Value, len(args))
	for i, arg := range args {
		values[i] = arg
	}
	return values
}
