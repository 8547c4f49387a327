package planner

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"nestql/internal/sqlutil"
)

// PlanInsert builds SQL for inserting a single row with the provided columns.
func PlanInsert(table string, columns []string, values []interface{}) (SQLQuery, error) {
	if len(columns) != len(values) {
		return SQLQuery{}, fmt.Errorf("insert column count (%d) does not match value count (%d)", len(columns), len(values))
	}
	if len(columns) == 0 {
		query := fmt.Sprintf("INSERT INTO %s () VALUES ()", sqlutil.QuoteIdentifier(table))
		return SQLQuery{SQL: query, Args: nil}, nil
	}

	builder := sq.Insert(sqlutil.QuoteIdentifier(table)).
		Columns(quoteAll(columns)...).
		Values(values...).
		PlaceholderFormat(sq.Question)

	query, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}

	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanGuardedInsert builds an INSERT ... SELECT ... WHERE <guard> statement.
// The guard is an opaque, already-parameterized predicate fragment; when it
// does not hold, the SELECT yields no row and the insert affects zero rows.
// MySQL/TiDB have no RETURNING clause, so zero rows affected is the policy
// failure signal.
//
// Unlike PlanInsert, the SELECT form cannot express an empty column list, so
// a guarded all-defaults row (`INSERT INTO t () VALUES ()`) is rejected:
// callers must supply at least one column value for a guarded table.
func PlanGuardedInsert(table string, columns []string, values []interface{}, guardSQL string, guardArgs []interface{}) (SQLQuery, error) {
	if guardSQL == "" {
		return PlanInsert(table, columns, values)
	}
	if len(columns) != len(values) {
		return SQLQuery{}, fmt.Errorf("insert column count (%d) does not match value count (%d)", len(columns), len(values))
	}

	if len(columns) == 0 {
		return SQLQuery{}, fmt.Errorf("guarded insert requires at least one column")
	}

	selectBuilder := sq.Select().From("DUAL").PlaceholderFormat(sq.Question)
	for _, value := range values {
		selectBuilder = selectBuilder.Column(sq.Expr("?", value))
	}
	selectBuilder = selectBuilder.Where(sq.Expr(guardSQL, guardArgs...))

	builder := sq.Insert(sqlutil.QuoteIdentifier(table)).
		Columns(quoteAll(columns)...).
		Select(selectBuilder).
		PlaceholderFormat(sq.Question)

	query, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}

	return SQLQuery{SQL: query, Args: args}, nil
}

func quoteAll(names []string) []string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = sqlutil.QuoteIdentifier(name)
	}
	return quoted
}
