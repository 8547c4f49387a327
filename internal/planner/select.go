package planner

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"nestql/internal/sqlutil"
)

// PlanSelectByKey builds SQL selecting the given columns of rows matching
// the key values. The executor uses it to read a row back inside the
// mutation transaction after its insert.
func PlanSelectByKey(table string, columns []string, key map[string]interface{}) (SQLQuery, error) {
	if len(columns) == 0 {
		return SQLQuery{}, fmt.Errorf("select requires at least one column")
	}
	if len(key) == 0 {
		return SQLQuery{}, fmt.Errorf("select by key requires at least one key column")
	}

	where := sq.Eq{}
	for col, val := range key {
		where[sqlutil.QuoteIdentifier(col)] = val
	}

	builder := sq.Select(quoteAll(columns)...).
		From(sqlutil.QuoteIdentifier(table)).
		Where(where).
		PlaceholderFormat(sq.Question)

	query, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}

	return SQLQuery{SQL: query, Args: args}, nil
}
