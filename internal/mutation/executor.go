package mutation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"nestql/internal/dbexec"
	"nestql/internal/logging"
	"nestql/internal/planner"
	"nestql/internal/policy"
)

// Executor runs insert plans. It owns the request's transaction for the
// request's entire lifetime; one Execute call binds one transaction and is
// never shared across concurrent requests.
type Executor struct {
	db       dbexec.QueryExecutor
	policies policy.Set
}

// NewExecutor creates an executor over a pooled database handle.
func NewExecutor(db dbexec.QueryExecutor, policies policy.Set) *Executor {
	return &Executor{db: db, policies: policies}
}

// Execute plans and runs the request inside a single transaction. Either
// every insert (entity rows and linking rows alike, across all root items)
// commits, or the whole request rolls back and exactly one error is
// returned. Cancellation before commit rolls back.
func (e *Executor) Execute(ctx context.Context, req *MutationRequest) error {
	plan, err := PlanRequest(req)
	if err != nil {
		return err
	}

	logger := logging.FromContext(ctx)
	logger.Debug("executing mutation plan",
		slog.Int("inserts", len(plan.Entries)),
		slog.Int("linking_rows", len(plan.Links)),
		slog.Int("root_items", len(req.Roots)),
	)

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	req.state = StateExecuting

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
			req.state = StateRolledBack
		}
	}()

	for i := range plan.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.insertNode(ctx, tx, &plan.Entries[i]); err != nil {
			logger.Warn("mutation rolled back",
				slog.String("entity", plan.Entries[i].Node.Entity.Name),
				slog.Int("nesting_level", plan.Entries[i].Node.NestingLevel),
				slog.String("error", err.Error()),
			)
			return err
		}
	}

	for i := range plan.Links {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.insertLink(ctx, tx, &plan.Links[i]); err != nil {
			logger.Warn("mutation rolled back",
				slog.String("linking_table", plan.Links[i].Table),
				slog.String("error", err.Error()),
			)
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	req.state = StateCommitted
	return nil
}

// insertNode executes one plan entry: substitute pending FK values, run the
// policy-guarded insert, capture the generated key, read the stored row
// back, and evaluate the read policy against it.
func (e *Executor) insertNode(ctx context.Context, tx dbexec.TxExecutor, entry *InsertPlanEntry) error {
	node := entry.Node
	entity := node.Entity

	for _, a := range entry.Assignments {
		value, ok := a.From.Row[a.FromColumn]
		if !ok {
			return newNodeError(CodeInternal,
				fmt.Sprintf("referenced %s row is missing column %s", a.From.Entity.Name, a.FromColumn),
				entity.Name, node.NestingLevel)
		}
		node.Fields[a.Column] = value
	}

	// Column declaration order keeps statements reproducible.
	var columns []string
	var values []interface{}
	for _, col := range entity.Columns {
		if value, ok := node.Fields[col.Name]; ok {
			columns = append(columns, col.Name)
			values = append(values, value)
		}
	}

	pol := e.policies[entity.Name]
	var query planner.SQLQuery
	var err error
	if pol.Create != nil {
		query, err = planner.PlanGuardedInsert(entity.Table, columns, values, pol.Create.SQL, pol.Create.Bind(node.Fields))
	} else {
		query, err = planner.PlanInsert(entity.Table, columns, values)
	}
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return normalizeDBError(err, entity.Name, node.NestingLevel)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if pol.Create != nil {
			return newNodeError(CodeDatabasePolicyFailure,
				"create policy rejected row for entity "+entity.Name,
				entity.Name, node.NestingLevel)
		}
		return newNodeError(CodeInternal, "insert affected no rows", entity.Name, node.NestingLevel)
	}

	key := make(map[string]interface{})
	if auto, ok := entity.AutoIncrementColumn(); ok {
		if value, supplied := node.Fields[auto.Name]; supplied && value != nil {
			key[auto.Name] = value
		} else {
			lastID, err := result.LastInsertId()
			if err != nil {
				return err
			}
			node.GeneratedKey = lastID
			key[auto.Name] = lastID
		}
	}
	for _, pk := range entity.PrimaryKeyColumns() {
		if _, ok := key[pk.Name]; ok {
			continue
		}
		value, ok := node.Fields[pk.Name]
		if !ok {
			return newNodeError(CodeInternal,
				"missing value for primary key column "+pk.Name,
				entity.Name, node.NestingLevel)
		}
		key[pk.Name] = value
	}

	row, err := e.selectRow(ctx, tx, entity.Table, entity.ColumnNames(), key)
	if errors.Is(err, sql.ErrNoRows) {
		return newNodeError(CodeInternal, "inserted row could not be loaded", entity.Name, node.NestingLevel)
	}
	if err != nil {
		return normalizeDBError(err, entity.Name, node.NestingLevel)
	}
	node.Row = row

	node.ReadAllowed = true
	if pol.Read != nil {
		allowed, err := pol.Read.Allows(row)
		if err != nil {
			return newNodeError(CodeInternal, err.Error(), entity.Name, node.NestingLevel)
		}
		node.ReadAllowed = allowed
	}
	return nil
}

// insertLink writes one linking-table row from two already-inserted nodes.
func (e *Executor) insertLink(ctx context.Context, tx dbexec.TxExecutor, link *LinkingRowInsert) error {
	columns := make([]string, 0, len(link.SourceColumns)+len(link.TargetColumns)+len(link.ExtraFields))
	values := make([]interface{}, 0, cap(columns))

	for i, col := range link.SourceColumns {
		value, ok := link.Source.Row[link.SourceFrom[i]]
		if !ok {
			return newNodeError(CodeInternal,
				fmt.Sprintf("%s row is missing column %s for linking table %s", link.Source.Entity.Name, link.SourceFrom[i], link.Table),
				link.Source.Entity.Name, link.Source.NestingLevel)
		}
		columns = append(columns, col)
		values = append(values, value)
	}
	for i, col := range link.TargetColumns {
		value, ok := link.Target.Row[link.TargetFrom[i]]
		if !ok {
			return newNodeError(CodeInternal,
				fmt.Sprintf("%s row is missing column %s for linking table %s", link.Target.Entity.Name, link.TargetFrom[i], link.Table),
				link.Target.Entity.Name, link.Target.NestingLevel)
		}
		columns = append(columns, col)
		values = append(values, value)
	}

	extraNames := make([]string, 0, len(link.ExtraFields))
	for name := range link.ExtraFields {
		extraNames = append(extraNames, name)
	}
	sort.Strings(extraNames)
	for _, name := range extraNames {
		columns = append(columns, name)
		values = append(values, link.ExtraFields[name])
	}

	query, err := planner.PlanInsert(link.Table, columns, values)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query.SQL, query.Args...); err != nil {
		return normalizeDBError(err, link.Source.Entity.Name, link.Source.NestingLevel)
	}
	return nil
}

// LinkingRow fetches a linking-table row outside the mutation transaction.
// It exists so callers can verify linking-row attributes after a commit;
// it never gates insert success. When no row matches the key the error
// wraps sql.ErrNoRows.
func (e *Executor) LinkingRow(ctx context.Context, table string, columns []string, key map[string]interface{}) (map[string]interface{}, error) {
	query, err := planner.PlanSelectByKey(table, columns, key)
	if err != nil {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	row, err := scanSingleRow(rows, columns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no row in %s matches the given key: %w", table, sql.ErrNoRows)
	}
	return row, err
}

func (e *Executor) selectRow(ctx context.Context, tx dbexec.TxExecutor, table string, columns []string, key map[string]interface{}) (map[string]interface{}, error) {
	query, err := planner.PlanSelectByKey(table, columns, key)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanSingleRow(rows, columns)
}

// scanSingleRow reads the first row of the result set into a column-keyed
// map. An empty result set is reported as sql.ErrNoRows so callers can tell
// "not found" apart from an error-free empty read.
func scanSingleRow(rows dbexec.Rows, columns []string) (map[string]interface{}, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	dest := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		// Text-protocol values arrive as []byte; strings are friendlier to
		// policy evaluation and JSON responses.
		if b, ok := dest[i].([]byte); ok {
			row[col] = string(b)
			continue
		}
		row[col] = dest[i]
	}
	return row, rows.Err()
}
