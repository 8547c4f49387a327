package mutation

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestql/internal/dbexec"
	"nestql/internal/planner"
	"nestql/internal/policy"
)

var customerColumns = []string{"id", "name", "status", "owner_id"}

func TestExecuteSingleRoot(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	model := testModel(t)

	req, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":   "Acme",
		"status": "active",
	})
	require.NoError(t, err)

	insertPlan, err := planner.PlanInsert("customers",
		[]string{"name", "status"}, []interface{}{"Acme", "active"})
	require.NoError(t, err)
	selectPlan, err := planner.PlanSelectByKey("customers", customerColumns,
		map[string]interface{}{"id": int64(7)})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertPlan.SQL)).
		WithArgs(toDriverValues(insertPlan.Args)...).
		WillReturnResult(sqlmock.NewResult(7, 1))
	expectQuery(t, mock, selectPlan.SQL, selectPlan.Args,
		sqlmock.NewRows(customerColumns).AddRow(7, "Acme", "active", nil))
	mock.ExpectCommit()

	executor := NewExecutor(dbexec.NewStandardExecutor(db), nil)
	require.NoError(t, executor.Execute(context.Background(), req))

	assert.Equal(t, StateCommitted, req.State())
	root := req.Roots[0]
	assert.Equal(t, int64(7), root.GeneratedKey)
	assert.Equal(t, "Acme", root.Row["name"])
	assert.True(t, root.ReadAllowed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutePropagatesParentKeyToChildren(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	model := testModel(t)

	req, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":   "Acme",
		"status": "active",
		"orders": []interface{}{
			map[string]interface{}{"total": 1.5},
		},
	})
	require.NoError(t, err)

	customerInsert, err := planner.PlanInsert("customers",
		[]string{"name", "status"}, []interface{}{"Acme", "active"})
	require.NoError(t, err)
	customerSelect, err := planner.PlanSelectByKey("customers", customerColumns,
		map[string]interface{}{"id": int64(7)})
	require.NoError(t, err)
	orderInsert, err := planner.PlanInsert("orders",
		[]string{"customer_id", "total"}, []interface{}{int64(7), 1.5})
	require.NoError(t, err)
	orderSelect, err := planner.PlanSelectByKey("orders",
		[]string{"id", "customer_id", "total"},
		map[string]interface{}{"id": int64(21)})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(customerInsert.SQL)).
		WithArgs(toDriverValues(customerInsert.Args)...).
		WillReturnResult(sqlmock.NewResult(7, 1))
	expectQuery(t, mock, customerSelect.SQL, customerSelect.Args,
		sqlmock.NewRows(customerColumns).AddRow(7, "Acme", "active", nil))
	mock.ExpectExec(regexp.QuoteMeta(orderInsert.SQL)).
		WithArgs(toDriverValues(orderInsert.Args)...).
		WillReturnResult(sqlmock.NewResult(21, 1))
	expectQuery(t, mock, orderSelect.SQL, orderSelect.Args,
		sqlmock.NewRows([]string{"id", "customer_id", "total"}).AddRow(21, 7, 1.5))
	mock.ExpectCommit()

	executor := NewExecutor(dbexec.NewStandardExecutor(db), nil)
	require.NoError(t, executor.Execute(context.Background(), req))

	order := req.Roots[0].Children[0].Nodes[0]
	assert.Equal(t, int64(7), order.Fields["customer_id"])
	assert.Equal(t, int64(21), order.GeneratedKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteManyToOneChildInsertedFirst(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	model := testModel(t)

	req, err := BuildRequest(model, "Order", map[string]interface{}{
		"total": 9.0,
		"customer": map[string]interface{}{
			"name":   "Acme",
			"status": "active",
		},
	})
	require.NoError(t, err)

	customerInsert, err := planner.PlanInsert("customers",
		[]string{"name", "status"}, []interface{}{"Acme", "active"})
	require.NoError(t, err)
	customerSelect, err := planner.PlanSelectByKey("customers", customerColumns,
		map[string]interface{}{"id": int64(7)})
	require.NoError(t, err)
	orderInsert, err := planner.PlanInsert("orders",
		[]string{"customer_id", "total"}, []interface{}{int64(7), 9.0})
	require.NoError(t, err)
	orderSelect, err := planner.PlanSelectByKey("orders",
		[]string{"id", "customer_id", "total"},
		map[string]interface{}{"id": int64(33)})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(customerInsert.SQL)).
		WithArgs(toDriverValues(customerInsert.Args)...).
		WillReturnResult(sqlmock.NewResult(7, 1))
	expectQuery(t, mock, customerSelect.SQL, customerSelect.Args,
		sqlmock.NewRows(customerColumns).AddRow(7, "Acme", "active", nil))
	mock.ExpectExec(regexp.QuoteMeta(orderInsert.SQL)).
		WithArgs(toDriverValues(orderInsert.Args)...).
		WillReturnResult(sqlmock.NewResult(33, 1))
	expectQuery(t, mock, orderSelect.SQL, orderSelect.Args,
		sqlmock.NewRows([]string{"id", "customer_id", "total"}).AddRow(33, 7, 9.0))
	mock.ExpectCommit()

	executor := NewExecutor(dbexec.NewStandardExecutor(db), nil)
	require.NoError(t, executor.Execute(context.Background(), req))

	root := req.Roots[0]
	assert.Equal(t, int64(7), root.Fields["customer_id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteManyToManyInsertsLinkingRow(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	model := testModel(t)

	req, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":   "Acme",
		"status": "active",
		"tags": []interface{}{
			map[string]interface{}{"label": "vip", "note": "gold"},
		},
	})
	require.NoError(t, err)

	customerInsert, err := planner.PlanInsert("customers",
		[]string{"name", "status"}, []interface{}{"Acme", "active"})
	require.NoError(t, err)
	customerSelect, err := planner.PlanSelectByKey("customers", customerColumns,
		map[string]interface{}{"id": int64(7)})
	require.NoError(t, err)
	tagInsert, err := planner.PlanInsert("tags",
		[]string{"label"}, []interface{}{"vip"})
	require.NoError(t, err)
	tagSelect, err := planner.PlanSelectByKey("tags",
		[]string{"id", "label"}, map[string]interface{}{"id": int64(3)})
	require.NoError(t, err)
	linkInsert, err := planner.PlanInsert("customer_tags",
		[]string{"customer_id", "tag_id", "note"},
		[]interface{}{int64(7), int64(3), "gold"})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(customerInsert.SQL)).
		WithArgs(toDriverValues(customerInsert.Args)...).
		WillReturnResult(sqlmock.NewResult(7, 1))
	expectQuery(t, mock, customerSelect.SQL, customerSelect.Args,
		sqlmock.NewRows(customerColumns).AddRow(7, "Acme", "active", nil))
	mock.ExpectExec(regexp.QuoteMeta(tagInsert.SQL)).
		WithArgs(toDriverValues(tagInsert.Args)...).
		WillReturnResult(sqlmock.NewResult(3, 1))
	expectQuery(t, mock, tagSelect.SQL, tagSelect.Args,
		sqlmock.NewRows([]string{"id", "label"}).AddRow(3, "vip"))
	mock.ExpectExec(regexp.QuoteMeta(linkInsert.SQL)).
		WithArgs(toDriverValues(linkInsert.Args)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	executor := NewExecutor(dbexec.NewStandardExecutor(db), nil)
	require.NoError(t, executor.Execute(context.Background(), req))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteCreatePolicyFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	model := testModel(t)

	policies, err := policy.Compile(map[string]struct{ Create, Read string }{
		"Customer": {Create: "@item.status <> 'banned'"},
	})
	require.NoError(t, err)

	req, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":   "Mallory",
		"status": "banned",
	})
	require.NoError(t, err)

	guard := policies["Customer"].Create
	guardedInsert, err := planner.PlanGuardedInsert("customers",
		[]string{"name", "status"}, []interface{}{"Mallory", "banned"},
		guard.SQL, guard.Bind(map[string]interface{}{"status": "banned"}))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(guardedInsert.SQL)).
		WithArgs(toDriverValues(guardedInsert.Args)...).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	executor := NewExecutor(dbexec.NewStandardExecutor(db), policies)
	err = executor.Execute(context.Background(), req)
	require.Error(t, err)

	var mutErr *Error
	require.ErrorAs(t, err, &mutErr)
	assert.Equal(t, CodeDatabasePolicyFailure, mutErr.Code)
	assert.Equal(t, "Customer", mutErr.Entity)
	assert.Equal(t, 0, mutErr.NestingLevel)
	assert.Equal(t, StateRolledBack, req.State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteSiblingRootPolicyFailureRollsBackAll(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	model := testModel(t)

	policies, err := policy.Compile(map[string]struct{ Create, Read string }{
		"Customer": {Create: "@item.status <> 'banned'"},
	})
	require.NoError(t, err)

	req, err := BuildRequest(model, "Customer", []interface{}{
		map[string]interface{}{"name": "Acme", "status": "active"},
		map[string]interface{}{"name": "Mallory", "status": "banned"},
	})
	require.NoError(t, err)

	guard := policies["Customer"].Create
	firstInsert, err := planner.PlanGuardedInsert("customers",
		[]string{"name", "status"}, []interface{}{"Acme", "active"},
		guard.SQL, guard.Bind(map[string]interface{}{"status": "active"}))
	require.NoError(t, err)
	firstSelect, err := planner.PlanSelectByKey("customers", customerColumns,
		map[string]interface{}{"id": int64(7)})
	require.NoError(t, err)
	secondInsert, err := planner.PlanGuardedInsert("customers",
		[]string{"name", "status"}, []interface{}{"Mallory", "banned"},
		guard.SQL, guard.Bind(map[string]interface{}{"status": "banned"}))
	require.NoError(t, err)

	// The first root item inserts cleanly; the second is rejected by the
	// guard, which must undo the first as well.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(firstInsert.SQL)).
		WithArgs(toDriverValues(firstInsert.Args)...).
		WillReturnResult(sqlmock.NewResult(7, 1))
	expectQuery(t, mock, firstSelect.SQL, firstSelect.Args,
		sqlmock.NewRows(customerColumns).AddRow(7, "Acme", "active", nil))
	mock.ExpectExec(regexp.QuoteMeta(secondInsert.SQL)).
		WithArgs(toDriverValues(secondInsert.Args)...).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	executor := NewExecutor(dbexec.NewStandardExecutor(db), policies)
	err = executor.Execute(context.Background(), req)
	require.Error(t, err)

	var mutErr *Error
	require.ErrorAs(t, err, &mutErr)
	assert.Equal(t, CodeDatabasePolicyFailure, mutErr.Code)
	assert.Equal(t, "Customer", mutErr.Entity)
	assert.Equal(t, 0, mutErr.NestingLevel)
	assert.Equal(t, StateRolledBack, req.State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteNestedFailureRollsBackEverything(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	model := testModel(t)

	req, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":   "Acme",
		"status": "active",
		"orders": []interface{}{
			map[string]interface{}{"total": 1.5},
		},
	})
	require.NoError(t, err)

	customerInsert, err := planner.PlanInsert("customers",
		[]string{"name", "status"}, []interface{}{"Acme", "active"})
	require.NoError(t, err)
	customerSelect, err := planner.PlanSelectByKey("customers", customerColumns,
		map[string]interface{}{"id": int64(7)})
	require.NoError(t, err)
	orderInsert, err := planner.PlanInsert("orders",
		[]string{"customer_id", "total"}, []interface{}{int64(7), 1.5})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(customerInsert.SQL)).
		WithArgs(toDriverValues(customerInsert.Args)...).
		WillReturnResult(sqlmock.NewResult(7, 1))
	expectQuery(t, mock, customerSelect.SQL, customerSelect.Args,
		sqlmock.NewRows(customerColumns).AddRow(7, "Acme", "active", nil))
	mock.ExpectExec(regexp.QuoteMeta(orderInsert.SQL)).
		WithArgs(toDriverValues(orderInsert.Args)...).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	executor := NewExecutor(dbexec.NewStandardExecutor(db), nil)
	err = executor.Execute(context.Background(), req)
	require.Error(t, err)

	var mutErr *Error
	require.ErrorAs(t, err, &mutErr)
	assert.Equal(t, CodeUniqueViolation, mutErr.Code)
	assert.Equal(t, "Order", mutErr.Entity)
	assert.Equal(t, 1, mutErr.NestingLevel)
	assert.Equal(t, StateRolledBack, req.State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteReadPolicyPrunesWithoutAborting(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	model := testModel(t)

	policies, err := policy.Compile(map[string]struct{ Create, Read string }{
		"Customer": {Read: `item.status == "active"`},
	})
	require.NoError(t, err)

	req, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":   "Mallory",
		"status": "pending",
	})
	require.NoError(t, err)

	insertPlan, err := planner.PlanInsert("customers",
		[]string{"name", "status"}, []interface{}{"Mallory", "pending"})
	require.NoError(t, err)
	selectPlan, err := planner.PlanSelectByKey("customers", customerColumns,
		map[string]interface{}{"id": int64(7)})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertPlan.SQL)).
		WithArgs(toDriverValues(insertPlan.Args)...).
		WillReturnResult(sqlmock.NewResult(7, 1))
	expectQuery(t, mock, selectPlan.SQL, selectPlan.Args,
		sqlmock.NewRows(customerColumns).AddRow(7, "Mallory", "pending", nil))
	mock.ExpectCommit()

	executor := NewExecutor(dbexec.NewStandardExecutor(db), policies)
	require.NoError(t, executor.Execute(context.Background(), req))

	// The insert survives; only the response hides the row.
	assert.Equal(t, StateCommitted, req.State())
	assert.False(t, req.Roots[0].ReadAllowed)

	results := Assemble(req)
	require.Len(t, results, 1)
	assert.Nil(t, results[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteCancelledContext(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	model := testModel(t)

	req, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":   "Acme",
		"status": "active",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := NewExecutor(dbexec.NewStandardExecutor(db), nil)
	err = executor.Execute(ctx, req)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, StateCommitted, req.State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkingRowFetch(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	columns := []string{"customer_id", "tag_id", "note"}
	selectPlan, err := planner.PlanSelectByKey("customer_tags", columns,
		map[string]interface{}{"customer_id": int64(7)})
	require.NoError(t, err)

	expectQuery(t, mock, selectPlan.SQL, selectPlan.Args,
		sqlmock.NewRows(columns).AddRow(7, 3, "gold"))

	executor := NewExecutor(dbexec.NewStandardExecutor(db), nil)
	row, err := executor.LinkingRow(context.Background(), "customer_tags", columns,
		map[string]interface{}{"customer_id": int64(7)})
	require.NoError(t, err)
	assert.Equal(t, "gold", row["note"])
	assert.EqualValues(t, 3, row["tag_id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkingRowNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	columns := []string{"customer_id", "tag_id", "note"}
	selectPlan, err := planner.PlanSelectByKey("customer_tags", columns,
		map[string]interface{}{"customer_id": int64(404)})
	require.NoError(t, err)

	expectQuery(t, mock, selectPlan.SQL, selectPlan.Args, sqlmock.NewRows(columns))

	executor := NewExecutor(dbexec.NewStandardExecutor(db), nil)
	row, err := executor.LinkingRow(context.Background(), "customer_tags", columns,
		map[string]interface{}{"customer_id": int64(404)})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.Nil(t, row)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteMissingReadBackRowRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	model := testModel(t)

	req, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":   "Acme",
		"status": "active",
	})
	require.NoError(t, err)

	insertPlan, err := planner.PlanInsert("customers",
		[]string{"name", "status"}, []interface{}{"Acme", "active"})
	require.NoError(t, err)
	selectPlan, err := planner.PlanSelectByKey("customers", customerColumns,
		map[string]interface{}{"id": int64(7)})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertPlan.SQL)).
		WithArgs(toDriverValues(insertPlan.Args)...).
		WillReturnResult(sqlmock.NewResult(7, 1))
	expectQuery(t, mock, selectPlan.SQL, selectPlan.Args,
		sqlmock.NewRows(customerColumns))
	mock.ExpectRollback()

	executor := NewExecutor(dbexec.NewStandardExecutor(db), nil)
	err = executor.Execute(context.Background(), req)
	require.Error(t, err)

	var mutErr *Error
	require.ErrorAs(t, err, &mutErr)
	assert.Equal(t, CodeInternal, mutErr.Code)
	assert.Contains(t, mutErr.Message, "could not be loaded")
	assert.Equal(t, StateRolledBack, req.State())
	require.NoError(t, mock.ExpectationsWereMet())
}
