// Package planner builds parameterized SQL statements for the mutation
// engine. It produces statement text and arguments only; execution is the
// executor's job.
package planner

// SQLQuery is a parameterized SQL statement ready for execution.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}
