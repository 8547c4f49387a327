package mutation

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// Stable sub-status codes surfaced to callers. A failed request carries
// exactly one of these; there is never a partial result.
const (
	// CodeDatabasePolicyFailure: a guarded insert affected zero rows because
	// the entity's create policy rejected the row.
	CodeDatabasePolicyFailure = "database_policy_failure"
	// CodeConfiguration: the relationship metadata could not produce a valid
	// insert order (cycle or unresolvable mapping).
	CodeConfiguration = "configuration_error"
	CodeInvalidInput  = "invalid_input"

	CodeUniqueViolation     = "unique_violation"
	CodeForeignKeyViolation = "foreign_key_violation"
	CodeNotNullViolation    = "not_null_violation"
	CodeInternal            = "internal"
)

// Error is the single structured error a failed mutation request produces.
type Error struct {
	Entity       string
	NestingLevel int
	Code         string
	Message      string
	mysqlCode    uint16
}

func (e *Error) Error() string {
	if e.Entity == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (entity %s, nesting level %d)", e.Message, e.Entity, e.NestingLevel)
}

// Extensions exposes the structured fields for the GraphQL error response.
func (e *Error) Extensions() map[string]interface{} {
	extensions := map[string]interface{}{
		"code": e.Code,
	}
	if e.Entity != "" {
		extensions["entity"] = e.Entity
		extensions["nesting_level"] = e.NestingLevel
	}
	if e.mysqlCode != 0 {
		extensions["mysql_code"] = e.mysqlCode
	}
	return extensions
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func newNodeError(code, message, entity string, nestingLevel int) *Error {
	return &Error{Code: code, Message: message, Entity: entity, NestingLevel: nestingLevel}
}

// MySQL access-denied error numbers.
const (
	mysqlErrDBAccessDenied     = 1044
	mysqlErrTableAccessDenied  = 1142
	mysqlErrColumnAccessDenied = 1143
)

// normalizeDBError maps driver errors onto the stable taxonomy. Anything
// unrecognized stays a generic failure, never a policy failure.
func normalizeDBError(err error, entity string, nestingLevel int) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return err
	}

	e := &Error{
		Entity:       entity,
		NestingLevel: nestingLevel,
		Message:      mysqlErr.Message,
		mysqlCode:    mysqlErr.Number,
	}
	switch mysqlErr.Number {
	case 1062:
		e.Code = CodeUniqueViolation
	case 1451, 1452:
		e.Code = CodeForeignKeyViolation
	case 1048, 1364:
		e.Code = CodeNotNullViolation
	case mysqlErrDBAccessDenied, mysqlErrTableAccessDenied, mysqlErrColumnAccessDenied:
		e.Code = CodeInternal
	default:
		return err
	}
	return e
}
