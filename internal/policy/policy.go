// Package policy compiles per-entity authorization predicates.
//
// Create policies are SQL predicate fragments over @item.<column>. They are
// compiled into parameterized guards that the planner pushes into INSERT
// statements, so the database itself rejects rows the policy forbids.
//
// Read policies are boolean expressions over item.<column>, compiled with
// expr and evaluated in-process against each row as actually stored. A
// failing read policy never aborts anything; it only hides the row from the
// response.
package policy

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var itemRefPattern = regexp.MustCompile(`@item\.([A-Za-z_][A-Za-z0-9_]*)`)

// CreateGuard is a compiled create policy: a SQL predicate with one `?`
// placeholder per @item reference, bound from the row's column values at
// execution time.
type CreateGuard struct {
	SQL     string
	Columns []string
}

// CompileCreate compiles a SQL predicate fragment over @item.<column>.
func CompileCreate(predicate string) (*CreateGuard, error) {
	predicate = strings.TrimSpace(predicate)
	if predicate == "" {
		return nil, nil
	}

	var columns []string
	sql := itemRefPattern.ReplaceAllStringFunc(predicate, func(ref string) string {
		columns = append(columns, strings.TrimPrefix(ref, "@item."))
		return "?"
	})
	if strings.Contains(sql, "@") {
		return nil, fmt.Errorf("create policy contains unresolved reference: %s", predicate)
	}
	return &CreateGuard{SQL: sql, Columns: columns}, nil
}

// Bind produces the placeholder arguments for one row. Columns the input
// did not supply bind as SQL NULL, which makes the guard evaluate to
// unknown and the insert affect zero rows.
func (g *CreateGuard) Bind(fields map[string]any) []any {
	args := make([]any, len(g.Columns))
	for i, col := range g.Columns {
		args[i] = fields[col]
	}
	return args
}

// ReadPolicy is a compiled read policy program.
type ReadPolicy struct {
	source  string
	program *vm.Program
}

var (
	readProgramMu    sync.RWMutex
	readProgramCache = make(map[string]*vm.Program)
)

// CompileRead compiles a boolean expression over item.<column>.
// Programs are cached by source; the same policy string shared across
// entities compiles once.
func CompileRead(source string) (*ReadPolicy, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}

	readProgramMu.RLock()
	prog, ok := readProgramCache[source]
	readProgramMu.RUnlock()
	if ok {
		return &ReadPolicy{source: source, program: prog}, nil
	}

	prog, err := expr.Compile(source,
		expr.Env(map[string]any{"item": map[string]any{}}),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid read policy %q: %w", source, err)
	}

	readProgramMu.Lock()
	readProgramCache[source] = prog
	readProgramMu.Unlock()

	return &ReadPolicy{source: source, program: prog}, nil
}

// Allows evaluates the policy against a stored row.
func (p *ReadPolicy) Allows(item map[string]any) (bool, error) {
	out, err := expr.Run(p.program, map[string]any{"item": item})
	if err != nil {
		return false, fmt.Errorf("read policy %q: %w", p.source, err)
	}
	allowed, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("read policy %q did not evaluate to a boolean", p.source)
	}
	return allowed, nil
}

// EntityPolicies holds the compiled policies for one entity. Either field
// may be nil, meaning unrestricted.
type EntityPolicies struct {
	Create *CreateGuard
	Read   *ReadPolicy
}

// Set maps entity name to compiled policies.
type Set map[string]EntityPolicies

// Compile builds the policy set for the given raw per-entity policy strings.
func Compile(policies map[string]struct{ Create, Read string }) (Set, error) {
	set := make(Set, len(policies))
	for entity, raw := range policies {
		guard, err := CompileCreate(raw.Create)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", entity, err)
		}
		read, err := CompileRead(raw.Read)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", entity, err)
		}
		set[entity] = EntityPolicies{Create: guard, Read: read}
	}
	return set, nil
}
