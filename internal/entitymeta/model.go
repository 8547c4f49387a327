// Package entitymeta holds the immutable entity and relationship model the
// mutation engine consumes. The model is built once at startup from
// configuration, validated, and then shared read-only across requests.
package entitymeta

// ColumnType is the declared scalar type of a column, used to pick GraphQL
// scalar types. It is advisory; values flow through unconverted.
type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeBool   ColumnType = "bool"
)

// Column describes one column of an entity's backing table.
type Column struct {
	Name            string
	Type            ColumnType
	IsPrimaryKey    bool
	IsAutoIncrement bool
	IsNullable      bool
	HasDefault      bool
}

// Entity is a logical, config-named object backed by a table.
type Entity struct {
	Name          string
	Table         string
	Columns       []Column
	Relationships []Relationship

	// CreatePolicy is an opaque SQL predicate fragment over @item.<column>,
	// attached as a guard to INSERT statements. Empty means unrestricted.
	CreatePolicy string
	// ReadPolicy is an opaque boolean expression over item.<column>,
	// evaluated against rows as stored. Empty means unrestricted.
	ReadPolicy string
}

// RelationshipKind is the resolved variant of a relationship definition.
// Insert-ordering logic switches exhaustively on this tag.
type RelationshipKind int

const (
	// KindManyToOne: the source entity carries the referencing columns.
	KindManyToOne RelationshipKind = iota
	// KindOneToOne: single target row, referencing columns on the target.
	KindOneToOne
	// KindOneToMany: many target rows, referencing columns on each target.
	KindOneToMany
	// KindManyToMany: both sides independent, rows linked through a linking table.
	KindManyToMany
)

func (k RelationshipKind) String() string {
	switch k {
	case KindManyToOne:
		return "many_to_one"
	case KindOneToOne:
		return "one_to_one"
	case KindOneToMany:
		return "one_to_many"
	case KindManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// Relationship is a resolved edge from a source entity to a target entity.
//
// Column semantics by kind:
//   - ManyToOne: SourceColumns are the FK columns on the source,
//     TargetColumns the referenced columns on the target.
//   - OneToOne / OneToMany: SourceColumns are the referenced columns on the
//     source, TargetColumns the FK columns on the target row(s).
//   - ManyToMany: SourceColumns / TargetColumns are the key columns of each
//     entity; LinkingSourceColumns / LinkingTargetColumns are the matching
//     FK columns on the linking table.
type Relationship struct {
	Name          string
	Kind          RelationshipKind
	SourceEntity  string
	TargetEntity  string
	SourceColumns []string
	TargetColumns []string

	LinkingTable         string
	LinkingSourceColumns []string
	LinkingTargetColumns []string
	// LinkingAttributes are extra linking-table columns settable per linked
	// pair, beyond the two FK column sets.
	LinkingAttributes []Column
}

// Model is the full immutable entity model.
type Model struct {
	entities map[string]*Entity
	names    []string
}

// Entity returns the entity with the given logical name.
func (m *Model) Entity(name string) (*Entity, bool) {
	e, ok := m.entities[name]
	return e, ok
}

// EntityNames returns all entity names in deterministic (sorted) order.
func (m *Model) EntityNames() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Relationship returns the named relationship on the entity.
func (e *Entity) Relationship(name string) (*Relationship, bool) {
	for i := range e.Relationships {
		if e.Relationships[i].Name == name {
			return &e.Relationships[i], true
		}
	}
	return nil, false
}

// Column returns the named column.
func (e *Entity) Column(name string) (*Column, bool) {
	for i := range e.Columns {
		if e.Columns[i].Name == name {
			return &e.Columns[i], true
		}
	}
	return nil, false
}

// PrimaryKeyColumns returns the entity's primary key columns in declaration order.
func (e *Entity) PrimaryKeyColumns() []Column {
	var pks []Column
	for _, col := range e.Columns {
		if col.IsPrimaryKey {
			pks = append(pks, col)
		}
	}
	return pks
}

// AutoIncrementColumn returns the server-generated key column, if any.
func (e *Entity) AutoIncrementColumn() (*Column, bool) {
	for i := range e.Columns {
		if e.Columns[i].IsAutoIncrement {
			return &e.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns all column names in declaration order.
func (e *Entity) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, col := range e.Columns {
		names[i] = col.Name
	}
	return names
}

func (e *Entity) hasColumns(names []string) bool {
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		if _, ok := e.Column(name); !ok {
			return false
		}
	}
	return true
}

func (e *Entity) primaryKeyNames() []string {
	pks := e.PrimaryKeyColumns()
	names := make([]string, len(pks))
	for i, col := range pks {
		names[i] = col.Name
	}
	return names
}
