package entitymeta

import (
	"fmt"
	"sort"
)

// Definition is the raw, per-entity input produced by configuration.
type Definition struct {
	Name          string
	Table         string
	Columns       []Column
	Relationships []RelationshipDefinition
	CreatePolicy  string
	ReadPolicy    string
}

// Cardinality is the declared multiplicity of a relationship, seen from the
// source entity.
type Cardinality string

const (
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// RelationshipDefinition is the raw relationship input before kind
// resolution. A non-empty LinkingObject signals many-to-many; otherwise
// cardinality plus which side declares resolvable fields determines the
// foreign-key direction.
type RelationshipDefinition struct {
	Name                 string
	Cardinality          Cardinality
	TargetEntity         string
	SourceFields         []string
	TargetFields         []string
	LinkingObject        string
	LinkingSourceFields  []string
	LinkingTargetFields  []string
	LinkingAttributes    []Column
}

// Build resolves raw definitions into an immutable Model. All referential
// and direction errors surface here, at initialization time, never at
// request time.
func Build(defs []Definition) (*Model, error) {
	m := &Model{entities: make(map[string]*Entity, len(defs))}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("entity with empty name")
		}
		if def.Table == "" {
			return nil, fmt.Errorf("entity %s: missing table", def.Name)
		}
		if _, dup := m.entities[def.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %s", def.Name)
		}
		if len(def.Columns) == 0 {
			return nil, fmt.Errorf("entity %s: no columns declared", def.Name)
		}
		e := &Entity{
			Name:         def.Name,
			Table:        def.Table,
			Columns:      append([]Column(nil), def.Columns...),
			CreatePolicy: def.CreatePolicy,
			ReadPolicy:   def.ReadPolicy,
		}
		if len(e.PrimaryKeyColumns()) == 0 {
			return nil, fmt.Errorf("entity %s: no primary key declared", def.Name)
		}
		m.entities[def.Name] = e
		m.names = append(m.names, def.Name)
	}
	sort.Strings(m.names)

	// Resolve relationships in a second pass so targets are all known.
	for _, def := range defs {
		source := m.entities[def.Name]
		rels := append([]RelationshipDefinition(nil), def.Relationships...)
		sort.Slice(rels, func(i, j int) bool { return rels[i].Name < rels[j].Name })
		for _, rd := range rels {
			rel, err := resolveRelationship(m, source, rd)
			if err != nil {
				return nil, err
			}
			source.Relationships = append(source.Relationships, rel)
		}
	}

	return m, nil
}

func resolveRelationship(m *Model, source *Entity, rd RelationshipDefinition) (Relationship, error) {
	if rd.Name == "" {
		return Relationship{}, fmt.Errorf("entity %s: relationship with empty name", source.Name)
	}
	if _, ok := source.Column(rd.Name); ok {
		return Relationship{}, fmt.Errorf("entity %s: relationship %s collides with a column name", source.Name, rd.Name)
	}
	target, ok := m.entities[rd.TargetEntity]
	if !ok {
		return Relationship{}, fmt.Errorf("entity %s: relationship %s targets unknown entity %s", source.Name, rd.Name, rd.TargetEntity)
	}

	if rd.LinkingObject != "" {
		return resolveManyToMany(source, target, rd)
	}

	sourceFields := rd.SourceFields
	if len(sourceFields) == 0 {
		sourceFields = source.primaryKeyNames()
	}
	targetFields := rd.TargetFields
	if len(targetFields) == 0 {
		targetFields = target.primaryKeyNames()
	}
	if len(sourceFields) != len(targetFields) {
		return Relationship{}, fmt.Errorf("entity %s: relationship %s: source/target field counts differ (%d vs %d)",
			source.Name, rd.Name, len(sourceFields), len(targetFields))
	}

	switch rd.Cardinality {
	case CardinalityMany:
		// One-to-many: the FK lives on the target rows.
		if !source.hasColumns(sourceFields) {
			return Relationship{}, fmt.Errorf("entity %s: relationship %s: source fields %v not found on table %s",
				source.Name, rd.Name, sourceFields, source.Table)
		}
		if !target.hasColumns(targetFields) {
			return Relationship{}, fmt.Errorf("entity %s: relationship %s: target fields %v not found on table %s",
				source.Name, rd.Name, targetFields, target.Table)
		}
		return Relationship{
			Name:          rd.Name,
			Kind:          KindOneToMany,
			SourceEntity:  source.Name,
			TargetEntity:  target.Name,
			SourceColumns: sourceFields,
			TargetColumns: targetFields,
		}, nil
	case CardinalityOne, "":
		return resolveOneCardinality(source, target, rd, sourceFields, targetFields)
	default:
		return Relationship{}, fmt.Errorf("entity %s: relationship %s: invalid cardinality %q", source.Name, rd.Name, rd.Cardinality)
	}
}

// resolveOneCardinality infers the FK direction for 1:1 / N:1 edges.
// It optimistically prepares both orderings: the side whose declared fields
// resolve to non-key columns on its own table is the referencing side. A
// genuine ambiguity (both sides resolve as referencing) or no resolution at
// all is a configuration inconsistency and fails the build.
func resolveOneCardinality(source, target *Entity, rd RelationshipDefinition, sourceFields, targetFields []string) (Relationship, error) {
	srcResolves := source.hasColumns(sourceFields)
	tgtResolves := target.hasColumns(targetFields)
	if !srcResolves {
		return Relationship{}, fmt.Errorf("entity %s: relationship %s: source fields %v not found on table %s",
			source.Name, rd.Name, sourceFields, source.Table)
	}
	if !tgtResolves {
		return Relationship{}, fmt.Errorf("entity %s: relationship %s: target fields %v not found on table %s",
			source.Name, rd.Name, targetFields, target.Table)
	}

	srcIsReferencing := !equalStringSets(sourceFields, source.primaryKeyNames())
	tgtIsReferencing := !equalStringSets(targetFields, target.primaryKeyNames())

	switch {
	case srcIsReferencing && tgtIsReferencing:
		return Relationship{}, fmt.Errorf(
			"entity %s: relationship %s: ambiguous foreign key direction (both %v on %s and %v on %s are candidate referencing columns); declare key columns on exactly one side",
			source.Name, rd.Name, sourceFields, source.Table, targetFields, target.Table)
	case srcIsReferencing:
		return Relationship{
			Name:          rd.Name,
			Kind:          KindManyToOne,
			SourceEntity:  source.Name,
			TargetEntity:  target.Name,
			SourceColumns: sourceFields,
			TargetColumns: targetFields,
		}, nil
	case tgtIsReferencing:
		return Relationship{
			Name:          rd.Name,
			Kind:          KindOneToOne,
			SourceEntity:  source.Name,
			TargetEntity:  target.Name,
			SourceColumns: sourceFields,
			TargetColumns: targetFields,
		}, nil
	default:
		return Relationship{}, fmt.Errorf(
			"entity %s: relationship %s: cannot infer foreign key direction (neither side declares referencing columns)",
			source.Name, rd.Name)
	}
}

func resolveManyToMany(source, target *Entity, rd RelationshipDefinition) (Relationship, error) {
	sourceFields := rd.SourceFields
	if len(sourceFields) == 0 {
		sourceFields = source.primaryKeyNames()
	}
	targetFields := rd.TargetFields
	if len(targetFields) == 0 {
		targetFields = target.primaryKeyNames()
	}
	if !source.hasColumns(sourceFields) {
		return Relationship{}, fmt.Errorf("entity %s: relationship %s: source fields %v not found on table %s",
			source.Name, rd.Name, sourceFields, source.Table)
	}
	if !target.hasColumns(targetFields) {
		return Relationship{}, fmt.Errorf("entity %s: relationship %s: target fields %v not found on table %s",
			source.Name, rd.Name, targetFields, target.Table)
	}
	if len(rd.LinkingSourceFields) != len(sourceFields) {
		return Relationship{}, fmt.Errorf("entity %s: relationship %s: linking source fields count (%d) does not match source fields (%d)",
			source.Name, rd.Name, len(rd.LinkingSourceFields), len(sourceFields))
	}
	if len(rd.LinkingTargetFields) != len(targetFields) {
		return Relationship{}, fmt.Errorf("entity %s: relationship %s: linking target fields count (%d) does not match target fields (%d)",
			source.Name, rd.Name, len(rd.LinkingTargetFields), len(targetFields))
	}
	return Relationship{
		Name:                 rd.Name,
		Kind:                 KindManyToMany,
		SourceEntity:         source.Name,
		TargetEntity:         target.Name,
		SourceColumns:        sourceFields,
		TargetColumns:        targetFields,
		LinkingTable:         rd.LinkingObject,
		LinkingSourceColumns: rd.LinkingSourceFields,
		LinkingTargetColumns: rd.LinkingTargetFields,
		LinkingAttributes:    append([]Column(nil), rd.LinkingAttributes...),
	}, nil
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
