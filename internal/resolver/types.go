package resolver

import (
	"github.com/graphql-go/graphql"

	"nestql/internal/entitymeta"
	"nestql/internal/naming"
)

// entityType returns the (cached) GraphQL object type for an entity.
// Fields are built lazily so mutually referencing entities resolve.
func (r *Resolver) entityType(entity *entitymeta.Entity) *graphql.Object {
	typeName := naming.TypeName(entity.Name)

	r.mu.RLock()
	cached, ok := r.typeCache[typeName]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	objType := graphql.NewObject(graphql.ObjectConfig{
		Name: typeName,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return r.entityFields(entity)
		}),
	})

	// Cache before building fields so circular references hit the cache.
	r.mu.Lock()
	if cached, ok := r.typeCache[typeName]; ok {
		r.mu.Unlock()
		return cached
	}
	r.typeCache[typeName] = objType
	r.mu.Unlock()

	return objType
}

func (r *Resolver) entityFields(entity *entitymeta.Entity) graphql.Fields {
	fields := graphql.Fields{}

	for i := range entity.Columns {
		col := &entity.Columns[i]
		fieldType := columnOutputType(col)
		if !col.IsNullable {
			fieldType = graphql.NewNonNull(fieldType)
		}
		fields[naming.FieldName(col.Name)] = &graphql.Field{
			Type: fieldType,
		}
	}

	for i := range entity.Relationships {
		rel := &entity.Relationships[i]
		target, ok := r.model.Entity(rel.TargetEntity)
		if !ok {
			continue
		}
		var fieldType graphql.Output = r.entityType(target)
		if rel.Kind == entitymeta.KindOneToMany || rel.Kind == entitymeta.KindManyToMany {
			fieldType = graphql.NewList(fieldType)
		}
		fields[naming.FieldName(rel.Name)] = &graphql.Field{
			Type: fieldType,
		}
	}

	return fields
}

// createInputType returns the (cached) create input object for an entity.
func (r *Resolver) createInputType(entity *entitymeta.Entity) *graphql.InputObject {
	typeName := naming.InputTypeName(entity.Name)

	r.mu.RLock()
	cached, ok := r.inputCache[typeName]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	inputType := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: typeName,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			return r.createInputFields(entity)
		}),
	})

	r.mu.Lock()
	if cached, ok := r.inputCache[typeName]; ok {
		r.mu.Unlock()
		return cached
	}
	r.inputCache[typeName] = inputType
	r.mu.Unlock()

	return inputType
}

// createInputFields builds input fields for an entity: every column plus one
// field per relationship for nested creates. Columns stay optional; the
// database enforces required values, and foreign keys may arrive through
// nesting instead of a literal value.
func (r *Resolver) createInputFields(entity *entitymeta.Entity) graphql.InputObjectConfigFieldMap {
	fields := graphql.InputObjectConfigFieldMap{}

	for i := range entity.Columns {
		col := &entity.Columns[i]
		fields[naming.FieldName(col.Name)] = &graphql.InputObjectFieldConfig{
			Type: columnInputType(col),
		}
	}

	for i := range entity.Relationships {
		rel := &entity.Relationships[i]
		target, ok := r.model.Entity(rel.TargetEntity)
		if !ok {
			continue
		}

		var fieldType graphql.Input
		switch rel.Kind {
		case entitymeta.KindManyToMany:
			fieldType = graphql.NewList(graphql.NewNonNull(r.linkInputType(entity, rel, target)))
		case entitymeta.KindOneToMany:
			fieldType = graphql.NewList(graphql.NewNonNull(r.createInputType(target)))
		default:
			fieldType = r.createInputType(target)
		}
		fields[naming.FieldName(rel.Name)] = &graphql.InputObjectFieldConfig{
			Type: fieldType,
		}
	}

	return fields
}

// linkInputType is the input object for a many-to-many child: the target's
// create input fields plus the relationship's linking-row attributes.
func (r *Resolver) linkInputType(source *entitymeta.Entity, rel *entitymeta.Relationship, target *entitymeta.Entity) *graphql.InputObject {
	typeName := naming.TypeName(source.Name) + naming.TypeName(rel.Name) + "LinkInput"

	r.mu.RLock()
	cached, ok := r.linkInputCache[typeName]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	inputType := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: typeName,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := r.createInputFields(target)
			for i := range rel.LinkingAttributes {
				attr := &rel.LinkingAttributes[i]
				fields[naming.FieldName(attr.Name)] = &graphql.InputObjectFieldConfig{
					Type: columnInputType(attr),
				}
			}
			return fields
		}),
	})

	r.mu.Lock()
	if cached, ok := r.linkInputCache[typeName]; ok {
		r.mu.Unlock()
		return cached
	}
	r.linkInputCache[typeName] = inputType
	r.mu.Unlock()

	return inputType
}

func columnOutputType(col *entitymeta.Column) graphql.Output {
	switch col.Type {
	case entitymeta.TypeInt:
		return graphql.Int
	case entitymeta.TypeFloat:
		return graphql.Float
	case entitymeta.TypeBool:
		return graphql.Boolean
	default:
		return graphql.String
	}
}

func columnInputType(col *entitymeta.Column) graphql.Input {
	switch col.Type {
	case entitymeta.TypeInt:
		return graphql.Int
	case entitymeta.TypeFloat:
		return graphql.Float
	case entitymeta.TypeBool:
		return graphql.Boolean
	default:
		return graphql.String
	}
}
