package resolver

import (
	"fmt"

	"nestql/internal/entitymeta"
	"nestql/internal/naming"
)

// inputToModel rewrites a GraphQL input map into model space: camelCase
// field names become column and relationship names, recursively through
// nested creates. rel is non-nil when the input is a many-to-many child, in
// which case the relationship's linking attributes are also accepted.
func (r *Resolver) inputToModel(entity *entitymeta.Entity, rel *entitymeta.Relationship, input map[string]interface{}) (map[string]interface{}, error) {
	columns := make(map[string]string, len(entity.Columns))
	for _, col := range entity.Columns {
		columns[naming.FieldName(col.Name)] = col.Name
	}
	relationships := make(map[string]*entitymeta.Relationship, len(entity.Relationships))
	for i := range entity.Relationships {
		relationships[naming.FieldName(entity.Relationships[i].Name)] = &entity.Relationships[i]
	}
	linkAttrs := make(map[string]string)
	if rel != nil {
		for _, attr := range rel.LinkingAttributes {
			linkAttrs[naming.FieldName(attr.Name)] = attr.Name
		}
	}

	out := make(map[string]interface{}, len(input))
	for key, value := range input {
		if childRel, ok := relationships[key]; ok {
			converted, err := r.convertRelationshipInput(childRel, value)
			if err != nil {
				return nil, err
			}
			out[childRel.Name] = converted
			continue
		}
		if col, ok := columns[key]; ok {
			out[col] = value
			continue
		}
		if attr, ok := linkAttrs[key]; ok {
			out[attr] = value
			continue
		}
		return nil, fmt.Errorf("entity %s: unknown input field %q", entity.Name, key)
	}
	return out, nil
}

func (r *Resolver) convertRelationshipInput(rel *entitymeta.Relationship, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	target, ok := r.model.Entity(rel.TargetEntity)
	if !ok {
		return nil, fmt.Errorf("relationship %s targets unknown entity %s", rel.Name, rel.TargetEntity)
	}
	var linkRel *entitymeta.Relationship
	if rel.Kind == entitymeta.KindManyToMany {
		linkRel = rel
	}

	switch v := value.(type) {
	case map[string]interface{}:
		return r.inputToModel(target, linkRel, v)
	case []interface{}:
		items := make([]interface{}, 0, len(v))
		for _, item := range v {
			itemMap, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("relationship %s: items must be objects", rel.Name)
			}
			converted, err := r.inputToModel(target, linkRel, itemMap)
			if err != nil {
				return nil, err
			}
			items = append(items, converted)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("relationship %s: value must be an object or list", rel.Name)
	}
}

// resultToGraphQL rewrites an assembled result back into GraphQL space.
func (r *Resolver) resultToGraphQL(entity *entitymeta.Entity, result map[string]interface{}) map[string]interface{} {
	relationships := make(map[string]*entitymeta.Relationship, len(entity.Relationships))
	for i := range entity.Relationships {
		relationships[entity.Relationships[i].Name] = &entity.Relationships[i]
	}

	out := make(map[string]interface{}, len(result))
	for key, value := range result {
		rel, isRel := relationships[key]
		if !isRel {
			out[naming.FieldName(key)] = value
			continue
		}
		target, ok := r.model.Entity(rel.TargetEntity)
		if !ok {
			continue
		}
		switch v := value.(type) {
		case map[string]interface{}:
			out[naming.FieldName(key)] = r.resultToGraphQL(target, v)
		case []interface{}:
			items := make([]interface{}, 0, len(v))
			for _, item := range v {
				if itemMap, ok := item.(map[string]interface{}); ok {
					items = append(items, r.resultToGraphQL(target, itemMap))
				}
			}
			out[naming.FieldName(key)] = items
		default:
			out[naming.FieldName(key)] = value
		}
	}
	return out
}
