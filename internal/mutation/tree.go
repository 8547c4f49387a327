package mutation

import (
	"fmt"

	"nestql/internal/entitymeta"
)

// RequestState tracks the lifecycle of one mutation request.
type RequestState int

const (
	StateBuilding RequestState = iota
	StatePlanned
	StateExecuting
	StateCommitted
	StateRolledBack
	StateAssembled
)

func (s RequestState) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StatePlanned:
		return "planned"
	case StateExecuting:
		return "executing"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	case StateAssembled:
		return "assembled"
	default:
		return "unknown"
	}
}

// EntityCreateNode is one planned insert in a mutation request's input tree.
type EntityCreateNode struct {
	Entity *entitymeta.Entity
	// Fields maps column name to literal value. Foreign-key columns filled
	// from other nodes' generated keys are written here by the executor.
	Fields map[string]interface{}
	// Children holds nested creates in relationship declaration order.
	Children []ChildSet
	// LinkExtraFields carries values destined for the linking row rather
	// than either entity table. Set only on many-to-many child nodes.
	LinkExtraFields map[string]interface{}
	// NestingLevel is the depth from the mutation root (root = 0),
	// used purely for diagnostics.
	NestingLevel int

	// GeneratedKey is populated only after a successful insert of a row
	// with a server-generated key.
	GeneratedKey interface{}
	// Row is the row as actually stored, read back inside the transaction.
	Row map[string]interface{}
	// ReadAllowed is the read-policy outcome for the stored row.
	ReadAllowed bool
}

// ChildSet groups the child nodes reached through one relationship field.
type ChildSet struct {
	Rel   *entitymeta.Relationship
	Nodes []*EntityCreateNode
	// IsList records whether the input supplied a list, so the response
	// can mirror the original shape.
	IsList bool
}

// MutationRequest is the top-level unit: one or more root create nodes
// built from a single GraphQL call. It lives for exactly one request.
type MutationRequest struct {
	Roots []*EntityCreateNode
	state RequestState
}

// State returns the request's lifecycle state.
func (r *MutationRequest) State() RequestState {
	return r.state
}

// NodeCount returns the number of entity rows the request inserts.
func (r *MutationRequest) NodeCount() int {
	count := 0
	for _, root := range r.Roots {
		count += countNodes(root)
	}
	return count
}

func countNodes(node *EntityCreateNode) int {
	count := 1
	for _, set := range node.Children {
		for _, child := range set.Nodes {
			count += countNodes(child)
		}
	}
	return count
}

// Depth returns the maximum nesting level across all roots (root = 0).
func (r *MutationRequest) Depth() int {
	depth := 0
	for _, root := range r.Roots {
		if d := nodeDepth(root); d > depth {
			depth = d
		}
	}
	return depth
}

func nodeDepth(node *EntityCreateNode) int {
	depth := node.NestingLevel
	for _, set := range node.Children {
		for _, child := range set.Nodes {
			if d := nodeDepth(child); d > depth {
				depth = d
			}
		}
	}
	return depth
}

// BuildRequest parses a validated nested input value into a mutation
// request. A map builds a single "point" root; a list builds a many-type
// request with one root per item. The transformation is pure.
func BuildRequest(model *entitymeta.Model, entityName string, input interface{}) (*MutationRequest, error) {
	entity, ok := model.Entity(entityName)
	if !ok {
		return nil, newError(CodeInvalidInput, "unknown entity: "+entityName)
	}

	req := &MutationRequest{state: StateBuilding}
	switch value := input.(type) {
	case map[string]interface{}:
		root, err := buildNode(model, entity, value, 0, false)
		if err != nil {
			return nil, err
		}
		req.Roots = []*EntityCreateNode{root}
	case []interface{}:
		if len(value) == 0 {
			return nil, newError(CodeInvalidInput, "create list for "+entityName+" must not be empty")
		}
		for _, item := range value {
			itemMap, ok := item.(map[string]interface{})
			if !ok {
				return nil, newError(CodeInvalidInput, "create list items for "+entityName+" must be objects")
			}
			root, err := buildNode(model, entity, itemMap, 0, false)
			if err != nil {
				return nil, err
			}
			req.Roots = append(req.Roots, root)
		}
	default:
		return nil, newError(CodeInvalidInput, fmt.Sprintf("create input for %s must be an object or list, got %T", entityName, input))
	}
	return req, nil
}

// buildNode builds one entity-create node. Relationship fields in the input
// become child nodes; everything else must name a column and is stored as a
// literal value. A relationship may instead be populated by a literal FK
// scalar on its referencing column, in which case no child node exists.
//
// For many-to-many children (isLinkChild), scalar input keys that do not
// name a target column are carried as linking-row extra fields.
func buildNode(model *entitymeta.Model, entity *entitymeta.Entity, input map[string]interface{}, level int, isLinkChild bool) (*EntityCreateNode, error) {
	node := &EntityCreateNode{
		Entity:       entity,
		Fields:       make(map[string]interface{}, len(input)),
		NestingLevel: level,
	}

	consumed := make(map[string]struct{}, len(input))

	// Relationship declaration order keeps sibling subtrees deterministic.
	for i := range entity.Relationships {
		rel := &entity.Relationships[i]
		raw, present := input[rel.Name]
		if !present || raw == nil {
			continue
		}
		consumed[rel.Name] = struct{}{}

		target, ok := model.Entity(rel.TargetEntity)
		if !ok {
			return nil, newNodeError(CodeConfiguration, "relationship "+rel.Name+" targets unknown entity "+rel.TargetEntity, entity.Name, level)
		}
		childIsLink := rel.Kind == entitymeta.KindManyToMany

		set := ChildSet{Rel: rel}
		switch value := raw.(type) {
		case map[string]interface{}:
			if rel.Kind == entitymeta.KindOneToMany {
				return nil, newNodeError(CodeInvalidInput, "relationship "+rel.Name+" expects a list", entity.Name, level)
			}
			child, err := buildNode(model, target, value, level+1, childIsLink)
			if err != nil {
				return nil, err
			}
			set.Nodes = []*EntityCreateNode{child}
		case []interface{}:
			if rel.Kind == entitymeta.KindManyToOne || rel.Kind == entitymeta.KindOneToOne {
				return nil, newNodeError(CodeInvalidInput, "relationship "+rel.Name+" expects a single object", entity.Name, level)
			}
			set.IsList = true
			for _, item := range value {
				itemMap, ok := item.(map[string]interface{})
				if !ok {
					return nil, newNodeError(CodeInvalidInput, "relationship "+rel.Name+" items must be objects", entity.Name, level)
				}
				child, err := buildNode(model, target, itemMap, level+1, childIsLink)
				if err != nil {
					return nil, err
				}
				set.Nodes = append(set.Nodes, child)
			}
		default:
			return nil, newNodeError(CodeInvalidInput, "relationship "+rel.Name+" must be an object or list", entity.Name, level)
		}
		node.Children = append(node.Children, set)
	}

	for key, value := range input {
		if _, ok := consumed[key]; ok {
			continue
		}
		if _, ok := entity.Column(key); ok {
			node.Fields[key] = value
			continue
		}
		if isLinkChild {
			if node.LinkExtraFields == nil {
				node.LinkExtraFields = make(map[string]interface{})
			}
			node.LinkExtraFields[key] = value
			continue
		}
		return nil, newNodeError(CodeInvalidInput, "unknown field: "+key, entity.Name, level)
	}

	return node, nil
}
