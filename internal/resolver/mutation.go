package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/graphql-go/graphql"

	"nestql/internal/entitymeta"
	"nestql/internal/mutation"
	"nestql/internal/naming"
)

// addEntityMutations registers the single and list create mutations for one
// entity.
func (r *Resolver) addEntityMutations(fields graphql.Fields, entity *entitymeta.Entity) {
	inputType := r.createInputType(entity)

	fields[naming.CreateOneMutationName(entity.Name)] = &graphql.Field{
		Type:        r.createOnePayloadType(entity),
		Description: fmt.Sprintf("Create a %s, optionally with nested related objects", naming.TypeName(entity.Name)),
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{
				Type: graphql.NewNonNull(inputType),
			},
		},
		Resolve: r.makeCreateOneResolver(entity),
	}

	fields[naming.CreateManyMutationName(entity.Name)] = &graphql.Field{
		Type:        r.createManyPayloadType(entity),
		Description: fmt.Sprintf("Create multiple %s atomically", naming.TypeName(entity.Name)),
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(inputType))),
			},
		},
		Resolve: r.makeCreateManyResolver(entity),
	}
}

func (r *Resolver) createOnePayloadType(entity *entitymeta.Entity) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Create" + naming.TypeName(entity.Name) + "Payload",
		Fields: graphql.Fields{
			naming.PayloadFieldName(entity.Name): &graphql.Field{
				Type: r.entityType(entity),
			},
		},
	})
}

func (r *Resolver) createManyPayloadType(entity *entitymeta.Entity) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Create" + naming.TypeName(entity.Name) + "ListPayload",
		Fields: graphql.Fields{
			naming.PayloadListFieldName(entity.Name): &graphql.Field{
				Type: graphql.NewList(r.entityType(entity)),
			},
		},
	})
}

// executeRequest runs the mutation engine and records request metrics.
func (r *Resolver) executeRequest(ctx context.Context, entity *entitymeta.Entity, req *mutation.MutationRequest) error {
	start := time.Now()
	err := r.engine.Execute(ctx, req)
	r.metrics.RecordRequest(ctx, entity.Name, time.Since(start), err != nil)
	r.metrics.RecordTreeDepth(ctx, entity.Name, int64(req.Depth()))

	if err != nil {
		if req.State() == mutation.StateRolledBack {
			r.metrics.RecordRollback(ctx, entity.Name)
		}
		var mutErr *mutation.Error
		if errors.As(err, &mutErr) && mutErr.Code == mutation.CodeDatabasePolicyFailure {
			r.metrics.RecordPolicyDenial(ctx, mutErr.Entity)
		}
		return err
	}

	r.metrics.RecordInserts(ctx, entity.Name, int64(req.NodeCount()))
	return nil
}

func (r *Resolver) makeCreateOneResolver(entity *entitymeta.Entity) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		input, ok := p.Args["input"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("input must be an object")
		}

		modelInput, err := r.inputToModel(entity, nil, input)
		if err != nil {
			return nil, err
		}
		req, err := mutation.BuildRequest(r.model, entity.Name, modelInput)
		if err != nil {
			return nil, err
		}
		if err := r.executeRequest(p.Context, entity, req); err != nil {
			return nil, err
		}

		results := mutation.Assemble(req)
		var out interface{}
		if results[0] != nil {
			out = r.resultToGraphQL(entity, results[0])
		}
		return map[string]interface{}{
			naming.PayloadFieldName(entity.Name): out,
		}, nil
	}
}

func (r *Resolver) makeCreateManyResolver(entity *entitymeta.Entity) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		items, ok := p.Args["input"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("input must be a list")
		}

		modelItems := make([]interface{}, 0, len(items))
		for _, item := range items {
			itemMap, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("input items must be objects")
			}
			converted, err := r.inputToModel(entity, nil, itemMap)
			if err != nil {
				return nil, err
			}
			modelItems = append(modelItems, converted)
		}

		req, err := mutation.BuildRequest(r.model, entity.Name, modelItems)
		if err != nil {
			return nil, err
		}
		if err := r.executeRequest(p.Context, entity, req); err != nil {
			return nil, err
		}

		results := mutation.Assemble(req)
		out := make([]interface{}, len(results))
		for i, result := range results {
			if result != nil {
				out[i] = r.resultToGraphQL(entity, result)
			}
		}
		return map[string]interface{}{
			naming.PayloadListFieldName(entity.Name): out,
		}, nil
	}
}
