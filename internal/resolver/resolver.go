// Package resolver builds the executable GraphQL schema from the entity
// model and wires create mutations to the mutation engine.
package resolver

import (
	"sync"

	"github.com/graphql-go/graphql"

	"nestql/internal/entitymeta"
	"nestql/internal/mutation"
	"nestql/internal/observability"
)

// Resolver translates between GraphQL and the entity model. Type objects
// are cached per entity so relationship fields can reference each other
// without rebuilding.
type Resolver struct {
	model   *entitymeta.Model
	engine  *mutation.Executor
	metrics *observability.MutationMetrics

	mu             sync.RWMutex
	typeCache      map[string]*graphql.Object
	inputCache     map[string]*graphql.InputObject
	linkInputCache map[string]*graphql.InputObject
}

// NewResolver creates a resolver over a built entity model and executor.
// metrics may be nil when metrics are disabled.
func NewResolver(model *entitymeta.Model, engine *mutation.Executor, metrics *observability.MutationMetrics) *Resolver {
	return &Resolver{
		model:          model,
		engine:         engine,
		metrics:        metrics,
		typeCache:      make(map[string]*graphql.Object),
		inputCache:     make(map[string]*graphql.InputObject),
		linkInputCache: make(map[string]*graphql.InputObject),
	}
}

// BuildSchema constructs the executable schema: one object and input type
// per entity, plus single and list create mutations.
func (r *Resolver) BuildSchema() (graphql.Schema, error) {
	queryFields := graphql.Fields{
		"entities": &graphql.Field{
			Type:        graphql.NewList(graphql.String),
			Description: "Names of the configured entities",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return r.model.EntityNames(), nil
			},
		},
	}

	mutationFields := graphql.Fields{}
	for _, name := range r.model.EntityNames() {
		entity, _ := r.model.Entity(name)
		r.addEntityMutations(mutationFields, entity)
	}

	schemaConfig := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
	}
	if len(mutationFields) > 0 {
		schemaConfig.Mutation = graphql.NewObject(graphql.ObjectConfig{
			Name:   "Mutation",
			Fields: mutationFields,
		})
	}

	return graphql.NewSchema(schemaConfig)
}
