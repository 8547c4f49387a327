package mutation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestql/internal/entitymeta"
)

func assembledNode(entity *entitymeta.Entity, row map[string]interface{}, allowed bool) *EntityCreateNode {
	return &EntityCreateNode{
		Entity:      entity,
		Fields:      map[string]interface{}{},
		Row:         row,
		ReadAllowed: allowed,
	}
}

func TestAssembleMirrorsInputShape(t *testing.T) {
	model := testModel(t)
	customer, _ := model.Entity("Customer")
	order, _ := model.Entity("Order")
	profile, _ := model.Entity("Profile")

	root := assembledNode(customer, map[string]interface{}{"id": int64(7), "name": "Acme"}, true)
	ordersRel := &customer.Relationships[0]
	profileRel := &customer.Relationships[1]
	root.Children = []ChildSet{
		{
			Rel:    ordersRel,
			IsList: true,
			Nodes: []*EntityCreateNode{
				assembledNode(order, map[string]interface{}{"id": int64(1), "total": 1.5}, true),
				assembledNode(order, map[string]interface{}{"id": int64(2), "total": 2.5}, true),
			},
		},
		{
			Rel:   profileRel,
			Nodes: []*EntityCreateNode{assembledNode(profile, map[string]interface{}{"id": int64(9), "bio": "hi"}, true)},
		},
	}

	req := &MutationRequest{Roots: []*EntityCreateNode{root}, state: StateCommitted}
	results := Assemble(req)
	require.Len(t, results, 1)
	assert.Equal(t, StateAssembled, req.State())

	out := results[0]
	assert.Equal(t, "Acme", out["name"])

	orders, ok := out["orders"].([]interface{})
	require.True(t, ok)
	require.Len(t, orders, 2)
	first, ok := orders[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.5, first["total"])

	prof, ok := out["profile"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hi", prof["bio"])
}

func TestAssemblePrunesDeniedNodes(t *testing.T) {
	model := testModel(t)
	customer, _ := model.Entity("Customer")
	order, _ := model.Entity("Order")
	profile, _ := model.Entity("Profile")

	root := assembledNode(customer, map[string]interface{}{"id": int64(7)}, true)
	root.Children = []ChildSet{
		{
			Rel:    &customer.Relationships[0],
			IsList: true,
			Nodes: []*EntityCreateNode{
				assembledNode(order, map[string]interface{}{"id": int64(1)}, true),
				assembledNode(order, map[string]interface{}{"id": int64(2)}, false),
			},
		},
		{
			Rel:   &customer.Relationships[1],
			Nodes: []*EntityCreateNode{assembledNode(profile, map[string]interface{}{"id": int64(9)}, false)},
		},
	}

	req := &MutationRequest{Roots: []*EntityCreateNode{root}, state: StateCommitted}
	results := Assemble(req)
	require.Len(t, results, 1)
	out := results[0]

	// The denied order is dropped from the list; the denied profile is
	// omitted entirely.
	orders, ok := out["orders"].([]interface{})
	require.True(t, ok)
	require.Len(t, orders, 1)
	_, present := out["profile"]
	assert.False(t, present)
}

func TestAssemblePrunedRootKeepsListPosition(t *testing.T) {
	model := testModel(t)
	customer, _ := model.Entity("Customer")

	req := &MutationRequest{
		Roots: []*EntityCreateNode{
			assembledNode(customer, map[string]interface{}{"id": int64(1)}, false),
			assembledNode(customer, map[string]interface{}{"id": int64(2)}, true),
		},
		state: StateCommitted,
	}

	results := Assemble(req)
	require.Len(t, results, 2)
	assert.Nil(t, results[0])
	require.NotNil(t, results[1])
	assert.EqualValues(t, 2, results[1]["id"])
}
