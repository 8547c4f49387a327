package mutation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestql/internal/entitymeta"
)

func TestBuildRequestSingleRoot(t *testing.T) {
	model := testModel(t)

	req, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":   "Acme",
		"status": "active",
		"orders": []interface{}{
			map[string]interface{}{"total": 10.5},
			map[string]interface{}{"total": 20.0},
		},
		"profile": map[string]interface{}{"bio": "wholesale"},
	})
	require.NoError(t, err)
	require.Len(t, req.Roots, 1)
	assert.Equal(t, StateBuilding, req.State())

	root := req.Roots[0]
	assert.Equal(t, "Customer", root.Entity.Name)
	assert.Equal(t, "Acme", root.Fields["name"])
	assert.Equal(t, 0, root.NestingLevel)

	require.Len(t, root.Children, 2)
	orders := root.Children[0]
	assert.Equal(t, "orders", orders.Rel.Name)
	assert.True(t, orders.IsList)
	require.Len(t, orders.Nodes, 2)
	assert.Equal(t, 1, orders.Nodes[0].NestingLevel)
	assert.Equal(t, 10.5, orders.Nodes[0].Fields["total"])

	profile := root.Children[1]
	assert.Equal(t, "profile", profile.Rel.Name)
	assert.False(t, profile.IsList)
	require.Len(t, profile.Nodes, 1)
	assert.Equal(t, "wholesale", profile.Nodes[0].Fields["bio"])
}

func TestBuildRequestManyRoots(t *testing.T) {
	model := testModel(t)

	req, err := BuildRequest(model, "Customer", []interface{}{
		map[string]interface{}{"name": "a", "status": "active"},
		map[string]interface{}{"name": "b", "status": "active"},
	})
	require.NoError(t, err)
	require.Len(t, req.Roots, 2)
	assert.Equal(t, "a", req.Roots[0].Fields["name"])
	assert.Equal(t, "b", req.Roots[1].Fields["name"])
}

func TestBuildRequestEmptyList(t *testing.T) {
	model := testModel(t)

	_, err := BuildRequest(model, "Customer", []interface{}{})
	require.Error(t, err)
	var mutErr *Error
	require.ErrorAs(t, err, &mutErr)
	assert.Equal(t, CodeInvalidInput, mutErr.Code)
}

func TestBuildRequestRejectsNonObjectListItem(t *testing.T) {
	model := testModel(t)

	_, err := BuildRequest(model, "Customer", []interface{}{"nope"})
	require.Error(t, err)
	var mutErr *Error
	require.ErrorAs(t, err, &mutErr)
	assert.Equal(t, CodeInvalidInput, mutErr.Code)
}

func TestBuildRequestUnknownEntity(t *testing.T) {
	model := testModel(t)

	_, err := BuildRequest(model, "Widget", map[string]interface{}{})
	require.Error(t, err)
}

func TestBuildRequestUnknownField(t *testing.T) {
	model := testModel(t)

	_, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":   "Acme",
		"bogus":  1,
		"status": "active",
	})
	require.Error(t, err)
	var mutErr *Error
	require.ErrorAs(t, err, &mutErr)
	assert.Equal(t, CodeInvalidInput, mutErr.Code)
	assert.Contains(t, mutErr.Message, "bogus")
}

func TestBuildRequestShapeMismatches(t *testing.T) {
	model := testModel(t)

	// A list-valued relationship rejects a single object.
	_, err := BuildRequest(model, "Customer", map[string]interface{}{
		"orders": map[string]interface{}{"total": 1.0},
	})
	require.Error(t, err)

	// A single-valued relationship rejects a list.
	_, err = BuildRequest(model, "Order", map[string]interface{}{
		"total":    1.0,
		"customer": []interface{}{map[string]interface{}{"name": "x"}},
	})
	require.Error(t, err)
}

func TestBuildRequestNilRelationshipSkipped(t *testing.T) {
	model := testModel(t)

	req, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":    "Acme",
		"status":  "active",
		"profile": nil,
	})
	require.NoError(t, err)
	assert.Empty(t, req.Roots[0].Children)
}

func TestBuildRequestLiteralForeignKeyScalar(t *testing.T) {
	model := testModel(t)

	// Connecting to an existing customer by FK value instead of nesting.
	req, err := BuildRequest(model, "Order", map[string]interface{}{
		"customer_id": 42,
		"total":       5.0,
	})
	require.NoError(t, err)
	root := req.Roots[0]
	assert.Empty(t, root.Children)
	assert.Equal(t, 42, root.Fields["customer_id"])
}

func TestBuildRequestLinkExtraFields(t *testing.T) {
	model := testModel(t)

	req, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":   "Acme",
		"status": "active",
		"tags": []interface{}{
			map[string]interface{}{"label": "vip", "note": "gold"},
		},
	})
	require.NoError(t, err)

	root := req.Roots[0]
	require.Len(t, root.Children, 1)
	set := root.Children[0]
	assert.Equal(t, entitymeta.KindManyToMany, set.Rel.Kind)
	require.Len(t, set.Nodes, 1)

	tag := set.Nodes[0]
	assert.Equal(t, "vip", tag.Fields["label"])
	// "note" is not a tags column, so it belongs to the linking row.
	assert.Equal(t, map[string]interface{}{"note": "gold"}, tag.LinkExtraFields)
}

func TestBuildRequestUnknownFieldOutsideLinkChild(t *testing.T) {
	model := testModel(t)

	// The same stray key that a linking child tolerates is an error on a
	// plain nested create.
	_, err := BuildRequest(model, "Customer", map[string]interface{}{
		"name":   "Acme",
		"status": "active",
		"orders": []interface{}{
			map[string]interface{}{"total": 1.0, "note": "gold"},
		},
	})
	require.Error(t, err)
	var mutErr *Error
	require.ErrorAs(t, err, &mutErr)
	assert.Equal(t, "Order", mutErr.Entity)
	assert.Equal(t, 1, mutErr.NestingLevel)
}

func TestRequestNodeCountAndDepth(t *testing.T) {
	model := testModel(t)

	req, err := BuildRequest(model, "Customer", []interface{}{
		map[string]interface{}{
			"name":   "Acme",
			"status": "active",
			"orders": []interface{}{
				map[string]interface{}{"total": 1.0},
				map[string]interface{}{"total": 2.0},
			},
		},
		map[string]interface{}{
			"name":   "Globex",
			"status": "active",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, req.NodeCount())
	assert.Equal(t, 1, req.Depth())
}
