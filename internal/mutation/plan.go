package mutation

import (
	"sort"
	"strings"

	"nestql/internal/entitymeta"
)

// FKAssignment defers one foreign-key column of a node until the node it
// references has been inserted and read back.
type FKAssignment struct {
	Column     string
	From       *EntityCreateNode
	FromColumn string
}

// InsertPlanEntry is one scheduled entity insert.
type InsertPlanEntry struct {
	Node *EntityCreateNode
	// Assignments are applied just before the insert, copying values out of
	// referenced nodes' stored rows.
	Assignments []FKAssignment
	// ReferencedNodes are the nodes whose generated keys this entry needs.
	ReferencedNodes []*EntityCreateNode
}

// LinkingRowInsert is a synthesized insert into a many-to-many linking
// table, one per (parent item, child item) pair declared in the input. It
// runs after both endpoints' keys are known.
type LinkingRowInsert struct {
	Table         string
	Source        *EntityCreateNode
	Target        *EntityCreateNode
	SourceColumns []string // linking-table columns
	SourceFrom    []string // entity columns on Source supplying the values
	TargetColumns []string
	TargetFrom    []string
	ExtraFields   map[string]interface{}
}

// Plan is a total insert order consistent with the partial order
// "referenced before referencing", spanning every root item of the request.
// Linking rows are appended after the entity sequence in declaration order.
type Plan struct {
	Entries []InsertPlanEntry
	Links   []LinkingRowInsert
}

// PlanRequest computes the insert order for the whole request. Ties between
// independent subtrees break by input declaration order, so planning the
// same tree twice yields the same sequence. A dependency cycle is a
// configuration error caught here, before any insert is attempted.
func PlanRequest(req *MutationRequest) (*Plan, error) {
	var nodes []*EntityCreateNode
	index := make(map[*EntityCreateNode]int)
	var links []LinkingRowInsert

	var discover func(node *EntityCreateNode)
	discover = func(node *EntityCreateNode) {
		if _, seen := index[node]; seen {
			return
		}
		index[node] = len(nodes)
		nodes = append(nodes, node)
		for _, set := range node.Children {
			for _, child := range set.Nodes {
				discover(child)
			}
		}
	}
	for _, root := range req.Roots {
		discover(root)
	}

	// edge u→v means "u must be inserted before v".
	successors := make([][]int, len(nodes))
	indegree := make([]int, len(nodes))
	assignments := make(map[*EntityCreateNode][]FKAssignment)
	referenced := make(map[*EntityCreateNode][]*EntityCreateNode)

	addEdge := func(before, after *EntityCreateNode) {
		u, v := index[before], index[after]
		successors[u] = append(successors[u], v)
		indegree[v]++
		referenced[after] = append(referenced[after], before)
	}

	for _, node := range nodes {
		for _, set := range node.Children {
			rel := set.Rel
			switch rel.Kind {
			case entitymeta.KindManyToOne:
				// The parent carries the FK; each (single) child is
				// inserted first and the parent copies its key.
				for _, child := range set.Nodes {
					addEdge(child, node)
					for i, col := range rel.SourceColumns {
						assignments[node] = append(assignments[node], FKAssignment{
							Column:     col,
							From:       child,
							FromColumn: rel.TargetColumns[i],
						})
					}
				}
			case entitymeta.KindOneToOne, entitymeta.KindOneToMany:
				// The child rows carry the FK; the parent goes first.
				for _, child := range set.Nodes {
					addEdge(node, child)
					for i, col := range rel.TargetColumns {
						assignments[child] = append(assignments[child], FKAssignment{
							Column:     col,
							From:       node,
							FromColumn: rel.SourceColumns[i],
						})
					}
				}
			case entitymeta.KindManyToMany:
				// No ordering constraint between the entities; the linking
				// row waits until both keys are known.
				for _, child := range set.Nodes {
					links = append(links, LinkingRowInsert{
						Table:         rel.LinkingTable,
						Source:        node,
						Target:        child,
						SourceColumns: rel.LinkingSourceColumns,
						SourceFrom:    rel.SourceColumns,
						TargetColumns: rel.LinkingTargetColumns,
						TargetFrom:    rel.TargetColumns,
						ExtraFields:   child.LinkExtraFields,
					})
				}
			}
		}
	}

	// Stable Kahn sort: always emit the ready node with the lowest
	// discovery index.
	emitted := make([]bool, len(nodes))
	order := make([]int, 0, len(nodes))
	for len(order) < len(nodes) {
		next := -1
		for i := range nodes {
			if !emitted[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, cycleError(nodes, emitted)
		}
		emitted[next] = true
		order = append(order, next)
		for _, v := range successors[next] {
			indegree[v]--
		}
	}

	plan := &Plan{
		Entries: make([]InsertPlanEntry, 0, len(nodes)),
		Links:   links,
	}
	for _, i := range order {
		node := nodes[i]
		plan.Entries = append(plan.Entries, InsertPlanEntry{
			Node:            node,
			Assignments:     assignments[node],
			ReferencedNodes: referenced[node],
		})
	}

	req.state = StatePlanned
	return plan, nil
}

func cycleError(nodes []*EntityCreateNode, emitted []bool) error {
	stuck := make(map[string]struct{})
	for i, node := range nodes {
		if !emitted[i] {
			stuck[node.Entity.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(stuck))
	for name := range stuck {
		names = append(names, name)
	}
	sort.Strings(names)
	return newError(CodeConfiguration, "relationship cycle prevents insert ordering among entities: "+strings.Join(names, ", "))
}
