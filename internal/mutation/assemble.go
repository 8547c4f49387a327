package mutation

// Assemble builds the response payload for a committed request. The output
// mirrors the input's nesting: each node becomes its stored row plus one
// entry per relationship field, lists staying lists. Nodes whose read policy
// denied access are pruned (dropped from lists, omitted for single-valued
// fields); their subtrees were still inserted.
//
// The returned slice has one element per root item; a pruned root yields
// nil in its position so callers can mirror list positions.
func Assemble(req *MutationRequest) []map[string]interface{} {
	results := make([]map[string]interface{}, len(req.Roots))
	for i, root := range req.Roots {
		results[i] = assembleNode(root)
	}
	req.state = StateAssembled
	return results
}

func assembleNode(node *EntityCreateNode) map[string]interface{} {
	if !node.ReadAllowed {
		return nil
	}

	out := make(map[string]interface{}, len(node.Row)+len(node.Children))
	for col, value := range node.Row {
		out[col] = value
	}

	for _, set := range node.Children {
		if set.IsList {
			items := make([]interface{}, 0, len(set.Nodes))
			for _, child := range set.Nodes {
				if assembled := assembleNode(child); assembled != nil {
					items = append(items, assembled)
				}
			}
			out[set.Rel.Name] = items
			continue
		}
		if len(set.Nodes) > 0 {
			if assembled := assembleNode(set.Nodes[0]); assembled != nil {
				out[set.Rel.Name] = assembled
			}
		}
	}
	return out
}
