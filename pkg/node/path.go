package node

// GetAtPath walks root along components, returning Empty if any step is
// missing.
func GetAtPath(root Node, components []string) Node {
	n := root
	for _, c := range components {
		n = n.GetImmediateChild(c)
	}
	return n
}

// SetAtPath returns root with the subtree at components replaced by value,
// creating intermediate children nodes as needed.
func SetAtPath(root Node, components []string, value Node) Node {
	if len(components) == 0 {
		return value
	}
	head, rest := components[0], components[1:]
	child := root.GetImmediateChild(head)
	return root.UpdateImmediateChild(head, SetAtPath(child, rest, value))
}
