package node

// FromJSON builds a Node from a plain decoded JSON value: a primitive for a
// leaf, or a map[string]interface{} for a children node (recognizing a
// ".priority" key and a ".value" key per the leaf/children export shapes
// produced by Export).
func FromJSON(v interface{}) Node {
	m, ok := v.(map[string]interface{})
	if !ok {
		return NewLeaf(v)
	}

	priority := NoPriority
	if raw, ok := m[".priority"]; ok {
		priority = priorityFromJSON(raw)
	}

	if raw, ok := m[".value"]; ok && len(m) <= 2 {
		return NewLeafWithPriority(raw, priority)
	}

	n := Empty.(childrenNode)
	n.priority = priority
	for k, cv := range m {
		if k == ".priority" {
			continue
		}
		n = n.UpdateImmediateChild(k, FromJSON(cv)).(childrenNode)
	}
	return n
}

func priorityFromJSON(v interface{}) Priority {
	switch val := v.(type) {
	case string:
		return StringPriority(val)
	case float64:
		return NumberPriority(val)
	default:
		return NoPriority
	}
}

// FromFlatPaths reconstructs a Node from a set of leaf paths (each a slice
// of path components relative to the reconstruction root) mapped to their
// primitive values, as stored by ServerCacheStore's one-key-per-leaf layout.
func FromFlatPaths(leaves map[string]interface{}) Node {
	root := Empty
	for relPath, value := range leaves {
		root = setAtRelativePath(root, splitRelPath(relPath), value)
	}
	return root
}

func splitRelPath(p string) []string {
	if p == "" {
		return nil
	}
	var parts []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				parts = append(parts, p[start:i])
			}
			start = i + 1
		}
	}
	return parts
}

func setAtRelativePath(root Node, components []string, value interface{}) Node {
	if len(components) == 0 {
		return NewLeaf(value)
	}
	head, rest := components[0], components[1:]
	child := root.GetImmediateChild(head)
	return root.UpdateImmediateChild(head, setAtRelativePath(child, rest, value))
}
