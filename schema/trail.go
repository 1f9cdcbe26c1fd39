package schema

// Trail holds the $ref targets expanded on the current path of a schema
// walk. A recursive definition reached again on the same path is not
// expanded a second time, so walks over trees (node.left and node.right
// both referring to node) stay linear.
type Trail map[string]bool

// Enter resolves n for a walk. ok is false when n expands a reference that
// is already on the trail. Otherwise the references of n are added and leave
// removes them again; callers defer leave.
func (t Trail) Enter(root, n Node) (resolved Node, leave func(), ok bool) {
	r, refs := ResolveRefs(root, n)
	for _, ref := range refs {
		if t[ref] {
			return r, func() {}, false
		}
	}
	for _, ref := range refs {
		t[ref] = true
	}
	return r, func() {
		for _, ref := range refs {
			delete(t, ref)
		}
	}, true
}
