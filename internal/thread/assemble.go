package thread

// Assemble builds a forest from a flat batch of records. A record whose
// parent is not in the batch becomes a root. Malformed records, records of
// another post and repeated ids are dropped.
func Assemble(batch []Record) *Forest {
	f := New(firstPostID(batch))
	for _, n := range f.build(batch) {
		f.Roots = append(f.Roots, n)
		f.index("", n)
	}
	return f
}

// build turns the records of batch that are not yet in the forest into a
// mini-forest and returns its roots in arrival order. Children are attached
// in arrival order too, independent of whether they precede their parent.
func (f *Forest) build(batch []Record) []*Node {
	nodes := make(map[string]*Node, len(batch))
	order := make([]*Node, 0, len(batch))
	for _, r := range batch {
		if r.Validate() != nil || r.PostID != f.PostID {
			continue
		}
		if _, dup := nodes[r.ID]; dup || f.Has(r.ID) {
			continue
		}
		n := &Node{Record: r}
		nodes[r.ID] = n
		order = append(order, n)
	}

	// attached records the parent chosen for each node so far; a record
	// that would close a cycle is promoted to root instead.
	attached := make(map[string]string, len(order))
	var roots []*Node
	for _, n := range order {
		parent, ok := nodes[n.ParentCommentID]
		if !ok || reaches(attached, parent.ID, n.ID) {
			roots = append(roots, n)
			continue
		}
		attached[n.ID] = parent.ID
		parent.Children = append(parent.Children, n)
	}
	return roots
}

func reaches(attached map[string]string, from, target string) bool {
	for cur, ok := from, true; ok; cur, ok = attached[cur] {
		if cur == target {
			return true
		}
	}
	return false
}
