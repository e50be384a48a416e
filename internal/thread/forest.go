// Package thread reconciles paginated comment records into a reply tree and
// layers optimistic mutations on top of it.
//
// A Forest is immutable once returned: every operation produces a new Forest
// and leaves the receiver untouched. Unchanged subtrees are shared between
// the old and new values, so callers must treat Nodes as read-only.
package thread

import (
	"maps"
	"slices"
)

// VoteState is the local view of the user's vote on a node.
type VoteState struct {
	Current int // -1, 0 or 1
	Delta   int // adjustments not yet confirmed by the source
}

// Node is a comment placed in the forest.
type Node struct {
	Record

	Children    []*Node
	Tombstoned  bool
	ReplyCursor string
	Vote        VoteState

	// Placeholder is set on locally created replies until the source
	// confirms them.
	Placeholder bool
}

// DisplayScore is the score shown to the user.
func (n *Node) DisplayScore() int {
	return n.VoteScore + n.Vote.Delta
}

// Forest holds the comments of one post.
type Forest struct {
	PostID     string
	Roots      []*Node
	NextCursor string

	// parents maps every node id to its parent id ("" for roots).
	parents map[string]string
	pending map[pendingKey]pending
	seq     uint64
}

// New returns an empty forest for a post.
func New(postID string) *Forest {
	return &Forest{
		PostID:  postID,
		parents: make(map[string]string),
		pending: make(map[pendingKey]pending),
	}
}

// Len returns the number of nodes in the forest.
func (f *Forest) Len() int {
	return len(f.parents)
}

// Has reports whether id is placed anywhere in the forest.
func (f *Forest) Has(id string) bool {
	_, ok := f.parents[id]
	return ok
}

// Find returns the node with the given id.
func (f *Forest) Find(id string) (*Node, bool) {
	p, ok := f.path(id)
	if !ok {
		return nil, false
	}
	nodes := f.Roots
	var n *Node
	for _, step := range p {
		i := indexOf(nodes, step)
		if i < 0 {
			return nil, false
		}
		n = nodes[i]
		nodes = n.Children
	}
	return n, true
}

// Walk visits nodes depth first in display order. Returning false from fn
// skips the node's children.
func Walk(f *Forest, fn func(n *Node, depth int) bool) {
	var visit func(nodes []*Node, depth int)
	visit = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			if fn(n, depth) {
				visit(n.Children, depth+1)
			}
		}
	}
	visit(f.Roots, 0)
}

func (f *Forest) clone() *Forest {
	nf := *f
	nf.parents = maps.Clone(f.parents)
	nf.pending = maps.Clone(f.pending)
	if nf.parents == nil {
		nf.parents = make(map[string]string)
	}
	if nf.pending == nil {
		nf.pending = make(map[pendingKey]pending)
	}
	return &nf
}

// path returns the ids from the root down to id.
func (f *Forest) path(id string) ([]string, bool) {
	if _, ok := f.parents[id]; !ok {
		return nil, false
	}
	var p []string
	for cur := id; cur != ""; cur = f.parents[cur] {
		p = append(p, cur)
	}
	slices.Reverse(p)
	return p, true
}

// update replaces the node with the given id by a copy passed through fn,
// copying every ancestor on the way. Only call on a forest from clone.
func (f *Forest) update(id string, fn func(n *Node)) bool {
	p, ok := f.path(id)
	if !ok {
		return false
	}
	roots, ok := rewrite(f.Roots, p, fn)
	if !ok {
		return false
	}
	f.Roots = roots
	return true
}

func rewrite(nodes []*Node, path []string, fn func(n *Node)) ([]*Node, bool) {
	i := indexOf(nodes, path[0])
	if i < 0 {
		return nodes, false
	}
	n := *nodes[i]
	if len(path) == 1 {
		fn(&n)
	} else {
		children, ok := rewrite(n.Children, path[1:], fn)
		if !ok {
			return nodes, false
		}
		n.Children = children
	}
	out := slices.Clone(nodes)
	out[i] = &n
	return out, true
}

// attach appends node as the last child of parentID, or as the last root
// when parentID is empty, and indexes its subtree.
func (f *Forest) attach(parentID string, node *Node) {
	if parentID == "" {
		f.Roots = append(slices.Clip(f.Roots), node)
	} else {
		f.update(parentID, func(p *Node) {
			p.Children = append(slices.Clip(p.Children), node)
		})
	}
	f.index(parentID, node)
}

func (f *Forest) index(parentID string, node *Node) {
	f.parents[node.ID] = parentID
	for _, c := range node.Children {
		f.index(node.ID, c)
	}
}

// remove detaches the node and its subtree from the forest.
func (f *Forest) remove(id string) (*Node, bool) {
	n, ok := f.Find(id)
	if !ok {
		return nil, false
	}
	parentID := f.parents[id]
	drop := func(nodes []*Node) []*Node {
		return slices.DeleteFunc(slices.Clone(nodes), func(c *Node) bool { return c.ID == id })
	}
	if parentID == "" {
		f.Roots = drop(f.Roots)
	} else {
		f.update(parentID, func(p *Node) { p.Children = drop(p.Children) })
	}
	f.unindex(n)
	return n, true
}

func (f *Forest) unindex(n *Node) {
	delete(f.parents, n.ID)
	for _, c := range n.Children {
		f.unindex(c)
	}
}

// forget drops the overlays of a removed subtree.
func (f *Forest) forget(n *Node) {
	for k := range f.pending {
		if k.id == n.ID {
			delete(f.pending, k)
		}
	}
	for _, c := range n.Children {
		f.forget(c)
	}
}

func indexOf(nodes []*Node, id string) int {
	return slices.IndexFunc(nodes, func(n *Node) bool { return n.ID == id })
}
