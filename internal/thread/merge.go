package thread

import "fmt"

// MergeRoots folds a further page of root comments into the forest and
// replaces the root cursor with cursor. Records already present are
// skipped; a record whose parent is already placed is attached under it,
// any other new top-level record is appended to the roots.
func (f *Forest) MergeRoots(batch []Record, cursor string) *Forest {
	nf := f.clone()
	if nf.PostID == "" {
		nf.PostID = firstPostID(batch)
	}
	for _, n := range nf.build(batch) {
		if nf.Has(n.ParentCommentID) {
			nf.attach(n.ParentCommentID, n)
		} else {
			nf.attach("", n)
		}
	}
	nf.NextCursor = cursor
	return nf
}

// MergeReplies folds a page of replies fetched for parentID into the
// forest and replaces that node's reply cursor with cursor. New records are
// appended after the parent's existing children, except that a record
// whose declared parent is already placed elsewhere is attached there.
func (f *Forest) MergeReplies(parentID string, batch []Record, cursor string) (*Forest, error) {
	if !f.Has(parentID) {
		return f, fmt.Errorf("merge replies for %s: %w", parentID, ErrNodeNotFound)
	}
	nf := f.clone()
	for _, n := range nf.build(batch) {
		target := parentID
		switch {
		case n.ParentCommentID == "":
			// a reply page only holds replies
			n.ParentCommentID = parentID
		case nf.Has(n.ParentCommentID):
			target = n.ParentCommentID
		}
		nf.attach(target, n)
	}
	nf.update(parentID, func(n *Node) { n.ReplyCursor = cursor })
	return nf, nil
}

func firstPostID(batch []Record) string {
	for _, r := range batch {
		if r.Validate() == nil {
			return r.PostID
		}
	}
	return ""
}
