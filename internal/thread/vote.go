package thread

// NextVote returns the vote that results from clicking dir while current is
// active. Clicking the active direction clears the vote; clicking the
// opposite one swings straight to it.
func NextVote(current, dir int) int {
	if current == dir {
		return 0
	}
	return dir
}

// ApplyVote records a click in direction dir (+1 or -1) on the node. The
// displayed score moves immediately; the returned token's Vote is the value
// to send to the source.
//
// A click made while an earlier vote on the same node is still pending
// supersedes it. On failure the node returns to exactly the state it had
// before this click.
func (f *Forest) ApplyVote(id string, dir int) (*Forest, Token, error) {
	if dir != 1 && dir != -1 {
		return f, Token{}, ErrInvalidDirection
	}
	n, err := f.target(id)
	if err != nil {
		return f, Token{}, err
	}

	prev := n.Vote
	next := NextVote(prev.Current, dir)

	nf := f.clone()
	tok := nf.begin(pendingKey{id, KindVote}, pending{vote: prev}, nil)
	nf.update(id, func(n *Node) {
		n.Vote = VoteState{
			Current: next,
			Delta:   prev.Delta + next - prev.Current,
		}
	})
	tok.Vote = next
	return nf, tok, nil
}

// WithVote sets the user's known vote on a node, as reported by the source
// when the thread was loaded. Nodes with a pending vote are left alone.
func (f *Forest) WithVote(id string, current int) (*Forest, error) {
	if current < -1 || current > 1 {
		return f, ErrInvalidDirection
	}
	if !f.Has(id) {
		return f, ErrNodeNotFound
	}
	if _, busy := f.pending[pendingKey{id, KindVote}]; busy {
		return f, nil
	}
	nf := f.clone()
	nf.update(id, func(n *Node) { n.Vote.Current = current })
	return nf, nil
}
