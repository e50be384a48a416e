package thread

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a mutation intent.
type Kind int

const (
	KindEdit Kind = iota + 1
	KindDelete
	KindCreate
	KindVote
)

func (k Kind) String() string {
	switch k {
	case KindEdit:
		return "edit"
	case KindDelete:
		return "delete"
	case KindCreate:
		return "create"
	case KindVote:
		return "vote"
	}
	return "unknown"
}

// PlaceholderPrefix starts the id of every locally created comment.
const PlaceholderPrefix = "local-"

// IsPlaceholderID reports whether id was generated locally.
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// Token identifies one applied overlay. It carries what the caller needs to
// issue the matching network action.
type Token struct {
	NodeID string
	Kind   Kind
	Seq    uint64

	Body     string // edit, create
	ParentID string // create
	Author   string // create
	Vote     int    // vote: the value to send (-1, 0 or 1)
}

// Outcome is the result of the network action behind a Token.
type Outcome struct {
	Record *Record
	Score  *int
	Err    error
}

// Committed confirms a mutation with the record returned by the source.
func Committed(rec *Record) Outcome {
	return Outcome{Record: rec}
}

// CommittedScore confirms a vote with the authoritative score.
func CommittedScore(score int) Outcome {
	return Outcome{Score: &score}
}

// CommittedUnknown confirms a mutation whose response carried no data.
func CommittedUnknown() Outcome {
	return Outcome{}
}

// Failed reports a failed mutation; the overlay is rolled back.
func Failed(err error) Outcome {
	return Outcome{Err: err}
}

type pendingKey struct {
	id   string
	kind Kind
}

// pending holds the state an overlay restores on rollback.
type pending struct {
	seq        uint64
	body       string
	updatedAt  time.Time
	tombstoned bool
	vote       VoteState
}

// IsCurrent reports whether tok is the newest outstanding mutation for its
// node and kind.
func (f *Forest) IsCurrent(tok Token) bool {
	p, ok := f.pending[pendingKey{tok.NodeID, tok.Kind}]
	return ok && p.seq == tok.Seq
}

// PendingCount returns the number of outstanding overlays.
func (f *Forest) PendingCount() int {
	return len(f.pending)
}

// begin registers a new overlay for key. A previous overlay of the same key
// is superseded; base is called with it so edit and delete keep the last
// authoritative value as their rollback target.
func (f *Forest) begin(key pendingKey, p pending, base func(prev pending) pending) Token {
	f.seq++
	if prev, ok := f.pending[key]; ok && base != nil {
		p = base(prev)
	}
	p.seq = f.seq
	f.pending[key] = p
	return Token{NodeID: key.id, Kind: key.kind, Seq: f.seq}
}

func (f *Forest) target(id string) (*Node, error) {
	n, ok := f.Find(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNodeNotFound)
	}
	if n.Placeholder {
		return nil, fmt.Errorf("%s: %w", id, ErrPlaceholder)
	}
	if n.Tombstoned {
		return nil, fmt.Errorf("%s: %w", id, ErrTombstoned)
	}
	return n, nil
}

// ApplyEdit shows body as the node's text until the edit resolves.
func (f *Forest) ApplyEdit(id, body string, now time.Time) (*Forest, Token, error) {
	if strings.TrimSpace(body) == "" {
		return f, Token{}, ErrEmptyBody
	}
	n, err := f.target(id)
	if err != nil {
		return f, Token{}, err
	}

	nf := f.clone()
	tok := nf.begin(pendingKey{id, KindEdit},
		pending{body: n.Body, updatedAt: n.UpdatedAt},
		func(prev pending) pending { return prev })
	nf.update(id, func(n *Node) {
		n.Body = body
		n.UpdatedAt = now
	})
	tok.Body = body
	return nf, tok, nil
}

// ApplyDelete tombstones the node until the delete resolves.
func (f *Forest) ApplyDelete(id string) (*Forest, Token, error) {
	n, err := f.target(id)
	if err != nil {
		return f, Token{}, err
	}

	nf := f.clone()
	tok := nf.begin(pendingKey{id, KindDelete},
		pending{tombstoned: n.Tombstoned},
		func(prev pending) pending { return prev })
	nf.update(id, func(n *Node) { n.Tombstoned = true })
	return nf, tok, nil
}

// ApplyCreate appends a placeholder reply as the last child of parentID, or
// as the last root when parentID is empty.
func (f *Forest) ApplyCreate(parentID, author, body string, now time.Time) (*Forest, Token, error) {
	if strings.TrimSpace(body) == "" {
		return f, Token{}, ErrEmptyBody
	}
	if parentID != "" {
		p, ok := f.Find(parentID)
		if !ok {
			return f, Token{}, fmt.Errorf("%s: %w", parentID, ErrNodeNotFound)
		}
		if p.Tombstoned {
			return f, Token{}, fmt.Errorf("%s: %w", parentID, ErrTombstoned)
		}
	}

	id := PlaceholderPrefix + uuid.NewString()
	nf := f.clone()
	nf.attach(parentID, &Node{
		Record: Record{
			ID:              id,
			PostID:          f.PostID,
			ParentCommentID: parentID,
			Author:          author,
			Body:            body,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		Placeholder: true,
	})
	tok := nf.begin(pendingKey{id, KindCreate}, pending{}, nil)
	tok.Body = body
	tok.ParentID = parentID
	tok.Author = author
	return nf, tok, nil
}

// Resolve settles the overlay behind tok. A token that has been superseded
// or whose node is gone is discarded and the forest returned unchanged. A
// failed outcome rolls the overlay back and returns a *MutationError.
func (f *Forest) Resolve(tok Token, out Outcome) (*Forest, error) {
	if !f.IsCurrent(tok) {
		return f, nil
	}
	key := pendingKey{tok.NodeID, tok.Kind}
	nf := f.clone()
	p := nf.pending[key]
	delete(nf.pending, key)

	if out.Err != nil {
		nf.rollback(tok, p)
		return nf, &MutationError{Kind: tok.Kind, NodeID: tok.NodeID, Err: out.Err}
	}
	nf.commit(tok, out)
	return nf, nil
}

func (f *Forest) rollback(tok Token, p pending) {
	switch tok.Kind {
	case KindEdit:
		f.update(tok.NodeID, func(n *Node) {
			n.Body = p.body
			n.UpdatedAt = p.updatedAt
		})
	case KindDelete:
		f.update(tok.NodeID, func(n *Node) { n.Tombstoned = p.tombstoned })
	case KindCreate:
		if n, ok := f.remove(tok.NodeID); ok {
			f.forget(n)
		}
	case KindVote:
		f.update(tok.NodeID, func(n *Node) { n.Vote = p.vote })
	}
}

func (f *Forest) commit(tok Token, out Outcome) {
	switch tok.Kind {
	case KindEdit:
		if out.Record != nil {
			f.update(tok.NodeID, func(n *Node) {
				n.Body = out.Record.Body
				n.UpdatedAt = out.Record.UpdatedAt
			})
		}
	case KindDelete:
		// stays tombstoned
	case KindCreate:
		f.confirm(tok.NodeID, out.Record)
	case KindVote:
		f.update(tok.NodeID, func(n *Node) {
			if out.Score != nil {
				n.VoteScore = *out.Score
			} else {
				n.VoteScore += n.Vote.Delta
			}
			n.Vote.Delta = 0
		})
	}
}

// confirm turns a placeholder into the comment the source created. Children
// attached to the placeholder in the meantime move along with it.
func (f *Forest) confirm(placeholderID string, rec *Record) {
	if rec == nil || rec.ID == "" || rec.ID == placeholderID {
		f.update(placeholderID, func(n *Node) { n.Placeholder = false })
		return
	}
	parentID := f.parents[placeholderID]

	if f.Has(rec.ID) {
		// A page merge delivered the confirmed comment first.
		old, _ := f.Find(placeholderID)
		f.remove(placeholderID)
		for _, c := range old.Children {
			f.attach(rec.ID, reparent(c, rec.ID))
		}
		return
	}

	f.update(placeholderID, func(n *Node) {
		confirmed := *rec
		confirmed.ParentCommentID = parentID
		if confirmed.PostID == "" {
			confirmed.PostID = n.PostID
		}
		n.Record = confirmed
		n.Placeholder = false
		children := make([]*Node, len(n.Children))
		for i, c := range n.Children {
			children[i] = reparent(c, rec.ID)
		}
		n.Children = children
	})
	delete(f.parents, placeholderID)
	f.parents[rec.ID] = parentID
	n, _ := f.Find(rec.ID)
	for _, c := range n.Children {
		f.parents[c.ID] = rec.ID
	}
}

func reparent(n *Node, parentID string) *Node {
	c := *n
	c.ParentCommentID = parentID
	return &c
}
