package view

import (
	"context"
	"errors"

	"github.com/alphabot-ai/threadview/internal/source"
	"github.com/alphabot-ai/threadview/internal/store"
	"github.com/alphabot-ai/threadview/internal/thread"
)

// Edit replaces the text of a comment. The new text shows at once and is
// rolled back if the source rejects it.
func (v *View) Edit(ctx context.Context, commentID, body string) error {
	tok, err := v.apply(func(f *thread.Forest) (*thread.Forest, thread.Token, error) {
		return f.ApplyEdit(commentID, body, v.opts.Now())
	})
	if err != nil {
		return err
	}

	rec, err := v.src.UpdateComment(ctx, v.postID, commentID, tok.Body)
	if err != nil {
		return v.resolve(ctx, tok, thread.Failed(err))
	}
	return v.resolve(ctx, tok, thread.Committed(rec))
}

// Delete tombstones a comment. Its replies stay visible.
func (v *View) Delete(ctx context.Context, commentID string) error {
	tok, err := v.apply(func(f *thread.Forest) (*thread.Forest, thread.Token, error) {
		return f.ApplyDelete(commentID)
	})
	if err != nil {
		return err
	}

	if err := v.src.DeleteComment(ctx, v.postID, commentID); err != nil {
		return v.resolve(ctx, tok, thread.Failed(err))
	}
	return v.resolve(ctx, tok, thread.CommittedUnknown())
}

// Reply posts a new comment below parentID, or a new root comment when
// parentID is empty. It returns the id the source assigned.
func (v *View) Reply(ctx context.Context, parentID, body string) (string, error) {
	if v.opts.Username == "" {
		return "", ErrNoUsername
	}
	if thread.IsPlaceholderID(parentID) {
		// the source cannot address a comment it has not confirmed yet
		return "", thread.ErrPlaceholder
	}

	tok, err := v.apply(func(f *thread.Forest) (*thread.Forest, thread.Token, error) {
		return f.ApplyCreate(parentID, v.opts.Username, body, v.opts.Now())
	})
	if err != nil {
		return "", err
	}

	rec, err := v.src.CreateComment(ctx, v.postID, source.CreateCommentRequest{
		Author:          tok.Author,
		Body:            tok.Body,
		ParentCommentID: tok.ParentID,
	})
	if err != nil {
		return "", v.resolve(ctx, tok, thread.Failed(err))
	}
	if err := v.resolve(ctx, tok, thread.Committed(rec)); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Vote clicks the up (1) or down (-1) arrow on a comment. Clicking the
// active arrow again clears the vote.
//
// Only one vote call per comment is in flight at a time. Clicks made while
// it runs update the displayed score and return immediately; the running
// call then sends the latest intent before settling.
func (v *View) Vote(ctx context.Context, commentID string, dir int) error {
	if v.opts.Username == "" {
		return ErrNoUsername
	}

	v.mu.Lock()
	f, tok, err := v.forest.ApplyVote(commentID, dir)
	if err != nil {
		v.mu.Unlock()
		return err
	}
	v.forest = f
	if fl, busy := v.voting[commentID]; busy {
		fl.latest = tok
		v.mu.Unlock()
		return nil
	}
	fl := &voteFlight{latest: tok}
	v.voting[commentID] = fl
	v.mu.Unlock()

	sent := tok
	for {
		score, err := v.src.VoteComment(ctx, v.postID, commentID, v.opts.Username, sent.Vote)

		v.mu.Lock()
		latest := fl.latest
		if latest.Seq != sent.Seq && (err != nil || latest.Vote != sent.Vote) {
			v.mu.Unlock()
			log.Debugf("vote on %s changed in flight, sending %d", commentID, latest.Vote)
			sent = latest
			continue
		}
		delete(v.voting, commentID)
		v.mu.Unlock()

		if err != nil {
			return v.resolve(ctx, latest, thread.Failed(err))
		}
		return v.resolve(ctx, latest, thread.CommittedScore(score))
	}
}

func (v *View) apply(fn func(*thread.Forest) (*thread.Forest, thread.Token, error)) (thread.Token, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	f, tok, err := fn(v.forest)
	if err != nil {
		return thread.Token{}, err
	}
	v.forest = f
	return tok, nil
}

// resolve settles tok and writes confirmed changes through to the cache.
// Results for superseded tokens are dropped.
func (v *View) resolve(ctx context.Context, tok thread.Token, out thread.Outcome) error {
	v.mu.Lock()
	if !v.forest.IsCurrent(tok) {
		v.mu.Unlock()
		log.Debugf("discarding stale %s result for %s", tok.Kind, tok.NodeID)
		return nil
	}
	f, err := v.forest.Resolve(tok, out)
	v.forest = f
	v.mu.Unlock()

	if err != nil {
		log.Warningf("%v", err)
		return err
	}
	v.saveCommit(ctx, f, tok, out)
	return nil
}

// restore loads the cached thread of the post into the forest.
func (v *View) restore(ctx context.Context) bool {
	if v.opts.Store == nil {
		return false
	}
	snap, err := store.LoadSnapshot(ctx, v.opts.Store, v.postID)
	if err != nil {
		log.Warningf("reading cache for post %s: %v", v.postID, err)
		return false
	}
	if snap == nil {
		return false
	}

	records := make([]thread.Record, len(snap.Comments))
	for i, c := range snap.Comments {
		records[i] = c.Record
	}
	f := thread.New(v.postID).MergeRoots(records, snap.Cursors[store.ScopeRoots])

	for scope, cursor := range snap.Cursors {
		if scope == store.ScopeRoots {
			continue
		}
		if nf, err := f.MergeReplies(scope, nil, cursor); err == nil {
			f = nf
		}
	}

	for _, c := range snap.Comments {
		if c.Deleted {
			if nf, tok, err := f.ApplyDelete(c.ID); err == nil {
				f, _ = nf.Resolve(tok, thread.CommittedUnknown())
			}
		}
		if c.UserVote != 0 {
			if nf, err := f.WithVote(c.ID, c.UserVote); err == nil {
				f = nf
			}
		}
	}

	v.mu.Lock()
	v.forest = f
	v.loaded = true
	v.mu.Unlock()

	log.Infof("restored %d cached comments for post %s", f.Len(), v.postID)
	return true
}

func (v *View) savePage(ctx context.Context, scope string, batch []thread.Record, cursor string) {
	if v.opts.Store == nil {
		return
	}

	comments := make([]*store.Comment, 0, len(batch))
	for _, r := range batch {
		if r.Validate() != nil || r.PostID != v.postID {
			continue
		}
		comments = append(comments, &store.Comment{Record: r})
	}

	err := errors.Join(
		v.opts.Store.SaveComments(ctx, comments),
		v.opts.Store.SaveCursor(ctx, v.postID, scope, cursor),
	)
	if err != nil {
		log.Warningf("caching page of post %s: %v", v.postID, err)
	}
}

func (v *View) saveCommit(ctx context.Context, f *thread.Forest, tok thread.Token, out thread.Outcome) {
	if v.opts.Store == nil {
		return
	}

	var err error
	switch tok.Kind {
	case thread.KindEdit:
		if n, ok := f.Find(tok.NodeID); ok {
			err = v.opts.Store.UpdateCommentBody(ctx, n.ID, n.Body, n.UpdatedAt)
		}
	case thread.KindDelete:
		err = v.opts.Store.MarkCommentDeleted(ctx, tok.NodeID)
	case thread.KindCreate:
		if out.Record != nil {
			if n, ok := f.Find(out.Record.ID); ok {
				err = v.opts.Store.SaveComments(ctx, []*store.Comment{{Record: n.Record}})
			}
		}
	case thread.KindVote:
		if n, ok := f.Find(tok.NodeID); ok {
			err = v.opts.Store.UpdateCommentScore(ctx, n.ID, n.VoteScore, n.Vote.Current)
		}
	}
	if err != nil {
		log.Warningf("caching %s of %s: %v", tok.Kind, tok.NodeID, err)
	}
}
