package view

import (
	"context"
	"errors"

	"github.com/alphabot-ai/threadview/internal/source"
	"github.com/alphabot-ai/threadview/internal/thread"
)

var ErrPostNotLoaded = errors.New("post has not been loaded")

// PostHeader is the post a thread belongs to, with the user's vote on it.
type PostHeader struct {
	source.Post
	Vote thread.VoteState
}

// DisplayScore is the score shown to the user.
func (h PostHeader) DisplayScore() int {
	return h.VoteScore + h.Vote.Delta
}

// postState holds the header and the sequence of the newest post vote.
type postState struct {
	header  PostHeader
	loaded  bool
	voteSeq uint64
	pending bool
}

// LoadPost fetches the post itself. A vote in progress keeps its overlay.
func (v *View) LoadPost(ctx context.Context) error {
	p, err := v.src.GetPost(ctx, v.postID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	vote := v.post.header.Vote
	if !v.post.pending {
		vote.Delta = 0
	}
	v.post.header = PostHeader{Post: *p, Vote: vote}
	v.post.loaded = true
	return nil
}

// Post returns the loaded post header.
func (v *View) Post() (PostHeader, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.post.header, v.post.loaded
}

// VotePost clicks the up (1) or down (-1) arrow on the post, with the same
// toggle rules as comment votes. The score moves at once; a failure restores
// the state from before the click unless a newer click has been made since.
func (v *View) VotePost(ctx context.Context, dir int) error {
	if v.opts.Username == "" {
		return ErrNoUsername
	}
	if dir != 1 && dir != -1 {
		return thread.ErrInvalidDirection
	}

	v.mu.Lock()
	if !v.post.loaded {
		v.mu.Unlock()
		return ErrPostNotLoaded
	}
	prev := v.post.header.Vote
	next := thread.NextVote(prev.Current, dir)
	v.post.header.Vote = thread.VoteState{Current: next, Delta: prev.Delta + next - prev.Current}
	v.post.voteSeq++
	v.post.pending = true
	seq := v.post.voteSeq
	v.mu.Unlock()

	score, err := v.src.VotePost(ctx, v.postID, v.opts.Username, next)

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.post.voteSeq {
		log.Debugf("discarding stale vote result for post %s", v.postID)
		return nil
	}
	v.post.pending = false
	if err != nil {
		v.post.header.Vote = prev
		log.Warningf("vote on post %s failed: %v", v.postID, err)
		return &thread.MutationError{Kind: thread.KindVote, NodeID: v.postID, Err: err}
	}
	v.post.header.VoteScore = score
	v.post.header.Vote.Delta = 0
	return nil
}
