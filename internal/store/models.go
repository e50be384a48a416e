package store

import "github.com/alphabot-ai/threadview/internal/thread"

// ScopeRoots is the cursor scope of a post's root comment pages. Reply
// pages use the parent comment id as their scope.
const ScopeRoots = ""

type Comment struct {
	thread.Record

	Deleted  bool `json:"deleted,omitempty"`
	UserVote int  `json:"user_vote,omitempty"` // 1, 0 or -1
}

// Snapshot is the cached state of one post's thread.
type Snapshot struct {
	PostID   string
	Comments []*Comment
	Cursors  map[string]string
}
