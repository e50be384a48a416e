package store

import (
	"context"
	"time"
)

// Store caches what a thread view has fetched so a reopened thread can be
// shown before the data source answers.
type Store interface {
	// Comments
	SaveComments(ctx context.Context, comments []*Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	ListComments(ctx context.Context, postID string) ([]*Comment, error)
	UpdateCommentBody(ctx context.Context, id, body string, updatedAt time.Time) error
	UpdateCommentScore(ctx context.Context, id string, score, userVote int) error
	MarkCommentDeleted(ctx context.Context, id string) error

	// Cursors
	SaveCursor(ctx context.Context, postID, scope, cursor string) error
	ListCursors(ctx context.Context, postID string) (map[string]string, error)

	// Lifecycle
	Close() error
}
