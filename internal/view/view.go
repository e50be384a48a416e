// Package view owns the comment forest of one post. It fetches pages from the
// data source, merges them and runs user actions through the optimistic
// mutation layer of package thread.
package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alphabot-ai/threadview/internal/logging"
	"github.com/alphabot-ai/threadview/internal/source"
	"github.com/alphabot-ai/threadview/internal/store"
	"github.com/alphabot-ai/threadview/internal/thread"
)

var log = logging.NewLogger("view")

var ErrNoUsername = errors.New("a username is required to comment or vote")

// Source is the data source a View reads from and writes to.
type Source interface {
	ListComments(ctx context.Context, postID string, page source.Page) (*source.Batch, error)
	ListReplies(ctx context.Context, postID, commentID string, page source.Page) (*source.Batch, error)
	CreateComment(ctx context.Context, postID string, req source.CreateCommentRequest) (*thread.Record, error)
	UpdateComment(ctx context.Context, postID, commentID, body string) (*thread.Record, error)
	DeleteComment(ctx context.Context, postID, commentID string) error
	VoteComment(ctx context.Context, postID, commentID, username string, value int) (int, error)

	GetPost(ctx context.Context, postID string) (*source.Post, error)
	VotePost(ctx context.Context, postID, username string, value int) (int, error)
}

type Options struct {
	Username string
	PageSize int
	MaxDepth int

	// Store caches fetched pages and confirmed mutations. Optional.
	Store store.Store

	Now func() time.Time
}

// View is the single owner of a post's forest. Its methods may be called
// from several goroutines; the forest is updated before any network call
// starts and again when it returns.
type View struct {
	postID string
	src    Source
	opts   Options

	mu     sync.Mutex
	forest *thread.Forest
	loaded bool
	voting map[string]*voteFlight
	post   postState

	fetches singleflight.Group
}

// voteFlight tracks the vote call in progress for one comment and the
// latest click made while it runs.
type voteFlight struct {
	latest thread.Token
}

func New(postID string, src Source, opts Options) *View {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &View{
		postID: postID,
		src:    src,
		opts:   opts,
		forest: thread.New(postID),
		voting: make(map[string]*voteFlight),
	}
}

// Snapshot returns the current forest. It is immutable and safe to read
// while the view keeps changing.
func (v *View) Snapshot() *thread.Forest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.forest
}

// Open fetches the first page of root comments. When the thread is cached
// it is restored first, the fetched page is merged into it and a failed
// fetch leaves the cached thread in place.
func (v *View) Open(ctx context.Context) error {
	restored := v.restore(ctx)
	err := v.loadRoots(ctx, "")
	if err != nil && restored {
		log.Warningf("showing cached thread of post %s: %v", v.postID, err)
		return nil
	}
	return err
}

// LoadMore fetches the next page of root comments. It reports false when
// every page has been loaded.
func (v *View) LoadMore(ctx context.Context) (bool, error) {
	v.mu.Lock()
	loaded, cursor := v.loaded, v.forest.NextCursor
	v.mu.Unlock()

	if loaded && cursor == "" {
		return false, nil
	}
	if err := v.loadRoots(ctx, cursor); err != nil {
		return true, err
	}
	return v.Snapshot().NextCursor != "", nil
}

// LoadReplies fetches the next page of replies below a comment, or the
// first page when none has been requested yet. It reports whether more
// replies remain.
func (v *View) LoadReplies(ctx context.Context, commentID string) (bool, error) {
	v.mu.Lock()
	n, ok := v.forest.Find(commentID)
	v.mu.Unlock()
	if !ok {
		return false, thread.ErrNodeNotFound
	}
	if n.Placeholder {
		return false, thread.ErrPlaceholder
	}

	if err := v.loadReplies(ctx, commentID, n.ReplyCursor); err != nil {
		return true, err
	}

	n, ok = v.Snapshot().Find(commentID)
	return ok && n.ReplyCursor != "", nil
}

func (v *View) loadReplies(ctx context.Context, commentID, cursor string) error {
	_, err, _ := v.fetches.Do("replies:"+commentID+":"+cursor, func() (any, error) {
		batch, err := v.src.ListReplies(ctx, v.postID, commentID, v.page(cursor))
		if err != nil {
			return nil, err
		}
		logDropped(v.postID, batch.Items)

		v.mu.Lock()
		next := batch.NextCursor
		if cur, ok := v.forest.Find(commentID); ok && cur.ReplyCursor != cursor {
			// another page already advanced this node
			next = cur.ReplyCursor
		}
		f, err := v.forest.MergeReplies(commentID, batch.Items, next)
		v.forest = f
		v.mu.Unlock()
		if err != nil {
			return nil, err
		}

		v.savePage(ctx, commentID, batch.Items, next)
		return nil, nil
	})
	return err
}

func (v *View) loadRoots(ctx context.Context, cursor string) error {
	_, err, _ := v.fetches.Do("roots:"+cursor, func() (any, error) {
		batch, err := v.src.ListComments(ctx, v.postID, v.page(cursor))
		if err != nil {
			return nil, err
		}
		logDropped(v.postID, batch.Items)

		v.mu.Lock()
		next := batch.NextCursor
		if v.loaded && (cursor == "" || v.forest.NextCursor != cursor) {
			// a refreshed first page or a page another fetch already passed
			next = v.forest.NextCursor
		}
		v.forest = v.forest.MergeRoots(batch.Items, next)
		v.loaded = true
		v.mu.Unlock()

		v.savePage(ctx, store.ScopeRoots, batch.Items, next)
		return nil, nil
	})
	return err
}

func (v *View) page(cursor string) source.Page {
	return source.Page{Cursor: cursor, MaxDepth: v.opts.MaxDepth, PageSize: v.opts.PageSize}
}

func logDropped(postID string, batch []thread.Record) {
	for _, r := range batch {
		if err := r.Validate(); err != nil {
			log.Warningf("dropping record: %v", err)
		} else if r.PostID != postID {
			log.Warningf("dropping record %s of post %s", r.ID, r.PostID)
		}
	}
}
