package thread

import (
	"fmt"
	"time"
)

// Record is one comment as returned by the data source.
type Record struct {
	ID              string    `json:"id"`
	PostID          string    `json:"post_id"`
	ParentCommentID string    `json:"parent_comment_id,omitempty"`
	Author          string    `json:"author"`
	Body            string    `json:"body"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	VoteScore       int       `json:"vote_score"`
	Depth           *int      `json:"depth,omitempty"` // informational only
}

// IsRoot reports whether the record declares no parent.
func (r Record) IsRoot() bool {
	return r.ParentCommentID == ""
}

// Edited reports whether the record was modified after creation.
func (r Record) Edited() bool {
	return !r.UpdatedAt.IsZero() && !r.UpdatedAt.Equal(r.CreatedAt)
}

// Validate checks the fields the engine cannot work without.
func (r Record) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: missing id", ErrMalformedRecord)
	case r.PostID == "":
		return fmt.Errorf("%w: %s: missing post_id", ErrMalformedRecord, r.ID)
	case r.Author == "":
		return fmt.Errorf("%w: %s: missing author", ErrMalformedRecord, r.ID)
	case r.CreatedAt.IsZero():
		return fmt.Errorf("%w: %s: missing created_at", ErrMalformedRecord, r.ID)
	case r.ParentCommentID == r.ID:
		return fmt.Errorf("%w: %s: comment is its own parent", ErrMalformedRecord, r.ID)
	}
	return nil
}
