package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL,
		parent_id TEXT,
		author TEXT NOT NULL,
		body TEXT NOT NULL,
		score INTEGER DEFAULT 0,
		depth INTEGER,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted INTEGER DEFAULT 0,
		user_vote INTEGER DEFAULT 0,
		seq INTEGER NOT NULL,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_comments_post_seq ON comments(post_id, seq);

	CREATE TABLE IF NOT EXISTS cursors (
		post_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		cursor TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (post_id, scope)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Comments

// SaveComments upserts comments. New rows are numbered in arrival order so
// ListComments replays them the way they were fetched; rows already cached
// keep their position.
func (s *SQLiteStore) SaveComments(ctx context.Context, comments []*Comment) error {
	if len(comments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM comments`).Scan(&seq); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO comments (id, post_id, parent_id, author, body, score, depth, created_at, updated_at, deleted, user_vote, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			score = excluded.score,
			updated_at = excluded.updated_at,
			deleted = MAX(comments.deleted, excluded.deleted),
			fetched_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range comments {
		seq++
		_, err := stmt.ExecContext(ctx, c.ID, c.PostID, nullString(c.ParentCommentID), c.Author, c.Body,
			c.VoteScore, nullInt(c.Depth), c.CreatedAt, c.UpdatedAt, boolToInt(c.Deleted), c.UserVote, seq)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetComment(ctx context.Context, id string) (*Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, post_id, parent_id, author, body, score, depth, created_at, updated_at, deleted, user_vote
		FROM comments WHERE id = ?
	`, id)

	comment, err := scanComment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return comment, err
}

func (s *SQLiteStore) ListComments(ctx context.Context, postID string) ([]*Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, parent_id, author, body, score, depth, created_at, updated_at, deleted, user_vote
		FROM comments WHERE post_id = ?
		ORDER BY seq ASC
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}

	return comments, rows.Err()
}

func (s *SQLiteStore) UpdateCommentBody(ctx context.Context, id, body string, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE comments SET body = ?, updated_at = ? WHERE id = ?`, body, updatedAt, id)
	return err
}

func (s *SQLiteStore) UpdateCommentScore(ctx context.Context, id string, score, userVote int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE comments SET score = ?, user_vote = ? WHERE id = ?`, score, userVote, id)
	return err
}

func (s *SQLiteStore) MarkCommentDeleted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE comments SET deleted = 1 WHERE id = ?`, id)
	return err
}

// Cursors

func (s *SQLiteStore) SaveCursor(ctx context.Context, postID, scope, cursor string) error {
	if cursor == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM cursors WHERE post_id = ? AND scope = ?`, postID, scope)
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cursors (post_id, scope, cursor, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(post_id, scope) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at
	`, postID, scope, cursor, time.Now().UTC())
	return err
}

func (s *SQLiteStore) ListCursors(ctx context.Context, postID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT scope, cursor FROM cursors WHERE post_id = ?`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cursors := make(map[string]string)
	for rows.Next() {
		var scope, cursor string
		if err := rows.Scan(&scope, &cursor); err != nil {
			return nil, err
		}
		cursors[scope] = cursor
	}

	return cursors, rows.Err()
}

// LoadSnapshot reads everything cached for a post. It returns nil when the
// post has never been cached.
func LoadSnapshot(ctx context.Context, s Store, postID string) (*Snapshot, error) {
	comments, err := s.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	cursors, err := s.ListCursors(ctx, postID)
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 && len(cursors) == 0 {
		return nil, nil
	}

	return &Snapshot{PostID: postID, Comments: comments, Cursors: cursors}, nil
}

// Helpers

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComment(row scanner) (*Comment, error) {
	var comment Comment
	var parentID sql.NullString
	var depth sql.NullInt64
	var deleted int

	err := row.Scan(&comment.ID, &comment.PostID, &parentID, &comment.Author, &comment.Body,
		&comment.VoteScore, &depth, &comment.CreatedAt, &comment.UpdatedAt, &deleted, &comment.UserVote)
	if err != nil {
		return nil, err
	}

	comment.ParentCommentID = parentID.String
	comment.Deleted = deleted == 1
	if depth.Valid {
		d := int(depth.Int64)
		comment.Depth = &d
	}

	return &comment, nil
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
