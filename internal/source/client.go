// Package source talks to the discussion REST API that serves posts,
// comments and votes.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alphabot-ai/threadview/internal/thread"
)

// Page is the set of paging hints sent with list requests.
type Page struct {
	Cursor   string
	MaxDepth int // 0 lets the server decide
	PageSize int // replies_per_page; 0 lets the server decide
}

// Batch is one page of comment records.
type Batch struct {
	Items      []thread.Record
	NextCursor string
}

type wireBatch struct {
	Items      []wireRecord `json:"items"`
	NextCursor string       `json:"next_cursor"`
}

func (w *wireBatch) batch() *Batch {
	b := &Batch{Items: make([]thread.Record, len(w.Items)), NextCursor: w.NextCursor}
	for i, r := range w.Items {
		b.Items[i] = r.record()
	}
	return b
}

type wireRecord struct {
	thread.Record
	CreatedAt timestamp `json:"created_at"`
	UpdatedAt timestamp `json:"updated_at"`
}

func (w *wireRecord) record() thread.Record {
	r := w.Record
	r.CreatedAt = time.Time(w.CreatedAt)
	r.UpdatedAt = time.Time(w.UpdatedAt)
	return r
}

// timestamp accepts RFC 3339 as well as ISO 8601 without an offset, which
// is read as UTC.
type timestamp time.Time

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			*t = timestamp(v.UTC())
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// Post is a discussion post, the subject of a comment thread.
type Post struct {
	ID        string
	Title     string
	Body      string
	Author    string
	CreatedAt time.Time
	UpdatedAt time.Time
	VoteScore int
}

// PostPage is one page of posts, oldest first.
type PostPage struct {
	Items      []Post
	NextCursor string
}

type wirePost struct {
	ID        string    `json:"id"`
	Title     *string   `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	CreatedAt timestamp `json:"created_at"`
	UpdatedAt timestamp `json:"updated_at"`
	VoteScore int       `json:"vote_score"`
}

func (w *wirePost) post() Post {
	p := Post{
		ID:        w.ID,
		Body:      w.Body,
		Author:    w.Author,
		CreatedAt: time.Time(w.CreatedAt),
		UpdatedAt: time.Time(w.UpdatedAt),
		VoteScore: w.VoteScore,
	}
	if w.Title != nil {
		p.Title = *w.Title
	}
	return p
}

type CreateCommentRequest struct {
	Author          string `json:"author"`
	Body            string `json:"body"`
	ParentCommentID string `json:"parent_comment_id,omitempty"`
}

type UpdateCommentRequest struct {
	Body string `json:"body"`
}

type VoteRequest struct {
	Username string `json:"username"`
	Value    int    `json:"value"` // -1, 0 or 1
}

type VoteResponse struct {
	ObjectID   string `json:"object_id"`
	ObjectType string `json:"object_type"`
	VoteScore  int    `json:"vote_score"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
}

// Client is an HTTP client for the discussion API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ListComments handles GET /posts/{post}/comments
func (c *Client) ListComments(ctx context.Context, postID string, page Page) (*Batch, error) {
	var batch wireBatch
	path := "/posts/" + url.PathEscape(postID) + "/comments" + page.query()
	if err := c.do(ctx, http.MethodGet, path, nil, &batch); err != nil {
		return nil, err
	}
	return batch.batch(), nil
}

// ListReplies handles GET /posts/{post}/comments/{id}/replies
func (c *Client) ListReplies(ctx context.Context, postID, commentID string, page Page) (*Batch, error) {
	var batch wireBatch
	path := commentPath(postID, commentID) + "/replies" + page.query()
	if err := c.do(ctx, http.MethodGet, path, nil, &batch); err != nil {
		return nil, err
	}
	return batch.batch(), nil
}

// CreateComment handles POST /posts/{post}/comments
func (c *Client) CreateComment(ctx context.Context, postID string, req CreateCommentRequest) (*thread.Record, error) {
	var rec wireRecord
	if err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/comments", req, &rec); err != nil {
		return nil, err
	}
	r := rec.record()
	return &r, nil
}

// UpdateComment handles PATCH /posts/{post}/comments/{id}
func (c *Client) UpdateComment(ctx context.Context, postID, commentID, body string) (*thread.Record, error) {
	var rec wireRecord
	if err := c.do(ctx, http.MethodPatch, commentPath(postID, commentID), UpdateCommentRequest{Body: body}, &rec); err != nil {
		return nil, err
	}
	r := rec.record()
	return &r, nil
}

// DeleteComment handles DELETE /posts/{post}/comments/{id}
func (c *Client) DeleteComment(ctx context.Context, postID, commentID string) error {
	return c.do(ctx, http.MethodDelete, commentPath(postID, commentID), nil, nil)
}

// VoteComment handles POST /posts/{post}/comments/{id}/vote and returns the
// authoritative score.
func (c *Client) VoteComment(ctx context.Context, postID, commentID, username string, value int) (int, error) {
	var resp VoteResponse
	req := VoteRequest{Username: username, Value: value}
	if err := c.do(ctx, http.MethodPost, commentPath(postID, commentID)+"/vote", req, &resp); err != nil {
		return 0, err
	}
	return resp.VoteScore, nil
}

// ListPosts handles GET /posts. An empty cursor asks for the first page.
func (c *Client) ListPosts(ctx context.Context, cursor string) (*PostPage, error) {
	var resp struct {
		Items      []wirePost `json:"items"`
		NextCursor string     `json:"next_cursor"`
	}
	path := "/posts"
	if cursor != "" {
		path += "?" + url.Values{"cursor": {cursor}}.Encode()
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	page := &PostPage{Items: make([]Post, len(resp.Items)), NextCursor: resp.NextCursor}
	for i, p := range resp.Items {
		page.Items[i] = p.post()
	}
	return page, nil
}

// GetPost handles GET /posts/{post}
func (c *Client) GetPost(ctx context.Context, postID string) (*Post, error) {
	var wp wirePost
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(postID), nil, &wp); err != nil {
		return nil, err
	}
	p := wp.post()
	return &p, nil
}

// VotePost handles POST /posts/{post}/vote and returns the authoritative
// score.
func (c *Client) VotePost(ctx context.Context, postID, username string, value int) (int, error) {
	var resp VoteResponse
	req := VoteRequest{Username: username, Value: value}
	if err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/vote", req, &resp); err != nil {
		return 0, err
	}
	return resp.VoteScore, nil
}

func commentPath(postID, commentID string) string {
	return "/posts/" + url.PathEscape(postID) + "/comments/" + url.PathEscape(commentID)
}

func (p Page) query() string {
	q := url.Values{}
	if p.Cursor != "" {
		q.Set("cursor", p.Cursor)
	}
	if p.MaxDepth > 0 {
		q.Set("max_depth", strconv.Itoa(p.MaxDepth))
	}
	if p.PageSize > 0 {
		q.Set("replies_per_page", strconv.Itoa(p.PageSize))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// decodeError reads a FastAPI style {"detail": ...} body.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Detail: "HTTP " + strconv.Itoa(resp.StatusCode)}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &payload) != nil || len(payload.Detail) == 0 || string(payload.Detail) == "null" {
		return apiErr
	}

	var detail string
	if json.Unmarshal(payload.Detail, &detail) == nil {
		apiErr.Detail = detail
	} else {
		apiErr.Detail = string(payload.Detail)
	}
	return apiErr
}
