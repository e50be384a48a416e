package thread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(id, parent string) Record {
	return Record{
		ID:              id,
		PostID:          "p1",
		ParentCommentID: parent,
		Author:          "alice",
		Body:            "body of " + id,
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
}

// shape renders the forest as id(children...) strings for comparison.
func shape(f *Forest) []string {
	var render func(n *Node) string
	render = func(n *Node) string {
		s := n.ID
		if len(n.Children) > 0 {
			s += "("
			for i, c := range n.Children {
				if i > 0 {
					s += " "
				}
				s += render(c)
			}
			s += ")"
		}
		return s
	}
	out := []string{}
	for _, r := range f.Roots {
		out = append(out, render(r))
	}
	return out
}

func TestAssembleScenario(t *testing.T) {
	f := Assemble([]Record{rec("c1", ""), rec("c2", "c1"), rec("c3", "zzz")})

	assert.Equal(t, []string{"c1(c2)", "c3"}, shape(f))
	assert.Equal(t, "p1", f.PostID)
	assert.Equal(t, 3, f.Len())
	assert.Empty(t, f.NextCursor)
}

func TestAssembleIdempotent(t *testing.T) {
	batch := []Record{rec("a", ""), rec("b", "a"), rec("c", "b"), rec("d", ""), rec("e", "a")}

	first := Assemble(batch)
	second := Assemble(batch)

	assert.Equal(t, shape(first), shape(second))
	assert.Equal(t, []string{"a(b(c) e)", "d"}, shape(first))
}

func TestAssembleChildBeforeParent(t *testing.T) {
	forward := Assemble([]Record{rec("c1", ""), rec("c2", "c1")})
	reversed := Assemble([]Record{rec("c2", "c1"), rec("c1", "")})

	assert.Equal(t, shape(forward), shape(reversed))
	assert.Equal(t, []string{"c1(c2)"}, shape(reversed))
}

func TestAssembleOrphanPromotion(t *testing.T) {
	f := Assemble([]Record{rec("r1", "missing"), rec("r2", "r1")})

	assert.Equal(t, []string{"r1(r2)"}, shape(f))
	n, ok := f.Find("r1")
	require.True(t, ok)
	assert.Equal(t, "missing", n.ParentCommentID, "record keeps its declared parent")
}

func TestAssembleDropsMalformedRecords(t *testing.T) {
	noAuthor := rec("bad", "")
	noAuthor.Author = ""
	noID := rec("", "")
	otherPost := rec("x", "")
	otherPost.PostID = "p2"

	f := Assemble([]Record{noID, rec("c1", ""), noAuthor, otherPost, rec("c2", "bad")})

	assert.Equal(t, []string{"c1", "c2"}, shape(f))
	assert.False(t, f.Has("bad"))
	assert.False(t, f.Has("x"))
}

func TestAssembleDuplicateIDsKeepFirst(t *testing.T) {
	dup := rec("c1", "")
	dup.Body = "second copy"

	f := Assemble([]Record{rec("c1", ""), dup})

	require.Equal(t, 1, f.Len())
	n, _ := f.Find("c1")
	assert.Equal(t, "body of c1", n.Body)
}

func TestAssembleBreaksCycles(t *testing.T) {
	f := Assemble([]Record{rec("a", "b"), rec("b", "a")})

	assert.Equal(t, []string{"b(a)"}, shape(f))
	assert.Equal(t, 2, f.Len())
}

func TestAssembleEmpty(t *testing.T) {
	f := Assemble(nil)

	assert.Empty(t, f.Roots)
	assert.Equal(t, 0, f.Len())
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Record)
		wantErr bool
	}{
		{"valid", func(r *Record) {}, false},
		{"missing id", func(r *Record) { r.ID = "" }, true},
		{"missing post", func(r *Record) { r.PostID = "" }, true},
		{"missing author", func(r *Record) { r.Author = "" }, true},
		{"missing created_at", func(r *Record) { r.CreatedAt = time.Time{} }, true},
		{"self parent", func(r *Record) { r.ParentCommentID = r.ID }, true},
		{"empty body is allowed", func(r *Record) { r.Body = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rec("c1", "")
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRecord)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecordEdited(t *testing.T) {
	r := rec("c1", "")
	assert.False(t, r.Edited())

	r.UpdatedAt = t0.Add(time.Minute)
	assert.True(t, r.Edited())
}
