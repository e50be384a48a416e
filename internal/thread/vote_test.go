package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(id string, score int) Record {
	r := rec(id, "")
	r.VoteScore = score
	return r
}

func TestNextVote(t *testing.T) {
	tests := []struct {
		current, dir, want int
	}{
		{0, 1, 1},
		{0, -1, -1},
		{1, 1, 0},
		{-1, -1, 0},
		{1, -1, -1},
		{-1, 1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextVote(tt.current, tt.dir), "NextVote(%d, %d)", tt.current, tt.dir)
	}
}

func TestVoteUpTwiceUnvotes(t *testing.T) {
	f := Assemble([]Record{scored("c1", 5)})

	f, first, err := f.ApplyVote("c1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Vote)
	assert.Equal(t, 6, mustFind(t, f, "c1").DisplayScore())

	f, second, err := f.ApplyVote("c1", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Vote)

	n := mustFind(t, f, "c1")
	assert.Equal(t, VoteState{Current: 0, Delta: 0}, n.Vote)
	assert.Equal(t, 5, n.DisplayScore())
}

func TestVoteUpThenDownSwings(t *testing.T) {
	f := Assemble([]Record{scored("c1", 5)})

	f, _, err := f.ApplyVote("c1", 1)
	require.NoError(t, err)
	f, tok, err := f.ApplyVote("c1", -1)
	require.NoError(t, err)

	n := mustFind(t, f, "c1")
	assert.Equal(t, -1, tok.Vote)
	assert.Equal(t, VoteState{Current: -1, Delta: -1}, n.Vote)
	assert.Equal(t, 4, n.DisplayScore())
}

func TestVoteRollbackRestoresPreClickState(t *testing.T) {
	f := Assemble([]Record{scored("c1", 5)})

	f, up, err := f.ApplyVote("c1", 1)
	require.NoError(t, err)
	f, err = f.Resolve(up, CommittedScore(6))
	require.NoError(t, err)

	f, down, err := f.ApplyVote("c1", -1)
	require.NoError(t, err)
	require.Equal(t, 4, mustFind(t, f, "c1").DisplayScore())

	f, err = f.Resolve(down, Failed(errNetwork))
	require.Error(t, err)

	n := mustFind(t, f, "c1")
	assert.Equal(t, VoteState{Current: 1, Delta: 0}, n.Vote)
	assert.Equal(t, 6, n.DisplayScore())
}

func TestVoteCommitAcceptsServerScore(t *testing.T) {
	f := Assemble([]Record{scored("c1", 5)})

	f, tok, err := f.ApplyVote("c1", 1)
	require.NoError(t, err)

	// someone else voted meanwhile
	f, err = f.Resolve(tok, CommittedScore(9))
	require.NoError(t, err)

	n := mustFind(t, f, "c1")
	assert.Equal(t, 9, n.VoteScore)
	assert.Equal(t, 0, n.Vote.Delta)
	assert.Equal(t, 1, n.Vote.Current)
	assert.Equal(t, 9, n.DisplayScore())
}

func TestVoteCommitWithoutScoreFoldsDelta(t *testing.T) {
	f := Assemble([]Record{scored("c1", 5)})

	f, tok, err := f.ApplyVote("c1", -1)
	require.NoError(t, err)
	f, err = f.Resolve(tok, CommittedUnknown())
	require.NoError(t, err)

	n := mustFind(t, f, "c1")
	assert.Equal(t, 4, n.VoteScore)
	assert.Equal(t, VoteState{Current: -1}, n.Vote)
}

func TestVoteStaleResolutionOutOfOrder(t *testing.T) {
	f := Assemble([]Record{scored("c1", 5)})

	f, a, err := f.ApplyVote("c1", 1)
	require.NoError(t, err)
	f, b, err := f.ApplyVote("c1", -1)
	require.NoError(t, err)

	// B resolves first, then the stale A.
	f, err = f.Resolve(b, CommittedScore(4))
	require.NoError(t, err)
	f, err = f.Resolve(a, CommittedScore(6))
	require.NoError(t, err)

	n := mustFind(t, f, "c1")
	assert.Equal(t, 4, n.DisplayScore())
	assert.Equal(t, -1, n.Vote.Current)

	// A failing late must not roll anything back either.
	after, err := f.Resolve(a, Failed(errNetwork))
	require.NoError(t, err)
	assert.Equal(t, 4, mustFind(t, after, "c1").DisplayScore())
}

func TestVoteSupersededFailureIgnored(t *testing.T) {
	f := Assemble([]Record{scored("c1", 0)})

	f, a, err := f.ApplyVote("c1", 1)
	require.NoError(t, err)
	f, b, err := f.ApplyVote("c1", 1)
	require.NoError(t, err)

	f, err = f.Resolve(a, Failed(errNetwork))
	require.NoError(t, err)
	assert.Equal(t, VoteState{}, mustFind(t, f, "c1").Vote)

	f, err = f.Resolve(b, CommittedScore(0))
	require.NoError(t, err)
	assert.Equal(t, 0, f.PendingCount())
}

func TestVoteValidation(t *testing.T) {
	f := Assemble([]Record{rec("c1", "")})

	_, _, err := f.ApplyVote("c1", 2)
	assert.ErrorIs(t, err, ErrInvalidDirection)

	_, _, err = f.ApplyVote("c1", 0)
	assert.ErrorIs(t, err, ErrInvalidDirection)

	_, _, err = f.ApplyVote("nope", 1)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestWithVote(t *testing.T) {
	f := Assemble([]Record{scored("c1", 3)})

	f, err := f.WithVote("c1", 1)
	require.NoError(t, err)
	n := mustFind(t, f, "c1")
	assert.Equal(t, 1, n.Vote.Current)
	assert.Equal(t, 3, n.DisplayScore())

	// clicking up again un-votes
	f, tok, err := f.ApplyVote("c1", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, tok.Vote)
	assert.Equal(t, 2, mustFind(t, f, "c1").DisplayScore())

	same, err := f.WithVote("c1", -1)
	require.NoError(t, err)
	assert.Same(t, f, same, "pending vote is not overwritten")

	_, err = f.WithVote("c1", 3)
	assert.ErrorIs(t, err, ErrInvalidDirection)
}
