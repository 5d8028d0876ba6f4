package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minutes/internal/services"
)

func TestSeedStartsAtIndexZero(t *testing.T) {
	l := New("A")
	assert.Equal(t, "A", l.Head())
	assert.Equal(t, 0, l.HeadIndex())
	assert.Equal(t, 1, l.Len())
}

func TestCommitEditAppendsAndMovesHead(t *testing.T) {
	l := New("A")
	idx, err := l.CommitEdit("B")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "B", l.Head())
	assert.Equal(t, []string{"A", "B"}, l.Entries())
}

func TestCommitAfterRewindTruncatesForwardHistory(t *testing.T) {
	l := New("A")
	_, err := l.CommitEdit("B")
	require.NoError(t, err)
	_, err = l.CommitEdit("C")
	require.NoError(t, err)

	prev, err := l.Rewind()
	require.NoError(t, err)
	assert.Equal(t, "B", prev)

	_, err = l.CommitEdit("D")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D"}, l.Entries())
	assert.Equal(t, 2, l.HeadIndex())
	assert.Equal(t, "D", l.Head())
}

func TestTruncationDoesNotAliasEarlierEntries(t *testing.T) {
	l := New("A")
	_, _ = l.CommitEdit("B")
	_, _ = l.CommitEdit("C")
	snapshot := l.Entries()
	_, _ = l.Rewind()
	_, _ = l.Rewind()
	_, _ = l.CommitEdit("X")
	assert.Equal(t, []string{"A", "B", "C"}, snapshot)
	assert.Equal(t, []string{"A", "X"}, l.Entries())
}

func TestRewindAtZeroIsNoOp(t *testing.T) {
	l := New("A")
	_, _ = l.CommitEdit("B")
	_, err := l.Rewind()
	require.NoError(t, err)

	head, err := l.Rewind()
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrNoOp))
	assert.Equal(t, "A", head)
	assert.Equal(t, 0, l.HeadIndex())
	assert.Equal(t, 2, l.Len())
}

func TestUnseededLedger(t *testing.T) {
	var l Ledger
	assert.Equal(t, "", l.Head())
	_, err := l.CommitEdit("x")
	assert.ErrorIs(t, err, ErrNotSeeded)
	_, err = l.Rewind()
	assert.ErrorIs(t, err, ErrNotSeeded)
}

func TestSeedResetsHistory(t *testing.T) {
	l := New("A")
	_, _ = l.CommitEdit("B")
	l.Seed("Z")
	assert.Equal(t, []string{"Z"}, l.Entries())
	assert.Equal(t, 0, l.HeadIndex())
}

func TestDraftCommitsOnlyChangedText(t *testing.T) {
	l := New("A")
	d := l.NewDraft()

	committed, err := d.Commit()
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, 1, l.Len())

	d.Set("A plus")
	d.Set("A plus more")
	assert.Equal(t, 1, l.Len(), "buffered edits must not reach the ledger")
	assert.True(t, d.Dirty())

	committed, err = d.Commit()
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, []string{"A", "A plus more"}, l.Entries())

	committed, err = d.Commit()
	require.NoError(t, err)
	assert.False(t, committed, "second commit of the same text is a no-op")
	assert.Equal(t, 2, l.Len())
}

func TestDraftRevertedToBaseIsNotCommitted(t *testing.T) {
	l := New("A")
	d := l.NewDraft()
	d.Set("changed")
	d.Set("A")
	committed, err := d.Commit()
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, 1, l.Len())
}

func TestDraftDiscardResyncsWithHead(t *testing.T) {
	l := New("A")
	d := l.NewDraft()
	d.Set("scratch")
	_, _ = l.CommitEdit("B")
	d.Discard()
	assert.Equal(t, "B", d.Text())
	assert.False(t, d.Dirty())
}
