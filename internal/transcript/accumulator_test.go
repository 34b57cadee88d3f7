package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitsJoinWithSingleSpaceInOrder(t *testing.T) {
	t.Parallel()

	var a Accumulator
	a.SetPartial("hel")
	a.Commit("hello")
	a.SetPartial("wor")
	a.SetPartial("worl")
	a.Commit("world")
	a.SetPartial("again")

	require.Equal(t, "hello world", a.Text())
	require.Equal(t, "again", a.Partial())
}

func TestPartialReplacesNeverAppends(t *testing.T) {
	t.Parallel()

	var a Accumulator
	a.SetPartial("a")
	a.SetPartial("ab")
	a.SetPartial("abc")

	require.Equal(t, "abc", a.Partial())
	require.Empty(t, a.Text())
}

func TestCommitClearsPartial(t *testing.T) {
	t.Parallel()

	var a Accumulator
	a.SetPartial("draft")
	require.True(t, a.Commit("final"))
	require.Empty(t, a.Partial())
}

func TestCommitSkipsWhitespaceOnlySegments(t *testing.T) {
	t.Parallel()

	var a Accumulator
	require.False(t, a.Commit("  "))
	a.Commit("one")
	require.False(t, a.Commit(""))
	a.Commit("two")

	require.Equal(t, "one two", a.Text())
}

func TestSegmentsAndReset(t *testing.T) {
	t.Parallel()

	var a Accumulator
	a.Commit("one")
	a.SetPartial("tw")

	require.Equal(t, []Segment{
		{Text: "one", IsFinal: true},
		{Text: "tw", IsFinal: false},
	}, a.Segments())

	a.Reset()
	require.Empty(t, a.Text())
	require.Empty(t, a.Partial())
	require.Empty(t, a.Segments())
}
