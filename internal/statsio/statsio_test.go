package statsio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSampleTree() *Tree {
	t := NewTree()
	t.Path("core0", "l1", "hits").Add(10)
	t.Path("core0", "l1", "misses").Add(2)
	t.Path("core1", "l1", "hits").Add(5)
	return t
}

func TestSumRollsUpChildren(t *testing.T) {
	tree := buildSampleTree()
	l1 := tree.Path("core0", "l1")
	require.EqualValues(t, 12, l1.Sum())
}

func TestDumpTextIsIndentedAndDeterministicPerNode(t *testing.T) {
	tree := buildSampleTree()
	text := tree.DumpText()
	require.True(t, strings.Contains(text, "hits: 10"))
	require.True(t, strings.Contains(text, "misses: 2"))
	require.Equal(t, "core0: 0\n  l1: 0\n    hits: 10\n    misses: 2\ncore1: 0\n  l1: 0\n    hits: 5\n", text)
}

func TestBinaryRoundTrip(t *testing.T) {
	tree := buildSampleTree()
	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, tree))

	got, err := ReadBinary(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 10, got["core0.l1.hits"])
	require.EqualValues(t, 2, got["core0.l1.misses"])
	require.EqualValues(t, 5, got["core1.l1.hits"])
}

func TestArchiveRoundTrip(t *testing.T) {
	tree := buildSampleTree()
	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, tree))

	text, err := ReadArchive(&buf)
	require.NoError(t, err)
	require.Equal(t, tree.DumpText(), text)
}
