package network

import (
	"strings"
	"testing"

	"github.com/nexus-arch/coresim/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestParseAndRTTSymmetric(t *testing.T) {
	top, err := Parse(strings.NewReader("core0 core1 42\ncore1 core2 10\n"), logging.Nop())
	require.NoError(t, err)
	require.EqualValues(t, 42, top.RTT("core0", "core1"))
	require.EqualValues(t, 42, top.RTT("core1", "core0"))
	require.EqualValues(t, 2, top.NumEdges())
}

func TestRTTSameEndpointIsZero(t *testing.T) {
	top := New(logging.Nop())
	require.EqualValues(t, 0, top.RTT("core0", "core0"))
}

func TestMissingEdgeReturnsZero(t *testing.T) {
	top, err := Parse(strings.NewReader("core0 core1 5\n"), logging.Nop())
	require.NoError(t, err)
	require.EqualValues(t, 0, top.RTT("core0", "coreX"))
}

func TestParseRejectsMalformedLine(t *testing.T) {
	_, err := Parse(strings.NewReader("core0 core1\n"), logging.Nop())
	require.Error(t, err)
}

func TestParseIgnoresCommentsAndBlankLines(t *testing.T) {
	top, err := Parse(strings.NewReader("# topology\n\ncore0 core1 3\n"), logging.Nop())
	require.NoError(t, err)
	require.EqualValues(t, 1, top.NumEdges())
}
