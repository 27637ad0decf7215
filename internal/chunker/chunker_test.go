package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedSplit(t *testing.T) {
	c, err := New(StrategyFixed, 10, 2)
	require.NoError(t, err)

	segs, err := c.Split("abcdefghijklmnopqrstuvwxyz")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(segs), 3)
	require.Equal(t, Segment{Text: "abcdefghij", Offset: 0}, segs[0])
	require.Equal(t, Segment{Text: "ijklmnopqr", Offset: 8}, segs[1])
}

func TestFixedSplitSkipsLeadingWhitespaceInOffset(t *testing.T) {
	segs, err := Fixed{Size: 6, Overlap: 0}.Split("   abc   def")
	require.NoError(t, err)
	require.Equal(t, []Segment{{Text: "abc", Offset: 3}, {Text: "def", Offset: 9}}, segs)
}

func TestFixedSplitEmpty(t *testing.T) {
	segs, err := Fixed{Size: 10, Overlap: 0}.Split("   ")
	require.NoError(t, err)
	require.Empty(t, segs)
}

func TestRecursiveSplitOffsets(t *testing.T) {
	text := strings.Repeat("alpha beta gamma. ", 20) + "\n\n" + strings.Repeat("delta epsilon. ", 20)
	c, err := New(StrategyRecursive, 80, 20)
	require.NoError(t, err)

	segs, err := c.Split(text)
	require.NoError(t, err)
	require.Greater(t, len(segs), 1)
	runes := []rune(text)
	for _, s := range segs {
		require.LessOrEqual(t, len([]rune(s.Text)), 80)
		got := string(runes[s.Offset : s.Offset+len([]rune(s.Text))])
		require.Equal(t, s.Text, got)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(StrategyFixed, 0, 0)
	require.Error(t, err)
	_, err = New(StrategyFixed, 10, 10)
	require.Error(t, err)
	_, err = New("semantic", 10, 1)
	require.Error(t, err)
}
