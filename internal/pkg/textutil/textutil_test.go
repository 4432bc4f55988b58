package textutil_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/pkg/textutil"
)

func TestHashString(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", textutil.HashString("hello"))
	assert.Len(t, textutil.HashString(""), 32)
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "短于上限", input: "abc", maxLen: 5, want: "abc"},
		{name: "ASCII 截断", input: "abcdef", maxLen: 3, want: "abc"},
		{name: "中文截断", input: "你好世界", maxLen: 2, want: "你好"},
		{name: "零长度", input: "abc", maxLen: 0, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textutil.TruncateRunes(tt.input, tt.maxLen))
		})
	}
}

func TestOffsets(t *testing.T) {
	s := "héllo wörld"
	assert.Equal(t, 0, textutil.RuneToByteOffset(s, 0))
	assert.Equal(t, 3, textutil.RuneToByteOffset(s, 2))
	assert.Equal(t, len(s), textutil.RuneToByteOffset(s, 100))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c", textutil.Normalize("  a\t\nb   c "))
	assert.Equal(t, "fi", textutil.Normalize("ﬁ"))
}

func TestTokenize(t *testing.T) {
	tokens := textutil.Tokenize("Hello, World 42!")
	require.Len(t, tokens, 3)
	assert.Equal(t, "hello", tokens[0].Text)
	assert.Equal(t, textutil.Span{Start: 0, End: 5}, tokens[0].Span)
	assert.Equal(t, "world", tokens[1].Text)
	assert.Equal(t, "42", tokens[2].Text)
	assert.Equal(t, textutil.Span{Start: 13, End: 15}, tokens[2].Span)
}

func TestSplitSentences(t *testing.T) {
	s := "First one. Second one!  Version 1.5 is out?\n\nLast line"
	spans := textutil.SplitSentences(s)
	var got []string
	for _, sp := range spans {
		got = append(got, s[sp.Start:sp.End])
	}
	assert.Equal(t, []string{"First one.", "Second one!", "Version 1.5 is out?", "Last line"}, got)

	assert.Empty(t, textutil.SplitSentences("   "))
}

func TestSlidingWindows(t *testing.T) {
	text := strings.Repeat("a", 1000)
	windows := textutil.SlidingWindows(text, 500, 450)
	require.Len(t, windows, 3)
	assert.Equal(t, 0, windows[0].Start)
	assert.Equal(t, 500, windows[0].End)
	assert.Equal(t, 450, windows[1].Start)
	assert.Equal(t, 950, windows[1].End)
	assert.Equal(t, 900, windows[2].Start)
	assert.Equal(t, 1000, windows[2].End)
	assert.Len(t, windows[2].Text, 100)

	assert.Nil(t, textutil.SlidingWindows("abc", 0, 1))
}

func TestSplitRunes(t *testing.T) {
	segments := textutil.SplitRunes("ab你好cd", 3)
	require.Len(t, segments, 2)
	assert.Equal(t, "ab你", segments[0].Text)
	assert.Equal(t, 0, segments[0].Offset)
	assert.Equal(t, "好cd", segments[1].Text)
	assert.Equal(t, 5, segments[1].Offset)

	assert.Nil(t, textutil.SplitRunes("", 3))
}

func TestSquaredL2Distance(t *testing.T) {
	assert.InDelta(t, 25.0, textutil.SquaredL2Distance([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.True(t, math.IsInf(textutil.SquaredL2Distance([]float32{1}, nil), 1))
	assert.InDelta(t, 1.0, textutil.SimilarityFromDistance(0), 1e-9)
	assert.InDelta(t, 0.5, textutil.SimilarityFromDistance(1), 1e-9)
}
