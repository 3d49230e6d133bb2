package console

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{name: "simple", line: "show nodes", want: []string{"show", "nodes"}},
		{name: "extra whitespace", line: "  show \t node   n1  ", want: []string{"show", "node", "n1"}},
		{name: "nul separated", line: "show\x00jobs", want: []string{"show", "jobs"}},
		{name: "empty", line: "", want: []string{}},
		{name: "blank", line: "   ", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words, err := NewTokenizer(0).Tokenize(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, words)
		})
	}
}

func TestTokenizeRepeat(t *testing.T) {
	tok := NewTokenizer(0)

	words, err := tok.Tokenize(RepeatMarker)
	require.NoError(t, err)
	assert.Empty(t, words)

	_, err = tok.Tokenize("show  job 5")
	require.NoError(t, err)

	words, err = tok.Tokenize(RepeatMarker)
	require.NoError(t, err)
	assert.Equal(t, []string{"show", "job", "5"}, words)

	last, ok := tok.Last()
	assert.True(t, ok)
	assert.Equal(t, "show  job 5", last)
}

func TestTokenizeWordLimit(t *testing.T) {
	tok := NewTokenizer(3)

	_, err := tok.Tokenize("a b c")
	require.NoError(t, err)

	_, err = tok.Tokenize("a b c d")
	require.ErrorIs(t, err, ErrTooManyWords)

	// the oversized line is still what !! replays
	_, err = tok.Tokenize(RepeatMarker)
	assert.ErrorIs(t, err, ErrTooManyWords)
}

func TestCheck(t *testing.T) {
	tok := NewTokenizer(MaxInputFields)
	assert.NoError(t, tok.Check(strings.Fields(strings.Repeat("x ", MaxInputFields))))
	assert.ErrorIs(t, tok.Check(strings.Fields(strings.Repeat("x ", MaxInputFields+1))), ErrTooManyWords)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 7, ExitCode(ErrTooManyWords))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
}
