package chipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeContains(t *testing.T) {
	outer := NewRange(0, 10)
	inner := NewRange(2, 5)
	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
}

func TestLineIndexLocationAt(t *testing.T) {
	src := []byte("stateless\nstate: ;\npacket: pkt_0;\n")
	li := NewLineIndex(src)

	cases := []struct {
		cursor       int
		wantLine     int
		wantColumn   int
	}{
		{0, 1, 1},
		{9, 1, 10},
		{10, 2, 1},
		{19, 3, 1},
	}
	for _, c := range cases {
		loc := li.LocationAt(c.cursor)
		assert.Equal(t, c.wantLine, loc.Line, "cursor %d", c.cursor)
		assert.Equal(t, c.wantColumn, loc.Column, "cursor %d", c.cursor)
	}
}

func TestLineIndexSpan(t *testing.T) {
	src := []byte("abc\ndef")
	li := NewLineIndex(src)
	span := li.Span(NewRange(4, 7))
	require.Equal(t, 2, span.Start.Line)
	require.Equal(t, 1, span.Start.Column)
	require.Equal(t, 2, span.End.Line)
	require.Equal(t, 4, span.End.Column)
}
