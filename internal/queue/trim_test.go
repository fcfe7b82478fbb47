package queue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrim_ShorterThanMaxUnchanged(t *testing.T) {
	assert.Equal(t, "hello", trim("hello", 10))
}

func TestTrim_TruncatesWithEllipsis(t *testing.T) {
	s := strings.Repeat("a", 10)
	got := trim(s, 5)
	assert.Equal(t, []rune(got)[len([]rune(got))-1], []rune(ellipsis)[0])
	assert.Len(t, []rune(got), 5)
}

func TestTrim_ExactLengthUnchanged(t *testing.T) {
	s := strings.Repeat("b", 5)
	assert.Equal(t, s, trim(s, 5))
}

func TestTrimPtr_ReturnsPointerToTrimmedValue(t *testing.T) {
	p := trimPtr("hello world", 5)
	assert.NotNil(t, p)
	assert.Len(t, []rune(*p), 5)
}
