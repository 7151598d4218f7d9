package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace only", " \n\t ", 0},
		{"single", "hello", 1},
		{"runs of whitespace", "  the quick\n\nbrown\tfox  ", 4},
		{"unicode", "héllo wörld 世界", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountWords(tt.text))
		})
	}
}

func TestCountChars(t *testing.T) {
	assert.Equal(t, 0, CountChars(""))
	assert.Equal(t, 5, CountChars("hello"))
	assert.Equal(t, 8, CountChars("Hello 世界"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))

	long := strings.Repeat("a", 30001)
	assert.Len(t, Truncate(long, 30000), 30000)

	multi := strings.Repeat("世", 10)
	got := Truncate(multi, 4)
	assert.Equal(t, 4, CountChars(got))
	assert.Equal(t, strings.Repeat("世", 4), got)
}
