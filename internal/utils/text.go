package utils

import (
	"strings"
	"unicode/utf8"
)

// CountWords returns the number of maximal whitespace-delimited tokens in text.
// Empty or whitespace-only text has zero words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// CountChars returns the length of text in Unicode code points.
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// Truncate returns at most the first limit code points of text. It never splits
// a multi-byte sequence.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}
