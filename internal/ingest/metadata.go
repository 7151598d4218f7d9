package ingest

import (
	"mime"
	"path/filepath"
	"strings"
	"time"

	"gwi.com/doc-insights/internal/store"
	"gwi.com/doc-insights/internal/utils"
)

const defaultMIMEType = "text/plain"

var extensionTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
	".pdf":  "application/pdf",
	".html": "text/html",
	".htm":  "text/html",
}

// ExtractMetadata builds the metadata record for an uploaded document from its
// file attributes and the text read from it.
func ExtractMetadata(name string, size int64, mimeType string, lastModified time.Time, text string) store.DocumentMetadata {
	if size < 0 {
		size = 0
	}
	return store.DocumentMetadata{
		Name:         name,
		Size:         size,
		Type:         ResolveMIMEType(name, mimeType),
		LastModified: lastModified,
		WordCount:    utils.CountWords(text),
		CharCount:    utils.CountChars(text),
	}
}

// ResolveMIMEType keeps a meaningful client-supplied type and otherwise derives
// one from the file extension, falling back to text/plain.
func ResolveMIMEType(name, mimeType string) string {
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil && mediaType != "application/octet-stream" {
		return mediaType
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return defaultMIMEType
}
