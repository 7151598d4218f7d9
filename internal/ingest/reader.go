package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

var (
	// ErrReadFailure means the upload could not be turned into text.
	ErrReadFailure = errors.New("document could not be read as text")
	// ErrUnsupportedType means the file extension is not one we can read.
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrTooLarge means the upload exceeded the configured byte limit.
	ErrTooLarge = errors.New("document too large")
)

// SupportedExtensions lists the extensions ReadDocument accepts.
var SupportedExtensions = []string{".txt", ".md", ".csv", ".json", ".pdf", ".html", ".htm"}

// ReadDocument reads an uploaded file fully into memory and returns its text.
// limit caps the number of bytes read; zero or less means no cap.
func ReadDocument(name, mimeType string, r io.Reader, limit int64) (string, error) {
	kind, err := documentKind(name, mimeType)
	if err != nil {
		return "", err
	}

	data, err := readAll(r, limit)
	if err != nil {
		return "", err
	}

	switch kind {
	case ".pdf":
		return readPDF(data)
	case ".html", ".htm":
		return readHTML(data)
	default:
		return readText(data)
	}
}

func documentKind(name, mimeType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return ext, nil
		}
	}
	if ext == "" && strings.HasPrefix(ResolveMIMEType(name, mimeType), "text/") {
		return ".txt", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
}

func readAll(r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no content", ErrReadFailure)
	}
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailure, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %w: more than %d bytes", ErrReadFailure, ErrTooLarge, limit)
	}
	return data, nil
}

func readText(data []byte) (string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", fmt.Errorf("%w: binary content", ErrReadFailure)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return strings.ToValidUTF8(string(data), "�"), nil
}

func readPDF(data []byte) (text string, err error) {
	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", ErrReadFailure, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %w", ErrReadFailure, err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages we cannot decode rather than failing the whole document.
			continue
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			pages = append(pages, pageText)
		}
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("%w: no text extracted from pdf", ErrReadFailure)
	}
	return strings.ToValidUTF8(strings.Join(pages, "\n\n"), "�"), nil
}

func readHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %w", ErrReadFailure, err)
	}
	lines := strings.Split(extractText(doc), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}

func extractText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" || node.Data == "head" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if node.Type == html.ElementNode {
			switch node.Data {
			case "p", "br", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				buf.WriteString("\n")
			}
		}
	}
	walk(n)
	return buf.String()
}
