// Package parser turns syndication documents of any supported wire format
// into the canonical feed model.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/lysyi3m/syndication/app/feed"
)

// SnippetSize is how many leading bytes of a body CanParse gets to see.
const SnippetSize = 512

var ErrMalformedInput = errors.New("malformed input")

// Parser is a stateless strategy for one wire format.
type Parser interface {
	// CanParse sniffs the declared content type (possibly empty) and the
	// leading snippet of the body. It must not have side effects.
	CanParse(contentType, snippet string) bool
	Parse(ctx context.Context, r io.Reader) (*feed.Feed, error)
}

// ParseError reports a document a parser recognized but could not read.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Format, ErrMalformedInput, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrMalformedInput, e.Err}
}

func malformed(format string, err error) error {
	return &ParseError{Format: format, Err: err}
}

// Snippet decodes the first SnippetSize bytes of data permissively as UTF-8.
// A multi-byte sequence cut at the boundary is dropped.
func Snippet(data []byte) string {
	if len(data) > SnippetSize {
		data = data[:SnippetSize]
		for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
			if utf8.RuneStart(data[i]) {
				if !utf8.FullRune(data[i:]) {
					data = data[:i]
				}
				break
			}
		}
	}
	return strings.ToValidUTF8(string(data), "�")
}

func hasType(contentType string, needles ...string) bool {
	ct := strings.ToLower(contentType)
	for _, n := range needles {
		if strings.Contains(ct, n) {
			return true
		}
	}
	return false
}
