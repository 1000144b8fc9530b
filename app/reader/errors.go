package reader

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported feed format")
	ErrEmptyInput        = errors.New("empty input")
	ErrTransport         = errors.New("transport failure")
)

// TransportError describes a request that failed before a document could
// be read. StatusCode is zero when no response arrived.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: %s: HTTP %d", ErrTransport, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%v: %s: %v", ErrTransport, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}
