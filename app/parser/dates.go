package parser

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// parseDate accepts the mix of RFC 822, RFC 3339 and ad-hoc layouts found
// in feeds. Unparsable input yields nil.
func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}

	t, err := dateparse.ParseAny(value)
	if err != nil {
		return nil
	}
	return &t
}
