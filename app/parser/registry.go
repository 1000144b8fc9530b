package parser

import (
	"reflect"
	"sync"
)

// Registry resolves a document to the first registered parser that claims
// it. Registration order is resolution order.
type Registry struct {
	mu      sync.RWMutex
	parsers []Parser
}

func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry registers the built-in formats, most specific first.
// SemanticHTML is last so any real feed wins over scraping.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewRSS())
	r.Register(NewAtom())
	r.Register(NewJSONFeed())
	r.Register(NewActivityPub())
	r.Register(NewRDF())
	r.Register(NewSemanticHTML())
	return r
}

// Register appends p. Registering the same parser value twice is a no-op.
func (r *Registry) Register(p Parser) {
	if p == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.parsers {
		if sameParser(existing, p) {
			return
		}
	}
	r.parsers = append(r.parsers, p)
}

// Resolve returns the first parser whose CanParse accepts the input, or nil.
func (r *Registry) Resolve(contentType, snippet string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.parsers {
		if p.CanParse(contentType, snippet) {
			return p
		}
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parsers)
}

func sameParser(a, b Parser) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
