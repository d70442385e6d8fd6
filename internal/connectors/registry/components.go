package registry

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrAmbiguousComponent is returned when more than one registered component of the
	// requested type carries the same identifier inside one integration.
	ErrAmbiguousComponent = errors.New("component request matched more than one component")
	// ErrDuplicateComponent is returned when an identifier is registered twice for the same type.
	ErrDuplicateComponent = errors.New("component identifier already registered")
	ErrNoIdentifier       = errors.New("component identifier is required")
)

// ComponentRequest names a capability. It is matched byte for byte.
type ComponentRequest string

// Candidate is a service value tagged with the capability identifiers it answers to.
type Candidate struct {
	Identifiers []string
	Value       any
}

// MatchComponents returns the candidates whose identifier set contains the request.
// Matching is exact string membership; the request is not trimmed or folded.
func MatchComponents(request ComponentRequest, candidates []Candidate) []Candidate {
	id := string(request)
	if id == "" {
		return nil
	}
	var out []Candidate
	for _, c := range candidates {
		if slices.Contains(c.Identifiers, id) {
			out = append(out, c)
		}
	}
	return out
}

// Components is the set of services one integration exposes while it is started.
// Runtimes register into it from Start; it is cleared when the integration stops.
type Components struct {
	mu      sync.RWMutex
	entries []Candidate
}

func NewComponents() *Components {
	return &Components{}
}

// Register exposes value under the given identifiers, stored exactly as given.
// Blank identifiers are skipped.
func (c *Components) Register(value any, identifiers ...string) error {
	if value == nil {
		return errors.New("component value is nil")
	}
	if v := reflect.ValueOf(value); (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return errors.New("component value is nil")
	}

	ids := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		if strings.TrimSpace(id) == "" || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ErrNoIdentifier
	}

	typ := reflect.TypeOf(value)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.entries {
		if reflect.TypeOf(existing.Value) != typ {
			continue
		}
		for _, id := range ids {
			if slices.Contains(existing.Identifiers, id) {
				return fmt.Errorf("%w: %q (%s)", ErrDuplicateComponent, id, typ)
			}
		}
	}
	c.entries = append(c.entries, Candidate{Identifiers: ids, Value: value})
	return nil
}

// Reset drops every registration.
func (c *Components) Reset() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}

func (c *Components) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Identifiers returns every identifier currently registered, sorted.
func (c *Components) Identifiers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, e := range c.entries {
		for _, id := range e.Identifiers {
			if !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
	}
	slices.Sort(out)
	return out
}

// LookupComponents returns the registered values assignable to T that answer the request.
// It fails with ErrAmbiguousComponent when more than one value matches.
func LookupComponents[T any](c *Components, request ComponentRequest) ([]T, error) {
	if c == nil {
		return nil, nil
	}

	c.mu.RLock()
	candidates := make([]Candidate, 0, len(c.entries))
	for _, e := range c.entries {
		if _, ok := e.Value.(T); ok {
			candidates = append(candidates, e)
		}
	}
	c.mu.RUnlock()

	matched := MatchComponents(request, candidates)
	if len(matched) > 1 {
		return nil, fmt.Errorf("%w: %q has %d candidates", ErrAmbiguousComponent, string(request), len(matched))
	}

	out := make([]T, 0, len(matched))
	for _, m := range matched {
		if m.Value == nil {
			continue
		}
		out = append(out, m.Value.(T))
	}
	return out, nil
}
