package session

import (
	"strings"

	"github.com/voidreach/cadence/errors"
)

// SearchKind selects which attribute a search term is matched against.
type SearchKind string

const (
	SearchByGroup     SearchKind = "group"
	SearchByTargetRef SearchKind = "targetRef"
	SearchAny         SearchKind = "any"
)

// IsValid returns true if k is a known search kind.
func (k SearchKind) IsValid() bool {
	switch k {
	case SearchByGroup, SearchByTargetRef, SearchAny:
		return true
	default:
		return false
	}
}

// ListSessions returns all sessions in insertion order, optionally filtered
// by a case-insensitive substring matched across id, group key and target
// reference. Read-only: never mutates the store or triggers transitions.
func (e *Engine) ListSessions(filter string) []Record {
	filter = strings.ToLower(strings.TrimSpace(filter))

	sessions := e.store.All()
	out := make([]Record, 0, len(sessions))
	for _, s := range sessions {
		if filter != "" && !matchesFilter(s, filter) {
			continue
		}
		out = append(out, s.Record())
	}
	return out
}

// FindByGroup returns the sessions registered under exactly the given group
// key, via the secondary index.
func (e *Engine) FindByGroup(groupKey string) []Record {
	ids := e.store.ListByGroup(groupKey)
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if s, err := e.store.Get(id); err == nil {
			out = append(out, s.Record())
		}
	}
	return out
}

// Search matches term as a substring against the attribute selected by kind:
// group keys, normalized target references, or both. Matching is
// case-insensitive; results keep the store's insertion order.
func (e *Engine) Search(term string, kind SearchKind) ([]Record, error) {
	if !kind.IsValid() {
		return nil, errors.NewInvalidInputf("unknown search kind %q", kind)
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, errors.NewInvalidInputf("search term is required")
	}

	out := make([]Record, 0)
	for _, s := range e.store.All() {
		var hit bool
		switch kind {
		case SearchByGroup:
			hit = strings.Contains(strings.ToLower(s.GroupKey), term)
		case SearchByTargetRef:
			hit = strings.Contains(s.TargetRef, term)
		case SearchAny:
			hit = strings.Contains(strings.ToLower(s.GroupKey), term) ||
				strings.Contains(s.TargetRef, term) ||
				strings.Contains(strings.ToLower(s.ID), term)
		}
		if hit {
			out = append(out, s.Record())
		}
	}
	return out, nil
}

func matchesFilter(s *Session, filter string) bool {
	return strings.Contains(strings.ToLower(s.ID), filter) ||
		strings.Contains(strings.ToLower(s.GroupKey), filter) ||
		strings.Contains(s.TargetRef, filter)
}
