package session

import (
	"sort"
	"sync"

	"github.com/voidreach/cadence/errors"
)

// Store is the canonical in-memory session store with two secondary indexes:
// by group key and by normalized target reference.
//
// The primary map and both indexes are updated under one lock, so a session
// is visible in the indexes iff it is visible in the store. The store makes
// no timing decisions and performs no I/O; values going in and out are
// snapshots, so callers can never mutate a stored record in place.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string // insertion order for deterministic listings
	byGroup  map[string]map[string]struct{}
	byRef    map[string]map[string]struct{}
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		byGroup:  make(map[string]map[string]struct{}),
		byRef:    make(map[string]map[string]struct{}),
	}
}

// Put inserts or replaces the record under session.ID and updates both
// secondary indexes. Replacing an existing record re-indexes it if its
// group key or target reference changed. Idempotent for the same id.
func (st *Store) Put(s *Session) {
	c := s.clone()
	c.TargetRef = NormalizeRef(c.TargetRef)

	st.mu.Lock()
	defer st.mu.Unlock()

	if prev, ok := st.sessions[c.ID]; ok {
		if prev.GroupKey != c.GroupKey {
			st.unindexLocked(st.byGroup, prev.GroupKey, c.ID)
		}
		if prev.TargetRef != c.TargetRef {
			st.unindexLocked(st.byRef, prev.TargetRef, c.ID)
		}
	} else {
		st.order = append(st.order, c.ID)
	}

	st.sessions[c.ID] = c
	st.indexLocked(st.byGroup, c.GroupKey, c.ID)
	st.indexLocked(st.byRef, c.TargetRef, c.ID)
}

// Get returns a snapshot of the session with the given id.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, errors.NewNotFoundf("session %s", id)
	}
	return s.clone(), nil
}

// Remove deletes the session from both indexes and then the primary map,
// as a single atomic unit. Index buckets left empty are deleted.
func (st *Store) Remove(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return errors.NewNotFoundf("session %s", id)
	}

	st.unindexLocked(st.byGroup, s.GroupKey, id)
	st.unindexLocked(st.byRef, s.TargetRef, id)
	delete(st.sessions, id)

	for i, oid := range st.order {
		if oid == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListByGroup returns the ids of all sessions sharing the given group key.
// The result is sorted for determinism; empty if the key is unknown.
func (st *Store) ListByGroup(groupKey string) []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return sortedIDs(st.byGroup[groupKey])
}

// ListByTargetRef returns the ids of all sessions addressing the given
// target reference. The lookup key is normalized the same way stored
// references are.
func (st *Store) ListByTargetRef(ref string) []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return sortedIDs(st.byRef[NormalizeRef(ref)])
}

// All returns snapshots of every session in insertion order.
func (st *Store) All() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Session, 0, len(st.order))
	for _, id := range st.order {
		if s, ok := st.sessions[id]; ok {
			out = append(out, s.clone())
		}
	}
	return out
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// GroupKeys returns all group keys that currently have at least one session.
func (st *Store) GroupKeys() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	keys := make([]string, 0, len(st.byGroup))
	for k := range st.byGroup {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasGroup reports whether any session exists under the given group key.
func (st *Store) HasGroup(groupKey string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.byGroup[groupKey]
	return ok
}

func (st *Store) indexLocked(index map[string]map[string]struct{}, key, id string) {
	bucket, ok := index[key]
	if !ok {
		bucket = make(map[string]struct{})
		index[key] = bucket
	}
	bucket[id] = struct{}{}
}

// unindexLocked removes id from the bucket under key and deletes the bucket
// if it became empty. Indexes never hold empty buckets.
func (st *Store) unindexLocked(index map[string]map[string]struct{}, key, id string) {
	bucket, ok := index[key]
	if !ok {
		return
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(index, key)
	}
}

func sortedIDs(bucket map[string]struct{}) []string {
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
