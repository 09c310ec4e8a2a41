package reconcile

import (
	"sync"

	"github.com/rickgao/haltwatch/internal/model"
)

// Store owns the categorized collections and their derived indexes.
// All writes go through Update, which applies a function to a private copy
// and then swaps it in.
type Store struct {
	mu      sync.RWMutex
	snap    model.Snapshot
	version uint64

	subsMu sync.Mutex
	subs   []func(model.Snapshot)
}

// NewStore creates a Store holding an empty snapshot.
func NewStore() *Store {
	return &Store{snap: model.NewSnapshot()}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Version increments on every commit.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// OnCommit registers fn to receive every committed snapshot. fn must not
// modify the snapshot it is given.
func (s *Store) OnCommit(fn func(model.Snapshot)) {
	s.subsMu.Lock()
	s.subs = append(s.subs, fn)
	s.subsMu.Unlock()
}

// Update runs fn on a copy of the current snapshot and commits the copy.
// If fn returns false nothing is committed.
func (s *Store) Update(fn func(snap *model.Snapshot) bool) bool {
	s.mu.Lock()
	next := s.snap.Clone()
	if !fn(&next) {
		s.mu.Unlock()
		return false
	}
	s.snap = next
	s.version++
	committed := next.Clone()
	s.mu.Unlock()

	s.subsMu.Lock()
	subs := append(([]func(model.Snapshot))(nil), s.subs...)
	s.subsMu.Unlock()

	for _, fn := range subs {
		fn(committed)
	}
	return true
}

// Seed places records from a fetch-all snapshot. The collections are
// rebuilt from records; haltList keeps every id seen before.
func (s *Store) Seed(records []model.HaltRecord) {
	seeded := Categorize(records)
	s.Update(func(snap *model.Snapshot) bool {
		seeded.HaltList = snap.HaltList.Union(seeded.HaltList)
		*snap = seeded
		return true
	})
}

// Provisional writes r over the record with the same haltId wherever it
// currently lives, without moving it between collections. It is the
// optimistic path after a successful mutation; the next stream event for
// the same haltId supersedes it. Reports false when the haltId is unknown.
func (s *Store) Provisional(r model.HaltRecord) bool {
	return s.Update(func(snap *model.Snapshot) bool {
		name, _, ok := snap.Locate(r.HaltID)
		if !ok {
			return false
		}
		snap.Collection(name).Upsert(r)
		if name == model.CollectionActiveReg {
			syncExtended(snap, r)
		}
		return true
	})
}
