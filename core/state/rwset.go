package state

import mapset "github.com/deckarep/golang-set/v2"

// RWSet records the state keys a transaction read from and wrote to.
// StateKey is comparable, so it slots directly into a generic mapset set
// (spec §4.3 conflict detection is exactly the set-intersection shape
// golang-set models).
type RWSet struct {
	Reads  mapset.Set[StateKey]
	Writes mapset.Set[StateKey]
}

// NewRWSet returns an empty RWSet.
func NewRWSet() *RWSet {
	return &RWSet{Reads: mapset.NewThreadUnsafeSet[StateKey](), Writes: mapset.NewThreadUnsafeSet[StateKey]()}
}

// RecordRead adds k to the read set.
func (s *RWSet) RecordRead(k StateKey) { s.Reads.Add(k) }

// RecordWrite adds k to the write set.
func (s *RWSet) RecordWrite(k StateKey) { s.Writes.Add(k) }

// ConflictsWith reports whether a later transaction with RW-set `later`
// must be ordered after this (earlier) transaction's RW-set, per spec §3:
// RAW (later reads what earlier wrote), WAW (both write the same key), or
// WAR (later writes what earlier read).
func (s *RWSet) ConflictsWith(later *RWSet) bool {
	if later.Reads.Intersect(s.Writes).Cardinality() > 0 {
		return true // RAW
	}
	if later.Writes.Intersect(s.Writes).Cardinality() > 0 {
		return true // WAW
	}
	if later.Writes.Intersect(s.Reads).Cardinality() > 0 {
		return true // WAR
	}
	return false
}

// Merge folds other into s. The scheduler's misprediction retry does not
// call it: it replaces a task's predicted RW-set with the recorded one.
func (s *RWSet) Merge(other *RWSet) {
	s.Reads = s.Reads.Union(other.Reads)
	s.Writes = s.Writes.Union(other.Writes)
}
