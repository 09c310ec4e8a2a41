package model

import "sort"

// CollectionName names one of the categorized collections.
type CollectionName string

const (
	CollectionActiveReg  CollectionName = "activeReg"
	CollectionActiveSSCB CollectionName = "activeSSCB"
	CollectionPending    CollectionName = "pending"
	CollectionLifted     CollectionName = "lifted"
)

// CollectionNames lists every categorized collection in a fixed order.
var CollectionNames = []CollectionName{
	CollectionActiveReg,
	CollectionActiveSSCB,
	CollectionPending,
	CollectionLifted,
}

// Collection is an ordered sequence of records keyed by haltId.
type Collection []HaltRecord

// Index returns the position of id, or -1.
func (c Collection) Index(id string) int {
	for i := range c {
		if c[i].HaltID == id {
			return i
		}
	}
	return -1
}

// Get returns the record for id.
func (c Collection) Get(id string) (HaltRecord, bool) {
	if i := c.Index(id); i >= 0 {
		return c[i], true
	}
	return HaltRecord{}, false
}

// Has reports whether id is present.
func (c Collection) Has(id string) bool {
	return c.Index(id) >= 0
}

// Clone returns a copy that shares no backing array with c.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	copy(out, c)
	return out
}

// Upsert replaces the record with the same haltId in place, or appends it.
// Reports whether the record was appended.
func (c *Collection) Upsert(r HaltRecord) bool {
	if i := c.Index(r.HaltID); i >= 0 {
		(*c)[i] = r
		return false
	}
	*c = append(*c, r)
	return true
}

// Remove drops id, preserving order. Reports whether anything was removed.
func (c *Collection) Remove(id string) bool {
	i := c.Index(id)
	if i < 0 {
		return false
	}
	*c = append((*c)[:i], (*c)[i+1:]...)
	return true
}

// IDs returns the haltIds in collection order.
func (c Collection) IDs() []string {
	ids := make([]string, len(c))
	for i := range c {
		ids[i] = c[i].HaltID
	}
	return ids
}

// IDSet is an unordered set of haltIds.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id.
func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// Remove deletes id.
func (s IDSet) Remove(id string) {
	delete(s, id)
}

// Has reports membership.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Clone copies the set.
func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Union returns s ∪ other.
func (s IDSet) Union(other IDSet) IDSet {
	out := s.Clone()
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Difference returns s \ other.
func (s IDSet) Difference(other IDSet) IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		if _, ok := other[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
